package constants

// 订单状态常量
const (
	OrderStatusCreated         = "created"
	OrderStatusCreateFailed    = "create_failed"
	OrderStatusPendingPayment  = "pending_payment"
	OrderStatusPaid            = "paid"
	OrderStatusCancelled       = "cancelled"
	OrderStatusTimeout         = "timeout"
	OrderStatusRefundRequested = "refund_requested"
	OrderStatusRefunded        = "refunded"
	OrderStatusRefundFailed    = "refund_failed"
)

// OrderStatusAny 监听器通配状态
const OrderStatusAny = "*"

// 交易类型常量
const (
	TradeTypeWechatNative        = "wechat_native"
	TradeTypeWechatH5            = "wechat_h5"
	TradeTypeWechatJSAPI         = "wechat_js_api"
	TradeTypeWechatPaymentPoints = "wechat_payment_points"
)

// 渠道类型常量
const (
	ChannelKindWechat = "wechat"
)

// 交易来源常量
const (
	TradeSourceWechat    = "wechat"
	TradeSourceScheduler = "scheduler"
	TradeSourceMerchant  = "merchant"
)

// 渠道配置状态常量
const (
	ChannelConfigStatusActive   = "ACTIVE"
	ChannelConfigStatusInactive = "INACTIVE"
)

// 锁类型常量
const (
	LockTypeNone     = "NONE"
	LockTypeObject   = "OBJECT"
	LockTypeFile     = "FILE"
	LockTypeRedis    = "REDIS"
	LockTypeRedisson = "REDISSON"
)

// 消息通道类型常量
const (
	PublisherTypeNone  = "none"
	PublisherTypeAsynq = "asynq"
	PublisherTypeRedis = "redis"
	PublisherTypeMQTT  = "mqtt"
)

// 通知队列溢出策略
const (
	OverflowDropOldest = "drop_oldest"
	OverflowReject     = "reject"
)

// 订单流水来源
const (
	FlowSourceCreate    = "create"
	FlowSourceCallback  = "callback"
	FlowSourceScheduler = "scheduler"
	FlowSourceMerchant  = "merchant"
	FlowSourceDelayTask = "delay_task"
	FlowSourceGateway   = "gateway"
)

// 描述规则名称
const (
	RuleNameDefault       = "default"
	RuleNamePaymentPoints = "payment_points"
)

// 默认币种
const CurrencyCNY = "CNY"

// 队列与任务常量
const (
	QueueDefault     = "default"
	QueueCritical    = "critical"
	TaskOrderTimeout = "order:timeout"
	TaskOrderEvent   = "order:event"
)
