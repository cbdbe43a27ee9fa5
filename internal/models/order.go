package models

import (
	"time"
)

// Order 支付订单表
type Order struct {
	ID               uint       `gorm:"primarykey" json:"id"`                                       // 主键
	OrderNo          string     `gorm:"uniqueIndex;not null" json:"order_no"`                       // 订单编号（同时作为 out_trade_no）
	MerchantID       uint       `gorm:"index;not null" json:"merchant_id"`                          // 商户ID
	MerchantNo       string     `gorm:"type:varchar(64);not null" json:"merchant_no"`               // 商户编号
	BusinessKey      string     `gorm:"type:varchar(128);not null" json:"business_key"`             // 商户业务单号
	IdempotencyKey   string     `gorm:"type:varchar(200);index;not null" json:"idempotency_key"`    // 幂等键（商户+业务单号）
	TradeType        string     `gorm:"type:varchar(40);not null" json:"trade_type"`                // 交易类型
	TradeSource      string     `gorm:"type:varchar(40);index;not null" json:"trade_source"`        // 交易来源（回调/通知路由）
	ChannelConfigID  uint       `gorm:"index" json:"channel_config_id"`                             // 渠道配置ID
	Amount           Money      `gorm:"type:decimal(20,2);not null;default:0" json:"amount"`        // 订单金额
	RefundAmount     Money      `gorm:"type:decimal(20,2);not null;default:0" json:"refund_amount"` // 退款金额
	Currency         string     `gorm:"type:varchar(10);not null" json:"currency"`                  // 币种
	Description      string     `gorm:"type:varchar(255)" json:"description"`                       // 交易描述
	Status           string     `gorm:"type:varchar(32);index;not null" json:"status"`              // 订单状态
	PrepayID         string     `gorm:"type:varchar(128)" json:"prepay_id,omitempty"`               // 预支付ID
	PayURL           string     `gorm:"type:varchar(1024)" json:"pay_url,omitempty"`                // 支付链接（h5_url/code_url）
	ProviderTradeNo  string     `gorm:"type:varchar(128);index" json:"provider_trade_no,omitempty"` // 渠道交易号
	RefundNo         string     `gorm:"type:varchar(64)" json:"refund_no,omitempty"`                // 退款单号
	ProviderRefundNo string     `gorm:"type:varchar(128)" json:"provider_refund_no,omitempty"`      // 渠道退款单号
	ClientIP         string     `gorm:"type:varchar(64)" json:"client_ip,omitempty"`                // 下单客户端IP
	OpenID           string     `gorm:"type:varchar(128)" json:"open_id,omitempty"`                 // JSAPI 支付用户标识
	FailReason       string     `gorm:"type:varchar(255)" json:"fail_reason,omitempty"`             // 失败原因
	ExpiresAt        *time.Time `gorm:"index" json:"expires_at"`                                    // 过期时间
	PaidAt           *time.Time `gorm:"index" json:"paid_at"`                                       // 支付时间
	ClosedAt         *time.Time `json:"closed_at"`                                                  // 关闭时间（取消/超时）
	RefundedAt       *time.Time `json:"refunded_at"`                                                // 退款完成时间
	CreatedAt        time.Time  `gorm:"index" json:"created_at"`                                    // 创建时间
	UpdatedAt        time.Time  `gorm:"index" json:"updated_at"`                                    // 更新时间
}

// TableName 指定表名
func (Order) TableName() string {
	return "pay_orders"
}
