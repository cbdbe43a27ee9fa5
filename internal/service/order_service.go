package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/paycore/internal/cache"
	"github.com/paycore/internal/channel"
	"github.com/paycore/internal/constants"
	"github.com/paycore/internal/lock"
	"github.com/paycore/internal/logger"
	"github.com/paycore/internal/models"
	"github.com/paycore/internal/notify"
	"github.com/paycore/internal/payment"
	"github.com/paycore/internal/queue"
	"github.com/paycore/internal/repository"
	"github.com/paycore/internal/rule"

	"golang.org/x/sync/singleflight"
	"gorm.io/gorm"
)

const (
	detachedOpTimeout     = 5 * time.Second
	defaultOrderNoPrefix  = "P"
	defaultCreateLockWait = 3 * time.Second
	defaultRefundLockWait = 3 * time.Second
	defaultOrderTimeout   = 30 * time.Minute
	maxTransitionAttempts = 3
)

// EventPublisher 订单事件投递
type EventPublisher interface {
	Publish(event notify.Event) bool
}

// OrderServiceOptions 订单服务参数
type OrderServiceOptions struct {
	OrderNoPrefix       string
	CreateLockWait      time.Duration
	RefundLockWait      time.Duration
	DefaultTimeout      time.Duration
	StatusCacheTTL      time.Duration
	NotifyBaseURL       string
	RefundNotifyBaseURL string
}

// OrderServiceDeps 订单服务依赖
type OrderServiceDeps struct {
	OrderRepo    repository.OrderRepository
	FlowRepo     repository.OrderFlowRepository
	MerchantRepo repository.MerchantRepository
	ChannelRepo  repository.ChannelConfigRepository
	Locks        lock.Provider
	Resolver     *channel.Resolver
	Rules        *rule.Registry
	Gateways     *payment.Registry
	Events       EventPublisher
	QueueClient  *queue.Client
}

// OrderService 订单生命周期引擎
type OrderService struct {
	orderRepo    repository.OrderRepository
	flowRepo     repository.OrderFlowRepository
	merchantRepo repository.MerchantRepository
	channelRepo  repository.ChannelConfigRepository
	locks        lock.Provider
	resolver     *channel.Resolver
	rules        *rule.Registry
	gateways     *payment.Registry
	events       EventPublisher
	queueClient  *queue.Client
	opts         OrderServiceOptions
	now          func() time.Time
	statusLoads  singleflight.Group
}

// NewOrderService 创建订单服务
func NewOrderService(deps OrderServiceDeps, opts OrderServiceOptions) *OrderService {
	if strings.TrimSpace(opts.OrderNoPrefix) == "" {
		opts.OrderNoPrefix = defaultOrderNoPrefix
	}
	if opts.CreateLockWait <= 0 {
		opts.CreateLockWait = defaultCreateLockWait
	}
	if opts.RefundLockWait <= 0 {
		opts.RefundLockWait = defaultRefundLockWait
	}
	if opts.DefaultTimeout <= 0 {
		opts.DefaultTimeout = defaultOrderTimeout
	}
	locks := deps.Locks
	if locks == nil {
		locks = lock.NewNoop()
	}
	rules := deps.Rules
	if rules == nil {
		rules = rule.NewRegistry()
	}
	return &OrderService{
		orderRepo:    deps.OrderRepo,
		flowRepo:     deps.FlowRepo,
		merchantRepo: deps.MerchantRepo,
		channelRepo:  deps.ChannelRepo,
		locks:        locks,
		resolver:     deps.Resolver,
		rules:        rules,
		gateways:     deps.Gateways,
		events:       deps.Events,
		queueClient:  deps.QueueClient,
		opts:         opts,
		now:          time.Now,
	}
}

// SetClock 替换时钟
func (s *OrderService) SetClock(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// CreateOrderInput 创建订单输入
type CreateOrderInput struct {
	MerchantNo  string
	BusinessKey string
	TradeType   string
	Amount      models.Money
	Currency    string
	Description string
	ClientIP    string
	OpenID      string
	Attributes  map[string]string
}

// CreateOrderResult 创建订单结果，Reused 表示命中幂等键返回了已有订单
type CreateOrderResult struct {
	Order  *models.Order
	Reused bool
}

// CreateOrder 创建订单：同一商户业务单号串行化，已有存活订单直接返回
func (s *OrderService) CreateOrder(ctx context.Context, input CreateOrderInput) (*CreateOrderResult, error) {
	input.MerchantNo = strings.TrimSpace(input.MerchantNo)
	input.BusinessKey = strings.TrimSpace(input.BusinessKey)
	input.TradeType = strings.ToLower(strings.TrimSpace(input.TradeType))
	if input.MerchantNo == "" || input.BusinessKey == "" || input.TradeType == "" {
		return nil, fmt.Errorf("%w: merchant_no, business_key and trade_type are required", ErrInvalidOrderInput)
	}
	if !input.Amount.IsPositive() {
		return nil, fmt.Errorf("%w: amount must be greater than zero", ErrInvalidOrderInput)
	}
	if !input.Amount.Equal(input.Amount.Round(2)) {
		return nil, fmt.Errorf("%w: %v", ErrInvalidOrderInput, models.ErrMoneyPrecision)
	}

	lease, err := s.locks.Acquire(ctx, lock.Key("create", input.MerchantNo, input.BusinessKey), s.opts.CreateLockWait)
	if err != nil {
		logger.Warnw("order_create_lock_failed",
			"merchant_no", input.MerchantNo,
			"business_key", input.BusinessKey,
			"error", err,
		)
		return nil, fmt.Errorf("%w: %v", ErrLockAcquire, err)
	}
	defer lease.Release()

	idempotencyKey := buildIdempotencyKey(input.MerchantNo, input.BusinessKey)
	existing, err := s.orderRepo.FindLiveByIdempotencyKey(ctx, idempotencyKey)
	if err != nil {
		return nil, storeError(err)
	}
	if existing != nil {
		logger.Debugw("order_create_reused", "order_no", existing.OrderNo, "status", existing.Status)
		return &CreateOrderResult{Order: existing, Reused: true}, nil
	}

	merchant, err := s.merchantRepo.GetByMerchantNo(ctx, input.MerchantNo)
	if err != nil {
		return nil, storeError(err)
	}
	if merchant == nil {
		return nil, ErrMerchantNotFound
	}
	if !merchant.IsOpen {
		return nil, ErrMerchantClosed
	}

	resolved, err := s.resolver.Check(ctx, merchant, input.TradeType)
	if err != nil {
		if errors.Is(err, channel.ErrNoHandler) {
			return nil, fmt.Errorf("%w: %s", ErrNoChannelHandler, input.TradeType)
		}
		return nil, storeError(err)
	}
	if !resolved.Supported || resolved.Config == nil {
		return nil, fmt.Errorf("%w: %s", ErrChannelUnsupported, resolved.Reason)
	}
	cfg := resolved.Config

	orderNo := s.generateOrderNo()
	now := s.now()
	timeout := merchant.OrderTimeout()
	if timeout <= 0 {
		timeout = s.opts.DefaultTimeout
	}
	expiresAt := now.Add(timeout)
	currency := strings.ToUpper(strings.TrimSpace(input.Currency))
	if currency == "" {
		currency = constants.CurrencyCNY
	}
	order := &models.Order{
		OrderNo:         orderNo,
		MerchantID:      merchant.ID,
		MerchantNo:      merchant.MerchantNo,
		BusinessKey:     input.BusinessKey,
		IdempotencyKey:  idempotencyKey,
		TradeType:       input.TradeType,
		TradeSource:     channel.TradeSourceOf(cfg.ChannelKind),
		ChannelConfigID: cfg.ID,
		Amount:          models.NewMoneyFromDecimal(input.Amount.Decimal),
		Currency:        currency,
		Description: s.rules.Describe(cfg, rule.Payload{
			OrderNo:     orderNo,
			BusinessKey: input.BusinessKey,
			Description: input.Description,
			Attributes:  input.Attributes,
		}),
		Status:    constants.OrderStatusCreated,
		ClientIP:  strings.TrimSpace(input.ClientIP),
		OpenID:    strings.TrimSpace(input.OpenID),
		ExpiresAt: &expiresAt,
		CreatedAt: now,
		UpdatedAt: now,
	}

	err = s.orderRepo.Transaction(ctx, func(tx *gorm.DB) error {
		if err := s.orderRepo.WithTx(tx).Create(ctx, order); err != nil {
			return err
		}
		flow := s.buildFlow(order, "", constants.OrderStatusCreated, constants.FlowSourceCreate, "", now)
		return s.flowRepo.WithTx(tx).Create(ctx, &flow)
	})
	if err != nil {
		return nil, storeError(err)
	}

	fields := map[string]interface{}{}
	if gateway, ok := s.gatewayFor(cfg.ChannelKind); ok {
		prepay, err := gateway.Prepay(ctx, payment.PrepayRequest{
			OrderNo:     order.OrderNo,
			TradeType:   order.TradeType,
			Amount:      order.Amount,
			Currency:    order.Currency,
			Description: order.Description,
			ClientIP:    order.ClientIP,
			OpenID:      order.OpenID,
			NotifyURL:   buildNotifyURL(s.opts.NotifyBaseURL, cfg.ID),
			ExpiresAt:   order.ExpiresAt,
			Config:      cfg,
		})
		if err != nil {
			logger.Warnw("order_prepay_failed", "order_no", order.OrderNo, "trade_type", order.TradeType, "error", err)
			s.markCreateFailed(ctx, order, err)
			return nil, fmt.Errorf("%w: %v", ErrPrepayFailed, err)
		}
		fields["prepay_id"] = prepay.PrepayID
		fields["pay_url"] = prepay.PayURL
		order.PrepayID = prepay.PrepayID
		order.PayURL = prepay.PayURL
	}

	moved, err := s.applyTransition(ctx, order, constants.OrderStatusCreated, constants.OrderStatusPendingPayment,
		constants.FlowSourceCreate, "", fields)
	if err != nil {
		// 留在 created 的订单由超时扫描回收
		return nil, err
	}
	if !moved {
		return nil, fmt.Errorf("%w: order %s left created before prepay completed", ErrTransitionConflict, order.OrderNo)
	}

	s.scheduleTimeout(ctx, order, timeout)
	logger.Infow("order_created",
		"order_no", order.OrderNo,
		"merchant_no", order.MerchantNo,
		"business_key", order.BusinessKey,
		"trade_type", order.TradeType,
		"amount", order.Amount.String(),
	)
	return &CreateOrderResult{Order: order}, nil
}

// markCreateFailed 预下单失败时关闭订单，释放幂等键
// 调用方的 ctx 可能已取消（预下单失败的常见原因），补偿在独立的 ctx 上执行。
func (s *OrderService) markCreateFailed(ctx context.Context, order *models.Order, cause error) {
	ctx, cancel := detachedContext(ctx)
	defer cancel()
	reason := truncateReason(cause.Error())
	if _, err := s.applyTransition(ctx, order, constants.OrderStatusCreated, constants.OrderStatusCreateFailed,
		constants.FlowSourceGateway, reason, map[string]interface{}{"fail_reason": reason}); err != nil {
		logger.Errorw("order_mark_create_failed_failed", "order_no", order.OrderNo, "error", err)
	}
}

// scheduleTimeout 投递单笔延时超时任务，失败时依赖调度器兜底
func (s *OrderService) scheduleTimeout(ctx context.Context, order *models.Order, delay time.Duration) {
	if !s.queueClient.Enabled() {
		return
	}
	if err := s.queueClient.EnqueueOrderTimeout(ctx, queue.OrderTimeoutPayload{
		OrderID: order.ID,
		OrderNo: order.OrderNo,
	}, delay); err != nil {
		logger.Warnw("order_timeout_enqueue_failed", "order_no", order.OrderNo, "error", err)
	}
}

// cancelTimeout 订单离开待支付后撤销延时任务，尽力而为
func (s *OrderService) cancelTimeout(order *models.Order) {
	if !s.queueClient.Enabled() {
		return
	}
	if err := s.queueClient.CancelOrderTimeout(order.ID); err != nil {
		logger.Debugw("order_timeout_cancel_failed", "order_no", order.OrderNo, "error", err)
	}
}

func (s *OrderService) gatewayFor(channelKind string) (payment.Gateway, bool) {
	if s.gateways == nil {
		return nil, false
	}
	gateway, err := s.gateways.Get(channelKind)
	if err != nil {
		return nil, false
	}
	return gateway, true
}

func (s *OrderService) generateOrderNo() string {
	return fmt.Sprintf("%s%s%s", s.opts.OrderNoPrefix, s.now().Format("20060102150405"), randNumeric(6))
}

func (s *OrderService) buildFlow(order *models.Order, from, to, source, remark string, at time.Time) models.OrderFlow {
	return models.OrderFlow{
		FlowNo:     fmt.Sprintf("F%s%s", at.Format("20060102150405"), randNumeric(8)),
		OrderID:    order.ID,
		OrderNo:    order.OrderNo,
		FromStatus: from,
		ToStatus:   to,
		Source:     source,
		Remark:     remark,
		CreatedAt:  at,
	}
}

func buildIdempotencyKey(merchantNo, businessKey string) string {
	return merchantNo + ":" + businessKey
}

func buildNotifyURL(base string, channelID uint) string {
	base = strings.TrimRight(strings.TrimSpace(base), "/")
	if base == "" {
		return ""
	}
	return fmt.Sprintf("%s/%d", base, channelID)
}

func truncateReason(reason string) string {
	runes := []rune(strings.TrimSpace(reason))
	if len(runes) > 250 {
		return string(runes[:250])
	}
	return string(runes)
}

func randNumeric(length int) string {
	var b strings.Builder
	for i := 0; i < length; i++ {
		n, err := rand.Int(rand.Reader, big.NewInt(10))
		if err != nil {
			b.WriteString("0")
			continue
		}
		b.WriteString(fmt.Sprintf("%d", n.Int64()))
	}
	return b.String()
}

// detachedContext 保留 ctx 的值但不随其取消，用于提交后的补偿与缓存维护
func detachedContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithTimeout(context.WithoutCancel(ctx), detachedOpTimeout)
}

// cacheStatus 按 updated_at 条件写入状态快照，较旧的快照不会覆盖较新的
func (s *OrderService) cacheStatus(ctx context.Context, order *models.Order) {
	if !cache.Enabled() {
		return
	}
	ctx, cancel := detachedContext(ctx)
	defer cancel()
	written, err := cache.SetOrderStatus(ctx, cache.OrderStatusSnapshot{
		OrderNo:    order.OrderNo,
		MerchantNo: order.MerchantNo,
		Status:     order.Status,
		UpdatedAt:  order.UpdatedAt,
	}, s.opts.StatusCacheTTL)
	switch {
	case err != nil:
		logger.Warnw("order_status_cache_set_failed", "order_no", order.OrderNo, "error", err)
		// 写入失败时删除旧快照，避免读到过期状态
		if err := cache.DelOrderStatus(ctx, order.OrderNo); err != nil {
			logger.Warnw("order_status_cache_del_failed", "order_no", order.OrderNo, "error", err)
		}
	case !written:
		logger.Debugw("order_status_cache_newer_kept", "order_no", order.OrderNo, "status", order.Status)
	}
}
