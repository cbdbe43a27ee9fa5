package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/paycore/internal/constants"
	"github.com/paycore/internal/logger"
	"github.com/paycore/internal/models"
	"github.com/paycore/internal/notify"
	"github.com/paycore/internal/payment"
	"github.com/paycore/internal/repository"

	"gorm.io/gorm"
)

// TransitionInput 状态迁移输入
type TransitionInput struct {
	OrderNo string
	Target  string
	Source  string
	Remark  string
	Fields  map[string]interface{}
}

// TransitionResult 状态迁移结果，Changed 表示本次调用实际写入了状态
type TransitionResult struct {
	Order   *models.Order
	Changed bool
}

// OrderCallback 渠道或调度器发来的订单结果
type OrderCallback struct {
	TradeSource      string
	OrderNo          string
	TargetStatus     string
	ProviderTradeNo  string
	ProviderRefundNo string
	Amount           models.Money
	HasAmount        bool
	PaidAt           *time.Time
	Remark           string
	Payload          map[string]interface{}
}

// Transition 将订单迁移到目标状态
// 已处于目标状态或其后续状态时视为成功但不重复通知；其余不兼容状态返回 ErrTransitionConflict。
func (s *OrderService) Transition(ctx context.Context, input TransitionInput) (*TransitionResult, error) {
	order, err := s.loadOrder(ctx, "", input.OrderNo)
	if err != nil {
		return nil, err
	}
	source := strings.TrimSpace(input.Source)
	if source == "" {
		source = constants.FlowSourceMerchant
	}
	return s.transitionOrder(ctx, order, strings.ToLower(strings.TrimSpace(input.Target)), source, input.Remark, input.Fields)
}

// HandleCallback 处理渠道异步通知
func (s *OrderService) HandleCallback(ctx context.Context, cb OrderCallback) (*TransitionResult, error) {
	return s.handleCallback(ctx, cb, constants.FlowSourceCallback)
}

func (s *OrderService) handleCallback(ctx context.Context, cb OrderCallback, source string) (*TransitionResult, error) {
	orderNo := strings.TrimSpace(cb.OrderNo)
	if orderNo == "" {
		return nil, fmt.Errorf("%w: order_no is required", ErrCallbackInvalid)
	}
	order, err := s.loadOrder(ctx, "", orderNo)
	if err != nil {
		return nil, err
	}
	if !strings.EqualFold(strings.TrimSpace(cb.TradeSource), order.TradeSource) {
		logger.Warnw("order_callback_source_mismatch",
			"order_no", order.OrderNo,
			"expected", order.TradeSource,
			"actual", cb.TradeSource,
		)
		return nil, fmt.Errorf("%w: trade source mismatch", ErrCallbackInvalid)
	}

	target := strings.ToLower(strings.TrimSpace(cb.TargetStatus))
	fields := map[string]interface{}{}
	switch target {
	case "", constants.OrderStatusRefundRequested:
		return &TransitionResult{Order: order}, nil
	case constants.OrderStatusPaid:
		if cb.HasAmount && !cb.Amount.Equal(order.Amount.Decimal) {
			logger.Warnw("order_callback_amount_mismatch",
				"order_no", order.OrderNo,
				"expected", order.Amount.String(),
				"actual", cb.Amount.String(),
			)
			return nil, fmt.Errorf("%w: amount mismatch", ErrCallbackInvalid)
		}
		if no := strings.TrimSpace(cb.ProviderTradeNo); no != "" {
			fields["provider_trade_no"] = no
		}
		if cb.PaidAt != nil {
			fields["paid_at"] = *cb.PaidAt
		}
	case constants.OrderStatusCancelled:
	case constants.OrderStatusRefunded, constants.OrderStatusRefundFailed:
		if target == constants.OrderStatusRefunded && cb.HasAmount && order.RefundAmount.IsPositive() &&
			!cb.Amount.Equal(order.RefundAmount.Decimal) {
			logger.Warnw("order_callback_refund_amount_mismatch",
				"order_no", order.OrderNo,
				"expected", order.RefundAmount.String(),
				"actual", cb.Amount.String(),
			)
			return nil, fmt.Errorf("%w: refund amount mismatch", ErrCallbackInvalid)
		}
		if no := strings.TrimSpace(cb.ProviderRefundNo); no != "" {
			fields["provider_refund_no"] = no
		}
	default:
		return nil, fmt.Errorf("%w: unsupported target status %s", ErrCallbackInvalid, cb.TargetStatus)
	}
	return s.transitionOrder(ctx, order, target, source, cb.Remark, fields)
}

// CloseOrder 商户主动关闭待支付订单
func (s *OrderService) CloseOrder(ctx context.Context, merchantNo, orderNo, reason string) (*models.Order, error) {
	order, err := s.loadOrder(ctx, merchantNo, orderNo)
	if err != nil {
		return nil, err
	}
	result, err := s.transitionOrder(ctx, order, constants.OrderStatusCancelled, constants.FlowSourceMerchant, reason, nil)
	if err != nil {
		return nil, err
	}
	return result.Order, nil
}

// ExpireOrder 单笔订单到期处理，由延时任务触发
func (s *OrderService) ExpireOrder(ctx context.Context, orderID uint) error {
	order, err := s.orderRepo.GetByID(ctx, orderID)
	if err != nil {
		return storeError(err)
	}
	if order == nil {
		return nil
	}
	if order.Status != constants.OrderStatusPendingPayment {
		logger.Debugw("order_expire_skipped", "order_no", order.OrderNo, "status", order.Status)
		return nil
	}
	if order.ExpiresAt != nil && s.now().Before(*order.ExpiresAt) {
		logger.Debugw("order_expire_not_due", "order_no", order.OrderNo, "expires_at", order.ExpiresAt)
		return nil
	}
	_, err = s.transitionOrder(ctx, order, constants.OrderStatusTimeout, constants.FlowSourceDelayTask, "order expired", nil)
	if errors.Is(err, ErrTransitionConflict) {
		return nil
	}
	return err
}

// TimeoutMerchantOrders 批量将商户超时未支付订单置为超时，下单中途遗留的 created 订单一并回收，返回变更数量
func (s *OrderService) TimeoutMerchantOrders(ctx context.Context, merchant *models.Merchant) (int, error) {
	timeout := merchant.OrderTimeout()
	if timeout <= 0 {
		return 0, nil
	}
	now := s.now()
	cutoff := now.Add(-timeout)
	remark := fmt.Sprintf("timeout after %s", timeout)
	changed, err := s.orderRepo.BulkTimeout(ctx, merchant.ID, cutoff, now, func(change repository.TimeoutChange) models.OrderFlow {
		return s.buildFlow(&change.Order, change.FromStatus, constants.OrderStatusTimeout,
			constants.FlowSourceScheduler, remark, now)
	})
	if err != nil {
		return 0, storeError(err)
	}
	for i := range changed {
		order := &changed[i].Order
		s.cacheStatus(ctx, order)
		s.publishEvent(order, changed[i].FromStatus, constants.FlowSourceScheduler, remark, now)
	}
	if len(changed) > 0 {
		logger.Infow("order_bulk_timeout", "merchant_id", merchant.ID, "merchant_no", merchant.MerchantNo, "count", len(changed))
	}
	return len(changed), nil
}

// ListEffectiveMerchants 调度器需要扫描的商户
func (s *OrderService) ListEffectiveMerchants(ctx context.Context) ([]models.Merchant, error) {
	merchants, err := s.merchantRepo.ListEffective(ctx)
	if err != nil {
		return nil, storeError(err)
	}
	return merchants, nil
}

// SyncOrder 主动查询渠道并按结果推进待支付订单
func (s *OrderService) SyncOrder(ctx context.Context, merchantNo, orderNo string) (*TransitionResult, error) {
	order, err := s.loadOrder(ctx, merchantNo, orderNo)
	if err != nil {
		return nil, err
	}
	if order.Status != constants.OrderStatusPendingPayment {
		return &TransitionResult{Order: order}, nil
	}
	cfg, gateway, err := s.orderGateway(ctx, order)
	if err != nil {
		return nil, err
	}
	if gateway == nil {
		return &TransitionResult{Order: order}, nil
	}
	result, err := gateway.Query(ctx, payment.QueryRequest{OrderNo: order.OrderNo, Config: cfg})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGatewayFailed, err)
	}
	return s.handleCallback(ctx, OrderCallback{
		TradeSource:     order.TradeSource,
		OrderNo:         order.OrderNo,
		TargetStatus:    result.Status,
		ProviderTradeNo: result.ProviderTradeNo,
		Amount:          result.Amount,
		HasAmount:       result.HasAmount,
		PaidAt:          result.PaidAt,
		Remark:          "gateway query",
	}, constants.FlowSourceGateway)
}

// transitionOrder CAS 迁移；条件更新未命中时重读，按最新状态判断是幂等成功还是冲突
func (s *OrderService) transitionOrder(ctx context.Context, order *models.Order, target, source, remark string, fields map[string]interface{}) (*TransitionResult, error) {
	if !isKnownStatus(target) {
		return nil, fmt.Errorf("%w: unknown status %s", ErrInvalidOrderInput, target)
	}
	for attempt := 0; attempt < maxTransitionAttempts; attempt++ {
		current := order.Status
		if isReachable(target, current) {
			logger.Debugw("order_transition_noop", "order_no", order.OrderNo, "status", current, "target", target, "source", source)
			return &TransitionResult{Order: order}, nil
		}
		if !canTransition(current, target) {
			logger.Warnw("order_transition_conflict", "order_no", order.OrderNo, "status", current, "target", target, "source", source)
			return nil, fmt.Errorf("%w: %s -> %s", ErrTransitionConflict, current, target)
		}
		changed, err := s.applyTransition(ctx, order, current, target, source, remark, fields)
		if err != nil {
			return nil, err
		}
		if changed {
			return &TransitionResult{Order: order, Changed: true}, nil
		}
		fresh, err := s.orderRepo.GetByID(ctx, order.ID)
		if err != nil {
			return nil, storeError(err)
		}
		if fresh == nil {
			return nil, ErrOrderNotFound
		}
		order = fresh
	}
	return nil, fmt.Errorf("%w: order %s kept changing", ErrTransitionConflict, order.OrderNo)
}

// applyTransition 单次条件更新，与流水写入同事务；返回是否由本次调用改变了状态
func (s *OrderService) applyTransition(ctx context.Context, order *models.Order, from, to, source, remark string, fields map[string]interface{}) (bool, error) {
	now := s.now()
	updates := make(map[string]interface{}, len(fields)+2)
	for key, value := range fields {
		updates[key] = value
	}
	updates["updated_at"] = now
	switch to {
	case constants.OrderStatusPaid:
		setDefault(updates, "paid_at", now)
	case constants.OrderStatusCancelled, constants.OrderStatusTimeout, constants.OrderStatusCreateFailed:
		setDefault(updates, "closed_at", now)
	case constants.OrderStatusRefunded:
		setDefault(updates, "refunded_at", now)
	}

	var rows int64
	err := s.orderRepo.Transaction(ctx, func(tx *gorm.DB) error {
		var err error
		rows, err = s.orderRepo.WithTx(tx).UpdateStatusIf(ctx, order.ID, from, to, updates)
		if err != nil || rows == 0 {
			return err
		}
		flow := s.buildFlow(order, from, to, source, remark, now)
		return s.flowRepo.WithTx(tx).Create(ctx, &flow)
	})
	if err != nil {
		return false, storeError(err)
	}
	if rows == 0 {
		logger.Debugw("order_transition_lost_race", "order_no", order.OrderNo, "from", from, "to", to, "source", source)
		return false, nil
	}

	order.Status = to
	applyOrderFields(order, updates)
	if from == constants.OrderStatusPendingPayment && to != constants.OrderStatusTimeout {
		s.cancelTimeout(order)
	}
	s.cacheStatus(ctx, order)
	s.publishEvent(order, from, source, remark, now)
	logger.Infow("order_status_changed", "order_no", order.OrderNo, "from", from, "to", to, "source", source)
	return true, nil
}

func (s *OrderService) publishEvent(order *models.Order, from, source, remark string, at time.Time) {
	if s.events == nil || !isNotifiable(order.Status) {
		return
	}
	if !s.events.Publish(notify.NewEvent(*order, from, source, remark, at)) {
		logger.Warnw("order_event_not_queued", "order_no", order.OrderNo, "status", order.Status)
	}
}

func (s *OrderService) loadOrder(ctx context.Context, merchantNo, orderNo string) (*models.Order, error) {
	orderNo = strings.TrimSpace(orderNo)
	if orderNo == "" {
		return nil, ErrOrderNotFound
	}
	order, err := s.orderRepo.GetByOrderNo(ctx, orderNo)
	if err != nil {
		return nil, storeError(err)
	}
	if order == nil {
		return nil, ErrOrderNotFound
	}
	if merchantNo = strings.TrimSpace(merchantNo); merchantNo != "" && order.MerchantNo != merchantNo {
		return nil, ErrOrderNotFound
	}
	return order, nil
}

// orderGateway 订单所用渠道配置与网关，未注册网关时返回 nil 网关
func (s *OrderService) orderGateway(ctx context.Context, order *models.Order) (*models.ChannelConfig, payment.Gateway, error) {
	if s.channelRepo == nil || order.ChannelConfigID == 0 {
		return nil, nil, nil
	}
	cfg, err := s.channelRepo.GetByID(ctx, order.ChannelConfigID)
	if err != nil {
		return nil, nil, storeError(err)
	}
	if cfg == nil {
		return nil, nil, fmt.Errorf("%w: channel config %d missing", ErrChannelUnsupported, order.ChannelConfigID)
	}
	gateway, ok := s.gatewayFor(cfg.ChannelKind)
	if !ok {
		return cfg, nil, nil
	}
	return cfg, gateway, nil
}

func setDefault(updates map[string]interface{}, key string, value interface{}) {
	if _, ok := updates[key]; !ok {
		updates[key] = value
	}
}

// applyOrderFields 将已写库的字段同步到内存快照
func applyOrderFields(order *models.Order, updates map[string]interface{}) {
	for key, value := range updates {
		switch key {
		case "prepay_id":
			order.PrepayID, _ = value.(string)
		case "pay_url":
			order.PayURL, _ = value.(string)
		case "provider_trade_no":
			order.ProviderTradeNo, _ = value.(string)
		case "refund_no":
			order.RefundNo, _ = value.(string)
		case "provider_refund_no":
			order.ProviderRefundNo, _ = value.(string)
		case "fail_reason":
			order.FailReason, _ = value.(string)
		case "refund_amount":
			if amount, ok := value.(models.Money); ok {
				order.RefundAmount = amount
			}
		case "paid_at":
			order.PaidAt = toTimePtr(value)
		case "closed_at":
			order.ClosedAt = toTimePtr(value)
		case "refunded_at":
			order.RefundedAt = toTimePtr(value)
		case "updated_at":
			if t := toTimePtr(value); t != nil {
				order.UpdatedAt = *t
			}
		}
	}
}

func toTimePtr(value interface{}) *time.Time {
	switch v := value.(type) {
	case time.Time:
		return &v
	case *time.Time:
		return v
	default:
		return nil
	}
}
