package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/paycore/internal/constants"
	"github.com/paycore/internal/lock"
	"github.com/paycore/internal/logger"
	"github.com/paycore/internal/models"
	"github.com/paycore/internal/payment"

	"github.com/google/uuid"
)

// RefundInput 退款申请输入
type RefundInput struct {
	MerchantNo string
	OrderNo    string
	Amount     models.Money
	Reason     string
}

// RequestRefund 对已支付订单发起退款；同一订单的退款申请串行执行，重复申请返回当前订单
func (s *OrderService) RequestRefund(ctx context.Context, input RefundInput) (*models.Order, error) {
	order, err := s.loadOrder(ctx, input.MerchantNo, input.OrderNo)
	if err != nil {
		return nil, err
	}

	lease, err := s.locks.Acquire(ctx, lock.Key("refund", order.OrderNo), s.opts.RefundLockWait)
	if err != nil {
		logger.Warnw("order_refund_lock_failed", "order_no", order.OrderNo, "error", err)
		return nil, fmt.Errorf("%w: %v", ErrLockAcquire, err)
	}
	defer lease.Release()

	order, err = s.orderRepo.GetByID(ctx, order.ID)
	if err != nil {
		return nil, storeError(err)
	}
	if order == nil {
		return nil, ErrOrderNotFound
	}
	switch order.Status {
	case constants.OrderStatusRefundRequested, constants.OrderStatusRefunded:
		return order, nil
	case constants.OrderStatusPaid:
	default:
		return nil, fmt.Errorf("%w: status %s", ErrRefundNotAllowed, order.Status)
	}

	amount := input.Amount
	if !amount.IsPositive() {
		amount = order.Amount
	}
	if amount.GreaterThan(order.Amount.Decimal) {
		return nil, fmt.Errorf("%w: refund amount exceeds order amount", ErrInvalidOrderInput)
	}
	if !amount.Equal(amount.Round(2)) {
		return nil, fmt.Errorf("%w: %v", ErrInvalidOrderInput, models.ErrMoneyPrecision)
	}
	reason := truncateReason(input.Reason)
	refundNo := "R" + strings.ReplaceAll(uuid.NewString(), "-", "")

	result, err := s.transitionOrder(ctx, order, constants.OrderStatusRefundRequested, constants.FlowSourceMerchant, reason,
		map[string]interface{}{
			"refund_no":     refundNo,
			"refund_amount": models.NewMoneyFromDecimal(amount.Decimal),
		})
	if err != nil {
		return nil, err
	}
	order = result.Order
	if !result.Changed {
		return order, nil
	}

	cfg, gateway, err := s.orderGateway(ctx, order)
	if err != nil {
		return nil, err
	}
	if gateway == nil {
		return order, nil
	}
	refund, err := gateway.Refund(ctx, payment.RefundRequest{
		OrderNo:         order.OrderNo,
		ProviderTradeNo: order.ProviderTradeNo,
		RefundNo:        order.RefundNo,
		Reason:          reason,
		Amount:          order.RefundAmount,
		Total:           order.Amount,
		Currency:        order.Currency,
		NotifyURL:       buildNotifyURL(s.refundNotifyBase(), cfg.ID),
		Config:          cfg,
	})
	if err != nil {
		logger.Warnw("order_refund_gateway_failed", "order_no", order.OrderNo, "refund_no", order.RefundNo, "error", err)
		failReason := truncateReason(err.Error())
		failed, ferr := s.transitionOrder(ctx, order, constants.OrderStatusRefundFailed, constants.FlowSourceGateway, failReason,
			map[string]interface{}{"fail_reason": failReason})
		if ferr != nil {
			return nil, ferr
		}
		return failed.Order, nil
	}

	switch refund.Status {
	case constants.OrderStatusRefunded, constants.OrderStatusRefundFailed:
		fields := map[string]interface{}{}
		if refund.ProviderRefundNo != "" {
			fields["provider_refund_no"] = refund.ProviderRefundNo
		}
		done, err := s.transitionOrder(ctx, order, refund.Status, constants.FlowSourceGateway, "", fields)
		if err != nil {
			return nil, err
		}
		return done.Order, nil
	default:
		if refund.ProviderRefundNo != "" {
			// 状态不变，仅回填渠道退款单号
			if _, err := s.orderRepo.UpdateStatusIf(ctx, order.ID, constants.OrderStatusRefundRequested,
				constants.OrderStatusRefundRequested, map[string]interface{}{
					"provider_refund_no": refund.ProviderRefundNo,
					"updated_at":         s.now(),
				}); err != nil {
				logger.Warnw("order_refund_no_save_failed", "order_no", order.OrderNo, "error", err)
			} else {
				order.ProviderRefundNo = refund.ProviderRefundNo
			}
		}
		return order, nil
	}
}

func (s *OrderService) refundNotifyBase() string {
	if base := strings.TrimSpace(s.opts.RefundNotifyBaseURL); base != "" {
		return base
	}
	return s.opts.NotifyBaseURL
}
