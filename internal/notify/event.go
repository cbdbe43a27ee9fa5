package notify

import (
	"context"
	"strings"
	"time"

	"github.com/paycore/internal/models"
)

// Event 订单状态变更快照
type Event struct {
	OrderID         uint         `json:"order_id"`
	OrderNo         string       `json:"order_no"`
	MerchantID      uint         `json:"merchant_id"`
	MerchantNo      string       `json:"merchant_no"`
	BusinessKey     string       `json:"business_key"`
	TradeType       string       `json:"trade_type"`
	TradeSource     string       `json:"trade_source"`
	FromStatus      string       `json:"from_status"`
	Status          string       `json:"status"`
	Amount          models.Money `json:"amount"`
	RefundAmount    models.Money `json:"refund_amount"`
	Currency        string       `json:"currency"`
	ProviderTradeNo string       `json:"provider_trade_no,omitempty"`
	Source          string       `json:"source"`
	Remark          string       `json:"remark,omitempty"`
	OccurredAt      time.Time    `json:"occurred_at"`
}

// NewEvent 由订单快照构建事件
func NewEvent(order models.Order, fromStatus, source, remark string, at time.Time) Event {
	return Event{
		OrderID:         order.ID,
		OrderNo:         order.OrderNo,
		MerchantID:      order.MerchantID,
		MerchantNo:      order.MerchantNo,
		BusinessKey:     order.BusinessKey,
		TradeType:       order.TradeType,
		TradeSource:     order.TradeSource,
		FromStatus:      fromStatus,
		Status:          order.Status,
		Amount:          order.Amount,
		RefundAmount:    order.RefundAmount,
		Currency:        order.Currency,
		ProviderTradeNo: order.ProviderTradeNo,
		Source:          source,
		Remark:          remark,
		OccurredAt:      at,
	}
}

// Topic 消息通道主题：<prefix>/<trade_source>/<status>
func (e Event) Topic(prefix string) string {
	parts := make([]string, 0, 3)
	if p := strings.Trim(strings.TrimSpace(prefix), "/"); p != "" {
		parts = append(parts, p)
	}
	source := strings.TrimSpace(e.TradeSource)
	if source == "" {
		source = "unknown"
	}
	return strings.Join(append(parts, source, e.Status), "/")
}

// Listener 订单事件监听器
type Listener interface {
	OnEvent(ctx context.Context, event Event) error
}

// ListenerFunc 函数式监听器
type ListenerFunc func(ctx context.Context, event Event) error

// OnEvent 实现 Listener
func (f ListenerFunc) OnEvent(ctx context.Context, event Event) error {
	return f(ctx, event)
}
