package worker

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/paycore/internal/logger"
	"github.com/paycore/internal/provider"
	"github.com/paycore/internal/queue"
	"github.com/paycore/internal/service"

	"github.com/hibiken/asynq"
)

// OrderExpirer 单笔订单到期处理
type OrderExpirer interface {
	ExpireOrder(ctx context.Context, orderID uint) error
}

// Consumer 异步任务消费者
type Consumer struct {
	orders OrderExpirer
}

// NewConsumer 创建消费者
func NewConsumer(c *provider.Container) *Consumer {
	if c == nil || c.OrderService == nil {
		return &Consumer{}
	}
	return &Consumer{orders: c.OrderService}
}

// Register 注册消费者
func (c *Consumer) Register(mux *asynq.ServeMux) {
	if c == nil || mux == nil {
		logger.Debugw("worker_register_skip_nil", "consumer_nil", c == nil, "mux_nil", mux == nil)
		return
	}
	mux.HandleFunc(queue.TaskOrderTimeout, c.handleOrderTimeout)
	mux.HandleFunc(queue.TaskOrderEvent, c.handleOrderEvent)
}

func (c *Consumer) handleOrderTimeout(ctx context.Context, task *asynq.Task) error {
	if c == nil || task == nil {
		logger.Debugw("worker_order_timeout_skip_nil", "consumer_nil", c == nil, "task_nil", task == nil)
		return nil
	}
	var payload queue.OrderTimeoutPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		logger.Warnw("worker_order_timeout_unmarshal_failed", "error", err)
		return err
	}
	if payload.OrderID == 0 {
		logger.Debugw("worker_order_timeout_skip_invalid_payload", "order_no", payload.OrderNo)
		return nil
	}
	if c.orders == nil {
		logger.Warnw("worker_order_timeout_skip_order_service_nil", "order_id", payload.OrderID)
		return nil
	}
	if err := c.orders.ExpireOrder(ctx, payload.OrderID); err != nil {
		if errors.Is(err, service.ErrStoreUnavailable) {
			logger.Warnw("worker_order_timeout_store_failed", "order_id", payload.OrderID, "error", err)
			return err
		}
		logger.Warnw("worker_order_timeout_failed", "order_id", payload.OrderID, "order_no", payload.OrderNo, "error", err)
		return err
	}
	return nil
}

// handleOrderEvent 消费 asynq 通道上的终态事件，仅记录日志
func (c *Consumer) handleOrderEvent(_ context.Context, task *asynq.Task) error {
	if task == nil {
		return nil
	}
	var payload queue.OrderEventPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		logger.Warnw("worker_order_event_unmarshal_failed", "error", err)
		return nil
	}
	logger.Infow("worker_order_event_received", "topic", payload.Topic, "size", len(payload.Body))
	return nil
}
