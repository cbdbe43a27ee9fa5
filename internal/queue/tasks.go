package queue

import (
	"encoding/json"

	"github.com/paycore/internal/constants"

	"github.com/hibiken/asynq"
)

const (
	// TaskOrderTimeout 单笔订单延时超时任务
	TaskOrderTimeout = constants.TaskOrderTimeout
	// TaskOrderEvent 订单终态事件，供进程外消费者订阅
	TaskOrderEvent = constants.TaskOrderEvent
)

// OrderTimeoutPayload 订单超时任务载荷
type OrderTimeoutPayload struct {
	OrderID uint   `json:"order_id"`
	OrderNo string `json:"order_no"`
}

// OrderEventPayload 订单事件任务载荷
type OrderEventPayload struct {
	Topic string          `json:"topic"`
	Body  json.RawMessage `json:"body"`
}

// NewOrderTimeoutTask 创建订单超时任务
func NewOrderTimeoutTask(payload OrderTimeoutPayload) (*asynq.Task, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskOrderTimeout, body), nil
}

// NewOrderEventTask 创建订单事件任务
func NewOrderEventTask(payload OrderEventPayload) (*asynq.Task, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskOrderEvent, body), nil
}
