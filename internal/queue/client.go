package queue

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/paycore/internal/config"
	"github.com/paycore/internal/constants"

	"github.com/hibiken/asynq"
)

const (
	// DefaultQueue 超时任务队列
	DefaultQueue = constants.QueueDefault
	// CriticalQueue 终态事件队列
	CriticalQueue = constants.QueueCritical

	orderTimeoutMaxRetry = 3
	orderEventMaxRetry   = 5
)

// ErrQueueDisabled 队列未启用
var ErrQueueDisabled = errors.New("queue disabled")

// Client asynq 客户端，未启用时所有投递为空操作
type Client struct {
	client    *asynq.Client
	inspector *asynq.Inspector
}

// NewClient 创建队列客户端
func NewClient(cfg *config.QueueConfig) (*Client, error) {
	if cfg == nil || !cfg.Enabled {
		return &Client{}, nil
	}
	opt := RedisOpt(cfg)
	return &Client{
		client:    asynq.NewClient(opt),
		inspector: asynq.NewInspector(opt),
	}, nil
}

// Enabled 判断是否启用
func (c *Client) Enabled() bool {
	return c != nil && c.client != nil
}

// Close 关闭客户端
func (c *Client) Close() error {
	if !c.Enabled() {
		return nil
	}
	err := c.client.Close()
	if c.inspector != nil {
		if cerr := c.inspector.Close(); err == nil {
			err = cerr
		}
	}
	return err
}

func orderTimeoutTaskID(orderID uint) string {
	return fmt.Sprintf("order-timeout-%d", orderID)
}

// EnqueueOrderTimeout 投递订单延时超时任务，同一订单只保留一个任务
func (c *Client) EnqueueOrderTimeout(ctx context.Context, payload OrderTimeoutPayload, delay time.Duration) error {
	if !c.Enabled() {
		return nil
	}
	task, err := NewOrderTimeoutTask(payload)
	if err != nil {
		return err
	}
	if delay < 0 {
		delay = 0
	}
	_, err = c.client.EnqueueContext(ctx, task,
		asynq.Queue(DefaultQueue),
		asynq.ProcessIn(delay),
		asynq.TaskID(orderTimeoutTaskID(payload.OrderID)),
		asynq.MaxRetry(orderTimeoutMaxRetry),
	)
	if errors.Is(err, asynq.ErrTaskIDConflict) {
		return nil
	}
	return err
}

// CancelOrderTimeout 订单离开待支付后撤销尚未执行的超时任务
func (c *Client) CancelOrderTimeout(orderID uint) error {
	if !c.Enabled() || c.inspector == nil {
		return nil
	}
	err := c.inspector.DeleteTask(DefaultQueue, orderTimeoutTaskID(orderID))
	if errors.Is(err, asynq.ErrTaskNotFound) || errors.Is(err, asynq.ErrQueueNotFound) {
		return nil
	}
	return err
}

// EnqueueOrderEvent 投递订单终态事件
func (c *Client) EnqueueOrderEvent(ctx context.Context, payload OrderEventPayload) error {
	if !c.Enabled() {
		return ErrQueueDisabled
	}
	task, err := NewOrderEventTask(payload)
	if err != nil {
		return err
	}
	_, err = c.client.EnqueueContext(ctx, task, asynq.Queue(CriticalQueue), asynq.MaxRetry(orderEventMaxRetry))
	return err
}

// RedisOpt 队列 Redis 连接参数
func RedisOpt(cfg *config.QueueConfig) asynq.RedisClientOpt {
	opt := asynq.RedisClientOpt{Addr: "127.0.0.1:6379"}
	if cfg == nil {
		return opt
	}
	host := strings.TrimSpace(cfg.Host)
	if host == "" {
		host = "127.0.0.1"
	}
	port := cfg.Port
	if port <= 0 {
		port = 6379
	}
	opt.Addr = fmt.Sprintf("%s:%d", host, port)
	opt.Password = cfg.Password
	opt.DB = cfg.DB
	return opt
}

// ServerQueues 消费队列权重，未配置时两个队列都消费
func ServerQueues(cfg *config.QueueConfig) map[string]int {
	if cfg != nil && len(cfg.Queues) > 0 {
		return cfg.Queues
	}
	return map[string]int{CriticalQueue: 2, DefaultQueue: 1}
}
