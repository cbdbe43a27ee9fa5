package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/paycore/internal/constants"
	"github.com/paycore/internal/logger"
)

const (
	defaultWorkers         = 4
	defaultQueueSize       = 1024
	defaultListenerTimeout = 5 * time.Second
	defaultPublishTimeout  = 3 * time.Second
)

// ErrDispatcherClosed 分发器已停止
var ErrDispatcherClosed = errors.New("notify dispatcher closed")

// Options 分发器参数
type Options struct {
	Workers         int
	QueueSize       int
	Overflow        string
	ListenerTimeout time.Duration
	PublishTimeout  time.Duration
	TopicPrefix     string
}

type registration struct {
	name     string
	status   string
	listener Listener
}

// Dispatcher 订单事件分发器
// 事件先进入有界队列，由固定数量的 worker 逐个调用监听器，再投递到消息通道。
type Dispatcher struct {
	opts      Options
	publisher Publisher

	regMu     sync.RWMutex
	listeners map[string][]registration

	queueMu  sync.RWMutex
	queue    chan Event
	closed   bool
	overflow sync.Mutex

	workersOnce sync.Once
	stopOnce    sync.Once
	wg          sync.WaitGroup

	dropped atomic.Int64
}

// NewDispatcher 创建分发器，publisher 为空时不投递消息通道
func NewDispatcher(opts Options, publisher Publisher) *Dispatcher {
	if opts.Workers <= 0 {
		opts.Workers = defaultWorkers
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = defaultQueueSize
	}
	if opts.Overflow != constants.OverflowReject {
		opts.Overflow = constants.OverflowDropOldest
	}
	if opts.ListenerTimeout <= 0 {
		opts.ListenerTimeout = defaultListenerTimeout
	}
	if opts.PublishTimeout <= 0 {
		opts.PublishTimeout = defaultPublishTimeout
	}
	if publisher == nil {
		publisher = NoopPublisher{}
	}
	return &Dispatcher{
		opts:      opts,
		publisher: publisher,
		listeners: make(map[string][]registration),
		queue:     make(chan Event, opts.QueueSize),
	}
}

// Register 注册监听器，status 为 "*" 时匹配任意状态
func (d *Dispatcher) Register(tradeSource, status, name string, listener Listener) {
	if d == nil || listener == nil {
		return
	}
	source := strings.TrimSpace(tradeSource)
	status = strings.TrimSpace(status)
	if status == "" {
		status = constants.OrderStatusAny
	}
	d.regMu.Lock()
	defer d.regMu.Unlock()
	d.listeners[source] = append(d.listeners[source], registration{
		name:     strings.TrimSpace(name),
		status:   status,
		listener: listener,
	})
}

// Publish 非阻塞投递事件，返回事件是否入队
func (d *Dispatcher) Publish(event Event) bool {
	if d == nil {
		return false
	}
	d.queueMu.RLock()
	defer d.queueMu.RUnlock()
	if d.closed {
		logger.Warnw("notify_event_after_close", "order_no", event.OrderNo, "status", event.Status)
		return false
	}
	select {
	case d.queue <- event:
		return true
	default:
	}

	if d.opts.Overflow == constants.OverflowReject {
		d.dropped.Add(1)
		logger.Warnw("notify_queue_full_rejected", "order_no", event.OrderNo, "status", event.Status)
		return false
	}

	d.overflow.Lock()
	defer d.overflow.Unlock()
	for {
		select {
		case d.queue <- event:
			return true
		default:
		}
		select {
		case oldest := <-d.queue:
			d.dropped.Add(1)
			logger.Warnw("notify_queue_full_dropped_oldest",
				"dropped_order_no", oldest.OrderNo,
				"dropped_status", oldest.Status,
				"order_no", event.OrderNo,
			)
		default:
		}
	}
}

// Dropped 因队列溢出被丢弃的事件数
func (d *Dispatcher) Dropped() int64 {
	if d == nil {
		return 0
	}
	return d.dropped.Load()
}

// Pending 队列中待处理的事件数
func (d *Dispatcher) Pending() int {
	if d == nil {
		return 0
	}
	return len(d.queue)
}

// Name 服务名称
func (d *Dispatcher) Name() string {
	return "notify"
}

// Start 启动 worker 并阻塞到 ctx 结束
func (d *Dispatcher) Start(ctx context.Context) error {
	d.StartWorkers()
	<-ctx.Done()
	return nil
}

// StartWorkers 启动 worker，可重复调用
func (d *Dispatcher) StartWorkers() {
	d.workersOnce.Do(func() {
		for i := 0; i < d.opts.Workers; i++ {
			d.wg.Add(1)
			go d.work()
		}
	})
}

// Stop 关闭队列并等待剩余事件处理完毕
func (d *Dispatcher) Stop(ctx context.Context) error {
	d.stopOnce.Do(func() {
		d.queueMu.Lock()
		d.closed = true
		close(d.queue)
		d.queueMu.Unlock()
	})
	d.StartWorkers()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		logger.Warnw("notify_drain_timeout", "pending", len(d.queue))
		return ctx.Err()
	}
	if err := d.publisher.Close(); err != nil {
		logger.Warnw("notify_publisher_close_failed", "publisher", d.publisher.Name(), "error", err)
	}
	return nil
}

func (d *Dispatcher) work() {
	defer d.wg.Done()
	for event := range d.queue {
		d.Dispatch(context.Background(), event)
	}
}

// Dispatch 同步处理单个事件：依次调用匹配的监听器，再投递消息通道
func (d *Dispatcher) Dispatch(ctx context.Context, event Event) {
	for _, reg := range d.match(event) {
		d.invoke(ctx, reg, event)
	}
	d.forward(ctx, event)
}

func (d *Dispatcher) match(event Event) []registration {
	d.regMu.RLock()
	defer d.regMu.RUnlock()
	regs := d.listeners[strings.TrimSpace(event.TradeSource)]
	matched := make([]registration, 0, len(regs))
	for _, reg := range regs {
		if reg.status == constants.OrderStatusAny || reg.status == event.Status {
			matched = append(matched, reg)
		}
	}
	return matched
}

func (d *Dispatcher) invoke(ctx context.Context, reg registration, event Event) {
	ctx, cancel := context.WithTimeout(ctx, d.opts.ListenerTimeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- fmt.Errorf("listener panic: %v", r)
			}
		}()
		done <- reg.listener.OnEvent(ctx, event)
	}()

	var err error
	select {
	case err = <-done:
	case <-ctx.Done():
		err = ctx.Err()
	}
	if err != nil {
		logger.Errorw("notify_listener_failed",
			"listener", reg.name,
			"order_no", event.OrderNo,
			"trade_source", event.TradeSource,
			"status", event.Status,
			"error", err,
		)
	}
}

func (d *Dispatcher) forward(ctx context.Context, event Event) {
	if _, ok := d.publisher.(NoopPublisher); ok {
		return
	}
	payload, err := json.Marshal(event)
	if err != nil {
		logger.Errorw("notify_event_marshal_failed", "order_no", event.OrderNo, "error", err)
		return
	}
	ctx, cancel := context.WithTimeout(ctx, d.opts.PublishTimeout)
	defer cancel()
	topic := event.Topic(d.opts.TopicPrefix)
	if err := d.publisher.Publish(ctx, topic, payload); err != nil {
		logger.Warnw("notify_publish_failed",
			"publisher", d.publisher.Name(),
			"topic", topic,
			"order_no", event.OrderNo,
			"error", err,
		)
	}
}
