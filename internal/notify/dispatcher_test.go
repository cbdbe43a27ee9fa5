package notify

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/paycore/internal/constants"
	"github.com/paycore/internal/models"
)

type recordingPublisher struct {
	mu       sync.Mutex
	topics   []string
	payloads [][]byte
	err      error
	closed   bool
}

func (p *recordingPublisher) Name() string { return "recording" }

func (p *recordingPublisher) Publish(_ context.Context, topic string, payload []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.topics = append(p.topics, topic)
	p.payloads = append(p.payloads, payload)
	return p.err
}

func (p *recordingPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

func (p *recordingPublisher) Topics() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.topics...)
}

func testEvent(orderNo, status string) Event {
	return Event{
		OrderID:     1,
		OrderNo:     orderNo,
		TradeSource: constants.TradeSourceWechat,
		Status:      status,
		Amount:      models.NewMoneyFromFen(1000),
		OccurredAt:  time.Now(),
	}
}

func TestDispatchRoutesBySourceAndStatus(t *testing.T) {
	d := NewDispatcher(Options{}, nil)

	var mu sync.Mutex
	calls := map[string]int{}
	record := func(name string) Listener {
		return ListenerFunc(func(ctx context.Context, event Event) error {
			mu.Lock()
			calls[name]++
			mu.Unlock()
			return nil
		})
	}
	d.Register(constants.TradeSourceWechat, constants.OrderStatusPaid, "paid", record("paid"))
	d.Register(constants.TradeSourceWechat, constants.OrderStatusAny, "any", record("any"))
	d.Register(constants.TradeSourceWechat, constants.OrderStatusTimeout, "timeout", record("timeout"))
	d.Register("alipay", constants.OrderStatusAny, "other_source", record("other_source"))

	d.Dispatch(context.Background(), testEvent("P1", constants.OrderStatusPaid))

	if calls["paid"] != 1 || calls["any"] != 1 {
		t.Fatalf("expected paid and wildcard listeners invoked once, got %v", calls)
	}
	if calls["timeout"] != 0 || calls["other_source"] != 0 {
		t.Fatalf("unexpected listener invocation: %v", calls)
	}
}

func TestDispatchIsolatesListenerFailures(t *testing.T) {
	d := NewDispatcher(Options{ListenerTimeout: 50 * time.Millisecond}, nil)

	reached := 0
	d.Register(constants.TradeSourceWechat, constants.OrderStatusAny, "error", ListenerFunc(func(ctx context.Context, event Event) error {
		return errors.New("boom")
	}))
	d.Register(constants.TradeSourceWechat, constants.OrderStatusAny, "panic", ListenerFunc(func(ctx context.Context, event Event) error {
		panic("listener exploded")
	}))
	d.Register(constants.TradeSourceWechat, constants.OrderStatusAny, "slow", ListenerFunc(func(ctx context.Context, event Event) error {
		<-ctx.Done()
		return ctx.Err()
	}))
	d.Register(constants.TradeSourceWechat, constants.OrderStatusAny, "ok", ListenerFunc(func(ctx context.Context, event Event) error {
		reached++
		return nil
	}))

	start := time.Now()
	d.Dispatch(context.Background(), testEvent("P2", constants.OrderStatusPaid))
	if reached != 1 {
		t.Fatalf("expected healthy listener to run after failing ones, got %d", reached)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("slow listener should be bounded by its timeout, took %v", elapsed)
	}
}

func TestDispatchForwardsToPublisher(t *testing.T) {
	publisher := &recordingPublisher{err: errors.New("broker down")}
	d := NewDispatcher(Options{TopicPrefix: "/pay/orders/"}, publisher)

	d.Dispatch(context.Background(), testEvent("P3", constants.OrderStatusTimeout))

	topics := publisher.Topics()
	if len(topics) != 1 || topics[0] != "pay/orders/wechat/timeout" {
		t.Fatalf("unexpected topics: %v", topics)
	}
	var decoded Event
	if err := json.Unmarshal(publisher.payloads[0], &decoded); err != nil {
		t.Fatalf("payload is not json: %v", err)
	}
	if decoded.OrderNo != "P3" || decoded.Amount.Fen() != 1000 {
		t.Fatalf("unexpected payload: %+v", decoded)
	}
}

func TestPublishRejectsWhenQueueFull(t *testing.T) {
	d := NewDispatcher(Options{QueueSize: 1, Overflow: constants.OverflowReject}, nil)

	if !d.Publish(testEvent("P4", constants.OrderStatusPaid)) {
		t.Fatalf("first publish should be accepted")
	}
	if d.Publish(testEvent("P5", constants.OrderStatusPaid)) {
		t.Fatalf("second publish should be rejected when queue is full")
	}
	if d.Dropped() != 1 || d.Pending() != 1 {
		t.Fatalf("unexpected counters dropped=%d pending=%d", d.Dropped(), d.Pending())
	}
}

func TestPublishDropsOldestWhenQueueFull(t *testing.T) {
	publisher := &recordingPublisher{}
	d := NewDispatcher(Options{QueueSize: 2, Workers: 1}, publisher)

	for _, no := range []string{"A", "B", "C"} {
		if !d.Publish(testEvent(no, constants.OrderStatusPaid)) {
			t.Fatalf("publish %s should be accepted under drop_oldest", no)
		}
	}
	if d.Dropped() != 1 || d.Pending() != 2 {
		t.Fatalf("unexpected counters dropped=%d pending=%d", d.Dropped(), d.Pending())
	}

	d.StartWorkers()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := d.Stop(ctx); err != nil {
		t.Fatalf("stop failed: %v", err)
	}

	var delivered []string
	for _, payload := range publisher.payloads {
		var event Event
		if err := json.Unmarshal(payload, &event); err != nil {
			t.Fatalf("decode payload failed: %v", err)
		}
		delivered = append(delivered, event.OrderNo)
	}
	if len(delivered) != 2 || delivered[0] != "B" || delivered[1] != "C" {
		t.Fatalf("expected oldest event dropped, delivered=%v", delivered)
	}
	if !publisher.closed {
		t.Fatalf("publisher should be closed on stop")
	}
}

func TestStopDrainsQueueAndRejectsLatePublish(t *testing.T) {
	d := NewDispatcher(Options{Workers: 2}, nil)
	var mu sync.Mutex
	seen := 0
	d.Register(constants.TradeSourceWechat, constants.OrderStatusAny, "count", ListenerFunc(func(ctx context.Context, event Event) error {
		mu.Lock()
		seen++
		mu.Unlock()
		return nil
	}))
	for i := 0; i < 10; i++ {
		d.Publish(testEvent("D", constants.OrderStatusPaid))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := d.Stop(ctx); err != nil {
		t.Fatalf("stop failed: %v", err)
	}
	if seen != 10 {
		t.Fatalf("expected all queued events delivered, got %d", seen)
	}
	if d.Publish(testEvent("late", constants.OrderStatusPaid)) {
		t.Fatalf("publish after stop should be refused")
	}
}

func TestEventTopic(t *testing.T) {
	event := testEvent("T", constants.OrderStatusRefunded)
	if got := event.Topic(""); got != "wechat/refunded" {
		t.Fatalf("unexpected topic without prefix: %s", got)
	}
	event.TradeSource = ""
	if got := event.Topic("pay"); got != "pay/unknown/refunded" {
		t.Fatalf("unexpected topic for empty source: %s", got)
	}
}
