package worker

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/paycore/internal/queue"
	"github.com/paycore/internal/service"

	"github.com/hibiken/asynq"
)

type stubExpirer struct {
	ids []uint
	err error
}

func (s *stubExpirer) ExpireOrder(_ context.Context, orderID uint) error {
	s.ids = append(s.ids, orderID)
	return s.err
}

func TestHandleOrderTimeoutCallsEngine(t *testing.T) {
	expirer := &stubExpirer{}
	consumer := &Consumer{orders: expirer}

	task, err := queue.NewOrderTimeoutTask(queue.OrderTimeoutPayload{OrderID: 7, OrderNo: "P7"})
	if err != nil {
		t.Fatalf("build task failed: %v", err)
	}
	if err := consumer.handleOrderTimeout(context.Background(), task); err != nil {
		t.Fatalf("handle failed: %v", err)
	}
	if len(expirer.ids) != 1 || expirer.ids[0] != 7 {
		t.Fatalf("unexpected expire calls: %v", expirer.ids)
	}

	expirer.err = service.ErrStoreUnavailable
	if err := consumer.handleOrderTimeout(context.Background(), task); !errors.Is(err, service.ErrStoreUnavailable) {
		t.Fatalf("store failure should be retried, got %v", err)
	}
}

func TestHandleOrderTimeoutSkipsInvalidPayload(t *testing.T) {
	expirer := &stubExpirer{}
	consumer := &Consumer{orders: expirer}

	body, _ := json.Marshal(queue.OrderTimeoutPayload{})
	if err := consumer.handleOrderTimeout(context.Background(), asynq.NewTask(queue.TaskOrderTimeout, body)); err != nil {
		t.Fatalf("expected nil for empty payload, got %v", err)
	}
	if err := consumer.handleOrderTimeout(context.Background(), asynq.NewTask(queue.TaskOrderTimeout, []byte("{"))); err == nil {
		t.Fatalf("expected unmarshal error")
	}
	if len(expirer.ids) != 0 {
		t.Fatalf("engine should not be called, got %v", expirer.ids)
	}
}
