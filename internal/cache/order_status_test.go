package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func setupMiniRedis(t *testing.T) *miniredis.Miniredis {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	Use(client, "test")
	t.Cleanup(func() {
		Use(nil, "")
		_ = client.Close()
	})
	return mr
}

func TestOrderStatusRoundTrip(t *testing.T) {
	mr := setupMiniRedis(t)
	ctx := context.Background()
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	if written, err := SetOrderStatus(ctx, OrderStatusSnapshot{OrderNo: "P001", Status: "paid", UpdatedAt: now}, time.Minute); err != nil || !written {
		t.Fatalf("set status failed: written=%v err=%v", written, err)
	}
	if !mr.Exists("test:order:status:P001") {
		t.Fatalf("expected prefixed key in redis, keys=%v", mr.Keys())
	}
	if ttl := mr.TTL("test:order:status:P001"); ttl != time.Minute {
		t.Fatalf("expected ttl 1m, got %v", ttl)
	}

	snapshot, hit, err := GetOrderStatus(ctx, "P001")
	if err != nil || !hit {
		t.Fatalf("expected cache hit, hit=%v err=%v", hit, err)
	}
	if snapshot.Status != "paid" || !snapshot.UpdatedAt.Equal(now) {
		t.Fatalf("unexpected snapshot: %+v", snapshot)
	}

	if err := DelOrderStatus(ctx, "P001"); err != nil {
		t.Fatalf("del status failed: %v", err)
	}
	if _, hit, _ := GetOrderStatus(ctx, "P001"); hit {
		t.Fatalf("expected miss after delete")
	}
}

func TestOrderStatusDisabledIsNoop(t *testing.T) {
	Use(nil, "")
	ctx := context.Background()
	if _, err := SetOrderStatus(ctx, OrderStatusSnapshot{OrderNo: "P002", Status: "paid"}, 0); err != nil {
		t.Fatalf("set on disabled cache should be noop, got %v", err)
	}
	if _, hit, err := GetOrderStatus(ctx, "P002"); hit || err != nil {
		t.Fatalf("expected miss without error, hit=%v err=%v", hit, err)
	}
}

func TestOrderStatusOlderSnapshotDoesNotOverwrite(t *testing.T) {
	setupMiniRedis(t)
	ctx := context.Background()
	loadedAt := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	timedOutAt := loadedAt.Add(time.Second)

	if written, err := SetOrderStatus(ctx, OrderStatusSnapshot{OrderNo: "P003", Status: "timeout", UpdatedAt: timedOutAt}, time.Minute); err != nil || !written {
		t.Fatalf("set newer failed: written=%v err=%v", written, err)
	}
	written, err := SetOrderStatus(ctx, OrderStatusSnapshot{OrderNo: "P003", Status: "pending_payment", UpdatedAt: loadedAt}, time.Minute)
	if err != nil {
		t.Fatalf("set older failed: %v", err)
	}
	if written {
		t.Fatalf("older snapshot must be rejected")
	}
	snapshot, hit, err := GetOrderStatus(ctx, "P003")
	if err != nil || !hit || snapshot.Status != "timeout" {
		t.Fatalf("expected timeout to survive, got %+v hit=%v err=%v", snapshot, hit, err)
	}

	if written, err := SetOrderStatus(ctx, OrderStatusSnapshot{OrderNo: "P003", Status: "timeout", UpdatedAt: timedOutAt}, time.Minute); err != nil || !written {
		t.Fatalf("same version rewrite should pass: written=%v err=%v", written, err)
	}
}
