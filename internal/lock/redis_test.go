package lock

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestRedisProviderAcquireAndRelease(t *testing.T) {
	mr, client := newTestRedis(t)
	p, err := NewRedis(client, "pay:lock:", 5*time.Second, 5*time.Millisecond)
	if err != nil {
		t.Fatalf("new redis provider failed: %v", err)
	}
	ctx := context.Background()

	held, err := p.Acquire(ctx, "create:M1:biz-1", 0)
	if err != nil {
		t.Fatalf("acquire failed: %v", err)
	}
	if !mr.Exists("pay:lock:create:M1:biz-1") {
		t.Fatalf("lock key should exist in redis")
	}
	if _, err := p.Acquire(ctx, "create:M1:biz-1", 30*time.Millisecond); !errors.Is(err, ErrAcquireTimeout) {
		t.Fatalf("expected ErrAcquireTimeout, got %v", err)
	}

	held.Release()
	if mr.Exists("pay:lock:create:M1:biz-1") {
		t.Fatalf("lock key should be removed on release")
	}
}

func TestRedisProviderStaleReleaseKeepsNewOwner(t *testing.T) {
	mr, client := newTestRedis(t)
	p, err := NewRedis(client, "pay:lock:", time.Second, 5*time.Millisecond)
	if err != nil {
		t.Fatalf("new redis provider failed: %v", err)
	}
	ctx := context.Background()

	stale, err := p.Acquire(ctx, "refund:42", 0)
	if err != nil {
		t.Fatalf("acquire failed: %v", err)
	}
	mr.FastForward(2 * time.Second)

	owner, err := p.Acquire(ctx, "refund:42", 0)
	if err != nil {
		t.Fatalf("acquire after expiry failed: %v", err)
	}
	stale.Release()
	if !mr.Exists("pay:lock:refund:42") {
		t.Fatalf("stale lease must not delete the new owner's key")
	}
	owner.Release()
	if mr.Exists("pay:lock:refund:42") {
		t.Fatalf("owner release should delete key")
	}
}

func TestRedissonProviderAcquireAndRelease(t *testing.T) {
	_, client := newTestRedis(t)
	p, err := NewRedisson(client, "pay:lock:", 3*time.Second, 10*time.Millisecond)
	if err != nil {
		t.Fatalf("new redisson provider failed: %v", err)
	}
	ctx := context.Background()

	held, err := p.Acquire(ctx, "create:M2:biz-2", 0)
	if err != nil {
		t.Fatalf("acquire failed: %v", err)
	}
	if _, err := p.Acquire(ctx, "create:M2:biz-2", 50*time.Millisecond); !errors.Is(err, ErrAcquireTimeout) {
		t.Fatalf("expected ErrAcquireTimeout, got %v", err)
	}
	held.Release()

	next, err := p.Acquire(ctx, "create:M2:biz-2", 200*time.Millisecond)
	if err != nil {
		t.Fatalf("acquire after release failed: %v", err)
	}
	next.Release()
}
