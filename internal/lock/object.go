package lock

import (
	"context"
	"strings"
	"time"

	"github.com/paycore/internal/constants"
)

// ObjectProvider 进程内锁，每个 key 对应一个容量为 1 的 channel
type ObjectProvider struct {
	locks *arena[chan struct{}]
}

// NewObject 创建进程内锁
func NewObject() *ObjectProvider {
	return &ObjectProvider{
		locks: newArena(func(string) chan struct{} {
			return make(chan struct{}, 1)
		}),
	}
}

// Type 锁类型
func (p *ObjectProvider) Type() string { return constants.LockTypeObject }

// Size 当前缓存的 key 数量
func (p *ObjectProvider) Size() int { return p.locks.size() }

// Acquire 获取锁
func (p *ObjectProvider) Acquire(ctx context.Context, key string, wait time.Duration) (*Lease, error) {
	if strings.TrimSpace(key) == "" {
		return nil, ErrEmptyKey
	}
	ch := p.locks.ref(key)
	if err := enter(ctx, ch, key, wait); err != nil {
		p.locks.unref(key)
		return nil, err
	}
	return newLease(key, func() error {
		<-ch
		p.locks.unref(key)
		return nil
	}), nil
}

// enter 在 wait 内占用 channel
func enter(ctx context.Context, ch chan struct{}, key string, wait time.Duration) error {
	select {
	case ch <- struct{}{}:
		return nil
	default:
	}
	if wait <= 0 {
		return timeoutError(key, wait)
	}
	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case ch <- struct{}{}:
		return nil
	case <-timer.C:
		return timeoutError(key, wait)
	case <-ctx.Done():
		return ctx.Err()
	}
}
