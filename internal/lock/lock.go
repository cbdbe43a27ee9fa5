// Package lock 提供按 key 互斥的锁实现，用于下单与退款的幂等保护。
package lock

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/paycore/internal/constants"
	"github.com/paycore/internal/logger"
)

var (
	// ErrAcquireTimeout 在等待时间内未能获取锁
	ErrAcquireTimeout = errors.New("lock acquire timeout")
	// ErrUnknownType 未注册的锁类型
	ErrUnknownType = errors.New("unknown lock type")
	// ErrEmptyKey 锁 key 为空
	ErrEmptyKey = errors.New("lock key is empty")
)

// Provider 锁提供者
type Provider interface {
	Type() string
	// Acquire 在 wait 时间内获取 key 对应的锁，超时返回 ErrAcquireTimeout；wait<=0 时只尝试一次。
	Acquire(ctx context.Context, key string, wait time.Duration) (*Lease, error)
}

// Lease 一次成功加锁的凭证，只有持有者可以释放
type Lease struct {
	key     string
	once    sync.Once
	release func() error
}

func newLease(key string, release func() error) *Lease {
	return &Lease{key: key, release: release}
}

// Key 锁 key
func (l *Lease) Key() string {
	if l == nil {
		return ""
	}
	return l.key
}

// Release 释放锁，可重复调用，nil 安全，失败只记录日志
func (l *Lease) Release() {
	if l == nil {
		return
	}
	l.once.Do(func() {
		if l.release == nil {
			return
		}
		if err := l.release(); err != nil {
			logger.Warnw("lock_release_failed", "key", l.key, "error", err)
		}
	})
}

// Key 拼接锁 key
func Key(parts ...string) string {
	cleaned := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part != "" {
			cleaned = append(cleaned, part)
		}
	}
	return strings.Join(cleaned, ":")
}

func timeoutError(key string, wait time.Duration) error {
	return fmt.Errorf("%w: key=%s wait=%s", ErrAcquireTimeout, key, wait)
}

// Registry 锁类型注册表，由容器构建后注入
type Registry struct {
	providers   map[string]Provider
	defaultType string
}

// NewRegistry 创建注册表，defaultType 必须已注册
func NewRegistry(defaultType string, providers ...Provider) (*Registry, error) {
	r := &Registry{providers: make(map[string]Provider, len(providers))}
	for _, p := range providers {
		if p == nil {
			continue
		}
		r.providers[strings.ToUpper(p.Type())] = p
	}
	defaultType = strings.ToUpper(strings.TrimSpace(defaultType))
	if _, ok := r.providers[defaultType]; !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownType, defaultType)
	}
	r.defaultType = defaultType
	return r, nil
}

// Get 按类型获取锁提供者
func (r *Registry) Get(lockType string) (Provider, error) {
	if r == nil {
		return nil, fmt.Errorf("%w: registry is nil", ErrUnknownType)
	}
	p, ok := r.providers[strings.ToUpper(strings.TrimSpace(lockType))]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownType, lockType)
	}
	return p, nil
}

// Default 默认锁提供者
func (r *Registry) Default() Provider {
	if r == nil {
		return nil
	}
	p, _ := r.Get(r.defaultType)
	return p
}

// noopProvider 不加锁，用于单测或单实例且无需幂等保护的场景
type noopProvider struct{}

// NewNoop 创建空锁
func NewNoop() Provider {
	return noopProvider{}
}

func (noopProvider) Type() string { return constants.LockTypeNone }

func (noopProvider) Acquire(_ context.Context, key string, _ time.Duration) (*Lease, error) {
	return newLease(key, nil), nil
}
