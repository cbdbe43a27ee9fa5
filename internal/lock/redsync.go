package lock

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/paycore/internal/constants"
	"github.com/paycore/internal/logger"

	"github.com/go-redsync/redsync/v4"
	"github.com/go-redsync/redsync/v4/redis/goredis/v9"
	"github.com/redis/go-redis/v9"
)

// RedissonProvider 基于 redsync 的分布式锁，持有期间由看门狗自动续期
type RedissonProvider struct {
	rs         *redsync.Redsync
	prefix     string
	lease      time.Duration
	retryDelay time.Duration
}

// NewRedisson 创建带看门狗续期的分布式锁
func NewRedisson(client redis.UniversalClient, prefix string, lease, retryDelay time.Duration) (*RedissonProvider, error) {
	if client == nil {
		return nil, errors.New("redis client is nil")
	}
	if lease <= 0 {
		lease = 30 * time.Second
	}
	if retryDelay <= 0 {
		retryDelay = 50 * time.Millisecond
	}
	return &RedissonProvider{
		rs:         redsync.New(goredis.NewPool(client)),
		prefix:     prefix,
		lease:      lease,
		retryDelay: retryDelay,
	}, nil
}

// Type 锁类型
func (p *RedissonProvider) Type() string { return constants.LockTypeRedisson }

// Acquire 获取锁
func (p *RedissonProvider) Acquire(ctx context.Context, key string, wait time.Duration) (*Lease, error) {
	if strings.TrimSpace(key) == "" {
		return nil, ErrEmptyKey
	}
	tries := 1
	if wait > 0 {
		tries = int(wait/p.retryDelay) + 1
	}
	mutex := p.rs.NewMutex(p.prefix+key,
		redsync.WithExpiry(p.lease),
		redsync.WithTries(tries),
		redsync.WithRetryDelay(p.retryDelay),
	)

	lockCtx := ctx
	if wait > 0 {
		var cancel context.CancelFunc
		lockCtx, cancel = context.WithTimeout(ctx, wait)
		defer cancel()
	}
	if err := mutex.LockContext(lockCtx); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: key=%s wait=%s: %v", ErrAcquireTimeout, key, wait, err)
	}

	stop := make(chan struct{})
	done := make(chan struct{})
	go p.watchdog(key, mutex, stop, done)

	return newLease(key, func() error {
		close(stop)
		<-done
		releaseCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		ok, err := mutex.UnlockContext(releaseCtx)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("lock %s already expired", key)
		}
		return nil
	}), nil
}

// watchdog 每隔 1/3 过期时间续期一次，直到释放
func (p *RedissonProvider) watchdog(key string, mutex *redsync.Mutex, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	ticker := time.NewTicker(p.lease / 3)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			extendCtx, cancel := context.WithTimeout(context.Background(), p.lease/3)
			ok, err := mutex.ExtendContext(extendCtx)
			cancel()
			if err != nil || !ok {
				logger.Warnw("lock_watchdog_extend_failed", "key", key, "error", err)
				return
			}
		}
	}
}
