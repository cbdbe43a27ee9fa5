package lock

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/paycore/internal/constants"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// 只有 token 匹配时才删除，防止释放已过期后被他人获取的锁
var redisUnlockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisProvider 基于 SET NX PX 的分布式锁
// 远程锁本身无进程内状态，每次加锁生成独立 token。
type RedisProvider struct {
	client     redis.UniversalClient
	prefix     string
	lease      time.Duration
	retryDelay time.Duration
}

// NewRedis 创建 Redis 锁
func NewRedis(client redis.UniversalClient, prefix string, lease, retryDelay time.Duration) (*RedisProvider, error) {
	if client == nil {
		return nil, errors.New("redis client is nil")
	}
	if lease <= 0 {
		lease = 30 * time.Second
	}
	if retryDelay <= 0 {
		retryDelay = 50 * time.Millisecond
	}
	return &RedisProvider{client: client, prefix: prefix, lease: lease, retryDelay: retryDelay}, nil
}

// Type 锁类型
func (p *RedisProvider) Type() string { return constants.LockTypeRedis }

// Acquire 获取锁
func (p *RedisProvider) Acquire(ctx context.Context, key string, wait time.Duration) (*Lease, error) {
	if strings.TrimSpace(key) == "" {
		return nil, ErrEmptyKey
	}
	fullKey := p.prefix + key
	token := uuid.NewString()
	deadline := time.Now().Add(wait)

	for {
		ok, err := p.client.SetNX(ctx, fullKey, token, p.lease).Result()
		if err != nil {
			return nil, fmt.Errorf("redis lock %s: %w", key, err)
		}
		if ok {
			return newLease(key, func() error {
				releaseCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
				defer cancel()
				return redisUnlockScript.Run(releaseCtx, p.client, []string{fullKey}, token).Err()
			}), nil
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			return nil, timeoutError(key, wait)
		}
		delay := p.retryDelay
		if delay > remaining {
			delay = remaining
		}
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
}
