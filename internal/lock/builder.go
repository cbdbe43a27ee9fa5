package lock

import (
	"fmt"
	"strings"
	"time"

	"github.com/paycore/internal/constants"

	"github.com/redis/go-redis/v9"
)

// Options 锁构建参数
type Options struct {
	Type       string
	KeyPrefix  string
	Lease      time.Duration
	RetryDelay time.Duration
	FileDir    string
}

// Build 按配置构建注册表；进程内锁与空锁总是可用，远程锁依赖 Redis 客户端
func Build(opts Options, client redis.UniversalClient) (*Registry, error) {
	providers := []Provider{NewNoop(), NewObject()}

	lockType := strings.ToUpper(strings.TrimSpace(opts.Type))
	switch lockType {
	case constants.LockTypeNone, constants.LockTypeObject:
	case constants.LockTypeFile:
		p, err := NewFile(opts.FileDir, opts.RetryDelay)
		if err != nil {
			return nil, err
		}
		providers = append(providers, p)
	case constants.LockTypeRedis:
		p, err := NewRedis(client, opts.KeyPrefix, opts.Lease, opts.RetryDelay)
		if err != nil {
			return nil, fmt.Errorf("build redis lock: %w", err)
		}
		providers = append(providers, p)
	case constants.LockTypeRedisson:
		p, err := NewRedisson(client, opts.KeyPrefix, opts.Lease, opts.RetryDelay)
		if err != nil {
			return nil, fmt.Errorf("build redisson lock: %w", err)
		}
		providers = append(providers, p)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownType, opts.Type)
	}
	return NewRegistry(lockType, providers...)
}
