package cache

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/paycore/internal/config"

	"github.com/redis/go-redis/v9"
)

const (
	defaultPrefix = "pay"
	pingTimeout   = 3 * time.Second
)

// store 进程级缓存客户端，测试可通过 Use 替换
type store struct {
	mu     sync.RWMutex
	client *redis.Client
	prefix string
}

var global = &store{prefix: defaultPrefix}

func (s *store) get() (*redis.Client, string) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.client, s.prefix
}

// InitRedis 按配置连接 Redis 并做一次连通性检查
func InitRedis(cfg *config.RedisConfig) error {
	if cfg == nil || !cfg.Enabled {
		Use(nil, "")
		return nil
	}
	r := *cfg
	if strings.TrimSpace(r.Host) == "" {
		r.Host = "127.0.0.1"
	}
	if r.Port <= 0 {
		r.Port = 6379
	}
	client := redis.NewClient(&redis.Options{
		Addr:     r.Addr(),
		Password: r.Password,
		DB:       r.DB,
	})
	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		Use(nil, "")
		return fmt.Errorf("redis ping %s: %w", r.Addr(), err)
	}
	Use(client, r.Prefix)
	return nil
}

// Use 挂载已有客户端，client 为 nil 时关闭缓存
func Use(client *redis.Client, prefix string) {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		prefix = defaultPrefix
	}
	global.mu.Lock()
	global.client = client
	global.prefix = prefix
	global.mu.Unlock()
}

// Enabled 缓存是否可用
func Enabled() bool {
	client, _ := global.get()
	return client != nil
}

// Client 当前 Redis 客户端，未启用时为 nil
func Client() *redis.Client {
	client, _ := global.get()
	return client
}

// Close 关闭客户端并停用缓存
func Close() error {
	client, _ := global.get()
	if client == nil {
		return nil
	}
	Use(nil, "")
	return client.Close()
}

// Del 删除缓存
func Del(ctx context.Context, key string) error {
	client, prefix := global.get()
	if client == nil {
		return nil
	}
	return client.Del(ctx, buildKey(prefix, key)).Err()
}

func buildKey(prefix, key string) string {
	key = strings.TrimSpace(key)
	if key == "" {
		return prefix
	}
	return prefix + ":" + key
}
