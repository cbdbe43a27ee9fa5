package cache

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultOrderStatusTTL = 10 * time.Minute

// setIfNewerScript 仅当缓存中的版本不比新版本更新时写入
var setIfNewerScript = redis.NewScript(`
local current = redis.call("HGET", KEYS[1], "version")
if current and tonumber(current) > tonumber(ARGV[1]) then
	return 0
end
redis.call("HSET", KEYS[1], "version", ARGV[1], "data", ARGV[2])
redis.call("PEXPIRE", KEYS[1], ARGV[3])
return 1
`)

// OrderStatusSnapshot 订单状态缓存
type OrderStatusSnapshot struct {
	OrderNo    string    `json:"order_no"`
	MerchantNo string    `json:"merchant_no"`
	Status     string    `json:"status"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func orderStatusKey(orderNo string) string {
	return "order:status:" + strings.TrimSpace(orderNo)
}

// GetOrderStatus 读取订单状态缓存
func GetOrderStatus(ctx context.Context, orderNo string) (*OrderStatusSnapshot, bool, error) {
	client, prefix := global.get()
	if client == nil {
		return nil, false, nil
	}
	raw, err := client.HGet(ctx, buildKey(prefix, orderStatusKey(orderNo)), "data").Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var snapshot OrderStatusSnapshot
	if err := json.Unmarshal(raw, &snapshot); err != nil {
		return nil, false, err
	}
	return &snapshot, true, nil
}

// SetOrderStatus 写入订单状态缓存，版本取 UpdatedAt；返回是否实际写入
func SetOrderStatus(ctx context.Context, snapshot OrderStatusSnapshot, ttl time.Duration) (bool, error) {
	client, prefix := global.get()
	if client == nil || strings.TrimSpace(snapshot.OrderNo) == "" {
		return false, nil
	}
	if ttl <= 0 {
		ttl = defaultOrderStatusTTL
	}
	payload, err := json.Marshal(snapshot)
	if err != nil {
		return false, err
	}
	written, err := setIfNewerScript.Run(ctx, client,
		[]string{buildKey(prefix, orderStatusKey(snapshot.OrderNo))},
		snapshot.UpdatedAt.UnixMicro(), payload, ttl.Milliseconds(),
	).Int()
	if err != nil {
		return false, err
	}
	return written == 1, nil
}

// DelOrderStatus 删除订单状态缓存
func DelOrderStatus(ctx context.Context, orderNo string) error {
	return Del(ctx, orderStatusKey(orderNo))
}
