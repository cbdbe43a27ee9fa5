package router

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	handlershared "github.com/paycore/internal/http/handlers/shared"
	"github.com/paycore/internal/http/response"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

// RateLimitKeyFunc 生成限流 key 的函数
type RateLimitKeyFunc func(*gin.Context) string

// RateLimitRule 限流规则
type RateLimitRule struct {
	Prefix        string
	WindowSeconds int
	MaxRequests   int
	Message       string
	FailOpen      bool // Redis 不可用时放行
}

var rateLimitScript = redis.NewScript(`
local current = redis.call("INCR", KEYS[1])
if current == 1 then
	redis.call("EXPIRE", KEYS[1], ARGV[1])
end
local ttl = redis.call("TTL", KEYS[1])
return {current, ttl}
`)

var errRateLimitReply = errors.New("unexpected rate limit reply")

// windowHit 固定窗口计数，返回当前计数与窗口剩余秒数
func windowHit(ctx context.Context, client redis.UniversalClient, key string, windowSeconds int) (int64, int64, error) {
	result, err := rateLimitScript.Run(ctx, client, []string{key}, windowSeconds).Result()
	if err != nil {
		return 0, 0, err
	}
	values, ok := result.([]interface{})
	if !ok || len(values) < 2 {
		return 0, 0, errRateLimitReply
	}
	count, ok := toInt64(values[0])
	if !ok {
		return 0, 0, errRateLimitReply
	}
	ttl, _ := toInt64(values[1])
	return count, ttl, nil
}

// RateLimitMiddleware Redis 固定窗口限流
func RateLimitMiddleware(client redis.UniversalClient, rule RateLimitRule, keyFunc RateLimitKeyFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		if client == nil || rule.WindowSeconds <= 0 || rule.MaxRequests <= 0 {
			c.Next()
			return
		}

		key := ""
		if keyFunc != nil {
			key = strings.TrimSpace(keyFunc(c))
		}
		if key == "" {
			key = c.ClientIP()
		}
		if rule.Prefix != "" {
			key = rule.Prefix + ":" + key
		}

		count, ttl, err := windowHit(c.Request.Context(), client, key, rule.WindowSeconds)
		if err != nil {
			handlershared.RequestLog(c).Warnw("rate_limit_unavailable", "key", key, "fail_open", rule.FailOpen, "error", err)
			if rule.FailOpen {
				c.Next()
				return
			}
			response.Error(c, response.CodeServiceUnavailable, "rate limit unavailable")
			c.Abort()
			return
		}

		remaining := int64(rule.MaxRequests) - count
		if remaining < 0 {
			remaining = 0
		}
		c.Header("X-RateLimit-Limit", strconv.Itoa(rule.MaxRequests))
		c.Header("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))
		if count <= int64(rule.MaxRequests) {
			c.Next()
			return
		}

		wait := int(ttl)
		if wait < 1 {
			wait = rule.WindowSeconds
		}
		msg := strings.TrimSpace(rule.Message)
		if msg == "" {
			msg = "too many requests"
		}
		c.Header("Retry-After", strconv.Itoa(wait))
		response.Error(c, response.CodeTooManyRequests, fmt.Sprintf("%s, retry after %ds", msg, wait))
		c.Abort()
	}
}

// KeyByIP 使用 IP 作为限流 key
func KeyByIP(c *gin.Context) string {
	return c.ClientIP()
}

// KeyByMerchant 使用鉴权后的商户编号作为限流 key，未鉴权时退回 IP
func KeyByMerchant(c *gin.Context) string {
	if value, ok := c.Get(handlershared.MerchantNoKey); ok {
		if merchantNo, ok := value.(string); ok && merchantNo != "" {
			return merchantNo
		}
	}
	return c.ClientIP()
}

func toInt64(value interface{}) (int64, bool) {
	switch v := value.(type) {
	case int64:
		return v, true
	case int:
		return int64(v), true
	case int32:
		return int64(v), true
	case int16:
		return int64(v), true
	case int8:
		return int64(v), true
	case uint64:
		return int64(v), true
	case uint32:
		return int64(v), true
	case uint16:
		return int64(v), true
	case uint8:
		return int64(v), true
	case float64:
		return int64(v), true
	case float32:
		return int64(v), true
	default:
		return 0, false
	}
}
