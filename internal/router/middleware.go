package router

import (
	"strings"
	"time"

	"github.com/paycore/internal/config"
	handlershared "github.com/paycore/internal/http/handlers/shared"
	"github.com/paycore/internal/http/response"
	"github.com/paycore/internal/logger"
	"github.com/paycore/internal/repository"
	"github.com/paycore/internal/service"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const requestIDHeader = "X-Request-ID"

// CORSMiddleware 跨域中间件
func CORSMiddleware(cfg config.CORSConfig) gin.HandlerFunc {
	corsCfg := cors.Config{
		AllowMethods:     cfg.AllowedMethods,
		AllowHeaders:     cfg.AllowedHeaders,
		AllowCredentials: cfg.AllowCredentials,
		ExposeHeaders:    []string{requestIDHeader},
	}
	if len(corsCfg.AllowMethods) == 0 {
		corsCfg.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	}
	if len(corsCfg.AllowHeaders) == 0 {
		corsCfg.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", requestIDHeader}
	}
	if cfg.MaxAge > 0 {
		corsCfg.MaxAge = time.Duration(cfg.MaxAge) * time.Second
	}
	origins := cfg.AllowedOrigins
	if len(origins) == 0 || containsWildcard(origins) {
		if cfg.AllowCredentials {
			corsCfg.AllowOriginFunc = func(string) bool { return true }
		} else {
			corsCfg.AllowAllOrigins = true
		}
	} else {
		corsCfg.AllowOrigins = origins
	}
	return cors.New(corsCfg)
}

func containsWildcard(origins []string) bool {
	for _, origin := range origins {
		if strings.TrimSpace(origin) == "*" {
			return true
		}
	}
	return false
}

// RequestIDMiddleware 请求 ID 中间件
func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := strings.TrimSpace(c.GetHeader(requestIDHeader))
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Set(response.RequestIDKey, requestID)
		c.Writer.Header().Set(requestIDHeader, requestID)
		c.Next()
	}
}

// LoggerMiddleware 结构化请求日志中间件
func LoggerMiddleware(logger *zap.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = zap.L()
	}
	sugar := logger.Sugar()
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		log := sugar.With(
			"request_id", getRequestID(c),
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"latency_ms", time.Since(start).Milliseconds(),
			"client_ip", c.ClientIP(),
		)
		if len(c.Errors) > 0 {
			log.Errorw("request", "errors", c.Errors.String())
			return
		}
		log.Infow("request")
	}
}

func getRequestID(c *gin.Context) string {
	value, ok := c.Get(response.RequestIDKey)
	if !ok {
		return ""
	}
	if requestID, ok := value.(string); ok {
		return requestID
	}
	return ""
}

// MerchantJWTAuthMiddleware 商户 JWT 鉴权中间件
func MerchantJWTAuthMiddleware(secretKey string, merchantRepo repository.MerchantRepository) gin.HandlerFunc {
	return func(c *gin.Context) {
		if secretKey == "" || merchantRepo == nil {
			logger.Errorw("merchant_auth_not_configured")
			response.Unauthorized(c, "merchant auth not configured")
			c.Abort()
			return
		}
		authHeader := c.GetHeader("Authorization")
		parts := strings.SplitN(authHeader, " ", 2)
		if !(len(parts) == 2 && parts[0] == "Bearer") {
			response.Unauthorized(c, "authorization header invalid")
			c.Abort()
			return
		}

		claims, err := service.ParseMerchantToken(secretKey, parts[1])
		if err != nil {
			response.Unauthorized(c, "token invalid")
			c.Abort()
			return
		}
		merchant, err := merchantRepo.GetByMerchantNo(c.Request.Context(), claims.MerchantNo)
		if err != nil {
			logger.Warnw("merchant_auth_lookup_failed", "merchant_no", claims.MerchantNo, "error", err)
			response.Error(c, response.CodeServiceUnavailable, "store unavailable")
			c.Abort()
			return
		}
		if merchant == nil {
			response.Unauthorized(c, "token invalid")
			c.Abort()
			return
		}

		c.Set(handlershared.MerchantNoKey, merchant.MerchantNo)
		c.Next()
	}
}
