package router

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/paycore/internal/cache"
	"github.com/paycore/internal/config"
	publichandlers "github.com/paycore/internal/http/handlers/public"
	"github.com/paycore/internal/logger"
	"github.com/paycore/internal/provider"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

// SetupRouter 初始化路由
func SetupRouter(cfg *config.Config, c *provider.Container) *gin.Engine {
	return setupRouter(cfg, c, publichandlers.New(c))
}

func setupRouter(cfg *config.Config, c *provider.Container, handler *publichandlers.Handler) *gin.Engine {
	log := logger.L
	if log == nil {
		log = logger.Init(cfg.Server.Mode, cfg.Log.ToLoggerOptions())
	}
	r := gin.New()

	redisPrefix := strings.TrimSpace(cfg.Redis.Prefix)
	if redisPrefix == "" {
		redisPrefix = "pay"
	}
	var redisClient redis.UniversalClient
	if client := cache.Client(); client != nil {
		redisClient = client
	}
	createRule := RateLimitRule{
		Prefix:        fmt.Sprintf("%s:rate:order_create", redisPrefix),
		WindowSeconds: cfg.Order.CreateRateLimitWindow,
		MaxRequests:   cfg.Order.CreateRateLimitRequest,
		Message:       "too many order requests",
		FailOpen:      true,
	}

	// 中间件
	r.Use(gin.Recovery())
	r.Use(RequestIDMiddleware())
	r.Use(LoggerMiddleware(log))
	r.Use(CORSMiddleware(cfg.CORS))

	apiV1 := r.Group("/api/v1")
	{
		// 渠道回调（签名校验，无需鉴权）
		apiV1.POST("/callbacks/wechat/:channel_id", handler.WechatCallback)

		orders := apiV1.Group("/orders")
		orders.Use(MerchantJWTAuthMiddleware(cfg.JWT.SecretKey, c.MerchantRepo))
		{
			orders.POST("", RateLimitMiddleware(redisClient, createRule, KeyByMerchant), handler.CreateOrder)
			orders.GET("", handler.ListOrders)
			orders.GET("/:order_no", handler.GetOrder)
			orders.GET("/:order_no/status", handler.GetOrderStatus)
			orders.GET("/:order_no/flows", handler.ListOrderFlows)
			orders.POST("/:order_no/close", handler.CloseOrder)
			orders.POST("/:order_no/refund", handler.RefundOrder)
			orders.POST("/:order_no/sync", handler.SyncOrder)
		}
	}

	// 健康检查
	r.GET("/health", func(ctx *gin.Context) {
		status := gin.H{"status": "ok"}
		if c != nil && c.Dispatcher != nil {
			status["notify_pending"] = c.Dispatcher.Pending()
			status["notify_dropped"] = c.Dispatcher.Dropped()
		}
		ctx.JSON(http.StatusOK, status)
	})

	return r
}
