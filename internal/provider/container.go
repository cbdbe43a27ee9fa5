package provider

import (
	"context"
	"fmt"
	"time"

	"github.com/paycore/internal/cache"
	"github.com/paycore/internal/channel"
	"github.com/paycore/internal/config"
	"github.com/paycore/internal/constants"
	"github.com/paycore/internal/lock"
	"github.com/paycore/internal/logger"
	"github.com/paycore/internal/models"
	"github.com/paycore/internal/notify"
	"github.com/paycore/internal/payment"
	"github.com/paycore/internal/payment/wechatpay"
	"github.com/paycore/internal/queue"
	"github.com/paycore/internal/repository"
	"github.com/paycore/internal/rule"
	"github.com/paycore/internal/service"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Container 依赖注入容器
type Container struct {
	Config      *config.Config
	DB          *gorm.DB
	QueueClient *queue.Client

	// Repositories
	OrderRepo         repository.OrderRepository
	OrderFlowRepo     repository.OrderFlowRepository
	MerchantRepo      repository.MerchantRepository
	ChannelConfigRepo repository.ChannelConfigRepository

	// Components
	Locks      *lock.Registry
	Resolver   *channel.Resolver
	Rules      *rule.Registry
	Gateways   *payment.Registry
	Wechat     *wechatpay.Gateway
	Dispatcher *notify.Dispatcher

	// Services
	OrderService *service.OrderService
}

// NewContainer 初始化容器，依赖 models.DB 已完成初始化
func NewContainer(cfg *config.Config) (*Container, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is nil")
	}
	if models.DB == nil {
		return nil, fmt.Errorf("database is not initialized")
	}

	// 初始化缓存
	if err := cache.InitRedis(&cfg.Redis); err != nil {
		logger.Warnw("provider_init_redis_failed", "error", err)
	}

	// 初始化队列客户端
	queueClient, err := queue.NewClient(&cfg.Queue)
	if err != nil {
		logger.Errorw("provider_init_queue_client_failed", "error", err)
		queueClient = nil
	}

	c := &Container{
		Config:      cfg,
		DB:          models.DB,
		QueueClient: queueClient,
	}

	c.initRepositories()
	if err := c.initComponents(); err != nil {
		return nil, err
	}
	c.initServices()
	return c, nil
}

func (c *Container) initRepositories() {
	c.OrderRepo = repository.NewOrderRepository(c.DB)
	c.OrderFlowRepo = repository.NewOrderFlowRepository(c.DB)
	c.MerchantRepo = repository.NewMerchantRepository(c.DB)
	c.ChannelConfigRepo = repository.NewChannelConfigRepository(c.DB)
}

func (c *Container) initComponents() error {
	cfg := c.Config
	redisClient := redisUniversal()

	locks, err := lock.Build(lock.Options{
		Type:       cfg.Lock.Type,
		KeyPrefix:  cfg.Lock.KeyPrefix,
		Lease:      cfg.Lock.Lease(),
		RetryDelay: cfg.Lock.RetryDelay(),
		FileDir:    cfg.Lock.FileDir,
	}, redisClient)
	if err != nil {
		return fmt.Errorf("build lock registry: %w", err)
	}
	c.Locks = locks

	c.Resolver = channel.NewResolver(channel.DefaultStrategies(c.ChannelConfigRepo)...)
	c.Rules = rule.NewRegistry(rule.PassThrough{}, rule.PaymentPoints{})

	c.Wechat = wechatpay.NewGateway(cfg.Wechat.BaseURL, time.Duration(cfg.Wechat.TimeoutSeconds)*time.Second)
	c.Gateways = payment.NewRegistry(c.Wechat)

	publisher, err := notify.NewPublisher(cfg.Notify.Publisher, c.QueueClient, redisClient)
	if err != nil {
		logger.Warnw("provider_init_publisher_failed", "type", cfg.Notify.Publisher.Type, "error", err)
		publisher = notify.NoopPublisher{}
	}
	c.Dispatcher = notify.NewDispatcher(notify.Options{
		Workers:         cfg.Notify.Workers,
		QueueSize:       cfg.Notify.QueueSize,
		Overflow:        cfg.Notify.Overflow,
		ListenerTimeout: cfg.Notify.ListenerTimeout(),
		PublishTimeout:  cfg.Notify.Publisher.Timeout(),
		TopicPrefix:     cfg.Notify.Publisher.TopicPrefix,
	}, publisher)
	c.Dispatcher.Register(constants.TradeSourceWechat, constants.OrderStatusAny, "audit_log", notify.ListenerFunc(logEvent))
	c.Dispatcher.Register(constants.TradeSourceWechat, constants.OrderStatusAny, "merchant_webhook", notify.NewMerchantWebhook(c.MerchantRepo, nil))
	return nil
}

func (c *Container) initServices() {
	cfg := c.Config
	c.OrderService = service.NewOrderService(service.OrderServiceDeps{
		OrderRepo:    c.OrderRepo,
		FlowRepo:     c.OrderFlowRepo,
		MerchantRepo: c.MerchantRepo,
		ChannelRepo:  c.ChannelConfigRepo,
		Locks:        c.Locks.Default(),
		Resolver:     c.Resolver,
		Rules:        c.Rules,
		Gateways:     c.Gateways,
		Events:       c.Dispatcher,
		QueueClient:  c.QueueClient,
	}, service.OrderServiceOptions{
		OrderNoPrefix:       cfg.Order.OrderNoPrefix,
		CreateLockWait:      cfg.Order.CreateLockWait(),
		RefundLockWait:      cfg.Order.RefundLockWait(),
		DefaultTimeout:      time.Duration(cfg.Order.DefaultTimeoutMinutes) * time.Minute,
		StatusCacheTTL:      cfg.Order.StatusCacheTTL(),
		NotifyBaseURL:       cfg.Order.NotifyBaseURL,
		RefundNotifyBaseURL: cfg.Order.RefundNotifyBaseURL,
	})
}

// Close 释放外部连接
func (c *Container) Close() {
	if c == nil {
		return
	}
	if c.QueueClient != nil {
		if err := c.QueueClient.Close(); err != nil {
			logger.Warnw("provider_close_queue_client_failed", "error", err)
		}
	}
	if err := cache.Close(); err != nil {
		logger.Warnw("provider_close_redis_failed", "error", err)
	}
}

// redisUniversal 缓存未启用时返回 nil 接口
func redisUniversal() redis.UniversalClient {
	client := cache.Client()
	if client == nil {
		return nil
	}
	return client
}

func logEvent(_ context.Context, event notify.Event) error {
	logger.Infow("order_event",
		"order_no", event.OrderNo,
		"merchant_no", event.MerchantNo,
		"from", event.FromStatus,
		"status", event.Status,
		"source", event.Source,
	)
	return nil
}
