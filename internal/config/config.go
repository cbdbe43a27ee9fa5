package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/paycore/internal/logger"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config 应用配置结构
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Log       LogConfig       `mapstructure:"log"`
	Database  DatabaseConfig  `mapstructure:"database"`
	JWT       JWTConfig       `mapstructure:"jwt"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Queue     QueueConfig     `mapstructure:"queue"`
	CORS      CORSConfig      `mapstructure:"cors"`
	Lock      LockConfig      `mapstructure:"lock"`
	Order     OrderConfig     `mapstructure:"order"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Notify    NotifyConfig    `mapstructure:"notify"`
	Wechat    WechatConfig    `mapstructure:"wechat"`
}

// ServerConfig 服务器配置
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port string `mapstructure:"port"`
	Mode string `mapstructure:"mode"` // debug / release
}

// LogConfig 日志配置
type LogConfig struct {
	Level      string `mapstructure:"level"`
	Dir        string `mapstructure:"dir"`
	Filename   string `mapstructure:"filename"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	Compress   bool   `mapstructure:"compress"`
}

// ToLoggerOptions 转换为 logger 配置
func (c LogConfig) ToLoggerOptions() logger.Options {
	return logger.Options{
		Level:      c.Level,
		Dir:        c.Dir,
		Filename:   c.Filename,
		MaxSizeMB:  c.MaxSizeMB,
		MaxBackups: c.MaxBackups,
		MaxAgeDays: c.MaxAgeDays,
		Compress:   c.Compress,
	}
}

// DatabasePoolConfig 数据库连接池配置
type DatabasePoolConfig struct {
	MaxOpenConns           int `mapstructure:"max_open_conns"`
	MaxIdleConns           int `mapstructure:"max_idle_conns"`
	ConnMaxLifetimeSeconds int `mapstructure:"conn_max_lifetime_seconds"`
	ConnMaxIdleTimeSeconds int `mapstructure:"conn_max_idle_time_seconds"`
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	Driver string             `mapstructure:"driver"` // 数据库驱动（sqlite/postgres）
	DSN    string             `mapstructure:"dsn"`    // 数据库连接串
	Pool   DatabasePoolConfig `mapstructure:"pool"`
}

// JWTConfig 商户接口 JWT 配置
type JWTConfig struct {
	SecretKey   string `mapstructure:"secret"`
	ExpireHours int    `mapstructure:"expire_hours"`
}

// RedisConfig Redis 配置
type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Prefix   string `mapstructure:"prefix"`
}

// Addr 返回 host:port
func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// QueueConfig 异步队列配置
type QueueConfig struct {
	Enabled     bool           `mapstructure:"enabled"`
	Host        string         `mapstructure:"host"`
	Port        int            `mapstructure:"port"`
	Password    string         `mapstructure:"password"`
	DB          int            `mapstructure:"db"`
	Concurrency int            `mapstructure:"concurrency"`
	Queues      map[string]int `mapstructure:"queues"`
}

// CORSConfig 跨域配置
type CORSConfig struct {
	AllowedOrigins   []string `mapstructure:"allowed_origins"`
	AllowedMethods   []string `mapstructure:"allowed_methods"`
	AllowedHeaders   []string `mapstructure:"allowed_headers"`
	AllowCredentials bool     `mapstructure:"allow_credentials"`
	MaxAge           int      `mapstructure:"max_age"`
}

// LockConfig 分布式锁配置
type LockConfig struct {
	Type         string `mapstructure:"type"` // NONE / OBJECT / FILE / REDIS / REDISSON
	KeyPrefix    string `mapstructure:"key_prefix"`
	LeaseSeconds int    `mapstructure:"lease_seconds"` // 远程锁自动过期时间
	FileDir      string `mapstructure:"file_dir"`
	RetryMillis  int    `mapstructure:"retry_millis"`
}

// Lease 远程锁过期时间
func (c LockConfig) Lease() time.Duration {
	return time.Duration(c.LeaseSeconds) * time.Second
}

// RetryDelay 获取锁的重试间隔
func (c LockConfig) RetryDelay() time.Duration {
	return time.Duration(c.RetryMillis) * time.Millisecond
}

// OrderConfig 订单配置
type OrderConfig struct {
	OrderNoPrefix          string `mapstructure:"order_no_prefix"`
	CreateLockWaitSeconds  int    `mapstructure:"create_lock_wait_seconds"`
	RefundLockWaitSeconds  int    `mapstructure:"refund_lock_wait_seconds"`
	DefaultTimeoutMinutes  int    `mapstructure:"default_timeout_minutes"`
	StatusCacheTTLSeconds  int    `mapstructure:"status_cache_ttl_seconds"`
	NotifyBaseURL          string `mapstructure:"notify_base_url"`
	RefundNotifyBaseURL    string `mapstructure:"refund_notify_base_url"`
	CreateRateLimitWindow  int    `mapstructure:"create_rate_limit_window_seconds"`
	CreateRateLimitRequest int    `mapstructure:"create_rate_limit_max_requests"`
}

// CreateLockWait 下单锁等待时间
func (c OrderConfig) CreateLockWait() time.Duration {
	return time.Duration(c.CreateLockWaitSeconds) * time.Second
}

// RefundLockWait 退款锁等待时间
func (c OrderConfig) RefundLockWait() time.Duration {
	return time.Duration(c.RefundLockWaitSeconds) * time.Second
}

// StatusCacheTTL 状态缓存有效期
func (c OrderConfig) StatusCacheTTL() time.Duration {
	return time.Duration(c.StatusCacheTTLSeconds) * time.Second
}

// SchedulerConfig 超时对账调度配置
type SchedulerConfig struct {
	Enabled                 bool `mapstructure:"enabled"`
	IntervalMillis          int  `mapstructure:"interval_ms"`
	MerchantDeadlineSeconds int  `mapstructure:"merchant_deadline_seconds"`
	Concurrency             int  `mapstructure:"concurrency"`
	Exclusive               bool `mapstructure:"exclusive"` // 多实例时只允许一个实例执行同一轮扫描
}

// Interval 调度间隔
func (c SchedulerConfig) Interval() time.Duration {
	return time.Duration(c.IntervalMillis) * time.Millisecond
}

// MerchantDeadline 单商户扫描超时
func (c SchedulerConfig) MerchantDeadline() time.Duration {
	return time.Duration(c.MerchantDeadlineSeconds) * time.Second
}

// NotifyConfig 终态通知分发配置
type NotifyConfig struct {
	Workers                int             `mapstructure:"workers"`
	QueueSize              int             `mapstructure:"queue_size"`
	Overflow               string          `mapstructure:"overflow"` // drop_oldest / reject
	ListenerTimeoutSeconds int             `mapstructure:"listener_timeout_seconds"`
	Publisher              PublisherConfig `mapstructure:"publisher"`
}

// ListenerTimeout 单个监听器超时
func (c NotifyConfig) ListenerTimeout() time.Duration {
	return time.Duration(c.ListenerTimeoutSeconds) * time.Second
}

// PublisherConfig 消息通道配置
type PublisherConfig struct {
	Type           string     `mapstructure:"type"` // none / asynq / redis / mqtt
	TopicPrefix    string     `mapstructure:"topic_prefix"`
	TimeoutSeconds int        `mapstructure:"timeout_seconds"`
	MQTT           MQTTConfig `mapstructure:"mqtt"`
}

// Timeout 单次发布超时
func (c PublisherConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// MQTTConfig MQTT 配置
type MQTTConfig struct {
	Broker   string `mapstructure:"broker"`
	ClientID string `mapstructure:"client_id"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	QoS      int    `mapstructure:"qos"`
}

// WechatConfig 微信支付网关配置
type WechatConfig struct {
	BaseURL        string `mapstructure:"base_url"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

// Validate 校验配置之间的约束关系
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config is nil")
	}
	switch strings.ToUpper(strings.TrimSpace(c.Lock.Type)) {
	case "NONE", "OBJECT", "FILE", "REDIS", "REDISSON":
	default:
		return fmt.Errorf("lock.type %q is not supported", c.Lock.Type)
	}
	switch strings.ToLower(strings.TrimSpace(c.Notify.Publisher.Type)) {
	case "", "none", "asynq", "redis", "mqtt":
	default:
		return fmt.Errorf("notify.publisher.type %q is not supported", c.Notify.Publisher.Type)
	}
	switch strings.ToLower(strings.TrimSpace(c.Notify.Overflow)) {
	case "drop_oldest", "reject":
	default:
		return fmt.Errorf("notify.overflow %q is not supported", c.Notify.Overflow)
	}
	if c.Notify.QueueSize <= 0 || c.Notify.Workers <= 0 {
		return errors.New("notify.queue_size and notify.workers must be positive")
	}
	if c.Order.DefaultTimeoutMinutes <= 0 {
		return errors.New("order.default_timeout_minutes must be positive")
	}
	if c.Scheduler.Enabled {
		interval := c.Scheduler.Interval()
		if interval <= 0 {
			return errors.New("scheduler.interval_ms must be positive")
		}
		// 调度周期必须远小于最小超时窗口，否则超时识别延迟不可控
		limit := time.Duration(c.Order.DefaultTimeoutMinutes) * time.Minute / 10
		if interval >= limit {
			return fmt.Errorf("scheduler.interval_ms %s must be less than %s", interval, limit)
		}
	}
	return nil
}

// Load 从 config.yml 加载配置
func Load() *Config {
	// .env 仅用于本地开发，不存在时忽略
	if err := godotenv.Load(); err == nil {
		logger.Infow("config_dotenv_loaded", "file", ".env")
	}

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")     // 从当前目录查找
	viper.AddConfigPath("../")   // 如果从 cmd/server 运行
	viper.AddConfigPath("./etc") // etc 文件夹

	setDefaults(viper.GetViper())

	// 环境变量支持
	viper.AutomaticEnv()                                   // 自动读取环境变量
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_")) // 将 . 替换为 _ (例如 server.port -> SERVER_PORT)

	// 读取配置文件
	if err := viper.ReadInConfig(); err != nil {
		logger.Warnw("config_file_read_failed",
			"error", err,
			"fallback", "env_or_defaults",
		)
	} else {
		logger.Infow("config_file_loaded", "file", viper.ConfigFileUsed())
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		logger.Errorw("config_unmarshal_failed", "error", err)
		panic(fmt.Errorf("配置解析失败: %w", err))
	}

	return &cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.mode", "debug")
	v.SetDefault("log.level", "")
	v.SetDefault("log.dir", "")
	v.SetDefault("log.filename", "app.log")
	v.SetDefault("log.max_size_mb", 100)
	v.SetDefault("log.max_backups", 7)
	v.SetDefault("log.max_age_days", 30)
	v.SetDefault("log.compress", true)
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "./db/paycore.db")
	v.SetDefault("database.pool.max_open_conns", 1)
	v.SetDefault("database.pool.max_idle_conns", 1)
	v.SetDefault("database.pool.conn_max_lifetime_seconds", 0)
	v.SetDefault("database.pool.conn_max_idle_time_seconds", 0)
	v.SetDefault("jwt.secret", "change-me-in-production")
	v.SetDefault("jwt.expire_hours", 24)
	v.SetDefault("redis.enabled", true)
	v.SetDefault("redis.host", "127.0.0.1")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.prefix", "pay")
	v.SetDefault("queue.enabled", true)
	v.SetDefault("queue.host", "127.0.0.1")
	v.SetDefault("queue.port", 6379)
	v.SetDefault("queue.password", "")
	v.SetDefault("queue.db", 1)
	v.SetDefault("queue.concurrency", 10)
	v.SetDefault("queue.queues", map[string]int{
		"default":  10,
		"critical": 5,
	})
	v.SetDefault("cors.allowed_origins", []string{"*"})
	v.SetDefault("cors.allowed_methods", []string{"GET", "POST", "OPTIONS"})
	v.SetDefault("cors.allowed_headers", []string{
		"Content-Type",
		"Content-Length",
		"Authorization",
		"X-Request-ID",
	})
	v.SetDefault("cors.allow_credentials", false)
	v.SetDefault("cors.max_age", 600)
	v.SetDefault("lock.type", "OBJECT")
	v.SetDefault("lock.key_prefix", "pay:lock:")
	v.SetDefault("lock.lease_seconds", 30)
	v.SetDefault("lock.file_dir", "./db/locks")
	v.SetDefault("lock.retry_millis", 50)
	v.SetDefault("order.order_no_prefix", "PO")
	v.SetDefault("order.create_lock_wait_seconds", 3)
	v.SetDefault("order.refund_lock_wait_seconds", 3)
	v.SetDefault("order.default_timeout_minutes", 30)
	v.SetDefault("order.status_cache_ttl_seconds", 600)
	v.SetDefault("order.notify_base_url", "")
	v.SetDefault("order.refund_notify_base_url", "")
	v.SetDefault("order.create_rate_limit_window_seconds", 60)
	v.SetDefault("order.create_rate_limit_max_requests", 120)
	v.SetDefault("scheduler.enabled", true)
	v.SetDefault("scheduler.interval_ms", 1000)
	v.SetDefault("scheduler.merchant_deadline_seconds", 10)
	v.SetDefault("scheduler.concurrency", 4)
	v.SetDefault("scheduler.exclusive", false)
	v.SetDefault("notify.workers", 4)
	v.SetDefault("notify.queue_size", 1024)
	v.SetDefault("notify.overflow", "drop_oldest")
	v.SetDefault("notify.listener_timeout_seconds", 5)
	v.SetDefault("notify.publisher.type", "none")
	v.SetDefault("notify.publisher.topic_prefix", "pay/order")
	v.SetDefault("notify.publisher.timeout_seconds", 3)
	v.SetDefault("notify.publisher.mqtt.broker", "tcp://127.0.0.1:1883")
	v.SetDefault("notify.publisher.mqtt.client_id", "paycore")
	v.SetDefault("notify.publisher.mqtt.username", "")
	v.SetDefault("notify.publisher.mqtt.password", "")
	v.SetDefault("notify.publisher.mqtt.qos", 1)
	v.SetDefault("wechat.base_url", "https://api.mch.weixin.qq.com")
	v.SetDefault("wechat.timeout_seconds", 10)
}
