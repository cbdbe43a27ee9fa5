package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/paycore/internal/config"
	"github.com/paycore/internal/constants"
	"github.com/paycore/internal/queue"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/redis/go-redis/v9"
)

// Publisher 消息通道
type Publisher interface {
	Name() string
	Publish(ctx context.Context, topic string, payload []byte) error
	Close() error
}

// NoopPublisher 不投递
type NoopPublisher struct{}

// Name 名称
func (NoopPublisher) Name() string { return constants.PublisherTypeNone }

// Publish 丢弃消息
func (NoopPublisher) Publish(context.Context, string, []byte) error { return nil }

// Close 无需释放
func (NoopPublisher) Close() error { return nil }

// AsynqPublisher 通过 asynq 任务投递事件
type AsynqPublisher struct {
	client *queue.Client
}

// NewAsynqPublisher 创建 asynq 投递器
func NewAsynqPublisher(client *queue.Client) (*AsynqPublisher, error) {
	if !client.Enabled() {
		return nil, errors.New("asynq publisher requires queue.enabled")
	}
	return &AsynqPublisher{client: client}, nil
}

// Name 名称
func (p *AsynqPublisher) Name() string { return constants.PublisherTypeAsynq }

// Publish 推送 order:event 任务
func (p *AsynqPublisher) Publish(ctx context.Context, topic string, payload []byte) error {
	return p.client.EnqueueOrderEvent(ctx, queue.OrderEventPayload{
		Topic: topic,
		Body:  json.RawMessage(payload),
	})
}

// Close 队列客户端由容器统一关闭
func (p *AsynqPublisher) Close() error { return nil }

// RedisPublisher 通过 Redis PUBLISH 投递事件
type RedisPublisher struct {
	client redis.UniversalClient
}

// NewRedisPublisher 创建 Redis 投递器
func NewRedisPublisher(client redis.UniversalClient) (*RedisPublisher, error) {
	if client == nil {
		return nil, errors.New("redis publisher requires redis.enabled")
	}
	return &RedisPublisher{client: client}, nil
}

// Name 名称
func (p *RedisPublisher) Name() string { return constants.PublisherTypeRedis }

// Publish 发布到频道
func (p *RedisPublisher) Publish(ctx context.Context, topic string, payload []byte) error {
	return p.client.Publish(ctx, topic, payload).Err()
}

// Close Redis 客户端由容器统一关闭
func (p *RedisPublisher) Close() error { return nil }

// MQTTPublisher 通过 MQTT 投递事件
type MQTTPublisher struct {
	client mqtt.Client
	qos    byte
}

// NewMQTTPublisher 连接 broker 并创建投递器
func NewMQTTPublisher(cfg config.MQTTConfig, timeout time.Duration) (*MQTTPublisher, error) {
	broker := strings.TrimSpace(cfg.Broker)
	if broker == "" {
		return nil, errors.New("mqtt broker is required")
	}
	if timeout <= 0 {
		timeout = defaultPublishTimeout
	}
	clientID := strings.TrimSpace(cfg.ClientID)
	if clientID == "" {
		clientID = "paycore-notify"
	}
	opts := mqtt.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetUsername(cfg.Username).
		SetPassword(cfg.Password).
		SetAutoReconnect(true).
		SetConnectTimeout(timeout)
	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(timeout) {
		return nil, fmt.Errorf("mqtt connect %s timeout", broker)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("mqtt connect %s: %w", broker, err)
	}
	return newMQTTPublisherWithClient(client, cfg.QoS), nil
}

func newMQTTPublisherWithClient(client mqtt.Client, qos int) *MQTTPublisher {
	if qos < 0 || qos > 2 {
		qos = 1
	}
	return &MQTTPublisher{client: client, qos: byte(qos)}
}

// Name 名称
func (p *MQTTPublisher) Name() string { return constants.PublisherTypeMQTT }

// Publish 发布消息并等待 broker 确认
func (p *MQTTPublisher) Publish(ctx context.Context, topic string, payload []byte) error {
	token := p.client.Publish(topic, p.qos, false, payload)
	select {
	case <-token.Done():
		return token.Error()
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close 断开连接
func (p *MQTTPublisher) Close() error {
	p.client.Disconnect(250)
	return nil
}

// NewPublisher 按配置构建消息通道
func NewPublisher(cfg config.PublisherConfig, queueClient *queue.Client, redisClient redis.UniversalClient) (Publisher, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Type)) {
	case "", constants.PublisherTypeNone:
		return NoopPublisher{}, nil
	case constants.PublisherTypeAsynq:
		return NewAsynqPublisher(queueClient)
	case constants.PublisherTypeRedis:
		return NewRedisPublisher(redisClient)
	case constants.PublisherTypeMQTT:
		return NewMQTTPublisher(cfg.MQTT, cfg.Timeout())
	default:
		return nil, fmt.Errorf("unknown publisher type %q", cfg.Type)
	}
}
