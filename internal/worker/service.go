package worker

import (
	"context"
	"errors"
	"time"

	"github.com/paycore/internal/config"
	"github.com/paycore/internal/logger"
	"github.com/paycore/internal/queue"

	"github.com/hibiken/asynq"
)

const (
	defaultWorkerConcurrency = 10
	workerShutdownTimeout    = 8 * time.Second
)

// Service asynq 消费服务
type Service struct {
	server *asynq.Server
	mux    *asynq.ServeMux
}

// NewService 创建消费服务
func NewService(cfg *config.QueueConfig, consumer *Consumer) (*Service, error) {
	if cfg == nil || !cfg.Enabled {
		return nil, errors.New("queue disabled")
	}
	if consumer == nil {
		return nil, errors.New("consumer is nil")
	}
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = defaultWorkerConcurrency
	}
	server := asynq.NewServer(queue.RedisOpt(cfg), asynq.Config{
		Concurrency:     concurrency,
		Queues:          queue.ServerQueues(cfg),
		Logger:          logger.S(),
		ShutdownTimeout: workerShutdownTimeout,
		ErrorHandler:    asynq.ErrorHandlerFunc(logTaskFailure),
	})
	mux := asynq.NewServeMux()
	consumer.Register(mux)
	return &Service{server: server, mux: mux}, nil
}

func logTaskFailure(ctx context.Context, task *asynq.Task, err error) {
	retried, _ := asynq.GetRetryCount(ctx)
	maxRetry, _ := asynq.GetMaxRetry(ctx)
	logger.Warnw("queue_task_failed",
		"type", task.Type(),
		"retried", retried,
		"max_retry", maxRetry,
		"error", err,
	)
}

// Name 服务名称
func (s *Service) Name() string { return "worker" }

// Start 启动消费，阻塞到 ctx 结束
func (s *Service) Start(ctx context.Context) error {
	if err := s.server.Start(s.mux); err != nil {
		return err
	}
	<-ctx.Done()
	return nil
}

// Stop 停止拉取新任务并等待进行中的任务
func (s *Service) Stop(_ context.Context) error {
	s.server.Shutdown()
	return nil
}
