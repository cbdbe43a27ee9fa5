package app

import (
	"errors"

	"github.com/paycore/internal/config"
	"github.com/paycore/internal/provider"
	"github.com/paycore/internal/router"
	"github.com/paycore/internal/worker"
)

// BuildRunner 构建服务运行器
func BuildRunner(cfg *config.Config, mode string) (*Runner, *provider.Container, error) {
	if cfg == nil {
		return nil, nil, errors.New("config is nil")
	}
	if err := checkMode(mode); err != nil {
		return nil, nil, err
	}

	container, err := provider.NewContainer(cfg)
	if err != nil {
		return nil, nil, err
	}

	var services []Service

	// 终态通知分发在所有模式下都需要运行
	services = append(services, container.Dispatcher)

	// 初始化 HTTP 服务
	if servesAPI(mode) {
		engine := router.SetupRouter(cfg, container)
		addr := cfg.Server.Host + ":" + cfg.Server.Port
		services = append(services, NewHTTPService(addr, engine))
	}

	if servesWorker(mode) {
		// 超时对账调度
		if cfg.Scheduler.Enabled {
			services = append(services, worker.NewTimeoutScheduler(container.OrderService, container.Locks.Default(), worker.SchedulerOptions{
				Interval:         cfg.Scheduler.Interval(),
				MerchantDeadline: cfg.Scheduler.MerchantDeadline(),
				Concurrency:      cfg.Scheduler.Concurrency,
				Exclusive:        cfg.Scheduler.Exclusive,
			}))
		}
		// 异步任务消费
		if cfg.Queue.Enabled {
			consumer := worker.NewConsumer(container)
			workerService, err := worker.NewService(&cfg.Queue, consumer)
			if err != nil {
				container.Close()
				return nil, nil, err
			}
			services = append(services, workerService)
		}
	}

	return NewRunner(services...), container, nil
}

// Run 应用启动入口
func Run(opts Options) error {
	opts = normalizeOptions(opts)
	if opts.Config == nil {
		return errors.New("config is nil")
	}

	runner, container, err := BuildRunner(opts.Config, opts.Mode)
	if err != nil {
		return err
	}
	defer container.Close()

	addr := opts.Config.Server.Host + ":" + opts.Config.Server.Port
	opts.Logger.Infow("app_start", "addr", addr, "mode", opts.Mode)
	return RunWithOptions(runner, opts)
}
