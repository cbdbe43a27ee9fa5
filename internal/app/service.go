package app

import (
	"context"
	"errors"
	"os/signal"
	"time"

	"go.uber.org/zap"
)

// Service 可启动/停止的后台服务
type Service interface {
	Name() string
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

// Runner 服务运行器，按注册顺序启动、逆序停止
type Runner struct {
	services []Service
}

// NewRunner 创建服务运行器，nil 服务会被忽略
func NewRunner(services ...Service) *Runner {
	r := &Runner{}
	for _, svc := range services {
		if svc != nil {
			r.services = append(r.services, svc)
		}
	}
	return r
}

// Services 已注册服务名称
func (r *Runner) Services() []string {
	names := make([]string, 0, len(r.services))
	for _, svc := range r.services {
		names = append(names, svc.Name())
	}
	return names
}

// RunWithOptions 运行服务并处理系统信号
func RunWithOptions(runner *Runner, opts Options) error {
	if runner == nil {
		return errors.New("runner is nil")
	}
	opts = normalizeOptions(opts)
	ctx := context.Background()
	if len(opts.Signals) > 0 {
		var cancel context.CancelFunc
		ctx, cancel = signal.NotifyContext(ctx, opts.Signals...)
		defer cancel()
	}
	return runner.Run(ctx, opts.ShutdownTimeout, opts.Logger)
}

type serviceExit struct {
	name string
	err  error
}

// Run 启动全部服务，任一服务退出或 ctx 结束时整体停止
func (r *Runner) Run(ctx context.Context, stopTimeout time.Duration, log *zap.SugaredLogger) error {
	if r == nil || len(r.services) == 0 {
		return errors.New("no services to run")
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	exitCh := make(chan serviceExit, len(r.services))
	for _, svc := range r.services {
		go func(svc Service) {
			log.Infow("service_start", "service", svc.Name())
			err := svc.Start(ctx)
			log.Infow("service_exit", "service", svc.Name(), "error", err)
			exitCh <- serviceExit{name: svc.Name(), err: err}
		}(svc)
	}

	var runErr error
	select {
	case <-ctx.Done():
		runErr = ctx.Err()
	case exit := <-exitCh:
		runErr = exit.err
		if runErr == nil {
			log.Warnw("service_exited_early", "service", exit.name)
		}
	}
	cancel()

	if stopTimeout <= 0 {
		stopTimeout = defaultShutdownTimeout
	}
	stopCtx, stopCancel := context.WithTimeout(context.Background(), stopTimeout)
	defer stopCancel()
	// 逆序停止：先停入口，最后排空通知队列
	for i := len(r.services) - 1; i >= 0; i-- {
		svc := r.services[i]
		if err := svc.Stop(stopCtx); err != nil {
			log.Errorw("service_stop_failed", "service", svc.Name(), "error", err)
		}
	}
	if errors.Is(runErr, context.Canceled) {
		return nil
	}
	return runErr
}
