package worker

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/paycore/internal/lock"
	"github.com/paycore/internal/logger"
	"github.com/paycore/internal/models"

	"golang.org/x/sync/errgroup"
)

const (
	defaultSchedulerInterval    = 10 * time.Second
	defaultMerchantDeadline     = 30 * time.Second
	defaultSchedulerConcurrency = 4
	// 调度间隔需远小于最短商户超时时间
	intervalTimeoutRatio = 10
)

// TimeoutEngine 调度器依赖的订单引擎能力
type TimeoutEngine interface {
	ListEffectiveMerchants(ctx context.Context) ([]models.Merchant, error)
	TimeoutMerchantOrders(ctx context.Context, merchant *models.Merchant) (int, error)
}

// SchedulerOptions 调度器参数
type SchedulerOptions struct {
	Interval         time.Duration
	MerchantDeadline time.Duration
	Concurrency      int
	Exclusive        bool
}

// TimeoutScheduler 周期扫描商户待支付订单并置为超时
type TimeoutScheduler struct {
	engine TimeoutEngine
	locks  lock.Provider
	opts   SchedulerOptions

	stopOnce sync.Once
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// NewTimeoutScheduler 创建超时调度器
func NewTimeoutScheduler(engine TimeoutEngine, locks lock.Provider, opts SchedulerOptions) *TimeoutScheduler {
	if opts.Interval <= 0 {
		opts.Interval = defaultSchedulerInterval
	}
	if opts.MerchantDeadline <= 0 {
		opts.MerchantDeadline = defaultMerchantDeadline
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = defaultSchedulerConcurrency
	}
	if locks == nil {
		locks = lock.NewNoop()
	}
	return &TimeoutScheduler{
		engine: engine,
		locks:  locks,
		opts:   opts,
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}
}

// Name 服务名称
func (s *TimeoutScheduler) Name() string {
	return "timeout_scheduler"
}

// Start 按固定间隔执行扫描，直到 ctx 取消或 Stop
func (s *TimeoutScheduler) Start(ctx context.Context) error {
	if s == nil || s.engine == nil {
		return errors.New("timeout scheduler not initialized")
	}
	defer close(s.doneCh)

	ticker := time.NewTicker(s.opts.Interval)
	defer ticker.Stop()
	logger.Infow("timeout_scheduler_started", "interval", s.opts.Interval.String(), "concurrency", s.opts.Concurrency)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-s.stopCh:
			return nil
		case <-ticker.C:
			s.RunOnce(ctx)
		}
	}
}

// Stop 停止调度并等待当前一轮结束
func (s *TimeoutScheduler) Stop(ctx context.Context) error {
	if s == nil {
		return nil
	}
	s.stopOnce.Do(func() { close(s.stopCh) })
	select {
	case <-s.doneCh:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RunOnce 执行一轮扫描，返回本轮超时的订单数
// 单个商户失败只记录日志，不影响其他商户。
func (s *TimeoutScheduler) RunOnce(ctx context.Context) int {
	if s.opts.Exclusive {
		lease, err := s.locks.Acquire(ctx, lock.Key("scheduler", "timeout"), 0)
		if err != nil {
			logger.Debugw("timeout_scheduler_tick_skipped", "error", err)
			return 0
		}
		defer lease.Release()
	}

	merchants, err := s.engine.ListEffectiveMerchants(ctx)
	if err != nil {
		logger.Errorw("timeout_scheduler_list_merchants_failed", "error", err)
		return 0
	}
	s.checkInterval(merchants)

	var (
		mu    sync.Mutex
		total int
	)
	g := new(errgroup.Group)
	g.SetLimit(s.opts.Concurrency)
	for i := range merchants {
		merchant := &merchants[i]
		g.Go(func() error {
			count := s.sweepMerchant(ctx, merchant)
			mu.Lock()
			total += count
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	if total > 0 {
		logger.Infow("timeout_scheduler_tick_done", "merchants", len(merchants), "timed_out", total)
	}
	return total
}

func (s *TimeoutScheduler) sweepMerchant(ctx context.Context, merchant *models.Merchant) (count int) {
	mctx, cancel := context.WithTimeout(ctx, s.opts.MerchantDeadline)
	defer cancel()
	defer func() {
		if r := recover(); r != nil {
			logger.Errorw("timeout_scheduler_merchant_panic", "merchant_no", merchant.MerchantNo, "panic", r)
			count = 0
		}
	}()
	count, err := s.engine.TimeoutMerchantOrders(mctx, merchant)
	if err != nil {
		logger.Warnw("timeout_scheduler_merchant_failed",
			"merchant_id", merchant.ID,
			"merchant_no", merchant.MerchantNo,
			"error", err,
		)
		return 0
	}
	return count
}

// checkInterval 调度间隔过大时超时检测延迟不可控
func (s *TimeoutScheduler) checkInterval(merchants []models.Merchant) {
	var minTimeout time.Duration
	for i := range merchants {
		timeout := merchants[i].OrderTimeout()
		if timeout > 0 && (minTimeout == 0 || timeout < minTimeout) {
			minTimeout = timeout
		}
	}
	if minTimeout > 0 && s.opts.Interval*intervalTimeoutRatio >= minTimeout {
		logger.Errorw("timeout_scheduler_interval_too_long",
			"interval", s.opts.Interval.String(),
			"min_merchant_timeout", minTimeout.String(),
		)
	}
}
