package app

import (
	"fmt"
	"os"
	"time"

	"github.com/paycore/internal/config"
	"github.com/paycore/internal/logger"

	"go.uber.org/zap"
)

// 启动模式
const (
	ModeAll    = "all"
	ModeAPI    = "api"
	ModeWorker = "worker"
)

const defaultShutdownTimeout = 10 * time.Second

// Options 应用启动选项
type Options struct {
	Config          *config.Config
	Logger          *zap.SugaredLogger
	Signals         []os.Signal
	ShutdownTimeout time.Duration
	Mode            string
}

func normalizeOptions(opts Options) Options {
	if opts.Logger == nil {
		opts.Logger = logger.S()
	}
	if opts.ShutdownTimeout <= 0 {
		opts.ShutdownTimeout = defaultShutdownTimeout
	}
	if opts.Mode == "" {
		opts.Mode = ModeAll
	}
	return opts
}

func checkMode(mode string) error {
	switch mode {
	case ModeAll, ModeAPI, ModeWorker:
		return nil
	}
	return fmt.Errorf("unknown mode %q (want %s|%s|%s)", mode, ModeAll, ModeAPI, ModeWorker)
}

func servesAPI(mode string) bool    { return mode == ModeAll || mode == ModeAPI }
func servesWorker(mode string) bool { return mode == ModeAll || mode == ModeWorker }
