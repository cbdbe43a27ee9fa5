package config

import (
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
)

func defaultConfig(t *testing.T) *Config {
	t.Helper()
	v := viper.New()
	setDefaults(v)
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		t.Fatalf("unmarshal defaults failed: %v", err)
	}
	return &cfg
}

func TestDefaultsAreValid(t *testing.T) {
	cfg := defaultConfig(t)
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}
	if cfg.Order.CreateLockWait() != 3*time.Second {
		t.Fatalf("unexpected create lock wait: %s", cfg.Order.CreateLockWait())
	}
	if cfg.Scheduler.Interval() != time.Second {
		t.Fatalf("unexpected scheduler interval: %s", cfg.Scheduler.Interval())
	}
	if cfg.Queue.Queues["critical"] != 5 {
		t.Fatalf("unexpected queue weights: %+v", cfg.Queue.Queues)
	}
}

func TestValidateRejectsSlowScheduler(t *testing.T) {
	cfg := defaultConfig(t)
	cfg.Order.DefaultTimeoutMinutes = 1
	cfg.Scheduler.IntervalMillis = 6000
	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "scheduler.interval_ms") {
		t.Fatalf("expected scheduler interval error, got %v", err)
	}

	cfg.Scheduler.Enabled = false
	if err := cfg.Validate(); err != nil {
		t.Fatalf("disabled scheduler should not be checked: %v", err)
	}
}

func TestValidateRejectsUnknownTypes(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"lock", func(c *Config) { c.Lock.Type = "zookeeper" }, "lock.type"},
		{"publisher", func(c *Config) { c.Notify.Publisher.Type = "kafka" }, "notify.publisher.type"},
		{"overflow", func(c *Config) { c.Notify.Overflow = "block" }, "notify.overflow"},
		{"workers", func(c *Config) { c.Notify.Workers = 0 }, "notify.queue_size"},
		{"timeout", func(c *Config) { c.Order.DefaultTimeoutMinutes = 0 }, "order.default_timeout_minutes"},
	}
	for _, tc := range cases {
		cfg := defaultConfig(t)
		tc.mutate(cfg)
		err := cfg.Validate()
		if err == nil || !strings.Contains(err.Error(), tc.want) {
			t.Fatalf("%s: expected error containing %q, got %v", tc.name, tc.want, err)
		}
	}
}

func TestLockTypeIsCaseInsensitive(t *testing.T) {
	cfg := defaultConfig(t)
	cfg.Lock.Type = "redisson"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("lowercase lock type should validate: %v", err)
	}
}
