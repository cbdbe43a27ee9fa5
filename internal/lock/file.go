package lock

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/paycore/internal/constants"

	"github.com/gofrs/flock"
)

var unsafeFileChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// fileLock flock 只在进程间互斥，同一 Flock 实例重复加锁会直接成功，
// 因此进程内还需要一个 channel 串行化。
type fileLock struct {
	gate chan struct{}
	fl   *flock.Flock
}

// FileProvider 基于文件锁的跨进程锁，适用于单机多进程部署
type FileProvider struct {
	dir        string
	retryDelay time.Duration
	locks      *arena[*fileLock]
}

// NewFile 创建文件锁，dir 不存在时自动创建
func NewFile(dir string, retryDelay time.Duration) (*FileProvider, error) {
	dir = strings.TrimSpace(dir)
	if dir == "" {
		return nil, errors.New("lock file dir is empty")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create lock dir failed: %w", err)
	}
	if retryDelay <= 0 {
		retryDelay = 50 * time.Millisecond
	}
	p := &FileProvider{dir: dir, retryDelay: retryDelay}
	p.locks = newArena(func(key string) *fileLock {
		return &fileLock{
			gate: make(chan struct{}, 1),
			fl:   flock.New(p.path(key)),
		}
	})
	return p, nil
}

// Type 锁类型
func (p *FileProvider) Type() string { return constants.LockTypeFile }

// Size 当前缓存的 key 数量
func (p *FileProvider) Size() int { return p.locks.size() }

// Acquire 获取锁
func (p *FileProvider) Acquire(ctx context.Context, key string, wait time.Duration) (*Lease, error) {
	if strings.TrimSpace(key) == "" {
		return nil, ErrEmptyKey
	}
	deadline := time.Now().Add(wait)
	entry := p.locks.ref(key)
	if err := enter(ctx, entry.gate, key, wait); err != nil {
		p.locks.unref(key)
		return nil, err
	}

	locked, err := p.tryFileLock(ctx, entry.fl, time.Until(deadline))
	if err != nil || !locked {
		<-entry.gate
		p.locks.unref(key)
		if err != nil && !errors.Is(err, context.DeadlineExceeded) {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, fmt.Errorf("file lock %s: %w", key, err)
		}
		return nil, timeoutError(key, wait)
	}

	return newLease(key, func() error {
		defer p.locks.unref(key)
		defer func() { <-entry.gate }()
		return entry.fl.Unlock()
	}), nil
}

func (p *FileProvider) tryFileLock(ctx context.Context, fl *flock.Flock, remaining time.Duration) (bool, error) {
	if remaining <= 0 {
		return fl.TryLock()
	}
	waitCtx, cancel := context.WithTimeout(ctx, remaining)
	defer cancel()
	return fl.TryLockContext(waitCtx, p.retryDelay)
}

// path key 转为安全文件名，附加摘要避免不同 key 清洗后冲突
func (p *FileProvider) path(key string) string {
	name := unsafeFileChars.ReplaceAllString(key, "_")
	if len(name) > 64 {
		name = name[:64]
	}
	sum := sha256.Sum256([]byte(key))
	return filepath.Join(p.dir, name+"-"+hex.EncodeToString(sum[:6])+".lock")
}
