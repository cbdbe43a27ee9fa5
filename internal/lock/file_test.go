package lock

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestFileProviderExcludesAcrossInstances(t *testing.T) {
	dir := t.TempDir()
	a, err := NewFile(dir, 5*time.Millisecond)
	if err != nil {
		t.Fatalf("new file provider failed: %v", err)
	}
	b, err := NewFile(dir, 5*time.Millisecond)
	if err != nil {
		t.Fatalf("new file provider failed: %v", err)
	}
	ctx := context.Background()

	held, err := a.Acquire(ctx, "create:M1:biz/1", 0)
	if err != nil {
		t.Fatalf("acquire failed: %v", err)
	}
	if _, err := b.Acquire(ctx, "create:M1:biz/1", 30*time.Millisecond); !errors.Is(err, ErrAcquireTimeout) {
		t.Fatalf("second instance should time out, got %v", err)
	}
	if _, err := a.Acquire(ctx, "create:M1:biz/1", 0); !errors.Is(err, ErrAcquireTimeout) {
		t.Fatalf("same instance must also exclude, got %v", err)
	}

	held.Release()
	next, err := b.Acquire(ctx, "create:M1:biz/1", 100*time.Millisecond)
	if err != nil {
		t.Fatalf("acquire after release failed: %v", err)
	}
	next.Release()

	if a.Size() != 0 || b.Size() != 0 {
		t.Fatalf("file lock entries should be evicted, a=%d b=%d", a.Size(), b.Size())
	}
}

func TestFileProviderPathIsSafe(t *testing.T) {
	p, err := NewFile(t.TempDir(), 0)
	if err != nil {
		t.Fatalf("new file provider failed: %v", err)
	}
	if p.path("a/b") == p.path("a_b") {
		t.Fatalf("distinct keys must map to distinct files")
	}
}
