package lock

import "sync"

// arena 按 key 缓存锁实例，同一进程内同一 key 只存在一个实例；
// 引用计数归零（无持有者也无等待者）时移除，避免 key 无限增长。
type arena[T any] struct {
	mu      sync.Mutex
	entries map[string]*arenaEntry[T]
	newFn   func(key string) T
}

type arenaEntry[T any] struct {
	value T
	refs  int
}

func newArena[T any](newFn func(key string) T) *arena[T] {
	return &arena[T]{
		entries: make(map[string]*arenaEntry[T]),
		newFn:   newFn,
	}
}

// ref 获取 key 对应实例并增加引用
func (a *arena[T]) ref(key string) T {
	a.mu.Lock()
	defer a.mu.Unlock()
	entry, ok := a.entries[key]
	if !ok {
		entry = &arenaEntry[T]{value: a.newFn(key)}
		a.entries[key] = entry
	}
	entry.refs++
	return entry.value
}

// unref 释放引用，归零时移除
func (a *arena[T]) unref(key string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	entry, ok := a.entries[key]
	if !ok {
		return
	}
	entry.refs--
	if entry.refs <= 0 {
		delete(a.entries, key)
	}
}

func (a *arena[T]) size() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.entries)
}
