package indexer

import (
	"sync"
	"sync/atomic"
)

// IndexLock provides non-blocking lock semantics using atomic operations.
type IndexLock struct {
	state atomic.Int32 // 0 = unlocked, 1 = locked
}

// TryAcquire attempts to acquire the lock without blocking.
// Returns true if the lock was successfully acquired.
func (l *IndexLock) TryAcquire() bool {
	return l.state.CompareAndSwap(0, 1)
}

// Release releases the lock.
// Must only be called by the goroutine that successfully acquired it.
func (l *IndexLock) Release() {
	l.state.Store(0)
}

// lockTable hands out one IndexLock per root path so concurrent passes over
// different roots proceed while a duplicate pass over the same root fails
// fast.
type lockTable struct {
	mu    sync.Mutex
	locks map[string]*IndexLock
}

func newLockTable() *lockTable {
	return &lockTable{locks: make(map[string]*IndexLock)}
}

func (t *lockTable) forRoot(root string) *IndexLock {
	t.mu.Lock()
	defer t.mu.Unlock()
	l, ok := t.locks[root]
	if !ok {
		l = &IndexLock{}
		t.locks[root] = l
	}
	return l
}
