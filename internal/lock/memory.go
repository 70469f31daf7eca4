package lock

import (
	"context"
	"sync"
)

// MemoryLocker — Locker в памяти процесса. Для тестов и dev-режима
// с одним воркером; распределённых гарантий не даёт.
type MemoryLocker struct {
	mu   sync.Mutex
	held map[int64]bool
}

// NewMemoryLocker создаёт новый MemoryLocker.
func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{held: make(map[int64]bool)}
}

// TryAcquire берёт ключ, если он свободен.
func (l *MemoryLocker) TryAcquire(_ context.Context, key int64) (Lease, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.held[key] {
		return nil, ErrBusy
	}
	l.held[key] = true
	return &memoryLease{locker: l, key: key}, nil
}

// Held возвращает true, если ключ сейчас удерживается.
func (l *MemoryLocker) Held(key int64) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.held[key]
}

type memoryLease struct {
	locker *MemoryLocker
	key    int64
	once   sync.Once
}

func (l *memoryLease) Release(context.Context) error {
	l.once.Do(func() {
		l.locker.mu.Lock()
		delete(l.locker.held, l.key)
		l.locker.mu.Unlock()
	})
	return nil
}
