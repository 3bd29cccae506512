// Package syncutil holds in-process synchronization primitives.
package syncutil

import (
	"context"
	"sync"
)

// KeyedMutex hands out one context-aware lock per key. Unlike a sharded pool,
// two distinct keys never contend. Entries are reference counted and dropped
// once no goroutine holds or waits for them, so memory tracks the number of
// keys in flight rather than every key ever seen.
type KeyedMutex struct {
	mu    sync.Mutex
	locks map[string]*keyLock
}

// keyLock is a mutex built on a one-slot channel so acquisition can be
// abandoned through select.
type keyLock struct {
	ch   chan struct{}
	refs int
}

// NewKeyedMutex creates an empty KeyedMutex.
func NewKeyedMutex() *KeyedMutex {
	return &KeyedMutex{locks: make(map[string]*keyLock)}
}

// LockContext acquires the lock for key. On success the caller MUST call the
// returned unlock function. If ctx ends first, it returns the context error.
func (m *KeyedMutex) LockContext(ctx context.Context, key string) (func(), error) {
	l := m.acquireRef(key)

	select {
	case l.ch <- struct{}{}:
		var once sync.Once
		return func() {
			once.Do(func() {
				<-l.ch
				m.releaseRef(key, l)
			})
		}, nil
	case <-ctx.Done():
		m.releaseRef(key, l)
		return nil, ctx.Err()
	}
}

// Len returns the number of keys currently held or awaited.
func (m *KeyedMutex) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.locks)
}

func (m *KeyedMutex) acquireRef(key string) *keyLock {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.locks[key]
	if !ok {
		l = &keyLock{ch: make(chan struct{}, 1)}
		m.locks[key] = l
	}
	l.refs++
	return l
}

func (m *KeyedMutex) releaseRef(key string, l *keyLock) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l.refs--
	if l.refs == 0 {
		delete(m.locks, key)
	}
}

// LoanLocker adapts KeyedMutex to the per-loan locking port.
type LoanLocker struct {
	keys *KeyedMutex
}

// NewLoanLocker returns an in-process loan locker.
func NewLoanLocker() *LoanLocker {
	return &LoanLocker{keys: NewKeyedMutex()}
}

// Lock blocks until no other payment for loanID is in progress in this process.
func (l *LoanLocker) Lock(ctx context.Context, loanID string) (func(), error) {
	return l.keys.LockContext(ctx, loanID)
}
