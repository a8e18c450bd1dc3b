// Package memory provides an in-process named lock manager.
package memory

import (
	"context"
	"errors"
	"sync"

	"github.com/fxsml/gosplit/splitter"
)

// ErrNotLocked is returned when unlocking a lock that is not held.
var ErrNotLocked = errors.New("lock: not locked")

// Lock is a mutex whose acquisition can be abandoned via context.
type Lock struct {
	sem chan struct{}
}

func newLock() *Lock {
	return &Lock{sem: make(chan struct{}, 1)}
}

// TryLock blocks until the lock is held or ctx is done.
func (l *Lock) TryLock(ctx context.Context) (bool, error) {
	select {
	case l.sem <- struct{}{}:
		return true, nil
	case <-ctx.Done():
		return false, nil
	}
}

// Unlock releases the lock.
func (l *Lock) Unlock(context.Context) error {
	select {
	case <-l.sem:
		return nil
	default:
		return ErrNotLocked
	}
}

// Manager hands out one Lock per name until the name is removed.
type Manager struct {
	mu    sync.Mutex
	locks map[string]*Lock
}

// NewManager creates an empty lock manager.
func NewManager() *Manager {
	return &Manager{locks: make(map[string]*Lock)}
}

// GetLock returns the lock for name, creating it on first use.
func (m *Manager) GetLock(name string) splitter.Lock {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.locks[name]
	if !ok {
		l = newLock()
		m.locks[name] = l
	}
	return l
}

// RemoveLock forgets the lock for name. Goroutines still holding or waiting
// on the removed lock keep using it; later GetLock calls get a new one.
func (m *Manager) RemoveLock(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.locks, name)
}

// Len returns the number of live locks.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.locks)
}
