// Package lock provides keyed mutual exclusion with bounded waits.
//
// Writers to one tenant+scope row set must not interleave. The Manager
// keeps one binary semaphore per key so writers to different row sets
// never wait on each other; Global mode collapses every key onto a single
// semaphore.
package lock

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrTimeout is returned when a lock could not be taken within the wait.
var ErrTimeout = errors.New("lock: acquisition timed out")

// Lease is a held lock. Release is idempotent.
type Lease interface {
	Release()
}

// Key builds the lock key for a tenant's scope.
func Key(tenantID, scope string) string { return tenantID + "/" + scope }

// Manager hands out per-key leases.
type Manager struct {
	global bool

	mu     sync.Mutex
	shards map[string]*shard
}

type shard struct {
	sem  chan struct{}
	refs int
}

// NewManager creates a sharded Manager.
func NewManager() *Manager {
	return &Manager{shards: make(map[string]*shard)}
}

// NewGlobal creates a Manager that serializes every key behind one lock.
func NewGlobal() *Manager {
	m := NewManager()
	m.global = true
	return m
}

// Acquire waits at most timeout for key. It fails with ErrTimeout, or the
// context error if ctx ends first.
func (m *Manager) Acquire(ctx context.Context, key string, timeout time.Duration) (Lease, error) {
	if m.global {
		key = ""
	}
	s := m.ref(key)

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case s.sem <- struct{}{}:
		return &lease{m: m, key: key, s: s}, nil
	case <-timer.C:
		m.unref(key)
		return nil, ErrTimeout
	case <-ctx.Done():
		m.unref(key)
		return nil, ctx.Err()
	}
}

// Held returns the number of keys with a live shard. Used by tests.
func (m *Manager) Held() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.shards)
}

func (m *Manager) ref(key string) *shard {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.shards[key]
	if !ok {
		s = &shard{sem: make(chan struct{}, 1)}
		m.shards[key] = s
	}
	s.refs++
	return s
}

func (m *Manager) unref(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.shards[key]
	if !ok {
		return
	}
	s.refs--
	if s.refs == 0 {
		delete(m.shards, key)
	}
}

type lease struct {
	m    *Manager
	key  string
	s    *shard
	once sync.Once
}

func (l *lease) Release() {
	l.once.Do(func() {
		<-l.s.sem
		l.m.unref(l.key)
	})
}
