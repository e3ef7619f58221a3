// Package cache provides a short-lived key/value cache for idempotency
// markers.
package cache

import (
	"context"
	"sync"
	"time"
)

// sweepEvery is the number of writes between expiry sweeps.
const sweepEvery = 256

// Memory is an in-process TTL cache. Entries expire lazily on read and
// in periodic sweeps on write.
type Memory struct {
	mu     sync.Mutex
	items  map[string]entry
	writes int
	now    func() time.Time
}

type entry struct {
	value     string
	expiresAt time.Time
}

// NewMemory creates an empty cache. now may be nil.
func NewMemory(now func() time.Time) *Memory {
	if now == nil {
		now = time.Now
	}
	return &Memory{items: make(map[string]entry), now: now}
}

// Get returns the live value for key.
func (m *Memory) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.items[key]
	if !ok {
		return "", false, nil
	}
	if !m.now().Before(e.expiresAt) {
		delete(m.items, key)
		return "", false, nil
	}
	return e.value, true, nil
}

// Put stores value under key for ttl.
func (m *Memory) Put(_ context.Context, key, value string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	m.items[key] = entry{value: value, expiresAt: now.Add(ttl)}
	m.writes++
	if m.writes%sweepEvery == 0 {
		for k, e := range m.items {
			if !now.Before(e.expiresAt) {
				delete(m.items, k)
			}
		}
	}
	return nil
}

// Len returns the number of stored entries, live or not.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.items)
}
