// Package memory is an in-process row store. It backs tests and
// single-instance deployments that do not need durability.
package memory

import (
	"context"
	"fmt"
	"sync"

	"example.com/brandevents/internal/domain"
)

// Store keeps each tenant scope as an ordered slice of rows.
type Store struct {
	mu       sync.RWMutex
	rows     map[string][]domain.Row
	sponsors map[string]map[string]domain.Sponsor

	// FailWrites makes every write fail. Tests use it to exercise the
	// error path.
	FailWrites error
}

// New creates an empty Store.
func New() *Store {
	return &Store{
		rows:     make(map[string][]domain.Row),
		sponsors: make(map[string]map[string]domain.Sponsor),
	}
}

func key(tenantID, scope string) string { return tenantID + "/" + scope }

// ListRows returns a copy of every row in the tenant scope in insertion
// order.
func (s *Store) ListRows(_ context.Context, tenantID, scope string) ([]domain.Row, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	src := s.rows[key(tenantID, scope)]
	out := make([]domain.Row, len(src))
	copy(out, src)
	return out, nil
}

// AppendRow adds row at the end of the tenant scope.
func (s *Store) AppendRow(_ context.Context, tenantID, scope string, row domain.Row) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailWrites != nil {
		return s.FailWrites
	}
	k := key(tenantID, scope)
	s.rows[k] = append(s.rows[k], row)
	return nil
}

// OverwriteRow replaces the row at index, which is a position within the
// tenant scope as returned by ListRows.
func (s *Store) OverwriteRow(_ context.Context, tenantID, scope string, index int, row domain.Row) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailWrites != nil {
		return s.FailWrites
	}
	rows := s.rows[key(tenantID, scope)]
	if index < 0 || index >= len(rows) {
		return fmt.Errorf("memory: row index %d out of range (%d rows)", index, len(rows))
	}
	rows[index] = row
	return nil
}

// PutSponsor registers a sponsor for tenantID.
func (s *Store) PutSponsor(_ context.Context, tenantID string, sp domain.Sponsor) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.sponsors[tenantID]
	if !ok {
		m = make(map[string]domain.Sponsor)
		s.sponsors[tenantID] = m
	}
	m[sp.ID] = sp
	return nil
}

// ResolveSponsors returns the known sponsors among ids.
func (s *Store) ResolveSponsors(_ context.Context, tenantID string, ids []string) (map[string]domain.Sponsor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]domain.Sponsor, len(ids))
	for _, id := range ids {
		if sp, ok := s.sponsors[tenantID][id]; ok {
			out[id] = sp
		}
	}
	return out, nil
}

// Ping always succeeds.
func (s *Store) Ping(context.Context) error { return nil }
