// Package audittest provides an in-memory audit store for tests.
package audittest

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/odyssey-erp/odyssey-admin/internal/audit"
)

// Store is an append-only in-memory audit.Store. Timestamps are assigned from
// a clock that advances one millisecond per append.
type Store struct {
	mu      sync.Mutex
	entries []audit.Entry
	clock   time.Time
	// AppendErr, when set, fails every Append.
	AppendErr error
	// ListErr, when set, fails every ListRecent.
	ListErr error
	// Lists counts ListRecent calls.
	Lists int
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{clock: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

// Append implements audit.Store.
func (s *Store) Append(ctx context.Context, entry audit.NewEntry) (audit.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.AppendErr != nil {
		return audit.Entry{}, s.AppendErr
	}
	s.clock = s.clock.Add(time.Millisecond)
	e := audit.Entry{
		ID:         uuid.New(),
		TenantID:   entry.TenantID,
		ActorID:    entry.ActorID,
		ActorName:  entry.ActorName,
		Action:     entry.Action,
		EntityType: entry.EntityType,
		EntityID:   entry.EntityID,
		Details:    entry.Details.Clone(),
		CreatedAt:  s.clock,
	}
	s.entries = append(s.entries, e)
	return copyEntry(e), nil
}

// ListRecent implements audit.Store.
func (s *Store) ListRecent(ctx context.Context, scope audit.TenantScope, limit int) ([]audit.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Lists++
	if s.ListErr != nil {
		return nil, s.ListErr
	}
	out := make([]audit.Entry, 0)
	for _, e := range s.entries {
		if e.TenantID == scope.TenantID() {
			out = append(out, copyEntry(e))
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// All returns every stored entry in insertion order, across tenants.
func (s *Store) All() []audit.Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]audit.Entry, 0, len(s.entries))
	for _, e := range s.entries {
		out = append(out, copyEntry(e))
	}
	return out
}

func copyEntry(e audit.Entry) audit.Entry {
	e.Details = e.Details.Clone()
	return e
}
