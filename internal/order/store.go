package order

import (
	"context"
	"errors"
	"sync"
)

// ErrHistoryUnavailable wraps every backend failure of a [Store]. Callers
// treat it as recoverable: recommendations degrade to an empty list rather
// than aborting the session.
var ErrHistoryUnavailable = errors.New("order: history unavailable")

// Store is the append-only persistence for completed orders.
//
// All implementations must be safe for concurrent use and must serialise
// Append calls so that Load never observes a partially written order.
type Store interface {
	// Load returns every persisted order. An empty store yields an empty
	// (non-nil) history.
	Load(ctx context.Context) (History, error)

	// Append persists a single completed order.
	Append(ctx context.Context, rec Record) error

	// Ping verifies that the backend is reachable. Used by readiness checks.
	Ping(ctx context.Context) error
}

// Compile-time assertion that MemStore satisfies the Store interface.
var _ Store = (*MemStore)(nil)

// MemStore is an in-memory [Store]. It is suitable for tests and for
// deployments that do not need history to survive restarts.
// The zero value is ready to use.
type MemStore struct {
	mu      sync.RWMutex
	records []Record
}

// NewMemStore returns a [MemStore] pre-populated with seed.
func NewMemStore(seed ...Record) *MemStore {
	s := &MemStore{}
	s.records = append(s.records, seed...)
	return s
}

// Load implements [Store.Load].
func (s *MemStore) Load(ctx context.Context) (History, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.Join(ErrHistoryUnavailable, err)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return HistoryOf(s.records), nil
}

// Append implements [Store.Append].
func (s *MemStore) Append(ctx context.Context, rec Record) error {
	if err := ctx.Err(); err != nil {
		return errors.Join(ErrHistoryUnavailable, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	rec.Items = append([]string(nil), rec.Items...)
	s.records = append(s.records, rec)
	return nil
}

// Ping implements [Store.Ping]. It always succeeds.
func (s *MemStore) Ping(context.Context) error { return nil }

// Records returns a copy of all stored records. Thread-safe.
func (s *MemStore) Records() []Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Record, len(s.records))
	copy(out, s.records)
	return out
}
