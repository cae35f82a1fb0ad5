package memory

import (
	"context"
	"sync"
	"time"

	"github.com/artpar/ritan/domain/usage"
	"github.com/artpar/ritan/ports"
)

// UsageStore is an in-memory implementation of ports.UsageStore.
// Records are kept in insertion order.
type UsageStore struct {
	mu      sync.RWMutex
	records []usage.Record
}

// NewUsageStore creates a new in-memory usage store.
func NewUsageStore() *UsageStore {
	return &UsageStore{records: make([]usage.Record, 0)}
}

// RecordBatch appends records.
func (s *UsageStore) RecordBatch(ctx context.Context, records []usage.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records = append(s.records, records...)
	return nil
}

// Count returns the number of records for a tenant.
func (s *UsageStore) Count(ctx context.Context, userID string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int64
	for _, r := range s.records {
		if r.UserID == userID {
			n++
		}
	}
	return n, nil
}

// Recent returns up to limit records, newest first.
func (s *UsageStore) Recent(ctx context.Context, userID string, limit int) ([]usage.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []usage.Record{}
	for i := len(s.records) - 1; i >= 0 && len(out) < limit; i-- {
		if s.records[i].UserID == userID {
			out = append(out, s.records[i])
		}
	}
	return out, nil
}

// Range returns records created in [start, end], oldest first.
func (s *UsageStore) Range(ctx context.Context, userID string, start, end time.Time) ([]usage.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []usage.Record{}
	for _, r := range s.records {
		if r.UserID == userID && !r.CreatedAt.Before(start) && !r.CreatedAt.After(end) {
			out = append(out, r)
		}
	}
	return out, nil
}

// All returns a copy of every stored record (for testing).
func (s *UsageStore) All() []usage.Record {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]usage.Record, len(s.records))
	copy(out, s.records)
	return out
}

// Ensure interface compliance.
var _ ports.UsageStore = (*UsageStore)(nil)
