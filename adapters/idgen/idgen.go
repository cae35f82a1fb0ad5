// Package idgen provides ID generation implementations.
package idgen

import (
	"strconv"
	"sync/atomic"

	"github.com/artpar/ritan/ports"
	"github.com/google/uuid"
)

// UUID generates random UUIDs (v4). Used for keys and tenants.
type UUID struct{}

// New generates a new UUID v4.
func (UUID) New() string {
	return uuid.NewString()
}

var _ ports.IDGenerator = UUID{}

// Ordered generates time-ordered UUIDs (v7) so usage record IDs sort by
// insertion time. Falls back to v4 if the v7 source fails.
type Ordered struct{}

// New generates a new UUID v7.
func (Ordered) New() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

var _ ports.IDGenerator = Ordered{}

// Sequential generates sequential IDs (for testing).
type Sequential struct {
	prefix  string
	counter atomic.Uint64
}

// NewSequential creates a sequential ID generator.
func NewSequential(prefix string) *Sequential {
	return &Sequential{prefix: prefix}
}

// New generates the next sequential ID.
func (s *Sequential) New() string {
	return s.prefix + strconv.FormatUint(s.counter.Add(1), 10)
}

var _ ports.IDGenerator = (*Sequential)(nil)
