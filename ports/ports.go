// Package ports defines interfaces (contracts) between layers.
// These interfaces enable dependency injection and testability.
// Implementations live in adapters/.
package ports

import (
	"context"
	"errors"
	"time"

	"github.com/artpar/ritan/domain/billing"
	"github.com/artpar/ritan/domain/engine"
	"github.com/artpar/ritan/domain/key"
	"github.com/artpar/ritan/domain/quota"
	"github.com/artpar/ritan/domain/usage"
)

// -----------------------------------------------------------------------------
// Infrastructure Ports
// -----------------------------------------------------------------------------

// Clock abstracts time for testability.
type Clock interface {
	Now() time.Time
}

// Random abstracts randomness for testability.
type Random interface {
	// Bytes generates n random bytes.
	Bytes(n int) ([]byte, error)
}

// IDGenerator generates unique identifiers.
type IDGenerator interface {
	New() string
}

// Hasher computes the one-way digest stored for API keys.
// The same instance must be used at issuance and at authentication.
type Hasher interface {
	// Digest returns the lowercase hex digest of a raw secret.
	Digest(raw string) string
	// Name identifies the algorithm for logs and config.
	Name() string
}

// -----------------------------------------------------------------------------
// Data Store Ports
// -----------------------------------------------------------------------------

// KeyStore persists API keys.
type KeyStore interface {
	// Create stores a new key. A duplicate digest returns key.ErrDigestCollision.
	Create(ctx context.Context, k key.Key) error

	// GetByDigest looks up a key by its secret digest.
	// Returns key.ErrNotFound when absent.
	GetByDigest(ctx context.Context, digest string) (key.Key, error)

	// Get retrieves a key by ID.
	Get(ctx context.Context, id string) (key.Key, error)

	// ListByUser returns all keys of a tenant, newest first.
	ListByUser(ctx context.Context, userID string) ([]key.Key, error)

	// Revoke marks a key as inactive.
	Revoke(ctx context.Context, id string, at time.Time) error

	// UpdateLastUsed updates the last used timestamp.
	UpdateLastUsed(ctx context.Context, id string, at time.Time) error
}

// ErrTenantNotFound is returned by TenantStore.Get for unknown tenants.
var ErrTenantNotFound = errors.New("tenant not found")

// Tenant is an account that owns keys and consumes credits.
type Tenant struct {
	ID        string
	Tier      quota.Tier
	CreatedAt time.Time
	UpdatedAt time.Time
}

// TenantStore persists tenants and their tier.
type TenantStore interface {
	// Get retrieves a tenant. Returns ErrTenantNotFound when absent.
	Get(ctx context.Context, id string) (Tenant, error)

	// Ensure creates the tenant on the free tier if it does not exist and
	// returns the stored row.
	Ensure(ctx context.Context, id string, at time.Time) (Tenant, error)

	// SetTier sets the tier, creating the tenant if needed. Idempotent.
	SetTier(ctx context.Context, id string, tier quota.Tier, at time.Time) error

	// List returns tenants ordered by creation.
	List(ctx context.Context, limit, offset int) ([]Tenant, error)
}

// UsageStore persists usage records.
type UsageStore interface {
	// RecordBatch appends records.
	RecordBatch(ctx context.Context, records []usage.Record) error

	// Count returns the exact number of records for a tenant.
	Count(ctx context.Context, userID string) (int64, error)

	// Recent returns up to limit records, newest first.
	Recent(ctx context.Context, userID string, limit int) ([]usage.Record, error)

	// Range returns records created in [start, end], oldest first.
	Range(ctx context.Context, userID string, start, end time.Time) ([]usage.Record, error)
}

// CounterStore holds per-period admission counters.
type CounterStore interface {
	// IncrementIfBelow atomically adds one to the counter for
	// (userID, periodStart) only when its current value is below ceiling.
	// It returns the counter value after the call and whether it was
	// incremented. Concurrent callers never push the counter past ceiling.
	IncrementIfBelow(ctx context.Context, userID string, periodStart time.Time, ceiling int64) (int64, bool, error)

	// Get returns the counter value, or 0 when no row exists.
	Get(ctx context.Context, userID string, periodStart time.Time) (int64, error)
}

// -----------------------------------------------------------------------------
// Event Ports
// -----------------------------------------------------------------------------

// UsageRecorder accepts usage records for async persistence.
type UsageRecorder interface {
	// Record queues a record for persistence.
	// This must be non-blocking and never fail the caller.
	Record(rec usage.Record)

	// Flush forces immediate persistence of queued records.
	Flush(ctx context.Context) error

	// Close stops the recorder and flushes remaining records.
	Close() error
}

// -----------------------------------------------------------------------------
// External Collaborator Ports
// -----------------------------------------------------------------------------

// EngineResult is what an engine returned for one call.
type EngineResult struct {
	Status int // HTTP-style status; 0 means 200
	Data   any
}

// Engine performs one kind of work on behalf of a caller.
// Returns engine.ErrNotFound when the engine found nothing.
type Engine interface {
	Invoke(ctx context.Context, req engine.Request) (EngineResult, error)
}

// PaymentVerifier checks payment proofs against the shared secret.
// Returns billing.ErrInvalidSignature on mismatch.
type PaymentVerifier interface {
	Verify(p billing.Proof) error
}

// SessionVerifier validates dashboard session tokens.
type SessionVerifier interface {
	// VerifySession returns the tenant ID the token was issued for.
	VerifySession(token string) (string, error)
}
