package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/artpar/ritan/domain/quota"
	"github.com/artpar/ritan/ports"
)

// TenantStore is an in-memory implementation of ports.TenantStore.
type TenantStore struct {
	mu      sync.RWMutex
	tenants map[string]ports.Tenant
	writes  int
}

// NewTenantStore creates a new in-memory tenant store.
func NewTenantStore() *TenantStore {
	return &TenantStore{tenants: make(map[string]ports.Tenant)}
}

// Get retrieves a tenant by ID.
func (s *TenantStore) Get(ctx context.Context, id string) (ports.Tenant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.tenants[id]
	if !ok {
		return ports.Tenant{}, ports.ErrTenantNotFound
	}
	return t, nil
}

// Ensure creates the tenant on the free tier if absent.
func (s *TenantStore) Ensure(ctx context.Context, id string, at time.Time) (ports.Tenant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if t, ok := s.tenants[id]; ok {
		return t, nil
	}
	t := ports.Tenant{ID: id, Tier: quota.TierFree, CreatedAt: at, UpdatedAt: at}
	s.tenants[id] = t
	s.writes++
	return t, nil
}

// SetTier upserts the tenant's tier.
func (s *TenantStore) SetTier(ctx context.Context, id string, tier quota.Tier, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tenants[id]
	if !ok {
		t = ports.Tenant{ID: id, CreatedAt: at}
	}
	t.Tier = tier
	t.UpdatedAt = at
	s.tenants[id] = t
	s.writes++
	return nil
}

// List returns tenants ordered by creation.
func (s *TenantStore) List(ctx context.Context, limit, offset int) ([]ports.Tenant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := make([]ports.Tenant, 0, len(s.tenants))
	for _, t := range s.tenants {
		all = append(all, t)
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].ID < all[j].ID
		}
		return all[i].CreatedAt.Before(all[j].CreatedAt)
	})

	if offset >= len(all) {
		return []ports.Tenant{}, nil
	}
	all = all[offset:]
	if limit > 0 && limit < len(all) {
		all = all[:limit]
	}
	return all, nil
}

// Writes returns how many mutating calls have been made (for testing).
func (s *TenantStore) Writes() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.writes
}

// Ensure interface compliance.
var _ ports.TenantStore = (*TenantStore)(nil)
