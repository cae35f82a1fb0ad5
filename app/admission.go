package app

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/artpar/ritan/domain/quota"
	"github.com/artpar/ritan/ports"
	"github.com/rs/zerolog"
)

// AdmissionService enforces per-period tier ceilings.
type AdmissionService struct {
	tenants  ports.TenantStore
	counters ports.CounterStore
	clock    ports.Clock
	logger   zerolog.Logger

	// Hot-reloadable.
	ceilings atomic.Pointer[quota.Ceilings]
}

// AdmissionDeps contains dependencies for AdmissionService.
type AdmissionDeps struct {
	Tenants  ports.TenantStore
	Counters ports.CounterStore
	Clock    ports.Clock
	Logger   zerolog.Logger
}

// NewAdmissionService creates a new admission service. A nil ceilings map
// uses quota.DefaultCeilings.
func NewAdmissionService(deps AdmissionDeps, ceilings quota.Ceilings) *AdmissionService {
	s := &AdmissionService{
		tenants:  deps.Tenants,
		counters: deps.Counters,
		clock:    deps.Clock,
		logger:   deps.Logger,
	}
	s.UpdateCeilings(ceilings)
	return s
}

// UpdateCeilings swaps the tier ceilings. Safe to call while serving.
func (s *AdmissionService) UpdateCeilings(c quota.Ceilings) {
	if c == nil {
		c = quota.DefaultCeilings()
	}
	cp := make(quota.Ceilings, len(c))
	for k, v := range c {
		cp[k] = v
	}
	s.ceilings.Store(&cp)
}

// Ceilings returns the active tier ceilings.
func (s *AdmissionService) Ceilings() quota.Ceilings {
	return *s.ceilings.Load()
}

// CheckAndConsume admits one call for ownerID when the tenant is below its
// ceiling for the current period, consuming one unit in the same atomic
// step. A denied call leaves the counter unchanged. Store errors deny.
func (s *AdmissionService) CheckAndConsume(ctx context.Context, ownerID string) (quota.Decision, error) {
	tier, err := s.tier(ctx, ownerID)
	if err != nil {
		return quota.Decision{}, err
	}
	limit := s.Ceilings().For(tier)
	start, _ := quota.PeriodBounds(s.clock.Now())

	count, ok, err := s.counters.IncrementIfBelow(ctx, ownerID, start, limit)
	if err != nil {
		return quota.Decision{}, fmt.Errorf("increment counter: %w", err)
	}

	d := quota.Decide(tier, limit, count, ok)
	if !d.Allowed {
		s.logger.Info().
			Str("user_id", ownerID).
			Str("tier", string(tier)).
			Int64("limit", limit).
			Msg("admission denied")
	}
	return d, nil
}

// Usage returns the tenant's counter and ceiling for the current period.
func (s *AdmissionService) Usage(ctx context.Context, ownerID string) (tier quota.Tier, used, limit int64, err error) {
	tier, err = s.tier(ctx, ownerID)
	if err != nil {
		return "", 0, 0, err
	}
	start, _ := quota.PeriodBounds(s.clock.Now())
	used, err = s.counters.Get(ctx, ownerID, start)
	if err != nil {
		return "", 0, 0, fmt.Errorf("read counter: %w", err)
	}
	return tier, used, s.Ceilings().For(tier), nil
}

func (s *AdmissionService) tier(ctx context.Context, ownerID string) (quota.Tier, error) {
	t, err := s.tenants.Get(ctx, ownerID)
	if errors.Is(err, ports.ErrTenantNotFound) {
		return quota.TierFree, nil
	}
	if err != nil {
		return "", fmt.Errorf("read tenant: %w", err)
	}
	return t.Tier, nil
}
