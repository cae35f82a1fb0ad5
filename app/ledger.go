package app

import (
	"context"
	"fmt"
	"time"

	"github.com/artpar/ritan/domain/quota"
	"github.com/artpar/ritan/domain/usage"
	"github.com/artpar/ritan/ports"
)

// LedgerService writes usage records and reads dashboard statistics.
type LedgerService struct {
	recorder  ports.UsageRecorder
	store     ports.UsageStore
	admission *AdmissionService
	clock     ports.Clock
}

// LedgerDeps contains dependencies for LedgerService.
type LedgerDeps struct {
	Recorder  ports.UsageRecorder
	Store     ports.UsageStore
	Admission *AdmissionService
	Clock     ports.Clock
}

// NewLedgerService creates a new ledger service.
func NewLedgerService(deps LedgerDeps) *LedgerService {
	return &LedgerService{
		recorder:  deps.Recorder,
		store:     deps.Store,
		admission: deps.Admission,
		clock:     deps.Clock,
	}
}

// Record queues rec for persistence. It never blocks on the store and
// never reports failure to the caller.
func (s *LedgerService) Record(rec usage.Record) {
	s.recorder.Record(rec)
}

// Stats returns the dashboard aggregate for ownerID.
func (s *LedgerService) Stats(ctx context.Context, ownerID string) (usage.Stats, error) {
	if ownerID == "" {
		return usage.Stats{}, ErrMissingOwner
	}

	total, err := s.store.Count(ctx, ownerID)
	if err != nil {
		return usage.Stats{}, fmt.Errorf("count usage: %w", err)
	}
	window, err := s.store.Recent(ctx, ownerID, usage.SuccessWindow)
	if err != nil {
		return usage.Stats{}, fmt.Errorf("recent usage: %w", err)
	}

	tier, used, limit := quota.TierFree, int64(0), quota.DefaultFreeCeiling
	if s.admission != nil {
		tier, used, limit, err = s.admission.Usage(ctx, ownerID)
		if err != nil {
			return usage.Stats{}, err
		}
	}

	return usage.ComputeStats(total, window, string(tier), used, limit), nil
}

// Summary aggregates the owner's records for the calendar month containing at.
func (s *LedgerService) Summary(ctx context.Context, ownerID string, at time.Time) (usage.Summary, error) {
	if ownerID == "" {
		return usage.Summary{}, ErrMissingOwner
	}
	start, end := quota.PeriodBounds(at)
	records, err := s.store.Range(ctx, ownerID, start, end)
	if err != nil {
		return usage.Summary{}, fmt.Errorf("range usage: %w", err)
	}
	sum := usage.Aggregate(records, start, end)
	sum.UserID = ownerID
	return sum, nil
}

// CurrentSummary aggregates the current period.
func (s *LedgerService) CurrentSummary(ctx context.Context, ownerID string) (usage.Summary, error) {
	return s.Summary(ctx, ownerID, s.clock.Now())
}
