// Package quota provides pure functions for tier-based admission.
// All functions are deterministic with no side effects.
package quota

import (
	"fmt"
	"time"
)

// Tier is a tenant's service level.
type Tier string

const (
	TierFree Tier = "free"
	TierPro  Tier = "pro"
)

// Default ceilings per period.
const (
	DefaultFreeCeiling int64 = 100
	DefaultProCeiling  int64 = 10000
)

// ParseTier converts a stored value into a Tier.
// Unknown values fall back to free so an unexpected row never grants more.
func ParseTier(s string) Tier {
	switch Tier(s) {
	case TierPro:
		return TierPro
	default:
		return TierFree
	}
}

// Valid reports whether t is a known tier.
func (t Tier) Valid() bool {
	return t == TierFree || t == TierPro
}

// Ceilings maps each tier to its per-period request ceiling (value type).
type Ceilings map[Tier]int64

// DefaultCeilings returns the built-in ceilings.
func DefaultCeilings() Ceilings {
	return Ceilings{
		TierFree: DefaultFreeCeiling,
		TierPro:  DefaultProCeiling,
	}
}

// For returns the ceiling for a tier, falling back to the free ceiling.
// This is a PURE function.
func (c Ceilings) For(t Tier) int64 {
	if v, ok := c[t]; ok {
		return v
	}
	if v, ok := c[TierFree]; ok {
		return v
	}
	return DefaultFreeCeiling
}

// Decision is the outcome of an admission check (value type).
type Decision struct {
	Allowed bool
	Tier    Tier
	Limit   int64
	Current int64 // counter value after the check
}

// Message describes a denial for clients.
func (d Decision) Message() string {
	return fmt.Sprintf("monthly limit of %d requests reached for the %s tier", d.Limit, d.Tier)
}

// Decide interprets the result of an atomic conditional increment.
// This is a PURE function.
func Decide(tier Tier, limit, count int64, incremented bool) Decision {
	return Decision{
		Allowed: incremented,
		Tier:    tier,
		Limit:   limit,
		Current: count,
	}
}

// Admits reports whether a counter at current may take one more request.
// This is a PURE function.
func Admits(current, limit int64) bool {
	return current < limit
}

// PeriodBounds returns the start and end of the calendar-month period
// containing t, in UTC.
// This is a PURE function.
func PeriodBounds(t time.Time) (start, end time.Time) {
	t = t.UTC()
	start = time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
	end = start.AddDate(0, 1, 0).Add(-time.Nanosecond)
	return
}
