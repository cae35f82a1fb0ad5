package usage

import (
	"math"
	"time"
)

const (
	// SuccessWindow is how many of the newest records feed the success rate.
	SuccessWindow = 1000
	// RecentLimit is how many records the dashboard shows.
	RecentLimit = 10
)

// Stats is the derived dashboard view of a tenant's usage (value type).
type Stats struct {
	TotalRequests    int64
	SuccessRate      float64 // percentage, one decimal
	RecentLogs       []Record
	RemainingCredits int64
	Tier             string
	PeriodUsage      int64
	PeriodLimit      int64
}

// Summary represents aggregated usage for a period (value type).
type Summary struct {
	UserID       string
	PeriodStart  time.Time
	PeriodEnd    time.Time
	RequestCount int64
	Credits      int64
	ErrorCount   int64 // status >= 400
	AvgLatencyMs int64
	ByEngine     map[string]int64
}

// SuccessRate returns the percentage of records with status 200, rounded to
// one decimal. An empty window yields 0.
// This is a PURE function.
func SuccessRate(window []Record) float64 {
	if len(window) == 0 {
		return 0
	}
	var ok int
	for _, r := range window {
		if r.Succeeded() {
			ok++
		}
	}
	pct := float64(ok) / float64(len(window)) * 100
	return math.Round(pct*10) / 10
}

// ComputeStats assembles the dashboard view.
// window must be newest-first and at most SuccessWindow long; RecentLogs
// is taken from its head.
// This is a PURE function.
func ComputeStats(total int64, window []Record, tier string, periodUsage, periodLimit int64) Stats {
	if len(window) > SuccessWindow {
		window = window[:SuccessWindow]
	}
	n := len(window)
	if n > RecentLimit {
		n = RecentLimit
	}
	recent := make([]Record, n)
	copy(recent, window[:n])

	remaining := periodLimit - periodUsage
	if remaining < 0 {
		remaining = 0
	}

	return Stats{
		TotalRequests:    total,
		SuccessRate:      SuccessRate(window),
		RecentLogs:       recent,
		RemainingCredits: remaining,
		Tier:             tier,
		PeriodUsage:      periodUsage,
		PeriodLimit:      periodLimit,
	}
}

// Aggregate combines records into a period summary.
// This is a PURE function.
func Aggregate(records []Record, periodStart, periodEnd time.Time) Summary {
	s := Summary{
		PeriodStart: periodStart,
		PeriodEnd:   periodEnd,
		ByEngine:    make(map[string]int64),
	}
	if len(records) == 0 {
		return s
	}

	var totalLatency int64
	for _, r := range records {
		if s.UserID == "" {
			s.UserID = r.UserID
		}
		s.RequestCount++
		s.Credits += int64(r.Cost)
		totalLatency += r.DurationMs
		if r.StatusCode >= 400 {
			s.ErrorCount++
		}
		if r.Engine != "" {
			s.ByEngine[r.Engine]++
		}
	}
	s.AvgLatencyMs = totalLatency / s.RequestCount
	return s
}
