package usage_test

import (
	"testing"
	"time"

	"github.com/artpar/ritan/domain/usage"
)

var (
	periodStart = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	periodEnd   = time.Date(2024, 1, 31, 23, 59, 59, 0, time.UTC)
)

func records(statuses ...int) []usage.Record {
	out := make([]usage.Record, len(statuses))
	for i, s := range statuses {
		out[i] = usage.Record{ID: string(rune('a' + i%26)), UserID: "u1", StatusCode: s}
	}
	return out
}

func TestSuccessRate(t *testing.T) {
	tests := []struct {
		name   string
		window []usage.Record
		want   float64
	}{
		{"no records", nil, 0},
		{"all ok", records(200, 200), 100},
		{"none ok", records(500, 404), 0},
		{"201 is not success", records(200, 201), 50},
		{"one of three", records(200, 500, 500), 33.3},
		{"two of three", records(200, 200, 500), 66.7},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := usage.SuccessRate(tt.window); got != tt.want {
				t.Errorf("SuccessRate() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestComputeStats(t *testing.T) {
	window := make([]usage.Record, 0, 1200)
	for i := 0; i < 1200; i++ {
		status := 200
		// The 200 oldest entries fall outside the window and are all failures.
		if i >= 1000 {
			status = 500
		}
		window = append(window, usage.Record{UserID: "u1", StatusCode: status, DurationMs: int64(i)})
	}

	stats := usage.ComputeStats(5000, window, "free", 40, 100)

	if stats.TotalRequests != 5000 {
		t.Errorf("TotalRequests = %d, want 5000", stats.TotalRequests)
	}
	if stats.SuccessRate != 100 {
		t.Errorf("SuccessRate = %v, want 100 (only the newest 1000 count)", stats.SuccessRate)
	}
	if len(stats.RecentLogs) != usage.RecentLimit {
		t.Fatalf("RecentLogs len = %d, want %d", len(stats.RecentLogs), usage.RecentLimit)
	}
	if stats.RecentLogs[0].DurationMs != 0 {
		t.Errorf("RecentLogs should keep newest-first order")
	}
	if stats.RemainingCredits != 60 {
		t.Errorf("RemainingCredits = %d, want 60", stats.RemainingCredits)
	}
}

func TestComputeStats_Empty(t *testing.T) {
	stats := usage.ComputeStats(0, nil, "free", 0, 100)

	if stats.SuccessRate != 0 {
		t.Errorf("SuccessRate = %v, want 0", stats.SuccessRate)
	}
	if stats.RecentLogs == nil || len(stats.RecentLogs) != 0 {
		t.Errorf("RecentLogs = %v, want empty non-nil slice", stats.RecentLogs)
	}
	if stats.RemainingCredits != 100 {
		t.Errorf("RemainingCredits = %d, want 100", stats.RemainingCredits)
	}
}

func TestComputeStats_RemainingFloor(t *testing.T) {
	stats := usage.ComputeStats(150, nil, "free", 150, 100)
	if stats.RemainingCredits != 0 {
		t.Errorf("RemainingCredits = %d, want 0", stats.RemainingCredits)
	}
}

func TestAggregate(t *testing.T) {
	recs := []usage.Record{
		{UserID: "u1", Engine: "scrape", StatusCode: 200, DurationMs: 100, Cost: 1},
		{UserID: "u1", Engine: "pdf", StatusCode: 200, DurationMs: 200, Cost: 5},
		{UserID: "u1", Engine: "pdf", StatusCode: 502, DurationMs: 50, Cost: 5},
	}

	summary := usage.Aggregate(recs, periodStart, periodEnd)

	if summary.RequestCount != 3 {
		t.Errorf("RequestCount = %d, want 3", summary.RequestCount)
	}
	if summary.Credits != 11 {
		t.Errorf("Credits = %d, want 11", summary.Credits)
	}
	if summary.ErrorCount != 1 {
		t.Errorf("ErrorCount = %d, want 1", summary.ErrorCount)
	}
	if summary.AvgLatencyMs != 116 {
		t.Errorf("AvgLatencyMs = %d, want 116", summary.AvgLatencyMs)
	}
	if summary.ByEngine["pdf"] != 2 {
		t.Errorf("ByEngine[pdf] = %d, want 2", summary.ByEngine["pdf"])
	}
}

func TestAggregate_Empty(t *testing.T) {
	summary := usage.Aggregate(nil, periodStart, periodEnd)

	if summary.RequestCount != 0 {
		t.Errorf("RequestCount = %d, want 0", summary.RequestCount)
	}
	if !summary.PeriodStart.Equal(periodStart) {
		t.Errorf("PeriodStart = %v, want %v", summary.PeriodStart, periodStart)
	}
}

func TestNewRecord_NegativeCost(t *testing.T) {
	r := usage.NewRecord("id", "u1", "k1", "qr", "/v1/qr", "POST", 400, 3, -1, "", periodStart)
	if r.Cost != 0 {
		t.Errorf("Cost = %d, want 0", r.Cost)
	}
}
