package app_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/artpar/ritan/domain/usage"
)

func seedRecords(t *testing.T, stores *testStores, userID string, statuses ...int) {
	t.Helper()
	records := make([]usage.Record, len(statuses))
	for i, status := range statuses {
		records[i] = usage.NewRecord(
			fmt.Sprintf("rec-%s-%d", userID, i), userID, "key-1", "qr", "/v1/qr", "POST",
			status, 10, 1, "", baseTime.Add(time.Duration(i)*time.Second),
		)
	}
	if err := stores.usage.RecordBatch(context.Background(), records); err != nil {
		t.Fatalf("RecordBatch() error = %v", err)
	}
}

func TestLedgerService_Stats_Empty(t *testing.T) {
	svc, _ := newTestServices(nil, nil)

	stats, err := svc.ledger.Stats(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("Stats() error = %v", err)
	}
	if stats.TotalRequests != 0 || stats.SuccessRate != 0 {
		t.Errorf("stats = %+v, want zeros", stats)
	}
	if stats.RecentLogs == nil || len(stats.RecentLogs) != 0 {
		t.Errorf("recent logs = %v, want empty slice", stats.RecentLogs)
	}
	if stats.RemainingCredits != 100 || stats.Tier != "free" {
		t.Errorf("remaining = %d tier = %s", stats.RemainingCredits, stats.Tier)
	}
}

func TestLedgerService_Stats(t *testing.T) {
	ctx := context.Background()
	svc, stores := newTestServices(nil, nil)

	statuses := []int{200, 200, 404, 200, 500, 200, 201, 200, 200, 200, 200, 200}
	seedRecords(t, stores, "user-1", statuses...)
	seedRecords(t, stores, "user-2", 500)
	svc.admission.CheckAndConsume(ctx, "user-1")
	svc.admission.CheckAndConsume(ctx, "user-1")

	stats, err := svc.ledger.Stats(ctx, "user-1")
	if err != nil {
		t.Fatalf("Stats() error = %v", err)
	}
	if stats.TotalRequests != 12 {
		t.Errorf("total = %d, want 12", stats.TotalRequests)
	}
	// 9 of 12 are exactly 200; 201 does not count.
	if stats.SuccessRate != 75 {
		t.Errorf("success rate = %v, want 75", stats.SuccessRate)
	}
	if len(stats.RecentLogs) != usage.RecentLimit {
		t.Fatalf("recent = %d, want %d", len(stats.RecentLogs), usage.RecentLimit)
	}
	if stats.RecentLogs[0].ID != "rec-user-1-11" {
		t.Errorf("newest = %s, want rec-user-1-11", stats.RecentLogs[0].ID)
	}
	if stats.PeriodUsage != 2 || stats.RemainingCredits != 98 {
		t.Errorf("usage = %d remaining = %d, want 2 and 98", stats.PeriodUsage, stats.RemainingCredits)
	}
}

func TestLedgerService_CurrentSummary(t *testing.T) {
	svc, stores := newTestServices(nil, nil)
	seedRecords(t, stores, "user-1", 200, 500, 200)

	sum, err := svc.ledger.CurrentSummary(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("CurrentSummary() error = %v", err)
	}
	if sum.RequestCount != 3 || sum.ErrorCount != 1 || sum.Credits != 3 {
		t.Errorf("summary = %+v", sum)
	}
	if sum.ByEngine["qr"] != 3 {
		t.Errorf("by engine = %v", sum.ByEngine)
	}
	if sum.UserID != "user-1" {
		t.Errorf("user = %s", sum.UserID)
	}
}
