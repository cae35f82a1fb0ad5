package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/artpar/ritan/ports"
)

// CounterStore implements ports.CounterStore using SQLite.
// Counters survive restarts and are shared by every process on the file.
type CounterStore struct {
	db  *DB
	now func() time.Time
}

// NewCounterStore creates a new SQLite counter store.
func NewCounterStore(db *DB) *CounterStore {
	return &CounterStore{db: db, now: func() time.Time { return time.Now().UTC() }}
}

// IncrementIfBelow performs the check and the increment in one upsert.
// The WHERE clause on the conflict branch makes the update conditional,
// so two racing callers at ceiling-1 cannot both succeed.
func (s *CounterStore) IncrementIfBelow(ctx context.Context, userID string, periodStart time.Time, ceiling int64) (int64, bool, error) {
	period := periodKey(periodStart)
	if ceiling <= 0 {
		n, err := s.Get(ctx, userID, periodStart)
		return n, false, err
	}

	var count int64
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO admission_counters (user_id, period, count, updated_at)
		VALUES (?, ?, 1, ?)
		ON CONFLICT(user_id, period) DO UPDATE SET
			count = admission_counters.count + 1,
			updated_at = excluded.updated_at
		WHERE admission_counters.count < ?
		RETURNING count
	`, userID, period, s.now(), ceiling).Scan(&count)

	if errors.Is(err, sql.ErrNoRows) {
		// Conflict branch skipped: the counter is at or above ceiling.
		n, err := s.Get(ctx, userID, periodStart)
		return n, false, err
	}
	if err != nil {
		return 0, false, err
	}
	return count, true, nil
}

// Get returns the counter value for a period.
func (s *CounterStore) Get(ctx context.Context, userID string, periodStart time.Time) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `
		SELECT count FROM admission_counters WHERE user_id = ? AND period = ?
	`, userID, periodKey(periodStart)).Scan(&count)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	return count, err
}

// Ensure interface compliance.
var _ ports.CounterStore = (*CounterStore)(nil)
