package sqlite

import (
	"context"
	"time"

	"github.com/artpar/ritan/domain/usage"
	"github.com/artpar/ritan/ports"
)

// UsageStore implements ports.UsageStore using SQLite.
type UsageStore struct {
	db *DB
}

// NewUsageStore creates a new SQLite usage store.
func NewUsageStore(db *DB) *UsageStore {
	return &UsageStore{db: db}
}

const recordColumns = `id, user_id, key_id, engine, endpoint, method, status_code, duration_ms, cost, source_ip, created_at`

// RecordBatch appends records in one transaction.
func (s *UsageStore) RecordBatch(ctx context.Context, records []usage.Record) error {
	if len(records) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO usage_records (`+recordColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, r := range records {
		_, err := stmt.ExecContext(ctx,
			r.ID, r.UserID, r.KeyID, r.Engine, r.Endpoint, r.Method, r.StatusCode,
			r.DurationMs, r.Cost, r.SourceIP, r.CreatedAt.UTC(),
		)
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

// Count returns the exact number of records for a tenant.
func (s *UsageStore) Count(ctx context.Context, userID string) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM usage_records WHERE user_id = ?
	`, userID).Scan(&n)
	return n, err
}

// Recent returns up to limit records, newest first.
func (s *UsageStore) Recent(ctx context.Context, userID string, limit int) ([]usage.Record, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+recordColumns+`
		FROM usage_records
		WHERE user_id = ?
		ORDER BY created_at DESC, seq DESC
		LIMIT ?
	`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRecords(rows)
}

// Range returns records created in [start, end], oldest first.
func (s *UsageStore) Range(ctx context.Context, userID string, start, end time.Time) ([]usage.Record, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+recordColumns+`
		FROM usage_records
		WHERE user_id = ? AND created_at >= ? AND created_at <= ?
		ORDER BY created_at, seq
	`, userID, start.UTC(), end.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRecords(rows)
}

type rowsScanner interface {
	rowScanner
	Next() bool
	Err() error
}

func scanRecords(rows rowsScanner) ([]usage.Record, error) {
	out := []usage.Record{}
	for rows.Next() {
		var r usage.Record
		err := rows.Scan(
			&r.ID, &r.UserID, &r.KeyID, &r.Engine, &r.Endpoint, &r.Method, &r.StatusCode,
			&r.DurationMs, &r.Cost, &r.SourceIP, &r.CreatedAt,
		)
		if err != nil {
			return nil, err
		}
		r.CreatedAt = r.CreatedAt.UTC()
		out = append(out, r)
	}
	return out, rows.Err()
}

// Ensure interface compliance.
var _ ports.UsageStore = (*UsageStore)(nil)
