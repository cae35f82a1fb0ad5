package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/artpar/ritan/domain/key"
	"github.com/artpar/ritan/ports"
)

// KeyStore implements ports.KeyStore using SQLite.
type KeyStore struct {
	db *DB
}

// NewKeyStore creates a new SQLite key store.
func NewKeyStore(db *DB) *KeyStore {
	return &KeyStore{db: db}
}

const keyColumns = `id, user_id, name, digest, visible_prefix, is_active, created_at, last_used_at, revoked_at`

// Create stores a new key in a single insert.
func (s *KeyStore) Create(ctx context.Context, k key.Key) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO api_keys (`+keyColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, k.ID, k.UserID, k.Name, k.Digest, k.VisiblePrefix, k.Active,
		k.CreatedAt.UTC(), nullTime(k.LastUsedAt), nullTime(k.RevokedAt))
	if isUniqueViolation(err, "api_keys.digest") {
		return key.ErrDigestCollision
	}
	if err != nil {
		return fmt.Errorf("insert key: %w", err)
	}
	return nil
}

// GetByDigest looks up a key by its secret digest.
func (s *KeyStore) GetByDigest(ctx context.Context, digest string) (key.Key, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+keyColumns+` FROM api_keys WHERE digest = ?
	`, digest)
	return scanKey(row)
}

// Get retrieves a key by ID.
func (s *KeyStore) Get(ctx context.Context, id string) (key.Key, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+keyColumns+` FROM api_keys WHERE id = ?
	`, id)
	return scanKey(row)
}

// ListByUser returns all keys for a user, newest first.
func (s *KeyStore) ListByUser(ctx context.Context, userID string) ([]key.Key, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+keyColumns+`
		FROM api_keys
		WHERE user_id = ?
		ORDER BY created_at DESC, rowid DESC
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	keys := []key.Key{}
	for rows.Next() {
		k, err := scanKey(rows)
		if err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

// Revoke marks a key as inactive. Revoking twice keeps the first timestamp.
func (s *KeyStore) Revoke(ctx context.Context, id string, at time.Time) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE api_keys
		SET is_active = 0, revoked_at = COALESCE(revoked_at, ?)
		WHERE id = ?
	`, at.UTC(), id)
	if err != nil {
		return err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return key.ErrNotFound
	}
	return nil
}

// UpdateLastUsed updates the last used timestamp.
func (s *KeyStore) UpdateLastUsed(ctx context.Context, id string, at time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE api_keys SET last_used_at = ? WHERE id = ?
	`, at.UTC(), id)
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanKey(row rowScanner) (key.Key, error) {
	var k key.Key
	var lastUsed, revokedAt sql.NullTime

	err := row.Scan(
		&k.ID, &k.UserID, &k.Name, &k.Digest, &k.VisiblePrefix, &k.Active,
		&k.CreatedAt, &lastUsed, &revokedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return key.Key{}, key.ErrNotFound
	}
	if err != nil {
		return key.Key{}, err
	}

	k.CreatedAt = k.CreatedAt.UTC()
	k.LastUsedAt = timePtr(lastUsed)
	k.RevokedAt = timePtr(revokedAt)
	return k, nil
}

// Ensure interface compliance.
var _ ports.KeyStore = (*KeyStore)(nil)
