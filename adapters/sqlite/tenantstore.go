package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/artpar/ritan/domain/quota"
	"github.com/artpar/ritan/ports"
)

// TenantStore implements ports.TenantStore using SQLite.
type TenantStore struct {
	db *DB
}

// NewTenantStore creates a new SQLite tenant store.
func NewTenantStore(db *DB) *TenantStore {
	return &TenantStore{db: db}
}

// Get retrieves a tenant by ID.
func (s *TenantStore) Get(ctx context.Context, id string) (ports.Tenant, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, tier, created_at, updated_at FROM tenants WHERE id = ?
	`, id)
	return scanTenant(row)
}

// Ensure creates the tenant on the free tier if absent.
func (s *TenantStore) Ensure(ctx context.Context, id string, at time.Time) (ports.Tenant, error) {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO tenants (id, tier, created_at, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`, id, string(quota.TierFree), at.UTC(), at.UTC())
	if err != nil {
		return ports.Tenant{}, err
	}
	return s.Get(ctx, id)
}

// SetTier upserts the tenant's tier.
func (s *TenantStore) SetTier(ctx context.Context, id string, tier quota.Tier, at time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO tenants (id, tier, created_at, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			tier = excluded.tier,
			updated_at = excluded.updated_at
	`, id, string(tier), at.UTC(), at.UTC())
	return err
}

// List returns tenants ordered by creation.
func (s *TenantStore) List(ctx context.Context, limit, offset int) ([]ports.Tenant, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, tier, created_at, updated_at
		FROM tenants
		ORDER BY created_at, id
		LIMIT ? OFFSET ?
	`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tenants []ports.Tenant
	for rows.Next() {
		t, err := scanTenant(rows)
		if err != nil {
			return nil, err
		}
		tenants = append(tenants, t)
	}
	return tenants, rows.Err()
}

func scanTenant(row rowScanner) (ports.Tenant, error) {
	var t ports.Tenant
	var tier string
	err := row.Scan(&t.ID, &tier, &t.CreatedAt, &t.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return ports.Tenant{}, ports.ErrTenantNotFound
	}
	if err != nil {
		return ports.Tenant{}, err
	}
	t.Tier = quota.ParseTier(tier)
	t.CreatedAt = t.CreatedAt.UTC()
	t.UpdatedAt = t.UpdatedAt.UTC()
	return t, nil
}

// Ensure interface compliance.
var _ ports.TenantStore = (*TenantStore)(nil)
