// Package app provides application services that orchestrate domain logic.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/artpar/ritan/domain/key"
	"github.com/artpar/ritan/ports"
	"github.com/rs/zerolog"
)

// ErrMissingOwner is returned when an operation has no tenant to act for.
var ErrMissingOwner = errors.New("owner id is required")

// KeyService issues, lists, and revokes API keys.
type KeyService struct {
	keys    ports.KeyStore
	tenants ports.TenantStore
	random  ports.Random
	hasher  ports.Hasher
	idGen   ports.IDGenerator
	clock   ports.Clock
	logger  zerolog.Logger
}

// KeyDeps contains dependencies for KeyService.
type KeyDeps struct {
	Keys    ports.KeyStore
	Tenants ports.TenantStore
	Random  ports.Random
	Hasher  ports.Hasher
	IDGen   ports.IDGenerator
	Clock   ports.Clock
	Logger  zerolog.Logger
}

// NewKeyService creates a new key service.
func NewKeyService(deps KeyDeps) *KeyService {
	return &KeyService{
		keys:    deps.Keys,
		tenants: deps.Tenants,
		random:  deps.Random,
		hasher:  deps.Hasher,
		idGen:   deps.IDGen,
		clock:   deps.Clock,
		logger:  deps.Logger,
	}
}

// KeyView is the listing form of a key. It carries neither the digest nor
// the secret.
type KeyView struct {
	ID            string     `json:"id"`
	Name          string     `json:"name"`
	VisiblePrefix string     `json:"visible_prefix"`
	CreatedAt     time.Time  `json:"created_at"`
	LastUsedAt    *time.Time `json:"last_used_at"`
	Active        bool       `json:"is_active"`
}

// IssuedKey is returned exactly once, at creation.
type IssuedKey struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	VisiblePrefix string    `json:"visible_prefix"`
	CreatedAt     time.Time `json:"created_at"`
	SecretKey     string    `json:"secret_key"`
}

// Issue creates a key for ownerID. The plaintext secret appears only in the
// returned value; nothing is returned when the insert fails.
func (s *KeyService) Issue(ctx context.Context, ownerID, name string) (IssuedKey, error) {
	if ownerID == "" {
		return IssuedKey{}, ErrMissingOwner
	}
	name, err := key.ValidateName(name)
	if err != nil {
		return IssuedKey{}, err
	}

	raw, err := s.random.Bytes(key.SecretBytes)
	if err != nil {
		return IssuedKey{}, fmt.Errorf("generate secret: %w", err)
	}
	secret := key.NewSecret(raw)
	now := s.clock.Now()

	if _, err := s.tenants.Ensure(ctx, ownerID, now); err != nil {
		return IssuedKey{}, fmt.Errorf("ensure tenant: %w", err)
	}

	k := key.Build(s.idGen.New(), ownerID, name, secret, s.hasher.Digest(secret), now)
	if err := s.keys.Create(ctx, k); err != nil {
		if errors.Is(err, key.ErrDigestCollision) {
			s.logger.Error().Str("user_id", ownerID).Msg("api key digest collision")
		}
		return IssuedKey{}, err
	}

	s.logger.Info().
		Str("user_id", ownerID).
		Str("key_id", k.ID).
		Str("prefix", k.VisiblePrefix).
		Msg("api key issued")

	return IssuedKey{
		ID:            k.ID,
		Name:          k.Name,
		VisiblePrefix: k.VisiblePrefix,
		CreatedAt:     k.CreatedAt,
		SecretKey:     secret,
	}, nil
}

// List returns the owner's keys, newest first.
func (s *KeyService) List(ctx context.Context, ownerID string) ([]KeyView, error) {
	if ownerID == "" {
		return nil, ErrMissingOwner
	}
	keys, err := s.keys.ListByUser(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	views := make([]KeyView, 0, len(keys))
	for _, k := range keys {
		views = append(views, KeyView{
			ID:            k.ID,
			Name:          k.Name,
			VisiblePrefix: k.VisiblePrefix,
			CreatedAt:     k.CreatedAt,
			LastUsedAt:    k.LastUsedAt,
			Active:        k.Active && k.RevokedAt == nil,
		})
	}
	return views, nil
}

// Revoke deactivates one of the owner's keys. Keys of other owners are
// reported as not found.
func (s *KeyService) Revoke(ctx context.Context, ownerID, keyID string) error {
	if ownerID == "" {
		return ErrMissingOwner
	}
	k, err := s.keys.Get(ctx, keyID)
	if err != nil {
		return err
	}
	if k.UserID != ownerID {
		return key.ErrNotFound
	}
	if err := s.keys.Revoke(ctx, keyID, s.clock.Now()); err != nil {
		return err
	}
	s.logger.Info().Str("user_id", ownerID).Str("key_id", keyID).Msg("api key revoked")
	return nil
}
