// Package memory provides in-memory implementations of the storage ports
// for tests and single-process development runs.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/artpar/ritan/domain/key"
	"github.com/artpar/ritan/ports"
)

// KeyStore is an in-memory implementation of ports.KeyStore.
type KeyStore struct {
	mu       sync.RWMutex
	keys     map[string]key.Key // by ID
	byDigest map[string]string  // digest -> ID
}

// NewKeyStore creates a new in-memory key store.
func NewKeyStore() *KeyStore {
	return &KeyStore{
		keys:     make(map[string]key.Key),
		byDigest: make(map[string]string),
	}
}

// Create stores a new key. Duplicate digests are rejected.
func (s *KeyStore) Create(ctx context.Context, k key.Key) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byDigest[k.Digest]; exists {
		return key.ErrDigestCollision
	}
	s.keys[k.ID] = k
	s.byDigest[k.Digest] = k.ID
	return nil
}

// GetByDigest looks up a key by its secret digest.
func (s *KeyStore) GetByDigest(ctx context.Context, digest string) (key.Key, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byDigest[digest]
	if !ok {
		return key.Key{}, key.ErrNotFound
	}
	return s.keys[id], nil
}

// Get retrieves a key by ID.
func (s *KeyStore) Get(ctx context.Context, id string) (key.Key, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	k, ok := s.keys[id]
	if !ok {
		return key.Key{}, key.ErrNotFound
	}
	return k, nil
}

// ListByUser returns all keys for a user, newest first.
func (s *KeyStore) ListByUser(ctx context.Context, userID string) ([]key.Key, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := []key.Key{}
	for _, k := range s.keys {
		if k.UserID == userID {
			result = append(result, k)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].ID > result[j].ID
		}
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return result, nil
}

// Revoke marks a key as inactive.
func (s *KeyStore) Revoke(ctx context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	k, ok := s.keys[id]
	if !ok {
		return key.ErrNotFound
	}
	if k.RevokedAt == nil {
		k = k.Revoked(at)
	}
	k.Active = false
	s.keys[id] = k
	return nil
}

// UpdateLastUsed updates the last used timestamp.
func (s *KeyStore) UpdateLastUsed(ctx context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if k, ok := s.keys[id]; ok {
		k.LastUsedAt = &at
		s.keys[id] = k
	}
	return nil
}

// Ensure interface compliance.
var _ ports.KeyStore = (*KeyStore)(nil)
