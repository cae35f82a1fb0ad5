// Package key provides API key value types and pure validation functions.
// This package has NO dependencies on I/O or external packages.
package key

import (
	"encoding/hex"
	"errors"
	"time"
)

// Prefix is the fixed, recognizable prefix of every issued secret.
const Prefix = "sk_live_"

// SecretBytes is the amount of random material behind each secret (256 bits).
const SecretBytes = 32

// visibleChars is how much of the random part is kept for display.
const visibleChars = 4

// Key represents an API key (immutable value type).
// The plaintext secret is never part of this type.
type Key struct {
	ID            string
	UserID        string
	Name          string
	Digest        string // hex digest of the full secret
	VisiblePrefix string // e.g. "sk_live_a1b2..."
	Active        bool
	CreatedAt     time.Time
	LastUsedAt    *time.Time
	RevokedAt     *time.Time
}

// Errors returned by key stores and services.
var (
	ErrNotFound        = errors.New("key not found")
	ErrDigestCollision = errors.New("key digest already exists")
	ErrInvalidName     = errors.New("key name must be between 1 and 50 characters")
)

// Reasons for authentication failure.
const (
	ReasonValid     = ""
	ReasonMissing   = "missing_api_key"
	ReasonBadFormat = "invalid_api_key"
	ReasonNotFound  = "invalid_api_key"
	ReasonRevoked   = "key_revoked"
	ReasonStore     = "auth_unavailable"
)

// NewSecret formats random bytes as a raw secret.
// The raw secret is: Prefix + 64 hex chars.
func NewSecret(random []byte) string {
	return Prefix + hex.EncodeToString(random)
}

// VisiblePrefixOf returns the display fragment for a raw secret.
// Only visibleChars of the random part are exposed.
func VisiblePrefixOf(secret string) string {
	if len(secret) < len(Prefix)+visibleChars {
		return Prefix + "..."
	}
	return secret[:len(Prefix)+visibleChars] + "..."
}

// Build assembles the stored form of a freshly generated secret.
func Build(id, userID, name, secret, digest string, now time.Time) Key {
	return Key{
		ID:            id,
		UserID:        userID,
		Name:          name,
		Digest:        digest,
		VisiblePrefix: VisiblePrefixOf(secret),
		Active:        true,
		CreatedAt:     now,
	}
}

// Revoked returns a copy of the key marked inactive at the given time.
func (k Key) Revoked(at time.Time) Key {
	k.Active = false
	k.RevokedAt = &at
	return k
}
