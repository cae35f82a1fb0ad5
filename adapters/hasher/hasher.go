// Package hasher provides one-way digests for API key secrets.
package hasher

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/artpar/ritan/ports"
	"golang.org/x/crypto/blake2b"
)

// SHA256 digests secrets with unkeyed SHA-256.
type SHA256 struct{}

// Digest returns the hex SHA-256 of raw.
func (SHA256) Digest(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// Name returns "sha256".
func (SHA256) Name() string { return "sha256" }

// Ensure interface compliance.
var _ ports.Hasher = SHA256{}

// Blake2b digests secrets with keyed BLAKE2b-256. A leaked database is
// useless for offline guessing without the server-side pepper.
type Blake2b struct {
	pepper []byte
}

// NewBlake2b creates a keyed digester. The pepper must be 1..64 bytes.
func NewBlake2b(pepper []byte) (*Blake2b, error) {
	if len(pepper) == 0 || len(pepper) > blake2b.Size {
		return nil, fmt.Errorf("blake2b pepper must be 1..%d bytes, got %d", blake2b.Size, len(pepper))
	}
	p := make([]byte, len(pepper))
	copy(p, pepper)
	return &Blake2b{pepper: p}, nil
}

// Digest returns the hex keyed BLAKE2b-256 of raw.
func (h *Blake2b) Digest(raw string) string {
	mac, err := blake2b.New256(h.pepper)
	if err != nil {
		// Key length is checked in NewBlake2b.
		panic(err)
	}
	mac.Write([]byte(raw))
	return hex.EncodeToString(mac.Sum(nil))
}

// Name returns "blake2b".
func (h *Blake2b) Name() string { return "blake2b" }

// Ensure interface compliance.
var _ ports.Hasher = (*Blake2b)(nil)

// New builds a digester by algorithm name.
func New(algorithm string, pepper []byte) (ports.Hasher, error) {
	switch algorithm {
	case "", "sha256":
		return SHA256{}, nil
	case "blake2b":
		return NewBlake2b(pepper)
	default:
		return nil, fmt.Errorf("unknown key digest algorithm %q", algorithm)
	}
}
