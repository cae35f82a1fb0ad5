// Package random provides Random implementations.
package random

import (
	"crypto/rand"
	"errors"
	"sync"

	"github.com/artpar/ritan/ports"
)

// Real uses crypto/rand for secure randomness.
type Real struct{}

// Bytes generates n cryptographically secure random bytes.
func (Real) Bytes(n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return nil, err
	}
	return b, nil
}

var _ ports.Random = Real{}

// ErrExhausted is returned by Failing.
var ErrExhausted = errors.New("random source unavailable")

// Fake provides deterministic randomness for testing.
// Preset values are returned in order; after that each call yields a
// distinct counter-derived sequence.
type Fake struct {
	mu      sync.Mutex
	counter int
	values  [][]byte
	index   int
}

// NewFake creates a fake random source.
func NewFake(values ...[]byte) *Fake {
	return &Fake{values: values}
}

// Bytes returns the next preset value (padded or truncated to n) or
// deterministic bytes.
func (f *Fake) Bytes(n int) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	b := make([]byte, n)
	if f.index < len(f.values) {
		copy(b, f.values[f.index])
		f.index++
		return b, nil
	}

	f.counter++
	for i := range b {
		b[i] = byte((f.counter*31 + i) % 256)
	}
	return b, nil
}

var _ ports.Random = (*Fake)(nil)

// Failing always returns ErrExhausted.
type Failing struct{}

// Bytes returns ErrExhausted.
func (Failing) Bytes(int) ([]byte, error) {
	return nil, ErrExhausted
}

var _ ports.Random = Failing{}
