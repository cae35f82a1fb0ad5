// Package payment verifies payment confirmations from the payment provider.
package payment

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"

	"github.com/artpar/ritan/domain/billing"
	"github.com/artpar/ritan/ports"
)

// HMACVerifier checks the provider's hex HMAC-SHA256 signature over
// "order_id|payment_id".
type HMACVerifier struct {
	secret []byte
}

// NewHMACVerifier creates a verifier for the shared secret.
func NewHMACVerifier(secret string) (*HMACVerifier, error) {
	if secret == "" {
		return nil, errors.New("payment secret is required")
	}
	return &HMACVerifier{secret: []byte(secret)}, nil
}

// Sign returns the expected signature for an order and payment.
func (v *HMACVerifier) Sign(orderID, paymentID string) string {
	mac := hmac.New(sha256.New, v.secret)
	mac.Write(billing.SignedPayload(orderID, paymentID))
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify compares the proof's signature in constant time.
func (v *HMACVerifier) Verify(p billing.Proof) error {
	if err := p.Check(); err != nil {
		return err
	}
	expected := v.Sign(p.OrderID, p.PaymentID)
	if !hmac.Equal([]byte(p.Signature), []byte(expected)) {
		return billing.ErrInvalidSignature
	}
	return nil
}

// Ensure interface compliance.
var _ ports.PaymentVerifier = (*HMACVerifier)(nil)

// Disabled rejects every proof. Used when no payment secret is configured.
type Disabled struct{}

// Verify always returns billing.ErrInvalidSignature.
func (Disabled) Verify(billing.Proof) error {
	return billing.ErrInvalidSignature
}

var _ ports.PaymentVerifier = Disabled{}

// NewVerifier builds a verifier from configuration.
func NewVerifier(secret string) ports.PaymentVerifier {
	if secret == "" {
		return Disabled{}
	}
	v, _ := NewHMACVerifier(secret)
	return v
}
