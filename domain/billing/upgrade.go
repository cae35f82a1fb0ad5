// Package billing provides payment-proof value types and pure functions.
package billing

import (
	"errors"
	"strings"
)

// Errors returned by the upgrade flow.
var (
	ErrInvalidSignature = errors.New("invalid payment signature")
	ErrIncompleteProof  = errors.New("order_id, payment_id and signature are required")
)

// Proof is the payment confirmation submitted by a client (value type).
type Proof struct {
	OrderID   string `json:"order_id" validate:"required,max=128"`
	PaymentID string `json:"payment_id" validate:"required,max=128"`
	Signature string `json:"signature" validate:"required,hexadecimal"`
}

// SignedPayload returns the exact bytes the provider signs.
// This is a PURE function.
func SignedPayload(orderID, paymentID string) []byte {
	return []byte(orderID + "|" + paymentID)
}

// Check verifies the proof has every field a signature check needs.
// This is a PURE function.
func (p Proof) Check() error {
	if strings.TrimSpace(p.OrderID) == "" || strings.TrimSpace(p.PaymentID) == "" || strings.TrimSpace(p.Signature) == "" {
		return ErrIncompleteProof
	}
	return nil
}
