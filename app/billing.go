package app

import (
	"context"
	"fmt"

	"github.com/artpar/ritan/domain/billing"
	"github.com/artpar/ritan/domain/quota"
	"github.com/artpar/ritan/pkg/validation"
	"github.com/artpar/ritan/ports"
	"github.com/rs/zerolog"
)

// BillingService applies verified payments to tenant tiers.
type BillingService struct {
	tenants  ports.TenantStore
	verifier ports.PaymentVerifier
	clock    ports.Clock
	logger   zerolog.Logger
}

// BillingDeps contains dependencies for BillingService.
type BillingDeps struct {
	Tenants  ports.TenantStore
	Verifier ports.PaymentVerifier
	Clock    ports.Clock
	Logger   zerolog.Logger
}

// NewBillingService creates a new billing service.
func NewBillingService(deps BillingDeps) *BillingService {
	return &BillingService{
		tenants:  deps.Tenants,
		verifier: deps.Verifier,
		clock:    deps.Clock,
		logger:   deps.Logger,
	}
}

// ConfirmAndUpgrade moves ownerID to the pro tier once the payment proof
// verifies. Nothing is written when verification fails. Repeating a valid
// confirmation is harmless.
func (s *BillingService) ConfirmAndUpgrade(ctx context.Context, ownerID string, proof billing.Proof) error {
	if ownerID == "" {
		return ErrMissingOwner
	}
	if verr := validation.ValidateStruct(proof); verr != nil {
		return verr
	}

	if err := s.verifier.Verify(proof); err != nil {
		s.logger.Warn().
			Str("user_id", ownerID).
			Str("order_id", proof.OrderID).
			Msg("payment signature rejected")
		return err
	}

	if err := s.tenants.SetTier(ctx, ownerID, quota.TierPro, s.clock.Now()); err != nil {
		return fmt.Errorf("set tier: %w", err)
	}

	s.logger.Info().
		Str("user_id", ownerID).
		Str("order_id", proof.OrderID).
		Str("payment_id", proof.PaymentID).
		Msg("tenant upgraded to pro")
	return nil
}
