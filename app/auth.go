package app

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/artpar/ritan/domain/gateway"
	"github.com/artpar/ritan/domain/key"
	"github.com/artpar/ritan/domain/quota"
	"github.com/artpar/ritan/ports"
	"github.com/rs/zerolog"
)

// Auth methods recorded on gateway.AuthContext.
const (
	MethodAPIKey  = "api_key"
	MethodSession = "session"
)

const defaultTouchTimeout = 5 * time.Second

// AuthService resolves bearer credentials to a tenant.
type AuthService struct {
	keys     ports.KeyStore
	tenants  ports.TenantStore
	hasher   ports.Hasher
	clock    ports.Clock
	sessions ports.SessionVerifier // optional
	logger   zerolog.Logger

	touchTimeout time.Duration
}

// AuthDeps contains dependencies for AuthService.
type AuthDeps struct {
	Keys     ports.KeyStore
	Tenants  ports.TenantStore
	Hasher   ports.Hasher
	Clock    ports.Clock
	Sessions ports.SessionVerifier
	Logger   zerolog.Logger
}

// NewAuthService creates a new auth service.
func NewAuthService(deps AuthDeps) *AuthService {
	return &AuthService{
		keys:         deps.Keys,
		tenants:      deps.Tenants,
		hasher:       deps.Hasher,
		clock:        deps.Clock,
		sessions:     deps.Sessions,
		logger:       deps.Logger,
		touchTimeout: defaultTouchTimeout,
	}
}

// Authenticate checks an Authorization header value.
//
// Malformed tokens are rejected before any store access. Any store failure
// rejects the request.
func (s *AuthService) Authenticate(ctx context.Context, header string) (gateway.AuthContext, key.AuthResult) {
	token, reason := key.ParseBearer(header)
	if reason != key.ReasonValid {
		return gateway.AuthContext{}, key.AuthResult{Reason: reason}
	}

	if !key.ValidateFormat(token) {
		if s.sessions != nil && looksLikeJWT(token) {
			return s.authenticateSession(ctx, token)
		}
		return gateway.AuthContext{}, key.AuthResult{Reason: key.ReasonBadFormat}
	}

	k, err := s.keys.GetByDigest(ctx, s.hasher.Digest(token))
	if errors.Is(err, key.ErrNotFound) {
		return gateway.AuthContext{}, key.AuthResult{Reason: key.ReasonNotFound}
	}
	if err != nil {
		s.logger.Error().Err(err).Msg("key lookup failed")
		return gateway.AuthContext{}, key.AuthResult{Reason: key.ReasonStore}
	}

	result := key.Validate(k)
	if !result.Valid {
		return gateway.AuthContext{}, result
	}

	tier, err := s.tierOf(ctx, k.UserID)
	if err != nil {
		s.logger.Error().Err(err).Str("user_id", k.UserID).Msg("tenant lookup failed")
		return gateway.AuthContext{}, key.AuthResult{Reason: key.ReasonStore}
	}

	s.touch(k.ID)

	return gateway.AuthContext{
		KeyID:  k.ID,
		UserID: k.UserID,
		Tier:   tier,
		Method: MethodAPIKey,
	}, result
}

// AuthenticateSession accepts only dashboard session tokens.
func (s *AuthService) AuthenticateSession(ctx context.Context, header string) (gateway.AuthContext, key.AuthResult) {
	token, reason := key.ParseBearer(header)
	if reason != key.ReasonValid {
		return gateway.AuthContext{}, key.AuthResult{Reason: reason}
	}
	if s.sessions == nil || !looksLikeJWT(token) {
		return gateway.AuthContext{}, key.AuthResult{Reason: key.ReasonBadFormat}
	}
	return s.authenticateSession(ctx, token)
}

func (s *AuthService) authenticateSession(ctx context.Context, token string) (gateway.AuthContext, key.AuthResult) {
	userID, err := s.sessions.VerifySession(token)
	if err != nil {
		return gateway.AuthContext{}, key.AuthResult{Reason: key.ReasonBadFormat}
	}
	tier, err := s.tierOf(ctx, userID)
	if err != nil {
		s.logger.Error().Err(err).Str("user_id", userID).Msg("tenant lookup failed")
		return gateway.AuthContext{}, key.AuthResult{Reason: key.ReasonStore}
	}
	return gateway.AuthContext{
		UserID: userID,
		Tier:   tier,
		Method: MethodSession,
	}, key.AuthResult{Valid: true}
}

func (s *AuthService) tierOf(ctx context.Context, userID string) (quota.Tier, error) {
	t, err := s.tenants.Get(ctx, userID)
	if errors.Is(err, ports.ErrTenantNotFound) {
		return quota.TierFree, nil
	}
	if err != nil {
		return "", err
	}
	return t.Tier, nil
}

// touch records the key's last use without holding up the request.
func (s *AuthService) touch(keyID string) {
	at := s.clock.Now()
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.touchTimeout)
		defer cancel()
		if err := s.keys.UpdateLastUsed(ctx, keyID, at); err != nil {
			s.logger.Warn().Err(err).Str("key_id", keyID).Msg("failed to update key last used")
		}
	}()
}

func looksLikeJWT(token string) bool {
	return strings.Count(token, ".") == 2
}
