// Package auth issues and validates dashboard session tokens (HS256 JWT).
// Tokens are stateless so any gateway instance can verify them.
package auth

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/artpar/ritan/ports"
	"github.com/golang-jwt/jwt/v5"
)

const sessionScope = "dashboard"

// ErrInvalidSession is returned for any token that does not verify.
var ErrInvalidSession = errors.New("invalid session token")

// Claims represents the JWT claims of a session.
type Claims struct {
	TenantID string `json:"tid"`
	Scope    string `json:"scope"`
	jwt.RegisteredClaims
}

// TokenService provides stateless session token operations.
// Thread-safe and suitable for concurrent use.
type TokenService struct {
	secret     []byte
	issuer     string
	expiration time.Duration
	clock      ports.Clock
}

// NewTokenService creates a new session token service.
// If secret is empty, a random 32-byte secret is generated, which means
// tokens do not survive a restart.
func NewTokenService(secret string, expiration time.Duration, clock ports.Clock) *TokenService {
	var secretBytes []byte
	if secret == "" {
		secretBytes = make([]byte, 32)
		rand.Read(secretBytes)
	} else {
		secretBytes = []byte(secret)
	}

	if expiration == 0 {
		expiration = 24 * time.Hour
	}

	return &TokenService{
		secret:     secretBytes,
		issuer:     "ritan",
		expiration: expiration,
		clock:      clock,
	}
}

// Issue creates a session token for a tenant.
func (s *TokenService) Issue(tenantID string) (string, time.Time, error) {
	if tenantID == "" {
		return "", time.Time{}, errors.New("tenant id is required")
	}
	now := s.clock.Now().UTC()
	expiresAt := now.Add(s.expiration)

	claims := Claims{
		TenantID: tenantID,
		Scope:    sessionScope,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			Subject:   tenantID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

// Validate parses a token and returns its claims.
func (s *TokenService) Validate(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(s.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.clock.Now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSession, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.Scope != sessionScope || claims.TenantID == "" {
		return nil, ErrInvalidSession
	}
	return claims, nil
}

// VerifySession returns the tenant a token was issued for.
func (s *TokenService) VerifySession(tokenString string) (string, error) {
	claims, err := s.Validate(tokenString)
	if err != nil {
		return "", err
	}
	return claims.TenantID, nil
}

// Ensure interface compliance.
var _ ports.SessionVerifier = (*TokenService)(nil)

// GenerateSecret generates a random secret suitable for JWT signing.
func GenerateSecret() string {
	b := make([]byte, 32)
	rand.Read(b)
	return hex.EncodeToString(b)
}
