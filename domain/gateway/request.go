// Package gateway provides request and error value types shared by the
// HTTP layer and the application services.
package gateway

import (
	"context"
	"time"

	"github.com/artpar/ritan/domain/quota"
)

// AuthContext contains authenticated caller information (value type).
type AuthContext struct {
	KeyID  string // empty for session tokens
	UserID string
	Tier   quota.Tier
	Method string // "api_key" or "session"
}

// Call describes one engine invocation (value type).
// This is extracted from HTTP and passed to the gateway service.
type Call struct {
	Engine    string
	Endpoint  string
	Method    string
	Body      []byte
	RemoteIP  string
	RequestID string
	Auth      AuthContext
	Timestamp time.Time
}

// Result is the outcome of an engine invocation (value type).
type Result struct {
	Status      int
	Data        any
	DurationMs  int64
	CreditsUsed int
	Err         *ErrorResponse // nil on success
}

type authKey struct{}

// WithAuth attaches the caller identity to ctx.
func WithAuth(ctx context.Context, a AuthContext) context.Context {
	return context.WithValue(ctx, authKey{}, a)
}

// AuthFrom returns the caller identity attached by WithAuth.
func AuthFrom(ctx context.Context) (AuthContext, bool) {
	a, ok := ctx.Value(authKey{}).(AuthContext)
	return a, ok && a.UserID != ""
}
