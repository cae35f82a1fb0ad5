package http

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/artpar/ritan/adapters/metrics"
	"github.com/artpar/ritan/domain/gateway"
	"github.com/artpar/ritan/domain/key"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
)

// Authenticator resolves an Authorization header to a caller identity.
type Authenticator func(ctx context.Context, header string) (gateway.AuthContext, key.AuthResult)

// NewAuthMiddleware rejects requests that authn does not accept and attaches
// the caller identity to the request context otherwise.
func NewAuthMiddleware(authn Authenticator, m *metrics.Collector) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ac, res := authn(r.Context(), r.Header.Get("Authorization"))
			if !res.Valid {
				m.AuthFailed(res.Reason)
				writeError(w, gateway.ForAuthReason(res.Reason))
				return
			}
			next.ServeHTTP(w, r.WithContext(gateway.WithAuth(r.Context(), ac)))
		})
	}
}

// NewMetricsMiddleware creates middleware that records request metrics.
func NewMetricsMiddleware(m *metrics.Collector) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if skipObservation(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}

			m.RequestsInFlight.Inc()
			defer m.RequestsInFlight.Dec()

			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			// Route patterns keep label cardinality bounded.
			route := "unmatched"
			if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
				route = rctx.RoutePattern()
			}
			m.ObserveRequest(r.Method, route, ww.Status(), time.Since(start))
		})
	}
}

// NewLoggingMiddleware creates a new logging middleware.
func NewLoggingMiddleware(logger zerolog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			if skipObservation(r.URL.Path) {
				return
			}

			logger.Debug().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", ww.Status()).
				Int("bytes", ww.BytesWritten()).
				Dur("duration", time.Since(start)).
				Str("request_id", middleware.GetReqID(r.Context())).
				Msg("http request")
		})
	}
}

func skipObservation(path string) bool {
	return strings.HasPrefix(path, "/health") || path == "/metrics"
}
