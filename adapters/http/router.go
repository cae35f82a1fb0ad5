package http

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/artpar/ritan/adapters/metrics"
	"github.com/artpar/ritan/app"
	"github.com/artpar/ritan/domain/gateway"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/rs/zerolog"
)

// Pinger reports whether a backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler serves liveness and readiness probes.
type HealthHandler struct {
	store Pinger
}

// NewHealthHandler creates a new health handler. store may be nil.
func NewHealthHandler(store Pinger) *HealthHandler {
	return &HealthHandler{store: store}
}

// Liveness returns a simple liveness check.
func (h *HealthHandler) Liveness(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// Readiness checks the backing store.
func (h *HealthHandler) Readiness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if h.store != nil {
		if err := h.store.Ping(ctx); err != nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			json.NewEncoder(w).Encode(map[string]any{
				"status": "unhealthy",
				"error":  err.Error(),
			})
			return
		}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// VersionResponse is the body of GET /version.
type VersionResponse struct {
	Version string `json:"version"`
	Service string `json:"service"`
}

// RouterConfig holds everything the router mounts.
type RouterConfig struct {
	Auth    *app.AuthService
	Handler *Handler
	Health  *HealthHandler
	Metrics *metrics.Collector // optional
	Logger  zerolog.Logger

	RequestTimeout    time.Duration // default 60s
	RateLimitEnabled  bool
	RequestsPerMinute int
	MetricsPath       string // empty disables the exporter
	Version           string
}

// NewRouter creates the main HTTP router.
func NewRouter(cfg RouterConfig) chi.Router {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 60 * time.Second
	}
	if cfg.Version == "" {
		cfg.Version = "dev"
	}
	if cfg.Health == nil {
		cfg.Health = NewHealthHandler(nil)
	}

	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(NewLoggingMiddleware(cfg.Logger))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(cfg.RequestTimeout))

	if cfg.Metrics != nil {
		r.Use(NewMetricsMiddleware(cfg.Metrics))
	}

	r.Get("/health", cfg.Health.Liveness)
	r.Get("/health/live", cfg.Health.Liveness)
	r.Get("/health/ready", cfg.Health.Readiness)
	r.Get("/version", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(VersionResponse{Version: cfg.Version, Service: "ritan"})
	})
	if cfg.Metrics != nil && cfg.MetricsPath != "" {
		r.Handle(cfg.MetricsPath, cfg.Metrics.Handler())
	}

	r.Group(func(r chi.Router) {
		if cfg.RateLimitEnabled && cfg.RequestsPerMinute > 0 {
			r.Use(httprate.Limit(
				cfg.RequestsPerMinute,
				time.Minute,
				httprate.WithKeyFuncs(httprate.KeyByIP),
				httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
					writeError(w, gateway.ErrRateLimited)
				}),
			))
		}

		// Engines accept API keys and dashboard sessions.
		r.Group(func(r chi.Router) {
			r.Use(NewAuthMiddleware(cfg.Auth.Authenticate, cfg.Metrics))
			r.Post("/v1/{engine}", cfg.Handler.Engine)
		})

		// Account management accepts dashboard sessions only.
		r.Group(func(r chi.Router) {
			r.Use(NewAuthMiddleware(cfg.Auth.AuthenticateSession, cfg.Metrics))
			r.Post("/keys", cfg.Handler.CreateKey)
			r.Get("/keys", cfg.Handler.ListKeys)
			r.Delete("/keys/{id}", cfg.Handler.RevokeKey)
			r.Get("/stats", cfg.Handler.Stats)
			r.Post("/billing/verify", cfg.Handler.VerifyPayment)
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, gateway.ErrNotFound)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, gateway.ErrorResponse{
			Status:  http.StatusMethodNotAllowed,
			Code:    "method_not_allowed",
			Message: "Method not allowed",
		})
	})

	return r
}
