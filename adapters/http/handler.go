package http

import (
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/artpar/ritan/adapters/metrics"
	"github.com/artpar/ritan/app"
	"github.com/artpar/ritan/domain/billing"
	"github.com/artpar/ritan/domain/gateway"
	"github.com/artpar/ritan/domain/key"
	"github.com/artpar/ritan/pkg/validation"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
)

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 1 << 20

// Handler serves the engine, key, stats, and billing routes.
type Handler struct {
	gateway *app.GatewayService
	keys    *app.KeyService
	ledger  *app.LedgerService
	billing *app.BillingService
	logger  zerolog.Logger
	metrics *metrics.Collector
}

// HandlerDeps contains dependencies for Handler.
type HandlerDeps struct {
	Gateway *app.GatewayService
	Keys    *app.KeyService
	Ledger  *app.LedgerService
	Billing *app.BillingService
	Logger  zerolog.Logger
	Metrics *metrics.Collector // optional
}

// NewHandler creates a new handler.
func NewHandler(deps HandlerDeps) *Handler {
	return &Handler{
		gateway: deps.Gateway,
		keys:    deps.Keys,
		ledger:  deps.Ledger,
		billing: deps.Billing,
		logger:  deps.Logger,
		metrics: deps.Metrics,
	}
}

// Engine handles POST /v1/{engine}.
func (h *Handler) Engine(w http.ResponseWriter, r *http.Request) {
	ac, _ := gateway.AuthFrom(r.Context())

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, gateway.ErrValidation.WithDetails([]validation.FieldError{
			{Field: "body", Tag: "max", Message: "request body is too large"},
		}))
		return
	}

	call := gateway.Call{
		Engine:    chi.URLParam(r, "engine"),
		Endpoint:  r.URL.Path,
		Method:    r.Method,
		Body:      body,
		RemoteIP:  clientIP(r.RemoteAddr),
		RequestID: middleware.GetReqID(r.Context()),
		Auth:      ac,
		Timestamp: time.Now(),
	}

	res := h.gateway.Handle(r.Context(), call)
	h.observe(call, ac, res)

	if res.Err != nil {
		writeError(w, *res.Err)
		return
	}
	writeJSON(w, res.Status, envelope{
		Success: true,
		Data:    res.Data,
		Meta: &meta{
			DurationMs:  res.DurationMs,
			CreditsUsed: res.CreditsUsed,
		},
	})
}

func (h *Handler) observe(call gateway.Call, ac gateway.AuthContext, res gateway.Result) {
	outcome := "ok"
	if res.Err != nil {
		outcome = res.Err.Code
		if res.Err.Code == gateway.ErrQuotaExceeded.Code {
			h.metrics.AdmissionDenied(string(ac.Tier))
		}
	}
	h.metrics.EngineCalled(call.Engine, outcome, res.CreditsUsed, time.Duration(res.DurationMs)*time.Millisecond)
}

type createKeyRequest struct {
	Name string `json:"name"`
}

// CreateKey handles POST /keys. The secret is returned in this response only.
func (h *Handler) CreateKey(w http.ResponseWriter, r *http.Request) {
	ac, _ := gateway.AuthFrom(r.Context())

	var req createKeyRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	issued, err := h.keys.Issue(r.Context(), ac.UserID, req.Name)
	if errors.Is(err, key.ErrInvalidName) {
		writeError(w, gateway.ErrValidation.WithDetails([]validation.FieldError{
			{Field: "name", Tag: "len", Message: err.Error()},
		}))
		return
	}
	if err != nil {
		h.logger.Error().Err(err).Str("user_id", ac.UserID).Msg("failed to issue api key")
		writeError(w, gateway.ErrInternal)
		return
	}

	w.Header().Set("Cache-Control", "no-store")
	writeData(w, http.StatusCreated, issued)
}

// ListKeys handles GET /keys.
func (h *Handler) ListKeys(w http.ResponseWriter, r *http.Request) {
	ac, _ := gateway.AuthFrom(r.Context())

	views, err := h.keys.List(r.Context(), ac.UserID)
	if err != nil {
		h.logger.Error().Err(err).Str("user_id", ac.UserID).Msg("failed to list api keys")
		writeError(w, gateway.ErrInternal)
		return
	}
	writeData(w, http.StatusOK, views)
}

// RevokeKey handles DELETE /keys/{id}.
func (h *Handler) RevokeKey(w http.ResponseWriter, r *http.Request) {
	ac, _ := gateway.AuthFrom(r.Context())

	err := h.keys.Revoke(r.Context(), ac.UserID, chi.URLParam(r, "id"))
	if errors.Is(err, key.ErrNotFound) {
		writeError(w, gateway.ErrNotFound.WithMessage("API key not found"))
		return
	}
	if err != nil {
		h.logger.Error().Err(err).Str("user_id", ac.UserID).Msg("failed to revoke api key")
		writeError(w, gateway.ErrInternal)
		return
	}
	writeMessage(w, "API key revoked")
}

// Stats handles GET /stats.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	ac, _ := gateway.AuthFrom(r.Context())

	stats, err := h.ledger.Stats(r.Context(), ac.UserID)
	if err != nil {
		h.logger.Error().Err(err).Str("user_id", ac.UserID).Msg("failed to compute stats")
		writeError(w, gateway.ErrInternal)
		return
	}

	view := newStatsView(stats, nil)
	if sum, err := h.ledger.CurrentSummary(r.Context(), ac.UserID); err == nil {
		view = newStatsView(stats, &sum)
	} else {
		h.logger.Warn().Err(err).Str("user_id", ac.UserID).Msg("failed to compute period summary")
	}
	writeData(w, http.StatusOK, view)
}

// VerifyPayment handles POST /billing/verify.
func (h *Handler) VerifyPayment(w http.ResponseWriter, r *http.Request) {
	ac, _ := gateway.AuthFrom(r.Context())

	var proof billing.Proof
	if !decodeJSON(w, r, &proof) {
		return
	}

	err := h.billing.ConfirmAndUpgrade(r.Context(), ac.UserID, proof)
	var verr *validation.RequestValidationError
	switch {
	case err == nil:
		writeMessage(w, "Upgraded to pro")
	case errors.As(err, &verr):
		writeError(w, gateway.ErrValidation.WithDetails(verr.Fields()))
	case errors.Is(err, billing.ErrInvalidSignature):
		writeError(w, gateway.ErrorResponse{
			Status:  http.StatusBadRequest,
			Code:    "invalid_signature",
			Message: "Payment signature verification failed",
		})
	default:
		h.logger.Error().Err(err).Str("user_id", ac.UserID).Msg("failed to apply upgrade")
		writeError(w, gateway.ErrInternal)
	}
}

// decodeJSON reads a JSON object into dst. An empty body leaves dst zero.
// It writes a 400 and returns false on malformed input.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err == nil && len(body) > 0 {
		err = json.Unmarshal(body, dst)
	}
	if err != nil {
		writeError(w, gateway.ErrValidation.WithDetails([]validation.FieldError{
			{Field: "body", Tag: "json", Message: "request body must be a JSON object"},
		}))
		return false
	}
	return true
}

// clientIP drops the port from a RemoteAddr. RealIP rewrites RemoteAddr
// to a bare host when a proxy header is present.
func clientIP(remoteAddr string) string {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		return remoteAddr
	}
	return host
}
