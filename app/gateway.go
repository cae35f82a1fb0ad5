package app

import (
	"context"
	"errors"
	"net/http"
	"sync/atomic"

	"github.com/artpar/ritan/domain/engine"
	"github.com/artpar/ritan/domain/gateway"
	"github.com/artpar/ritan/domain/usage"
	"github.com/artpar/ritan/pkg/validation"
	"github.com/artpar/ritan/ports"
	"github.com/rs/zerolog"
)

// GatewayService runs one metered engine call end to end.
type GatewayService struct {
	engines   map[engine.Kind]ports.Engine
	admission *AdmissionService
	ledger    *LedgerService
	clock     ports.Clock
	idGen     ports.IDGenerator
	logger    zerolog.Logger

	// Hot-reloadable.
	specs atomic.Pointer[map[engine.Kind]engine.Spec]
}

// GatewayDeps contains dependencies for GatewayService.
type GatewayDeps struct {
	Engines   map[engine.Kind]ports.Engine
	Admission *AdmissionService
	Ledger    *LedgerService
	Clock     ports.Clock
	IDGen     ports.IDGenerator
	Logger    zerolog.Logger
}

// NewGatewayService creates a new gateway service. A nil specs map uses
// engine.DefaultSpecs.
func NewGatewayService(deps GatewayDeps, specs map[engine.Kind]engine.Spec) *GatewayService {
	s := &GatewayService{
		engines:   deps.Engines,
		admission: deps.Admission,
		ledger:    deps.Ledger,
		clock:     deps.Clock,
		idGen:     deps.IDGen,
		logger:    deps.Logger,
	}
	s.UpdateSpecs(specs)
	return s
}

// UpdateSpecs swaps the metering table. Safe to call while serving.
func (s *GatewayService) UpdateSpecs(specs map[engine.Kind]engine.Spec) {
	merged := engine.DefaultSpecs()
	for k, v := range specs {
		if _, ok := merged[k]; ok {
			v.Kind = k
			merged[k] = v
		}
	}
	s.specs.Store(&merged)
}

// Spec returns the metering attributes of kind.
func (s *GatewayService) Spec(kind engine.Kind) (engine.Spec, bool) {
	spec, ok := (*s.specs.Load())[kind]
	return spec, ok
}

// Handle validates, admits, and executes call, then writes exactly one usage
// record for it. The caller must already be authenticated.
//
// Credits are attributed only when the engine was invoked. Ledger failures
// never change the result.
func (s *GatewayService) Handle(ctx context.Context, call gateway.Call) gateway.Result {
	start := s.clock.Now()

	kind, err := engine.ParseKind(call.Engine)
	if err != nil {
		e := gateway.ErrNotFound.WithMessage("Unknown engine: " + call.Engine)
		return gateway.Result{Status: e.Status, Err: &e}
	}
	spec, _ := s.Spec(kind)

	res := s.execute(ctx, kind, spec, call)
	res.DurationMs = s.clock.Now().Sub(start).Milliseconds()

	s.ledger.Record(usage.NewRecord(
		s.idGen.New(),
		call.Auth.UserID,
		call.Auth.KeyID,
		string(kind),
		call.Endpoint,
		call.Method,
		res.Status,
		res.DurationMs,
		res.CreditsUsed,
		call.RemoteIP,
		start,
	))

	ev := s.logger.Info()
	if res.Err != nil {
		ev = s.logger.Warn().Str("code", res.Err.Code)
	}
	ev.Str("request_id", call.RequestID).
		Str("user_id", call.Auth.UserID).
		Str("key_id", call.Auth.KeyID).
		Str("engine", string(kind)).
		Int("status", res.Status).
		Int64("duration_ms", res.DurationMs).
		Int("credits", res.CreditsUsed).
		Msg("engine call")

	return res
}

func (s *GatewayService) execute(ctx context.Context, kind engine.Kind, spec engine.Spec, call gateway.Call) gateway.Result {
	req, err := engine.Decode(kind, call.Body)
	if err != nil {
		e := gateway.ErrValidation.WithDetails([]validation.FieldError{
			{Field: "body", Tag: "json", Message: "request body must be a JSON object with known fields"},
		})
		return failed(e)
	}
	if verr := validation.ValidateStruct(req); verr != nil {
		return failed(gateway.ErrValidation.WithDetails(verr.Fields()))
	}

	if spec.RequiresAdmission {
		d, err := s.admission.CheckAndConsume(ctx, call.Auth.UserID)
		if err != nil {
			s.logger.Error().Err(err).Str("user_id", call.Auth.UserID).Msg("admission check failed")
			return failed(gateway.ErrInternal)
		}
		if !d.Allowed {
			return failed(gateway.ErrQuotaExceeded.
				WithMessage(d.Message()).
				WithDetails(map[string]any{
					"current": d.Current,
					"limit":   d.Limit,
					"tier":    d.Tier,
				}))
		}
	}

	eng, ok := s.engines[kind]
	if !ok {
		return failed(gateway.ErrEngine.WithMessage("Engine " + string(kind) + " is not configured"))
	}

	out, err := eng.Invoke(ctx, req)
	switch {
	case errors.Is(err, engine.ErrNotFound):
		e := gateway.ErrNotFound.WithMessage("No result for the request")
		return gateway.Result{Status: e.Status, CreditsUsed: spec.Cost, Err: &e}
	case err != nil:
		s.logger.Error().Err(err).Str("engine", string(kind)).Msg("engine call failed")
		e := gateway.ErrEngine
		return gateway.Result{Status: e.Status, CreditsUsed: spec.Cost, Err: &e}
	}

	status := out.Status
	if status == 0 {
		status = http.StatusOK
	}
	if status >= 400 {
		e := gateway.ErrEngine
		e.Status = status
		e.Details = out.Data
		return gateway.Result{Status: status, CreditsUsed: spec.Cost, Err: &e}
	}
	return gateway.Result{Status: status, Data: out.Data, CreditsUsed: spec.Cost}
}

func failed(e gateway.ErrorResponse) gateway.Result {
	return gateway.Result{Status: e.Status, Err: &e}
}
