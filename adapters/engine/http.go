// Package engine provides ports.Engine implementations: an HTTP client
// that forwards each call to the configured upstream service, and an echo
// engine for development.
package engine

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"time"

	"github.com/artpar/ritan/domain/engine"
	"github.com/artpar/ritan/ports"
	"github.com/rs/zerolog"
	gobreaker "github.com/sony/gobreaker/v2"
)

// maxResponseBytes bounds what is read from an upstream.
const maxResponseBytes = 20 << 20

// HTTPConfig configures an HTTP engine.
type HTTPConfig struct {
	Kind    engine.Kind
	URL     string
	Token   string // sent as a bearer token when set
	Timeout time.Duration

	// Breaker settings.
	FailureThreshold uint32
	OpenTimeout      time.Duration
	HalfOpenRequests uint32
}

// HTTP forwards engine requests as JSON POSTs to an upstream service.
type HTTP struct {
	kind    engine.Kind
	url     string
	token   string
	client  *http.Client
	breaker *gobreaker.CircuitBreaker[ports.EngineResult]
}

// NewHTTP creates an HTTP engine.
func NewHTTP(cfg HTTPConfig, logger zerolog.Logger) (*HTTP, error) {
	u, err := url.Parse(cfg.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("engine %s: invalid url %q", cfg.Kind, cfg.URL)
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	threshold := cfg.FailureThreshold
	if threshold == 0 {
		threshold = 5
	}
	openTimeout := cfg.OpenTimeout
	if openTimeout == 0 {
		openTimeout = 30 * time.Second
	}
	halfOpen := cfg.HalfOpenRequests
	if halfOpen == 0 {
		halfOpen = 1
	}

	settings := gobreaker.Settings{
		Name:        "engine-" + string(cfg.Kind),
		MaxRequests: halfOpen,
		Timeout:     openTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		IsSuccessful: func(err error) bool {
			// Empty results and caller-side errors say nothing about upstream health.
			return err == nil || errors.Is(err, engine.ErrNotFound) || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("engine circuit breaker state changed")
		},
	}

	return &HTTP{
		kind:    cfg.Kind,
		url:     u.String(),
		token:   cfg.Token,
		client:  &http.Client{Timeout: timeout},
		breaker: gobreaker.NewCircuitBreaker[ports.EngineResult](settings),
	}, nil
}

// State reports the breaker state ("closed", "half-open", "open").
func (e *HTTP) State() string {
	return e.breaker.State().String()
}

// Invoke sends the request through the circuit breaker.
func (e *HTTP) Invoke(ctx context.Context, req engine.Request) (ports.EngineResult, error) {
	if req.Kind() != e.kind {
		return ports.EngineResult{}, fmt.Errorf("%w: %s engine got %s request", engine.ErrUnknownKind, e.kind, req.Kind())
	}
	res, err := e.breaker.Execute(func() (ports.EngineResult, error) {
		return e.do(ctx, req)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return ports.EngineResult{}, fmt.Errorf("engine %s unavailable: %w", e.kind, err)
	}
	return res, err
}

func (e *HTTP) do(ctx context.Context, req engine.Request) (ports.EngineResult, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return ports.EngineResult{}, fmt.Errorf("encode request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, e.url, bytes.NewReader(body))
	if err != nil {
		return ports.EngineResult{}, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json, */*")
	if e.token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+e.token)
	}

	resp, err := e.client.Do(httpReq)
	if err != nil {
		return ports.EngineResult{}, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return ports.EngineResult{}, fmt.Errorf("read response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return ports.EngineResult{}, engine.ErrNotFound
	case resp.StatusCode >= 500:
		return ports.EngineResult{}, fmt.Errorf("engine %s returned %d", e.kind, resp.StatusCode)
	}

	return ports.EngineResult{
		Status: resp.StatusCode,
		Data:   decodeBody(resp.Header.Get("Content-Type"), respBody),
	}, nil
}

// Binary is how non-JSON engine output is returned to clients.
type Binary struct {
	ContentType string `json:"content_type"`
	Base64      string `json:"base64"`
}

func decodeBody(contentType string, body []byte) any {
	mediaType, _, _ := mime.ParseMediaType(contentType)
	if mediaType == "application/json" && json.Valid(body) {
		return json.RawMessage(body)
	}
	if mediaType == "text/plain" || mediaType == "text/markdown" || mediaType == "text/html" {
		return string(body)
	}
	if mediaType == "" {
		mediaType = "application/octet-stream"
	}
	return Binary{ContentType: mediaType, Base64: base64.StdEncoding.EncodeToString(body)}
}

// Ensure interface compliance.
var _ ports.Engine = (*HTTP)(nil)
