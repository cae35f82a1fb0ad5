// Package http provides the HTTP surface of the gateway.
package http

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/artpar/ritan/domain/gateway"
	"github.com/artpar/ritan/domain/usage"
)

// envelope is the success body shape.
type envelope struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Message string `json:"message,omitempty"`
	Meta    *meta  `json:"meta,omitempty"`
}

type meta struct {
	DurationMs  int64 `json:"duration_ms"`
	CreditsUsed int   `json:"credits_used"`
}

// errorBody is the error body shape.
type errorBody struct {
	Error   string `json:"error"`
	Code    string `json:"code"`
	Details any    `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func writeData(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, envelope{Success: true, Data: data})
}

func writeMessage(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusOK, envelope{Success: true, Message: msg})
}

// writeError writes an error response. Only the public message and details
// of err are exposed.
func writeError(w http.ResponseWriter, err gateway.ErrorResponse) {
	writeJSON(w, err.Status, errorBody{
		Error:   err.Message,
		Code:    err.Code,
		Details: err.Details,
	})
}

// recordView is the public form of a usage record.
type recordView struct {
	ID         string    `json:"id"`
	KeyID      string    `json:"key_id,omitempty"`
	Engine     string    `json:"engine"`
	Endpoint   string    `json:"endpoint"`
	Method     string    `json:"method"`
	StatusCode int       `json:"status_code"`
	DurationMs int64     `json:"duration_ms"`
	Cost       int       `json:"cost"`
	CreatedAt  time.Time `json:"created_at"`
}

type periodView struct {
	Start        time.Time        `json:"start"`
	End          time.Time        `json:"end"`
	Requests     int64            `json:"requests"`
	Credits      int64            `json:"credits"`
	Errors       int64            `json:"errors"`
	AvgLatencyMs int64            `json:"avg_latency_ms"`
	ByEngine     map[string]int64 `json:"by_engine"`
}

type statsView struct {
	TotalRequests    int64        `json:"total_requests"`
	SuccessRate      float64      `json:"success_rate"`
	RecentLogs       []recordView `json:"recent_logs"`
	RemainingCredits int64        `json:"remaining_credits"`
	Tier             string       `json:"tier"`
	PeriodUsage      int64        `json:"period_usage"`
	PeriodLimit      int64        `json:"period_limit"`
	Period           *periodView  `json:"period,omitempty"`
}

func newStatsView(s usage.Stats, sum *usage.Summary) statsView {
	logs := make([]recordView, 0, len(s.RecentLogs))
	for _, r := range s.RecentLogs {
		logs = append(logs, recordView{
			ID:         r.ID,
			KeyID:      r.KeyID,
			Engine:     r.Engine,
			Endpoint:   r.Endpoint,
			Method:     r.Method,
			StatusCode: r.StatusCode,
			DurationMs: r.DurationMs,
			Cost:       r.Cost,
			CreatedAt:  r.CreatedAt,
		})
	}
	v := statsView{
		TotalRequests:    s.TotalRequests,
		SuccessRate:      s.SuccessRate,
		RecentLogs:       logs,
		RemainingCredits: s.RemainingCredits,
		Tier:             s.Tier,
		PeriodUsage:      s.PeriodUsage,
		PeriodLimit:      s.PeriodLimit,
	}
	if sum != nil {
		v.Period = &periodView{
			Start:        sum.PeriodStart,
			End:          sum.PeriodEnd,
			Requests:     sum.RequestCount,
			Credits:      sum.Credits,
			Errors:       sum.ErrorCount,
			AvgLatencyMs: sum.AvgLatencyMs,
			ByEngine:     sum.ByEngine,
		}
	}
	return v
}
