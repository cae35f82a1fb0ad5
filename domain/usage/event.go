// Package usage provides usage record types and aggregation functions.
// All functions are pure - no side effects.
package usage

import "time"

// Record is a single metered call (immutable value type).
// Records are append-only; one is written per authenticated engine call.
type Record struct {
	ID         string
	UserID     string
	KeyID      string // empty when the caller used a session token
	Engine     string
	Endpoint   string
	Method     string
	StatusCode int
	DurationMs int64
	Cost       int
	SourceIP   string
	CreatedAt  time.Time
}

// Succeeded reports whether the call counts towards the success rate.
// Only an exact 200 counts; other 2xx codes do not.
func (r Record) Succeeded() bool {
	return r.StatusCode == 200
}

// NewRecord creates a record for a finished engine call.
func NewRecord(id, userID, keyID, engine, endpoint, method string, statusCode int, durationMs int64, cost int, sourceIP string, at time.Time) Record {
	if cost < 0 {
		cost = 0
	}
	return Record{
		ID:         id,
		UserID:     userID,
		KeyID:      keyID,
		Engine:     engine,
		Endpoint:   endpoint,
		Method:     method,
		StatusCode: statusCode,
		DurationMs: durationMs,
		Cost:       cost,
		SourceIP:   sourceIP,
		CreatedAt:  at,
	}
}
