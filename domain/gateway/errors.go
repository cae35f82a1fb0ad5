package gateway

import "net/http"

// ErrorResponse represents an error to return to client (value type).
type ErrorResponse struct {
	Status  int
	Code    string
	Message string
	Details any
}

// WithDetails returns a copy carrying extra client-facing detail.
func (e ErrorResponse) WithDetails(details any) ErrorResponse {
	e.Details = details
	return e
}

// WithMessage returns a copy with a different message.
func (e ErrorResponse) WithMessage(msg string) ErrorResponse {
	e.Message = msg
	return e
}

func (e ErrorResponse) Error() string {
	return e.Code + ": " + e.Message
}

// Common error responses
var (
	ErrMissingKey = ErrorResponse{
		Status:  http.StatusUnauthorized,
		Code:    "missing_api_key",
		Message: "Unauthorized",
	}
	ErrInvalidKey = ErrorResponse{
		Status:  http.StatusUnauthorized,
		Code:    "invalid_api_key",
		Message: "Unauthorized",
	}
	ErrKeyRevoked = ErrorResponse{
		Status:  http.StatusUnauthorized,
		Code:    "key_revoked",
		Message: "Unauthorized",
	}
	ErrValidation = ErrorResponse{
		Status:  http.StatusBadRequest,
		Code:    "validation_failed",
		Message: "Request validation failed",
	}
	ErrNotFound = ErrorResponse{
		Status:  http.StatusNotFound,
		Code:    "not_found",
		Message: "Resource not found",
	}
	ErrQuotaExceeded = ErrorResponse{
		Status:  http.StatusTooManyRequests,
		Code:    "quota_exceeded",
		Message: "Monthly request quota exceeded",
	}
	ErrRateLimited = ErrorResponse{
		Status:  http.StatusTooManyRequests,
		Code:    "rate_limit_exceeded",
		Message: "Too many requests",
	}
	ErrEngine = ErrorResponse{
		Status:  http.StatusBadGateway,
		Code:    "engine_error",
		Message: "Engine failed to process the request",
	}
	ErrInternal = ErrorResponse{
		Status:  http.StatusInternalServerError,
		Code:    "internal_error",
		Message: "Internal server error",
	}
)

// ForAuthReason maps an authentication failure reason to its response.
// This is a PURE function.
func ForAuthReason(reason string) ErrorResponse {
	switch reason {
	case "missing_api_key":
		return ErrMissingKey
	case "key_revoked":
		return ErrKeyRevoked
	case "auth_unavailable":
		return ErrInternal
	default:
		return ErrInvalidKey
	}
}
