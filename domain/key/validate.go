package key

import (
	"strings"
	"unicode/utf8"
)

// AuthResult represents the outcome of key validation (value type).
type AuthResult struct {
	Valid  bool
	Key    Key    // Populated only if Valid=true
	Reason string // Populated only if Valid=false
}

// Validate checks whether a stored key may authenticate.
// This is a PURE function - no side effects, deterministic.
func Validate(k Key) AuthResult {
	if !k.Active || k.RevokedAt != nil {
		return AuthResult{Reason: ReasonRevoked}
	}
	return AuthResult{Valid: true, Key: k}
}

// ParseBearer extracts the raw token from an Authorization header value.
// Returns ("", ReasonMissing) for an absent header and ("", ReasonBadFormat)
// when the header is not a bearer credential.
func ParseBearer(header string) (string, string) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", ReasonMissing
	}
	const scheme = "Bearer "
	if strings.EqualFold(header, strings.TrimSpace(scheme)) {
		return "", ReasonMissing
	}
	if len(header) < len(scheme) || !strings.EqualFold(header[:len(scheme)], scheme) {
		return "", ReasonBadFormat
	}
	token := strings.TrimSpace(header[len(scheme):])
	if token == "" {
		return "", ReasonMissing
	}
	return token, ReasonValid
}

// ValidateFormat checks if a raw secret has the issued shape:
// Prefix followed by exactly 64 lowercase hex characters.
// This is a PURE function.
func ValidateFormat(raw string) bool {
	if !strings.HasPrefix(raw, Prefix) {
		return false
	}
	body := raw[len(Prefix):]
	if len(body) != SecretBytes*2 {
		return false
	}
	for i := 0; i < len(body); i++ {
		c := body[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}

// ValidateName trims and checks a user-chosen key label.
func ValidateName(name string) (string, error) {
	name = strings.TrimSpace(name)
	n := utf8.RuneCountInString(name)
	if n < 1 || n > 50 {
		return "", ErrInvalidName
	}
	return name, nil
}
