// Package validation provides struct validation using go-playground/validator v10.
// It holds a process-wide validator instance and converts failures into
// field-level details suitable for API responses.
//
// Example usage:
//
//	type CreateKeyRequest struct {
//	    Name string `json:"name" validate:"required,min=1,max=50"`
//	}
//
//	if verr := validation.ValidateStruct(&req); verr != nil {
//	    writeError(w, gateway.ErrValidation.WithDetails(verr.Fields()))
//	}
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

// FieldError is a single failed constraint.
type FieldError struct {
	Field   string `json:"field"`
	Tag     string `json:"tag"`
	Message string `json:"message"`
}

// RequestValidationError collects every failed constraint of one struct.
type RequestValidationError struct {
	fields []FieldError
}

// Fields returns the failed constraints.
func (ve *RequestValidationError) Fields() []FieldError {
	return ve.fields
}

func (ve *RequestValidationError) Error() string {
	if len(ve.fields) == 0 {
		return "validation failed"
	}
	msgs := make([]string, len(ve.fields))
	for i, f := range ve.fields {
		msgs[i] = f.Message
	}
	return strings.Join(msgs, "; ")
}

// Single builds a one-field error for checks done outside struct tags.
func Single(field, tag, message string) *RequestValidationError {
	return &RequestValidationError{fields: []FieldError{{Field: field, Tag: tag, Message: message}}}
}

// GetValidator returns the shared validator instance.
// Field names in errors use the json tag.
func GetValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" || name == "" {
				return fld.Name
			}
			return name
		})
	})
	return validate
}

// ValidateStruct validates s and returns nil or a *RequestValidationError.
func ValidateStruct(s any) *RequestValidationError {
	err := GetValidator().Struct(s)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return Single("unknown", "unknown", err.Error())
	}

	out := make([]FieldError, len(fieldErrs))
	for i, fe := range fieldErrs {
		out[i] = FieldError{
			Field:   fe.Field(),
			Tag:     fe.Tag(),
			Message: translate(fe),
		}
	}
	return &RequestValidationError{fields: out}
}

var messageTemplates = map[string]string{
	"required":    "%s is required",
	"email":       "%s must be a valid email address",
	"url":         "%s must be a valid URL",
	"fqdn":        "%s must be a valid domain name",
	"hexadecimal": "%s must be hexadecimal",
}

var messageWithParam = map[string]string{
	"oneof":            "%s must be one of: %s",
	"required_without": "%s is required when %s is absent",
}

func translate(fe validator.FieldError) string {
	field, tag, param := fe.Field(), fe.Tag(), fe.Param()
	if t, ok := messageTemplates[tag]; ok {
		return fmt.Sprintf(t, field)
	}
	if t, ok := messageWithParam[tag]; ok {
		return fmt.Sprintf(t, field, param)
	}

	isString := fe.Kind() == reflect.String
	switch tag {
	case "min":
		if isString {
			return fmt.Sprintf("%s must be at least %s characters", field, param)
		}
		return fmt.Sprintf("%s must be at least %s", field, param)
	case "max":
		if isString {
			return fmt.Sprintf("%s must be at most %s characters", field, param)
		}
		return fmt.Sprintf("%s must be at most %s", field, param)
	default:
		return fmt.Sprintf("%s failed %s validation", field, tag)
	}
}
