// Package apperr defines the error kinds raised by services and controllers
// and their mapping to HTTP status codes.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Error kinds. Wrap them with fmt.Errorf("...: %w", ErrX) to add context.
var (
	ErrIllegalArgument  = errors.New("illegal argument")
	ErrResourceNotFound = errors.New("resource not found")
	ErrRecordNotFound   = errors.New("record not found")
	ErrSecurity         = errors.New("security violation")
	ErrUnauthorized     = errors.New("authentication required")
	ErrValidation       = errors.New("validation failed")
	ErrLocking          = errors.New("record was modified by another session")
)

// FieldError describes one invalid field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Value   any    `json:"value,omitempty"`
}

// ValidationError carries the field errors of a rejected record.
// errors.Is(err, ErrValidation) holds for it.
type ValidationError struct {
	Record string
	Fields []FieldError
}

// NewValidation builds a ValidationError for the named record type.
func NewValidation(record string, fields []FieldError) *ValidationError {
	return &ValidationError{Record: record, Fields: fields}
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+": "+f.Message)
	}
	return fmt.Sprintf("%s %s: %s", e.Record, ErrValidation, strings.Join(parts, "; "))
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// Status maps an error to the HTTP status code it should produce.
func Status(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrIllegalArgument):
		return http.StatusBadRequest
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, ErrSecurity):
		return http.StatusForbidden
	case errors.Is(err, ErrResourceNotFound), errors.Is(err, ErrRecordNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrLocking):
		return http.StatusConflict
	case errors.Is(err, ErrValidation):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// PublicMessage returns the message safe to show to a client. Internal errors
// are not echoed back.
func PublicMessage(err error) string {
	if Status(err) == http.StatusInternalServerError {
		return "internal server error"
	}
	return err.Error()
}

// Fields extracts field errors from a validation error, if any.
func Fields(err error) []FieldError {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve.Fields
	}
	return nil
}
