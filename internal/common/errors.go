// Package common defines shared constants and sentinel errors used across
// client and server layers of gophauth. Callers should use errors.Is to
// match these values.
package common

import (
	"errors"
	"strings"
)

var (
	// Repository-level errors.
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("already exists")

	// Service-level errors.
	ErrInternal           = errors.New("internal error")
	ErrValidation         = errors.New("validation error")
	ErrUnauthorized       = errors.New("invalid token")
	ErrCredentialMismatch = errors.New("username or password is invalid")

	// Token errors.
	ErrInvalidToken = errors.New("malformed token")
	ErrBadSignature = errors.New("token signature is invalid")
	ErrTokenExpired = errors.New("token expired")
)

// FieldError points at a single offending request field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// DetailedError is a client-facing failure carrying field level details.
// It unwraps to one of the sentinel errors above.
type DetailedError struct {
	Kind    error
	Message string
	Fields  []FieldError
}

// NewDetailedError builds a DetailedError of the given kind.
func NewDetailedError(kind error, message string, fields ...FieldError) *DetailedError {
	return &DetailedError{Kind: kind, Message: message, Fields: fields}
}

func (e *DetailedError) Error() string {
	if len(e.Fields) == 0 {
		return e.Message
	}
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+" "+f.Message)
	}
	return e.Message + ": " + strings.Join(parts, ", ")
}

func (e *DetailedError) Unwrap() error {
	return e.Kind
}

// FieldsOf returns field details attached anywhere in err's chain.
func FieldsOf(err error) []FieldError {
	var de *DetailedError
	if errors.As(err, &de) {
		return de.Fields
	}
	return nil
}

// MessageOf returns the client-facing message for err.
func MessageOf(err error) string {
	var de *DetailedError
	if errors.As(err, &de) {
		return de.Message
	}
	return err.Error()
}
