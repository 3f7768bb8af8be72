package agent

import (
	"errors"
	"fmt"
)

// Kind classifies pipeline errors for boundary mapping.
type Kind string

const (
	KindValidation Kind = "validation"
	KindRateLimit  Kind = "rate_limit"
	KindNetwork    Kind = "network"
	KindExternal   Kind = "external"
	KindInternal   Kind = "internal"
)

// Error carries a classification alongside the usual message and cause.
type Error struct {
	Kind    Kind
	Field   string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s", e.Field, e.Message)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

func NewValidationError(field, message string) *Error {
	return &Error{Kind: KindValidation, Field: field, Message: message}
}

func NewRateLimitError(message string) *Error {
	return &Error{Kind: KindRateLimit, Message: message}
}

func NewNetworkError(message string, err error) *Error {
	return &Error{Kind: KindNetwork, Message: message, Err: err}
}

func NewExternalError(message string, err error) *Error {
	return &Error{Kind: KindExternal, Message: message, Err: err}
}

// KindOf extracts the classification of err, defaulting to internal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}
