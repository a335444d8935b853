// Package apperrors defines the closed set of failure kinds the profile pipeline reports.
// Callers branch on the Kind, never on message text.
package apperrors

import (
	"errors"
	"fmt"
)

type Kind string

const (
	KindConfiguration     Kind = "configuration"
	KindInvalidInput      Kind = "invalid_input"
	KindModelUnavailable  Kind = "model_unavailable"
	KindRateLimited       Kind = "rate_limited"
	KindTransport         Kind = "transport"
	KindMalformedResponse Kind = "malformed_response"
	KindTemplate          Kind = "template"
	KindNotFound          Kind = "not_found"
	KindUnknown           Kind = "unknown"
)

// Error is a tagged failure. Cause keeps the underlying error for %w chains.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

func New(kind Kind, message string, cause error) *Error {
	return &Error{
		Kind:    kind,
		Message: message,
		Cause:   cause,
	}
}

func Newf(kind Kind, format string, args ...interface{}) *Error {
	return &Error{
		Kind:    kind,
		Message: fmt.Sprintf(format, args...),
	}
}

// KindOf returns the kind of the outermost tagged error in the chain.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindUnknown
}

func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// Retryable reports whether the AI client policy may try again after err.
func Retryable(err error) bool {
	switch KindOf(err) {
	case KindModelUnavailable, KindRateLimited:
		return true
	default:
		return false
	}
}

// FromStatus maps a remote HTTP status to a transport kind.
func FromStatus(status int) Kind {
	switch status {
	case 404:
		return KindModelUnavailable
	case 429:
		return KindRateLimited
	default:
		return KindTransport
	}
}
