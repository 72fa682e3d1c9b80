package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies a failure for callers that need to map it to a response.
type Kind string

const (
	KindInvalidRequest Kind = "invalid_request"
	KindUnauthorized   Kind = "unauthorized"
	KindNotFound       Kind = "not_found"
	KindGone           Kind = "gone"
	KindInvalidState   Kind = "invalid_state"
	KindConflict       Kind = "conflict"
	KindTransient      Kind = "transient"
)

// Error carries a public message and an internal cause.
// Message is safe to return to a caller; Err is for logs only.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// New builds an *Error.
func New(kind Kind, msg string, err error) *Error {
	return &Error{Kind: kind, Message: msg, Err: err}
}

func InvalidRequest(msg string) *Error { return New(KindInvalidRequest, msg, nil) }
func Unauthorized(msg string) *Error   { return New(KindUnauthorized, msg, nil) }
func NotFound(msg string) *Error       { return New(KindNotFound, msg, nil) }
func Gone(msg string) *Error           { return New(KindGone, msg, nil) }
func InvalidState(msg string) *Error   { return New(KindInvalidState, msg, nil) }
func Conflict(msg string) *Error       { return New(KindConflict, msg, nil) }

// Transient wraps a storage or upstream failure that is safe to retry.
func Transient(msg string, err error) *Error { return New(KindTransient, msg, err) }

// KindOf returns the Kind of the first *Error in err's chain.
// Unclassified errors are treated as transient.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindTransient
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	if err == nil {
		return false
	}
	return KindOf(err) == kind
}

// PublicMessage returns the caller-safe message for err.
func PublicMessage(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Message != "" {
		return e.Message
	}
	return "internal error"
}
