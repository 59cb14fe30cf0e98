package models

import (
	"errors"
)

// ErrorKind classifies failures surfaced to API clients
type ErrorKind string

const (
	KindNotFound            ErrorKind = "not_found"
	KindUpstreamUnavailable ErrorKind = "upstream_unavailable"
	KindInvalidInput        ErrorKind = "invalid_input"
	KindInternal            ErrorKind = "internal"
)

// Error carries a user-facing message (the "erro" field) together with its
// kind and the underlying cause, which is kept for logs only.
type Error struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Message == "" && e.Err != nil {
		return e.Err.Error()
	}
	if e.Message == "" {
		return string(e.Kind)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error of the same kind, so errors.Is(err, ErrNotFound)
// works regardless of message.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// WithMsg returns a copy with the user visible message replaced
func (e Error) WithMsg(msg string) *Error {
	e.Message = msg
	return &e
}

// WithError returns a copy wrapping the raw cause
func (e Error) WithError(err error) *Error {
	e.Err = err
	return &e
}

// Sentinel values for errors.Is checks
var (
	ErrNotFound            = &Error{Kind: KindNotFound}
	ErrUpstreamUnavailable = &Error{Kind: KindUpstreamUnavailable}
	ErrInvalidInput        = &Error{Kind: KindInvalidInput}
)

// NewError builds an Error of the given kind
func NewError(kind ErrorKind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Err: cause}
}

// KindOf returns the kind of the first *Error in err's chain, or KindInternal
func KindOf(err error) ErrorKind {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}
