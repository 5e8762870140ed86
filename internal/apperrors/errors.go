// Package apperrors defines the error kinds shared by the grant, payment and ledger components
// and the HTTP status each kind maps to.
package apperrors

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an error by the remediation available to the caller.
type Kind string

const (
	KindValidation      Kind = "validation_error"
	KindProtocol        Kind = "protocol_error"
	KindAuthentication  Kind = "authentication_error"
	KindLimitExceeded   Kind = "limit_exceeded"
	KindGrantExpired    Kind = "grant_expired"
	KindGrantInactive   Kind = "grant_inactive"
	KindSessionNotFound Kind = "session_not_found"
	KindSessionExpired  Kind = "session_expired"
	KindDownstream      Kind = "downstream_error"
	KindNotFound        Kind = "not_found"
	KindConflict        Kind = "conflict"
	KindInternal        Kind = "internal_error"
)

// Error is the concrete error type returned by the core components.
type Error struct {
	Kind    Kind
	Op      string
	Message string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = string(e.Kind)
	}
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error with the same kind, so errors.Is(err, ErrLimitExceeded) works
// regardless of message or cause.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Op == "" && t.Message == "" && t.Err == nil
}

// Sentinels for errors.Is comparisons.
var (
	ErrValidation      = &Error{Kind: KindValidation}
	ErrProtocol        = &Error{Kind: KindProtocol}
	ErrAuthentication  = &Error{Kind: KindAuthentication}
	ErrLimitExceeded   = &Error{Kind: KindLimitExceeded}
	ErrGrantExpired    = &Error{Kind: KindGrantExpired}
	ErrGrantInactive   = &Error{Kind: KindGrantInactive}
	ErrSessionNotFound = &Error{Kind: KindSessionNotFound}
	ErrSessionExpired  = &Error{Kind: KindSessionExpired}
	ErrDownstream      = &Error{Kind: KindDownstream}
	ErrNotFound        = &Error{Kind: KindNotFound}
	ErrConflict        = &Error{Kind: KindConflict}
)

func newError(kind Kind, op, message string, err error) *Error {
	return &Error{Kind: kind, Op: op, Message: message, Err: err}
}

func Validation(op, message string) error { return newError(KindValidation, op, message, nil) }

func Protocol(op, message string) error { return newError(KindProtocol, op, message, nil) }

func Authentication(op, message string) error {
	return newError(KindAuthentication, op, message, nil)
}

func LimitExceeded(op, message string, err error) error {
	return newError(KindLimitExceeded, op, message, err)
}

func GrantExpired(op, message string) error { return newError(KindGrantExpired, op, message, nil) }

func GrantInactive(op, message string) error { return newError(KindGrantInactive, op, message, nil) }

func SessionNotFound(op, message string) error {
	return newError(KindSessionNotFound, op, message, nil)
}

func SessionExpired(op, message string) error {
	return newError(KindSessionExpired, op, message, nil)
}

func Downstream(op, message string, err error) error {
	return newError(KindDownstream, op, message, err)
}

func NotFound(op, message string) error { return newError(KindNotFound, op, message, nil) }

func Conflict(op, message string) error { return newError(KindConflict, op, message, nil) }

func Internal(op, message string, err error) error {
	return newError(KindInternal, op, message, err)
}

// KindOf returns the kind of the first *Error in err's chain, or KindInternal.
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindInternal
}

// MessageOf returns a caller-safe message: the *Error message when present, never the cause.
func MessageOf(err error) string {
	var appErr *Error
	if errors.As(err, &appErr) && appErr.Message != "" {
		return appErr.Message
	}
	return "Internal server error"
}

// HTTPStatus maps an error kind to the status code exposed by the HTTP surface.
func HTTPStatus(kind Kind) int {
	switch kind {
	case KindValidation, KindGrantInactive:
		return http.StatusBadRequest
	case KindAuthentication:
		return http.StatusUnauthorized
	case KindNotFound, KindSessionNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	case KindSessionExpired:
		return http.StatusGone
	case KindLimitExceeded, KindGrantExpired:
		return http.StatusUnprocessableEntity
	case KindProtocol, KindDownstream:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
