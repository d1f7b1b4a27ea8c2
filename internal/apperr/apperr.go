package apperr

import (
	"errors"
	"net/http"
)

// Kind classifies an error into the buckets exposed to HTTP clients
type Kind string

const (
	KindValidation          Kind = "validation"
	KindUnknownAccount      Kind = "unknown_account"
	KindUnsupportedProvider Kind = "unsupported_provider"
	KindUnauthorized        Kind = "unauthorized"
	KindPinNotConfigured    Kind = "pin_not_configured"
	KindRateLimited         Kind = "rate_limited"
	KindNoMessagesFound     Kind = "no_messages_found"
	KindCodeNotFound        Kind = "code_not_found"
	KindTransport           Kind = "transport"
	KindNotConfigured       Kind = "not_configured"
	KindInternal            Kind = "internal"
)

// Error is the structured error returned by the gateway services
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

// Error implements the error interface
func (e *Error) Error() string {
	switch {
	case e.Msg != "" && e.Err != nil:
		return e.Msg + ": " + e.Err.Error()
	case e.Msg != "":
		return e.Msg
	case e.Err != nil:
		return e.Err.Error()
	default:
		return string(e.Kind)
	}
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches errors of the same kind so sentinel values work with errors.Is
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Msg == "" && t.Err == nil
}

// StatusCode maps the error kind to an HTTP status code
func (e *Error) StatusCode() int {
	switch e.Kind {
	case KindValidation, KindUnknownAccount, KindUnsupportedProvider, KindNotConfigured:
		return http.StatusBadRequest
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindPinNotConfigured:
		return http.StatusForbidden
	case KindRateLimited:
		return http.StatusTooManyRequests
	case KindNoMessagesFound, KindCodeNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// Sentinels usable with errors.Is
var (
	ErrValidation          = &Error{Kind: KindValidation}
	ErrUnknownAccount      = &Error{Kind: KindUnknownAccount}
	ErrUnsupportedProvider = &Error{Kind: KindUnsupportedProvider}
	ErrUnauthorized        = &Error{Kind: KindUnauthorized}
	ErrPinNotConfigured    = &Error{Kind: KindPinNotConfigured}
	ErrRateLimited         = &Error{Kind: KindRateLimited}
	ErrNoMessagesFound     = &Error{Kind: KindNoMessagesFound}
	ErrCodeNotFound        = &Error{Kind: KindCodeNotFound}
	ErrTransport           = &Error{Kind: KindTransport}
	ErrNotConfigured       = &Error{Kind: KindNotConfigured}
	ErrInternal            = &Error{Kind: KindInternal}
)

// New creates an error of the given kind with a client-facing message
func New(kind Kind, msg string) error {
	return &Error{Kind: kind, Msg: msg}
}

// Wrap creates an error of the given kind that keeps err as its cause
func Wrap(kind Kind, msg string, err error) error {
	return &Error{Kind: kind, Msg: msg, Err: err}
}

// KindOf returns the kind of err, or KindInternal for foreign errors
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// StatusCode returns the HTTP status for any error
func StatusCode(err error) int {
	var e *Error
	if errors.As(err, &e) {
		return e.StatusCode()
	}
	return http.StatusInternalServerError
}
