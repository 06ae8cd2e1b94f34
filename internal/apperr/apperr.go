// Package apperr defines the error kinds the HTTP pipeline translates into
// responses. Handlers and middlewares match on Kind, never on message text.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindAuth
	KindUpstreamTimeout
	KindUpstreamFailure
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindAuth:
		return "auth"
	case KindUpstreamTimeout:
		return "upstream_timeout"
	case KindUpstreamFailure:
		return "upstream_failure"
	default:
		return "internal"
	}
}

// Issue is a single schema violation.
type Issue struct {
	Path    string `json:"path"`
	Message string `json:"message"`
}

// Error carries a Kind, the response status, and a message that is safe to
// show clients. Err is the underlying cause and is only exposed as detail
// outside production.
type Error struct {
	Kind    Kind
	Status  int
	Message string
	Issues  []Issue
	Err     error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return e.Message + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }

// Detail is the raw cause message, or empty when there is none.
func (e *Error) Detail() string {
	if e.Err == nil {
		return ""
	}
	return e.Err.Error()
}

const (
	MsgValidationFailed = "Validation failed"
	MsgMissingAPIKey    = "Missing API key"
	MsgInvalidAPIKey    = "Invalid API key"
	MsgUpstreamTimeout  = "Upstream API timed out"
	MsgUpstreamFailed   = "Upstream API failed"
)

func Validation(issues []Issue) *Error {
	return &Error{Kind: KindValidation, Status: http.StatusBadRequest, Message: MsgValidationFailed, Issues: issues}
}

func MissingAPIKey() *Error {
	return &Error{Kind: KindAuth, Status: http.StatusUnauthorized, Message: MsgMissingAPIKey}
}

func InvalidAPIKey() *Error {
	return &Error{Kind: KindAuth, Status: http.StatusForbidden, Message: MsgInvalidAPIKey}
}

func UpstreamTimeout(err error) *Error {
	return &Error{Kind: KindUpstreamTimeout, Status: http.StatusGatewayTimeout, Message: MsgUpstreamTimeout, Err: err}
}

// UpstreamFailure wraps a transport or decode failure.
func UpstreamFailure(err error) *Error {
	return &Error{Kind: KindUpstreamFailure, Status: http.StatusBadGateway, Message: MsgUpstreamFailed, Err: err}
}

// UpstreamStatus is the failure raised when the upstream answers outside 2xx.
func UpstreamStatus(code int) *Error {
	return UpstreamFailure(&StatusError{Code: code})
}

// StatusError records a non-success upstream HTTP status.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("upstream responded with status %d", e.Code)
}

// As returns the *Error in err's chain, if any.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// KindOf reports the kind of err, KindInternal for untyped errors.
func KindOf(err error) Kind {
	if e, ok := As(err); ok {
		return e.Kind
	}
	return KindInternal
}
