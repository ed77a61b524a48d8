package errx

import (
	"errors"
	"fmt"
)

// Error is the error type every package in this module returns across
// its boundary. It carries a registered code, an HTTP status and, for the
// token endpoint, the RFC 6749 error string.
type Error struct {
	// Code is the unique, prefixed error code (e.g. GRANT_UNAUTHORIZED)
	Code string `json:"code"`

	// Message is safe to show to callers
	Message string `json:"message"`

	Type Type `json:"type"`

	HTTPStatus int `json:"http_status"`

	// OAuthCode is the RFC 6749 "error" value, empty outside the token endpoint
	OAuthCode string `json:"oauth_code,omitempty"`

	Details map[string]any `json:"details,omitempty"`

	// Err is the underlying cause. It is logged, never rendered.
	Err error `json:"-"`
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is an *Error with the same code, so that
// errors.Is works against freshly constructed registry errors.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return e.Code == t.Code
}

// WithDetail adds a detail to the error and returns the error for chaining
func (e *Error) WithDetail(key string, value any) *Error {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// WithCause attaches an underlying error for logging.
func (e *Error) WithCause(err error) *Error {
	e.Err = err
	return e
}

// New creates an unregistered error of the given type.
func New(message string, errType Type) *Error {
	return &Error{
		Code:       string(errType),
		Message:    message,
		Type:       errType,
		HTTPStatus: errType.HTTPStatus(),
	}
}

// Wrap wraps err with a message. Code and status of an existing *Error
// in the chain are preserved.
func Wrap(err error, message string, errType Type) *Error {
	if err == nil {
		return nil
	}

	var existing *Error
	if errors.As(err, &existing) {
		return &Error{
			Code:       existing.Code,
			Message:    message,
			Type:       errType,
			HTTPStatus: existing.HTTPStatus,
			OAuthCode:  existing.OAuthCode,
			Details:    existing.Details,
			Err:        err,
		}
	}

	return &Error{
		Code:       string(errType),
		Message:    message,
		Type:       errType,
		HTTPStatus: errType.HTTPStatus(),
		Err:        err,
	}
}

// As finds the first *Error in err's chain.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}
