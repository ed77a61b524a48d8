package errx

import (
	"fmt"
	"sync"
)

// ErrorCode represents a registered error code
type ErrorCode struct {
	Code       string
	Type       Type
	HTTPStatus int
	Message    string
	OAuthCode  string
}

// Registry manages the error codes of one package
type Registry struct {
	prefix string
	codes  map[string]*ErrorCode
	mu     sync.RWMutex
}

// NewRegistry creates a new error registry with a prefix
func NewRegistry(prefix string) *Registry {
	return &Registry{
		prefix: prefix,
		codes:  make(map[string]*ErrorCode),
	}
}

// Register registers a new error code
func (r *Registry) Register(code string, errType Type, httpStatus int, message string) *ErrorCode {
	r.mu.Lock()
	defer r.mu.Unlock()

	errorCode := &ErrorCode{
		Code:       fmt.Sprintf("%s_%s", r.prefix, code),
		Type:       errType,
		HTTPStatus: httpStatus,
		Message:    message,
	}
	r.codes[code] = errorCode
	return errorCode
}

// RegisterOAuth registers a code that also maps to an RFC 6749 error value.
func (r *Registry) RegisterOAuth(code, oauthCode string, errType Type, httpStatus int, message string) *ErrorCode {
	c := r.Register(code, errType, httpStatus, message)
	c.OAuthCode = oauthCode
	return c
}

// New creates a new error from a registered code
func (r *Registry) New(code *ErrorCode) *Error {
	return &Error{
		Code:       code.Code,
		Message:    code.Message,
		Type:       code.Type,
		HTTPStatus: code.HTTPStatus,
		OAuthCode:  code.OAuthCode,
	}
}

// NewWithCause creates an error from a registered code and keeps cause for logging.
func (r *Registry) NewWithCause(code *ErrorCode, cause error) *Error {
	return r.New(code).WithCause(cause)
}

// Get retrieves a registered error code
func (r *Registry) Get(code string) (*ErrorCode, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	errorCode, exists := r.codes[code]
	return errorCode, exists
}
