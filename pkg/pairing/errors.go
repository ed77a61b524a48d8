package pairing

import (
	"net/http"

	"github.com/Abraxas-365/identity/pkg/errx"
)

var ErrRegistry = errx.NewRegistry("PAIRING")

var (
	CodeForbidden        = ErrRegistry.Register("FORBIDDEN", errx.TypeForbidden, http.StatusForbidden, "Registration token is invalid or already used")
	CodeConnectionClosed = ErrRegistry.Register("CONNECTION_CLOSED", errx.TypeConflict, http.StatusConflict, "Connection is no longer subscribed")
	CodeTokenGeneration  = ErrRegistry.Register("TOKEN_GENERATION_FAILED", errx.TypeInternal, http.StatusInternalServerError, "Failed to issue registration token")
)

// ErrForbidden is the only outcome a device sees from the registration gate.
func ErrForbidden() *errx.Error {
	return ErrRegistry.New(CodeForbidden)
}

func ErrConnectionClosed() *errx.Error {
	return ErrRegistry.New(CodeConnectionClosed)
}

func ErrTokenGeneration(cause error) *errx.Error {
	return ErrRegistry.NewWithCause(CodeTokenGeneration, cause)
}
