package grant

import (
	"net/http"

	"github.com/Abraxas-365/identity/pkg/errx"
)

var ErrRegistry = errx.NewRegistry("GRANT")

var (
	CodeInvalidRequest       = ErrRegistry.RegisterOAuth("INVALID_REQUEST", "invalid_request", errx.TypeValidation, http.StatusBadRequest, "The request is missing a required parameter")
	CodeUnauthorized         = ErrRegistry.RegisterOAuth("UNAUTHORIZED", "invalid_grant", errx.TypeAuthorization, http.StatusUnauthorized, "The provided credentials are invalid")
	CodeUnsupportedGrantType = ErrRegistry.RegisterOAuth("UNSUPPORTED_GRANT_TYPE", "unsupported_grant_type", errx.TypeValidation, http.StatusBadRequest, "The grant type is not supported")
	CodeServerError          = ErrRegistry.RegisterOAuth("SERVER_ERROR", "server_error", errx.TypeInternal, http.StatusInternalServerError, "The server could not process the request")
)

func ErrInvalidRequest() *errx.Error {
	return ErrRegistry.New(CodeInvalidRequest)
}

// ErrUnauthorized is the single outcome for every credential, signature or
// account-state failure.
func ErrUnauthorized() *errx.Error {
	return ErrRegistry.New(CodeUnauthorized)
}

// ErrInvalidClient is ErrUnauthorized rendered as invalid_client, used when
// the caller authenticates as a client.
func ErrInvalidClient() *errx.Error {
	e := ErrRegistry.New(CodeUnauthorized)
	e.OAuthCode = "invalid_client"
	return e
}

func ErrUnsupportedGrantType() *errx.Error {
	return ErrRegistry.New(CodeUnsupportedGrantType)
}

func ErrServer(cause error) *errx.Error {
	return ErrRegistry.NewWithCause(CodeServerError, cause)
}
