// Package client covers device registration and operator maintenance of
// registered devices.
package client

import (
	"net/http"

	"github.com/Abraxas-365/identity/pkg/errx"
	"github.com/Abraxas-365/identity/pkg/kernel"
)

// SecretLength is the length of a generated client secret.
const SecretLength = 101

// RegisterRequest is sent by a device holding a valid registration token.
type RegisterRequest struct {
	PublicKey   string `json:"public_key"`
	DisplayName string `json:"display_name"`
	Device      string `json:"device"`
}

type UpdateRequest struct {
	ClientID    kernel.ClientID `json:"client_id"`
	DisplayName string          `json:"display_name"`
}

// ============================================================================
// Error Registry
// ============================================================================

var ErrRegistry = errx.NewRegistry("CLIENT")

var (
	CodeInvalidRequest     = ErrRegistry.Register("INVALID_REQUEST", errx.TypeValidation, http.StatusBadRequest, "Invalid request body")
	CodeInvalidPublicKey   = ErrRegistry.Register("INVALID_PUBLIC_KEY", errx.TypeValidation, http.StatusBadRequest, "Public key is not a valid RSA key")
	CodeRegistrationFailed = ErrRegistry.Register("REGISTRATION_FAILED", errx.TypeInternal, http.StatusInternalServerError, "Client registration failed")
)

func ErrInvalidRequest() *errx.Error {
	return ErrRegistry.New(CodeInvalidRequest)
}

func ErrInvalidPublicKey() *errx.Error {
	return ErrRegistry.New(CodeInvalidPublicKey)
}

func ErrRegistrationFailed(cause error) *errx.Error {
	return ErrRegistry.NewWithCause(CodeRegistrationFailed, cause)
}
