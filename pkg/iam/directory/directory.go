// Package directory describes the persisted identities the token endpoint
// authenticates against: operator users and paired device clients.
package directory

import (
	"net/http"
	"time"

	"github.com/Abraxas-365/identity/pkg/errx"
	"github.com/Abraxas-365/identity/pkg/kernel"
)

// User is an operator account.
type User struct {
	ID             kernel.UserID `db:"id" json:"id"`
	Username       string        `db:"username" json:"username"`
	DisplayName    string        `db:"display_name" json:"display_name"`
	IsAdmin        bool          `db:"is_admin" json:"is_admin"`
	EmailConfirmed bool          `db:"email_confirmed" json:"email_confirmed"`
}

// IsActive reports whether the user may still sign in.
func (u *User) IsActive() bool { return u.EmailConfirmed }

// Client is a device paired through the registration handshake.
type Client struct {
	ID                 kernel.ClientID `json:"client_id"`
	SecretHash         string          `json:"-"`
	PublicKey          string          `json:"public_key"`
	DisplayName        string          `json:"display_name"`
	DeviceName         string          `json:"device_name,omitempty"`
	RegisteredAt       time.Time       `json:"registered_at"`
	LastTokenRequestAt *time.Time      `json:"last_token_request_at,omitempty"`
}

// RegistrationResult is handed to a device exactly once.
type RegistrationResult struct {
	ClientID     kernel.ClientID `json:"client_id"`
	ClientSecret string          `json:"client_secret"`
}

// ============================================================================
// Error Registry
// ============================================================================

var ErrRegistry = errx.NewRegistry("DIRECTORY")

var (
	CodeUserNotFound   = ErrRegistry.Register("USER_NOT_FOUND", errx.TypeNotFound, http.StatusNotFound, "User not found")
	CodeClientExists   = ErrRegistry.Register("CLIENT_EXISTS", errx.TypeConflict, http.StatusConflict, "Client already exists")
	CodeClientNotFound = ErrRegistry.Register("CLIENT_NOT_FOUND", errx.TypeNotFound, http.StatusNotFound, "Client not found")
	CodeLookupFailed   = ErrRegistry.Register("LOOKUP_FAILED", errx.TypeInternal, http.StatusInternalServerError, "Directory lookup failed")
)

func ErrUserNotFound() *errx.Error {
	return ErrRegistry.New(CodeUserNotFound)
}

func ErrClientExists() *errx.Error {
	return ErrRegistry.New(CodeClientExists)
}

func ErrClientNotFound() *errx.Error {
	return ErrRegistry.New(CodeClientNotFound)
}

func ErrLookupFailed(cause error) *errx.Error {
	return ErrRegistry.NewWithCause(CodeLookupFailed, cause)
}
