package auth

import (
	"net/http"

	"github.com/Abraxas-365/identity/pkg/errx"
)

// Token use markers, carried in the token_use claim so an access token can
// never be replayed as a refresh token.
const (
	TokenUseAccess  = "access"
	TokenUseRefresh = "refresh"
)

// TokenResponse is the RFC 6749 §5.1 success body.
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
	RefreshToken string `json:"refresh_token,omitempty"`
	Scope        string `json:"scope,omitempty"`
}

// ============================================================================
// Error Registry
// ============================================================================

var ErrRegistry = errx.NewRegistry("AUTH")

var (
	CodeInvalidRefreshToken   = ErrRegistry.Register("INVALID_REFRESH_TOKEN", errx.TypeAuthorization, http.StatusUnauthorized, "Invalid refresh token")
	CodeRefreshTokenReused    = ErrRegistry.Register("REFRESH_TOKEN_REUSED", errx.TypeAuthorization, http.StatusUnauthorized, "Refresh token already used")
	CodeTokenGenerationFailed = ErrRegistry.Register("TOKEN_GENERATION_FAILED", errx.TypeInternal, http.StatusInternalServerError, "Token generation failed")
	CodeTokenValidationFailed = ErrRegistry.Register("TOKEN_VALIDATION_FAILED", errx.TypeAuthorization, http.StatusUnauthorized, "Token validation failed")
)

// Helper functions
func ErrInvalidRefreshToken() *errx.Error {
	return ErrRegistry.New(CodeInvalidRefreshToken)
}

func ErrRefreshTokenReused() *errx.Error {
	return ErrRegistry.New(CodeRefreshTokenReused)
}

func ErrTokenGenerationFailed() *errx.Error {
	return ErrRegistry.New(CodeTokenGenerationFailed)
}

func ErrTokenValidationFailed() *errx.Error {
	return ErrRegistry.New(CodeTokenValidationFailed)
}
