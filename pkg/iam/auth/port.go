package auth

import (
	"context"

	"github.com/Abraxas-365/identity/pkg/iam/grant"
	"github.com/Abraxas-365/identity/pkg/kernel"
)

// TokenService mints and validates the bearer tokens handed out by the
// token endpoint.
type TokenService interface {
	Issue(ctx context.Context, p *grant.Principal, withRefresh bool) (*TokenResponse, error)
	Authenticate(ctx context.Context, refreshToken string) (*grant.Principal, error)
	ValidateAccessToken(token string) (*kernel.AuthContext, error)
}

// AuditService records security-relevant events.
type AuditService interface {
	LogGrantAttempt(ctx context.Context, grantType, subject string, success bool, ip string)
	LogPairingTokenIssued(ctx context.Context, connID kernel.ConnectionID)
	LogClientRegistered(ctx context.Context, clientID kernel.ClientID, connID kernel.ConnectionID, ip string)
}
