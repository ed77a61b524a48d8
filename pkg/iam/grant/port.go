package grant

import "context"

// RefreshAuthenticator validates a refresh token (signature, expiry, reuse)
// and returns the principal it was issued for. Invalid tokens are reported
// as an *errx.Error of type AUTHORIZATION; anything else is an outage.
type RefreshAuthenticator interface {
	Authenticate(ctx context.Context, refreshToken string) (*Principal, error)
}
