package grant

import (
	"context"
	"time"

	"github.com/Abraxas-365/identity/pkg/errx"
	"github.com/Abraxas-365/identity/pkg/iam/directory"
	"github.com/Abraxas-365/identity/pkg/iam/signature"
	"github.com/Abraxas-365/identity/pkg/kernel"
	"github.com/Abraxas-365/identity/pkg/logx"
)

// Dispatcher routes a grant request to its handler. Handlers share no
// mutable state; each decision depends only on the request and the
// directories.
type Dispatcher struct {
	identities directory.IdentityDirectory
	clients    directory.ClientDirectory
	refresh    RefreshAuthenticator
	now        func() time.Time
}

type Option func(*Dispatcher)

// WithNow overrides the clock used for token-request bookkeeping.
func WithNow(now func() time.Time) Option {
	return func(d *Dispatcher) { d.now = now }
}

func NewDispatcher(
	identities directory.IdentityDirectory,
	clients directory.ClientDirectory,
	refresh RefreshAuthenticator,
	opts ...Option,
) *Dispatcher {
	d := &Dispatcher{
		identities: identities,
		clients:    clients,
		refresh:    refresh,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Exchange authenticates req and returns the principal to issue tokens for.
// Errors are always *errx.Error from this package's registry.
func (d *Dispatcher) Exchange(ctx context.Context, req Request) (*Principal, error) {
	switch g := req.(type) {
	case PasswordGrant:
		return d.password(ctx, g)
	case RefreshTokenGrant:
		return d.refreshToken(ctx, g)
	case ClientCredentialsGrant:
		return d.clientCredentials(ctx, g)
	case nil:
		return nil, ErrInvalidRequest()
	default:
		return nil, ErrUnsupportedGrantType().WithDetail("grant_type", req.GrantType())
	}
}

func (d *Dispatcher) password(ctx context.Context, g PasswordGrant) (*Principal, error) {
	if g.Username == "" || g.Password == "" {
		return nil, ErrInvalidRequest()
	}

	ok, err := d.identities.ValidateCredentials(ctx, g.Username, g.Password)
	if err != nil {
		return nil, d.serverError(ctx, "validate credentials", err)
	}
	if !ok {
		return nil, ErrUnauthorized()
	}

	user, err := d.identities.FindByUsername(ctx, g.Username)
	if err != nil {
		return nil, d.serverError(ctx, "load user", err)
	}

	p := newPrincipal(user.ID.String())
	p.DisplayName = user.DisplayName
	p.SetClaim(ClaimName, user.DisplayName)
	if user.IsAdmin {
		p.Role = kernel.RoleAdmin
		p.SetClaim(ClaimRole, string(kernel.RoleAdmin))
	}
	p.Scopes = NormalizeScopes(g.Scopes)
	return p, nil
}

func (d *Dispatcher) refreshToken(ctx context.Context, g RefreshTokenGrant) (*Principal, error) {
	if g.Token == "" {
		return nil, ErrInvalidRequest()
	}

	original, err := d.refresh.Authenticate(ctx, g.Token)
	if err != nil {
		if e, ok := errx.As(err); ok && e.Type == errx.TypeAuthorization {
			return nil, ErrUnauthorized()
		}
		return nil, d.serverError(ctx, "authenticate refresh token", err)
	}
	if original.Subject == "" || original.Role == kernel.RoleClient {
		return nil, ErrUnauthorized()
	}

	userID := kernel.NewUserID(original.Subject)
	exists, err := d.identities.Exists(ctx, userID)
	if err != nil {
		return nil, d.serverError(ctx, "check user exists", err)
	}
	if !exists {
		return nil, ErrUnauthorized().WithDetail("reason", "the token is no longer valid")
	}

	active, err := d.identities.IsActive(ctx, userID)
	if err != nil {
		return nil, d.serverError(ctx, "check user active", err)
	}
	if !active {
		return nil, ErrUnauthorized().WithDetail("reason", "the user is no longer allowed to sign in")
	}

	original.Scopes = narrowScopes(original.Scopes, g.Scopes)
	return original, nil
}

func (d *Dispatcher) clientCredentials(ctx context.Context, g ClientCredentialsGrant) (*Principal, error) {
	// Proof of key possession is mandatory; there is no secret-only path.
	if g.Signature == "" {
		return nil, ErrInvalidClient()
	}
	if g.ClientID == "" {
		return nil, ErrInvalidRequest()
	}
	clientID := kernel.NewClientID(g.ClientID)

	publicKey, found, err := d.clients.GetPublicKey(ctx, clientID)
	if err != nil {
		return nil, d.serverError(ctx, "load client public key", err)
	}
	if !found {
		return nil, ErrInvalidClient()
	}

	assertion := signature.CanonicalAssertion(g.ClientID, g.ClientSecret)
	if !signature.VerifyEncoded(assertion, g.Signature, publicKey) {
		return nil, ErrInvalidClient()
	}

	secretOK, err := d.clients.ValidateClientSecret(ctx, clientID, g.ClientSecret)
	if err != nil {
		return nil, d.serverError(ctx, "validate client secret", err)
	}
	if !secretOK {
		return nil, ErrInvalidClient()
	}

	groups, err := d.clients.GetAssignedGroupIDs(ctx, clientID)
	if err != nil {
		return nil, d.serverError(ctx, "load client groups", err)
	}

	p := newPrincipal(g.ClientID)
	p.Role = kernel.RoleClient
	p.SetClaim(ClaimRole, string(kernel.RoleClient))
	groupIDs := make([]string, len(groups))
	for i, id := range groups {
		groupIDs[i] = id.String()
	}
	p.SetClaim(ClaimClientGroup, groupIDs...)
	p.Scopes = NormalizeScopes(g.Scopes)

	if err := d.clients.RecordTokenRequest(ctx, clientID, d.now()); err != nil {
		logx.WithContext(ctx).
			WithError(err).
			WithField("client_id", g.ClientID).
			Warn("failed to record client token request")
	}

	return p, nil
}

func (d *Dispatcher) serverError(ctx context.Context, op string, err error) *errx.Error {
	logx.WithContext(ctx).WithError(err).WithField("op", op).Error("grant collaborator failed")
	return ErrServer(err)
}
