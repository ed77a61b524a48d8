// Package grant turns token-endpoint requests into authenticated principals.
//
// A Request is a closed set of grant types. Dispatcher.Exchange switches on
// the concrete type, so adding a grant means adding a type here and a case
// in the switch.
package grant

import "github.com/Abraxas-365/identity/pkg/kernel"

// Grant type names as they appear on the wire.
const (
	TypePassword          = "password"
	TypeRefreshToken      = "refresh_token"
	TypeClientCredentials = "client_credentials"
)

// Claim names emitted into a Principal.
const (
	ClaimSubject     = "sub"
	ClaimName        = "name"
	ClaimRole        = "role"
	ClaimClientGroup = "client_group"
)

// Request is implemented only by the grant types in this package.
type Request interface {
	GrantType() string
	sealed()
}

type PasswordGrant struct {
	Username string
	Password string
	Scopes   []string
}

type RefreshTokenGrant struct {
	Token  string
	Scopes []string
}

// ClientCredentialsGrant carries the base64 signature of the canonical
// assertion, sent as code_challenge.
type ClientCredentialsGrant struct {
	ClientID     string
	ClientSecret string
	Signature    string
	Scopes       []string
}

// UnsupportedGrant is whatever grant_type the endpoint does not know.
type UnsupportedGrant struct {
	Type string
}

func (PasswordGrant) GrantType() string          { return TypePassword }
func (RefreshTokenGrant) GrantType() string      { return TypeRefreshToken }
func (ClientCredentialsGrant) GrantType() string { return TypeClientCredentials }
func (g UnsupportedGrant) GrantType() string     { return g.Type }

func (PasswordGrant) sealed()          {}
func (RefreshTokenGrant) sealed()      {}
func (ClientCredentialsGrant) sealed() {}
func (UnsupportedGrant) sealed()       {}

// Principal is the authenticated caller handed to the token issuer.
type Principal struct {
	Subject     string
	DisplayName string
	Role        kernel.Role
	Scopes      []string
	Resources   []string
	Claims      map[string][]string
}

func newPrincipal(subject string) *Principal {
	p := &Principal{
		Subject: subject,
		Claims:  make(map[string][]string),
	}
	p.SetClaim(ClaimSubject, subject)
	return p
}

// SetClaim replaces the values of a claim. No values removes it.
func (p *Principal) SetClaim(name string, values ...string) {
	if p.Claims == nil {
		p.Claims = make(map[string][]string)
	}
	if len(values) == 0 {
		delete(p.Claims, name)
		return
	}
	p.Claims[name] = append([]string(nil), values...)
}

// Claim returns the first value of a claim.
func (p *Principal) Claim(name string) (string, bool) {
	v := p.Claims[name]
	if len(v) == 0 {
		return "", false
	}
	return v[0], true
}

func (p *Principal) HasScope(scope string) bool {
	for _, s := range p.Scopes {
		if s == scope {
			return true
		}
	}
	return false
}

// NormalizeScopes drops empty and duplicate entries, keeping first-seen order.
func NormalizeScopes(scopes []string) []string {
	if len(scopes) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(scopes))
	out := make([]string, 0, len(scopes))
	for _, s := range scopes {
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

// narrowScopes keeps the requested scopes that were originally granted.
// An empty request keeps the original set.
func narrowScopes(original, requested []string) []string {
	requested = NormalizeScopes(requested)
	if len(requested) == 0 {
		return NormalizeScopes(original)
	}
	allowed := make(map[string]struct{}, len(original))
	for _, s := range original {
		allowed[s] = struct{}{}
	}
	out := make([]string, 0, len(requested))
	for _, s := range requested {
		if _, ok := allowed[s]; ok {
			out = append(out, s)
		}
	}
	return out
}
