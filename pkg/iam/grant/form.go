package grant

import "strings"

// ParseForm builds a Request from token endpoint form fields. get returns
// the value of a field or "" when absent.
func ParseForm(get func(key string) string) Request {
	scopes := NormalizeScopes(strings.Fields(get("scope")))

	switch grantType := get("grant_type"); grantType {
	case TypePassword:
		return PasswordGrant{
			Username: get("username"),
			Password: get("password"),
			Scopes:   scopes,
		}
	case TypeRefreshToken:
		return RefreshTokenGrant{
			Token:  get("refresh_token"),
			Scopes: scopes,
		}
	case TypeClientCredentials:
		return ClientCredentialsGrant{
			ClientID:     get("client_id"),
			ClientSecret: get("client_secret"),
			Signature:    get("code_challenge"),
			Scopes:       scopes,
		}
	default:
		return UnsupportedGrant{Type: grantType}
	}
}
