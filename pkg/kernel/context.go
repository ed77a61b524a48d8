package kernel

import "context"

// Role is the coarse authorization level carried by an access token.
type Role string

const (
	RoleNone   Role = ""
	RoleAdmin  Role = "Admin"
	RoleClient Role = "Client"
)

// AuthContext is injected into every authenticated request
type AuthContext struct {
	Subject string   `json:"sub"`
	Name    string   `json:"name"`
	Role    Role     `json:"role,omitempty"`
	Scopes  []string `json:"scopes"`
}

// IsValid reports whether the context identifies somebody.
func (ac *AuthContext) IsValid() bool {
	return ac != nil && ac.Subject != ""
}

func (ac *AuthContext) IsAdmin() bool {
	return ac != nil && ac.Role == RoleAdmin
}

// HasScope checks for an exact scope or the "*" wildcard.
func (ac *AuthContext) HasScope(scope string) bool {
	for _, s := range ac.Scopes {
		if s == scope || s == "*" {
			return true
		}
	}
	return false
}

type ContextKey string

const (
	AuthContextKey ContextKey = "auth_context"

	// RequestIDKey holds the per-request correlation id (string)
	RequestIDKey ContextKey = "request_id"

	// ConnectionIDKey holds the operator connection resolved by the registration gate
	ConnectionIDKey ContextKey = "connection_id"
)

// WithConnectionID returns a copy of ctx carrying id.
func WithConnectionID(ctx context.Context, id ConnectionID) context.Context {
	return context.WithValue(ctx, ConnectionIDKey, id)
}

// ConnectionIDFrom extracts the connection id placed by WithConnectionID.
func ConnectionIDFrom(ctx context.Context) (ConnectionID, bool) {
	id, ok := ctx.Value(ConnectionIDKey).(ConnectionID)
	return id, ok && !id.IsEmpty()
}

func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, RequestIDKey, id)
}
