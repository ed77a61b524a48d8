package directory

import (
	"context"
	"time"

	"github.com/Abraxas-365/identity/pkg/kernel"
)

// IdentityDirectory validates operator credentials and account state.
type IdentityDirectory interface {
	ValidateCredentials(ctx context.Context, username, password string) (bool, error)
	FindByUsername(ctx context.Context, username string) (*User, error)
	FindByID(ctx context.Context, id kernel.UserID) (*User, error)
	Exists(ctx context.Context, id kernel.UserID) (bool, error)
	IsActive(ctx context.Context, id kernel.UserID) (bool, error)
}

// ClientDirectory resolves device clients. GetPublicKey reports false when
// the client is unknown or has no key on file.
type ClientDirectory interface {
	GetPublicKey(ctx context.Context, id kernel.ClientID) (string, bool, error)
	ValidateClientSecret(ctx context.Context, id kernel.ClientID, secret string) (bool, error)
	GetAssignedGroupIDs(ctx context.Context, id kernel.ClientID) ([]kernel.GroupID, error)
	RecordTokenRequest(ctx context.Context, id kernel.ClientID, at time.Time) error
	CreateClient(ctx context.Context, client Client) error
	ClientExists(ctx context.Context, id kernel.ClientID) (bool, error)
}

// ClientManager lets operators maintain paired devices.
type ClientManager interface {
	ListClients(ctx context.Context, filter string) ([]Client, error)
	UpdateDisplayName(ctx context.Context, id kernel.ClientID, displayName string) error
	DeleteClient(ctx context.Context, id kernel.ClientID) error
}

// PasswordHasher hashes user passwords and client secrets.
type PasswordHasher interface {
	Hash(plain string) (string, error)
	Compare(hash, plain string) bool
}
