package pairing

import (
	"context"

	"github.com/Abraxas-365/identity/pkg/kernel"
)

const (
	EventRegisterTokenUpdated = "REGISTER_TOKEN_UPDATED"
	EventClientRegistered     = "CLIENT_REGISTERED"
)

// Event is one server-to-operator frame.
type Event struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

type RegisterTokenUpdated struct {
	Token  string `json:"token"`
	AppKey string `json:"app_key"`
}

type ClientRegistered struct {
	ClientID string `json:"client_id"`
}

// Publisher delivers events to named groups of live connections. Each
// operator connection is subscribed to a group named after its own id.
type Publisher interface {
	AddToGroup(ctx context.Context, group string, connID kernel.ConnectionID) error
	RemoveConnection(ctx context.Context, connID kernel.ConnectionID)
	PublishToGroup(ctx context.Context, group string, ev Event) error
}

// Auditor is the subset of the audit trail the coordinator writes to.
type Auditor interface {
	LogPairingTokenIssued(ctx context.Context, connID kernel.ConnectionID)
}

func groupFor(connID kernel.ConnectionID) string {
	return connID.String()
}
