package iamcontainer

import (
	"github.com/Abraxas-365/identity/pkg/config"
	"github.com/Abraxas-365/identity/pkg/iam/auth"
	"github.com/Abraxas-365/identity/pkg/iam/auth/authinfra"
	"github.com/Abraxas-365/identity/pkg/iam/client/clientapi"
	"github.com/Abraxas-365/identity/pkg/iam/client/clientsrv"
	"github.com/Abraxas-365/identity/pkg/iam/directory/directoryinfra"
	"github.com/Abraxas-365/identity/pkg/iam/grant"
	"github.com/Abraxas-365/identity/pkg/iam/grant/grantapi"
	"github.com/Abraxas-365/identity/pkg/kvstore"
	"github.com/Abraxas-365/identity/pkg/logx"
	"github.com/Abraxas-365/identity/pkg/metrx"
	"github.com/Abraxas-365/identity/pkg/pairing/gate"
	"github.com/jmoiron/sqlx"
)

// ---------------------------------------------------------------------------
// Deps: everything the IAM context needs from outside.
// ---------------------------------------------------------------------------

type Deps struct {
	DB      *sqlx.DB
	KV      kvstore.Store
	Cfg     *config.Config
	Metrics *metrx.Metrics
	Audit   auth.AuditService

	// Registration is handed over by the pairing context.
	Notifier clientsrv.Notifier
	Gate     *gate.Gate
}

// ---------------------------------------------------------------------------
// Container: the public surface of the IAM context.
// ---------------------------------------------------------------------------

type Container struct {
	TokenService  auth.TokenService
	Dispatcher    *grant.Dispatcher
	ClientService *clientsrv.ClientService

	TokenHandlers  *grantapi.TokenHandlers
	ClientHandlers *clientapi.ClientHandlers

	AuthMiddleware *auth.TokenMiddleware
}

// New builds the graph: infra, then services, then handlers.
func New(deps Deps) *Container {
	logx.Info("🔧 Initializing IAM container...")

	c := &Container{}

	// ── Directories ──────────────────────────────────────────────────────

	hasher := authinfra.NewBcryptPasswordService(deps.Cfg.Auth.BcryptCost)
	identities := directoryinfra.NewPostgresIdentityDirectory(deps.DB, hasher)
	clients := directoryinfra.NewPostgresClientDirectory(deps.DB, hasher)

	// ── Services ─────────────────────────────────────────────────────────

	tokens := auth.NewJWTServiceFromConfig(&deps.Cfg.Auth.JWT, deps.KV)
	c.TokenService = tokens
	c.Dispatcher = grant.NewDispatcher(identities, clients, tokens)
	c.ClientService = clientsrv.NewClientService(clients, clients, hasher, deps.Notifier, deps.Audit)

	// ── Handlers & middleware ────────────────────────────────────────────

	c.AuthMiddleware = auth.NewAuthMiddleware(tokens)
	c.TokenHandlers = grantapi.NewTokenHandlers(c.Dispatcher, tokens, identities, deps.Audit, deps.Metrics)
	c.ClientHandlers = clientapi.NewClientHandlers(c.ClientService, deps.Gate)

	logx.Info("✅ IAM container initialized")
	return c
}
