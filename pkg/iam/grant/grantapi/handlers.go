package grantapi

import (
	"github.com/Abraxas-365/identity/pkg/errx"
	"github.com/Abraxas-365/identity/pkg/iam/auth"
	"github.com/Abraxas-365/identity/pkg/iam/directory"
	"github.com/Abraxas-365/identity/pkg/iam/grant"
	"github.com/Abraxas-365/identity/pkg/kernel"
	"github.com/Abraxas-365/identity/pkg/logx"
	"github.com/Abraxas-365/identity/pkg/metrx"
	"github.com/gofiber/fiber/v2"
)

// TokenHandlers serves the token endpoint and the operator userinfo route.
type TokenHandlers struct {
	dispatcher *grant.Dispatcher
	tokens     auth.TokenService
	identities directory.IdentityDirectory
	audit      auth.AuditService
	metrics    *metrx.Metrics
}

func NewTokenHandlers(
	dispatcher *grant.Dispatcher,
	tokens auth.TokenService,
	identities directory.IdentityDirectory,
	audit auth.AuditService,
	metrics *metrx.Metrics,
) *TokenHandlers {
	return &TokenHandlers{
		dispatcher: dispatcher,
		tokens:     tokens,
		identities: identities,
		audit:      audit,
		metrics:    metrics,
	}
}

// RegisterRoutes mounts POST /connect/token and GET /connect/userinfo.
func (h *TokenHandlers) RegisterRoutes(app fiber.Router, mw *auth.TokenMiddleware) {
	connect := app.Group("/connect")
	connect.Post("/token", h.Exchange)
	connect.Get("/userinfo", mw.Authenticate(), mw.RequireAdmin(), h.UserInfo)
}

// Exchange handles the form-encoded token request.
func (h *TokenHandlers) Exchange(c *fiber.Ctx) error {
	ctx := c.UserContext()
	req := grant.ParseForm(func(key string) string { return c.FormValue(key) })
	grantType := req.GrantType()

	c.Set(fiber.HeaderCacheControl, "no-store")
	c.Set("Pragma", "no-cache")

	principal, err := h.dispatcher.Exchange(ctx, req)
	if err != nil {
		h.audit.LogGrantAttempt(ctx, grantType, attemptedSubject(req), false, c.IP())
		return h.writeError(c, grantType, err)
	}

	withRefresh := grantType == grant.TypePassword || grantType == grant.TypeRefreshToken
	resp, err := h.tokens.Issue(ctx, principal, withRefresh)
	if err != nil {
		logx.WithContext(ctx).WithError(err).Error("token issuance failed")
		return h.writeError(c, grantType, grant.ErrServer(err))
	}

	h.audit.LogGrantAttempt(ctx, grantType, principal.Subject, true, c.IP())
	h.metrics.GrantRequest(metricGrantType(grantType), "success")
	return c.JSON(resp)
}

// UserInfo returns the calling operator's directory record.
func (h *TokenHandlers) UserInfo(c *fiber.Ctx) error {
	ac, ok := auth.AuthFrom(c)
	if !ok {
		return fiber.ErrUnauthorized
	}

	user, err := h.identities.FindByID(c.UserContext(), kernel.NewUserID(ac.Subject))
	if err != nil {
		if e, ok := errx.As(err); ok && e.Type == errx.TypeNotFound {
			return errx.New("User no longer exists", errx.TypeValidation)
		}
		return err
	}
	return c.JSON(user)
}

// writeError renders the RFC 6749 §5.2 error body. Only the registered
// message is rendered, never the cause.
func (h *TokenHandlers) writeError(c *fiber.Ctx, grantType string, err error) error {
	e, ok := errx.As(err)
	if !ok {
		e = grant.ErrServer(err)
	}
	h.metrics.GrantRequest(metricGrantType(grantType), e.ToOAuthResponse().Error)
	return c.Status(e.HTTPStatus).JSON(e.ToOAuthResponse())
}

func attemptedSubject(req grant.Request) string {
	switch g := req.(type) {
	case grant.PasswordGrant:
		return g.Username
	case grant.ClientCredentialsGrant:
		return g.ClientID
	default:
		return ""
	}
}

// metricGrantType bounds label cardinality to the known grant types.
func metricGrantType(grantType string) string {
	switch grantType {
	case grant.TypePassword, grant.TypeRefreshToken, grant.TypeClientCredentials:
		return grantType
	default:
		return "unsupported"
	}
}
