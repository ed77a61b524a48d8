// Package gate guards device registration with the single-use pairing
// token shown to the operator.
package gate

import (
	"context"

	"github.com/Abraxas-365/identity/pkg/kernel"
	"github.com/Abraxas-365/identity/pkg/kvstore"
	"github.com/Abraxas-365/identity/pkg/logx"
	"github.com/Abraxas-365/identity/pkg/metrx"
	"github.com/Abraxas-365/identity/pkg/pairing"
	"github.com/gofiber/fiber/v2"
)

// LocalsConnectionID is where Middleware stores the resolved connection.
const LocalsConnectionID = "connection_id"

// TokenParam is the route parameter Middleware reads.
const TokenParam = "regToken"

type Gate struct {
	store   kvstore.Store
	metrics *metrx.Metrics
}

func New(store kvstore.Store, metrics *metrx.Metrics) *Gate {
	return &Gate{
		store:   store,
		metrics: metrics,
	}
}

// Validate consumes token and returns the connection that issued it. Only
// one caller can ever succeed for a given token. The connection's reverse
// key is left alone; the next rotation or disconnect replaces it.
func (g *Gate) Validate(ctx context.Context, token string) (kernel.ConnectionID, error) {
	if token == "" {
		g.metrics.GateResult("empty")
		return "", pairing.ErrForbidden()
	}

	connID, ok, err := g.store.GetDel(ctx, pairing.TokenKey(token))
	if err != nil {
		g.metrics.GateResult("error")
		logx.WithContext(ctx).WithError(err).Error("Registration gate lookup failed")
		return "", pairing.ErrForbidden()
	}
	if !ok || connID == "" {
		g.metrics.GateResult("denied")
		return "", pairing.ErrForbidden()
	}

	g.metrics.GateResult("accepted")
	return kernel.NewConnectionID(connID), nil
}

// Middleware validates the :regToken route parameter and passes the
// connection id on through Locals and the user context.
func (g *Gate) Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		connID, err := g.Validate(c.UserContext(), c.Params(TokenParam))
		if err != nil {
			return err
		}
		c.Locals(LocalsConnectionID, connID)
		c.SetUserContext(kernel.WithConnectionID(c.UserContext(), connID))
		return c.Next()
	}
}

// ConnectionID returns the connection stored by Middleware.
func ConnectionID(c *fiber.Ctx) (kernel.ConnectionID, bool) {
	id, ok := c.Locals(LocalsConnectionID).(kernel.ConnectionID)
	return id, ok && !id.IsEmpty()
}
