package clientapi

import (
	"github.com/Abraxas-365/identity/pkg/iam/auth"
	"github.com/Abraxas-365/identity/pkg/iam/client"
	"github.com/Abraxas-365/identity/pkg/iam/client/clientsrv"
	"github.com/Abraxas-365/identity/pkg/kernel"
	"github.com/Abraxas-365/identity/pkg/pairing/gate"
	"github.com/gofiber/fiber/v2"
)

type ClientHandlers struct {
	service *clientsrv.ClientService
	gate    *gate.Gate
}

func NewClientHandlers(service *clientsrv.ClientService, g *gate.Gate) *ClientHandlers {
	return &ClientHandlers{
		service: service,
		gate:    g,
	}
}

// RegisterRoutes mounts device registration behind the registration gate
// and client maintenance behind the admin role.
func (h *ClientHandlers) RegisterRoutes(app fiber.Router, mw *auth.TokenMiddleware) {
	clients := app.Group("/client")
	clients.Post("/register/:"+gate.TokenParam, h.gate.Middleware(), h.Register)

	// Group-level middleware would also match the register route.
	clients.Get("/list", mw.Authenticate(), mw.RequireAdmin(), h.List)
	clients.Post("/", mw.Authenticate(), mw.RequireAdmin(), h.Rename)
	clients.Delete("/:id", mw.Authenticate(), mw.RequireAdmin(), h.Delete)
}

// Register handles POST /client/register/:regToken.
func (h *ClientHandlers) Register(c *fiber.Ctx) error {
	connID, ok := gate.ConnectionID(c)
	if !ok {
		return fiber.ErrForbidden
	}

	var req client.RegisterRequest
	if err := c.BodyParser(&req); err != nil {
		return client.ErrInvalidRequest()
	}

	result, err := h.service.Register(c.UserContext(), connID, req, c.IP())
	if err != nil {
		return err
	}
	return c.JSON(result)
}

func (h *ClientHandlers) List(c *fiber.Ctx) error {
	clients, err := h.service.List(c.UserContext(), c.Query("filter"))
	if err != nil {
		return err
	}
	return c.JSON(clients)
}

func (h *ClientHandlers) Rename(c *fiber.Ctx) error {
	var req client.UpdateRequest
	if err := c.BodyParser(&req); err != nil {
		return client.ErrInvalidRequest()
	}
	if err := h.service.Rename(c.UserContext(), req); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusOK)
}

func (h *ClientHandlers) Delete(c *fiber.Ctx) error {
	if err := h.service.Delete(c.UserContext(), kernel.NewClientID(c.Params("id"))); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusOK)
}
