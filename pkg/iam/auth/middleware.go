package auth

import (
	"strings"

	"github.com/Abraxas-365/identity/pkg/iam"
	"github.com/Abraxas-365/identity/pkg/kernel"
	"github.com/gofiber/fiber/v2"
)

// LocalsKey is where Authenticate stores the *kernel.AuthContext.
const LocalsKey = "auth"

// TokenMiddleware authenticates bearer access tokens on fiber routes.
type TokenMiddleware struct {
	tokenService TokenService
}

func NewAuthMiddleware(tokenService TokenService) *TokenMiddleware {
	return &TokenMiddleware{
		tokenService: tokenService,
	}
}

// Authenticate accepts "Authorization: Bearer <token>". Websocket clients
// cannot set headers, so the access_token query parameter is accepted too.
func (am *TokenMiddleware) Authenticate() fiber.Handler {
	return func(c *fiber.Ctx) error {
		token := bearerToken(c.Get(fiber.HeaderAuthorization))
		if token == "" {
			token = c.Query("access_token")
		}
		if token == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": iam.ErrUnauthorized().Message,
				"code":  iam.CodeUnauthorized.Code,
			})
		}

		authContext, err := am.tokenService.ValidateAccessToken(token)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": iam.ErrInvalidToken().Message,
				"code":  iam.CodeInvalidToken.Code,
			})
		}

		c.Locals(LocalsKey, authContext)
		return c.Next()
	}
}

// RequireRole rejects authenticated callers whose role is not role.
func (am *TokenMiddleware) RequireRole(role kernel.Role) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authContext, ok := c.Locals(LocalsKey).(*kernel.AuthContext)
		if !ok || !authContext.IsValid() {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": iam.ErrUnauthorized().Message,
				"code":  iam.CodeUnauthorized.Code,
			})
		}

		if authContext.Role != role {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"error": iam.ErrAccessDenied().Message,
				"code":  iam.CodeAccessDenied.Code,
			})
		}

		return c.Next()
	}
}

// RequireAdmin is RequireRole(kernel.RoleAdmin).
func (am *TokenMiddleware) RequireAdmin() fiber.Handler {
	return am.RequireRole(kernel.RoleAdmin)
}

// AuthFrom returns the auth context stored by Authenticate.
func AuthFrom(c *fiber.Ctx) (*kernel.AuthContext, bool) {
	ac, ok := c.Locals(LocalsKey).(*kernel.AuthContext)
	return ac, ok && ac.IsValid()
}

func bearerToken(header string) string {
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
