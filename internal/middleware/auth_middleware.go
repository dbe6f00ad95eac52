package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"polarsync_backend/pkg/config"
	"polarsync_backend/pkg/utils/jwt"
)

// Cookie names for the propagated Supabase session tokens. The browser posts
// them to /api/auth/refresh; subsequent requests authenticate from the cookie
// without resending the Authorization header.
const (
	AccessTokenCookie  = "sb-access-token"
	RefreshTokenCookie = "sb-refresh-token"
)

// AuthMiddleware authenticates a request from a bearer token or the session
// cookie and stores the verified claims in c.Locals("user").
func AuthMiddleware(cfg *config.Config) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token := bearerToken(c)
		if token == "" {
			token = c.Cookies(AccessTokenCookie)
		}
		if token == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "unauthorized",
			})
		}

		claims, err := jwt.ValidateToken(token, cfg.Supabase.JWTSecret)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "unauthorized",
			})
		}

		c.Locals("user", claims)
		return c.Next()
	}
}

func bearerToken(c *fiber.Ctx) string {
	header := c.Get(fiber.HeaderAuthorization)
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimPrefix(header, "Bearer ")
	}
	return ""
}
