package middleware

import (
	"github.com/gofiber/fiber/v2"
	"github.com/pitchreel/api/pkg/response"
)

// GatewayAuthMiddleware trusts the X-User-* identity headers the edge proxy
// injects after ForwardAuth has already verified the token at /auth/verify.
// Only deployments where the proxy strips these headers from client traffic
// should enable it.
func GatewayAuthMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID := c.Get("X-User-Id")
		if userID == "" {
			return response.Unauthorized(c, "Missing user identity headers")
		}

		c.Locals("userId", userID)
		c.Locals("email", c.Get("X-User-Email"))
		c.Locals("name", c.Get("X-User-Name"))

		return c.Next()
	}
}
