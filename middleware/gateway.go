package middleware

import (
	"log"
	"strings"

	"github.com/gofiber/fiber/v2"
)

// GatewayAuthenticated is the Locals key set once the Gateway bearer token
// has been verified. Headers the Gateway injects are trusted only then.
const GatewayAuthenticated = "gateway_authenticated"

// GatewayAuthMiddleware validates the Bearer token from the Gateway.
// Health checks bypass it.
func GatewayAuthMiddleware(expectedToken string) fiber.Handler {
	if expectedToken == "" {
		log.Fatal("❌ GAME_SERVICE_TOKEN is not set, service cannot authenticate Gateway")
	}

	return func(c *fiber.Ctx) error {
		if c.Path() == "/health" {
			return c.Next()
		}

		authHeader := c.Get("Authorization")
		if authHeader == "" {
			// sockets opened by browsers cannot set headers; they carry a JWT
			// that SocketAuthMiddleware verifies
			if strings.HasPrefix(c.Path(), "/ws/") && c.Query("token") != "" {
				return c.Next()
			}
			log.Printf("🚫 [GATEWAY_AUTH] Missing Authorization header for %s", c.Path())
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "gateway authentication token missing",
				"kind":  "unauthenticated",
			})
		}

		token := strings.TrimPrefix(authHeader, "Bearer ")
		if token != expectedToken {
			log.Printf("❌ [GATEWAY_AUTH] Invalid token for %s (got prefix: %.10s...)", c.Path(), token)
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "invalid gateway authentication token",
				"kind":  "unauthenticated",
			})
		}

		c.Locals(GatewayAuthenticated, true)
		return c.Next()
	}
}
