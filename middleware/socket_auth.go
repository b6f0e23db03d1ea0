package middleware

import (
	"errors"
	"log"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
)

const socketTokenIssuer = "naval-combat"

// SocketClaims is the payload of a socket access token.
type SocketClaims struct {
	UserID string `json:"uid"`
	jwt.RegisteredClaims
}

var errBadClaims = errors.New("token carries no user id")

// IssueSocketToken signs an HS256 token for userID valid for ttl.
func IssueSocketToken(secret, userID string, ttl time.Duration) (string, error) {
	now := time.Now()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, SocketClaims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    socketTokenIssuer,
		},
	})
	return tok.SignedString([]byte(secret))
}

// ParseSocketToken validates tokenStr and returns the user id it names.
func ParseSocketToken(secret, tokenStr string) (string, error) {
	tok, err := jwt.ParseWithClaims(tokenStr, &SocketClaims{}, func(token *jwt.Token) (any, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return "", err
	}
	cl, ok := tok.Claims.(*SocketClaims)
	if !ok || !tok.Valid {
		return "", errBadClaims
	}
	if cl.UserID != "" {
		return cl.UserID, nil
	}
	if cl.Subject != "" {
		return cl.Subject, nil
	}
	return "", errBadClaims
}

// SocketAuthMiddleware resolves the identity of a push-channel client:
// the gateway's X-User-ID header when the request passed gateway auth,
// otherwise the `token` query parameter as an HS256 JWT.
//
// Usage:
//
//	app.Get("/ws/matches/:id", middleware.SocketAuthMiddleware(secret), websocket.New(...))
func SocketAuthMiddleware(secret string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if viaGateway, _ := c.Locals(GatewayAuthenticated).(bool); viaGateway {
			if userID := strings.TrimSpace(c.Get("X-User-ID")); userID != "" {
				c.Locals("user_id", userID)
				return c.Next()
			}
		}

		tokenStr := strings.TrimSpace(c.Query("token"))
		if tokenStr == "" || secret == "" {
			log.Printf("[SocketAuth] ❌ no identity on %s", c.Path())
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "missing token",
				"kind":  "unauthenticated",
			})
		}

		userID, err := ParseSocketToken(secret, tokenStr)
		if err != nil {
			log.Printf("[SocketAuth] ❌ token rejected (prefix: %.10s...): %v", tokenStr, err)
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "invalid token",
				"kind":  "unauthenticated",
			})
		}

		c.Locals("user_id", userID)
		return c.Next()
	}
}
