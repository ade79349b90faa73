package auth

import (
	"strings"

	"github.com/gofiber/fiber/v2"
)

const playerIDKey = "player_id"

// JWTMiddleware validates bearer tokens and stores player_id in locals.
func JWTMiddleware(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token := bearerFromHeader(c.Get("Authorization"))
		if token == "" {
			return fiber.NewError(fiber.StatusUnauthorized, "missing bearer token")
		}
		playerID, err := svc.ValidateToken(token)
		if err != nil {
			return fiber.NewError(fiber.StatusUnauthorized, err.Error())
		}
		c.Locals(playerIDKey, playerID)
		return c.Next()
	}
}

// PlayerID returns the authenticated player of the request.
func PlayerID(c *fiber.Ctx) string {
	id, _ := c.Locals(playerIDKey).(string)
	return id
}

// TokenFromRequest reads the bearer token, falling back to the token query
// parameter for websocket upgrades, where browsers cannot set headers.
func TokenFromRequest(c *fiber.Ctx) string {
	if token := bearerFromHeader(c.Get("Authorization")); token != "" {
		return token
	}
	return c.Query("token")
}

func bearerFromHeader(header string) string {
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return parts[1]
}
