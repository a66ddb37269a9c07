package middleware

import (
	"github.com/ahmetcoskunkizilkaya/noise-backend/internal/config"
	"github.com/ahmetcoskunkizilkaya/noise-backend/internal/dto"
	jwtware "github.com/gofiber/contrib/jwt"
	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
)

// EventSourceProtected admits only requests signed with the shared event
// delivery secret (HS256 bearer token).
func EventSourceProtected(cfg *config.Config) fiber.Handler {
	return jwtware.New(jwtware.Config{
		SigningKey: jwtware.SigningKey{JWTAlg: jwtware.HS256, Key: []byte(cfg.EventsJWTSecret)},
		ContextKey: "event_source",
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{
				Error:   true,
				Message: "Unauthorized: invalid or expired token",
			})
		},
	})
}

// EventSource returns the subject of the verified delivery token, or "".
func EventSource(c *fiber.Ctx) string {
	token, ok := c.Locals("event_source").(*jwt.Token)
	if !ok {
		return ""
	}
	sub, _ := token.Claims.GetSubject()
	return sub
}
