package http

import (
	"strings"

	"github.com/gofiber/fiber/v2"
)

// HeaderUserID carries the caller's profile id, set by the gateway after it
// has authenticated the request.
const HeaderUserID = "X-User-ID"

const userIDKey = "user_id"

// RequireUser rejects requests without a caller identity and stores it for
// handlers.
func RequireUser() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := strings.TrimSpace(c.Get(HeaderUserID))
		if id == "" {
			return errUnauthorized(c, "missing "+HeaderUserID+" header")
		}
		c.Locals(userIDKey, id)
		return c.Next()
	}
}

func userID(c *fiber.Ctx) string {
	id, _ := c.Locals(userIDKey).(string)
	return id
}
