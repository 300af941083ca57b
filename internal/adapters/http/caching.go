package http

import (
	"strings"

	"github.com/gofiber/fiber/v2"
)

// CachingMiddleware sets Cache-Control headers on GET responses based on endpoint.
// Handlers that set their own header win.
func CachingMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		err := c.Next()

		if c.Method() != fiber.MethodGet {
			return err
		}
		if existing := c.GetRespHeader(fiber.HeaderCacheControl); existing != "" {
			return err
		}

		path := c.Path()
		var ttl string

		switch {
		case path == "/v1/health" || path == "/v1/ready" || path == "/metrics":
			ttl = "no-cache"

		case c.Response().StatusCode() >= 400:
			ttl = "no-store"

		// Per-user data
		case strings.HasPrefix(path, "/v1/conversations"):
			ttl = "private, no-store"

		case strings.HasPrefix(path, "/v1/events/nearby"), strings.HasPrefix(path, "/v1/events/search"):
			ttl = "public, max-age=60"

		// Participant counts change on every join
		case strings.HasPrefix(path, "/v1/events"):
			ttl = "public, max-age=15"

		case strings.HasPrefix(path, "/v1/profiles"):
			ttl = "public, max-age=300"

		case strings.HasPrefix(path, "/v1/"):
			ttl = "public, max-age=60"
		}

		if ttl != "" {
			c.Set(fiber.HeaderCacheControl, ttl)
		}
		return err
	}
}
