package http

import (
	"context"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"golang.org/x/sync/errgroup"
)

// HealthHandler returns a basic liveness check.
func HealthHandler(deps *Dependencies) fiber.Handler {
	startedAt := time.Now()
	version := deps.Version
	if version == "" {
		version = "dev"
	}

	return func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "healthy",
			"uptime":  time.Since(startedAt).String(),
			"version": version,
		})
	}
}

// ReadyHandler pings every configured backing service concurrently.
func ReadyHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(c.UserContext(), 3*time.Second)
		defer cancel()

		var (
			mu     sync.Mutex
			g      errgroup.Group
			checks = make(map[string]string, len(deps.Checks))
			allOK  = len(deps.Checks) > 0
		)
		for name, p := range deps.Checks {
			g.Go(func() error {
				result := "ok"
				if err := p.Ping(ctx); err != nil {
					result = "error: " + err.Error()
				}
				mu.Lock()
				defer mu.Unlock()
				checks[name] = result
				if result != "ok" {
					allOK = false
				}
				return nil
			})
		}
		_ = g.Wait()

		status := "ready"
		code := fiber.StatusOK
		if !allOK {
			status = "not ready"
			code = fiber.StatusServiceUnavailable
		}

		return c.Status(code).JSON(fiber.Map{
			"status": status,
			"checks": checks,
		})
	}
}
