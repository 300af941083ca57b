package http

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/gofiber/fiber/v2/middleware/timeout"

	"github.com/joinix/joinix/internal/pkg/metrics"
)

// requestTimeout bounds every API handler. Outbound calls inside it are
// bounded again per attempt by the executor.
const requestTimeout = 15 * time.Second

// SetupRoutes registers all REST and GraphQL routes.
func SetupRoutes(app *fiber.App, deps *Dependencies) {
	app.Use(recover.New())

	// Prometheus metrics
	app.Use(metrics.Middleware())
	app.Get("/metrics", metrics.Handler())

	app.Use(compress.New(compress.Config{
		Level: compress.LevelBestSpeed,
	}))

	app.Use(requestid.New())
	app.Use(RequestIDLogMiddleware(deps.logger()))
	app.Use(AccessLogMiddleware())

	if deps.RateLimit > 0 {
		app.Use(limiter.New(limiter.Config{
			Max:        deps.RateLimit,
			Expiration: 1 * time.Minute,
			KeyGenerator: func(c *fiber.Ctx) string {
				return c.IP()
			},
			LimitReached: func(c *fiber.Ctx) error {
				return newError(c, fiber.StatusTooManyRequests, "rate_limited", "too many requests, please try again later")
			},
		}))
	}

	// Security headers + API version
	app.Use(func(c *fiber.Ctx) error {
		c.Set("X-Content-Type-Options", "nosniff")
		c.Set("X-Frame-Options", "DENY")
		c.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		c.Set("X-API-Version", "1.0.0")
		return c.Next()
	})

	app.Use(ETagMiddleware())
	app.Use(CachingMiddleware())
	app.Use(DeprecationMiddleware(deprecatedRoutes))

	// Health & readiness (no timeout, fast internal checks)
	app.Get("/v1/health", HealthHandler(deps))
	app.Get("/v1/ready", ReadyHandler(deps))

	t := func(h fiber.Handler) fiber.Handler { return timeout.NewWithContext(h, requestTimeout) }
	auth := RequireUser()

	v1 := app.Group("/v1")

	// Profiles
	v1.Post("/profiles", auth, t(CreateProfileHandler(deps)))
	v1.Get("/profiles/search", t(SearchProfilesHandler(deps)))
	v1.Get("/profiles/:id", t(GetProfileHandler(deps)))
	v1.Patch("/profiles/:id", auth, t(UpdateProfileHandler(deps)))
	v1.Put("/profiles/:id/avatar", auth, t(UploadAvatarHandler(deps)))

	// Events
	nearby := t(NearbyEventsHandler(deps))
	v1.Post("/events", auth, t(CreateEventHandler(deps)))
	v1.Get("/events", t(ListEventsHandler(deps)))
	v1.Get("/events/nearby", nearby)
	v1.Get("/events/search", nearby) // deprecated alias
	v1.Get("/events/:id", t(GetEventHandler(deps)))
	v1.Post("/events/:id/join", auth, t(JoinEventHandler(deps)))
	v1.Delete("/events/:id/join", auth, t(LeaveEventHandler(deps)))
	v1.Post("/events/:id/cancel", auth, t(CancelEventHandler(deps)))

	// Conversations
	conv := v1.Group("/conversations", auth)
	conv.Post("/", t(StartConversationHandler(deps)))
	conv.Get("/", t(ListConversationsHandler(deps)))
	conv.Get("/:id/messages", t(ListMessagesHandler(deps)))
	conv.Post("/:id/messages", t(SendMessageHandler(deps)))

	// GraphQL
	app.Post("/graphql", t(GraphQLHandler(deps)))
}
