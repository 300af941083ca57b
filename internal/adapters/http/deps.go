package http

import (
	"context"
	"log/slog"

	"github.com/joinix/joinix/internal/core/usecases"
)

// Pinger is implemented by every backing service the readiness probe checks.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Dependencies holds all services needed by HTTP handlers.
type Dependencies struct {
	Profiles *usecases.ProfileService
	Events   *usecases.EventService
	Chat     *usecases.ChatService

	// Checks are probed by /v1/ready, keyed by component name.
	Checks map[string]Pinger

	Logger    *slog.Logger
	RateLimit int // requests per minute per IP; 0 disables limiting
	Version   string
}

func (d *Dependencies) logger() *slog.Logger {
	if d.Logger != nil {
		return d.Logger
	}
	return slog.Default()
}
