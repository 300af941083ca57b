package usecases

import (
	"log/slog"
	"time"
)

// Option customises a service.
type Option func(*options)

type options struct {
	logger     *slog.Logger
	now        func() time.Time
	onFallback func(op string, err error)
}

func defaultOptions(opts []Option) options {
	o := options{
		logger:     slog.Default(),
		now:        time.Now,
		onFallback: func(string, error) {},
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// WithLogger sets the service logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

// WithFallbackHook is called whenever a primary path fails and its fallback runs.
func WithFallbackHook(fn func(op string, err error)) Option {
	return func(o *options) {
		if fn != nil {
			o.onFallback = fn
		}
	}
}
