package resilience

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/joinix/joinix/internal/pkg/resilience"

// Sleeper pauses for d or until ctx is done, whichever comes first.
type Sleeper func(ctx context.Context, d time.Duration) error

// SleepContext is the default Sleeper. It suspends only the calling goroutine.
func SleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Observer receives executor lifecycle callbacks (metrics, auditing).
type Observer interface {
	OnAttempt(op string, attempt int, elapsed time.Duration, err error)
	OnRetry(op string, attempt int, delay time.Duration, err error)
	OnGiveUp(op string, attempts int, err error)
}

type noopObserver struct{}

func (noopObserver) OnAttempt(string, int, time.Duration, error) {}
func (noopObserver) OnRetry(string, int, time.Duration, error)   {}
func (noopObserver) OnGiveUp(string, int, error)                 {}

// Executor runs operations with per-attempt timeouts and exponential backoff.
// It holds only immutable configuration and is safe for concurrent use.
type Executor struct {
	policy      Policy
	isRetryable func(error) bool
	sleep       Sleeper
	observer    Observer
	logger      *slog.Logger
	tracer      trace.Tracer
}

// Option customises an Executor.
type Option func(*Executor)

// WithClassifier replaces IsRetryable.
func WithClassifier(fn func(error) bool) Option {
	return func(e *Executor) {
		if fn != nil {
			e.isRetryable = fn
		}
	}
}

// WithSleeper replaces the backoff sleep, mainly for tests.
func WithSleeper(s Sleeper) Option {
	return func(e *Executor) {
		if s != nil {
			e.sleep = s
		}
	}
}

// WithObserver registers lifecycle callbacks.
func WithObserver(o Observer) Option {
	return func(e *Executor) {
		if o != nil {
			e.observer = o
		}
	}
}

// WithLogger sets the logger used for retry and give-up records.
func WithLogger(l *slog.Logger) Option {
	return func(e *Executor) {
		if l != nil {
			e.logger = l
		}
	}
}

// NewExecutor validates policy and returns an Executor.
func NewExecutor(policy Policy, opts ...Option) (*Executor, error) {
	if err := policy.Validate(); err != nil {
		return nil, err
	}
	e := &Executor{
		policy:      policy,
		isRetryable: IsRetryable,
		sleep:       SleepContext,
		observer:    noopObserver{},
		logger:      slog.Default(),
		tracer:      otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Policy returns the executor's policy.
func (e *Executor) Policy() Policy { return e.policy }

// Do runs fn under e's policy. name labels logs, spans and metrics.
//
// Attempts are strictly sequential. The first success is returned at once. A
// failure stops the loop when it is not retryable or the last attempt was
// used; otherwise the executor sleeps Backoff(attempt) and tries again.
// If every attempt timed out the result is ErrTimeout; any other failure comes
// back as *TerminalError wrapping the final attempt's own error. Cancelling
// ctx aborts the in-flight attempt or pending sleep and returns ctx.Err().
func Do[T any](ctx context.Context, e *Executor, name string, fn Operation[T]) (T, error) {
	var zero T
	var lastErr error
	attempts, timeouts := 0, 0

	for attempt := 1; attempt <= e.policy.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, err
		}
		attempts = attempt

		v, err := runAttempt(ctx, e, name, attempt, fn)
		if err == nil {
			return v, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return zero, ctxErr
		}

		lastErr = err
		if errors.Is(err, ErrTimeout) {
			timeouts++
		}
		if attempt == e.policy.MaxAttempts || !e.isRetryable(err) {
			break
		}

		delay := e.policy.Backoff(attempt)
		e.observer.OnRetry(name, attempt, delay, err)
		e.logger.WarnContext(ctx, "retrying operation",
			"op", name, "attempt", attempt, "delay", delay.String(), "error", err)

		if err := e.sleep(ctx, delay); err != nil {
			return zero, err
		}
	}

	e.observer.OnGiveUp(name, attempts, lastErr)
	if attempts > 1 {
		e.logger.ErrorContext(ctx, "operation failed", "op", name, "attempts", attempts, "error", lastErr)
	} else {
		e.logger.DebugContext(ctx, "operation failed", "op", name, "error", lastErr)
	}

	if timeouts == attempts {
		return zero, fmt.Errorf("%s: %w after %d attempt(s)", name, ErrTimeout, attempts)
	}
	return zero, &TerminalError{Op: name, Attempts: attempts, Cause: lastErr}
}

func runAttempt[T any](ctx context.Context, e *Executor, name string, attempt int, fn Operation[T]) (T, error) {
	ctx, span := e.tracer.Start(ctx, name, trace.WithAttributes(
		attribute.Int("resilience.attempt", attempt),
		attribute.Int("resilience.max_attempts", e.policy.MaxAttempts),
	))
	defer span.End()

	start := time.Now()
	v, err := RunWithTimeout(ctx, e.policy.AttemptTimeout, fn)
	e.observer.OnAttempt(name, attempt, time.Since(start), err)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		span.SetAttributes(attribute.String("resilience.error_kind", KindOf(err).String()))
	}
	return v, err
}
