package usecases

import (
	"context"
	"errors"
	"fmt"

	"github.com/joinix/joinix/internal/pkg/resilience"
)

// Sentinel errors returned (wrapped in a classified resilience.Error) by the services.
var (
	ErrInvalidInput   = errors.New("invalid input")
	ErrForbidden      = errors.New("forbidden")
	ErrEventClosed    = errors.New("event is cancelled or completed")
	ErrEventFull      = errors.New("event is full")
	ErrHostCannotJoin = errors.New("host cannot join their own event")
	ErrEventNotEnded  = errors.New("event has not ended yet")
	ErrUnavailable    = errors.New("feature unavailable")
)

func invalidf(format string, args ...any) error {
	return &resilience.Error{
		Kind: resilience.KindValidation,
		Err:  fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...)),
	}
}

func forbidden(reason string) error {
	return &resilience.Error{Kind: resilience.KindAuth, Err: fmt.Errorf("%w: %s", ErrForbidden, reason)}
}

// unavailable reports a feature this deployment does not provide. It is not
// retryable.
func unavailable(reason string) error {
	return &resilience.Error{Kind: resilience.KindUnknown, Err: fmt.Errorf("%w: %s", ErrUnavailable, reason)}
}

func conflict(err error) error {
	return &resilience.Error{Kind: resilience.KindConflict, Err: err}
}

func isNotFound(err error) bool {
	return resilience.KindOf(err) == resilience.KindNotFound
}

// run adapts an error-only call to resilience.Do.
func run(ctx context.Context, exec *resilience.Executor, name string, fn func(ctx context.Context) error) error {
	_, err := resilience.Do(ctx, exec, name, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

func clampLimit(limit, def, max int) int {
	if limit <= 0 {
		return def
	}
	if limit > max {
		return max
	}
	return limit
}
