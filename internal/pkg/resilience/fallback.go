package resilience

import (
	"context"
	"fmt"
)

// WithFallback runs primary and, if it fails, fallback. The two never overlap.
// onPrimaryErr, when set, sees the primary failure before fallback starts.
// Fallback is skipped once ctx is done. If both fail the returned error
// wraps both causes.
func WithFallback[T any](ctx context.Context, primary, fallback Operation[T], onPrimaryErr func(error)) (T, error) {
	v, err := primary(ctx)
	if err == nil {
		return v, nil
	}

	var zero T
	if ctxErr := ctx.Err(); ctxErr != nil {
		return zero, ctxErr
	}
	if onPrimaryErr != nil {
		onPrimaryErr(err)
	}

	v, fbErr := fallback(ctx)
	if fbErr != nil {
		return zero, fmt.Errorf("fallback: %w (primary: %w)", fbErr, err)
	}
	return v, nil
}
