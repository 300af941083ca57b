package resilience

import (
	"context"
	"errors"
	"time"
)

// Operation produces a value or fails. It should honour ctx cancellation.
type Operation[T any] func(ctx context.Context) (T, error)

// RunWithTimeout runs op and returns its result if it finishes within timeout.
//
// When the deadline passes first the context handed to op is cancelled and
// ErrTimeout is returned straight away; op is not waited for and may still
// complete in the background, so it must tolerate being abandoned. If the
// caller's ctx ends first its error is returned instead.
func RunWithTimeout[T any](ctx context.Context, timeout time.Duration, op Operation[T]) (T, error) {
	var zero T
	if timeout <= 0 {
		return zero, ErrInvalidTimeout
	}
	if err := ctx.Err(); err != nil {
		return zero, err
	}

	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type result struct {
		val T
		err error
	}
	done := make(chan result, 1)
	go func() {
		v, err := op(attemptCtx)
		done <- result{val: v, err: err}
	}()

	select {
	case r := <-done:
		if r.err != nil && ctx.Err() == nil && errors.Is(attemptCtx.Err(), context.DeadlineExceeded) {
			return zero, ErrTimeout
		}
		return r.val, r.err
	case <-attemptCtx.Done():
		if err := ctx.Err(); err != nil {
			return zero, err
		}
		return zero, ErrTimeout
	}
}
