// Package resilience bounds and retries calls to remote collaborators.
package resilience

import (
	"context"
	"errors"
	"fmt"
	"net"
)

var (
	// ErrTimeout is returned when an attempt does not complete before its deadline.
	ErrTimeout = errors.New("operation timed out")

	// ErrInvalidTimeout is returned by RunWithTimeout for a non-positive timeout.
	ErrInvalidTimeout = errors.New("timeout must be positive")

	// ErrInvalidPolicy is returned when a Policy fails validation.
	ErrInvalidPolicy = errors.New("invalid retry policy")
)

// Kind classifies a failure so that callers never have to inspect error text.
type Kind int

const (
	KindUnknown Kind = iota
	KindTimeout
	KindNetwork
	KindAuth
	KindValidation
	KindNotFound
	KindConflict
)

func (k Kind) String() string {
	switch k {
	case KindTimeout:
		return "timeout"
	case KindNetwork:
		return "network"
	case KindAuth:
		return "auth"
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	default:
		return "unknown"
	}
}

// Transient reports whether a failure of this kind may succeed when retried.
func (k Kind) Transient() bool {
	return k == KindTimeout || k == KindNetwork
}

// Error is a classified failure produced by an adapter.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Wrap classifies err under kind. A nil err stays nil.
func Wrap(kind Kind, op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

// Transient marks err as a retryable connectivity failure.
func Transient(op string, err error) error {
	return Wrap(KindNetwork, op, err)
}

// TerminalError is surfaced by the executor when an operation fails for good:
// either its error was not retryable or every attempt was used up. Cause is the
// error of the final attempt, untouched.
type TerminalError struct {
	Op       string
	Attempts int
	Cause    error
}

func (e *TerminalError) Error() string {
	return fmt.Sprintf("%s failed after %d attempt(s): %v", e.Op, e.Attempts, e.Cause)
}

func (e *TerminalError) Unwrap() error { return e.Cause }

// KindOf returns the classification carried by err, looking through wrapping.
func KindOf(err error) Kind {
	if err == nil {
		return KindUnknown
	}
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Kind
	}
	if errors.Is(err, ErrTimeout) {
		return KindTimeout
	}
	var ne net.Error
	if errors.As(err, &ne) {
		if ne.Timeout() {
			return KindTimeout
		}
		return KindNetwork
	}
	return KindUnknown
}

// IsRetryable is the default classifier: timeouts and connectivity failures
// are retried; auth, validation, not-found, conflict and unclassified errors
// are not. Caller cancellation and already-terminal results are never retried.
func IsRetryable(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	var te *TerminalError
	if errors.As(err, &te) {
		return false
	}
	return KindOf(err).Transient()
}
