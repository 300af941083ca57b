package resilience_test

import (
	"context"
	"errors"
	"fmt"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/joinix/joinix/internal/pkg/resilience"
)

type timeoutNetErr struct{}

func (timeoutNetErr) Error() string   { return "i/o timeout" }
func (timeoutNetErr) Timeout() bool   { return true }
func (timeoutNetErr) Temporary() bool { return true }

func TestIsRetryable(t *testing.T) {
	base := errors.New("cause")
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"timeout sentinel", resilience.ErrTimeout, true},
		{"wrapped timeout", fmt.Errorf("list: %w", resilience.ErrTimeout), true},
		{"network", resilience.Transient("op", base), true},
		{"net.Error timeout", timeoutNetErr{}, true},
		{"net.OpError", &net.OpError{Op: "dial", Err: base}, true},
		{"auth", resilience.Wrap(resilience.KindAuth, "op", base), false},
		{"validation", resilience.Wrap(resilience.KindValidation, "op", base), false},
		{"not found", resilience.Wrap(resilience.KindNotFound, "op", base), false},
		{"conflict", resilience.Wrap(resilience.KindConflict, "op", base), false},
		{"unclassified", base, false},
		{"caller cancelled", context.Canceled, false},
		{"terminal", &resilience.TerminalError{Op: "op", Attempts: 3, Cause: resilience.Transient("op", base)}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, resilience.IsRetryable(tt.err))
		})
	}
}

func TestKindOf(t *testing.T) {
	assert.Equal(t, resilience.KindUnknown, resilience.KindOf(nil))
	assert.Equal(t, resilience.KindTimeout, resilience.KindOf(timeoutNetErr{}))
	assert.Equal(t, resilience.KindNotFound,
		resilience.KindOf(fmt.Errorf("get: %w", resilience.Wrap(resilience.KindNotFound, "events.get", errors.New("no rows")))))
}

func TestWrap(t *testing.T) {
	assert.NoError(t, resilience.Wrap(resilience.KindAuth, "op", nil))

	cause := errors.New("forbidden")
	err := resilience.Wrap(resilience.KindAuth, "profiles.get", cause)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "profiles.get: auth: forbidden", err.Error())
}

func TestTerminalError(t *testing.T) {
	cause := resilience.Wrap(resilience.KindConflict, "events.join", errors.New("full"))
	err := &resilience.TerminalError{Op: "events.join", Attempts: 1, Cause: cause}
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "events.join failed after 1 attempt(s)")
}
