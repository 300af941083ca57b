package resilience

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// Policy governs attempt count, backoff and per-attempt timeout.
type Policy struct {
	MaxAttempts    int
	BaseBackoff    time.Duration
	GrowthFactor   float64
	AttemptTimeout time.Duration
}

// DefaultPolicy mirrors what the mobile client used for its backend calls.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:    3,
		BaseBackoff:    500 * time.Millisecond,
		GrowthFactor:   2,
		AttemptTimeout: 10 * time.Second,
	}
}

// NewPolicy builds and validates a Policy.
func NewPolicy(maxAttempts int, baseBackoff time.Duration, growthFactor float64, attemptTimeout time.Duration) (Policy, error) {
	p := Policy{
		MaxAttempts:    maxAttempts,
		BaseBackoff:    baseBackoff,
		GrowthFactor:   growthFactor,
		AttemptTimeout: attemptTimeout,
	}
	if err := p.Validate(); err != nil {
		return Policy{}, err
	}
	return p, nil
}

// Validate checks the policy invariants.
func (p Policy) Validate() error {
	var errs []string
	if p.MaxAttempts < 1 {
		errs = append(errs, fmt.Sprintf("max attempts must be >= 1, got %d", p.MaxAttempts))
	}
	if p.BaseBackoff < 0 {
		errs = append(errs, fmt.Sprintf("base backoff must not be negative, got %s", p.BaseBackoff))
	}
	if math.IsNaN(p.GrowthFactor) || math.IsInf(p.GrowthFactor, 0) || p.GrowthFactor < 1 {
		errs = append(errs, fmt.Sprintf("growth factor must be a finite value >= 1, got %v", p.GrowthFactor))
	}
	if p.AttemptTimeout <= 0 {
		errs = append(errs, fmt.Sprintf("attempt timeout must be positive, got %s", p.AttemptTimeout))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidPolicy, strings.Join(errs, "; "))
	}
	return nil
}

// Backoff returns the pause after the given failed attempt (1-indexed):
// BaseBackoff * GrowthFactor^(attempt-1), saturating at the largest Duration.
func (p Policy) Backoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := float64(p.BaseBackoff) * math.Pow(p.GrowthFactor, float64(attempt-1))
	if d >= math.MaxInt64 {
		return time.Duration(math.MaxInt64)
	}
	return time.Duration(d)
}
