package workflows

import (
	"context"
	"errors"

	"go.temporal.io/sdk/temporal"

	"github.com/joinix/joinix/internal/core/domain"
	"github.com/joinix/joinix/internal/core/usecases"
	"github.com/joinix/joinix/internal/pkg/metrics"
	"github.com/joinix/joinix/internal/pkg/resilience"
)

// EventCompleter is the slice of the event service the activities need.
type EventCompleter interface {
	CompleteEvent(ctx context.Context, eventID string) (*domain.Event, error)
}

// LifecycleActivities holds the activity implementations for the lifecycle workflow.
type LifecycleActivities struct {
	Events EventCompleter
}

// CompleteEvent marks the event completed and returns its final status.
func (a *LifecycleActivities) CompleteEvent(ctx context.Context, eventID string) (domain.EventStatus, error) {
	e, err := a.Events.CompleteEvent(ctx, eventID)
	if err != nil {
		return "", activityError(err)
	}
	if e.Status == domain.EventCompleted {
		metrics.EventsCompleted.Inc()
	}
	return e.Status, nil
}

// activityError tags err with its kind so the retry policy can tell terminal
// failures apart. An event that has not ended yet is worth retrying.
func activityError(err error) error {
	if errors.Is(err, usecases.ErrEventNotEnded) {
		return temporal.NewApplicationErrorWithCause(err.Error(), "event_not_ended", err)
	}
	kind := resilience.KindOf(err)
	return temporal.NewApplicationErrorWithCause(err.Error(), kind.String(), err)
}
