package workflows

import (
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/joinix/joinix/internal/core/domain"
	"github.com/joinix/joinix/internal/pkg/resilience"
)

// completionGrace is added to an event's end time before completing it, so
// that clock skew between the worker and the API does not trip ErrEventNotEnded.
const completionGrace = time.Minute

// Activity error types that are never retried.
var nonRetryableTypes = []string{
	resilience.KindNotFound.String(),
	resilience.KindValidation.String(),
	resilience.KindAuth.String(),
	resilience.KindConflict.String(),
}

// LifecycleInput is the input for the event lifecycle workflow.
type LifecycleInput struct {
	EventID string
	EndsAt  time.Time
	Retry   resilience.Policy
}

// WorkflowID is the id of an event's lifecycle workflow. One event has at
// most one running lifecycle.
func WorkflowID(eventID string) string {
	return "event-lifecycle-" + eventID
}

// ActivityOptions derives Temporal activity options from a retry policy.
func ActivityOptions(p resilience.Policy) workflow.ActivityOptions {
	return workflow.ActivityOptions{
		StartToCloseTimeout: p.AttemptTimeout,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:        p.BaseBackoff,
			BackoffCoefficient:     p.GrowthFactor,
			MaximumAttempts:        int32(p.MaxAttempts),
			NonRetryableErrorTypes: nonRetryableTypes,
		},
	}
}

// EventLifecycleWorkflow waits until the event has ended and then marks it
// completed. Cancelling the workflow (the event was cancelled) stops the wait.
func EventLifecycleWorkflow(ctx workflow.Context, in LifecycleInput) (domain.EventStatus, error) {
	logger := workflow.GetLogger(ctx)

	if wait := in.EndsAt.Add(completionGrace).Sub(workflow.Now(ctx)); wait > 0 {
		logger.Info("waiting for event to end", "event_id", in.EventID, "wait", wait)
		if err := workflow.Sleep(ctx, wait); err != nil {
			return "", err
		}
	}

	ctx = workflow.WithActivityOptions(ctx, ActivityOptions(in.Retry))

	var status domain.EventStatus
	if err := workflow.ExecuteActivity(ctx, "CompleteEvent", in.EventID).Get(ctx, &status); err != nil {
		logger.Error("completing event failed", "event_id", in.EventID, "error", err)
		return "", err
	}

	logger.Info("event lifecycle finished", "event_id", in.EventID, "status", status)
	return status, nil
}
