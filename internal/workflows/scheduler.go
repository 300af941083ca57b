package workflows

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"go.temporal.io/api/enums/v1"
	"go.temporal.io/api/serviceerror"
	"go.temporal.io/sdk/client"

	"github.com/joinix/joinix/internal/core/domain"
	"github.com/joinix/joinix/internal/core/ports"
	"github.com/joinix/joinix/internal/pkg/resilience"
)

// workflowClient is the part of client.Client the scheduler uses.
type workflowClient interface {
	ExecuteWorkflow(ctx context.Context, options client.StartWorkflowOptions, workflow interface{}, args ...interface{}) (client.WorkflowRun, error)
	CancelWorkflow(ctx context.Context, workflowID string, runID string) error
}

// Scheduler starts and cancels event lifecycle workflows in response to
// domain events.
type Scheduler struct {
	client    workflowClient
	taskQueue string
	retry     resilience.Policy
	logger    *slog.Logger
}

// NewScheduler creates a Scheduler starting workflows on taskQueue.
func NewScheduler(c workflowClient, taskQueue string, retry resilience.Policy, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{client: c, taskQueue: taskQueue, retry: retry, logger: logger}
}

// Listen subscribes the scheduler to event creations and status changes.
func (s *Scheduler) Listen(ctx context.Context, sub ports.EventSubscriber) error {
	if err := sub.SubscribeEventCreated(ctx, s.HandleEventCreated); err != nil {
		return fmt.Errorf("subscribe created: %w", err)
	}
	if err := sub.SubscribeEventStatusChanged(ctx, s.HandleStatusChange); err != nil {
		return fmt.Errorf("subscribe status: %w", err)
	}
	return nil
}

// HandleEventCreated starts the lifecycle of a new event. Redelivered
// messages find the workflow already running and are accepted.
func (s *Scheduler) HandleEventCreated(ctx context.Context, e *domain.Event) error {
	if e.ID == "" {
		return resilience.Wrap(resilience.KindValidation, "lifecycle.start", errors.New("event without id"))
	}
	if e.Status.Closed() {
		return nil
	}

	opts := client.StartWorkflowOptions{
		ID:                    WorkflowID(e.ID),
		TaskQueue:             s.taskQueue,
		WorkflowIDReusePolicy: enums.WORKFLOW_ID_REUSE_POLICY_REJECT_DUPLICATE,
	}
	in := LifecycleInput{EventID: e.ID, EndsAt: e.EndsAt, Retry: s.retry}

	run, err := s.client.ExecuteWorkflow(ctx, opts, EventLifecycleWorkflow, in)
	var started *serviceerror.WorkflowExecutionAlreadyStarted
	switch {
	case errors.As(err, &started):
		s.logger.DebugContext(ctx, "lifecycle already started", "event_id", e.ID)
		return nil
	case err != nil:
		return classify("lifecycle.start", err)
	}
	s.logger.InfoContext(ctx, "lifecycle started", "event_id", e.ID, "run_id", run.GetRunID(), "ends_at", e.EndsAt)
	return nil
}

// HandleStatusChange stops the lifecycle of a cancelled event.
func (s *Scheduler) HandleStatusChange(ctx context.Context, change ports.EventStatusChange) error {
	if change.Status != domain.EventCancelled {
		return nil
	}
	err := s.client.CancelWorkflow(ctx, WorkflowID(change.EventID), "")
	var notFound *serviceerror.NotFound
	switch {
	case errors.As(err, &notFound):
		// Never started or already finished.
		return nil
	case err != nil:
		return classify("lifecycle.cancel", err)
	}
	s.logger.InfoContext(ctx, "lifecycle cancelled", "event_id", change.EventID)
	return nil
}

// classify maps Temporal frontend errors onto resilience kinds so that the
// subscriber redelivers only what may succeed later.
func classify(op string, err error) error {
	var (
		unavailable *serviceerror.Unavailable
		deadline    *serviceerror.DeadlineExceeded
		exhausted   *serviceerror.ResourceExhausted
		invalid     *serviceerror.InvalidArgument
		denied      *serviceerror.PermissionDenied
	)
	switch {
	case errors.As(err, &deadline), errors.Is(err, context.DeadlineExceeded):
		return resilience.Wrap(resilience.KindTimeout, op, err)
	case errors.As(err, &unavailable), errors.As(err, &exhausted):
		return resilience.Wrap(resilience.KindNetwork, op, err)
	case errors.As(err, &invalid):
		return resilience.Wrap(resilience.KindValidation, op, err)
	case errors.As(err, &denied):
		return resilience.Wrap(resilience.KindAuth, op, err)
	}
	return resilience.Wrap(resilience.KindOf(err), op, err)
}
