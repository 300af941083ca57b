package main

import (
	"context"
	"log"
	"log/slog"
	"time"

	"go.temporal.io/sdk/client"
	tlog "go.temporal.io/sdk/log"
	"go.temporal.io/sdk/worker"

	natsadapter "github.com/joinix/joinix/internal/adapters/nats"
	"github.com/joinix/joinix/internal/adapters/postgres"
	"github.com/joinix/joinix/internal/core/usecases"
	"github.com/joinix/joinix/internal/pkg/config"
	"github.com/joinix/joinix/internal/pkg/logging"
	"github.com/joinix/joinix/internal/pkg/metrics"
	"github.com/joinix/joinix/internal/pkg/resilience"
	"github.com/joinix/joinix/internal/workflows"
)

// sweepInterval is how often ended events missed by their workflow are completed.
const sweepInterval = 15 * time.Minute

func main() {
	cfg, err := config.Load("joinix-lifecycle")
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger := logging.Setup(cfg.Log.Level, cfg.Log.Format)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	policy, err := cfg.Retry.Policy()
	if err != nil {
		log.Fatalf("retry policy: %v", err)
	}
	exec, err := resilience.NewExecutor(policy,
		resilience.WithObserver(metrics.ResilienceObserver{}),
		resilience.WithLogger(logger),
	)
	if err != nil {
		log.Fatalf("executor: %v", err)
	}

	db, err := postgres.New(ctx, cfg.Database.DSN(), postgres.PoolOptions{MaxConns: 10})
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()

	events := usecases.NewEventService(
		postgres.NewEventRepo(db), postgres.NewProfileRepo(db), nil, nil, exec,
		usecases.WithLogger(logger),
	)

	// Connect to Temporal
	c, err := client.Dial(client.Options{
		HostPort:  cfg.Temporal.HostPort,
		Namespace: cfg.Temporal.Namespace,
		Logger:    tlog.NewStructuredLogger(logger),
	})
	if err != nil {
		log.Fatalf("temporal client: %v", err)
	}
	defer c.Close()

	w := worker.New(c, cfg.Temporal.TaskQueue, worker.Options{})
	w.RegisterWorkflow(workflows.EventLifecycleWorkflow)
	w.RegisterActivity(&workflows.LifecycleActivities{Events: events})

	// Domain events drive the workflows.
	nc, err := natsadapter.Connect(cfg.NATS.URL, "joinix-lifecycle")
	if err != nil {
		log.Fatalf("nats: %v", err)
	}
	js, err := nc.JetStream()
	if err != nil {
		log.Fatalf("jetstream: %v", err)
	}
	if err := natsadapter.EnsureStream(js, cfg.NATS.StreamAge); err != nil {
		log.Fatalf("nats: %v", err)
	}
	sub, err := natsadapter.NewSubscriber(nc, "lifecycle", cfg.NATS.MaxDeliver, cfg.NATS.RetryDelay, logger)
	if err != nil {
		log.Fatalf("nats subscriber: %v", err)
	}
	defer sub.Close()

	scheduler := workflows.NewScheduler(c, cfg.Temporal.TaskQueue, policy, logger)
	if err := scheduler.Listen(ctx, sub); err != nil {
		log.Fatalf("nats: %v", err)
	}

	go sweep(ctx, events, logger)

	logger.Info("lifecycle worker started", "task_queue", cfg.Temporal.TaskQueue)
	if err := w.Run(worker.InterruptCh()); err != nil {
		log.Fatalf("worker: %v", err)
	}
	logger.Info("lifecycle worker stopped")
}

// sweep completes events that ended while no workflow was tracking them,
// once at start and then every sweepInterval.
func sweep(ctx context.Context, events *usecases.EventService, logger *slog.Logger) {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()
	for {
		n, err := events.CompleteEnded(ctx)
		switch {
		case err != nil:
			logger.Error("sweep failed", "error", err)
		case n > 0:
			metrics.EventsCompleted.Add(float64(n))
			logger.Info("sweep completed ended events", "count", n)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
