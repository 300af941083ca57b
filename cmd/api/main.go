package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"

	"github.com/joinix/joinix/internal/adapters/http"
	natsadapter "github.com/joinix/joinix/internal/adapters/nats"
	"github.com/joinix/joinix/internal/adapters/postgres"
	"github.com/joinix/joinix/internal/adapters/s3store"
	"github.com/joinix/joinix/internal/adapters/valkey"
	"github.com/joinix/joinix/internal/core/ports"
	"github.com/joinix/joinix/internal/core/usecases"
	"github.com/joinix/joinix/internal/pkg/config"
	"github.com/joinix/joinix/internal/pkg/logging"
	"github.com/joinix/joinix/internal/pkg/metrics"
	"github.com/joinix/joinix/internal/pkg/resilience"
	"github.com/joinix/joinix/internal/pkg/telemetry"
)

var version = "dev"

func main() {
	cfg, err := config.Load("joinix-api")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger := logging.Setup(cfg.Log.Level, cfg.Log.Format)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Telemetry
	if cfg.Telemetry.Enabled {
		shutdown, err := telemetry.InitTracer(ctx, cfg.Telemetry.ServiceName, cfg.Telemetry.OTLPEndpoint)
		if err != nil {
			logger.Warn("telemetry init failed", "error", err)
		} else {
			defer shutdown(context.Background())
		}
	}

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

	// Database
	db, err := postgres.New(ctx, cfg.Database.DSN(), postgres.PoolOptions{MaxConns: cfg.Database.MaxConns})
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()

	stopPoll := make(chan struct{})
	defer close(stopPoll)
	go metrics.PollPoolStats(db, 15*time.Second, stopPoll)

	checks := map[string]http.Pinger{"database": db}

	// Cache, publisher and blob store are optional. Interfaces are only set on
	// success so services see a true nil.
	var cache ports.CacheService
	if c, err := valkey.New(cfg.Valkey.Addr, cfg.Valkey.Password, cfg.Valkey.KeyPrefix); err != nil {
		logger.Warn("valkey unavailable", "error", err)
	} else {
		defer c.Close()
		cache = c
		checks["cache"] = c
	}

	var publisher ports.EventPublisher
	if nc, err := natsadapter.Connect(cfg.NATS.URL, "joinix-api"); err != nil {
		logger.Warn("nats unavailable", "error", err)
	} else if js, err := nc.JetStream(); err != nil {
		logger.Warn("jetstream unavailable", "error", err)
		nc.Close()
	} else {
		if err := natsadapter.EnsureStream(js, cfg.NATS.StreamAge); err != nil {
			logger.Warn("ensure stream failed", "error", err)
		}
		pub, err := natsadapter.NewPublisher(nc)
		if err != nil {
			log.Fatalf("nats publisher: %v", err)
		}
		defer pub.Close()
		publisher = pub
		checks["nats"] = pub
	}

	var blobs ports.BlobStore
	if cfg.Storage.Bucket != "" {
		store, err := s3store.New(ctx, s3store.Options{
			Bucket:          cfg.Storage.Bucket,
			Region:          cfg.Storage.Region,
			Endpoint:        cfg.Storage.Endpoint,
			AccessKeyID:     cfg.Storage.AccessKeyID,
			SecretAccessKey: cfg.Storage.SecretAccessKey,
			PublicBaseURL:   cfg.Storage.PublicBaseURL,
		})
		if err != nil {
			log.Fatalf("blob store: %v", err)
		}
		blobs = store
	}

	// Repos
	profileRepo := postgres.NewProfileRepo(db)
	eventRepo := postgres.NewEventRepo(db)
	conversationRepo := postgres.NewConversationRepo(db)

	// Use cases
	opts := []usecases.Option{
		usecases.WithLogger(logger),
		usecases.WithFallbackHook(metrics.RecordFallback),
	}
	deps := &http.Dependencies{
		Profiles:  usecases.NewProfileService(profileRepo, cache, blobs, exec, opts...),
		Events:    usecases.NewEventService(eventRepo, profileRepo, cache, publisher, exec, opts...),
		Chat:      usecases.NewChatService(conversationRepo, exec, opts...),
		Checks:    checks,
		Logger:    logger,
		RateLimit: cfg.Server.RateLimit,
		Version:   version,
	}

	// Fiber
	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		BodyLimit:    6 * 1024 * 1024, // avatars up to 5 MB plus headroom
		AppName:      "Joinix API",
	})
	app.Use(cors.New(cors.Config{
		AllowOrigins: "http://localhost:3000, http://localhost:5173, https://*.joinix.app",
		AllowMethods: "GET,POST,PUT,PATCH,DELETE,OPTIONS",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, " + http.HeaderUserID,
		MaxAge:       3600,
	}))

	http.SetupRoutes(app, deps)

	// Graceful shutdown
	go func() {
		addr := fmt.Sprintf(":%d", cfg.Server.Port)
		logger.Info("API server starting", "addr", addr, "version", version)
		if err := app.Listen(addr); err != nil {
			log.Fatalf("listen: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	logger.Info("shutdown signal received, draining connections...", "signal", sig.String())

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		logger.Error("forced shutdown", "error", err)
	}

	logger.Info("server stopped")
}
