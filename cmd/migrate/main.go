package main

import (
	"context"
	"log"
	"os"

	"github.com/joinix/joinix/internal/adapters/postgres"
	"github.com/joinix/joinix/internal/pkg/config"
	"github.com/joinix/joinix/internal/pkg/logging"
)

func main() {
	if len(os.Args) < 2 {
		log.Fatal("usage: migrate <up|status>")
	}

	cfg, err := config.Load("joinix-migrate")
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger := logging.Setup(cfg.Log.Level, "text")

	ctx := context.Background()
	db, err := postgres.New(ctx, cfg.Database.DSN(), postgres.PoolOptions{MaxConns: 2})
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer db.Close()

	switch os.Args[1] {
	case "up":
		applied, err := db.Migrate(ctx, logger)
		if err != nil {
			log.Fatalf("migrate: %v", err)
		}
		logger.Info("all migrations applied", "new", len(applied))
	case "status":
		versions, err := db.AppliedMigrations(ctx)
		if err != nil {
			log.Fatalf("status: %v", err)
		}
		for _, v := range versions {
			logger.Info("applied", "version", v)
		}
	default:
		log.Fatalf("unknown command: %s", os.Args[1])
	}
}
