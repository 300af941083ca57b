package postgres

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"log/slog"

	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

// migrations is the embedded migrations directory as goose expects it.
func migrations() (fs.FS, error) {
	return fs.Sub(migrationFS, "migrations")
}

// migrator opens a goose provider over a database/sql handle sharing the pool.
// Closing the provider leaves the pool open.
func (db *DB) migrator() (*goose.Provider, error) {
	fsys, err := migrations()
	if err != nil {
		return nil, fmt.Errorf("migrations fs: %w", err)
	}
	p, err := goose.NewProvider(goose.DialectPostgres, stdlib.OpenDBFromPool(db.Pool), fsys)
	if err != nil {
		return nil, fmt.Errorf("migration provider: %w", err)
	}
	return p, nil
}

// Migrate applies every embedded migration that has not run yet, each in its
// own transaction, and returns the files it applied.
func (db *DB) Migrate(ctx context.Context, logger *slog.Logger) ([]string, error) {
	p, err := db.migrator()
	if err != nil {
		return nil, err
	}
	defer p.Close()

	results, err := p.Up(ctx)
	applied := make([]string, 0, len(results))
	for _, r := range results {
		if r.Error != nil {
			continue
		}
		applied = append(applied, r.Source.Path)
		logger.Info("migration applied", "version", r.Source.Version, "file", r.Source.Path, "duration", r.Duration)
	}
	if err != nil {
		return applied, classify("migrations.apply", err)
	}
	return applied, nil
}

// AppliedMigrations lists the applied migration files in version order.
func (db *DB) AppliedMigrations(ctx context.Context) ([]string, error) {
	p, err := db.migrator()
	if err != nil {
		return nil, err
	}
	defer p.Close()

	statuses, err := p.Status(ctx)
	if err != nil {
		return nil, classify("migrations.status", err)
	}
	var versions []string
	for _, s := range statuses {
		if s.State == goose.StateApplied {
			versions = append(versions, s.Source.Path)
		}
	}
	return versions, nil
}
