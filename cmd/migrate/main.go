package main

import (
	"context"
	"flag"
	"fmt"
	"io/fs"
	"log"
	"sort"
	"strings"
	"time"

	"github.com/flexprice/mealsub/internal/config"
	"github.com/flexprice/mealsub/internal/logger"
	"github.com/flexprice/mealsub/internal/postgres"
	"github.com/flexprice/mealsub/migrations"
)

const migrationsTable = `
	CREATE TABLE IF NOT EXISTS schema_migrations (
		version    VARCHAR(255) PRIMARY KEY,
		applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`

func main() {
	// Parse command line flags
	dryRun := flag.Bool("dry-run", false, "Print pending migration files without executing them")
	flag.Parse()

	cfg, err := config.NewConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := logger.NewLogger(cfg)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}

	logger.Infow("Connecting to database", "host", cfg.Postgres.Host)

	db, err := postgres.NewDB(cfg, logger)
	if err != nil {
		logger.Fatalw("Failed to connect to postgres", "error", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	if _, err := db.ExecContext(ctx, migrationsTable); err != nil {
		logger.Fatalw("Failed to create migrations table", "error", err)
	}

	files, err := fs.Glob(migrations.Postgres, "postgres/*.up.sql")
	if err != nil {
		logger.Fatalw("Failed to list migrations", "error", err)
	}
	sort.Strings(files)

	applied := 0
	for _, file := range files {
		version := strings.TrimSuffix(strings.TrimPrefix(file, "postgres/"), ".up.sql")

		var exists bool
		if err := db.GetContext(ctx, &exists, `SELECT EXISTS (SELECT 1 FROM schema_migrations WHERE version = $1)`, version); err != nil {
			logger.Fatalw("Failed to check migration", "version", version, "error", err)
		}
		if exists {
			continue
		}

		if *dryRun {
			logger.Infow("Pending migration", "version", version)
			continue
		}

		body, err := fs.ReadFile(migrations.Postgres, file)
		if err != nil {
			logger.Fatalw("Failed to read migration", "file", file, "error", err)
		}

		err = db.WithTx(ctx, func(ctx context.Context) error {
			q := db.GetQuerier(ctx)
			if _, err := q.ExecContext(ctx, string(body)); err != nil {
				return err
			}
			_, err := q.ExecContext(ctx, `INSERT INTO schema_migrations (version) VALUES ($1)`, version)
			return err
		})
		if err != nil {
			logger.Fatalw("Failed to apply migration", "version", version, "error", err)
		}

		logger.Infow("Applied migration", "version", version)
		applied++
	}

	fmt.Printf("Migration process completed, %d applied\n", applied)
}
