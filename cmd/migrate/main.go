// migrate applies or rolls back the embedded SQL migrations: go run ./cmd/migrate -direction up.
package main

import (
	"context"
	"flag"
	"os"

	"task-tracker/backend/internal/config"
	"task-tracker/backend/internal/db/migrate"
	"task-tracker/backend/internal/logging"
)

func main() {
	direction := flag.String("direction", migrate.DirectionUp, "Migration direction: up or down")
	flag.Parse()

	ctx := context.Background()
	logger := logging.New(os.Stderr, "info", false)

	cfg, err := config.Load()
	if err != nil {
		logger.Error(ctx, "config", "error", err)
		os.Exit(1)
	}
	logger = logging.New(os.Stderr, cfg.LogLevel, cfg.IsProduction())
	if cfg.DatabaseURL == "" {
		logger.Error(ctx, "DATABASE_URL is not set; create a .env from .env.example or set DATABASE_URL")
		os.Exit(1)
	}

	if err := migrate.Run(cfg.DatabaseURL, *direction); err != nil {
		logger.Error(ctx, "migrate", "direction", *direction, "error", err)
		os.Exit(1)
	}
	version, dirty, err := migrate.Version(cfg.DatabaseURL)
	if err != nil {
		logger.Warn(ctx, "read schema version", "error", err)
		return
	}
	logger.Info(ctx, "migrations applied", "direction", *direction, "version", version, "dirty", dirty)
}
