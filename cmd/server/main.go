// Package main is the entry point for the task-list server.
//
// The main package is kept minimal. Its job is to:
// 1. Read configuration (environment variables, see internal/config)
// 2. Create the logger
// 3. Start the application
//
// All actual logic lives in imported packages (internal/server, internal/service, etc.).
package main

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/sakif/tasklist/internal/auth"
	"github.com/sakif/tasklist/internal/config"
	"github.com/sakif/tasklist/internal/server"
)

func main() {
	// === 1. READ CONFIGURATION ===
	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// === 2. SET UP LOGGING ===
	// LOG_LEVEL picks the minimum level: debug, info, warn or error.
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}))
	slog.SetDefault(logger)

	if cfg.Password.Scheme == auth.SchemeSHA256 {
		logger.Warn("PASSWORD_SCHEME=sha256 stores unsalted digests; use it only to serve accounts from the legacy store")
	}

	// === 3. DATABASE DIRECTORY ===
	// os.MkdirAll creates all parent directories if needed (like `mkdir -p`).
	if cfg.Database.Driver == config.DriverSQLite && cfg.Database.Path != ":memory:" {
		dbDir := filepath.Dir(cfg.Database.Path)
		if err := os.MkdirAll(dbDir, 0o755); err != nil {
			logger.Error("failed to create database directory",
				slog.String("dir", dbDir),
				slog.String("error", err.Error()),
			)
			os.Exit(1)
		}
	}

	// === 4. CREATE AND START THE SERVER ===
	srv, err := server.New(context.Background(), cfg, logger)
	if err != nil {
		logger.Error("failed to create server", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Start() blocks until the server is shut down (via Ctrl+C or SIGTERM)
	if err := srv.Start(); err != nil {
		logger.Error("server error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
