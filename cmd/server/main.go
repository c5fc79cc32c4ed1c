// Tokensight - behavioral analytics for token transfer activity
package main

import (
	"context"
	"os"

	"github.com/halldis/tokensight/internal/config"
	"github.com/halldis/tokensight/internal/logging"
	"github.com/halldis/tokensight/internal/server"
)

// Build info - set by ldflags
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

func main() {
	logger := logging.New("info", "text")

	logger.Info("starting tokensight",
		"version", Version,
		"commit", Commit,
		"build_time", BuildTime,
	)

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	storage := "memory"
	if cfg.DatabaseURL != "" {
		storage = "postgres"
	}
	logger.Info("configuration loaded", "env", cfg.Env, "storage", storage)

	srv, err := server.New(cfg, server.WithLogger(logging.New(cfg.LogLevel, cfg.LogFormat)))
	if err != nil {
		logger.Error("failed to create server", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()
	if err := srv.Run(ctx); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
}
