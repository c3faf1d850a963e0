package main

import (
	"fmt"
	"log/slog"

	"github.com/phrazzld/inkwell/internal/config"
)

// loadAppConfig loads the application configuration from environment variables or config file.
func loadAppConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	slog.Info("server configuration loaded",
		slog.Int("port", cfg.Server.Port),
		slog.String("log_level", cfg.Server.LogLevel),
		slog.String("queue_backend", cfg.Queue.Backend),
		slog.String("events_backend", cfg.Events.Backend),
		slog.String("default_provider", cfg.LLM.DefaultProvider))

	return cfg, nil
}
