package logger

import (
	"log/slog"
	"os"

	"github.com/jwebster45206/questkeeper/internal/config"
)

// Setup configures the global slog logger based on environment
func Setup(cfg *config.Config) *slog.Logger {
	var handler slog.Handler

	opts := &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}

	if cfg.Environment == "production" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	logger := slog.New(handler).With("world_id", cfg.WorldID)
	slog.SetDefault(logger)
	return logger
}

// WithPlayer adds the player id to logger context
func WithPlayer(logger *slog.Logger, playerID string) *slog.Logger {
	return logger.With("player_id", playerID)
}
