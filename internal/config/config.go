package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Storage backends.
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
	BackendSQLite = "sqlite"
)

type Config struct {
	Port             string        `env:"PORT"              envDefault:"8080"`
	Environment      string        `env:"ENVIRONMENT"       envDefault:"development"`
	RawLogLevel      string        `env:"LOG_LEVEL"         envDefault:"info"`
	RedisURL         string        `env:"REDIS_URL"         envDefault:"redis://localhost:6379"`
	StorageBackend   string        `env:"STORAGE_BACKEND"   envDefault:"redis"`
	SQLitePath       string        `env:"SQLITE_PATH"       envDefault:"data/saves.db"`
	ContentDir       string        `env:"CONTENT_DIR"       envDefault:"data/content"`
	WorldID          string        `env:"WORLD_ID"          envDefault:"default"`
	InventorySlots   int           `env:"INVENTORY_SLOTS"   envDefault:"24"`
	HotbarSlots      int           `env:"HOTBAR_SLOTS"      envDefault:"6"`
	GoldItemID       int           `env:"GOLD_ITEM_ID"      envDefault:"1"`
	SaveTTL          time.Duration `env:"SAVE_TTL"          envDefault:"0s"`
	AutosaveInterval time.Duration `env:"AUTOSAVE_INTERVAL" envDefault:"30s"`
	AutosaveWorkers  int           `env:"AUTOSAVE_WORKERS"  envDefault:"2"`
	StartMap         string        `env:"START_MAP"         envDefault:"village"`
	StartX           float64       `env:"START_X"           envDefault:"0"`
	StartY           float64       `env:"START_Y"           envDefault:"0"`

	LogLevel slog.Level `env:"-"`
}

// Load reads the configuration from the environment.
func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	cfg.LogLevel = parseLogLevel(cfg.RawLogLevel)
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.StorageBackend {
	case BackendMemory, BackendRedis, BackendSQLite:
	default:
		return fmt.Errorf("unknown STORAGE_BACKEND %q", c.StorageBackend)
	}
	if c.InventorySlots < 1 || c.HotbarSlots < 1 {
		return fmt.Errorf("INVENTORY_SLOTS and HOTBAR_SLOTS must be positive")
	}
	if c.AutosaveWorkers < 1 {
		return fmt.Errorf("AUTOSAVE_WORKERS must be positive")
	}
	return nil
}

func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
