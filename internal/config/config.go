package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

const (
	BackendSQLite = "sqlite"
	BackendRedis  = "redis"
)

type Config struct {
	Port            string        `env:"PORT"             envDefault:"8080"`
	Environment     string        `env:"ENVIRONMENT"      envDefault:"development"`
	LogLevelName    string        `env:"LOG_LEVEL"        envDefault:"info"`
	StorageBackend  string        `env:"STORAGE_BACKEND"  envDefault:"sqlite"`
	RedisURL        string        `env:"REDIS_URL"`
	SQLitePath      string        `env:"SQLITE_PATH"      envDefault:"./data/branch-engine.db"`
	DataDir         string        `env:"DATA_DIR"         envDefault:"./data"`
	GameStateTTL    time.Duration `env:"GAMESTATE_TTL"    envDefault:"24h"`
	StoryID         string        `env:"STORY_ID"         envDefault:"san_gubat"`
	TypewriterDelay time.Duration `env:"TYPEWRITER_DELAY" envDefault:"20ms"`

	LogLevel slog.Level
}

// Load reads configuration from the environment. A .env file in the working
// directory is applied first when present; real environment variables win.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	return Parse()
}

// Parse reads configuration from the environment only.
func Parse() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	cfg.LogLevel = parseLogLevel(cfg.LogLevelName)
	cfg.StorageBackend = strings.ToLower(strings.TrimSpace(cfg.StorageBackend))

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	switch c.StorageBackend {
	case BackendSQLite:
		if strings.TrimSpace(c.SQLitePath) == "" {
			return errors.New("SQLITE_PATH is required for the sqlite backend")
		}
	case BackendRedis:
		if strings.TrimSpace(c.RedisURL) == "" {
			return errors.New("REDIS_URL is required for the redis backend")
		}
	default:
		return fmt.Errorf("unknown STORAGE_BACKEND %q (want %s or %s)", c.StorageBackend, BackendSQLite, BackendRedis)
	}
	if c.GameStateTTL <= 0 {
		return fmt.Errorf("GAMESTATE_TTL must be positive, got %s", c.GameStateTTL)
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
