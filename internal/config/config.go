package config

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "postgres"
)

type Config struct {
	DBDriver       string
	DatabaseURL    string
	ServerAddr     string
	LogLevel       slog.Level
	LogFormat      string
	MigrationsPath string
}

// Load reads the configuration from the environment. A .env file is picked
// up when present.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Debug("No .env file found, using environment variables")
	}

	cfg := &Config{
		DBDriver:       getEnv("DB_DRIVER", DriverSQLite),
		DatabaseURL:    getEnv("DATABASE_URL", "bracket_engine.db?_journal_mode=WAL"),
		ServerAddr:     getEnv("SERVER_ADDR", ":8080"),
		LogFormat:      strings.ToLower(getEnv("LOG_FORMAT", "text")),
		MigrationsPath: getEnv("MIGRATIONS_PATH", "migrations"),
	}

	switch cfg.DBDriver {
	case DriverSQLite, DriverPostgres:
	default:
		return nil, fmt.Errorf("unsupported DB_DRIVER %q", cfg.DBDriver)
	}

	if err := cfg.LogLevel.UnmarshalText([]byte(getEnv("LOG_LEVEL", "info"))); err != nil {
		return nil, fmt.Errorf("invalid LOG_LEVEL: %w", err)
	}

	if cfg.LogFormat != "text" && cfg.LogFormat != "json" {
		return nil, fmt.Errorf("LOG_FORMAT must be text or json, got %q", cfg.LogFormat)
	}

	return cfg, nil
}

func (c *Config) NewLogger(w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: c.LogLevel}
	if c.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
