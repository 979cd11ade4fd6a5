// Package config loads relay settings from the environment.
package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Storage backends
const (
	StorageTypeMemory = "memory"
	StorageTypeRedis  = "redis"
	StorageTypeSQLite = "sqlite"
)

// Config holds everything cmd/server reads from the environment
type Config struct {
	Host string `env:"RELAY_HOST"`
	Port int    `env:"RELAY_PORT" envDefault:"8080"`

	StorageType string `env:"STORAGE_TYPE" envDefault:"memory"`
	RedisURL    string `env:"REDIS_URL"`
	SQLitePath  string `env:"SQLITE_PATH" envDefault:"echorelay.db"`

	// APIKeyHash is a bcrypt hash; empty leaves the admin API open
	APIKeyHash string `env:"RELAY_API_KEY_HASH"`

	HandshakeTimeout time.Duration `env:"SESSION_HANDSHAKE_TIMEOUT" envDefault:"10s"`
	PushTimeout      time.Duration `env:"PEER_PUSH_TIMEOUT" envDefault:"5s"`
	PushConcurrency  int           `env:"PEER_PUSH_CONCURRENCY" envDefault:"16"`

	RateLimit float64 `env:"API_RATE_LIMIT" envDefault:"0"`
	RateBurst int     `env:"API_RATE_BURST" envDefault:"20"`

	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
}

// Load parses the environment and validates the result
func Load() (Config, error) {
	return parse(env.Options{})
}

// LoadFrom parses the given variables instead of the process environment
func LoadFrom(vars map[string]string) (Config, error) {
	return parse(env.Options{Environment: vars})
}

func parse(opts env.Options) (Config, error) {
	cfg, err := env.ParseAsWithOptions[Config](opts)
	if err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks cross-field constraints
func (c Config) Validate() error {
	switch c.StorageType {
	case StorageTypeMemory, StorageTypeSQLite:
	case StorageTypeRedis:
		if c.RedisURL == "" {
			return fmt.Errorf("REDIS_URL required when STORAGE_TYPE=%s", StorageTypeRedis)
		}
	default:
		return fmt.Errorf("invalid STORAGE_TYPE %q: must be memory, redis or sqlite", c.StorageType)
	}
	if c.StorageType == StorageTypeSQLite && c.SQLitePath == "" {
		return fmt.Errorf("SQLITE_PATH required when STORAGE_TYPE=%s", StorageTypeSQLite)
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid RELAY_PORT %d", c.Port)
	}
	if c.HandshakeTimeout <= 0 {
		return fmt.Errorf("SESSION_HANDSHAKE_TIMEOUT must be positive")
	}
	if c.PushTimeout <= 0 {
		return fmt.Errorf("PEER_PUSH_TIMEOUT must be positive")
	}
	if c.PushConcurrency <= 0 {
		return fmt.Errorf("PEER_PUSH_CONCURRENCY must be positive")
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		return err
	}
	return nil
}

// ParseLevel maps LOG_LEVEL to a slog level
func ParseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return slog.LevelInfo, fmt.Errorf("invalid LOG_LEVEL %q", s)
	}
	return level, nil
}
