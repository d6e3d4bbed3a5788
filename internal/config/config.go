// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package config loads geotree settings from the environment.
package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Supported database drivers.
const (
	DriverSQLite  = "sqlite"  // modernc.org/sqlite, pure Go
	DriverSQLite3 = "sqlite3" // mattn/go-sqlite3, cgo
	DriverMySQL   = "mysql"
)

// Config holds the application configuration loaded from environment variables.
type Config struct {
	DBDriver   string `env:"GEOTREE_DB_DRIVER" envDefault:"sqlite"`
	DBDSN      string `env:"GEOTREE_DB_DSN" envDefault:"./data/geotree.db"`
	ServerHost string `env:"GEOTREE_SERVER_HOST" envDefault:"localhost"`
	ServerPort int    `env:"GEOTREE_SERVER_PORT" envDefault:"8080"`
	Env        string `env:"GEOTREE_ENV" envDefault:"development"`
	LogLevel   string `env:"GEOTREE_LOG_LEVEL" envDefault:"info"`

	// Tree building
	RootID   int64 `env:"GEOTREE_ROOT_ID" envDefault:"0"`    // Parent id of top-level geographies
	MaxDepth int   `env:"GEOTREE_MAX_DEPTH" envDefault:"64"` // 0 disables the depth guard

	// Upper bound in seconds for a cached build shared by concurrent requests.
	BuildTimeout int `env:"GEOTREE_BUILD_TIMEOUT" envDefault:"30"`

	// Cache configuration
	RedisURL     string `env:"GEOTREE_REDIS_URL"`                         // Optional Redis URL for shared caching
	CachePrefix  string `env:"GEOTREE_CACHE_PREFIX" envDefault:"geotree:"` // Redis key prefix
	CacheTTL     int    `env:"GEOTREE_CACHE_TTL" envDefault:"3600"`       // Tree cache TTL in seconds
	CacheMaxSize int    `env:"GEOTREE_CACHE_MAX_SIZE" envDefault:"1000"`  // Max memory cache entries

	// Cron spec for rebuilding cached trees; empty disables the job.
	RefreshSchedule string `env:"GEOTREE_REFRESH_SCHEDULE" envDefault:"@every 15m"`

	// Events older than this many days are pruned daily. Zero keeps everything.
	EventRetentionDays int `env:"GEOTREE_EVENT_RETENTION_DAYS" envDefault:"30"`

	// HTTP surface
	CORSOrigins    []string `env:"GEOTREE_CORS_ORIGINS" envSeparator:","`
	RateLimitRPS   float64  `env:"GEOTREE_RATE_LIMIT_RPS" envDefault:"20"`
	RateLimitBurst int      `env:"GEOTREE_RATE_LIMIT_BURST" envDefault:"40"`

	// Bearer key for /api/v1/events, /cache and /jobs. Empty disables those routes.
	AdminAPIKey string `env:"GEOTREE_ADMIN_API_KEY"`

	// Seeding configuration
	DoSeed bool `env:"GEOTREE_DO_SEED" envDefault:"false"` // Load the bundled geography master
}

// IsDevelopment returns true if the application is running in development mode.
func (c Config) IsDevelopment() bool {
	return c.Env == "development"
}

// ServerAddr returns the full server address in host:port format.
func (c Config) ServerAddr() string {
	return fmt.Sprintf("%s:%d", c.ServerHost, c.ServerPort)
}

// UseRedisCache returns true if Redis caching is configured.
func (c Config) UseRedisCache() bool {
	return c.RedisURL != ""
}

// AdminEnabled returns true if an admin API key is configured.
func (c Config) AdminEnabled() bool {
	return c.AdminAPIKey != ""
}

// BuildTimeoutDuration returns BuildTimeout as a time.Duration.
func (c Config) BuildTimeoutDuration() time.Duration {
	return time.Duration(c.BuildTimeout) * time.Second
}

// RefreshEnabled returns true if the cache refresh job should be scheduled.
func (c Config) RefreshEnabled() bool {
	return strings.TrimSpace(c.RefreshSchedule) != ""
}

// EventRetention returns how long events are kept, or zero to keep them forever.
func (c Config) EventRetention() time.Duration {
	return time.Duration(c.EventRetentionDays) * 24 * time.Hour
}

// SlogLevel maps LogLevel to a slog level. Unknown values fall back to info.
func (c Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Validate checks value ranges that env parsing alone cannot enforce.
func (c Config) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.DBDriver, validation.Required, validation.In(DriverSQLite, DriverSQLite3, DriverMySQL)),
		validation.Field(&c.DBDSN, validation.Required),
		validation.Field(&c.ServerPort, validation.Required, validation.Min(1), validation.Max(65535)),
		validation.Field(&c.Env, validation.In("development", "production", "test")),
		validation.Field(&c.MaxDepth, validation.Min(0)),
		validation.Field(&c.BuildTimeout, validation.Required, validation.Min(1)),
		validation.Field(&c.AdminAPIKey, validation.When(c.AdminAPIKey != "", validation.Length(16, 0))),
		validation.Field(&c.CacheTTL, validation.Min(0)),
		validation.Field(&c.CacheMaxSize, validation.Min(0)),
		validation.Field(&c.RateLimitRPS, validation.Min(0.0)),
		validation.Field(&c.RateLimitBurst, validation.Min(0)),
		validation.Field(&c.EventRetentionDays, validation.Min(0)),
	)
}

// Load parses environment variables and returns a Config struct.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	if cfg.MaxDepth == 0 {
		slog.Warn("GEOTREE_MAX_DEPTH is 0; tree depth is unbounded")
	}

	return cfg, nil
}
