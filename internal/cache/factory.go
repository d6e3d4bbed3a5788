// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package cache

import (
	"log/slog"
	"net/url"
	"time"
)

// Backend names reported by Info.
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
)

// Config holds configuration for cache creation.
type Config struct {
	// RedisURL selects the Redis backend when set.
	RedisURL string

	// Prefix is the key prefix for Redis.
	Prefix string

	DefaultTTL      time.Duration
	MaxSize         int // memory backend only; 0 = unlimited
	CleanupInterval time.Duration

	// FallbackToMemory uses the memory backend when Redis is unreachable
	// instead of failing.
	FallbackToMemory bool
}

// Info describes the backend NewCache picked.
type Info struct {
	Backend    string `json:"backend"`
	IsFallback bool   `json:"is_fallback"`
}

// NewCache creates a Redis cache when RedisURL is set and a memory cache otherwise.
func NewCache(cfg Config) (Cacher, Info, error) {
	if cfg.RedisURL != "" {
		rc, err := NewRedisCacheFromURL(cfg.RedisURL, cfg.Prefix, cfg.DefaultTTL)
		if err == nil {
			return rc, Info{Backend: BackendRedis}, nil
		}
		if !cfg.FallbackToMemory {
			return nil, Info{}, err
		}
		slog.Warn("redis unavailable, falling back to memory cache",
			"category", "cache",
			"url", SanitizeRedisURL(cfg.RedisURL),
			"error", err,
		)
		return newMemoryFromConfig(cfg), Info{Backend: BackendMemory, IsFallback: true}, nil
	}

	return newMemoryFromConfig(cfg), Info{Backend: BackendMemory}, nil
}

func newMemoryFromConfig(cfg Config) *MemoryCache {
	return NewMemoryCache(MemoryCacheOptions{
		DefaultTTL:      cfg.DefaultTTL,
		MaxSize:         cfg.MaxSize,
		CleanupInterval: cfg.CleanupInterval,
	})
}

// SanitizeRedisURL masks the password of a Redis URL for logging.
func SanitizeRedisURL(raw string) string {
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "[invalid URL]"
	}
	if u.User != nil {
		if _, hasPassword := u.User.Password(); hasPassword {
			u.User = url.UserPassword(u.User.Username(), "***")
		}
	}
	return u.String()
}
