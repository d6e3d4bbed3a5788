// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package main is the entry point for the geotree server.
package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"

	"github.com/olegiv/geotree/internal/cache"
	"github.com/olegiv/geotree/internal/config"
	"github.com/olegiv/geotree/internal/handler"
	"github.com/olegiv/geotree/internal/handler/api"
	"github.com/olegiv/geotree/internal/logging"
	"github.com/olegiv/geotree/internal/middleware"
	"github.com/olegiv/geotree/internal/scheduler"
	"github.com/olegiv/geotree/internal/service"
	"github.com/olegiv/geotree/internal/store"
	"github.com/olegiv/geotree/internal/version"
)

// Build-time variables injected via ldflags.
var (
	appVersion   = "dev"
	appGitCommit = "unknown"
	appBuildTime = "unknown"
)

func main() {
	showVersion := flag.Bool("version", false, "Show version information")
	flag.BoolVar(showVersion, "v", false, "Show version information (shorthand)")
	showHelp := flag.Bool("help", false, "Show help information")
	flag.BoolVar(showHelp, "h", false, "Show help information (shorthand)")
	dump := flag.Bool("dump", false, "Print the country forest as JSON and exit")

	flag.Usage = func() {
		_, _ = fmt.Fprintf(os.Stderr, "geotree - geography tree service\n\n")
		_, _ = fmt.Fprintf(os.Stderr, "Usage: %s [options]\n\n", os.Args[0])
		_, _ = fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		_, _ = fmt.Fprintf(os.Stderr, "\nEnvironment Variables:\n")
		_, _ = fmt.Fprintf(os.Stderr, "  GEOTREE_DB_DRIVER         sqlite|sqlite3|mysql (default: sqlite)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  GEOTREE_DB_DSN            Database path or DSN (default: ./data/geotree.db)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  GEOTREE_SERVER_PORT       Server port (default: 8080)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  GEOTREE_ROOT_ID           Parent id of top-level geographies (default: 0)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  GEOTREE_MAX_DEPTH         Maximum tree depth, 0 = unbounded (default: 64)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  GEOTREE_REDIS_URL         Redis URL for shared tree caching (optional)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  GEOTREE_REFRESH_SCHEDULE  Cron spec for cache refresh (default: @every 15m)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  GEOTREE_DO_SEED           Load the bundled geography master (default: false)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  GEOTREE_BUILD_TIMEOUT     Seconds a shared tree build may run (default: 30)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  GEOTREE_ADMIN_API_KEY     Bearer key for events, cache and job routes (optional)\n")
	}

	flag.Parse()

	if *showHelp {
		flag.Usage()
		os.Exit(0)
	}

	info := version.New(appVersion, appGitCommit, appBuildTime)
	if *showVersion {
		_, _ = fmt.Println(info.String())
		os.Exit(0)
	}

	if err := run(info, *dump); err != nil {
		slog.Error("application error", "error", err)
		os.Exit(1)
	}
}

func run(info version.Info, dump bool) error {
	// Load .env if present (development)
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logLevel := cfg.SlogLevel()
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})))

	if store.IsSQLite(cfg.DBDriver) {
		if err := os.MkdirAll(filepath.Dir(cfg.DBDSN), 0755); err != nil {
			return fmt.Errorf("creating data directory: %w", err)
		}
	}

	slog.Info("initializing database", "driver", cfg.DBDriver)
	db, err := store.NewDB(cfg.DBDriver, cfg.DBDSN)
	if err != nil {
		return fmt.Errorf("initializing database: %w", err)
	}
	defer func(db *sql.DB) {
		if err := db.Close(); err != nil {
			slog.Error("error closing database connection", "error", err)
		}
	}(db)

	slog.Info("running database migrations")
	if err := store.Migrate(db, cfg.DBDriver); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}

	// WARN and ERROR records are also written to the events table.
	textHandler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})
	logger := slog.New(logging.NewEventLogHandler(textHandler, db, cfg.DBDriver))
	slog.SetDefault(logger)
	slog.Info("event log integration enabled", "min_level", "warn")

	ctx := context.Background()
	if err := store.Seed(ctx, db, cfg.DBDriver, cfg.DoSeed); err != nil {
		return fmt.Errorf("seeding database: %w", err)
	}

	cacheTTL := time.Duration(cfg.CacheTTL) * time.Second
	cacher, cacheInfo, err := cache.NewCache(cache.Config{
		RedisURL:         cfg.RedisURL,
		Prefix:           cfg.CachePrefix,
		DefaultTTL:       cacheTTL,
		MaxSize:          cfg.CacheMaxSize,
		CleanupInterval:  time.Minute,
		FallbackToMemory: true,
	})
	if err != nil {
		return fmt.Errorf("initializing cache: %w", err)
	}
	defer func() { _ = cacher.Close() }()
	slog.Info("cache initialized", "backend", cacheInfo.Backend, "fallback", cacheInfo.IsFallback)

	trees := service.NewGeoTreeService(db, cacher, service.GeoTreeOptions{
		Driver:       cfg.DBDriver,
		Root:         cfg.RootID,
		MaxDepth:     cfg.MaxDepth,
		CacheTTL:     cacheTTL,
		BuildTimeout: cfg.BuildTimeoutDuration(),
		Logger:       logger,
	})
	events := service.NewEventService(db, cfg.DBDriver)

	if dump {
		return dumpForest(ctx, trees)
	}

	if err := trees.Warm(ctx); err != nil {
		// Requests rebuild on demand.
		slog.Warn("failed to warm tree cache", "error", err)
	}

	sched := scheduler.New(trees, events, scheduler.Options{
		RefreshSchedule: cfg.RefreshSchedule,
		EventRetention:  cfg.EventRetention(),
	}, logger)
	if err := sched.Start(); err != nil {
		return fmt.Errorf("starting scheduler: %w", err)
	}
	defer sched.Stop()

	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Logger)
	r.Use(chimw.Recoverer)
	r.Use(chimw.Compress(5))
	r.Use(chimw.GetHead)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(middleware.StripTrailingSlash)
	r.Use(middleware.SecurityHeaders(middleware.DefaultSecurityHeadersConfig(cfg.IsDevelopment())))
	r.Use(middleware.CORS(cfg.CORSOrigins))
	slog.Info("security headers middleware initialized", "hsts", !cfg.IsDevelopment())

	healthHandler := handler.NewHealthHandler(db, cacher, cacheInfo, info.Version)
	r.Get("/health", healthHandler.Health)
	r.Get("/health/live", healthHandler.Liveness)
	r.Get("/health/ready", healthHandler.Readiness)

	apiHandler := api.NewHandler(trees, events, sched, logger)
	if !cfg.AdminEnabled() {
		slog.Warn("GEOTREE_ADMIN_API_KEY not set; admin API routes reject every request")
	}
	rateLimiter := middleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)
	slog.Info("api rate limiter initialized", "rps", cfg.RateLimitRPS, "burst", cfg.RateLimitBurst)

	r.With(rateLimiter.Middleware()).Get("/async/getNodesAsJson", apiHandler.GetNodesAsJSON)
	r.With(rateLimiter.Middleware()).Mount("/api/v1", apiHandler.Routes(middleware.AdminKeyAuth(cfg.AdminAPIKey)))
	slog.Info("REST API v1 mounted at /api/v1")

	srv := &http.Server{
		Addr:              cfg.ServerAddr(),
		Handler:           r,
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	serverErr := make(chan error, 1)
	go func() {
		slog.Info("starting server", "addr", cfg.ServerAddr(), "env", cfg.Env, "version", info.Version)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-serverErr:
		return fmt.Errorf("server: %w", err)
	}

	slog.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	slog.Info("server stopped")
	return nil
}

// dumpForest writes the country forest to stdout and the build time to stderr.
func dumpForest(ctx context.Context, trees *service.GeoTreeService) error {
	start := time.Now()
	forest, err := trees.CountryForest(ctx)
	if err != nil {
		return fmt.Errorf("building country forest: %w", err)
	}
	elapsed := time.Since(start)

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(forest); err != nil {
		return fmt.Errorf("encoding forest: %w", err)
	}
	_, _ = fmt.Fprintf(os.Stderr, "built in %s\n", elapsed)
	return nil
}
