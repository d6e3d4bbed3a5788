// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package testutil provides shared test helpers for the geotree project.
package testutil

import (
	"context"
	"database/sql"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/olegiv/geotree/internal/store"
)

// TestLogger creates a quiet test logger that only outputs warnings and errors.
func TestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelWarn,
	}))
}

// TestLoggerSilent creates a test logger that only outputs errors.
func TestLoggerSilent() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelError,
	}))
}

// TestDB creates a temporary SQLite database with migrations applied.
// Returns the database and a cleanup function that should be deferred.
func TestDB(t *testing.T) (*sql.DB, func()) {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "geotree-test.db")

	db, err := store.NewDB(store.DriverSQLite, dbPath)
	if err != nil {
		t.Fatalf("NewDB: %v", err)
	}

	if err := store.Migrate(db, store.DriverSQLite); err != nil {
		_ = db.Close()
		t.Fatalf("Migrate: %v", err)
	}

	return db, func() {
		_ = db.Close()
		_ = os.Remove(dbPath)
	}
}

// SeededDB is TestDB with the bundled geography master loaded.
func SeededDB(t *testing.T) (*sql.DB, func()) {
	t.Helper()

	db, cleanup := TestDB(t)
	if err := store.Seed(context.Background(), db, store.DriverSQLite, true); err != nil {
		cleanup()
		t.Fatalf("Seed: %v", err)
	}
	return db, cleanup
}

// ImportCountry stores one country and its flat geography rows.
func ImportCountry(t *testing.T, db *sql.DB, id int64, name string, rows ...store.SeedGeography) {
	t.Helper()

	f := &store.SeedFile{Countries: []store.SeedCountry{{ID: id, Name: name, Geographies: rows}}}
	if err := store.Import(context.Background(), db, store.DriverSQLite, f); err != nil {
		t.Fatalf("Import: %v", err)
	}
}
