// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package store

import (
	"context"
	"database/sql"
)

// DBTX is satisfied by *sql.DB, *sql.Conn and *sql.Tx.
type DBTX interface {
	ExecContext(context.Context, string, ...interface{}) (sql.Result, error)
	PrepareContext(context.Context, string) (*sql.Stmt, error)
	QueryContext(context.Context, string, ...interface{}) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...interface{}) *sql.Row
}

// Queries runs the geography and event queries against a DBTX.
type Queries struct {
	db     DBTX
	driver string
}

// New returns Queries for a SQLite database.
func New(db DBTX) *Queries {
	return &Queries{db: db, driver: DriverSQLite}
}

// NewForDriver returns Queries that use the SQL dialect of driver
// where the dialects differ.
func NewForDriver(db DBTX, driver string) *Queries {
	return &Queries{db: db, driver: driver}
}

// WithTx returns a copy of q bound to tx.
func (q *Queries) WithTx(tx *sql.Tx) *Queries {
	return &Queries{db: tx, driver: q.driver}
}

func (q *Queries) isMySQL() bool {
	return q.driver == DriverMySQL
}
