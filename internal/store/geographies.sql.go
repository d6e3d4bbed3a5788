// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package store

import (
	"context"
)

const listCountries = `-- name: ListCountries :many
SELECT id, name, position FROM countries
ORDER BY position, id
`

func (q *Queries) ListCountries(ctx context.Context) ([]Country, error) {
	rows, err := q.db.QueryContext(ctx, listCountries)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []Country{}
	for rows.Next() {
		var i Country
		if err := rows.Scan(&i.ID, &i.Name, &i.Position); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const getCountryByID = `-- name: GetCountryByID :one
SELECT id, name, position FROM countries
WHERE id = ?
`

func (q *Queries) GetCountryByID(ctx context.Context, id int64) (Country, error) {
	row := q.db.QueryRowContext(ctx, getCountryByID, id)
	var i Country
	err := row.Scan(&i.ID, &i.Name, &i.Position)
	return i, err
}

const countCountries = `-- name: CountCountries :one
SELECT COUNT(*) FROM countries
`

func (q *Queries) CountCountries(ctx context.Context) (int64, error) {
	row := q.db.QueryRowContext(ctx, countCountries)
	var count int64
	err := row.Scan(&count)
	return count, err
}

const upsertCountrySQLite = `-- name: UpsertCountry :exec
INSERT INTO countries (id, name, position) VALUES (?, ?, ?)
ON CONFLICT(id) DO UPDATE SET name = excluded.name, position = excluded.position
`

const upsertCountryMySQL = `-- name: UpsertCountry :exec
INSERT INTO countries (id, name, position) VALUES (?, ?, ?)
ON DUPLICATE KEY UPDATE name = VALUES(name), position = VALUES(position)
`

type UpsertCountryParams struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	Position int64  `json:"position"`
}

func (q *Queries) UpsertCountry(ctx context.Context, arg UpsertCountryParams) error {
	query := upsertCountrySQLite
	if q.isMySQL() {
		query = upsertCountryMySQL
	}
	_, err := q.db.ExecContext(ctx, query, arg.ID, arg.Name, arg.Position)
	return err
}

const listGeographies = `-- name: ListGeographies :many
SELECT id, country_id, parent_id, name, icon, position FROM geographies
ORDER BY country_id, position, id
`

func (q *Queries) ListGeographies(ctx context.Context) ([]Geography, error) {
	rows, err := q.db.QueryContext(ctx, listGeographies)
	if err != nil {
		return nil, err
	}
	return scanGeographies(rows)
}

const listGeographiesByCountry = `-- name: ListGeographiesByCountry :many
SELECT id, country_id, parent_id, name, icon, position FROM geographies
WHERE country_id = ?
ORDER BY position, id
`

func (q *Queries) ListGeographiesByCountry(ctx context.Context, countryID int64) ([]Geography, error) {
	rows, err := q.db.QueryContext(ctx, listGeographiesByCountry, countryID)
	if err != nil {
		return nil, err
	}
	return scanGeographies(rows)
}

const countGeographies = `-- name: CountGeographies :one
SELECT COUNT(*) FROM geographies
`

func (q *Queries) CountGeographies(ctx context.Context) (int64, error) {
	row := q.db.QueryRowContext(ctx, countGeographies)
	var count int64
	err := row.Scan(&count)
	return count, err
}

const upsertGeographySQLite = `-- name: UpsertGeography :exec
INSERT INTO geographies (id, country_id, parent_id, name, icon, position) VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
    country_id = excluded.country_id,
    parent_id = excluded.parent_id,
    name = excluded.name,
    icon = excluded.icon,
    position = excluded.position
`

const upsertGeographyMySQL = `-- name: UpsertGeography :exec
INSERT INTO geographies (id, country_id, parent_id, name, icon, position) VALUES (?, ?, ?, ?, ?, ?)
ON DUPLICATE KEY UPDATE
    country_id = VALUES(country_id),
    parent_id = VALUES(parent_id),
    name = VALUES(name),
    icon = VALUES(icon),
    position = VALUES(position)
`

type UpsertGeographyParams struct {
	ID        int64  `json:"id"`
	CountryID int64  `json:"country_id"`
	ParentID  int64  `json:"parent_id"`
	Name      string `json:"name"`
	Icon      bool   `json:"icon"`
	Position  int64  `json:"position"`
}

func (q *Queries) UpsertGeography(ctx context.Context, arg UpsertGeographyParams) error {
	query := upsertGeographySQLite
	if q.isMySQL() {
		query = upsertGeographyMySQL
	}
	_, err := q.db.ExecContext(ctx, query,
		arg.ID,
		arg.CountryID,
		arg.ParentID,
		arg.Name,
		arg.Icon,
		arg.Position,
	)
	return err
}

const deleteGeography = `-- name: DeleteGeography :exec
DELETE FROM geographies WHERE id = ?
`

func (q *Queries) DeleteGeography(ctx context.Context, id int64) error {
	_, err := q.db.ExecContext(ctx, deleteGeography, id)
	return err
}

type rowsScanner interface {
	Next() bool
	Scan(dest ...interface{}) error
	Close() error
	Err() error
}

func scanGeographies(rows rowsScanner) ([]Geography, error) {
	defer rows.Close()
	items := []Geography{}
	for rows.Next() {
		var i Geography
		if err := rows.Scan(
			&i.ID,
			&i.CountryID,
			&i.ParentID,
			&i.Name,
			&i.Icon,
			&i.Position,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}
