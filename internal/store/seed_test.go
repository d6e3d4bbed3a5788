// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/olegiv/geotree/internal/tree"
)

func TestParseSeed_Bundled(t *testing.T) {
	f, err := ParseSeed(bundledGeography)
	require.NoError(t, err)

	require.Len(t, f.Countries, 3)
	assert.Equal(t, "Japan", f.Countries[0].Name)
	assert.Equal(t, "Overseas", f.Countries[1].Name)
	assert.Empty(t, f.Countries[2].Geographies)

	first := f.Countries[0].Geographies[0]
	assert.Equal(t, SeedGeography{ID: 10, Parent: 0, Name: "Hokkaido"}, first)
}

func TestParseSeed_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"malformed", "countries: [\n"},
		{"no countries", "countries: []\n"},
		{"missing country name", "countries:\n  - id: 1\n"},
		{"missing geography title", "countries:\n  - id: 1\n    name: A\n    geographies:\n      - {id: 5, parent: 0}\n"},
		{"self parent", "countries:\n  - id: 1\n    name: A\n    geographies:\n      - {id: 5, parent: 5, name: Loop}\n"},
		{"duplicate country", "countries:\n  - {id: 1, name: A}\n  - {id: 1, name: B}\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseSeed([]byte(tt.yaml))
			assert.Error(t, err)
		})
	}
}

func TestParseSeed_DuplicateGeographyAcrossCountries(t *testing.T) {
	data := `
countries:
  - id: 1
    name: A
    geographies:
      - {id: 7, parent: 0, name: X}
  - id: 2
    name: B
    geographies:
      - {id: 7, parent: 0, name: Y}
`
	_, err := ParseSeed([]byte(data))
	require.Error(t, err)
	assert.ErrorIs(t, err, tree.ErrDuplicateID)
}

func TestSeed_Disabled(t *testing.T) {
	db, cleanup := testDB(t)
	defer cleanup()

	ctx := context.Background()
	require.NoError(t, Seed(ctx, db, DriverSQLite, false))

	count, err := New(db).CountGeographies(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestSeed_LoadsOnceIntoEmptyDatabase(t *testing.T) {
	db, cleanup := testDB(t)
	defer cleanup()

	ctx := context.Background()
	q := New(db)

	require.NoError(t, Seed(ctx, db, DriverSQLite, true))

	countries, err := q.ListCountries(ctx)
	require.NoError(t, err)
	require.Len(t, countries, 3)
	assert.Equal(t, int64(1), countries[0].ID)

	japan, err := q.ListGeographiesByCountry(ctx, 1)
	require.NoError(t, err)
	require.Len(t, japan, 8)
	assert.Equal(t, "Hokkaido", japan[0].Name)
	assert.Equal(t, int64(0), japan[0].Position)

	// Renaming a row and seeding again must not overwrite it.
	require.NoError(t, q.UpsertGeography(ctx, UpsertGeographyParams{
		ID: 10, CountryID: 1, ParentID: 0, Name: "Hokkaido Prefecture",
	}))
	require.NoError(t, Seed(ctx, db, DriverSQLite, true))

	all, err := q.ListGeographies(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 12)
	for _, g := range all {
		if g.ID == 10 {
			assert.Equal(t, "Hokkaido Prefecture", g.Name)
		}
	}
}

func TestImport_Upserts(t *testing.T) {
	db, cleanup := testDB(t)
	defer cleanup()

	ctx := context.Background()
	f := &SeedFile{Countries: []SeedCountry{
		{ID: 1, Name: "Japan", Geographies: []SeedGeography{
			{ID: 10, Parent: 0, Name: "Hokkaido"},
		}},
	}}
	require.NoError(t, Import(ctx, db, DriverSQLite, f))

	f.Countries[0].Geographies[0].Name = "Hokkaido-do"
	f.Countries[0].Geographies = append(f.Countries[0].Geographies, SeedGeography{ID: 20, Name: "Tohoku"})
	require.NoError(t, Import(ctx, db, DriverSQLite, f))

	rows, err := New(db).ListGeographiesByCountry(ctx, 1)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "Hokkaido-do", rows[0].Name)
	assert.Equal(t, int64(1), rows[1].Position)
}

func TestImport_ClosedDatabase(t *testing.T) {
	db, cleanup := testDB(t)
	defer cleanup()

	require.NoError(t, db.Close())

	f := &SeedFile{Countries: []SeedCountry{{ID: 2, Name: "Overseas"}}}
	assert.Error(t, Import(context.Background(), db, DriverSQLite, f))
}
