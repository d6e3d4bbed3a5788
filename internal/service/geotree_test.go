// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package service

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/olegiv/geotree/internal/cache"
	"github.com/olegiv/geotree/internal/store"
	"github.com/olegiv/geotree/internal/testutil"
	"github.com/olegiv/geotree/internal/tree"
)

func newTestService(t *testing.T, db *sql.DB, cacher cache.Cacher, opts GeoTreeOptions) *GeoTreeService {
	t.Helper()
	opts.Driver = store.DriverSQLite
	if opts.Logger == nil {
		opts.Logger = testutil.TestLoggerSilent()
	}
	return NewGeoTreeService(db, cacher, opts)
}

func seededService(t *testing.T, cacher cache.Cacher) (*GeoTreeService, *sql.DB) {
	t.Helper()
	db, cleanup := testutil.SeededDB(t)
	t.Cleanup(cleanup)
	return newTestService(t, db, cacher, GeoTreeOptions{MaxDepth: 64}), db
}

func titles(nodes []tree.Node) []string {
	out := make([]string, len(nodes))
	for i, n := range nodes {
		out[i] = n.Title
	}
	return out
}

func TestGeoTreeService_Tree(t *testing.T) {
	svc, _ := seededService(t, nil)

	nodes, err := svc.Tree(context.Background(), tree.RootID)
	require.NoError(t, err)

	assert.Equal(t, []string{"Hokkaido", "Tohoku", "Kanto", "USA"}, titles(nodes))
	assert.Equal(t, 12, tree.Count(nodes))

	hokkaido := nodes[0]
	assert.Equal(t, int64(10), hokkaido.Key)
	assert.Equal(t, []string{"Sapporo-area", "Hakodate"}, titles(hokkaido.Children))
	assert.Equal(t, []string{"Sapporo", "Otaru"}, titles(hokkaido.Children[0].Children))
	assert.Nil(t, nodes[1].Children, "Tohoku is a leaf")
}

func TestGeoTreeService_Subtree(t *testing.T) {
	svc, _ := seededService(t, nil)

	nodes, err := svc.Tree(context.Background(), 2020)
	require.NoError(t, err)
	assert.Equal(t, []string{"Dallas", "San Antonio"}, titles(nodes))

	nodes, err = svc.Tree(context.Background(), 999999)
	require.NoError(t, err)
	assert.NotNil(t, nodes)
	assert.Empty(t, nodes)
}

func TestGeoTreeService_CountryForest(t *testing.T) {
	svc, _ := seededService(t, nil)

	forest, err := svc.CountryForest(context.Background())
	require.NoError(t, err)

	require.Len(t, forest, 3)
	assert.Equal(t, []string{"Japan", "Overseas", "Unassigned"}, titles(forest))
	assert.Equal(t, int64(1), forest[0].Key)
	assert.Equal(t, []string{"Hokkaido", "Tohoku", "Kanto"}, titles(forest[0].Children))
	assert.Equal(t, []string{"USA"}, titles(forest[1].Children))
	assert.Nil(t, forest[2].Children)

	data, err := json.Marshal(forest[2])
	require.NoError(t, err)
	assert.JSONEq(t, `{"key":3,"title":"Unassigned","icon":false}`, string(data))
	assert.NotContains(t, string(data), "children")
}

func TestGeoTreeService_CountryTree(t *testing.T) {
	svc, _ := seededService(t, nil)
	ctx := context.Background()

	nodes, err := svc.CountryTree(ctx, 2)
	require.NoError(t, err)
	require.Len(t, nodes, 1)
	assert.Equal(t, "USA", nodes[0].Title)
	assert.Equal(t, 4, tree.Count(nodes))

	nodes, err = svc.CountryTree(ctx, 3)
	require.NoError(t, err)
	assert.Empty(t, nodes)

	_, err = svc.CountryTree(ctx, 42)
	assert.ErrorIs(t, err, ErrCountryNotFound)
}

func TestGeoTreeService_NormalizesTitles(t *testing.T) {
	db, cleanup := testutil.TestDB(t)
	defer cleanup()

	// Decomposed input: "n" and "e" each followed by U+0301.
	testutil.ImportCountry(t, db, 1, "Fran\u0301ce ",
		store.SeedGeography{ID: 1, Parent: 0, Name: "  Cafe\u0301"},
	)
	svc := newTestService(t, db, nil, GeoTreeOptions{})

	forest, err := svc.CountryForest(context.Background())
	require.NoError(t, err)
	require.Len(t, forest, 1)
	assert.Equal(t, "Fra\u0144ce", forest[0].Title)
	assert.Equal(t, "Caf\u00e9", forest[0].Children[0].Title)
}

func TestGeoTreeService_ReportsUnreachable(t *testing.T) {
	db, cleanup := testutil.TestDB(t)
	defer cleanup()

	testutil.ImportCountry(t, db, 1, "Japan",
		store.SeedGeography{ID: 5, Parent: 0, Name: "Hokkaido"},
		store.SeedGeography{ID: 6, Parent: 7, Name: "Loop A"},
		store.SeedGeography{ID: 7, Parent: 6, Name: "Loop B"},
		store.SeedGeography{ID: 8, Parent: 404, Name: "Orphan"},
	)

	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelWarn}))
	svc := newTestService(t, db, nil, GeoTreeOptions{Logger: logger})

	nodes, err := svc.Tree(context.Background(), tree.RootID)
	require.NoError(t, err)
	assert.Equal(t, []string{"Hokkaido"}, titles(nodes))

	out := buf.String()
	assert.Contains(t, out, "unreachable geography records")
	assert.Contains(t, out, "count=3")
	assert.Contains(t, out, "ids=6,7,8")
	assert.Contains(t, out, "category=tree")
	assert.Contains(t, out, "build_id=")
}

func TestGeoTreeService_SubtreeDoesNotReportUnreachable(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelWarn}))

	db, cleanup := testutil.SeededDB(t)
	defer cleanup()
	svc := newTestService(t, db, nil, GeoTreeOptions{Logger: logger})

	_, err := svc.Tree(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, buf.String())
}

func TestGeoTreeService_MaxDepth(t *testing.T) {
	db, cleanup := testutil.SeededDB(t)
	defer cleanup()
	svc := newTestService(t, db, nil, GeoTreeOptions{MaxDepth: 2})

	_, err := svc.Tree(context.Background(), tree.RootID)
	assert.ErrorIs(t, err, tree.ErrMaxDepthExceeded)

	_, err = svc.CountryForest(context.Background())
	assert.ErrorIs(t, err, tree.ErrMaxDepthExceeded)
}

func TestGeoTreeService_CustomRoot(t *testing.T) {
	db, cleanup := testutil.TestDB(t)
	defer cleanup()

	testutil.ImportCountry(t, db, 1, "Japan",
		store.SeedGeography{ID: 10, Parent: -1, Name: "Hokkaido"},
		store.SeedGeography{ID: 20, Parent: 10, Name: "Sapporo"},
	)
	svc := newTestService(t, db, nil, GeoTreeOptions{Root: -1})
	assert.Equal(t, int64(-1), svc.Root())

	forest, err := svc.CountryForest(context.Background())
	require.NoError(t, err)
	require.Len(t, forest, 1)
	assert.Equal(t, []string{"Hokkaido"}, titles(forest[0].Children))
}

func TestGeoTreeService_CachesUntilInvalidated(t *testing.T) {
	mem := cache.NewSimpleMemoryCache(time.Hour)
	defer func() { _ = mem.Close() }()

	svc, db := seededService(t, mem)
	ctx := context.Background()

	first, err := svc.Tree(ctx, tree.RootID)
	require.NoError(t, err)
	require.Equal(t, "Hokkaido", first[0].Title)

	err = store.New(db).UpsertGeography(ctx, store.UpsertGeographyParams{
		ID: 10, CountryID: 1, ParentID: 0, Name: "Hokkaido Prefecture",
	})
	require.NoError(t, err)

	cached, err := svc.Tree(ctx, tree.RootID)
	require.NoError(t, err)
	assert.Equal(t, "Hokkaido", cached[0].Title, "second call should be served from cache")

	require.NoError(t, svc.Invalidate(ctx))

	fresh, err := svc.Tree(ctx, tree.RootID)
	require.NoError(t, err)
	assert.Equal(t, "Hokkaido Prefecture", fresh[0].Title)
}

func TestGeoTreeService_Refresh(t *testing.T) {
	mem := cache.NewSimpleMemoryCache(time.Hour)
	defer func() { _ = mem.Close() }()

	svc, _ := seededService(t, mem)
	ctx := context.Background()

	require.NoError(t, svc.Refresh(ctx))

	assert.True(t, mustHas(t, mem, rootKeyPrefix+"0"))
	assert.True(t, mustHas(t, mem, countriesKey))
	assert.False(t, mustHas(t, mem, countryKeyPrefix+"1"))

	_, err := svc.CountryTree(ctx, 1)
	require.NoError(t, err)
	assert.True(t, mustHas(t, mem, countryKeyPrefix+"1"))

	require.NoError(t, svc.Invalidate(ctx))
	assert.False(t, mustHas(t, mem, countryKeyPrefix+"1"))
	assert.False(t, mustHas(t, mem, countriesKey))
}

func TestGeoTreeService_NotFoundIsNotCached(t *testing.T) {
	mem := cache.NewSimpleMemoryCache(time.Hour)
	defer func() { _ = mem.Close() }()

	svc, _ := seededService(t, mem)

	_, err := svc.CountryTree(context.Background(), 42)
	require.ErrorIs(t, err, ErrCountryNotFound)
	assert.False(t, mustHas(t, mem, countryKeyPrefix+"42"))
}

func TestGeoTreeService_InvalidateWithoutCache(t *testing.T) {
	svc, _ := seededService(t, nil)
	assert.NoError(t, svc.Invalidate(context.Background()))
	assert.NoError(t, svc.Warm(context.Background()))
}

func TestUnreachableIDs(t *testing.T) {
	records := make([]tree.Record, maxLoggedIDs+5)
	for i := range records {
		records[i] = tree.Record{ID: int64(i + 1)}
	}

	got := unreachableIDs(records[:3])
	assert.Equal(t, "1,2,3", got)

	got = unreachableIDs(records)
	assert.True(t, len(got) > 0 && got[len(got)-4:] == ",...", "got %q", got)
}

func mustHas(t *testing.T, c cache.Cacher, key string) bool {
	t.Helper()
	ok, err := c.Has(context.Background(), key)
	require.NoError(t, err)
	return ok
}
