// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package service provides the business logic between the geography store
// and the HTTP layer: tree building, caching and event listing.
package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/text/unicode/norm"

	"github.com/olegiv/geotree/internal/cache"
	"github.com/olegiv/geotree/internal/logging"
	"github.com/olegiv/geotree/internal/store"
	"github.com/olegiv/geotree/internal/tree"
)

// ErrCountryNotFound is returned when a country id has no row.
var ErrCountryNotFound = errors.New("country not found")

// Cache keys. Every key shares treeKeyPrefix so Invalidate can drop them at once.
const (
	treeKeyPrefix    = "tree:"
	countriesKey     = treeKeyPrefix + "countries"
	rootKeyPrefix    = treeKeyPrefix + "root:"
	countryKeyPrefix = treeKeyPrefix + "country:"
)

// maxLoggedIDs caps how many unreachable ids go into a single log record.
const maxLoggedIDs = 20

// GeoTreeOptions configures a GeoTreeService.
type GeoTreeOptions struct {
	Driver   string
	Root     int64
	MaxDepth int
	CacheTTL time.Duration
	Logger   *slog.Logger

	// BuildTimeout bounds a cached build shared by concurrent requests;
	// cache.DefaultComputeTimeout when zero.
	BuildTimeout time.Duration
}

// GeoTreeService builds geography trees from the store and caches the results.
type GeoTreeService struct {
	queries *store.Queries
	builder *tree.Builder
	trees   *cache.TypedCache[[]tree.Node]
	logger  *slog.Logger
}

// NewGeoTreeService creates a GeoTreeService. A nil cacher disables caching.
func NewGeoTreeService(db *sql.DB, cacher cache.Cacher, opts GeoTreeOptions) *GeoTreeService {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &GeoTreeService{
		queries: store.NewForDriver(db, opts.Driver),
		builder: tree.New(tree.WithRoot(opts.Root), tree.WithMaxDepth(opts.MaxDepth)),
		logger:  logger.With("category", logging.EventCategoryTree),
	}
	if cacher != nil {
		s.trees = cache.NewTypedCache[[]tree.Node](cacher, opts.CacheTTL).WithComputeTimeout(opts.BuildTimeout)
	}
	return s
}

// Root returns the configured sentinel parent id.
func (s *GeoTreeService) Root() int64 {
	return s.builder.Root()
}

// Tree returns the whole geography master as one forest below root.
func (s *GeoTreeService) Tree(ctx context.Context, root int64) ([]tree.Node, error) {
	return s.cached(ctx, rootKeyPrefix+strconv.FormatInt(root, 10), func(ctx context.Context) ([]tree.Node, error) {
		rows, err := s.queries.ListGeographies(ctx)
		if err != nil {
			return nil, fmt.Errorf("listing geographies: %w", err)
		}
		return s.build(toRecords(rows), root, slog.Int64("root", root))
	})
}

// CountryForest returns one top-level node per country, each holding that
// country's geography tree. Countries without geographies are leaves.
func (s *GeoTreeService) CountryForest(ctx context.Context) ([]tree.Node, error) {
	return s.cached(ctx, countriesKey, s.buildCountryForest)
}

// CountryTree returns the geography tree of a single country.
func (s *GeoTreeService) CountryTree(ctx context.Context, countryID int64) ([]tree.Node, error) {
	return s.cached(ctx, countryKeyPrefix+strconv.FormatInt(countryID, 10), func(ctx context.Context) ([]tree.Node, error) {
		if _, err := s.queries.GetCountryByID(ctx, countryID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, ErrCountryNotFound
			}
			return nil, fmt.Errorf("getting country %d: %w", countryID, err)
		}

		rows, err := s.queries.ListGeographiesByCountry(ctx, countryID)
		if err != nil {
			return nil, fmt.Errorf("listing geographies of country %d: %w", countryID, err)
		}
		return s.build(toRecords(rows), s.builder.Root(), slog.Int64("country_id", countryID))
	})
}

// Invalidate drops every cached tree. Builds still running keep serving
// their callers but their results are not cached.
func (s *GeoTreeService) Invalidate(ctx context.Context) error {
	if s.trees == nil {
		return nil
	}
	if err := s.trees.DeleteByPrefix(ctx, treeKeyPrefix); err != nil {
		return fmt.Errorf("invalidating tree cache: %w", err)
	}
	return nil
}

// Warm builds the default tree and the country forest so the next requests hit the cache.
func (s *GeoTreeService) Warm(ctx context.Context) error {
	if _, err := s.Tree(ctx, s.builder.Root()); err != nil {
		return err
	}
	_, err := s.CountryForest(ctx)
	return err
}

// Refresh invalidates and then re-warms the cache.
func (s *GeoTreeService) Refresh(ctx context.Context) error {
	if err := s.Invalidate(ctx); err != nil {
		return err
	}
	return s.Warm(ctx)
}

func (s *GeoTreeService) cached(ctx context.Context, key string, fn func(ctx context.Context) ([]tree.Node, error)) ([]tree.Node, error) {
	if s.trees == nil {
		return fn(ctx)
	}
	nodes, err := s.trees.GetOrSet(ctx, key, func(ctx context.Context) (*[]tree.Node, error) {
		built, err := fn(ctx)
		if err != nil {
			return nil, err
		}
		return &built, nil
	})
	if err != nil {
		return nil, err
	}
	return *nodes, nil
}

func (s *GeoTreeService) buildCountryForest(ctx context.Context) ([]tree.Node, error) {
	countries, err := s.queries.ListCountries(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing countries: %w", err)
	}
	rows, err := s.queries.ListGeographies(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing geographies: %w", err)
	}

	byCountry := make(map[int64][]tree.Record, len(countries))
	for _, row := range rows {
		byCountry[row.CountryID] = append(byCountry[row.CountryID], toRecord(row))
	}

	forest := make([]tree.Node, len(countries))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))

	for i, c := range countries {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			children, err := s.build(byCountry[c.ID], s.builder.Root(), slog.Int64("country_id", c.ID))
			if err != nil {
				return fmt.Errorf("country %d: %w", c.ID, err)
			}
			node := tree.Node{Key: c.ID, Title: normalizeTitle(c.Name)}
			if len(children) > 0 {
				node.Children = children
			}
			forest[i] = node
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return forest, nil
}

// build expands records below root and reports rows the expansion never reached.
func (s *GeoTreeService) build(records []tree.Record, root int64, scope slog.Attr) ([]tree.Node, error) {
	buildID := uuid.NewString()
	logger := s.logger.With(slog.String("build_id", buildID), scope)
	start := time.Now()

	nodes, err := s.builder.BuildFrom(records, root)
	if err != nil {
		logger.Error("tree build failed", "error", err)
		return nil, err
	}

	// Subtree builds leave the rest unreachable on purpose.
	if root == s.builder.Root() {
		if lost := tree.Unreachable(records, root); len(lost) > 0 {
			logger.Warn("unreachable geography records",
				"count", len(lost),
				"ids", unreachableIDs(lost),
			)
		}
	}

	logger.Debug("tree built",
		"records", len(records),
		"nodes", tree.Count(nodes),
		"duration", time.Since(start),
	)
	return nodes, nil
}

func toRecords(rows []store.Geography) []tree.Record {
	records := make([]tree.Record, len(rows))
	for i, row := range rows {
		records[i] = toRecord(row)
	}
	return records
}

func toRecord(row store.Geography) tree.Record {
	return tree.Record{
		ID:       row.ID,
		ParentID: row.ParentID,
		Title:    normalizeTitle(row.Name),
		Icon:     row.Icon,
	}
}

// normalizeTitle trims and NFC-normalizes a name so composed and decomposed
// forms of the same title render identically.
func normalizeTitle(name string) string {
	return norm.NFC.String(strings.TrimSpace(name))
}

func unreachableIDs(records []tree.Record) string {
	n := min(len(records), maxLoggedIDs)
	ids := make([]string, n)
	for i := range n {
		ids[i] = strconv.FormatInt(records[i].ID, 10)
	}
	out := strings.Join(ids, ",")
	if len(records) > n {
		out += ",..."
	}
	return out
}
