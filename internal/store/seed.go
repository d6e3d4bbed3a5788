// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package store

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"log/slog"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"gopkg.in/yaml.v3"

	"github.com/olegiv/geotree/internal/tree"
)

//go:embed seed/geography.yaml
var bundledGeography []byte

// SeedFile is the YAML layout of a geography master.
type SeedFile struct {
	Countries []SeedCountry `yaml:"countries"`
}

// SeedCountry is one country with its flat geography rows.
type SeedCountry struct {
	ID          int64           `yaml:"id"`
	Name        string          `yaml:"name"`
	Geographies []SeedGeography `yaml:"geographies"`
}

// SeedGeography is one flat geography row. Seed files are always written
// against tree.RootID: parent 0 means top level and 0 is never a row id.
type SeedGeography struct {
	ID     int64  `yaml:"id"`
	Parent int64  `yaml:"parent"`
	Name   string `yaml:"name"`
	Icon   bool   `yaml:"icon"`
}

// Validate implements validation.Validatable.
func (g SeedGeography) Validate() error {
	return tree.Record{ID: g.ID, ParentID: g.Parent, Title: g.Name, Icon: g.Icon}.Validate()
}

// Validate implements validation.Validatable.
func (c SeedCountry) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.ID, validation.Required, validation.Min(int64(1))),
		validation.Field(&c.Name, validation.Required, validation.Length(1, tree.MaxTitleLength)),
		validation.Field(&c.Geographies),
	)
}

// Validate checks every row and rejects ids used twice anywhere in the file.
func (f SeedFile) Validate() error {
	if err := validation.ValidateStruct(&f,
		validation.Field(&f.Countries, validation.Required),
	); err != nil {
		return err
	}

	var countryIDs, geoIDs []tree.Record
	for _, c := range f.Countries {
		countryIDs = append(countryIDs, tree.Record{ID: c.ID})
		for _, g := range c.Geographies {
			geoIDs = append(geoIDs, tree.Record{ID: g.ID})
		}
	}
	if dups := tree.DuplicateIDs(countryIDs); len(dups) > 0 {
		return fmt.Errorf("duplicate country ids: %v", dups)
	}
	if dups := tree.DuplicateIDs(geoIDs); len(dups) > 0 {
		return fmt.Errorf("%w: geographies %v", tree.ErrDuplicateID, dups)
	}
	return nil
}

// ParseSeed decodes and validates a YAML geography master.
func ParseSeed(data []byte) (*SeedFile, error) {
	var f SeedFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("decoding seed yaml: %w", err)
	}
	if err := f.Validate(); err != nil {
		return nil, fmt.Errorf("validating seed: %w", err)
	}
	return &f, nil
}

// Seed loads the bundled geography master when doSeed is set and the
// geographies table is still empty.
func Seed(ctx context.Context, db *sql.DB, driver string, doSeed bool) error {
	if !doSeed {
		return nil
	}

	count, err := NewForDriver(db, driver).CountGeographies(ctx)
	if err != nil {
		return fmt.Errorf("counting geographies: %w", err)
	}
	if count > 0 {
		slog.Info("geography master already present, skipping seed", "rows", count)
		return nil
	}

	f, err := ParseSeed(bundledGeography)
	if err != nil {
		return err
	}
	return Import(ctx, db, driver, f)
}

// Import upserts every country and geography of f in one transaction.
// Row order in the file becomes the position column.
func Import(ctx context.Context, db *sql.DB, driver string, f *SeedFile) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning seed transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	q := NewForDriver(db, driver).WithTx(tx)
	rows := 0
	for ci, c := range f.Countries {
		if err := q.UpsertCountry(ctx, UpsertCountryParams{
			ID:       c.ID,
			Name:     c.Name,
			Position: int64(ci),
		}); err != nil {
			return fmt.Errorf("upserting country %d: %w", c.ID, err)
		}
		for gi, g := range c.Geographies {
			if err := q.UpsertGeography(ctx, UpsertGeographyParams{
				ID:        g.ID,
				CountryID: c.ID,
				ParentID:  g.Parent,
				Name:      g.Name,
				Icon:      g.Icon,
				Position:  int64(gi),
			}); err != nil {
				return fmt.Errorf("upserting geography %d: %w", g.ID, err)
			}
			rows++
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing seed: %w", err)
	}

	slog.Info("seeded geography master", "countries", len(f.Countries), "geographies", rows)
	return nil
}
