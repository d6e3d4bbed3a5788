// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/olegiv/geotree/internal/logging"
	"github.com/olegiv/geotree/internal/store"
)

// DefaultEventPageSize is used when a caller asks for a non-positive page size.
const DefaultEventPageSize = 50

// MaxEventPageSize caps a single events page.
const MaxEventPageSize = 500

// EventService records and lists audit events.
type EventService struct {
	queries *store.Queries
}

// NewEventService creates a new EventService.
func NewEventService(db *sql.DB, driver string) *EventService {
	return &EventService{
		queries: store.NewForDriver(db, driver),
	}
}

// LogEvent creates a new event log entry.
func (s *EventService) LogEvent(ctx context.Context, level, category, message string, metadata map[string]any) error {
	metadataJSON := "{}"
	if len(metadata) > 0 {
		if data, err := json.Marshal(metadata); err == nil {
			metadataJSON = string(data)
		}
	}

	_, err := s.queries.CreateEvent(ctx, store.CreateEventParams{
		Level:     level,
		Category:  category,
		Message:   message,
		Metadata:  metadataJSON,
		CreatedAt: time.Now(),
	})
	if err != nil {
		slog.Error("failed to log event", "error", err, "category", logging.EventCategoryStore)
		return err
	}
	return nil
}

// LogInfo logs an info-level event.
func (s *EventService) LogInfo(ctx context.Context, category, message string, metadata map[string]any) error {
	return s.LogEvent(ctx, logging.EventLevelInfo, category, message, metadata)
}

// LogWarning logs a warning-level event.
func (s *EventService) LogWarning(ctx context.Context, category, message string, metadata map[string]any) error {
	return s.LogEvent(ctx, logging.EventLevelWarning, category, message, metadata)
}

// LogError logs an error-level event.
func (s *EventService) LogError(ctx context.Context, category, message string, metadata map[string]any) error {
	return s.LogEvent(ctx, logging.EventLevelError, category, message, metadata)
}

// EventPage is one page of events, newest first.
type EventPage struct {
	Events []store.Event
	Total  int64
	Limit  int64
	Offset int64
}

// ListEvents returns a page of events. limit is clamped to [1, MaxEventPageSize].
func (s *EventService) ListEvents(ctx context.Context, limit, offset int64) (*EventPage, error) {
	if limit <= 0 {
		limit = DefaultEventPageSize
	}
	limit = min(limit, MaxEventPageSize)
	offset = max(offset, 0)

	events, err := s.queries.ListEvents(ctx, store.ListEventsParams{Limit: limit, Offset: offset})
	if err != nil {
		return nil, fmt.Errorf("listing events: %w", err)
	}
	total, err := s.queries.CountEvents(ctx)
	if err != nil {
		return nil, fmt.Errorf("counting events: %w", err)
	}
	return &EventPage{Events: events, Total: total, Limit: limit, Offset: offset}, nil
}

// DeleteOldEvents removes events older than the specified duration and
// returns how many rows went away.
func (s *EventService) DeleteOldEvents(ctx context.Context, olderThan time.Duration) (int64, error) {
	cutoff := time.Now().Add(-olderThan)
	n, err := s.queries.DeleteEventsBefore(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("deleting events before %s: %w", cutoff.Format(time.RFC3339), err)
	}
	return n, nil
}
