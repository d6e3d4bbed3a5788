// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package logging provides a slog handler that also persists WARN and
// ERROR records to the events table, so hierarchy problems found while
// building trees stay visible after the log output has rotated away.
package logging

import (
	"context"
	"database/sql"
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/olegiv/geotree/internal/store"
)

// Event levels
const (
	EventLevelInfo    = "info"
	EventLevelWarning = "warning"
	EventLevelError   = "error"
)

// Event categories
const (
	EventCategoryTree   = "tree"
	EventCategoryCache  = "cache"
	EventCategoryStore  = "store"
	EventCategoryHTTP   = "http"
	EventCategoryConfig = "config"
	EventCategorySystem = "system"
)

// EventLogHandler wraps another slog.Handler and writes records at or
// above its level to the events table.
type EventLogHandler struct {
	inner   slog.Handler
	queries *store.Queries
	level   slog.Level
	attrs   []slog.Attr // accumulated via WithAttrs, stored with each event
}

// NewEventLogHandler creates an EventLogHandler that persists WARN and above.
func NewEventLogHandler(inner slog.Handler, db *sql.DB, driver string) *EventLogHandler {
	return NewEventLogHandlerWithLevel(inner, db, driver, slog.LevelWarn)
}

// NewEventLogHandlerWithLevel creates an EventLogHandler with a custom minimum level.
func NewEventLogHandlerWithLevel(inner slog.Handler, db *sql.DB, driver string, level slog.Level) *EventLogHandler {
	return &EventLogHandler{
		inner:   inner,
		queries: store.NewForDriver(db, driver),
		level:   level,
	}
}

// Enabled implements slog.Handler.
func (h *EventLogHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level) || level >= h.level
}

// Handle implements slog.Handler.
func (h *EventLogHandler) Handle(ctx context.Context, r slog.Record) error {
	if h.inner.Enabled(ctx, r.Level) {
		if err := h.inner.Handle(ctx, r); err != nil {
			return err
		}
	}

	if r.Level >= h.level {
		h.writeToEventLog(r)
	}

	return nil
}

// WithAttrs implements slog.Handler.
func (h *EventLogHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	merged := make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	merged = append(merged, h.attrs...)
	merged = append(merged, attrs...)
	return &EventLogHandler{
		inner:   h.inner.WithAttrs(attrs),
		queries: h.queries,
		level:   h.level,
		attrs:   merged,
	}
}

// WithGroup implements slog.Handler. Groups only affect the inner handler;
// event metadata stays flat.
func (h *EventLogHandler) WithGroup(name string) slog.Handler {
	return &EventLogHandler{
		inner:   h.inner.WithGroup(name),
		queries: h.queries,
		level:   h.level,
		attrs:   h.attrs,
	}
}

// writeToEventLog uses a background context so events survive request cancellation.
func (h *EventLogHandler) writeToEventLog(r slog.Record) {
	attrs := h.collectAttrs(r)

	_, _ = h.queries.CreateEvent(context.Background(), store.CreateEventParams{
		Level:     eventLevel(r.Level),
		Category:  category(r.Message, attrs),
		Message:   r.Message,
		Metadata:  metadata(attrs),
		CreatedAt: r.Time,
	})
}

func (h *EventLogHandler) collectAttrs(r slog.Record) []slog.Attr {
	attrs := make([]slog.Attr, 0, len(h.attrs)+r.NumAttrs())
	attrs = append(attrs, h.attrs...)
	r.Attrs(func(a slog.Attr) bool {
		attrs = append(attrs, a)
		return true
	})
	return attrs
}

func eventLevel(level slog.Level) string {
	switch {
	case level >= slog.LevelError:
		return EventLevelError
	case level >= slog.LevelWarn:
		return EventLevelWarning
	default:
		return EventLevelInfo
	}
}

// category prefers an explicit "category" attribute and otherwise infers
// one from the message.
func category(message string, attrs []slog.Attr) string {
	for i := len(attrs) - 1; i >= 0; i-- {
		if attrs[i].Key == "category" {
			return attrs[i].Value.String()
		}
	}

	msg := strings.ToLower(message)
	switch {
	case strings.Contains(msg, "tree") || strings.Contains(msg, "hierarch") ||
		strings.Contains(msg, "unreachable") || strings.Contains(msg, "geograph"):
		return EventCategoryTree
	case strings.Contains(msg, "cache") || strings.Contains(msg, "redis"):
		return EventCategoryCache
	case strings.Contains(msg, "database") || strings.Contains(msg, "migration") || strings.Contains(msg, "seed"):
		return EventCategoryStore
	case strings.Contains(msg, "request") || strings.Contains(msg, "server"):
		return EventCategoryHTTP
	case strings.Contains(msg, "config"):
		return EventCategoryConfig
	default:
		return EventCategorySystem
	}
}

// metadata encodes every attribute except category as a flat JSON object.
func metadata(attrs []slog.Attr) string {
	m := make(map[string]any, len(attrs))
	for _, a := range attrs {
		if a.Key == "category" || a.Key == "" {
			continue
		}
		v := a.Value.Resolve()
		switch v.Kind() {
		case slog.KindInt64:
			m[a.Key] = v.Int64()
		case slog.KindUint64:
			m[a.Key] = v.Uint64()
		case slog.KindFloat64:
			m[a.Key] = v.Float64()
		case slog.KindBool:
			m[a.Key] = v.Bool()
		default:
			m[a.Key] = v.String()
		}
	}
	if len(m) == 0 {
		return "{}"
	}
	data, err := json.Marshal(m)
	if err != nil {
		return "{}"
	}
	return string(data)
}
