// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/olegiv/geotree/internal/handler"
	"github.com/olegiv/geotree/internal/service"
)

// EventResponse represents an event in API responses.
type EventResponse struct {
	ID        int64           `json:"id"`
	Level     string          `json:"level"`
	Category  string          `json:"category"`
	Message   string          `json:"message"`
	Metadata  json.RawMessage `json:"metadata"`
	CreatedAt time.Time       `json:"created_at"`
}

// ListEvents handles GET /api/v1/events?page=&per_page=
func (h *Handler) ListEvents(w http.ResponseWriter, r *http.Request) {
	page := handler.ParsePageParam(r)
	perPage := handler.ParsePerPageParam(r, service.DefaultEventPageSize, service.MaxEventPageSize)
	offset := int64(page-1) * int64(perPage)

	result, err := h.events.ListEvents(r.Context(), int64(perPage), offset)
	if err != nil {
		h.logger.Error("failed to list events", "error", err)
		WriteInternalError(w, "Failed to list events")
		return
	}

	data := make([]EventResponse, len(result.Events))
	for i, e := range result.Events {
		metadata := json.RawMessage(e.Metadata)
		if !json.Valid(metadata) {
			metadata = json.RawMessage("{}")
		}
		data[i] = EventResponse{
			ID:        e.ID,
			Level:     e.Level,
			Category:  e.Category,
			Message:   e.Message,
			Metadata:  metadata,
			CreatedAt: e.CreatedAt,
		}
	}

	WriteSuccess(w, data, &Meta{
		Total:   result.Total,
		Page:    page,
		PerPage: perPage,
		Pages:   handler.TotalPages(result.Total, perPage),
	})
}
