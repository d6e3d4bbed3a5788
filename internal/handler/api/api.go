// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package api provides the JSON handlers that serve geography trees.
package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/olegiv/geotree/internal/middleware"
	"github.com/olegiv/geotree/internal/scheduler"
	"github.com/olegiv/geotree/internal/service"
	"github.com/olegiv/geotree/internal/tree"
)

// TreeService is the part of service.GeoTreeService the handlers use.
type TreeService interface {
	Root() int64
	Tree(ctx context.Context, root int64) ([]tree.Node, error)
	CountryForest(ctx context.Context) ([]tree.Node, error)
	CountryTree(ctx context.Context, countryID int64) ([]tree.Node, error)
	Invalidate(ctx context.Context) error
	Refresh(ctx context.Context) error
}

// EventLister lists persisted events.
type EventLister interface {
	ListEvents(ctx context.Context, limit, offset int64) (*service.EventPage, error)
}

// JobRunner lists and runs the scheduled maintenance jobs.
type JobRunner interface {
	Jobs() []scheduler.JobInfo
	Trigger(ctx context.Context, name string) error
}

// Handler holds shared dependencies for all API handlers.
type Handler struct {
	trees  TreeService
	events EventLister
	jobs   JobRunner
	logger *slog.Logger
}

// NewHandler creates a new API handler. jobs may be nil when no scheduler
// runs; a nil logger uses slog.Default.
func NewHandler(trees TreeService, events EventLister, jobs JobRunner, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		trees:  trees,
		events: events,
		jobs:   jobs,
		logger: logger.With("category", "http"),
	}
}

// Routes returns the /api/v1 sub-router. Tree reads are public; event
// listing, cache control and jobs sit behind adminAuth, which defaults to
// rejecting every request when nil.
func (h *Handler) Routes(adminAuth func(http.Handler) http.Handler) chi.Router {
	if adminAuth == nil {
		adminAuth = middleware.AdminKeyAuth("")
	}

	r := chi.NewRouter()
	r.Get("/status", h.Status)
	r.Get("/tree", h.GetTree)
	r.Get("/countries/tree", h.GetCountryForest)
	r.Get("/countries/{id}/tree", h.GetCountryTree)

	r.Group(func(r chi.Router) {
		r.Use(adminAuth)
		r.Get("/events", h.ListEvents)
		r.Post("/cache/invalidate", h.InvalidateCache)
		r.Get("/jobs", h.ListJobs)
		r.Post("/jobs/{name}/run", h.RunJob)
	})
	return r
}

// Response is the standard API response wrapper.
type Response struct {
	Data any   `json:"data"`
	Meta *Meta `json:"meta,omitempty"`
}

// Meta contains pagination and other metadata.
type Meta struct {
	Total   int64 `json:"total"`
	Page    int   `json:"page,omitempty"`
	PerPage int   `json:"per_page,omitempty"`
	Pages   int   `json:"pages,omitempty"`
}

// ErrorResponse is the standard API error response.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail contains error information.
type ErrorDetail struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Details map[string]string `json:"details,omitempty"`
}

// WriteJSON writes a JSON response with the given status code.
func WriteJSON(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(data)
}

// WriteSuccess writes a successful JSON response.
func WriteSuccess(w http.ResponseWriter, data any, meta *Meta) {
	WriteJSON(w, http.StatusOK, Response{Data: data, Meta: meta})
}

// WriteError writes an error JSON response.
func WriteError(w http.ResponseWriter, statusCode int, code, message string, details map[string]string) {
	WriteJSON(w, statusCode, ErrorResponse{
		Error: ErrorDetail{Code: code, Message: message, Details: details},
	})
}

// WriteBadRequest writes a 400 Bad Request response.
func WriteBadRequest(w http.ResponseWriter, message string, details map[string]string) {
	WriteError(w, http.StatusBadRequest, "bad_request", message, details)
}

// WriteNotFound writes a 404 Not Found response.
func WriteNotFound(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusNotFound, "not_found", message, nil)
}

// WriteInternalError writes a 500 Internal Server Error response.
func WriteInternalError(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusInternalServerError, "internal_error", message, nil)
}

// WriteValidationError writes a 422 Unprocessable Entity response with field errors.
func WriteValidationError(w http.ResponseWriter, fieldErrors map[string]string) {
	WriteError(w, http.StatusUnprocessableEntity, "validation_error", "Validation failed", fieldErrors)
}

// StatusResponse contains API status information.
type StatusResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	Root    int64  `json:"root"`
}

// Status handles GET /api/v1/status.
func (h *Handler) Status(w http.ResponseWriter, _ *http.Request) {
	WriteSuccess(w, StatusResponse{Status: "ok", Version: "v1", Root: h.trees.Root()}, nil)
}
