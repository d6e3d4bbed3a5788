// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/olegiv/geotree/internal/handler"
	"github.com/olegiv/geotree/internal/service"
	"github.com/olegiv/geotree/internal/tree"
)

// GetNodesAsJSON handles GET /async/getNodesAsJson, the endpoint the
// Dynatree widget loads from. The body is the bare node array, no envelope.
func (h *Handler) GetNodesAsJSON(w http.ResponseWriter, r *http.Request) {
	nodes, err := h.trees.Tree(r.Context(), h.trees.Root())
	if err != nil {
		h.writeTreeError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, nodes)
}

// GetTree handles GET /api/v1/tree?root={id}
func (h *Handler) GetTree(w http.ResponseWriter, r *http.Request) {
	root, err := handler.ParseInt64Query(r, "root", h.trees.Root())
	if err != nil {
		WriteValidationError(w, map[string]string{"root": "must be an integer"})
		return
	}

	nodes, err := h.trees.Tree(r.Context(), root)
	if err != nil {
		h.writeTreeError(w, r, err)
		return
	}
	WriteSuccess(w, nodes, &Meta{Total: int64(tree.Count(nodes))})
}

// GetCountryForest handles GET /api/v1/countries/tree
func (h *Handler) GetCountryForest(w http.ResponseWriter, r *http.Request) {
	forest, err := h.trees.CountryForest(r.Context())
	if err != nil {
		h.writeTreeError(w, r, err)
		return
	}
	WriteSuccess(w, forest, &Meta{Total: int64(tree.Count(forest))})
}

// GetCountryTree handles GET /api/v1/countries/{id}/tree
func (h *Handler) GetCountryTree(w http.ResponseWriter, r *http.Request) {
	id, err := handler.ParseIDParam(r)
	if err != nil {
		WriteBadRequest(w, "Invalid country ID", nil)
		return
	}

	nodes, err := h.trees.CountryTree(r.Context(), id)
	if err != nil {
		h.writeTreeError(w, r, err)
		return
	}
	WriteSuccess(w, nodes, &Meta{Total: int64(tree.Count(nodes))})
}

// writeTreeError maps service and tree errors onto the API envelope.
func (h *Handler) writeTreeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, service.ErrCountryNotFound):
		WriteNotFound(w, "Country not found")
	case errors.Is(err, tree.ErrCyclicHierarchy),
		errors.Is(err, tree.ErrDuplicateID),
		errors.Is(err, tree.ErrMaxDepthExceeded):
		h.logger.Error("geography hierarchy is invalid", "error", err, "path", r.URL.Path)
		WriteError(w, http.StatusInternalServerError, "invalid_hierarchy", err.Error(), nil)
	case r.Context().Err() != nil:
		// Client went away; nothing useful to send.
	case errors.Is(err, context.DeadlineExceeded):
		WriteError(w, http.StatusServiceUnavailable, "timeout", "Request timed out", nil)
	case errors.Is(err, context.Canceled):
		h.logger.Warn("tree build canceled", "error", err, "path", r.URL.Path)
		WriteError(w, http.StatusServiceUnavailable, "unavailable", "Tree build was canceled", nil)
	default:
		h.logger.Error("failed to build tree", "error", err, "path", r.URL.Path)
		WriteInternalError(w, "Failed to build tree")
	}
}
