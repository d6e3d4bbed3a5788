// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package api

import (
	"net/http"
)

// InvalidateResponse reports what a cache invalidation did.
type InvalidateResponse struct {
	Invalidated bool `json:"invalidated"`
	Warmed      bool `json:"warmed"`
}

// InvalidateCache handles POST /api/v1/cache/invalidate[?warm=true]
func (h *Handler) InvalidateCache(w http.ResponseWriter, r *http.Request) {
	warm := r.URL.Query().Get("warm") == "true"

	var err error
	if warm {
		err = h.trees.Refresh(r.Context())
	} else {
		err = h.trees.Invalidate(r.Context())
	}
	if err != nil {
		h.logger.Error("tree cache invalidation failed", "error", err, "warm", warm)
		WriteInternalError(w, "Failed to invalidate tree cache")
		return
	}

	h.logger.Info("tree cache invalidated", "warm", warm, "remote_addr", r.RemoteAddr)
	WriteSuccess(w, InvalidateResponse{Invalidated: true, Warmed: warm}, nil)
}
