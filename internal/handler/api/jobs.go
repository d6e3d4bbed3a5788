// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/olegiv/geotree/internal/scheduler"
)

// JobResponse represents a scheduled job in API responses.
type JobResponse struct {
	Name     string     `json:"name"`
	Schedule string     `json:"schedule"`
	NextRun  *time.Time `json:"next_run,omitempty"`
}

// RunJobResponse reports a manual job run.
type RunJobResponse struct {
	Name     string `json:"name"`
	Duration string `json:"duration"`
}

// ListJobs handles GET /api/v1/jobs
func (h *Handler) ListJobs(w http.ResponseWriter, _ *http.Request) {
	data := []JobResponse{}
	if h.jobs != nil {
		for _, j := range h.jobs.Jobs() {
			resp := JobResponse{Name: j.Name, Schedule: j.Schedule}
			if !j.Next.IsZero() {
				next := j.Next
				resp.NextRun = &next
			}
			data = append(data, resp)
		}
	}
	WriteSuccess(w, data, &Meta{Total: int64(len(data))})
}

// RunJob handles POST /api/v1/jobs/{name}/run
func (h *Handler) RunJob(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if h.jobs == nil {
		WriteNotFound(w, "Job not found")
		return
	}

	start := time.Now()
	if err := h.jobs.Trigger(r.Context(), name); err != nil {
		if errors.Is(err, scheduler.ErrUnknownJob) {
			WriteNotFound(w, "Job not found")
			return
		}
		h.logger.Error("manual job run failed", "job", name, "error", err)
		WriteInternalError(w, "Job failed")
		return
	}

	duration := time.Since(start)
	h.logger.Info("job run manually", "job", name, "duration", duration, "remote_addr", r.RemoteAddr)
	WriteSuccess(w, RunJobResponse{Name: name, Duration: duration.String()}, nil)
}
