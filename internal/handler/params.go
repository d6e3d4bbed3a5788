// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package handler provides request parsing helpers and the health endpoints.
package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
)

// ErrMissingParam is returned when a required URL parameter is absent.
var ErrMissingParam = errors.New("missing parameter")

// ParseIDParam parses the "id" URL parameter as an int64.
func ParseIDParam(r *http.Request) (int64, error) {
	return ParseInt64URLParam(r, "id")
}

// ParseInt64URLParam parses a chi URL parameter as an int64.
func ParseInt64URLParam(r *http.Request, name string) (int64, error) {
	raw := chi.URLParam(r, name)
	if raw == "" {
		return 0, ErrMissingParam
	}
	return strconv.ParseInt(raw, 10, 64)
}

// ParseInt64Query parses an optional int64 query parameter.
// A missing or empty parameter yields defaultVal and no error.
func ParseInt64Query(r *http.Request, name string, defaultVal int64) (int64, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return defaultVal, nil
	}
	return strconv.ParseInt(raw, 10, 64)
}

// ParsePageParam parses the "page" query parameter from the request.
// Returns 1 if the parameter is missing, empty, or invalid.
func ParsePageParam(r *http.Request) int {
	return ParseIntParam(r, "page", 1, 1, 0)
}

// ParsePerPageParam parses the "per_page" query parameter, clamped to [1, maxPerPage].
func ParsePerPageParam(r *http.Request, defaultPerPage, maxPerPage int) int {
	return ParseIntParam(r, "per_page", defaultPerPage, 1, maxPerPage)
}

// ParseIntParam parses an integer query parameter from the request.
// Returns defaultVal if the parameter is missing, empty, or invalid.
// If minVal > 0, values below minVal return defaultVal.
// If maxVal > 0, values above maxVal return defaultVal.
func ParseIntParam(r *http.Request, param string, defaultVal, minVal, maxVal int) int {
	str := r.URL.Query().Get(param)
	if str == "" {
		return defaultVal
	}
	val, err := strconv.Atoi(str)
	if err != nil {
		return defaultVal
	}
	if minVal > 0 && val < minVal {
		return defaultVal
	}
	if maxVal > 0 && val > maxVal {
		return defaultVal
	}
	return val
}

// TotalPages returns how many pages of perPage items hold total items, at least 1.
func TotalPages(total int64, perPage int) int {
	if perPage <= 0 {
		return 1
	}
	pages := int((total + int64(perPage) - 1) / int64(perPage))
	return max(pages, 1)
}
