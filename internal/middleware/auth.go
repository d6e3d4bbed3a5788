// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package middleware

import (
	"crypto/sha256"
	"crypto/subtle"
	"net/http"
	"strings"
)

// AdminKeyAuth creates middleware that requires "Authorization: Bearer <key>"
// matching the configured admin key. An empty key rejects every request.
func AdminKeyAuth(key string) func(http.Handler) http.Handler {
	want := sha256.Sum256([]byte(key))

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if key == "" {
				WriteAPIError(w, http.StatusUnauthorized, "unauthorized", "Admin API is disabled", nil)
				return
			}

			rawKey, ok := bearerToken(r)
			if !ok {
				w.Header().Set("WWW-Authenticate", `Bearer realm="geotree"`)
				WriteAPIError(w, http.StatusUnauthorized, "unauthorized", "Invalid Authorization header format. Use: Bearer <api_key>", nil)
				return
			}

			// Hashing first keeps the comparison length-independent.
			got := sha256.Sum256([]byte(rawKey))
			if subtle.ConstantTimeCompare(got[:], want[:]) != 1 {
				WriteAPIError(w, http.StatusUnauthorized, "unauthorized", "Invalid API key", nil)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// bearerToken extracts a non-empty token from the Authorization header.
func bearerToken(r *http.Request) (string, bool) {
	parts := strings.SplitN(r.Header.Get("Authorization"), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return "", false
	}
	token := strings.TrimSpace(parts[1])
	return token, token != ""
}
