// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package store

import "time"

type Country struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	Position int64  `json:"position"`
}

type Geography struct {
	ID        int64  `json:"id"`
	CountryID int64  `json:"country_id"`
	ParentID  int64  `json:"parent_id"`
	Name      string `json:"name"`
	Icon      bool   `json:"icon"`
	Position  int64  `json:"position"`
}

type Event struct {
	ID        int64     `json:"id"`
	Level     string    `json:"level"`
	Category  string    `json:"category"`
	Message   string    `json:"message"`
	Metadata  string    `json:"metadata"`
	CreatedAt time.Time `json:"created_at"`
}
