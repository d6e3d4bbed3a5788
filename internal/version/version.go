// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package version provides build-time version information.
package version

import "fmt"

// Info contains build-time version information injected via ldflags.
type Info struct {
	Version   string `json:"version"`    // Semantic version from git tags (e.g., "v1.2.3")
	GitCommit string `json:"git_commit"` // Short git commit hash
	BuildTime string `json:"build_time"` // RFC3339 build timestamp
}

// New returns Info with "dev"/"unknown" filled in for values ldflags left empty.
func New(ver, commit, built string) Info {
	if ver == "" {
		ver = "dev"
	}
	if commit == "" {
		commit = "unknown"
	}
	if built == "" {
		built = "unknown"
	}
	return Info{Version: ver, GitCommit: commit, BuildTime: built}
}

// String formats the info the way -version prints it.
func (i Info) String() string {
	return fmt.Sprintf("geotree %s (commit: %s, built: %s)", i.Version, i.GitCommit, i.BuildTime)
}
