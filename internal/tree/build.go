// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package tree

import "fmt"

// Builder turns flat records into a tree rooted at a configurable sentinel.
type Builder struct {
	root            int64
	maxDepth        int
	checkDuplicates bool
}

// Option configures a Builder.
type Option func(*Builder)

// WithRoot overrides the sentinel parent id (RootID by default).
func WithRoot(id int64) Option {
	return func(b *Builder) {
		b.root = id
	}
}

// WithMaxDepth limits how deep expansion may go. Zero or less means unlimited.
func WithMaxDepth(depth int) Option {
	return func(b *Builder) {
		b.maxDepth = depth
	}
}

// WithDuplicateCheck toggles the duplicate id check run before expansion.
func WithDuplicateCheck(enabled bool) Option {
	return func(b *Builder) {
		b.checkDuplicates = enabled
	}
}

// New creates a Builder. Duplicate ids are rejected unless disabled.
func New(opts ...Option) *Builder {
	b := &Builder{
		root:            RootID,
		checkDuplicates: true,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Root returns the sentinel parent id the builder expands from.
func (b *Builder) Root() int64 {
	return b.root
}

// Build indexes records and expands the tree below the builder's root.
func (b *Builder) Build(records []Record) ([]Node, error) {
	return b.BuildFrom(records, b.root)
}

// BuildFrom indexes records and expands the subtree below parentID.
func (b *Builder) BuildFrom(records []Record, parentID int64) ([]Node, error) {
	if b.checkDuplicates {
		if dups := DuplicateIDs(records); len(dups) > 0 {
			return nil, fmt.Errorf("%w: %v", ErrDuplicateID, dups)
		}
	}
	return NewIndex(records).ExpandWithLimit(parentID, b.maxDepth)
}

// Build is shorthand for New(opts...).Build(records).
func Build(records []Record, opts ...Option) ([]Node, error) {
	return New(opts...).Build(records)
}

// DuplicateIDs returns every id that occurs more than once, in first-seen order.
func DuplicateIDs(records []Record) []int64 {
	seen := make(map[int64]int, len(records))
	var dups []int64
	for _, r := range records {
		seen[r.ID]++
		if seen[r.ID] == 2 {
			dups = append(dups, r.ID)
		}
	}
	return dups
}

// Unreachable returns the records that expansion from root will never visit,
// for example rows whose parent id matches no record. Input order is kept.
func Unreachable(records []Record, root int64) []Record {
	ix := NewIndex(records)

	reached := map[int64]bool{root: true}
	queue := []int64{root}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		for _, child := range ix.ChildrenOf(id) {
			if reached[child.ID] {
				continue
			}
			reached[child.ID] = true
			queue = append(queue, child.ID)
		}
	}

	var out []Record
	for _, r := range records {
		if !reached[r.ParentID] {
			out = append(out, r)
		}
	}
	return out
}
