// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package tree converts flat parent-referencing records into the nested
// node structure consumed by the Dynatree widget.
package tree

import (
	"errors"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// RootID is the parent id that attaches a record under the virtual root.
const RootID int64 = 0

// MaxTitleLength matches the VARCHAR(255) column the titles are loaded from.
const MaxTitleLength = 255

var (
	// ErrCyclicHierarchy is returned when a node is, transitively, its own ancestor.
	ErrCyclicHierarchy = errors.New("cyclic hierarchy detected")

	// ErrDuplicateID is returned when two records share the same id.
	ErrDuplicateID = errors.New("duplicate record id")

	// ErrMaxDepthExceeded is returned when expansion goes deeper than the configured limit.
	ErrMaxDepthExceeded = errors.New("maximum tree depth exceeded")
)

// Record is one flat input row of the hierarchy.
type Record struct {
	ID       int64
	ParentID int64
	Title    string
	Icon     bool
}

// Validate checks the record against the default RootID.
func (r Record) Validate() error {
	return r.ValidateForRoot(RootID)
}

// ValidateForRoot checks the record for usage errors the transform does not
// catch itself. The id must differ from root: a record keyed by the root
// sentinel would re-expand the top level below itself.
func (r Record) ValidateForRoot(root int64) error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.ID, validation.NotIn(root).Error("must differ from the root id")),
		validation.Field(&r.ParentID, validation.NotIn(r.ID).Error("must differ from id")),
		validation.Field(&r.Title, validation.Required, validation.Length(1, MaxTitleLength)),
	)
}

// Node is one element of the nested output.
// Children stays nil for leaves so the field is omitted from JSON entirely;
// the widget treats an empty "children" array as an expandable folder.
type Node struct {
	Key      int64  `json:"key"`
	Title    string `json:"title"`
	Icon     bool   `json:"icon"`
	Children []Node `json:"children,omitempty"`
}

// Count returns the number of nodes in the given forest, descendants included.
func Count(nodes []Node) int {
	n := 0
	stack := []Node(nil)
	stack = append(stack, nodes...)
	for len(stack) > 0 {
		last := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		n++
		stack = append(stack, last.Children...)
	}
	return n
}
