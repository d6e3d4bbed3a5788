// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package tree

import "fmt"

// Index groups records by parent id for O(1) child lookup.
// It is built once and never modified afterwards, so it is safe for
// concurrent readers.
type Index struct {
	children map[int64][]Record
	size     int
}

// NewIndex builds the child index in a single pass.
// Within each parent group the input order is preserved.
func NewIndex(records []Record) *Index {
	ix := &Index{
		children: make(map[int64][]Record),
		size:     len(records),
	}
	for _, r := range records {
		ix.children[r.ParentID] = append(ix.children[r.ParentID], r)
	}
	return ix
}

// Len returns the number of records the index was built from.
func (ix *Index) Len() int {
	return ix.size
}

// ChildrenOf returns the records whose parent is parentID, in input order.
// An unknown parent yields an empty result, not an error.
func (ix *Index) ChildrenOf(parentID int64) []Record {
	return ix.children[parentID]
}

// HasChildren reports whether id has at least one child record.
func (ix *Index) HasChildren(id int64) bool {
	return len(ix.children[id]) > 0
}

// Expand materializes the subtree below parentID without a depth limit.
func (ix *Index) Expand(parentID int64) ([]Node, error) {
	return ix.ExpandWithLimit(parentID, 0)
}

// expandFrame is one level of the explicit traversal stack.
type expandFrame struct {
	node  Node // node whose children this frame collects; unused for the start frame
	items []Record
	next  int
	out   []Node
}

// ExpandWithLimit materializes the subtree below parentID.
// Nodes deeper than maxDepth (children of parentID are depth 1) fail the
// expansion with ErrMaxDepthExceeded; maxDepth <= 0 disables the limit.
// Re-entering an id that is already on the current path fails with
// ErrCyclicHierarchy. On error no partial tree is returned.
func (ix *Index) ExpandWithLimit(parentID int64, maxDepth int) ([]Node, error) {
	onPath := map[int64]bool{parentID: true}
	stack := []expandFrame{{items: ix.ChildrenOf(parentID)}}

	for {
		top := len(stack) - 1

		if stack[top].next < len(stack[top].items) {
			r := stack[top].items[stack[top].next]
			stack[top].next++

			depth := len(stack)
			if maxDepth > 0 && depth > maxDepth {
				return nil, fmt.Errorf("%w: node %d at depth %d (limit %d)", ErrMaxDepthExceeded, r.ID, depth, maxDepth)
			}

			node := Node{Key: r.ID, Title: r.Title, Icon: r.Icon}
			if !ix.HasChildren(r.ID) {
				stack[top].out = append(stack[top].out, node)
				continue
			}
			if onPath[r.ID] {
				return nil, fmt.Errorf("%w: node %d is its own ancestor", ErrCyclicHierarchy, r.ID)
			}
			onPath[r.ID] = true
			stack = append(stack, expandFrame{node: node, items: ix.ChildrenOf(r.ID)})
			continue
		}

		done := stack[top]
		stack = stack[:top]
		if top == 0 {
			if done.out == nil {
				return []Node{}, nil
			}
			return done.out, nil
		}

		delete(onPath, done.node.Key)
		done.node.Children = done.out
		stack[top-1].out = append(stack[top-1].out, done.node)
	}
}
