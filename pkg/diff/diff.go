// Package diff compares trees and renders their differences.
package diff

import (
	"fmt"

	"github.com/odvcencio/twig/pkg/object"
	"github.com/odvcencio/twig/pkg/worktree"
)

// ChangeType classifies what happened to a path between two snapshots.
type ChangeType int

const (
	Added    ChangeType = iota // Path exists only in the after snapshot.
	Removed                    // Path exists only in the before snapshot.
	Modified                   // Path exists in both with different content or mode.
)

// Symbol returns the one-letter status code for t.
func (t ChangeType) Symbol() string {
	switch t {
	case Added:
		return "A"
	case Removed:
		return "D"
	case Modified:
		return "M"
	default:
		return "?"
	}
}

func (t ChangeType) String() string {
	switch t {
	case Added:
		return "added"
	case Removed:
		return "removed"
	case Modified:
		return "modified"
	default:
		return fmt.Sprintf("ChangeType(%d)", int(t))
	}
}

// Change records one changed path.
type Change struct {
	Type ChangeType
	Path string
	From worktree.FileEntry // zero for Added
	To   worktree.FileEntry // zero for Removed
}

// Files compares two flat snapshots and returns the changes in path order.
func Files(from, to map[string]worktree.FileEntry) []Change {
	var changes []Change
	for _, p := range worktree.SortedPaths(union(from, to)) {
		before, inFrom := from[p]
		after, inTo := to[p]
		switch {
		case inFrom && !inTo:
			changes = append(changes, Change{Type: Removed, Path: p, From: before})
		case !inFrom && inTo:
			changes = append(changes, Change{Type: Added, Path: p, To: after})
		case before.Hash != after.Hash || worktree.NormalizeMode(before.Mode) != worktree.NormalizeMode(after.Mode):
			changes = append(changes, Change{Type: Modified, Path: p, From: before, To: after})
		}
	}
	return changes
}

// Trees compares two tree objects. An empty hash stands for the empty tree.
func Trees(r worktree.ObjectReader, from, to object.Hash) ([]Change, error) {
	before, err := flatten(r, from)
	if err != nil {
		return nil, fmt.Errorf("diff: %w", err)
	}
	after, err := flatten(r, to)
	if err != nil {
		return nil, fmt.Errorf("diff: %w", err)
	}
	return Files(before, after), nil
}

func flatten(r worktree.ObjectReader, h object.Hash) (map[string]worktree.FileEntry, error) {
	if h == "" {
		return map[string]worktree.FileEntry{}, nil
	}
	return worktree.Flatten(r, h)
}

func union(a, b map[string]worktree.FileEntry) map[string]worktree.FileEntry {
	out := make(map[string]worktree.FileEntry, len(a)+len(b))
	for p, f := range a {
		out[p] = f
	}
	for p, f := range b {
		out[p] = f
	}
	return out
}
