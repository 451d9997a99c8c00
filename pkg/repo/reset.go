package repo

import (
	"fmt"

	"github.com/odvcencio/twig/pkg/object"
)

// Reset moves the current branch, or HEAD when detached, to rev and makes
// the working tree match that commit. Uncommitted changes are discarded
// and any unfinished merge is abandoned.
func (r *Repo) Reset(rev string) (object.Hash, error) {
	target, err := r.ResolveCommit(rev)
	if err != nil {
		return "", fmt.Errorf("reset: %w", err)
	}
	tree, err := r.commitTree(target)
	if err != nil {
		return "", fmt.Errorf("reset: %w", err)
	}
	// Read the target tree fully before moving anything.
	if _, err := r.flatten(tree); err != nil {
		return "", fmt.Errorf("reset: %w", err)
	}

	if err := r.Refs.Advance(target, "reset: moving to "+rev); err != nil {
		return "", fmt.Errorf("reset: %w", err)
	}
	if err := r.materialize(tree); err != nil {
		return "", fmt.Errorf("reset: %w", err)
	}
	if err := r.Refs.ClearMergeHead(); err != nil {
		return "", fmt.Errorf("reset: %w", err)
	}
	r.log.Info("reset", "rev", rev, "hash", target.Short())
	return target, nil
}
