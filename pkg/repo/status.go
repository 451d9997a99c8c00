package repo

import (
	"fmt"

	"github.com/odvcencio/twig/pkg/diff"
	"github.com/odvcencio/twig/pkg/object"
	"github.com/odvcencio/twig/pkg/refs"
	"github.com/odvcencio/twig/pkg/worktree"
)

// Status summarises the working tree against HEAD.
type Status struct {
	Head    refs.Head
	Changes []diff.Change
	// MergeHead is set while a conflicted merge awaits its commit.
	MergeHead object.Hash
}

// Clean reports whether the working tree matches HEAD.
func (s *Status) Clean() bool { return len(s.Changes) == 0 }

// Merging reports whether a merge is in progress.
func (s *Status) Merging() bool { return s.MergeHead != "" }

// Status compares the working tree with HEAD's tree. Nothing is written to
// the object store.
func (r *Repo) Status() (*Status, error) {
	head, headFiles, current, err := r.worktreeFiles()
	if err != nil {
		return nil, fmt.Errorf("status: %w", err)
	}
	mergeHead, _, err := r.Refs.MergeHead()
	if err != nil {
		return nil, fmt.Errorf("status: %w", err)
	}
	return &Status{
		Head:      head,
		Changes:   diff.Files(headFiles, current),
		MergeHead: mergeHead,
	}, nil
}

// worktreeFiles returns HEAD, HEAD's flat tree and the working tree's flat
// listing hashed without persisting blobs.
func (r *Repo) worktreeFiles() (refs.Head, map[string]worktree.FileEntry, map[string]worktree.FileEntry, error) {
	head, tree, err := r.headTree()
	if err != nil {
		return head, nil, nil, err
	}
	headFiles, err := r.flatten(tree)
	if err != nil {
		return head, nil, nil, err
	}
	ignored, err := r.ignored()
	if err != nil {
		return head, nil, nil, err
	}
	current, err := worktree.Scan(r.Worktree, object.HashOnly{}, ignored)
	if err != nil {
		return head, nil, nil, err
	}
	return head, headFiles, current, nil
}

// ensureClean fails with ErrDirtyWorktree when the working tree differs
// from HEAD or a merge is unfinished.
func (r *Repo) ensureClean(op string) error {
	st, err := r.Status()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if st.Merging() {
		return fmt.Errorf("%s: %w", op, ErrMergeInProgress)
	}
	if !st.Clean() {
		return fmt.Errorf("%s: %w (%d changed paths)", op, ErrDirtyWorktree, len(st.Changes))
	}
	return nil
}
