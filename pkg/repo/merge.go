package repo

import (
	"errors"
	"fmt"
	"strings"

	"github.com/odvcencio/twig/pkg/diff3"
	"github.com/odvcencio/twig/pkg/merge"
	"github.com/odvcencio/twig/pkg/mergetool"
	"github.com/odvcencio/twig/pkg/object"
	"github.com/odvcencio/twig/pkg/worktree"
)

// Outcome tags what a merge or rebase did.
type Outcome string

const (
	OutcomeUpToDate    Outcome = "up-to-date"
	OutcomeFastForward Outcome = "fast-forward"
	OutcomeMerged      Outcome = "merge"
	OutcomeRebased     Outcome = "rebase"
	OutcomeConflict    Outcome = "conflict"
)

// ErrMergeConflict is matched by every *MergeConflictError.
var ErrMergeConflict = errors.New("merge conflict")

// MergeConflictError lists the paths a merge could not resolve.
type MergeConflictError struct {
	Paths []string
}

func (e *MergeConflictError) Error() string {
	return fmt.Sprintf("merge conflict in %s", strings.Join(e.Paths, ", "))
}

func (e *MergeConflictError) Is(target error) bool { return target == ErrMergeConflict }

// MergeResult describes a finished or conflicted merge.
type MergeResult struct {
	Outcome Outcome
	// Head is HEAD after the operation. On conflict it is unchanged.
	Head      object.Hash
	Base      object.Hash
	Theirs    object.Hash
	Conflicts []merge.Conflict
}

// Merge merges rev into HEAD.
//
// When rev is already contained in HEAD nothing happens. When HEAD is an
// ancestor of rev the current branch fast-forwards. Otherwise the trees are
// merged three-way against the lowest common ancestor: a clean merge is
// committed with parents [HEAD, rev]; a conflicted one writes the merged
// files with conflict markers into the working tree, records MERGE_HEAD and
// returns the result together with a *MergeConflictError. Refs only move
// on success.
func (r *Repo) Merge(rev string) (*MergeResult, error) {
	if err := r.ensureClean("merge"); err != nil {
		return nil, err
	}
	theirs, err := r.ResolveCommit(rev)
	if err != nil {
		return nil, fmt.Errorf("merge: %w", err)
	}
	head, oursTree, err := r.headTree()
	if err != nil {
		return nil, fmt.Errorf("merge: %w", err)
	}
	res := &MergeResult{Theirs: theirs}

	if head.Hash == "" {
		return r.fastForward(res, theirs, "merge "+rev+": fast-forward")
	}
	ours := head.Hash
	base, err := r.Graph.LowestCommonAncestor(ours, theirs)
	if err != nil {
		return nil, fmt.Errorf("merge: %w", err)
	}
	res.Base = base

	switch base {
	case theirs:
		res.Outcome, res.Head = OutcomeUpToDate, ours
		r.log.Info("merge", "outcome", res.Outcome, "rev", rev)
		return res, nil
	case ours:
		return r.fastForward(res, theirs, "merge "+rev+": fast-forward")
	}

	baseTree, err := r.commitTree(base)
	if err != nil {
		return nil, fmt.Errorf("merge: %w", err)
	}
	theirsTree, err := r.commitTree(theirs)
	if err != nil {
		return nil, fmt.Errorf("merge: %w", err)
	}
	opts, err := r.mergeOptions("HEAD", rev)
	if err != nil {
		return nil, fmt.Errorf("merge: %w", err)
	}
	merged, err := merge.Trees(r.Store, baseTree, oursTree, theirsTree, opts)
	if err != nil {
		return nil, err
	}

	if !merged.Clean() {
		if err := r.surfaceConflicts(oursTree, merged); err != nil {
			return nil, fmt.Errorf("merge: %w", err)
		}
		if err := r.Refs.SetMergeHead(theirs); err != nil {
			return nil, fmt.Errorf("merge: %w", err)
		}
		res.Outcome, res.Head, res.Conflicts = OutcomeConflict, ours, merged.Conflicts
		r.log.Warn("merge", "outcome", res.Outcome, "rev", rev, "conflicts", len(merged.Conflicts))
		return res, &MergeConflictError{Paths: merged.ConflictPaths()}
	}

	author, err := r.Author()
	if err != nil {
		return nil, fmt.Errorf("merge: %w", err)
	}
	c := &object.Commit{
		Tree:      merged.Tree,
		Parents:   []object.Hash{ours, theirs},
		Author:    author,
		Timestamp: r.now().Unix(),
		Message:   fmt.Sprintf("Merge branch '%s'\n", rev),
	}
	signer, err := r.signer()
	if err != nil {
		return nil, fmt.Errorf("merge: %w", err)
	}
	h, err := writeCommit(r.Store, c, signer)
	if err != nil {
		return nil, fmt.Errorf("merge: %w", err)
	}
	if err := r.Refs.Advance(h, "merge "+rev+": merged"); err != nil {
		return nil, fmt.Errorf("merge: %w", err)
	}
	if err := r.materialize(merged.Tree); err != nil {
		return nil, fmt.Errorf("merge: %w", err)
	}
	res.Outcome, res.Head = OutcomeMerged, h
	r.log.Info("merge", "outcome", res.Outcome, "rev", rev, "commit", h.Short(), "base", base.Short())
	return res, nil
}

// MergeAbort abandons a conflicted merge, restoring HEAD's tree.
func (r *Repo) MergeAbort() error {
	_, merging, err := r.Refs.MergeHead()
	if err != nil {
		return fmt.Errorf("merge abort: %w", err)
	}
	if !merging {
		return fmt.Errorf("merge abort: %w", ErrNoMergeInProgress)
	}
	_, tree, err := r.headTree()
	if err != nil {
		return fmt.Errorf("merge abort: %w", err)
	}
	if err := r.materialize(tree); err != nil {
		return fmt.Errorf("merge abort: %w", err)
	}
	if err := r.Refs.ClearMergeHead(); err != nil {
		return fmt.Errorf("merge abort: %w", err)
	}
	r.log.Info("merge aborted")
	return nil
}

func (r *Repo) fastForward(res *MergeResult, target object.Hash, reason string) (*MergeResult, error) {
	tree, err := r.commitTree(target)
	if err != nil {
		return nil, fmt.Errorf("fast-forward: %w", err)
	}
	if err := r.Refs.Advance(target, reason); err != nil {
		return nil, fmt.Errorf("fast-forward: %w", err)
	}
	if err := r.materialize(tree); err != nil {
		return nil, fmt.Errorf("fast-forward: %w", err)
	}
	res.Outcome, res.Head = OutcomeFastForward, target
	r.log.Info("fast-forward", "hash", target.Short())
	return res, nil
}

// surfaceConflicts writes a conflicted merge into the working tree,
// touching only paths that differ from the ours tree.
func (r *Repo) surfaceConflicts(oursTree object.Hash, merged *merge.Result) error {
	oursFiles, err := r.flatten(oursTree)
	if err != nil {
		return err
	}
	return worktree.Apply(r.Store, r.Worktree, oursFiles, merged.Files)
}

// mergeOptions builds tree merge options from merge.tool with the given
// marker labels.
func (r *Repo) mergeOptions(ours, theirs string) (merge.Options, error) {
	labels := diff3.Labels{Ours: ours, Base: "base", Theirs: theirs}
	tool, err := mergetool.New(r.Config.Merge.Tool, labels)
	if err != nil {
		return merge.Options{}, err
	}
	return merge.Options{Merger: tool, Labels: labels, Logger: r.log}, nil
}
