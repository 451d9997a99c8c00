package repo

import (
	"errors"
	"fmt"
	"strings"

	"github.com/odvcencio/twig/pkg/object"
	"github.com/odvcencio/twig/pkg/rebase"
)

var (
	// ErrRebaseConflict is matched by every *RebaseConflictError.
	ErrRebaseConflict = errors.New("rebase conflict")
	// ErrUnbornHead is returned by operations that need at least one commit.
	ErrUnbornHead = errors.New("HEAD has no commits")
)

// RebaseConflictError names the commit whose replay conflicted.
type RebaseConflictError struct {
	Commit object.Hash
	Paths  []string
}

func (e *RebaseConflictError) Error() string {
	return fmt.Sprintf("rebase: replaying %s conflicts in %s", e.Commit.Short(), strings.Join(e.Paths, ", "))
}

func (e *RebaseConflictError) Is(target error) bool { return target == ErrRebaseConflict }

// RebaseResult describes a finished rebase.
type RebaseResult struct {
	Outcome  Outcome
	Head     object.Hash
	Onto     object.Hash
	Replayed []rebase.Step
}

// Rebase replays the commits of HEAD that are not in rev on top of rev.
//
// If rev already contains HEAD the branch fast-forwards; if HEAD already
// contains rev nothing happens. A conflict aborts the whole rebase with a
// *RebaseConflictError and leaves refs and the working tree untouched.
func (r *Repo) Rebase(rev string) (*RebaseResult, error) {
	if err := r.ensureClean("rebase"); err != nil {
		return nil, err
	}
	onto, err := r.ResolveCommit(rev)
	if err != nil {
		return nil, fmt.Errorf("rebase: %w", err)
	}
	head, err := r.Refs.Head()
	if err != nil {
		return nil, fmt.Errorf("rebase: %w", err)
	}
	if head.Hash == "" {
		return nil, fmt.Errorf("rebase: %w", ErrUnbornHead)
	}
	current := head.Hash

	base, err := r.Graph.LowestCommonAncestor(current, onto)
	if err != nil {
		return nil, fmt.Errorf("rebase: %w", err)
	}
	res := &RebaseResult{Onto: onto}
	if base == onto {
		res.Outcome, res.Head = OutcomeUpToDate, current
		r.log.Info("rebase", "outcome", res.Outcome, "onto", onto.Short())
		return res, nil
	}
	commits, err := r.Graph.ReplayOrder(current, base)
	if err != nil {
		return nil, fmt.Errorf("rebase: %w", err)
	}
	if len(commits) == 0 {
		mr, err := r.fastForward(&MergeResult{}, onto, "rebase "+rev+": fast-forward")
		if err != nil {
			return nil, fmt.Errorf("rebase: %w", err)
		}
		res.Outcome, res.Head = mr.Outcome, mr.Head
		return res, nil
	}

	opts, err := r.mergeOptions(rev, "HEAD")
	if err != nil {
		return nil, fmt.Errorf("rebase: %w", err)
	}
	replayed, err := rebase.Replay(r.Store, onto, commits, rebase.Options{Merge: opts})
	if err != nil {
		return nil, rebaseError(err)
	}

	if err := r.Refs.Advance(replayed.Parent, "rebase "+rev+": finished"); err != nil {
		return nil, fmt.Errorf("rebase: %w", err)
	}
	if err := r.materialize(replayed.Tree); err != nil {
		return nil, fmt.Errorf("rebase: %w", err)
	}
	res.Outcome, res.Head, res.Replayed = OutcomeRebased, replayed.Parent, replayed.Steps
	r.log.Info("rebase", "outcome", res.Outcome, "onto", onto.Short(), "replayed", len(replayed.Steps), "head", replayed.Parent.Short())
	return res, nil
}

// CherryPick replays the single commit rev on top of HEAD and returns the
// new commit.
func (r *Repo) CherryPick(rev string) (object.Hash, error) {
	if err := r.ensureClean("cherry-pick"); err != nil {
		return "", err
	}
	h, err := r.ResolveCommit(rev)
	if err != nil {
		return "", fmt.Errorf("cherry-pick: %w", err)
	}
	head, tree, err := r.headTree()
	if err != nil {
		return "", fmt.Errorf("cherry-pick: %w", err)
	}
	if head.Hash == "" {
		return "", fmt.Errorf("cherry-pick: %w", ErrUnbornHead)
	}

	opts, err := r.mergeOptions("HEAD", rev)
	if err != nil {
		return "", fmt.Errorf("cherry-pick: %w", err)
	}
	st, picked, err := rebase.Apply(r.Store, rebase.State{Tree: tree, Parent: head.Hash}, h, rebase.Options{Merge: opts})
	if err != nil {
		return "", rebaseError(err)
	}
	if err := r.Refs.Advance(picked, "cherry-pick: "+h.Short()); err != nil {
		return "", fmt.Errorf("cherry-pick: %w", err)
	}
	if err := r.materialize(st.Tree); err != nil {
		return "", fmt.Errorf("cherry-pick: %w", err)
	}
	r.log.Info("cherry-pick", "commit", h.Short(), "new", picked.Short())
	return picked, nil
}

func rebaseError(err error) error {
	var ce *rebase.ConflictError
	if errors.As(err, &ce) {
		return &RebaseConflictError{Commit: ce.Commit, Paths: ce.Paths()}
	}
	return fmt.Errorf("rebase: %w", err)
}
