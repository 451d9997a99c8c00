// Package rebase replays commits onto a new base.
//
// Replaying is a pure fold over the commit list: each step merges one
// commit's change into the running tree and writes a new commit on top of
// the running parent. Nothing outside the object store is touched, so a
// failed replay leaves only unreferenced objects behind.
package rebase

import (
	"errors"
	"fmt"
	"strings"

	"github.com/odvcencio/twig/pkg/merge"
	"github.com/odvcencio/twig/pkg/object"
)

// ErrConflict is matched by every *ConflictError.
var ErrConflict = errors.New("replay conflict")

// Store is the object access replaying needs.
type Store interface {
	merge.Store
	ReadCommit(h object.Hash) (*object.Commit, error)
}

// State is the fold accumulator: the tree built so far and the commit the
// next replayed commit will point at.
type State struct {
	Tree   object.Hash
	Parent object.Hash
}

// Step records one replayed commit.
type Step struct {
	Original object.Hash
	New      object.Hash
}

// Result is a finished replay.
type Result struct {
	State
	Steps []Step
}

// ConflictError reports the commit whose replay conflicted.
type ConflictError struct {
	Commit    object.Hash
	Conflicts []merge.Conflict
	// Merge holds the conflicted tree merge for callers that want to
	// surface it.
	Merge *merge.Result
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("replay %s: conflicts in %s", e.Commit.Short(), strings.Join(e.Paths(), ", "))
}

// Paths returns the conflicted paths.
func (e *ConflictError) Paths() []string {
	out := make([]string, len(e.Conflicts))
	for i, c := range e.Conflicts {
		out[i] = c.Path
	}
	return out
}

func (e *ConflictError) Is(target error) bool { return target == ErrConflict }

// Options configure a replay.
type Options struct {
	Merge merge.Options
}

// Apply replays commit h on top of st. The commit's change is the
// difference between its first parent's tree and its own tree; that change
// is merged into st.Tree. The new commit keeps author, timestamp and message
// and gets st.Parent as its only parent. Signatures are dropped because the
// signed content no longer matches.
func Apply(s Store, st State, h object.Hash, opts Options) (State, object.Hash, error) {
	c, err := s.ReadCommit(h)
	if err != nil {
		return st, "", fmt.Errorf("replay %s: %w", h.Short(), err)
	}

	var parentTree object.Hash
	if len(c.Parents) > 0 {
		p, err := s.ReadCommit(c.Parents[0])
		if err != nil {
			return st, "", fmt.Errorf("replay %s: parent: %w", h.Short(), err)
		}
		parentTree = p.Tree
	}

	res, err := merge.Trees(s, parentTree, st.Tree, c.Tree, opts.Merge)
	if err != nil {
		return st, "", fmt.Errorf("replay %s: %w", h.Short(), err)
	}
	if !res.Clean() {
		return st, "", &ConflictError{Commit: h, Conflicts: res.Conflicts, Merge: res}
	}

	var parents []object.Hash
	if st.Parent != "" {
		parents = []object.Hash{st.Parent}
	}
	replayed, err := object.WriteObject(s, &object.Commit{
		Tree:      res.Tree,
		Parents:   parents,
		Author:    c.Author,
		Timestamp: c.Timestamp,
		Message:   c.Message,
	})
	if err != nil {
		return st, "", fmt.Errorf("replay %s: write commit: %w", h.Short(), err)
	}
	return State{Tree: res.Tree, Parent: replayed}, replayed, nil
}

// Replay folds Apply over commits, oldest first, starting from the onto
// commit. It stops at the first conflict.
func Replay(s Store, onto object.Hash, commits []object.Hash, opts Options) (*Result, error) {
	base, err := s.ReadCommit(onto)
	if err != nil {
		return nil, fmt.Errorf("replay onto %s: %w", onto.Short(), err)
	}

	out := &Result{State: State{Tree: base.Tree, Parent: onto}}
	for _, h := range commits {
		next, replayed, err := Apply(s, out.State, h, opts)
		if err != nil {
			return nil, err
		}
		out.State = next
		out.Steps = append(out.Steps, Step{Original: h, New: replayed})
	}
	return out, nil
}
