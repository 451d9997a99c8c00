package repo

import (
	"fmt"

	"github.com/odvcencio/twig/pkg/object"
	"github.com/odvcencio/twig/pkg/refs"
)

// Checkout switches the working tree to rev. A branch name makes HEAD
// symbolic; any other revision detaches HEAD at that commit. The working
// tree must be clean.
func (r *Repo) Checkout(rev string) error {
	if err := r.ensureClean("checkout"); err != nil {
		return err
	}

	branch := ""
	var target object.Hash
	if err := refs.ValidateName(rev); err == nil && r.Refs.Exists(refs.HeadsPrefix+rev) {
		h, err := r.Refs.Read(refs.HeadsPrefix + rev)
		if err != nil {
			return fmt.Errorf("checkout: %w", err)
		}
		branch, target = rev, h
	} else {
		h, err := r.ResolveCommit(rev)
		if err != nil {
			return fmt.Errorf("checkout: %w", err)
		}
		target = h
	}

	tree, err := r.commitTree(target)
	if err != nil {
		return fmt.Errorf("checkout: %w", err)
	}
	if err := r.materialize(tree); err != nil {
		return fmt.Errorf("checkout: %w", err)
	}

	if branch != "" {
		err = r.Refs.SetHeadBranch(branch)
	} else {
		err = r.Refs.SetHeadDetached(target, "checkout: moving to "+rev)
	}
	if err != nil {
		return fmt.Errorf("checkout: %w", err)
	}
	r.log.Info("checked out", "rev", rev, "hash", target.Short(), "detached", branch == "")
	return nil
}
