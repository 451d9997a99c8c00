package repo

import (
	"fmt"

	"github.com/odvcencio/twig/pkg/object"
	"github.com/odvcencio/twig/pkg/refs"
)

// CreateBranch creates a branch at rev; an empty rev means HEAD.
func (r *Repo) CreateBranch(name, rev string) (object.Hash, error) {
	if rev == "" {
		rev = "HEAD"
	}
	h, err := r.ResolveCommit(rev)
	if err != nil {
		return "", fmt.Errorf("create branch: %w", err)
	}
	if err := r.Refs.CreateBranch(name, h); err != nil {
		return "", err
	}
	r.log.Info("branch created", "branch", name, "hash", h.Short())
	return h, nil
}

// DeleteBranch removes a branch that is not checked out.
func (r *Repo) DeleteBranch(name string) error {
	if err := r.Refs.DeleteBranch(name); err != nil {
		return err
	}
	r.log.Info("branch deleted", "branch", name)
	return nil
}

// Branches lists every branch.
func (r *Repo) Branches() ([]refs.Ref, error) { return r.Refs.Branches() }

// CreateTag creates an immutable tag at rev; an empty rev means HEAD.
func (r *Repo) CreateTag(name, rev string) (object.Hash, error) {
	if rev == "" {
		rev = "HEAD"
	}
	h, err := r.ResolveCommit(rev)
	if err != nil {
		return "", fmt.Errorf("create tag: %w", err)
	}
	if err := r.Refs.CreateTag(name, h); err != nil {
		return "", err
	}
	r.log.Info("tag created", "tag", name, "hash", h.Short())
	return h, nil
}

// DeleteTag removes a tag.
func (r *Repo) DeleteTag(name string) error {
	if err := r.Refs.DeleteTag(name); err != nil {
		return err
	}
	r.log.Info("tag deleted", "tag", name)
	return nil
}

// Tags lists every tag.
func (r *Repo) Tags() ([]refs.Ref, error) { return r.Refs.Tags() }
