package repo

import (
	"errors"
	"fmt"

	"github.com/odvcencio/twig/pkg/object"
	"github.com/odvcencio/twig/pkg/refs"
)

// Resolve turns a revision into an object hash: anything refs.Resolve
// accepts, or an abbreviated digest of at least four hex characters.
func (r *Repo) Resolve(rev string) (object.Hash, error) {
	h, err := r.Refs.Resolve(rev)
	if err == nil {
		return h, nil
	}
	if !errors.Is(err, refs.ErrUnknownRef) {
		return "", err
	}
	if found, ferr := r.Store.FindByPrefix(rev); ferr == nil {
		return found, nil
	}
	return "", err
}

// ResolveCommit is Resolve restricted to commits.
func (r *Repo) ResolveCommit(rev string) (object.Hash, error) {
	h, err := r.Resolve(rev)
	if err != nil {
		return "", err
	}
	if _, err := r.Graph.Commit(h); err != nil {
		return "", fmt.Errorf("resolve %q: %w", rev, err)
	}
	return h, nil
}
