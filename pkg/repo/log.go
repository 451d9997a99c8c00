package repo

import (
	"fmt"
	"strings"

	"github.com/hashicorp/go-multierror"

	"github.com/odvcencio/twig/pkg/diff"
	"github.com/odvcencio/twig/pkg/graph"
	"github.com/odvcencio/twig/pkg/object"
	"github.com/odvcencio/twig/pkg/refs"
	"github.com/odvcencio/twig/pkg/worktree"
)

// Log returns up to limit first-parent commits starting at rev, newest
// first. An empty rev means HEAD; an unborn branch has no history.
func (r *Repo) Log(rev string, limit int) ([]graph.Entry, error) {
	if rev == "" {
		head, err := r.Refs.Head()
		if err != nil {
			return nil, err
		}
		if head.Hash == "" {
			return nil, nil
		}
		rev = "HEAD"
	}
	h, err := r.ResolveCommit(rev)
	if err != nil {
		return nil, fmt.Errorf("log: %w", err)
	}
	return r.Graph.Log(h, limit)
}

// ShowResult is a commit with its changes against its first parent.
type ShowResult struct {
	Hash    object.Hash
	Commit  *object.Commit
	Changes []diff.Change
}

// Show loads rev and diffs it against its first parent, or against the
// empty tree for a root commit.
func (r *Repo) Show(rev string) (*ShowResult, error) {
	h, err := r.ResolveCommit(rev)
	if err != nil {
		return nil, fmt.Errorf("show: %w", err)
	}
	c, err := r.Graph.Commit(h)
	if err != nil {
		return nil, fmt.Errorf("show: %w", err)
	}
	var parentTree object.Hash
	if len(c.Parents) > 0 {
		if parentTree, err = r.commitTree(c.Parents[0]); err != nil {
			return nil, fmt.Errorf("show: %w", err)
		}
	}
	changes, err := diff.Trees(r.Store, parentTree, c.Tree)
	if err != nil {
		return nil, fmt.Errorf("show: %w", err)
	}
	return &ShowResult{Hash: h, Commit: c, Changes: changes}, nil
}

// CatObject returns the kind and canonical payload of any object. A rev of
// the form "<commit>:<path>" names the entry at path in that commit's tree.
func (r *Repo) CatObject(rev string) (object.Kind, []byte, error) {
	if commitRev, p, ok := strings.Cut(rev, ":"); ok {
		tree, err := r.revTree(commitRev)
		if err != nil {
			return 0, nil, fmt.Errorf("cat-object: %w", err)
		}
		if p == "" {
			return r.Store.Read(tree)
		}
		entry, found, err := worktree.EntryAtPath(r.Store, tree, p)
		if err != nil {
			return 0, nil, fmt.Errorf("cat-object: %w", err)
		}
		if !found {
			return 0, nil, fmt.Errorf("cat-object: path %q not in %s: %w", p, commitRev, object.ErrNotFound)
		}
		return r.Store.Read(entry.Hash)
	}
	h, err := r.Resolve(rev)
	if err != nil {
		return 0, nil, fmt.Errorf("cat-object: %w", err)
	}
	return r.Store.Read(h)
}

// Diff compares the trees of two revisions.
func (r *Repo) Diff(from, to string) ([]diff.Change, error) {
	fromTree, err := r.revTree(from)
	if err != nil {
		return nil, fmt.Errorf("diff: %w", err)
	}
	toTree, err := r.revTree(to)
	if err != nil {
		return nil, fmt.Errorf("diff: %w", err)
	}
	return diff.Trees(r.Store, fromTree, toTree)
}

// DiffWorktree compares HEAD with the working tree and renders the result
// as a unified diff. Working tree content is held in memory, not stored.
func (r *Repo) DiffWorktree(context int) ([]diff.Change, string, error) {
	_, headTree, err := r.headTree()
	if err != nil {
		return nil, "", fmt.Errorf("diff: %w", err)
	}
	headFiles, err := r.flatten(headTree)
	if err != nil {
		return nil, "", fmt.Errorf("diff: %w", err)
	}
	ignored, err := r.ignored()
	if err != nil {
		return nil, "", fmt.Errorf("diff: %w", err)
	}
	cache := &blobCache{store: r.Store, blobs: make(map[object.Hash][]byte)}
	current, err := worktree.Scan(r.Worktree, cache, ignored)
	if err != nil {
		return nil, "", fmt.Errorf("diff: %w", err)
	}
	changes := diff.Files(headFiles, current)
	text, err := diff.FormatUnified(cache, changes, context)
	if err != nil {
		return nil, "", fmt.Errorf("diff: %w", err)
	}
	return changes, text, nil
}

func (r *Repo) revTree(rev string) (object.Hash, error) {
	h, err := r.ResolveCommit(rev)
	if err != nil {
		return "", err
	}
	return r.commitTree(h)
}

// blobCache keeps scanned blobs in memory and falls back to the store.
type blobCache struct {
	store *object.Store
	blobs map[object.Hash][]byte
}

func (c *blobCache) Write(kind object.Kind, payload []byte) (object.Hash, error) {
	h, err := object.HashObject(kind, payload)
	if err != nil {
		return "", err
	}
	c.blobs[h] = payload
	return h, nil
}

func (c *blobCache) ReadBlob(h object.Hash) (*object.Blob, error) {
	if data, ok := c.blobs[h]; ok {
		return &object.Blob{Data: data}, nil
	}
	return c.store.ReadBlob(h)
}

// Reflog returns the movements of ref, newest first.
func (r *Repo) Reflog(ref string, limit int) ([]refs.ReflogEntry, error) {
	return r.Refs.Reflog(ref, limit)
}

// Verify checks every stored object and every ref target, collecting all
// problems.
func (r *Repo) Verify() error {
	var result *multierror.Error
	if err := r.Store.Verify(); err != nil {
		result = multierror.Append(result, err)
	}
	all, err := r.Refs.List("refs/")
	if err != nil {
		result = multierror.Append(result, err)
	}
	for _, ref := range all {
		if !r.Store.Has(ref.Hash) {
			result = multierror.Append(result, fmt.Errorf("ref %s points at missing %s: %w", ref.Name, ref.Hash, object.ErrNotFound))
		}
	}
	if h, ok, err := r.Refs.MergeHead(); err != nil {
		result = multierror.Append(result, err)
	} else if ok && !r.Store.Has(h) {
		result = multierror.Append(result, fmt.Errorf("MERGE_HEAD points at missing %s: %w", h, object.ErrNotFound))
	}
	return result.ErrorOrNil()
}

// Unreachable lists stored objects that no ref, HEAD, or MERGE_HEAD can
// reach, sorted by hash.
func (r *Repo) Unreachable() ([]object.Hash, error) {
	all, err := r.Refs.List("refs/")
	if err != nil {
		return nil, err
	}
	roots := make([]object.Hash, 0, len(all)+2)
	for _, ref := range all {
		roots = append(roots, ref.Hash)
	}
	if head, err := r.Refs.Head(); err != nil {
		return nil, err
	} else if head.Hash != "" {
		roots = append(roots, head.Hash)
	}
	if h, ok, err := r.Refs.MergeHead(); err != nil {
		return nil, err
	} else if ok {
		roots = append(roots, h)
	}

	live, err := r.Store.ReachableSet(roots)
	if err != nil {
		return nil, err
	}
	stored, err := r.Store.List()
	if err != nil {
		return nil, err
	}
	var out []object.Hash
	for _, h := range stored {
		if _, ok := live[h]; !ok {
			out = append(out, h)
		}
	}
	return out, nil
}
