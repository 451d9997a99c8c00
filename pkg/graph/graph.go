// Package graph answers ancestry questions over the commit DAG.
package graph

import (
	"errors"
	"fmt"
	"iter"
	"sync"

	"github.com/odvcencio/twig/pkg/object"
)

var (
	// ErrUnrelated is returned when two commits share no ancestor.
	ErrUnrelated = errors.New("commits have no common ancestor")
	// ErrNonLinearHistory is returned when a replay range contains a merge
	// commit.
	ErrNonLinearHistory = errors.New("history to replay contains a merge commit")
)

// CommitReader loads commits by hash. *object.Store satisfies it.
type CommitReader interface {
	ReadCommit(h object.Hash) (*object.Commit, error)
}

type baseKey struct {
	left  object.Hash
	right object.Hash
}

func canonicalBaseKey(a, b object.Hash) baseKey {
	if a <= b {
		return baseKey{left: a, right: b}
	}
	return baseKey{left: b, right: a}
}

// Graph memoises commits, generation numbers and merge bases read through
// a CommitReader. Objects are immutable, so cached answers never go stale.
type Graph struct {
	r CommitReader

	mu          sync.RWMutex
	commits     map[object.Hash]*object.Commit
	generations map[object.Hash]uint64
	bases       map[baseKey][]object.Hash
}

// New returns a Graph reading through r.
func New(r CommitReader) *Graph {
	return &Graph{
		r:           r,
		commits:     make(map[object.Hash]*object.Commit),
		generations: make(map[object.Hash]uint64),
		bases:       make(map[baseKey][]object.Hash),
	}
}

// Commit returns the commit at h.
func (g *Graph) Commit(h object.Hash) (*object.Commit, error) {
	g.mu.RLock()
	cached, ok := g.commits[h]
	g.mu.RUnlock()
	if ok {
		return cached, nil
	}

	c, err := g.r.ReadCommit(h)
	if err != nil {
		return nil, fmt.Errorf("read commit %s: %w", h, err)
	}

	g.mu.Lock()
	if existing, exists := g.commits[h]; exists {
		g.mu.Unlock()
		return existing, nil
	}
	g.commits[h] = c
	g.mu.Unlock()
	return c, nil
}

// Generation returns 1 for a root commit and one more than the highest
// parent generation otherwise.
func (g *Graph) Generation(h object.Hash) (uint64, error) {
	return g.generationRecursive(h, make(map[object.Hash]bool))
}

func (g *Graph) generationRecursive(h object.Hash, visiting map[object.Hash]bool) (uint64, error) {
	g.mu.RLock()
	gen, ok := g.generations[h]
	g.mu.RUnlock()
	if ok {
		return gen, nil
	}
	if visiting[h] {
		return 0, fmt.Errorf("commit graph cycle detected at %s", h)
	}

	visiting[h] = true
	defer delete(visiting, h)

	c, err := g.Commit(h)
	if err != nil {
		return 0, err
	}
	var maxParent uint64
	for _, p := range c.Parents {
		pg, err := g.generationRecursive(p, visiting)
		if err != nil {
			return 0, err
		}
		if pg > maxParent {
			maxParent = pg
		}
	}

	gen = maxParent + 1
	g.mu.Lock()
	g.generations[h] = gen
	g.mu.Unlock()
	return gen, nil
}

// Ancestors lazily walks every commit reachable from h through parent
// links, h included, in breadth-first order. Each commit is yielded once.
// A read failure is yielded as the final pair.
func (g *Graph) Ancestors(h object.Hash) iter.Seq2[object.Hash, error] {
	return func(yield func(object.Hash, error) bool) {
		seen := map[object.Hash]struct{}{h: {}}
		queue := []object.Hash{h}
		for len(queue) > 0 {
			cur := queue[0]
			queue = queue[1:]
			c, err := g.Commit(cur)
			if err != nil {
				yield("", err)
				return
			}
			if !yield(cur, nil) {
				return
			}
			for _, p := range c.Parents {
				if _, ok := seen[p]; ok {
					continue
				}
				seen[p] = struct{}{}
				queue = append(queue, p)
			}
		}
	}
}

// AncestorSet returns every ancestor of h (h included) mapped to its
// shortest parent-chain distance from h.
func (g *Graph) AncestorSet(h object.Hash) (map[object.Hash]int, error) {
	dist := map[object.Hash]int{h: 0}
	queue := []object.Hash{h}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		c, err := g.Commit(cur)
		if err != nil {
			return nil, err
		}
		for _, p := range c.Parents {
			if _, ok := dist[p]; ok {
				continue
			}
			dist[p] = dist[cur] + 1
			queue = append(queue, p)
		}
	}
	return dist, nil
}

// IsAncestor reports whether a is reachable from b. Every commit is its own
// ancestor. Commits whose generation is not above a's are never expanded.
func (g *Graph) IsAncestor(a, b object.Hash) (bool, error) {
	if a == b {
		if _, err := g.Commit(a); err != nil {
			return false, err
		}
		return true, nil
	}
	genA, err := g.Generation(a)
	if err != nil {
		return false, err
	}
	genB, err := g.Generation(b)
	if err != nil {
		return false, err
	}
	if genA >= genB {
		return false, nil
	}

	visited := map[object.Hash]struct{}{b: {}}
	queue := []object.Hash{b}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if cur == a {
			return true, nil
		}
		c, err := g.Commit(cur)
		if err != nil {
			return false, err
		}
		for _, p := range c.Parents {
			if _, seen := visited[p]; seen {
				continue
			}
			pg, err := g.Generation(p)
			if err != nil {
				return false, err
			}
			if pg < genA {
				continue
			}
			visited[p] = struct{}{}
			queue = append(queue, p)
		}
	}
	return false, nil
}

// IsFastForward reports whether moving a ref from current to target only
// adds history, i.e. current is an ancestor of target.
func (g *Graph) IsFastForward(current, target object.Hash) (bool, error) {
	return g.IsAncestor(current, target)
}
