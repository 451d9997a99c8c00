package graph

import (
	"fmt"
	"sort"

	"github.com/odvcencio/twig/pkg/object"
)

// LowestCommonAncestor returns the single best merge base of a and b.
//
// Both full ancestor sets are intersected and every member that is a strict
// ancestor of another member is dropped. If several candidates remain, as
// in criss-cross histories, the one closest to both tips wins, then the
// higher generation, then the smallest hash, so the choice is stable.
func (g *Graph) LowestCommonAncestor(a, b object.Hash) (object.Hash, error) {
	bases, err := g.MergeBases(a, b)
	if err != nil {
		return "", err
	}
	return bases[0], nil
}

// MergeBases returns every common ancestor of a and b that is not an
// ancestor of another common ancestor, best first. It fails with
// ErrUnrelated when the histories are disjoint.
func (g *Graph) MergeBases(a, b object.Hash) ([]object.Hash, error) {
	key := canonicalBaseKey(a, b)
	g.mu.RLock()
	cached, ok := g.bases[key]
	g.mu.RUnlock()
	if ok {
		return append([]object.Hash(nil), cached...), nil
	}

	distA, err := g.AncestorSet(a)
	if err != nil {
		return nil, fmt.Errorf("merge base: %w", err)
	}
	distB, err := g.AncestorSet(b)
	if err != nil {
		return nil, fmt.Errorf("merge base: %w", err)
	}

	common := make(map[object.Hash]struct{})
	for h := range distA {
		if _, ok := distB[h]; ok {
			common[h] = struct{}{}
		}
	}
	if len(common) == 0 {
		return nil, fmt.Errorf("merge base of %s and %s: %w", a.Short(), b.Short(), ErrUnrelated)
	}

	dominated, err := g.strictAncestors(common)
	if err != nil {
		return nil, fmt.Errorf("merge base: %w", err)
	}

	type candidate struct {
		hash object.Hash
		dist int
		gen  uint64
	}
	var candidates []candidate
	for h := range common {
		if _, ok := dominated[h]; ok {
			continue
		}
		gen, err := g.Generation(h)
		if err != nil {
			return nil, fmt.Errorf("merge base: %w", err)
		}
		candidates = append(candidates, candidate{hash: h, dist: distA[h] + distB[h], gen: gen})
	}
	sort.Slice(candidates, func(i, j int) bool {
		ci, cj := candidates[i], candidates[j]
		if ci.dist != cj.dist {
			return ci.dist < cj.dist
		}
		if ci.gen != cj.gen {
			return ci.gen > cj.gen
		}
		return ci.hash < cj.hash
	})

	out := make([]object.Hash, len(candidates))
	for i, c := range candidates {
		out[i] = c.hash
	}

	g.mu.Lock()
	g.bases[key] = out
	g.mu.Unlock()
	return append([]object.Hash(nil), out...), nil
}

// strictAncestors returns every commit reachable from the parents of the
// given set. Any ancestor of a common ancestor is itself common, so one
// shared walk marks exactly the dominated members.
func (g *Graph) strictAncestors(set map[object.Hash]struct{}) (map[object.Hash]struct{}, error) {
	seen := make(map[object.Hash]struct{})
	var queue []object.Hash
	for h := range set {
		c, err := g.Commit(h)
		if err != nil {
			return nil, err
		}
		for _, p := range c.Parents {
			if _, ok := seen[p]; !ok {
				seen[p] = struct{}{}
				queue = append(queue, p)
			}
		}
	}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		c, err := g.Commit(cur)
		if err != nil {
			return nil, err
		}
		for _, p := range c.Parents {
			if _, ok := seen[p]; !ok {
				seen[p] = struct{}{}
				queue = append(queue, p)
			}
		}
	}
	return seen, nil
}
