package graph

import (
	"fmt"

	"github.com/odvcencio/twig/pkg/object"
)

// Entry pairs a commit with its hash.
type Entry struct {
	Hash   object.Hash
	Commit *object.Commit
}

// Log follows first parents from start, newest first. A limit of zero or
// less walks to the root.
func (g *Graph) Log(start object.Hash, limit int) ([]Entry, error) {
	var out []Entry
	cur := start
	for cur != "" {
		if limit > 0 && len(out) >= limit {
			break
		}
		c, err := g.Commit(cur)
		if err != nil {
			return nil, fmt.Errorf("log: %w", err)
		}
		out = append(out, Entry{Hash: cur, Commit: c})
		if len(c.Parents) == 0 {
			break
		}
		cur = c.Parents[0]
	}
	return out, nil
}

// ReplayOrder returns the commits reachable from tip but not from base,
// oldest first. base may be empty to take tip's whole history. The range
// must be a single first-parent chain; a merge commit inside it yields
// ErrNonLinearHistory.
func (g *Graph) ReplayOrder(tip, base object.Hash) ([]object.Hash, error) {
	exclude := map[object.Hash]int{}
	if base != "" {
		var err error
		exclude, err = g.AncestorSet(base)
		if err != nil {
			return nil, fmt.Errorf("replay order: %w", err)
		}
	}

	pending := 0
	for h, err := range g.Ancestors(tip) {
		if err != nil {
			return nil, fmt.Errorf("replay order: %w", err)
		}
		if _, ok := exclude[h]; ok {
			continue
		}
		c, err := g.Commit(h)
		if err != nil {
			return nil, fmt.Errorf("replay order: %w", err)
		}
		if c.IsMerge() {
			return nil, fmt.Errorf("replay order: %s: %w", h.Short(), ErrNonLinearHistory)
		}
		pending++
	}

	chain := make([]object.Hash, 0, pending)
	for cur := tip; len(chain) < pending; {
		if _, ok := exclude[cur]; ok {
			break
		}
		chain = append(chain, cur)
		c, err := g.Commit(cur)
		if err != nil {
			return nil, fmt.Errorf("replay order: %w", err)
		}
		if len(c.Parents) == 0 {
			break
		}
		cur = c.Parents[0]
	}
	if len(chain) != pending {
		return nil, fmt.Errorf("replay order: range is not a single chain: %w", ErrNonLinearHistory)
	}

	for i, j := 0, len(chain)-1; i < j; i, j = i+1, j-1 {
		chain[i], chain[j] = chain[j], chain[i]
	}
	return chain, nil
}
