package object

import (
	"fmt"
	"sort"

	"github.com/hashicorp/go-multierror"
)

// ReachableSet returns all object hashes reachable from roots by following
// object references. Missing roots are ignored.
func (s *Store) ReachableSet(roots []Hash) (map[Hash]struct{}, error) {
	roots = uniqueHashes(roots)
	out := make(map[Hash]struct{}, len(roots))

	stack := append([]Hash(nil), roots...)
	for len(stack) > 0 {
		h := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if _, ok := out[h]; ok {
			continue
		}
		if !s.Has(h) {
			continue
		}
		out[h] = struct{}{}

		kind, data, err := s.Read(h)
		if err != nil {
			return nil, fmt.Errorf("reachable set read %s: %w", h, err)
		}
		refs, err := referencedHashes(kind, data)
		if err != nil {
			return nil, fmt.Errorf("reachable set parse %s (%s): %w", h, kind, err)
		}
		stack = append(stack, refs...)
	}

	return out, nil
}

func referencedHashes(kind Kind, data []byte) ([]Hash, error) {
	switch kind {
	case KindBlob:
		return nil, nil
	case KindCommit:
		c, err := UnmarshalCommit(data)
		if err != nil {
			return nil, err
		}
		refs := make([]Hash, 0, 1+len(c.Parents))
		refs = append(refs, c.Tree)
		refs = append(refs, c.Parents...)
		return refs, nil
	case KindTree:
		tr, err := UnmarshalTree(data)
		if err != nil {
			return nil, err
		}
		refs := make([]Hash, 0, len(tr.Entries))
		for _, e := range tr.Entries {
			refs = append(refs, e.Hash)
		}
		return refs, nil
	default:
		return nil, fmt.Errorf("%w: unknown object kind %d", ErrCorruptObject, kind)
	}
}

// Verify re-reads every stored record, checking its encoding and digest,
// and reports dangling references from trees and commits. All problems are
// collected rather than stopping at the first one.
func (s *Store) Verify() error {
	hashes, err := s.List()
	if err != nil {
		return err
	}
	var result *multierror.Error
	for _, h := range hashes {
		kind, data, err := s.Read(h)
		if err != nil {
			result = multierror.Append(result, err)
			continue
		}
		refs, err := referencedHashes(kind, data)
		if err != nil {
			result = multierror.Append(result, fmt.Errorf("object %s: %w", h, err))
			continue
		}
		for _, ref := range refs {
			if !s.Has(ref) {
				result = multierror.Append(result, fmt.Errorf("object %s references missing %s: %w", h, ref, ErrNotFound))
			}
		}
	}
	return result.ErrorOrNil()
}

func uniqueHashes(in []Hash) []Hash {
	seen := make(map[Hash]struct{}, len(in))
	out := make([]Hash, 0, len(in))
	for _, h := range in {
		if h == "" {
			continue
		}
		if _, ok := seen[h]; ok {
			continue
		}
		seen[h] = struct{}{}
		out = append(out, h)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
