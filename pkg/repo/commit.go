package repo

import (
	"fmt"
	"strings"

	"github.com/odvcencio/twig/pkg/object"
	"github.com/odvcencio/twig/pkg/worktree"
)

// Commit snapshots the whole working tree and records it on top of HEAD,
// signing it when commit.signing_key is configured. While a merge is in
// progress the recorded MERGE_HEAD becomes the second parent and is
// cleared afterwards.
func (r *Repo) Commit(message string) (object.Hash, error) {
	signer, err := r.signer()
	if err != nil {
		return "", fmt.Errorf("commit: %w", err)
	}
	return r.CommitWithSigner(message, signer)
}

// CommitWithSigner is Commit with an explicit signer; nil disables signing.
func (r *Repo) CommitWithSigner(message string, signer CommitSigner) (object.Hash, error) {
	if strings.TrimSpace(message) == "" {
		return "", fmt.Errorf("commit: %w", ErrEmptyMessage)
	}
	if !strings.HasSuffix(message, "\n") {
		message += "\n"
	}
	author, err := r.Author()
	if err != nil {
		return "", fmt.Errorf("commit: %w", err)
	}

	ignored, err := r.ignored()
	if err != nil {
		return "", fmt.Errorf("commit: %w", err)
	}
	tree, err := worktree.Build(r.Worktree, r.Store, ignored)
	if err != nil {
		return "", fmt.Errorf("commit: %w", err)
	}

	head, headTree, err := r.headTree()
	if err != nil {
		return "", fmt.Errorf("commit: %w", err)
	}
	mergeHead, merging, err := r.Refs.MergeHead()
	if err != nil {
		return "", fmt.Errorf("commit: %w", err)
	}
	if !merging && head.Hash != "" && tree == headTree {
		return "", fmt.Errorf("commit: %w", ErrNothingToCommit)
	}

	var parents []object.Hash
	if head.Hash != "" {
		parents = append(parents, head.Hash)
	}
	if merging {
		parents = append(parents, mergeHead)
	}

	c := &object.Commit{
		Tree:      tree,
		Parents:   parents,
		Author:    author,
		Timestamp: r.now().Unix(),
		Message:   message,
	}
	h, err := writeCommit(r.Store, c, signer)
	if err != nil {
		return "", fmt.Errorf("commit: %w", err)
	}

	if err := r.Refs.Advance(h, "commit: "+firstLine(message)); err != nil {
		return "", fmt.Errorf("commit: %w", err)
	}
	if merging {
		if err := r.Refs.ClearMergeHead(); err != nil {
			return "", fmt.Errorf("commit: %w", err)
		}
	}
	r.log.Info("committed", "hash", h.Short(), "tree", tree.Short(), "parents", len(parents), "signed", signer != nil)
	return h, nil
}

// writeCommit signs c when signer is set and stores it.
func writeCommit(s *object.Store, c *object.Commit, signer CommitSigner) (object.Hash, error) {
	if signer != nil {
		payload, err := object.CommitSigningPayload(c)
		if err != nil {
			return "", err
		}
		if c.Signature, err = signer(payload); err != nil {
			return "", fmt.Errorf("sign commit: %w", err)
		}
	}
	h, err := s.WriteCommit(c)
	if err != nil {
		return "", fmt.Errorf("write commit: %w", err)
	}
	return h, nil
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(s, "\n")
	return strings.TrimSpace(line)
}
