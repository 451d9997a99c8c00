package refs

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/odvcencio/twig/pkg/object"
)

// Head describes what HEAD points at. Branch is set when HEAD is symbolic;
// Hash is empty only while that branch is unborn.
type Head struct {
	Branch string
	Hash   object.Hash
}

// Detached reports whether HEAD holds a raw commit hash.
func (h Head) Detached() bool { return h.Branch == "" }

// Unborn reports whether HEAD names a branch with no commits yet.
func (h Head) Unborn() bool { return h.Branch != "" && h.Hash == "" }

// String renders HEAD the way it is stored.
func (h Head) String() string {
	if h.Detached() {
		return string(h.Hash)
	}
	return "ref: " + HeadsPrefix + h.Branch
}

// Head reads HEAD.
func (m *Manager) Head() (Head, error) {
	data, err := m.readFile(headFile)
	if err != nil {
		return Head{}, fmt.Errorf("read HEAD: %w", err)
	}
	content := strings.TrimSpace(string(data))

	if target, ok := strings.CutPrefix(content, "ref: "); ok {
		branch, ok := strings.CutPrefix(target, HeadsPrefix)
		if !ok {
			return Head{}, fmt.Errorf("read HEAD: symbolic target %q is not a branch", target)
		}
		h, err := m.Read(target)
		if errors.Is(err, ErrNotFound) {
			return Head{Branch: branch}, nil
		}
		if err != nil {
			return Head{}, fmt.Errorf("read HEAD: %w", err)
		}
		return Head{Branch: branch, Hash: h}, nil
	}

	h, err := object.ParseHash(content)
	if err != nil {
		return Head{}, fmt.Errorf("read HEAD: %w", err)
	}
	return Head{Hash: h}, nil
}

// CurrentBranch returns the checked-out branch name, or "" when detached.
func (m *Manager) CurrentBranch() (string, error) {
	head, err := m.Head()
	if err != nil {
		return "", err
	}
	return head.Branch, nil
}

// SetHeadBranch makes HEAD a symbolic ref to refs/heads/<name>. The branch
// does not need to exist yet.
func (m *Manager) SetHeadBranch(name string) error {
	if err := ValidateName(name); err != nil {
		return fmt.Errorf("set HEAD: %w", err)
	}
	old, _ := m.Head()
	if err := m.writeFile(headFile, "ref: "+HeadsPrefix+name+"\n"); err != nil {
		return fmt.Errorf("set HEAD: %w", err)
	}
	m.logger.Debug("HEAD moved", "from", old.String(), "branch", name)
	return nil
}

// SetHeadDetached points HEAD directly at a commit.
func (m *Manager) SetHeadDetached(h object.Hash, reason string) error {
	if !object.IsHash(string(h)) {
		return fmt.Errorf("set HEAD: invalid hash %q", h)
	}
	old, _ := m.Head()
	if err := m.writeFile(headFile, string(h)+"\n"); err != nil {
		return fmt.Errorf("set HEAD: %w", err)
	}
	if err := m.appendReflog(headFile, old.Hash, h, reason); err != nil {
		return fmt.Errorf("set HEAD: %w", err)
	}
	m.logger.Debug("HEAD detached", "from", old.String(), "hash", h.Short(), "reason", reason)
	return nil
}

// Advance moves whatever HEAD designates to h: the current branch when
// symbolic (creating it if unborn), HEAD itself when detached.
func (m *Manager) Advance(h object.Hash, reason string) error {
	head, err := m.Head()
	if err != nil {
		return err
	}
	if head.Detached() {
		return m.SetHeadDetached(h, reason)
	}
	return m.UpdateBranch(head.Branch, h, reason)
}

// SetMergeHead records the other side of a conflicted merge.
func (m *Manager) SetMergeHead(h object.Hash) error {
	if !object.IsHash(string(h)) {
		return fmt.Errorf("set MERGE_HEAD: invalid hash %q", h)
	}
	if err := m.writeFile(mergeHeadFile, string(h)+"\n"); err != nil {
		return fmt.Errorf("set MERGE_HEAD: %w", err)
	}
	return nil
}

// MergeHead returns the recorded merge partner; ok is false when no merge
// is in progress.
func (m *Manager) MergeHead() (h object.Hash, ok bool, err error) {
	data, err := m.readFile(mergeHeadFile)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("read MERGE_HEAD: %w", err)
	}
	h, err = object.ParseHash(strings.TrimSpace(string(data)))
	if err != nil {
		return "", false, fmt.Errorf("read MERGE_HEAD: %w", err)
	}
	return h, true, nil
}

// ClearMergeHead removes MERGE_HEAD if present.
func (m *Manager) ClearMergeHead() error {
	if err := m.fs.Remove(mergeHeadFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("clear MERGE_HEAD: %w", err)
	}
	return nil
}
