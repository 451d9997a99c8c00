package repo

import (
	"errors"
	"testing"

	"github.com/odvcencio/twig/pkg/refs"
)

func TestResetHard(t *testing.T) {
	r := newTestRepo(t)
	first := commitFiles(t, r, "first", map[string]string{"a": "1\n", "keep": "k\n"})
	commitFiles(t, r, "second", map[string]string{"a": "2\n", "b": "b\n"})
	writeFile(t, r, "a", "dirty\n")
	writeFile(t, r, "untracked", "u\n")

	h, err := r.Reset(string(first))
	if err != nil {
		t.Fatalf("Reset: %v", err)
	}
	if h != first || headHash(t, r) != first {
		t.Errorf("HEAD = %s, want %s", headHash(t, r), first)
	}
	branch, _ := r.Refs.CurrentBranch()
	if branch != "main" {
		t.Errorf("reset detached HEAD: branch %q", branch)
	}
	assertContents(t, worktreeContents(t, r), map[string]string{"a": "1\n", "keep": "k\n"})

	entries, _ := r.Reflog("main", 1)
	if len(entries) != 1 || entries[0].NewHash != first {
		t.Errorf("reflog = %+v", entries)
	}
}

func TestResetClearsMergeState(t *testing.T) {
	r := newTestRepo(t)
	_, _, main := diverge(t, r,
		map[string]string{"f": "1\n"},
		map[string]string{"f": "3\n"},
		map[string]string{"f": "2\n"},
	)
	if _, err := r.Merge("feature"); !errors.Is(err, ErrMergeConflict) {
		t.Fatalf("Merge: %v", err)
	}

	if _, err := r.Reset("HEAD"); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	if _, merging, _ := r.Refs.MergeHead(); merging {
		t.Error("MERGE_HEAD survived reset")
	}
	if headHash(t, r) != main {
		t.Error("reset to HEAD moved HEAD")
	}
	assertContents(t, worktreeContents(t, r), map[string]string{"f": "2\n"})
}

func TestResetUnknownRevision(t *testing.T) {
	r := newTestRepo(t)
	head := commitFiles(t, r, "first", map[string]string{"a": "a\n"})
	if _, err := r.Reset("nope"); !errors.Is(err, refs.ErrUnknownRef) {
		t.Fatalf("expected ErrUnknownRef, got %v", err)
	}
	if headHash(t, r) != head {
		t.Error("failed reset moved HEAD")
	}
}

func TestCheckoutBranchAndDetached(t *testing.T) {
	r := newTestRepo(t)
	first := commitFiles(t, r, "first", map[string]string{"a": "1\n", ".twigignore": "*.log\n"})
	writeFile(t, r, "ignored.log", "log\n")
	commitFiles(t, r, "second", map[string]string{"a": "2\n", "dir/b": "b\n"})

	if err := r.Checkout(string(first)); err != nil {
		t.Fatalf("Checkout detached: %v", err)
	}
	head, _ := r.Refs.Head()
	if !head.Detached() || head.Hash != first {
		t.Errorf("HEAD = %+v, want detached at %s", head, first)
	}
	got := worktreeContents(t, r)
	if got["a"] != "1\n" {
		t.Errorf("a = %q", got["a"])
	}
	if _, ok := got["dir/b"]; ok {
		t.Error("dir/b should have been removed")
	}
	if _, err := r.Worktree.Stat("dir"); err == nil {
		t.Error("emptied directory dir should be pruned")
	}
	if got["ignored.log"] != "log\n" {
		t.Error("ignored file should survive checkout")
	}

	if err := r.Checkout("main"); err != nil {
		t.Fatalf("Checkout main: %v", err)
	}
	head, _ = r.Refs.Head()
	if head.Branch != "main" {
		t.Errorf("HEAD = %+v, want main", head)
	}
	if readFile(t, r, "dir/b") != "b\n" || readFile(t, r, "ignored.log") != "log\n" {
		t.Error("checkout main did not restore files")
	}
}

func TestCheckoutRefusesDirtyWorktree(t *testing.T) {
	r := newTestRepo(t)
	first := commitFiles(t, r, "first", map[string]string{"a": "1\n"})
	commitFiles(t, r, "second", map[string]string{"a": "2\n"})
	writeFile(t, r, "a", "local\n")

	if err := r.Checkout(string(first)); !errors.Is(err, ErrDirtyWorktree) {
		t.Fatalf("expected ErrDirtyWorktree, got %v", err)
	}
	if readFile(t, r, "a") != "local\n" {
		t.Error("refused checkout touched the working tree")
	}
}

func TestBranchesAndTags(t *testing.T) {
	r := newTestRepo(t)
	first := commitFiles(t, r, "first", map[string]string{"a": "1\n"})
	if _, err := r.CreateTag("v1", ""); err != nil {
		t.Fatalf("CreateTag: %v", err)
	}
	second := commitFiles(t, r, "second", map[string]string{"a": "2\n"})

	if _, err := r.CreateTag("v1", "HEAD"); !errors.Is(err, refs.ErrRefExists) {
		t.Errorf("retag: got %v, want ErrRefExists", err)
	}
	if got, _ := r.Resolve("v1"); got != first {
		t.Errorf("v1 = %s, want %s (tags are immutable)", got, first)
	}

	if _, err := r.CreateBranch("dev", "v1"); err != nil {
		t.Fatalf("CreateBranch: %v", err)
	}
	if _, err := r.CreateBranch("dev", ""); !errors.Is(err, refs.ErrRefExists) {
		t.Errorf("duplicate branch: got %v", err)
	}
	branches, err := r.Branches()
	if err != nil {
		t.Fatalf("Branches: %v", err)
	}
	if len(branches) != 2 || branches[0].Short() != "dev" || branches[1].Hash != second {
		t.Errorf("branches = %+v", branches)
	}

	if err := r.DeleteBranch("main"); !errors.Is(err, refs.ErrCurrentBranch) {
		t.Errorf("delete current branch: got %v", err)
	}
	if err := r.DeleteBranch("dev"); err != nil {
		t.Fatalf("DeleteBranch: %v", err)
	}
	if err := r.DeleteTag("v1"); err != nil {
		t.Fatalf("DeleteTag: %v", err)
	}
	tags, _ := r.Tags()
	if len(tags) != 0 {
		t.Errorf("tags = %+v", tags)
	}
}

func TestCheckoutAndMergeOnDisk(t *testing.T) {
	r, err := Init(t.TempDir(), testOptions())
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	first := commitFiles(t, r, "first", map[string]string{"a": "1\n"})
	for _, name := range []string{"heads", "tags", "feature/x"} {
		if _, err := r.CreateBranch(name, ""); err != nil {
			t.Fatalf("CreateBranch(%q): %v", name, err)
		}
	}

	if err := r.Checkout("feature"); !errors.Is(err, refs.ErrUnknownRef) {
		t.Errorf("Checkout(feature): got %v, want ErrUnknownRef", err)
	}
	if _, err := r.Merge("feature"); !errors.Is(err, refs.ErrUnknownRef) {
		t.Errorf("Merge(feature): got %v, want ErrUnknownRef", err)
	}

	for _, name := range []string{"heads", "tags", "feature/x"} {
		if err := r.Checkout(name); err != nil {
			t.Fatalf("Checkout(%q): %v", name, err)
		}
		head, _ := r.Refs.Head()
		if head.Branch != name || head.Hash != first {
			t.Errorf("HEAD after checkout %q = %+v", name, head)
		}
	}
}
