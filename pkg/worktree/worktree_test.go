package worktree

import (
	"errors"
	"strings"
	"testing"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/util"

	"github.com/odvcencio/twig/pkg/ignore"
	"github.com/odvcencio/twig/pkg/object"
)

func setupFS(t *testing.T, files map[string]string) billy.Filesystem {
	t.Helper()
	fs := memfs.New()
	for p, content := range files {
		if dir := parentDir(p); dir != "" {
			if err := fs.MkdirAll(dir, 0o755); err != nil {
				t.Fatalf("MkdirAll: %v", err)
			}
		}
		if err := util.WriteFile(fs, p, []byte(content), 0o644); err != nil {
			t.Fatalf("WriteFile %s: %v", p, err)
		}
	}
	return fs
}

func parentDir(p string) string {
	if i := strings.LastIndexByte(p, '/'); i >= 0 {
		return p[:i]
	}
	return ""
}

func newStore() *object.Store {
	return object.NewStore(memfs.New())
}

func snapshot(t *testing.T, fs billy.Filesystem) map[string]string {
	t.Helper()
	out := make(map[string]string)
	files, err := Scan(fs, object.HashOnly{}, nil)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	for p := range files {
		data, err := util.ReadFile(fs, p)
		if err != nil {
			t.Fatalf("ReadFile %s: %v", p, err)
		}
		out[p] = string(data)
	}
	return out
}

func TestBuildDeterministic(t *testing.T) {
	files := map[string]string{
		"README.md":       "hello\n",
		"src/main.go":     "package main\n",
		"src/lib/util.go": "package lib\n",
	}
	s1, s2 := newStore(), newStore()
	h1, err := Build(setupFS(t, files), s1, nil)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	h2, err := Build(setupFS(t, files), s2, nil)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if h1 != h2 {
		t.Errorf("identical content produced different trees: %s vs %s", h1, h2)
	}

	h3, err := Build(setupFS(t, files), object.HashOnly{}, nil)
	if err != nil {
		t.Fatalf("Build HashOnly: %v", err)
	}
	if h3 != h1 {
		t.Errorf("HashOnly build differs from stored build: %s vs %s", h3, h1)
	}
}

func TestBuildSkipsIgnoredAndEmptyDirs(t *testing.T) {
	fs := setupFS(t, map[string]string{
		"keep.txt":           "keep",
		"debug.log":          "noise",
		"logs/only.log":      "noise",
		".twig/HEAD":         "ref: refs/heads/main\n",
		".twigignore":        "*.log\n",
		"src/app/handler.go": "package app\n",
	})
	if err := fs.MkdirAll("empty/nested", 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	m, err := ignore.Load(fs, ControlDir)
	if err != nil {
		t.Fatalf("ignore.Load: %v", err)
	}
	s := newStore()
	root, err := Build(fs, s, m.Predicate())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	flat, err := Flatten(s, root)
	if err != nil {
		t.Fatalf("Flatten: %v", err)
	}
	want := []string{".twigignore", "keep.txt", "src/app/handler.go"}
	got := SortedPaths(flat)
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("Flatten paths: got %v, want %v", got, want)
	}

	tr, err := s.ReadTree(root)
	if err != nil {
		t.Fatalf("ReadTree: %v", err)
	}
	for _, name := range []string{"logs", "empty", ControlDir} {
		if _, ok := tr.Find(name); ok {
			t.Errorf("root tree should not contain %q", name)
		}
	}
}

func TestBuildEmptyWorkingTree(t *testing.T) {
	s := newStore()
	root, err := Build(memfs.New(), s, nil)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	want, _ := object.HashObject(object.KindTree, nil)
	if root != want {
		t.Errorf("empty tree hash: got %s, want %s", root, want)
	}
}

func TestBuildExecutableMode(t *testing.T) {
	fs := memfs.New()
	if err := util.WriteFile(fs, "run.sh", []byte("#!/bin/sh\n"), 0o755); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	s := newStore()
	root, err := Build(fs, s, nil)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	e, ok, err := EntryAtPath(s, root, "run.sh")
	if err != nil || !ok {
		t.Fatalf("EntryAtPath: %v %v", ok, err)
	}
	if e.Mode != object.ModeExecutable {
		t.Errorf("mode: got %s, want %s", e.Mode, object.ModeExecutable)
	}
}

func TestMaterializeRoundTrip(t *testing.T) {
	files := map[string]string{
		"a.txt":       "alpha\n",
		"dir/b.txt":   "beta\n",
		"dir/c/d.txt": "delta\n",
	}
	s := newStore()
	root, err := Build(setupFS(t, files), s, nil)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	// Start from a working tree with extra files and a type clash.
	dest := setupFS(t, map[string]string{
		"stale.txt":     "remove me",
		"old/deep.txt":  "remove me too",
		"dir/c":         "file where a directory belongs",
		"a.txt/inner":   "directory where a file belongs",
		".twig/config":  "untouched",
		"notes.private": "ignored",
	})
	ignored := func(p string) bool { return strings.HasSuffix(p, ".private") }
	if err := Materialize(s, root, dest, ignored); err != nil {
		t.Fatalf("Materialize: %v", err)
	}

	got := snapshot(t, dest)
	want := map[string]string{
		"a.txt":         "alpha\n",
		"dir/b.txt":     "beta\n",
		"dir/c/d.txt":   "delta\n",
		"notes.private": "ignored",
	}
	if len(got) != len(want) {
		t.Errorf("working tree files: got %v, want %v", got, want)
	}
	for p, content := range want {
		if got[p] != content {
			t.Errorf("%s: got %q, want %q", p, got[p], content)
		}
	}
	if _, err := dest.Stat("old"); err == nil {
		t.Error("emptied directory old/ should be pruned")
	}
	if data, err := util.ReadFile(dest, ".twig/config"); err != nil || string(data) != "untouched" {
		t.Error("control directory must not be touched")
	}

	// Round trip: building the materialized tree gives the same hash.
	again, err := Build(dest, object.HashOnly{}, ignored)
	if err != nil {
		t.Fatalf("Build after materialize: %v", err)
	}
	if again != root {
		t.Errorf("round trip hash: got %s, want %s", again, root)
	}
}

func TestMaterializeMissingBlobLeavesTreeUntouched(t *testing.T) {
	s := newStore()
	missing := object.Hash(strings.Repeat("d", object.HashHexLen))
	root, err := s.WriteTree(&object.Tree{Entries: []object.TreeEntry{
		{Mode: object.ModeFile, Kind: object.KindBlob, Name: "gone.txt", Hash: missing},
	}})
	if err != nil {
		t.Fatalf("WriteTree: %v", err)
	}
	dest := setupFS(t, map[string]string{"existing.txt": "still here"})
	err = Materialize(s, root, dest, nil)
	if !errors.Is(err, object.ErrNotFound) {
		t.Fatalf("Materialize: got %v, want ErrNotFound", err)
	}
	if _, err := dest.Stat("existing.txt"); err != nil {
		t.Error("working tree should be unchanged after a failed materialize")
	}
}

func TestMaterializeWrongKind(t *testing.T) {
	s := newStore()
	commit, err := s.WriteCommit(&object.Commit{
		Tree:      object.Hash(strings.Repeat("e", object.HashHexLen)),
		Author:    "a",
		Timestamp: 1,
	})
	if err != nil {
		t.Fatalf("WriteCommit: %v", err)
	}
	root, err := s.WriteTree(&object.Tree{Entries: []object.TreeEntry{
		{Mode: object.ModeFile, Kind: object.KindBlob, Name: "f", Hash: commit},
	}})
	if err != nil {
		t.Fatalf("WriteTree: %v", err)
	}
	err = Materialize(s, root, memfs.New(), nil)
	if !errors.Is(err, object.ErrCorruptObject) {
		t.Fatalf("Materialize: got %v, want ErrCorruptObject", err)
	}
}

func TestBuildFromEntriesRejectsCollision(t *testing.T) {
	h := object.Hash(strings.Repeat("a", object.HashHexLen))
	_, err := BuildFromEntries(object.HashOnly{}, map[string]FileEntry{
		"x":   {Mode: object.ModeFile, Hash: h},
		"x/y": {Mode: object.ModeFile, Hash: h},
	})
	if err == nil {
		t.Fatal("expected file/directory collision error")
	}
}

func TestEntryAtPath(t *testing.T) {
	s := newStore()
	root, err := Build(setupFS(t, map[string]string{"a/b/c.txt": "c"}), s, nil)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if e, ok, err := EntryAtPath(s, root, "a/b"); err != nil || !ok || !e.IsDir() {
		t.Errorf("EntryAtPath(a/b): %+v %v %v", e, ok, err)
	}
	if _, ok, err := EntryAtPath(s, root, "a/b/c.txt/d"); err != nil || ok {
		t.Errorf("path through a file should not resolve: %v %v", ok, err)
	}
	if _, ok, _ := EntryAtPath(s, root, "missing"); ok {
		t.Error("missing path should not resolve")
	}
}

func TestWriteFilesKeepsOthers(t *testing.T) {
	fs := setupFS(t, map[string]string{"other.txt": "other"})
	err := WriteFiles(fs, map[string][]byte{"x/conflict.txt": []byte("<<<<<<<\n")}, map[string]string{})
	if err != nil {
		t.Fatalf("WriteFiles: %v", err)
	}
	got := snapshot(t, fs)
	if got["other.txt"] != "other" || got["x/conflict.txt"] != "<<<<<<<\n" {
		t.Errorf("WriteFiles result: %v", got)
	}
}

func TestApplyTouchesOnlyDifferences(t *testing.T) {
	s := newStore()
	from, err := Scan(setupFS(t, map[string]string{
		"keep.txt":     "same",
		"change.txt":   "old",
		"gone/old.txt": "bye",
	}), s, nil)
	if err != nil {
		t.Fatalf("Scan from: %v", err)
	}
	to, err := Scan(setupFS(t, map[string]string{
		"keep.txt":    "same",
		"change.txt":  "new",
		"add/new.txt": "hi",
	}), s, nil)
	if err != nil {
		t.Fatalf("Scan to: %v", err)
	}

	fs := setupFS(t, map[string]string{
		"keep.txt":     "locally edited",
		"change.txt":   "old",
		"gone/old.txt": "bye",
		"untracked":    "stay",
	})
	if err := Apply(s, fs, from, to); err != nil {
		t.Fatalf("Apply: %v", err)
	}

	want := map[string]string{
		"keep.txt":    "locally edited",
		"change.txt":  "new",
		"add/new.txt": "hi",
		"untracked":   "stay",
	}
	got := snapshot(t, fs)
	if len(got) != len(want) {
		t.Fatalf("Apply result: %v", got)
	}
	for p, content := range want {
		if got[p] != content {
			t.Errorf("%s = %q, want %q", p, got[p], content)
		}
	}
	if _, err := fs.Stat("gone"); err == nil {
		t.Error("emptied directory should be pruned")
	}
}

func TestBuildSkipsUnrepresentableNames(t *testing.T) {
	fs := setupFS(t, map[string]string{
		"ok.txt":        "ok\n",
		"bad\nname":     "skipped\n",
		"odd\ndir/f":    "skipped\n",
		"sub/also\nbad": "skipped\n",
	})
	s := newStore()
	root, err := Build(fs, s, nil)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	flat, err := Flatten(s, root)
	if err != nil {
		t.Fatalf("Flatten: %v", err)
	}
	if got := SortedPaths(flat); len(got) != 1 || got[0] != "ok.txt" {
		t.Fatalf("Flatten paths = %q", got)
	}

	if err := Materialize(s, root, fs, nil); err != nil {
		t.Fatalf("Materialize: %v", err)
	}
	for _, p := range []string{"bad\nname", "odd\ndir/f", "sub/also\nbad"} {
		if _, err := fs.Stat(p); err != nil {
			t.Errorf("Materialize removed %q: %v", p, err)
		}
	}
}
