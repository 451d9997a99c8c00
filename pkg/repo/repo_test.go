package repo

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/util"

	"github.com/odvcencio/twig/pkg/object"
	"github.com/odvcencio/twig/pkg/worktree"
)

func testOptions() Options {
	clock := time.Unix(1700000000, 0)
	return Options{
		Now: func() time.Time {
			clock = clock.Add(time.Minute)
			return clock
		},
		Getenv: func(key string) string {
			switch key {
			case EnvAuthorName:
				return "Ada"
			case EnvAuthorEmail:
				return "ada@example.com"
			}
			return ""
		},
	}
}

func newTestRepo(t *testing.T) *Repo {
	t.Helper()
	r, err := InitFS(memfs.New(), testOptions())
	if err != nil {
		t.Fatalf("InitFS: %v", err)
	}
	return r
}

func writeFile(t *testing.T, r *Repo, p, content string) {
	t.Helper()
	if i := strings.LastIndexByte(p, '/'); i >= 0 {
		if err := r.Worktree.MkdirAll(p[:i], 0o755); err != nil {
			t.Fatalf("MkdirAll: %v", err)
		}
	}
	if err := util.WriteFile(r.Worktree, p, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile %s: %v", p, err)
	}
}

func removeFile(t *testing.T, r *Repo, p string) {
	t.Helper()
	if err := r.Worktree.Remove(p); err != nil {
		t.Fatalf("Remove %s: %v", p, err)
	}
}

func readFile(t *testing.T, r *Repo, p string) string {
	t.Helper()
	data, err := util.ReadFile(r.Worktree, p)
	if err != nil {
		t.Fatalf("ReadFile %s: %v", p, err)
	}
	return string(data)
}

// commitFiles writes files into the working tree and commits them.
func commitFiles(t *testing.T, r *Repo, msg string, files map[string]string) object.Hash {
	t.Helper()
	for p, content := range files {
		writeFile(t, r, p, content)
	}
	h, err := r.Commit(msg)
	if err != nil {
		t.Fatalf("Commit %q: %v", msg, err)
	}
	return h
}

// worktreeContents returns every working tree file and its content.
func worktreeContents(t *testing.T, r *Repo) map[string]string {
	t.Helper()
	files, err := worktree.Scan(r.Worktree, object.HashOnly{}, nil)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	out := make(map[string]string, len(files))
	for p := range files {
		out[p] = readFile(t, r, p)
	}
	return out
}

func assertContents(t *testing.T, got, want map[string]string) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("files = %v, want %v", got, want)
	}
	for p, w := range want {
		if got[p] != w {
			t.Errorf("%s = %q, want %q", p, got[p], w)
		}
	}
}

func headHash(t *testing.T, r *Repo) object.Hash {
	t.Helper()
	head, err := r.Refs.Head()
	if err != nil {
		t.Fatalf("Head: %v", err)
	}
	return head.Hash
}

func TestInitFS(t *testing.T) {
	fs := memfs.New()
	r, err := InitFS(fs, testOptions())
	if err != nil {
		t.Fatalf("InitFS: %v", err)
	}

	head, err := r.Refs.Head()
	if err != nil {
		t.Fatalf("Head: %v", err)
	}
	if head.Branch != "main" || !head.Unborn() {
		t.Errorf("HEAD = %+v, want unborn main", head)
	}
	for _, p := range []string{".twig/objects", ".twig/refs/heads", ".twig/refs/tags", ".twig/HEAD", ".twig/config.toml"} {
		if _, err := fs.Stat(p); err != nil {
			t.Errorf("missing %s: %v", p, err)
		}
	}

	if _, err := InitFS(fs, testOptions()); !errors.Is(err, ErrAlreadyInitialized) {
		t.Errorf("second init: got %v, want ErrAlreadyInitialized", err)
	}
	if _, err := OpenFS(fs, testOptions()); err != nil {
		t.Errorf("OpenFS: %v", err)
	}
	if _, err := OpenFS(memfs.New(), testOptions()); !errors.Is(err, ErrNotARepository) {
		t.Errorf("OpenFS on empty fs: got %v, want ErrNotARepository", err)
	}
}

func TestOpenSearchesUpward(t *testing.T) {
	dir := t.TempDir()
	if _, err := Init(dir, testOptions()); err != nil {
		t.Fatalf("Init: %v", err)
	}
	sub := filepath.Join(dir, "a", "b")
	if err := os.MkdirAll(sub, 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}

	r, err := Open(sub, testOptions())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	want, _ := filepath.Abs(dir)
	if r.Root != want {
		t.Errorf("Root = %q, want %q", r.Root, want)
	}

	if _, err := Open(t.TempDir(), testOptions()); !errors.Is(err, ErrNotARepository) {
		t.Errorf("Open outside a repository: got %v", err)
	}
}

func TestOnDiskRoundTrip(t *testing.T) {
	dir := t.TempDir()
	r, err := Init(dir, testOptions())
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "hello.txt"), []byte("hello\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	h, err := r.Commit("first")
	if err != nil {
		t.Fatalf("Commit: %v", err)
	}

	reopened, err := Open(dir, testOptions())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	got, err := reopened.Resolve("main")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if got != h {
		t.Errorf("main = %s, want %s", got, h)
	}
	if err := reopened.Verify(); err != nil {
		t.Errorf("Verify: %v", err)
	}
}

func TestConfigRoundTrip(t *testing.T) {
	r := newTestRepo(t)
	r.Config.User.Name = "Grace"
	r.Config.Merge.Tool = "kdiff3 --auto"
	r.Config.Core.Compression = "none"
	if err := r.SaveConfig(); err != nil {
		t.Fatalf("SaveConfig: %v", err)
	}

	cfg, err := ReadConfig(r.Control)
	if err != nil {
		t.Fatalf("ReadConfig: %v", err)
	}
	if cfg.User.Name != "Grace" || cfg.Merge.Tool != "kdiff3 --auto" || cfg.Core.Compression != "none" {
		t.Errorf("config = %+v", cfg)
	}
	if cfg.Core.DefaultBranch != "main" {
		t.Errorf("default branch = %q", cfg.Core.DefaultBranch)
	}
}

func TestReadConfigDefaults(t *testing.T) {
	fs := memfs.New()
	cfg, err := ReadConfig(fs)
	if err != nil {
		t.Fatalf("ReadConfig: %v", err)
	}
	if cfg.Core.DefaultBranch != "main" || cfg.Core.Compression != "zstd" {
		t.Errorf("defaults = %+v", cfg)
	}

	if err := util.WriteFile(fs, configFile, []byte("[core]\ncompression = \"lz4\"\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	cfg, err = ReadConfig(fs)
	if err != nil {
		t.Fatalf("ReadConfig: %v", err)
	}
	if _, err := cfg.compression(); err == nil {
		t.Error("expected an error for unknown compression")
	}

	if err := util.WriteFile(fs, configFile, []byte("[core\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if _, err := ReadConfig(fs); err == nil {
		t.Error("expected a decode error")
	}
}

func TestAuthorOverrides(t *testing.T) {
	r := newTestRepo(t)
	r.Config.User = UserConfig{Name: "Config Name", Email: "config@example.com"}

	got, err := r.Author()
	if err != nil {
		t.Fatalf("Author: %v", err)
	}
	if got != "Ada <ada@example.com>" {
		t.Errorf("Author = %q, environment should win", got)
	}

	r.getenv = func(string) string { return "" }
	if got, _ := r.Author(); got != "Config Name <config@example.com>" {
		t.Errorf("Author = %q", got)
	}

	r.Config.User = UserConfig{}
	if _, err := r.Author(); !errors.Is(err, ErrNoAuthor) {
		t.Errorf("Author without identity: got %v", err)
	}
}
