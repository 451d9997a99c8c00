package repo

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/pem"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"golang.org/x/crypto/ssh"
)

func TestCommitFirstAndSecond(t *testing.T) {
	r := newTestRepo(t)

	first := commitFiles(t, r, "first", map[string]string{"a.txt": "a\n", "dir/b.txt": "b\n"})
	c, err := r.Graph.Commit(first)
	if err != nil {
		t.Fatalf("Commit lookup: %v", err)
	}
	if len(c.Parents) != 0 {
		t.Errorf("root commit has parents %v", c.Parents)
	}
	if c.Author != "Ada <ada@example.com>" || c.Message != "first\n" {
		t.Errorf("commit = %+v", c)
	}
	if headHash(t, r) != first {
		t.Errorf("HEAD = %s, want %s", headHash(t, r), first)
	}

	second := commitFiles(t, r, "second\n", map[string]string{"a.txt": "A\n"})
	c, err = r.Graph.Commit(second)
	if err != nil {
		t.Fatalf("Commit lookup: %v", err)
	}
	if len(c.Parents) != 1 || c.Parents[0] != first {
		t.Errorf("parents = %v, want [%s]", c.Parents, first)
	}

	entries, err := r.Reflog("", 0)
	if err != nil {
		t.Fatalf("Reflog: %v", err)
	}
	if len(entries) != 2 || entries[0].NewHash != second || entries[0].Reason != "commit: second" {
		t.Errorf("reflog = %+v", entries)
	}
}

func TestCommitRefusals(t *testing.T) {
	r := newTestRepo(t)
	if _, err := r.Commit("  \n"); !errors.Is(err, ErrEmptyMessage) {
		t.Errorf("empty message: got %v", err)
	}

	commitFiles(t, r, "first", map[string]string{"a": "a\n"})
	if _, err := r.Commit("again"); !errors.Is(err, ErrNothingToCommit) {
		t.Errorf("unchanged tree: got %v", err)
	}

	writeFile(t, r, "a", "changed\n")
	r.getenv = func(string) string { return "" }
	if _, err := r.Commit("no author"); !errors.Is(err, ErrNoAuthor) {
		t.Errorf("missing author: got %v", err)
	}
}

func TestCommitHonoursIgnoreFile(t *testing.T) {
	r := newTestRepo(t)
	h := commitFiles(t, r, "ignore logs", map[string]string{
		".twigignore": "*.log\nbuild/\n",
		"main.go":     "package main\n",
		"debug.log":   "noise\n",
		"build/out":   "binary\n",
	})

	show, err := r.Show(string(h))
	if err != nil {
		t.Fatalf("Show: %v", err)
	}
	var paths []string
	for _, c := range show.Changes {
		paths = append(paths, c.Path)
	}
	if len(paths) != 2 || paths[0] != ".twigignore" || paths[1] != "main.go" {
		t.Errorf("committed paths = %v", paths)
	}
}

func newTestKey(t *testing.T) []byte {
	t.Helper()
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	block, err := ssh.MarshalPrivateKey(priv, "")
	if err != nil {
		t.Fatalf("MarshalPrivateKey: %v", err)
	}
	return pem.EncodeToMemory(block)
}

func TestCommitSigned(t *testing.T) {
	r := newTestRepo(t)
	keyPath := filepath.Join(t.TempDir(), "id_ed25519")
	if err := os.WriteFile(keyPath, newTestKey(t), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	r.Config.Commit.SigningKey = keyPath

	h := commitFiles(t, r, "signed", map[string]string{"a": "a\n"})
	c, err := r.Graph.Commit(h)
	if err != nil {
		t.Fatalf("Commit lookup: %v", err)
	}
	if c.Signature == "" {
		t.Fatal("commit was not signed")
	}
	if _, err := VerifyCommitSignature(c); err != nil {
		t.Fatalf("VerifyCommitSignature: %v", err)
	}

	tampered := *c
	tampered.Message = "forged\n"
	if _, err := VerifyCommitSignature(&tampered); !errors.Is(err, ErrBadSignature) {
		t.Errorf("tampered commit: got %v, want ErrBadSignature", err)
	}

	tampered.Signature = ""
	if _, err := VerifyCommitSignature(&tampered); !errors.Is(err, ErrUnsigned) {
		t.Errorf("unsigned commit: got %v, want ErrUnsigned", err)
	}
}

func TestParseSSHSignerRejectsGarbage(t *testing.T) {
	if _, err := ParseSSHSigner([]byte("not a key")); err == nil {
		t.Fatal("expected parse error")
	}
}
