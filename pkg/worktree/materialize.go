package worktree

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path"
	"sort"
	"strings"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/util"

	"github.com/odvcencio/twig/pkg/ignore"
	"github.com/odvcencio/twig/pkg/object"
)

// Materialize makes the working filesystem match the tree exactly:
// unignored files absent from the tree are removed and emptied directories
// pruned, every tree file is written with its mode, and file/directory
// clashes are replaced. Ignored files are left alone unless they occupy a
// path the tree needs.
//
// All blobs are read before the working tree is touched, so a missing or
// corrupt object leaves it unchanged.
func Materialize(r ObjectReader, treeHash object.Hash, fs billy.Filesystem, ignored ignore.Predicate) error {
	if ignored == nil {
		ignored = ignore.None
	}
	target, err := Flatten(r, treeHash)
	if err != nil {
		return fmt.Errorf("materialize: %w", err)
	}
	contents := make(map[string][]byte, len(target))
	for p, f := range target {
		blob, err := r.ReadBlob(f.Hash)
		if err != nil {
			return fmt.Errorf("materialize: read blob for %q: %w", p, err)
		}
		contents[p] = blob.Data
	}

	// Directories the tree needs; a file sitting on one of these is a clash.
	dirs := make(map[string]bool)
	for p := range target {
		for d := path.Dir(p); d != "."; d = path.Dir(d) {
			dirs[d] = true
		}
	}

	var stale []string
	err = walkFiles(fs, "", func(p string, _ os.FileInfo) error {
		if _, keep := target[p]; keep {
			return nil
		}
		if dirs[p] || !ignored(p) {
			stale = append(stale, p)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("materialize: %w", err)
	}
	for _, p := range stale {
		if err := fs.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("materialize: remove %q: %w", p, err)
		}
		removeEmptyParents(fs, path.Dir(p))
	}

	for _, p := range SortedPaths(target) {
		f := target[p]
		if err := writeFile(fs, p, contents[p], filePermFromMode(f.Mode)); err != nil {
			return fmt.Errorf("materialize: %w", err)
		}
	}
	return nil
}

// Apply moves the working tree from one flat snapshot to another, touching
// only the paths that differ: files dropped from to are removed and files
// added or changed are written. Nothing outside the two snapshots is
// touched. Blobs are read before any write.
func Apply(r ObjectReader, fs billy.Filesystem, from, to map[string]FileEntry) error {
	contents := make(map[string][]byte)
	modes := make(map[string]string)
	for p, f := range to {
		if old, ok := from[p]; ok && old.Hash == f.Hash && NormalizeMode(old.Mode) == NormalizeMode(f.Mode) {
			continue
		}
		blob, err := r.ReadBlob(f.Hash)
		if err != nil {
			return fmt.Errorf("apply: read blob for %q: %w", p, err)
		}
		contents[p] = blob.Data
		modes[p] = f.Mode
	}

	for _, p := range SortedPaths(from) {
		if _, keep := to[p]; keep {
			continue
		}
		if err := fs.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("apply: remove %q: %w", p, err)
		}
		removeEmptyParents(fs, path.Dir(p))
	}
	if err := WriteFiles(fs, contents, modes); err != nil {
		return fmt.Errorf("apply: %w", err)
	}
	return nil
}

// WriteFiles writes the given paths into the working tree without removing
// anything else.
func WriteFiles(fs billy.Filesystem, files map[string][]byte, modes map[string]string) error {
	for _, p := range sortedKeys(files) {
		if err := writeFile(fs, p, files[p], filePermFromMode(modes[p])); err != nil {
			return err
		}
	}
	return nil
}

// writeFile replaces whatever occupies p with a regular file holding data.
// Files already matching in content and permission are left untouched.
func writeFile(fs billy.Filesystem, p string, data []byte, perm os.FileMode) error {
	if err := clearParents(fs, p); err != nil {
		return err
	}
	if info, err := fs.Lstat(p); err == nil {
		switch {
		case info.IsDir():
			if err := util.RemoveAll(fs, p); err != nil {
				return fmt.Errorf("replace directory %q: %w", p, err)
			}
		case info.Mode().IsRegular() && info.Mode().Perm()&0o111 == perm&0o111:
			if existing, err := readFile(fs, p); err == nil && bytes.Equal(existing, data) {
				return nil
			}
			if err := fs.Remove(p); err != nil {
				return fmt.Errorf("remove %q: %w", p, err)
			}
		default:
			if err := fs.Remove(p); err != nil {
				return fmt.Errorf("remove %q: %w", p, err)
			}
		}
	}
	if dir := path.Dir(p); dir != "." {
		if err := fs.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("mkdir %q: %w", dir, err)
		}
	}
	if err := util.WriteFile(fs, p, data, perm); err != nil {
		return fmt.Errorf("write %q: %w", p, err)
	}
	return nil
}

// clearParents removes any non-directory occupying an ancestor of p.
func clearParents(fs billy.Filesystem, p string) error {
	parts := strings.Split(p, "/")
	for i := 1; i < len(parts); i++ {
		dir := strings.Join(parts[:i], "/")
		info, err := fs.Lstat(dir)
		if err != nil {
			return nil
		}
		if !info.IsDir() {
			if err := fs.Remove(dir); err != nil {
				return fmt.Errorf("remove %q: %w", dir, err)
			}
			return nil
		}
	}
	return nil
}

// removeEmptyParents removes empty directories up to (but not including)
// the working tree root.
func removeEmptyParents(fs billy.Filesystem, dir string) {
	for dir != "." && dir != "" && dir != "/" {
		infos, err := fs.ReadDir(dir)
		if err != nil || len(infos) > 0 {
			return
		}
		if err := fs.Remove(dir); err != nil {
			return
		}
		dir = path.Dir(dir)
	}
}

func sortedKeys(m map[string][]byte) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
