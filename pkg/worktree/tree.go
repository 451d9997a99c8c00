// Package worktree converts between a working directory and tree objects.
package worktree

import (
	"fmt"
	"path"
	"sort"
	"strings"

	"github.com/odvcencio/twig/pkg/object"
)

// ControlDir is the repository metadata directory at the root of every
// working tree. It is never captured or touched by Materialize.
const ControlDir = ".twig"

// FileEntry represents a single file in a flattened tree.
type FileEntry struct {
	Path string
	Mode string
	Hash object.Hash
}

// ObjectReader is the subset of the object store needed to read trees back.
type ObjectReader interface {
	ReadTree(h object.Hash) (*object.Tree, error)
	ReadBlob(h object.Hash) (*object.Blob, error)
}

// BuildFromEntries converts a flat path-to-entry map into a hierarchical
// tree, writing every tree object through w and returning the root hash.
// Paths use forward slashes. A path that is both a file and a directory
// prefix of another path is rejected.
func BuildFromEntries(w object.Writer, files map[string]FileEntry) (object.Hash, error) {
	root := newDirNode()
	for p, f := range files {
		if err := root.insert(p, f); err != nil {
			return "", err
		}
	}
	return root.write(w, "")
}

type dirNode struct {
	files   map[string]FileEntry
	subdirs map[string]*dirNode
}

func newDirNode() *dirNode {
	return &dirNode{files: make(map[string]FileEntry), subdirs: make(map[string]*dirNode)}
}

func (d *dirNode) insert(p string, f FileEntry) error {
	parts := strings.Split(p, "/")
	cur := d
	for i, part := range parts {
		if err := object.ValidateEntryName(part); err != nil {
			return fmt.Errorf("build tree %q: %w", p, err)
		}
		if i == len(parts)-1 {
			if _, isDir := cur.subdirs[part]; isDir {
				return fmt.Errorf("build tree: %q is both a file and a directory", p)
			}
			f.Path = p
			f.Mode = NormalizeMode(f.Mode)
			cur.files[part] = f
			return nil
		}
		if _, isFile := cur.files[part]; isFile {
			return fmt.Errorf("build tree: %q is both a file and a directory", strings.Join(parts[:i+1], "/"))
		}
		next, ok := cur.subdirs[part]
		if !ok {
			next = newDirNode()
			cur.subdirs[part] = next
		}
		cur = next
	}
	return nil
}

func (d *dirNode) write(w object.Writer, prefix string) (object.Hash, error) {
	entries := make([]object.TreeEntry, 0, len(d.files)+len(d.subdirs))
	for name, f := range d.files {
		entries = append(entries, object.TreeEntry{
			Mode: f.Mode,
			Kind: object.KindBlob,
			Name: name,
			Hash: f.Hash,
		})
	}
	for name, sub := range d.subdirs {
		subHash, err := sub.write(w, path.Join(prefix, name))
		if err != nil {
			return "", err
		}
		entries = append(entries, object.TreeEntry{
			Mode: object.ModeDir,
			Kind: object.KindTree,
			Name: name,
			Hash: subHash,
		})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })

	h, err := object.WriteObject(w, &object.Tree{Entries: entries})
	if err != nil {
		return "", fmt.Errorf("write tree (prefix=%q): %w", prefix, err)
	}
	return h, nil
}

// Flatten walks a tree object recursively, returning all file entries keyed
// by their full forward-slash path.
func Flatten(r ObjectReader, h object.Hash) (map[string]FileEntry, error) {
	out := make(map[string]FileEntry)
	if err := flattenRec(r, h, "", out); err != nil {
		return nil, err
	}
	return out, nil
}

func flattenRec(r ObjectReader, h object.Hash, prefix string, out map[string]FileEntry) error {
	tr, err := r.ReadTree(h)
	if err != nil {
		return fmt.Errorf("flatten tree: read %s: %w", h, err)
	}
	for _, e := range tr.Entries {
		full := path.Join(prefix, e.Name)
		if e.IsDir() {
			if err := flattenRec(r, e.Hash, full, out); err != nil {
				return err
			}
			continue
		}
		out[full] = FileEntry{Path: full, Mode: e.Mode, Hash: e.Hash}
	}
	return nil
}

// SortedPaths returns the keys of files in byte order.
func SortedPaths(files map[string]FileEntry) []string {
	paths := make([]string, 0, len(files))
	for p := range files {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// EntryAtPath returns the tree entry at relPath, which may name a file or a
// directory. The boolean is false if nothing exists there.
func EntryAtPath(r ObjectReader, treeHash object.Hash, relPath string) (object.TreeEntry, bool, error) {
	parts := strings.Split(strings.Trim(relPath, "/"), "/")
	current := treeHash

	for i, part := range parts {
		tr, err := r.ReadTree(current)
		if err != nil {
			return object.TreeEntry{}, false, fmt.Errorf("read tree %s: %w", current, err)
		}
		entry, found := tr.Find(part)
		if !found {
			return object.TreeEntry{}, false, nil
		}
		if i == len(parts)-1 {
			return entry, true, nil
		}
		if !entry.IsDir() {
			return object.TreeEntry{}, false, nil
		}
		current = entry.Hash
	}
	return object.TreeEntry{}, false, nil
}
