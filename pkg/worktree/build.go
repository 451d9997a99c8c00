package worktree

import (
	"fmt"
	"io"
	"os"

	"github.com/go-git/go-billy/v5"

	"github.com/odvcencio/twig/pkg/ignore"
	"github.com/odvcencio/twig/pkg/object"
)

// Build snapshots the working filesystem into a tree graph and returns the
// root tree hash. Blobs and trees go through w; pass object.HashOnly to
// compute the hash without persisting anything. Directories with no
// unignored files produce no entry, so an empty working tree yields the
// empty tree.
func Build(fs billy.Filesystem, w object.Writer, ignored ignore.Predicate) (object.Hash, error) {
	files, err := Scan(fs, w, ignored)
	if err != nil {
		return "", err
	}
	return BuildFromEntries(w, files)
}

// Scan hashes every unignored regular file under fs, writing each blob
// through w, and returns the flat file listing. Symlinks and other special
// files are skipped.
func Scan(fs billy.Filesystem, w object.Writer, ignored ignore.Predicate) (map[string]FileEntry, error) {
	if ignored == nil {
		ignored = ignore.None
	}
	out := make(map[string]FileEntry)
	err := walkFiles(fs, "", func(p string, info os.FileInfo) error {
		if ignored(p) {
			return nil
		}
		data, err := readFile(fs, p)
		if err != nil {
			return fmt.Errorf("read %q: %w", p, err)
		}
		h, err := w.Write(object.KindBlob, data)
		if err != nil {
			return fmt.Errorf("write blob %q: %w", p, err)
		}
		out[p] = FileEntry{Path: p, Mode: modeFromFileInfo(info), Hash: h}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan working tree: %w", err)
	}
	return out, nil
}

// walkFiles calls fn for every regular file below dir, skipping the control
// directory at the root and any file or directory whose name contains a
// newline.
func walkFiles(fs billy.Filesystem, dir string, fn func(p string, info os.FileInfo) error) error {
	infos, err := fs.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("read dir %q: %w", dir, err)
	}
	for _, info := range infos {
		name := info.Name()
		if dir == "" && name == ControlDir {
			continue
		}
		// Names a tree entry cannot hold are treated like ignored paths.
		if object.ValidateEntryName(name) != nil {
			continue
		}
		p := name
		if dir != "" {
			p = dir + "/" + name
		}
		switch {
		case info.IsDir():
			if err := walkFiles(fs, p, fn); err != nil {
				return err
			}
		case info.Mode().IsRegular():
			if err := fn(p, info); err != nil {
				return err
			}
		}
	}
	return nil
}

func readFile(fs billy.Filesystem, p string) ([]byte, error) {
	f, err := fs.Open(p)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}
