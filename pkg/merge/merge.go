// Package merge performs three-way merges of tree objects.
package merge

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"path"
	"sort"
	"strings"

	"github.com/odvcencio/twig/pkg/diff3"
	"github.com/odvcencio/twig/pkg/mergetool"
	"github.com/odvcencio/twig/pkg/object"
	"github.com/odvcencio/twig/pkg/worktree"
)

// Store is the object access a tree merge needs.
type Store interface {
	object.Writer
	worktree.ObjectReader
}

// ConflictKind says why a path could not be merged.
type ConflictKind int

const (
	ConflictContent       ConflictKind = iota // both sides edited the same lines
	ConflictAddAdd                            // both sides added different content
	ConflictDeleteModify                      // one side deleted, the other modified
	ConflictBinary                            // binary content changed on both sides
	ConflictMode                              // file mode changed differently
	ConflictFileDirectory                     // a file on one side, a directory on the other
)

func (k ConflictKind) String() string {
	switch k {
	case ConflictContent:
		return "content"
	case ConflictAddAdd:
		return "add/add"
	case ConflictDeleteModify:
		return "delete/modify"
	case ConflictBinary:
		return "binary"
	case ConflictMode:
		return "mode"
	case ConflictFileDirectory:
		return "file/directory"
	default:
		return fmt.Sprintf("ConflictKind(%d)", int(k))
	}
}

// Conflict records one conflicted path.
type Conflict struct {
	Path string
	Kind ConflictKind
}

// Options configure a tree merge.
type Options struct {
	// Merger resolves files changed on both sides. Defaults to in-process
	// diff3 with Labels.
	Merger mergetool.FileMerger
	// Labels name the sides in conflict markers.
	Labels diff3.Labels
	Logger *slog.Logger
}

// Result is the outcome of a tree merge.
type Result struct {
	// Files is the merged flat tree. Conflicted paths hold their marked-up
	// content, already written to the store, so Files always describes what
	// the working tree should contain.
	Files map[string]worktree.FileEntry
	// Tree is the merged root tree. It is only written when the merge is clean.
	Tree      object.Hash
	Conflicts []Conflict
}

// Clean reports whether no path conflicted.
func (r *Result) Clean() bool { return len(r.Conflicts) == 0 }

// ConflictPaths returns the conflicted paths in order.
func (r *Result) ConflictPaths() []string {
	out := make([]string, len(r.Conflicts))
	for i, c := range r.Conflicts {
		out[i] = c.Path
	}
	return out
}

// Trees merges the ours and theirs trees against base. base may be empty,
// in which case every path is treated as added on both sides.
func Trees(s Store, base, ours, theirs object.Hash, opts Options) (*Result, error) {
	m := newMerger(s, opts)

	baseFiles, err := flatten(s, base)
	if err != nil {
		return nil, fmt.Errorf("merge: base tree: %w", err)
	}
	oursFiles, err := flatten(s, ours)
	if err != nil {
		return nil, fmt.Errorf("merge: ours tree: %w", err)
	}
	theirsFiles, err := flatten(s, theirs)
	if err != nil {
		return nil, fmt.Errorf("merge: theirs tree: %w", err)
	}

	res := &Result{Files: make(map[string]worktree.FileEntry)}
	for _, p := range unionPaths(baseFiles, oursFiles, theirsFiles) {
		b, inBase := baseFiles[p]
		o, inOurs := oursFiles[p]
		t, inTheirs := theirsFiles[p]

		entry, keep, kind, conflicted, err := m.mergePath(p,
			side{b, inBase}, side{o, inOurs}, side{t, inTheirs})
		if err != nil {
			return nil, fmt.Errorf("merge %q: %w", p, err)
		}
		if keep {
			res.Files[p] = entry
		}
		if conflicted {
			res.Conflicts = append(res.Conflicts, Conflict{Path: p, Kind: kind})
		}
	}

	m.resolveFileDirectory(res, oursFiles)
	sort.Slice(res.Conflicts, func(i, j int) bool { return res.Conflicts[i].Path < res.Conflicts[j].Path })

	for _, c := range res.Conflicts {
		m.log.Debug("merge conflict", "path", c.Path, "kind", c.Kind.String())
	}
	if !res.Clean() {
		return res, nil
	}
	res.Tree, err = worktree.BuildFromEntries(s, res.Files)
	if err != nil {
		return nil, fmt.Errorf("merge: write tree: %w", err)
	}
	return res, nil
}

type side struct {
	worktree.FileEntry
	ok bool
}

func (s side) same(o side) bool {
	if !s.ok || !o.ok {
		return s.ok == o.ok
	}
	return s.Hash == o.Hash && worktree.NormalizeMode(s.Mode) == worktree.NormalizeMode(o.Mode)
}

type merger struct {
	s      Store
	tool   mergetool.FileMerger
	labels diff3.Labels
	log    *slog.Logger
}

func newMerger(s Store, opts Options) *merger {
	labels := opts.Labels
	if labels == (diff3.Labels{}) {
		labels = diff3.DefaultLabels
	}
	tool := opts.Merger
	if tool == nil {
		tool = mergetool.Diff3{Labels: labels}
	}
	log := opts.Logger
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &merger{s: s, tool: tool, labels: labels, log: log}
}

// mergePath applies the per-path rules. keep is false when the path is
// absent from the result.
func (m *merger) mergePath(p string, b, o, t side) (entry worktree.FileEntry, keep bool, kind ConflictKind, conflicted bool, err error) {
	switch {
	case o.same(t):
		return o.FileEntry, o.ok, 0, false, nil
	case b.same(o):
		return t.FileEntry, t.ok, 0, false, nil
	case b.same(t):
		return o.FileEntry, o.ok, 0, false, nil
	}

	if !o.ok || !t.ok {
		// Delete against modify keeps the surviving content inside markers.
		var oursData, theirsData []byte
		mode := o.Mode
		if o.ok {
			if oursData, err = m.read(o.Hash); err != nil {
				return entry, false, 0, false, err
			}
		} else {
			mode = t.Mode
			if theirsData, err = m.read(t.Hash); err != nil {
				return entry, false, 0, false, err
			}
		}
		entry, err = m.write(p, m.markers(oursData, theirsData), mode)
		return entry, true, ConflictDeleteModify, true, err
	}

	mode, modeClean := mergeMode(b, o, t)
	if modeClean && o.Hash == t.Hash {
		return worktree.FileEntry{Path: p, Mode: mode, Hash: o.Hash}, true, 0, false, nil
	}

	hash, contentKind, contentClean, err := m.mergeContent(p, b, o, t, mode)
	if err != nil {
		return entry, false, 0, false, err
	}
	entry = worktree.FileEntry{Path: p, Mode: mode, Hash: hash}
	switch {
	case !contentClean:
		return entry, true, contentKind, true, nil
	case !modeClean:
		return entry, true, ConflictMode, true, nil
	}
	return entry, true, 0, false, nil
}

// mergeContent merges the blobs of a path present on both sides.
func (m *merger) mergeContent(p string, b, o, t side, mode string) (object.Hash, ConflictKind, bool, error) {
	switch {
	case o.Hash == t.Hash:
		return o.Hash, 0, true, nil
	case b.ok && b.Hash == o.Hash:
		return t.Hash, 0, true, nil
	case b.ok && b.Hash == t.Hash:
		return o.Hash, 0, true, nil
	}

	var baseData []byte
	if b.ok {
		var err error
		if baseData, err = m.read(b.Hash); err != nil {
			return "", 0, false, err
		}
	}
	oursData, err := m.read(o.Hash)
	if err != nil {
		return "", 0, false, err
	}
	theirsData, err := m.read(t.Hash)
	if err != nil {
		return "", 0, false, err
	}

	if isBinary(baseData) || isBinary(oursData) || isBinary(theirsData) {
		return o.Hash, ConflictBinary, false, nil
	}

	merged, clean, err := m.tool.MergeFile(baseData, oursData, theirsData)
	if err != nil {
		return "", 0, false, err
	}
	entry, err := m.write(p, merged, mode)
	if err != nil {
		return "", 0, false, err
	}
	kind := ConflictContent
	if !b.ok {
		kind = ConflictAddAdd
	}
	return entry.Hash, kind, clean, nil
}

// mergeMode applies the three-way rule to file modes. A conflicting change
// keeps ours.
func mergeMode(b, o, t side) (string, bool) {
	om, tm := worktree.NormalizeMode(o.Mode), worktree.NormalizeMode(t.Mode)
	switch {
	case om == tm:
		return om, true
	case b.ok && worktree.NormalizeMode(b.Mode) == om:
		return tm, true
	case b.ok && worktree.NormalizeMode(b.Mode) == tm:
		return om, true
	}
	return om, false
}

// resolveFileDirectory finds paths that are files while another merged path
// needs them as a directory. The directory wins; the file moves aside to
// "<path>~<side>" and the original path is reported as conflicted.
func (m *merger) resolveFileDirectory(res *Result, oursFiles map[string]worktree.FileEntry) {
	clashes := make(map[string]bool)
	for p := range res.Files {
		for d := path.Dir(p); d != "."; d = path.Dir(d) {
			if _, ok := res.Files[d]; ok {
				clashes[d] = true
			}
		}
	}
	for _, p := range sortedKeys(clashes) {
		f := res.Files[p]
		delete(res.Files, p)

		label := m.labels.Theirs
		if o, ok := oursFiles[p]; ok && o.Hash == f.Hash {
			label = m.labels.Ours
		}
		aside := p + "~" + strings.ReplaceAll(label, "/", "_")
		f.Path = aside
		res.Files[aside] = f

		// Drop an earlier conflict on the same path in favour of this one.
		kept := res.Conflicts[:0]
		for _, c := range res.Conflicts {
			if c.Path != p {
				kept = append(kept, c)
			}
		}
		res.Conflicts = append(kept, Conflict{Path: p, Kind: ConflictFileDirectory})
	}
}

func (m *merger) markers(ours, theirs []byte) []byte {
	var buf bytes.Buffer
	line := func(sym, label string) {
		buf.WriteString(sym)
		if label != "" {
			buf.WriteByte(' ')
			buf.WriteString(label)
		}
		buf.WriteByte('\n')
	}
	body := func(data []byte) {
		buf.Write(data)
		if len(data) > 0 && data[len(data)-1] != '\n' {
			buf.WriteByte('\n')
		}
	}
	line("<<<<<<<", m.labels.Ours)
	body(ours)
	line("=======", "")
	body(theirs)
	line(">>>>>>>", m.labels.Theirs)
	return buf.Bytes()
}

func (m *merger) read(h object.Hash) ([]byte, error) {
	blob, err := m.s.ReadBlob(h)
	if err != nil {
		return nil, fmt.Errorf("read blob %s: %w", h.Short(), err)
	}
	return blob.Data, nil
}

func (m *merger) write(p string, data []byte, mode string) (worktree.FileEntry, error) {
	h, err := object.WriteObject(m.s, &object.Blob{Data: data})
	if err != nil {
		return worktree.FileEntry{}, fmt.Errorf("write blob: %w", err)
	}
	return worktree.FileEntry{Path: p, Mode: worktree.NormalizeMode(mode), Hash: h}, nil
}

// isBinary uses the same heuristic as most VCS tools: a NUL byte in the
// first 8000 bytes.
func isBinary(data []byte) bool {
	if len(data) > 8000 {
		data = data[:8000]
	}
	return bytes.IndexByte(data, 0) >= 0
}

func flatten(s Store, h object.Hash) (map[string]worktree.FileEntry, error) {
	if h == "" {
		return map[string]worktree.FileEntry{}, nil
	}
	return worktree.Flatten(s, h)
}

func unionPaths(sets ...map[string]worktree.FileEntry) []string {
	seen := make(map[string]bool)
	for _, set := range sets {
		for p := range set {
			seen[p] = true
		}
	}
	return sortedKeys(seen)
}

func sortedKeys(m map[string]bool) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
