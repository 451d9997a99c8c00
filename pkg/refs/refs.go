// Package refs manages named pointers into the commit graph: branches,
// tags, HEAD and the in-progress merge marker.
package refs

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/go-git/go-billy/v5"

	"github.com/odvcencio/twig/pkg/object"
)

const (
	HeadsPrefix = "refs/heads/"
	TagsPrefix  = "refs/tags/"

	headFile      = "HEAD"
	mergeHeadFile = "MERGE_HEAD"
)

var (
	// ErrNotFound is returned when a named ref does not exist.
	ErrNotFound = errors.New("ref not found")
	// ErrRefExists is returned when creating a branch or tag that exists.
	ErrRefExists = errors.New("ref already exists")
	// ErrUnknownRef is returned when a name cannot be resolved to a commit.
	ErrUnknownRef = errors.New("unknown ref")
	// ErrInvalidName is returned for names that cannot be stored as refs.
	ErrInvalidName = errors.New("invalid ref name")
	// ErrCurrentBranch is returned when deleting the checked-out branch.
	ErrCurrentBranch = errors.New("cannot delete the current branch")
)

// Ref is a named pointer to a commit.
type Ref struct {
	Name string
	Hash object.Hash
}

// Short returns the name without its refs/heads/ or refs/tags/ prefix.
func (r Ref) Short() string {
	if s, ok := strings.CutPrefix(r.Name, HeadsPrefix); ok {
		return s
	}
	if s, ok := strings.CutPrefix(r.Name, TagsPrefix); ok {
		return s
	}
	return r.Name
}

// Manager reads and writes refs below a control directory. It assumes a
// single writer: updates are atomic renames without compare-and-swap.
type Manager struct {
	fs     billy.Filesystem
	now    func() time.Time
	logger *slog.Logger
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the logger used for ref update events.
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) {
		if l != nil {
			m.logger = l
		}
	}
}

// WithClock overrides the reflog timestamp source.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

// NewManager returns a Manager for the control directory fs.
func NewManager(fs billy.Filesystem, opts ...Option) *Manager {
	m := &Manager{
		fs:     fs,
		now:    time.Now,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Read returns the hash stored in the full ref name, e.g. refs/heads/main.
func (m *Manager) Read(name string) (object.Hash, error) {
	data, err := m.readFile(name)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("read ref %q: %w", name, ErrNotFound)
		}
		return "", fmt.Errorf("read ref %q: %w", name, err)
	}
	h, err := object.ParseHash(strings.TrimSpace(string(data)))
	if err != nil {
		return "", fmt.Errorf("read ref %q: %w", name, err)
	}
	return h, nil
}

// Exists reports whether the full ref name is present as a ref file. A
// directory of nested refs such as refs/heads/feature for feature/x is not
// a ref.
func (m *Manager) Exists(name string) bool {
	info, err := m.fs.Stat(name)
	return err == nil && info.Mode().IsRegular()
}

// Update points the full ref name at h, creating it if needed, and records
// the change in the reflog.
func (m *Manager) Update(name string, h object.Hash, reason string) error {
	if !object.IsHash(string(h)) {
		return fmt.Errorf("update ref %q: invalid hash %q", name, h)
	}
	old, err := m.Read(name)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return fmt.Errorf("update ref %q: %w", name, err)
	}
	if err := m.writeFile(name, string(h)+"\n"); err != nil {
		return fmt.Errorf("update ref %q: %w", name, err)
	}
	if err := m.appendReflog(name, old, h, reason); err != nil {
		return fmt.Errorf("update ref %q: %w", name, err)
	}
	m.logger.Debug("ref updated", "ref", name, "old", old.Short(), "new", h.Short(), "reason", reason)
	return nil
}

// Delete removes the full ref name.
func (m *Manager) Delete(name string) error {
	if err := m.fs.Remove(name); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("delete ref %q: %w", name, ErrNotFound)
		}
		return fmt.Errorf("delete ref %q: %w", name, err)
	}
	m.logger.Debug("ref deleted", "ref", name)
	return nil
}

// CreateBranch creates refs/heads/<name>. It fails with ErrRefExists if the
// branch is already present.
func (m *Manager) CreateBranch(name string, h object.Hash) error {
	if err := ValidateName(name); err != nil {
		return fmt.Errorf("create branch: %w", err)
	}
	ref := HeadsPrefix + name
	if m.Exists(ref) {
		return fmt.Errorf("create branch %q: %w", name, ErrRefExists)
	}
	if err := m.Update(ref, h, "branch: created"); err != nil {
		return fmt.Errorf("create branch %q: %w", name, err)
	}
	return nil
}

// UpdateBranch overwrites refs/heads/<name> unconditionally.
func (m *Manager) UpdateBranch(name string, h object.Hash, reason string) error {
	if err := ValidateName(name); err != nil {
		return fmt.Errorf("update branch: %w", err)
	}
	return m.Update(HeadsPrefix+name, h, reason)
}

// DeleteBranch removes a branch that is not checked out.
func (m *Manager) DeleteBranch(name string) error {
	head, err := m.Head()
	if err != nil {
		return fmt.Errorf("delete branch: %w", err)
	}
	if head.Branch == name {
		return fmt.Errorf("delete branch %q: %w", name, ErrCurrentBranch)
	}
	return m.Delete(HeadsPrefix + name)
}

// CreateTag creates refs/tags/<name>. Tags are immutable: an existing tag
// is left untouched and ErrRefExists is returned.
func (m *Manager) CreateTag(name string, h object.Hash) error {
	if err := ValidateName(name); err != nil {
		return fmt.Errorf("create tag: %w", err)
	}
	ref := TagsPrefix + name
	if m.Exists(ref) {
		return fmt.Errorf("create tag %q: %w", name, ErrRefExists)
	}
	if err := m.Update(ref, h, "tag: created"); err != nil {
		return fmt.Errorf("create tag %q: %w", name, err)
	}
	return nil
}

// DeleteTag removes refs/tags/<name>.
func (m *Manager) DeleteTag(name string) error {
	return m.Delete(TagsPrefix + name)
}

// List returns every ref whose full name starts with prefix, sorted by name.
func (m *Manager) List(prefix string) ([]Ref, error) {
	var out []Ref
	err := m.walk("refs", func(name string) error {
		if !strings.HasPrefix(name, prefix) {
			return nil
		}
		h, err := m.Read(name)
		if err != nil {
			return err
		}
		out = append(out, Ref{Name: name, Hash: h})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list refs: %w", err)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// Branches lists refs/heads/.
func (m *Manager) Branches() ([]Ref, error) { return m.List(HeadsPrefix) }

// Tags lists refs/tags/.
func (m *Manager) Tags() ([]Ref, error) { return m.List(TagsPrefix) }

func (m *Manager) walk(dir string, fn func(name string) error) error {
	infos, err := m.fs.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	for _, info := range infos {
		name := path.Join(dir, info.Name())
		if info.IsDir() {
			if err := m.walk(name, fn); err != nil {
				return err
			}
			continue
		}
		if strings.HasPrefix(info.Name(), ".") {
			continue
		}
		if err := fn(name); err != nil {
			return err
		}
	}
	return nil
}

// Resolve turns a user-supplied name into a commit hash. Candidates are
// tried in order: HEAD or @, a full ref name, heads/x or tags/x, a bare
// branch name, a bare tag name, and finally a literal full digest. A ref
// that exists always wins over the digest reading of the same text.
func (m *Manager) Resolve(name string) (object.Hash, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", fmt.Errorf("resolve %q: %w", name, ErrUnknownRef)
	}
	if name == "HEAD" || name == "@" {
		head, err := m.Head()
		if err != nil {
			return "", fmt.Errorf("resolve HEAD: %w", err)
		}
		if head.Unborn() {
			return "", fmt.Errorf("resolve HEAD: branch %q has no commits: %w", head.Branch, ErrUnknownRef)
		}
		return head.Hash, nil
	}

	candidates := []string{
		name,
		"refs/" + name,
		HeadsPrefix + name,
		TagsPrefix + name,
	}
	for _, ref := range candidates {
		if !strings.HasPrefix(ref, "refs/") || ValidateFullName(ref) != nil {
			continue
		}
		h, err := m.Read(ref)
		if err == nil {
			return h, nil
		}
		if !errors.Is(err, ErrNotFound) {
			return "", fmt.Errorf("resolve %q: %w", name, err)
		}
	}

	if object.IsHash(name) {
		return object.Hash(name), nil
	}
	return "", fmt.Errorf("resolve %q: %w", name, ErrUnknownRef)
}

// ValidateName checks a short branch or tag name.
func ValidateName(name string) error {
	switch {
	case name == "":
		return fmt.Errorf("%w: name is required", ErrInvalidName)
	case name == "HEAD", name == "@":
		return fmt.Errorf("%w: %q is reserved", ErrInvalidName, name)
	case strings.HasPrefix(name, "/"), strings.HasSuffix(name, "/"):
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	case strings.HasPrefix(name, "-"), strings.HasPrefix(name, "."):
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	case strings.Contains(name, ".."), strings.Contains(name, "//"), strings.Contains(name, "/."):
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	case strings.HasSuffix(name, ".lock"):
		return fmt.Errorf("%w: %q ends with .lock", ErrInvalidName, name)
	case strings.ContainsAny(name, " \t\n\r\x00~^:?*[\\"):
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return nil
}

// ValidateFullName checks a ref name such as refs/heads/main.
func ValidateFullName(name string) error {
	rest, ok := strings.CutPrefix(name, "refs/")
	if !ok {
		return fmt.Errorf("%w: %q is outside refs/", ErrInvalidName, name)
	}
	return ValidateName(rest)
}

// readFile returns os.ErrNotExist for anything that is not a regular file.
func (m *Manager) readFile(name string) ([]byte, error) {
	info, err := m.fs.Stat(name)
	if err != nil {
		return nil, err
	}
	if !info.Mode().IsRegular() {
		return nil, &os.PathError{Op: "open", Path: name, Err: os.ErrNotExist}
	}
	f, err := m.fs.Open(name)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

// writeFile replaces name atomically through a temp file and rename.
func (m *Manager) writeFile(name, content string) error {
	dir := path.Dir(name)
	if dir == "." {
		// Top-level files such as HEAD stage their temp file under refs/.
		dir = "refs"
	}
	if err := m.fs.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("mkdir: %w", err)
	}
	tmp, err := m.fs.TempFile(dir, ".tmp-ref-")
	if err != nil {
		return fmt.Errorf("tmpfile: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write([]byte(content)); err != nil {
		tmp.Close()
		m.fs.Remove(tmpName)
		return fmt.Errorf("write: %w", err)
	}
	if err := tmp.Close(); err != nil {
		m.fs.Remove(tmpName)
		return fmt.Errorf("close: %w", err)
	}
	if err := m.fs.Rename(tmpName, name); err != nil {
		m.fs.Remove(tmpName)
		return fmt.Errorf("rename: %w", err)
	}
	return nil
}
