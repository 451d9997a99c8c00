// Package repo ties the object store, refs, commit graph and working tree
// together into repository operations.
package repo

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"

	"github.com/odvcencio/twig/pkg/graph"
	"github.com/odvcencio/twig/pkg/ignore"
	"github.com/odvcencio/twig/pkg/object"
	"github.com/odvcencio/twig/pkg/refs"
	"github.com/odvcencio/twig/pkg/worktree"
)

var (
	// ErrNotARepository is returned by Open when no control directory is found.
	ErrNotARepository = errors.New("not a twig repository")
	// ErrAlreadyInitialized is returned by Init on an existing repository.
	ErrAlreadyInitialized = errors.New("repository already exists")
	// ErrDirtyWorktree is returned when an operation needs a clean working tree.
	ErrDirtyWorktree = errors.New("working tree has uncommitted changes")
	// ErrNothingToCommit is returned when the working tree matches HEAD.
	ErrNothingToCommit = errors.New("nothing to commit")
	// ErrEmptyMessage is returned when committing without a message.
	ErrEmptyMessage = errors.New("empty commit message")
	// ErrNoAuthor is returned when no author identity is configured.
	ErrNoAuthor = errors.New("author identity unknown")
	// ErrMergeInProgress is returned when an operation would clobber an
	// unfinished merge.
	ErrMergeInProgress = errors.New("merge in progress")
	// ErrNoMergeInProgress is returned by MergeAbort without MERGE_HEAD.
	ErrNoMergeInProgress = errors.New("no merge in progress")
)

// Repo is an opened repository.
type Repo struct {
	Root     string           // working tree root on disk; empty for in-memory repos
	Worktree billy.Filesystem // the working tree
	Control  billy.Filesystem // the .twig directory
	Store    *object.Store
	Refs     *refs.Manager
	Graph    *graph.Graph
	Config   *Config

	log    *slog.Logger
	now    func() time.Time
	getenv func(string) string
}

// Options configure how a repository is opened.
type Options struct {
	Logger *slog.Logger
	// Now is the commit and reflog clock. Defaults to time.Now.
	Now func() time.Time
	// Getenv reads identity overrides. Defaults to os.Getenv.
	Getenv func(string) string
}

func (o Options) withDefaults() Options {
	if o.Logger == nil {
		o.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	if o.Getenv == nil {
		o.Getenv = os.Getenv
	}
	return o
}

// Init creates a repository in the directory at path.
func Init(path string, opts Options) (*Repo, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("init: abs path: %w", err)
	}
	r, err := InitFS(osfs.New(abs), opts)
	if err != nil {
		return nil, err
	}
	r.Root = abs
	return r, nil
}

// InitFS creates a repository on an arbitrary working tree filesystem.
func InitFS(wt billy.Filesystem, opts Options) (*Repo, error) {
	if _, err := wt.Stat(worktree.ControlDir); err == nil {
		return nil, fmt.Errorf("init: %w", ErrAlreadyInitialized)
	}
	for _, d := range []string{"objects", "refs/heads", "refs/tags", "logs"} {
		if err := wt.MkdirAll(wt.Join(worktree.ControlDir, d), 0o755); err != nil {
			return nil, fmt.Errorf("init: mkdir %s: %w", d, err)
		}
	}
	control, err := wt.Chroot(worktree.ControlDir)
	if err != nil {
		return nil, fmt.Errorf("init: %w", err)
	}

	cfg := DefaultConfig()
	if err := WriteConfig(control, cfg); err != nil {
		return nil, fmt.Errorf("init: %w", err)
	}
	r, err := newRepo(wt, control, cfg, opts)
	if err != nil {
		return nil, fmt.Errorf("init: %w", err)
	}
	if err := r.Refs.SetHeadBranch(cfg.Core.DefaultBranch); err != nil {
		return nil, fmt.Errorf("init: %w", err)
	}
	r.log.Info("initialized repository", "branch", cfg.Core.DefaultBranch)
	return r, nil
}

// Open searches upward from path for a control directory and opens the
// repository rooted there.
func Open(path string, opts Options) (*Repo, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("open: abs path: %w", err)
	}
	for cur := abs; ; {
		info, err := os.Stat(filepath.Join(cur, worktree.ControlDir))
		if err == nil && info.IsDir() {
			r, err := OpenFS(osfs.New(cur), opts)
			if err != nil {
				return nil, err
			}
			r.Root = cur
			return r, nil
		}
		parent := filepath.Dir(cur)
		if parent == cur {
			return nil, fmt.Errorf("open %s: %w", abs, ErrNotARepository)
		}
		cur = parent
	}
}

// OpenFS opens the repository whose working tree is wt.
func OpenFS(wt billy.Filesystem, opts Options) (*Repo, error) {
	info, err := wt.Stat(worktree.ControlDir)
	if err != nil || !info.IsDir() {
		return nil, fmt.Errorf("open: %w", ErrNotARepository)
	}
	control, err := wt.Chroot(worktree.ControlDir)
	if err != nil {
		return nil, fmt.Errorf("open: %w", err)
	}
	cfg, err := ReadConfig(control)
	if err != nil {
		return nil, fmt.Errorf("open: %w", err)
	}
	return newRepo(wt, control, cfg, opts)
}

func newRepo(wt, control billy.Filesystem, cfg *Config, opts Options) (*Repo, error) {
	opts = opts.withDefaults()
	compression, err := cfg.compression()
	if err != nil {
		return nil, err
	}
	store := object.NewStore(control, object.WithCompression(compression))
	return &Repo{
		Worktree: wt,
		Control:  control,
		Store:    store,
		Refs:     refs.NewManager(control, refs.WithLogger(opts.Logger), refs.WithClock(opts.Now)),
		Graph:    graph.New(store),
		Config:   cfg,
		log:      opts.Logger,
		now:      opts.Now,
		getenv:   opts.Getenv,
	}, nil
}

// SaveConfig writes r.Config back to the control directory.
func (r *Repo) SaveConfig() error {
	return WriteConfig(r.Control, r.Config)
}

// ignored loads the ignore predicate for the working tree. The control
// directory is always ignored.
func (r *Repo) ignored() (ignore.Predicate, error) {
	m, err := ignore.Load(r.Worktree, worktree.ControlDir)
	if err != nil {
		return nil, err
	}
	return m.Predicate(), nil
}

// headTree returns HEAD's commit and tree hash. Both are empty on an
// unborn branch.
func (r *Repo) headTree() (refs.Head, object.Hash, error) {
	head, err := r.Refs.Head()
	if err != nil {
		return refs.Head{}, "", err
	}
	if head.Hash == "" {
		return head, "", nil
	}
	tree, err := r.commitTree(head.Hash)
	if err != nil {
		return head, "", err
	}
	return head, tree, nil
}

func (r *Repo) commitTree(h object.Hash) (object.Hash, error) {
	c, err := r.Graph.Commit(h)
	if err != nil {
		return "", err
	}
	return c.Tree, nil
}

// flatten returns the files of a tree; an empty hash is the empty tree.
func (r *Repo) flatten(tree object.Hash) (map[string]worktree.FileEntry, error) {
	if tree == "" {
		return map[string]worktree.FileEntry{}, nil
	}
	return worktree.Flatten(r.Store, tree)
}

// materialize makes the working tree match tree exactly.
func (r *Repo) materialize(tree object.Hash) error {
	ignored, err := r.ignored()
	if err != nil {
		return err
	}
	if tree == "" {
		if tree, err = worktree.BuildFromEntries(r.Store, nil); err != nil {
			return err
		}
	}
	if err := worktree.Materialize(r.Store, tree, r.Worktree, ignored); err != nil {
		return err
	}
	r.log.Debug("materialized tree", "tree", tree.Short())
	return nil
}
