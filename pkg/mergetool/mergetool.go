// Package mergetool provides the file-level merge seam used by tree merges.
//
// The default merger runs the in-process diff3 algorithm. An external
// command can be configured instead; it is invoked as
//
//	<cmd> [args...] <ours> <base> <theirs>
//
// and must print the merged content on stdout. Exit status 0 means a clean
// merge and exit status 1 means the output contains conflicts.
package mergetool

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/odvcencio/twig/pkg/diff3"
)

// FileMerger merges three versions of one file. clean is false when the
// returned content carries conflict markers.
type FileMerger interface {
	MergeFile(base, ours, theirs []byte) (merged []byte, clean bool, err error)
}

// Diff3 merges in process with the line-based diff3 algorithm.
type Diff3 struct {
	Labels diff3.Labels
}

// MergeFile implements FileMerger.
func (d Diff3) MergeFile(base, ours, theirs []byte) ([]byte, bool, error) {
	labels := d.Labels
	if labels == (diff3.Labels{}) {
		labels = diff3.DefaultLabels
	}
	r := diff3.MergeLabeled(base, ours, theirs, labels)
	return r.Merged, !r.HasConflicts(), nil
}

// DefaultTimeout bounds a single external merge.
const DefaultTimeout = time.Minute

// External runs a user-supplied merge command.
type External struct {
	Command string   // executable name or path
	Args    []string // arguments placed before the three file paths
	Timeout time.Duration
}

// ParseCommand splits a configured command line on whitespace.
func ParseCommand(line string) (External, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return External{}, errors.New("merge tool: empty command")
	}
	return External{Command: fields[0], Args: fields[1:]}, nil
}

// MergeFile implements FileMerger.
func (e External) MergeFile(base, ours, theirs []byte) ([]byte, bool, error) {
	dir, err := os.MkdirTemp("", "twig-merge-*")
	if err != nil {
		return nil, false, fmt.Errorf("merge tool: temp dir: %w", err)
	}
	defer os.RemoveAll(dir)

	paths := make([]string, 0, 3)
	for _, f := range []struct {
		name string
		data []byte
	}{{"ours", ours}, {"base", base}, {"theirs", theirs}} {
		p := filepath.Join(dir, f.name)
		if err := os.WriteFile(p, f.data, 0o600); err != nil {
			return nil, false, fmt.Errorf("merge tool: write %s: %w", f.name, err)
		}
		paths = append(paths, p)
	}

	timeout := e.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, e.Command, append(append([]string{}, e.Args...), paths...)...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err = cmd.Run()
	if err == nil {
		return stdout.Bytes(), true, nil
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) && exitErr.ExitCode() == 1 {
		return stdout.Bytes(), false, nil
	}
	msg := strings.TrimSpace(stderr.String())
	if msg == "" {
		msg = err.Error()
	}
	return nil, false, fmt.Errorf("merge tool %s: %s", e.Command, msg)
}

// New returns the merger selected by a configured tool name. An empty name
// or "diff3" selects the built-in merger.
func New(tool string, labels diff3.Labels) (FileMerger, error) {
	switch strings.TrimSpace(tool) {
	case "", "diff3":
		return Diff3{Labels: labels}, nil
	}
	ext, err := ParseCommand(tool)
	if err != nil {
		return nil, err
	}
	return ext, nil
}
