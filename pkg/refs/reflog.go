package refs

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path"
	"strconv"
	"strings"

	"github.com/odvcencio/twig/pkg/object"
)

var zeroHash = object.Hash(strings.Repeat("0", object.HashHexLen))

// ReflogEntry is one recorded movement of a ref.
type ReflogEntry struct {
	Ref       string
	OldHash   object.Hash
	NewHash   object.Hash
	Timestamp int64
	Reason    string
}

func (m *Manager) appendReflog(ref string, oldHash, newHash object.Hash, reason string) error {
	if strings.TrimSpace(reason) == "" {
		reason = "update"
	}
	reason = strings.ReplaceAll(reason, "\n", " ")
	if oldHash == "" {
		oldHash = zeroHash
	}
	if newHash == "" {
		newHash = zeroHash
	}

	logPath := path.Join("logs", ref)
	if err := m.fs.MkdirAll(path.Dir(logPath), 0o755); err != nil {
		return fmt.Errorf("reflog mkdir: %w", err)
	}
	f, err := m.fs.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("reflog open: %w", err)
	}
	defer f.Close()

	line := fmt.Sprintf("%s %s %d %s\n", oldHash, newHash, m.now().Unix(), reason)
	if _, err := f.Write([]byte(line)); err != nil {
		return fmt.Errorf("reflog write: %w", err)
	}
	return nil
}

// Reflog returns the recorded movements of ref, newest first. An empty ref
// or HEAD means the current branch, or HEAD itself when detached. A limit
// of zero or less returns every entry.
func (m *Manager) Reflog(ref string, limit int) ([]ReflogEntry, error) {
	refName, err := m.reflogRefName(ref)
	if err != nil {
		return nil, err
	}

	f, err := m.fs.Open(path.Join("logs", refName))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read reflog: %w", err)
	}
	defer f.Close()

	var entries []ReflogEntry
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		parts := strings.SplitN(line, " ", 4)
		if len(parts) < 4 {
			continue
		}
		ts, err := strconv.ParseInt(parts[2], 10, 64)
		if err != nil {
			continue
		}
		entries = append(entries, ReflogEntry{
			Ref:       refName,
			OldHash:   object.Hash(parts[0]),
			NewHash:   object.Hash(parts[1]),
			Timestamp: ts,
			Reason:    parts[3],
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read reflog: %w", err)
	}

	for i, j := 0, len(entries)-1; i < j; i, j = i+1, j-1 {
		entries[i], entries[j] = entries[j], entries[i]
	}
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}

func (m *Manager) reflogRefName(ref string) (string, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" || ref == "HEAD" || ref == "@" {
		head, err := m.Head()
		if err != nil {
			return "", err
		}
		if head.Detached() {
			return headFile, nil
		}
		return HeadsPrefix + head.Branch, nil
	}
	if strings.HasPrefix(ref, "refs/") {
		return ref, nil
	}
	if m.Exists(TagsPrefix+ref) && !m.Exists(HeadsPrefix+ref) {
		return TagsPrefix + ref, nil
	}
	return HeadsPrefix + ref, nil
}
