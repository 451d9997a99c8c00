package diff

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/pmezard/go-difflib/difflib"

	"github.com/odvcencio/twig/pkg/object"
)

// BlobReader loads file content for rendering.
type BlobReader interface {
	ReadBlob(h object.Hash) (*object.Blob, error)
}

// DefaultContext is the number of unchanged lines shown around each hunk.
const DefaultContext = 3

// FormatSummary renders one "<status> <path>" line per change.
//
// Output format:
//
//	A new.txt
//	M src/main.go
//	D old.txt
func FormatSummary(changes []Change) string {
	var b strings.Builder
	for _, c := range changes {
		fmt.Fprintf(&b, "%s %s\n", c.Type.Symbol(), c.Path)
	}
	return b.String()
}

// FormatUnified renders the changes as a unified diff. Binary files are
// reported without content.
func FormatUnified(r BlobReader, changes []Change, context int) (string, error) {
	if context < 0 {
		context = DefaultContext
	}
	var b strings.Builder
	for _, c := range changes {
		fmt.Fprintf(&b, "diff --twig a/%s b/%s\n", c.Path, c.Path)
		switch c.Type {
		case Added:
			fmt.Fprintf(&b, "new file mode %s\n", c.To.Mode)
		case Removed:
			fmt.Fprintf(&b, "deleted file mode %s\n", c.From.Mode)
		case Modified:
			if c.From.Mode != c.To.Mode {
				fmt.Fprintf(&b, "old mode %s\nnew mode %s\n", c.From.Mode, c.To.Mode)
			}
		}

		before, err := content(r, c.From.Hash)
		if err != nil {
			return "", fmt.Errorf("diff %s: %w", c.Path, err)
		}
		after, err := content(r, c.To.Hash)
		if err != nil {
			return "", fmt.Errorf("diff %s: %w", c.Path, err)
		}
		if isBinary(before) || isBinary(after) {
			b.WriteString("(binary files differ)\n")
			continue
		}

		fromFile, toFile := "a/"+c.Path, "b/"+c.Path
		if c.Type == Added {
			fromFile = "/dev/null"
		}
		if c.Type == Removed {
			toFile = "/dev/null"
		}
		text, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
			A:        lines(before),
			B:        lines(after),
			FromFile: fromFile,
			ToFile:   toFile,
			Context:  context,
		})
		if err != nil {
			return "", fmt.Errorf("diff %s: %w", c.Path, err)
		}
		b.WriteString(text)
		if text != "" && !strings.HasSuffix(text, "\n") {
			b.WriteString("\n")
		}
	}
	return b.String(), nil
}

func content(r BlobReader, h object.Hash) ([]byte, error) {
	if h == "" {
		return nil, nil
	}
	blob, err := r.ReadBlob(h)
	if err != nil {
		return nil, err
	}
	return blob.Data, nil
}

// lines splits data into newline-terminated lines. A missing final newline
// is supplied so every line renders on its own row.
func lines(data []byte) []string {
	out := strings.SplitAfter(string(data), "\n")
	if last := len(out) - 1; out[last] == "" {
		out = out[:last]
	} else {
		out[last] += "\n"
	}
	return out
}

func isBinary(data []byte) bool {
	if len(data) > 8000 {
		data = data[:8000]
	}
	return bytes.IndexByte(data, 0) >= 0
}
