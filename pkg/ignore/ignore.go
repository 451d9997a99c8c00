// Package ignore decides which working-tree paths are left out of snapshots.
package ignore

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"regexp"
	"strings"

	"github.com/go-git/go-billy/v5"
)

// FileName is the ignore file read from the root of the working tree.
const FileName = ".twigignore"

// Predicate reports whether a slash-separated path relative to the working
// tree root is excluded.
type Predicate func(path string) bool

// None ignores nothing.
func None(string) bool { return false }

// Matcher evaluates ignore patterns. The last matching pattern wins, so a
// later "!" line can re-include a path.
type Matcher struct {
	patterns []pattern

	dirPrefix map[string][]int
	exactBase map[string][]int
	exactPath map[string][]int
	wildBase  []int
	wildPath  []int
}

type pattern struct {
	text     string
	negated  bool
	dirOnly  bool
	anchored bool // contains a slash, so it matches the full path
	regex    *regexp.Regexp
}

// Load reads FileName from the root of fs. The always list names directories
// that are excluded regardless of the file's contents, typically the
// control directory.
func Load(fs billy.Filesystem, always ...string) (*Matcher, error) {
	f, err := fs.Open(FileName)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Parse(strings.NewReader(""), always...)
		}
		return nil, fmt.Errorf("open %s: %w", FileName, err)
	}
	defer f.Close()
	return Parse(f, always...)
}

// Parse builds a Matcher from ignore-file text.
func Parse(r io.Reader, always ...string) (*Matcher, error) {
	m := &Matcher{}
	for _, dir := range always {
		m.patterns = append(m.patterns, pattern{text: strings.Trim(dir, "/"), dirOnly: true})
	}
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		if p, ok := parseLine(scanner.Text()); ok {
			m.patterns = append(m.patterns, p)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read %s: %w", FileName, err)
	}
	m.compile()
	return m, nil
}

func parseLine(line string) (pattern, bool) {
	line = strings.TrimRight(line, " \t\r")
	if line == "" || strings.HasPrefix(line, "#") {
		return pattern{}, false
	}

	var p pattern
	if strings.HasPrefix(line, "!") {
		p.negated = true
		line = line[1:]
	}
	if strings.HasSuffix(line, "/") {
		p.dirOnly = true
		line = strings.TrimRight(line, "/")
	}
	if strings.HasPrefix(line, "/") {
		p.anchored = true
		line = strings.TrimLeft(line, "/")
	}
	if line == "" {
		return pattern{}, false
	}
	p.anchored = p.anchored || strings.Contains(line, "/")
	p.text = line
	if !isLiteral(line) {
		re, err := regexp.Compile(globToRegex(line))
		if err != nil {
			return pattern{}, false
		}
		p.regex = re
	}
	return p, true
}

func (m *Matcher) compile() {
	m.dirPrefix = make(map[string][]int)
	m.exactBase = make(map[string][]int)
	m.exactPath = make(map[string][]int)

	for idx, p := range m.patterns {
		switch {
		case p.dirOnly && p.regex == nil:
			m.dirPrefix[p.text] = append(m.dirPrefix[p.text], idx)
			if !p.anchored {
				// "build/" also excludes nested build directories.
				m.exactBase[p.text] = append(m.exactBase[p.text], idx)
			}
		case p.regex == nil && p.anchored:
			m.exactPath[p.text] = append(m.exactPath[p.text], idx)
		case p.regex == nil:
			m.exactBase[p.text] = append(m.exactBase[p.text], idx)
		case p.anchored:
			m.wildPath = append(m.wildPath, idx)
		default:
			m.wildBase = append(m.wildBase, idx)
		}
	}
}

// IsIgnored reports whether the file p, or any directory containing it, is
// excluded. Directory-only patterns match ancestors of p, never p itself.
func (m *Matcher) IsIgnored(p string) bool {
	p = strings.Trim(path.Clean("/"+p), "/")
	if p == "" {
		return false
	}

	last := -1
	ignored := false
	segments := strings.Split(p, "/")
	for i := range segments {
		prefix := strings.Join(segments[:i+1], "/")
		base := segments[i]
		isLeaf := i == len(segments)-1

		apply := func(idx int) {
			if m.patterns[idx].dirOnly && isLeaf {
				return
			}
			if idx > last {
				last = idx
				ignored = !m.patterns[idx].negated
			}
		}
		for _, idx := range m.dirPrefix[prefix] {
			apply(idx)
		}
		for _, idx := range m.exactPath[prefix] {
			apply(idx)
		}
		for _, idx := range m.exactBase[base] {
			apply(idx)
		}
		for _, idx := range m.wildPath {
			if m.patterns[idx].regex.MatchString(prefix) {
				apply(idx)
			}
		}
		for _, idx := range m.wildBase {
			if m.patterns[idx].regex.MatchString(base) {
				apply(idx)
			}
		}
	}
	return ignored
}

// Predicate returns m.IsIgnored as a Predicate.
func (m *Matcher) Predicate() Predicate {
	return m.IsIgnored
}

func isLiteral(p string) bool {
	return !strings.ContainsAny(p, "*?[")
}

func globToRegex(pattern string) string {
	var b strings.Builder
	b.WriteString("^")
	for i := 0; i < len(pattern); i++ {
		ch := pattern[i]
		switch ch {
		case '*':
			if i+1 < len(pattern) && pattern[i+1] == '*' {
				if i+2 < len(pattern) && pattern[i+2] == '/' {
					// "**/" matches zero or more leading directories.
					b.WriteString("(?:.*/)?")
					i += 2
				} else {
					b.WriteString(".*")
					i++
				}
				continue
			}
			b.WriteString("[^/]*")
		case '?':
			b.WriteString("[^/]")
		case '[':
			end := strings.IndexByte(pattern[i+1:], ']')
			if end < 0 {
				b.WriteString(`\[`)
				continue
			}
			class := pattern[i+1 : i+1+end]
			if strings.HasPrefix(class, "!") {
				class = "^" + class[1:]
			}
			b.WriteString("[" + class + "]")
			i += end + 1
		default:
			if strings.ContainsRune(`.+()|]{}^$\`, rune(ch)) {
				b.WriteByte('\\')
			}
			b.WriteByte(ch)
		}
	}
	b.WriteString("$")
	return b.String()
}
