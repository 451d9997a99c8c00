package ignore

import (
	"strings"
	"testing"

	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/util"
)

func mustParse(t *testing.T, text string) *Matcher {
	t.Helper()
	m, err := Parse(strings.NewReader(text), ".twig")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	return m
}

func TestControlDirAlwaysIgnored(t *testing.T) {
	m := mustParse(t, "")
	for _, p := range []string{".twig/HEAD", ".twig/objects/ab/cdef"} {
		if !m.IsIgnored(p) {
			t.Errorf("expected %s to be ignored", p)
		}
	}
	if m.IsIgnored("twig.go") {
		t.Error("expected twig.go to NOT be ignored")
	}
}

func TestPatterns(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		path    string
		ignored bool
	}{
		{"glob match", "*.log\n", "debug.log", true},
		{"glob miss", "*.log\n", "debug.txt", false},
		{"glob in subdir", "*.log\n", "logs/deep/app.log", true},
		{"dir pattern child", "build/\n", "build/output.o", true},
		{"dir pattern nested", "build/\n", "build/sub/file.txt", true},
		{"dir pattern nested dir", "build/\n", "src/build/x.o", true},
		{"dir pattern file", "build/\n", "build", false},
		{"negation", "*.log\n!important.log\n", "important.log", false},
		{"negation others", "*.log\n!important.log\n", "other.log", true},
		{"anchored literal", "docs/draft.md\n", "docs/draft.md", true},
		{"anchored literal elsewhere", "docs/draft.md\n", "src/docs/draft.md", false},
		{"leading slash", "/root.txt\n", "root.txt", true},
		{"globstar", "**/tmp/*.bin\n", "a/b/tmp/x.bin", true},
		{"globstar zero dirs", "**/tmp/*.bin\n", "tmp/x.bin", true},
		{"question mark", "file?.txt\n", "file1.txt", true},
		{"char class", "file[0-9].txt\n", "file7.txt", true},
		{"char class miss", "file[0-9].txt\n", "filex.txt", false},
		{"comments and blanks", "# comment\n\n*.tmp\n", "a.tmp", true},
		{"literal dir name", "vendor\n", "vendor/lib/x.go", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := mustParse(t, tt.text)
			if got := m.IsIgnored(tt.path); got != tt.ignored {
				t.Errorf("IsIgnored(%q) with %q = %v, want %v", tt.path, tt.text, got, tt.ignored)
			}
		})
	}
}

func TestLoadFromFilesystem(t *testing.T) {
	fs := memfs.New()
	if err := util.WriteFile(fs, FileName, []byte("*.o\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	m, err := Load(fs, ".twig")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	ignored := m.Predicate()
	if !ignored("main.o") || ignored("main.c") {
		t.Error("predicate did not apply the loaded patterns")
	}
}

func TestLoadWithoutIgnoreFile(t *testing.T) {
	m, err := Load(memfs.New(), ".twig")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if m.IsIgnored("anything.txt") {
		t.Error("expected nothing ignored without an ignore file")
	}
	if None("anything") {
		t.Error("None must ignore nothing")
	}
}
