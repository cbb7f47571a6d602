package fs

import (
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestIgnoreMatcher_GlobalPatterns(t *testing.T) {
	tests := []struct {
		name     string
		patterns []string
		rel      string
		isDir    bool
		want     bool
	}{
		{"plain file", nil, "notes.txt", false, false},
		{"editor backup", nil, "notes.txt~", false, true},
		{"vim swap", nil, "sub/notes.txt.swp", false, true},
		{"hidden file", nil, ".env", false, true},
		{"inside hidden dir", nil, ".git/config", false, true},
		{"extension anywhere", []string{"*.log"}, "a/b/c.log", false, true},
		{"extension no match", []string{"*.log"}, "a/b/c.txt", false, false},
		{"directory pattern", []string{"build/"}, "build", true, true},
		{"directory pattern skips file", []string{"build/"}, "build", false, false},
		{"below ignored directory", []string{"build/"}, "build/out/app.txt", false, true},
		{"anchored pattern", []string{"/todo.txt"}, "sub/todo.txt", false, false},
		{"anchored pattern at root", []string{"/todo.txt"}, "todo.txt", false, true},
		{"comments and blanks", []string{"", "  ", "# *.txt"}, "a.txt", false, false},
		{"negation", []string{"*.txt", "!keep.txt"}, "keep.txt", false, false},
		{"root itself", []string{"*"}, "", true, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			m := NewIgnoreMatcher("/unused", tt.patterns)
			if got := m.Match(tt.rel, tt.isDir); got != tt.want {
				t.Errorf("Match(%q, %v) = %v, want %v", tt.rel, tt.isDir, got, tt.want)
			}
		})
	}
}

func TestIgnoreMatcher_IgnoreFiles(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	writeFile(t, filepath.Join(root, ".gitignore"), "*.tmp\n")
	writeFile(t, filepath.Join(root, "docs", ".cdmknignore"), "drafts/\n/index.md\n")

	m := NewIgnoreMatcher(root, nil)
	for _, dir := range []string{"", "docs"} {
		if err := m.LoadDir(dir); err != nil {
			t.Fatalf("LoadDir(%q) error = %v", dir, err)
		}
	}

	tests := []struct {
		rel  string
		want bool
	}{
		{"a.tmp", true},
		{"docs/b.tmp", true},
		{"docs/drafts/c.md", true},
		{"docs/index.md", true},
		{"index.md", false},
		{"docs/sub/index.md", false},
		{"docs/guide.md", false},
	}
	for _, tt := range tests {
		if got := m.Match(tt.rel, false); got != tt.want {
			t.Errorf("Match(%q) = %v, want %v", tt.rel, got, tt.want)
		}
	}
}

func TestParseIgnoreFile(t *testing.T) {
	t.Parallel()

	t.Run("missing file", func(t *testing.T) {
		t.Parallel()
		lines, err := ParseIgnoreFile(filepath.Join(t.TempDir(), "nope"))
		if err != nil || lines != nil {
			t.Errorf("ParseIgnoreFile() = %v, %v; want nil, nil", lines, err)
		}
	})

	t.Run("reads raw lines", func(t *testing.T) {
		t.Parallel()
		path := filepath.Join(t.TempDir(), ".ignore")
		writeFile(t, path, "# comment\n*.log\n\nbuild/\n")
		lines, err := ParseIgnoreFile(path)
		if err != nil {
			t.Fatalf("ParseIgnoreFile() error = %v", err)
		}
		if len(lines) != 4 || lines[1] != "*.log" || lines[3] != "build/" {
			t.Errorf("ParseIgnoreFile() = %q", lines)
		}
	})
}
