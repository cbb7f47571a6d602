package fs

import (
	"bufio"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	ignore "github.com/sabhiram/go-gitignore"
)

// IgnoreFileNames are read in every directory of a repository. Their rules
// apply to that directory and everything below it.
var IgnoreFileNames = []string{".gitignore", ".ignore", ".cdmknignore"}

// defaultIgnorePatterns are always applied regardless of config or ignore files.
var defaultIgnorePatterns = []string{"*~", "*.swp", "*.swx"}

// IgnoreMatcher evaluates ignore rules for entries below one repository root.
// Hidden entries (leading dot) are always ignored. Configured patterns are
// matched against the path relative to the root; ignore-file rules are
// matched against the path relative to the directory holding the file.
type IgnoreMatcher struct {
	root   string
	global *ignore.GitIgnore
	dirs   map[string]*ignore.GitIgnore
}

// NewIgnoreMatcher creates a matcher for root with the configured patterns.
// Blank lines and lines starting with '#' are skipped.
func NewIgnoreMatcher(root string, patterns []string) *IgnoreMatcher {
	lines := append(append([]string{}, defaultIgnorePatterns...), patterns...)
	return &IgnoreMatcher{
		root:   root,
		global: ignore.CompileIgnoreLines(cleanPatterns(lines)...),
		dirs:   make(map[string]*ignore.GitIgnore),
	}
}

func cleanPatterns(raw []string) []string {
	var out []string
	for _, line := range raw {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		out = append(out, line)
	}
	return out
}

// LoadDir reads the ignore files in the directory relDir (slash separated,
// "" for the root). Directories without ignore files cost one stat per name.
func (m *IgnoreMatcher) LoadDir(relDir string) error {
	if _, ok := m.dirs[relDir]; ok {
		return nil
	}

	var lines []string
	for _, name := range IgnoreFileNames {
		p := filepath.Join(m.root, filepath.FromSlash(relDir), name)
		patterns, err := ParseIgnoreFile(p)
		if err != nil {
			return err
		}
		lines = append(lines, patterns...)
	}

	lines = cleanPatterns(lines)
	if len(lines) == 0 {
		m.dirs[relDir] = nil
		return nil
	}
	m.dirs[relDir] = ignore.CompileIgnoreLines(lines...)
	return nil
}

// Match reports whether the entry at relPath (slash separated, relative to
// the root) is ignored. An entry inside an ignored directory is ignored too.
// Ignore files of ancestor directories must have been loaded with LoadDir.
func (m *IgnoreMatcher) Match(relPath string, isDir bool) bool {
	if relPath == "" || relPath == "." {
		return false
	}
	parts := strings.Split(relPath, "/")
	for _, part := range parts {
		if strings.HasPrefix(part, ".") {
			return true
		}
	}
	for i := 1; i <= len(parts); i++ {
		if m.matchEntry(strings.Join(parts[:i], "/"), i < len(parts) || isDir) {
			return true
		}
	}
	return false
}

// matchEntry checks one entry against the global rules and the rules of
// every directory above it.
func (m *IgnoreMatcher) matchEntry(relPath string, isDir bool) bool {
	if matches(m.global, relPath, isDir) {
		return true
	}

	dir := path.Dir(relPath)
	for {
		if dir == "." {
			dir = ""
		}
		if gi := m.dirs[dir]; gi != nil {
			sub := relPath
			if dir != "" {
				sub = strings.TrimPrefix(relPath, dir+"/")
			}
			if matches(gi, sub, isDir) {
				return true
			}
		}
		if dir == "" {
			return false
		}
		dir = path.Dir(dir)
	}
}

func matches(gi *ignore.GitIgnore, p string, isDir bool) bool {
	if gi.MatchesPath(p) {
		return true
	}
	return isDir && gi.MatchesPath(p+"/")
}

// ParseIgnoreFile reads an ignore file and returns its raw lines.
// Returns nil and no error if the file does not exist.
func ParseIgnoreFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("opening ignore file: %w", err)
	}
	defer f.Close()

	var patterns []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		patterns = append(patterns, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading ignore file: %w", err)
	}
	return patterns, nil
}
