package fs

import (
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"cdmkn-go/internal/cdmkn"
)

func resolveRoot(t *testing.T, m *OSFilesystemManager) *cdmkn.Path {
	t.Helper()
	root, err := m.Resolve(t.TempDir())
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	return root
}

func TestOSFilesystemManager_Resolve(t *testing.T) {
	t.Parallel()
	m := NewOSFilesystemManager(nil)
	root := resolveRoot(t, m)

	target := filepath.Join(root.String(), "real.txt")
	writeFile(t, target, "x")
	link := filepath.Join(root.String(), "link.txt")
	if err := os.Symlink(target, link); err != nil {
		t.Fatal(err)
	}

	p, err := m.Resolve(link)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if p.String() != target {
		t.Errorf("Resolve(link) = %q, want %q", p, target)
	}
	if p.IsDir() || p.Info().Size() != 1 {
		t.Errorf("Resolve() info = %v", p.Info())
	}

	if _, err := m.Resolve(filepath.Join(root.String(), "missing")); err == nil {
		t.Error("Resolve(missing) expected error")
	}
}

func TestOSFilesystemManager_FindFiles(t *testing.T) {
	t.Parallel()
	m := NewOSFilesystemManager([]string{"*.log"})
	root := resolveRoot(t, m)
	r := root.String()

	writeFile(t, filepath.Join(r, "a.txt"), "a")
	writeFile(t, filepath.Join(r, "sub", "b.txt"), "b")
	writeFile(t, filepath.Join(r, "sub", "debug.log"), "log")
	writeFile(t, filepath.Join(r, ".hidden", "c.txt"), "c")
	writeFile(t, filepath.Join(r, "vendor", "d.txt"), "d")
	writeFile(t, filepath.Join(r, ".gitignore"), "vendor/\n")
	if err := os.Symlink(filepath.Join(r, "a.txt"), filepath.Join(r, "alias.txt")); err != nil {
		t.Fatal(err)
	}

	paths, err := m.FindFiles(root)
	if err != nil {
		t.Fatalf("FindFiles() error = %v", err)
	}

	var got []string
	for _, p := range paths {
		rel, _ := p.RelativeTo(r)
		got = append(got, rel)
		if p.Info() == nil {
			t.Errorf("%s has no metadata", rel)
		}
	}
	sort.Strings(got)
	want := []string{"a.txt", "sub/b.txt"}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("FindFiles() = %v, want %v", got, want)
	}

	file, _ := m.Resolve(filepath.Join(r, "a.txt"))
	if _, err := m.FindFiles(file); err == nil {
		t.Error("FindFiles(file) expected error")
	}
}

func TestOSFilesystemManager_IsIgnored(t *testing.T) {
	t.Parallel()
	m := NewOSFilesystemManager(nil)
	root := resolveRoot(t, m)
	r := root.String()

	writeFile(t, filepath.Join(r, "docs", ".ignore"), "*.bak\n")
	writeFile(t, filepath.Join(r, "docs", "deep", "x.bak"), "x")
	writeFile(t, filepath.Join(r, "y.bak"), "y")

	tests := []struct {
		rel  string
		want bool
	}{
		{"docs/deep/x.bak", true},
		{"y.bak", false},
	}
	for _, tt := range tests {
		p, err := m.Resolve(filepath.Join(r, tt.rel))
		if err != nil {
			t.Fatal(err)
		}
		got, err := m.IsIgnored(p, r)
		if err != nil {
			t.Fatalf("IsIgnored(%s) error = %v", tt.rel, err)
		}
		if got != tt.want {
			t.Errorf("IsIgnored(%s) = %v, want %v", tt.rel, got, tt.want)
		}
	}

	outside, _ := m.Resolve(t.TempDir())
	if _, err := m.IsIgnored(outside, r); err == nil {
		t.Error("IsIgnored() outside root expected error")
	}
}

func TestOSFilesystemManager_WriteFile(t *testing.T) {
	t.Parallel()
	m := NewOSFilesystemManager(nil)
	root := resolveRoot(t, m)
	path := filepath.Join(root.String(), "script.sh")
	writeFile(t, path, "old")
	if err := os.Chmod(path, 0o750); err != nil {
		t.Fatal(err)
	}

	if err := m.WriteFile(path, []byte("new")); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	data, _ := os.ReadFile(path)
	info, _ := os.Stat(path)
	if string(data) != "new" || info.Mode().Perm() != 0o750 {
		t.Errorf("after WriteFile content = %q mode = %v", data, info.Mode().Perm())
	}

	if err := m.WriteFile(root.String(), []byte("x")); err == nil {
		t.Error("WriteFile(directory) expected error")
	}
}

func TestOSFilesystemManager_WriteFileReplacesAtomically(t *testing.T) {
	t.Parallel()
	m := NewOSFilesystemManager(nil)
	dir := t.TempDir()
	path := filepath.Join(dir, "notes.txt")
	writeFile(t, path, "old\n")

	// Hold the old file open: an in-place write would change what it reads.
	held, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer held.Close()

	if err := m.WriteFile(path, []byte("new\n")); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	old, _ := io.ReadAll(held)
	if string(old) != "old\n" {
		t.Errorf("previously opened file reads %q, want the old content", old)
	}
	data, _ := os.ReadFile(path)
	if string(data) != "new\n" {
		t.Errorf("content = %q, want %q", data, "new\n")
	}

	created := filepath.Join(dir, "fresh.txt")
	if err := m.WriteFile(created, []byte("x")); err != nil {
		t.Fatalf("WriteFile(new file) error = %v", err)
	}
	if info, _ := os.Stat(created); info == nil || info.Mode().Perm() != 0o644 {
		t.Errorf("new file mode = %v, want 0644", info)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 2 {
		var names []string
		for _, e := range entries {
			names = append(names, e.Name())
		}
		t.Errorf("directory holds %q, want only notes.txt and fresh.txt", names)
	}
}
