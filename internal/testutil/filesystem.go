package testutil

import (
	"bytes"
	"fmt"
	"io"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"cdmkn-go/internal/cdmkn"
)

// mockEpoch is the modification time of the first mutation. Every later
// mutation moves the mock clock forward by one second, so mtimes are
// deterministic and strictly increasing.
var mockEpoch = time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)

// MockFile represents a file or directory in the mock filesystem.
type MockFile struct {
	Content     []byte
	Permissions fs.FileMode
	ModTime     time.Time
	IsDirectory bool
}

// MockFilesystemManager is an in-memory filesystem for testing. Paths are
// absolute slash-separated strings such as "/repo/notes.txt". Parent
// directories are created implicitly. Safe for concurrent use.
type MockFilesystemManager struct {
	mu         sync.Mutex
	files      map[string]*MockFile
	ignored    map[string]bool
	readErrors map[string]error
	writeErr   error
	tick       int
}

func NewMockFilesystemManager() *MockFilesystemManager {
	return &MockFilesystemManager{
		files:      make(map[string]*MockFile),
		ignored:    make(map[string]bool),
		readErrors: make(map[string]error),
	}
}

func (m *MockFilesystemManager) nextModTime() time.Time {
	m.tick++
	return mockEpoch.Add(time.Duration(m.tick) * time.Second)
}

func (m *MockFilesystemManager) mkdirAll(dir string) {
	for dir != "/" && dir != "." {
		if _, ok := m.files[dir]; ok {
			return
		}
		m.files[dir] = &MockFile{Permissions: 0755, ModTime: mockEpoch, IsDirectory: true}
		dir = filepath.Dir(dir)
	}
}

// AddDirectory adds a directory and its parents.
func (m *MockFilesystemManager) AddDirectory(path string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.mkdirAll(filepath.Clean(path))
}

// AddFile creates or replaces a file with a fresh modification time.
func (m *MockFilesystemManager) AddFile(path string, content []byte) {
	m.SetContent(path, string(content))
}

// SetContent writes content and advances the file's modification time.
func (m *MockFilesystemManager) SetContent(path, content string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	path = filepath.Clean(path)
	m.mkdirAll(filepath.Dir(path))
	m.files[path] = &MockFile{
		Content:     []byte(content),
		Permissions: 0644,
		ModTime:     m.nextModTime(),
	}
}

// SetContentKeepModTime replaces the content without touching the
// modification time, simulating a write that the mtime check cannot see.
func (m *MockFilesystemManager) SetContentKeepModTime(path, content string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if f, ok := m.files[filepath.Clean(path)]; ok {
		f.Content = []byte(content)
	}
}

// Touch advances the modification time without changing the content.
func (m *MockFilesystemManager) Touch(path string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if f, ok := m.files[filepath.Clean(path)]; ok {
		f.ModTime = m.nextModTime()
	}
}

// Remove deletes a file, or a directory and everything below it.
func (m *MockFilesystemManager) Remove(path string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	path = filepath.Clean(path)
	for p := range m.files {
		if p == path || strings.HasPrefix(p, path+"/") {
			delete(m.files, p)
		}
	}
}

// Content returns the current content of a file.
func (m *MockFilesystemManager) Content(path string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.files[filepath.Clean(path)]
	if !ok || f.IsDirectory {
		return "", false
	}
	return string(f.Content), true
}

// Ignore marks a path, and for directories everything below it, as ignored.
func (m *MockFilesystemManager) Ignore(path string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ignored[filepath.Clean(path)] = true
}

// FailReads makes Open fail for path until cleared with a nil error.
func (m *MockFilesystemManager) FailReads(path string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err == nil {
		delete(m.readErrors, filepath.Clean(path))
		return
	}
	m.readErrors[filepath.Clean(path)] = err
}

// FailWrites makes WriteFile fail with err. A nil err clears it.
func (m *MockFilesystemManager) FailWrites(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.writeErr = err
}

func (m *MockFilesystemManager) info(path string) (fs.FileInfo, bool) {
	f, ok := m.files[path]
	if !ok {
		return nil, false
	}
	mode := f.Permissions
	if f.IsDirectory {
		mode |= fs.ModeDir
	}
	return &mockFileInfo{
		name:    filepath.Base(path),
		size:    int64(len(f.Content)),
		mode:    mode,
		modTime: f.ModTime,
	}, true
}

func (m *MockFilesystemManager) Resolve(rawPath string) (*cdmkn.Path, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	absPath := filepath.Clean(rawPath)
	if !filepath.IsAbs(absPath) {
		return nil, fmt.Errorf("mock filesystem requires absolute paths: %s", rawPath)
	}
	info, ok := m.info(absPath)
	if !ok {
		return nil, fmt.Errorf("resolving %s: %w", absPath, fs.ErrNotExist)
	}
	return cdmkn.NewPath(absPath, info), nil
}

func (m *MockFilesystemManager) Open(path *cdmkn.Path) (io.ReadCloser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err, ok := m.readErrors[path.String()]; ok {
		return nil, err
	}
	f, ok := m.files[path.String()]
	if !ok {
		return nil, fmt.Errorf("opening %s: %w", path, fs.ErrNotExist)
	}
	if f.IsDirectory {
		return nil, fmt.Errorf("cannot open directory: %s", path)
	}
	return io.NopCloser(bytes.NewReader(bytes.Clone(f.Content))), nil
}

func (m *MockFilesystemManager) Stat(path *cdmkn.Path) (fs.FileInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	info, ok := m.info(path.String())
	if !ok {
		return nil, fmt.Errorf("stat %s: %w", path, fs.ErrNotExist)
	}
	return info, nil
}

func (m *MockFilesystemManager) FindFiles(root *cdmkn.Path) ([]*cdmkn.Path, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rootPath := root.String()
	if f, ok := m.files[rootPath]; !ok || !f.IsDirectory {
		return nil, fmt.Errorf("not a directory: %s", rootPath)
	}

	var paths []string
	for p, f := range m.files {
		if f.IsDirectory {
			continue
		}
		rel, ok := cdmkn.RelativePath(rootPath, p)
		if !ok || m.ignoredLocked(p, rel) {
			continue
		}
		paths = append(paths, p)
	}
	sort.Strings(paths)

	result := make([]*cdmkn.Path, 0, len(paths))
	for _, p := range paths {
		info, _ := m.info(p)
		result = append(result, cdmkn.NewPath(p, info))
	}
	return result, nil
}

func (m *MockFilesystemManager) IsIgnored(path *cdmkn.Path, root string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rel, ok := cdmkn.RelativePath(root, path.String())
	if !ok {
		return false, fmt.Errorf("%s is not inside %s", path, root)
	}
	return m.ignoredLocked(path.String(), rel), nil
}

// ignoredLocked applies the hidden-segment rule and the Ignore registry.
func (m *MockFilesystemManager) ignoredLocked(absPath, rel string) bool {
	for _, seg := range strings.Split(rel, "/") {
		if strings.HasPrefix(seg, ".") {
			return true
		}
	}
	for p := absPath; p != "/" && p != "."; p = filepath.Dir(p) {
		if m.ignored[p] {
			return true
		}
	}
	return false
}

func (m *MockFilesystemManager) WriteFile(absPath string, content []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.writeErr != nil {
		return m.writeErr
	}
	absPath = filepath.Clean(absPath)
	perm := fs.FileMode(0644)
	if f, ok := m.files[absPath]; ok {
		if f.IsDirectory {
			return fmt.Errorf("cannot write directory: %s", absPath)
		}
		perm = f.Permissions
	}
	m.mkdirAll(filepath.Dir(absPath))
	m.files[absPath] = &MockFile{
		Content:     bytes.Clone(content),
		Permissions: perm,
		ModTime:     m.nextModTime(),
	}
	return nil
}

type mockFileInfo struct {
	name    string
	size    int64
	mode    fs.FileMode
	modTime time.Time
}

func (m *mockFileInfo) Name() string       { return m.name }
func (m *mockFileInfo) Size() int64        { return m.size }
func (m *mockFileInfo) Mode() fs.FileMode  { return m.mode }
func (m *mockFileInfo) ModTime() time.Time { return m.modTime }
func (m *mockFileInfo) IsDir() bool        { return m.mode.IsDir() }
func (m *mockFileInfo) Sys() any           { return nil }

var _ cdmkn.FilesystemManager = (*MockFilesystemManager)(nil)
