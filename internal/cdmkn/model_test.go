package cdmkn

import (
	"errors"
	"io/fs"
	"testing"
	"time"
)

type fakeInfo struct {
	size int64
	mode fs.FileMode
}

func (f fakeInfo) Name() string       { return "f" }
func (f fakeInfo) Size() int64        { return f.size }
func (f fakeInfo) Mode() fs.FileMode  { return f.mode }
func (f fakeInfo) ModTime() time.Time { return time.Time{} }
func (f fakeInfo) IsDir() bool        { return f.mode.IsDir() }
func (f fakeInfo) Sys() any           { return nil }

func TestIsValidFile(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		info fs.FileInfo
		want bool
	}{
		{"small regular file", fakeInfo{size: 10}, true},
		{"empty file", fakeInfo{}, true},
		{"just below ceiling", fakeInfo{size: MaxFileSize - 1}, true},
		{"at ceiling", fakeInfo{size: MaxFileSize}, false},
		{"directory", fakeInfo{mode: fs.ModeDir}, false},
		{"symlink", fakeInfo{mode: fs.ModeSymlink}, false},
		{"named pipe", fakeInfo{mode: fs.ModeNamedPipe}, false},
		{"nil", nil, false},
	}
	for _, tt := range tests {
		if got := IsValidFile(tt.info); got != tt.want {
			t.Errorf("%s: IsValidFile() = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestRepoStatus(t *testing.T) {
	t.Parallel()
	tests := []struct {
		status  RepoStatus
		name    string
		watched bool
	}{
		{RepoInactive, "inactive", false},
		{RepoStarting, "starting", true},
		{RepoActive, "active", true},
		{RepoStatus(5), "status(5)", false},
	}
	for _, tt := range tests {
		if tt.status.String() != tt.name || tt.status.Watched() != tt.watched {
			t.Errorf("%d: String()=%q Watched()=%v", tt.status, tt.status.String(), tt.status.Watched())
		}
	}
}

func TestRelativePath(t *testing.T) {
	t.Parallel()
	tests := []struct {
		root, path string
		want       string
		ok         bool
	}{
		{"/repo", "/repo/a.txt", "a.txt", true},
		{"/repo", "/repo/sub/b.txt", "sub/b.txt", true},
		{"/repo", "/repo", "", false},
		{"/repo", "/repository/a.txt", "", false},
		{"/repo", "/other", "", false},
	}
	for _, tt := range tests {
		got, ok := RelativePath(tt.root, tt.path)
		if got != tt.want || ok != tt.ok {
			t.Errorf("RelativePath(%q, %q) = %q, %v; want %q, %v", tt.root, tt.path, got, ok, tt.want, tt.ok)
		}
	}
}

func TestErrors(t *testing.T) {
	t.Parallel()

	err := invalidInputf("bad path %q", "x")
	if !errors.Is(err, ErrInvalidInput) {
		t.Errorf("invalidInputf() does not wrap ErrInvalidInput: %v", err)
	}

	cause := errors.New("disk full")
	se := NewStorageError("append", cause)
	if !errors.Is(se, cause) {
		t.Error("StorageError does not unwrap to its cause")
	}
	if again := NewStorageError("outer", se); again != se {
		t.Error("NewStorageError() rewrapped an existing StorageError")
	}

	ioErr := &IOError{Path: "/a", Err: cause}
	if !errors.Is(ioErr, cause) || ioErr.Error() != "reading /a: disk full" {
		t.Errorf("IOError = %v", ioErr)
	}
}
