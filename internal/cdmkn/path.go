package cdmkn

import (
	"io/fs"
	"path/filepath"
	"strings"
	"time"
)

// Path is a canonical absolute filesystem path together with the metadata
// observed when it was resolved or enumerated. Paths are produced by a
// FilesystemManager; callers never build them from raw user input.
type Path struct {
	absPath string
	info    fs.FileInfo
}

// NewPath creates a Path from an already canonical absolute path.
func NewPath(absPath string, info fs.FileInfo) *Path {
	return &Path{absPath: absPath, info: info}
}

func (p *Path) String() string { return p.absPath }

// Info returns the metadata captured with the path.
func (p *Path) Info() fs.FileInfo { return p.info }

func (p *Path) IsDir() bool { return p.info != nil && p.info.IsDir() }

// ModTime returns the captured modification time, or the zero time when no
// metadata is attached.
func (p *Path) ModTime() time.Time {
	if p.info == nil {
		return time.Time{}
	}
	return p.info.ModTime()
}

// RelativeTo returns the slash-separated path of p below root. The second
// result is false when p is not inside root.
func (p *Path) RelativeTo(root string) (string, bool) {
	return RelativePath(root, p.absPath)
}

// RelativePath returns the slash-separated path of absPath below root, and
// whether absPath lies strictly inside root.
func RelativePath(root, absPath string) (string, bool) {
	rel, err := filepath.Rel(root, absPath)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", false
	}
	return filepath.ToSlash(rel), true
}
