package cdmkn

import (
	"io"
	"io/fs"
)

// FilesystemManager abstracts file access so the engine can be tested
// without touching the real filesystem.
type FilesystemManager interface {
	// Resolve turns a raw path into a canonical absolute Path. Symlinks are
	// resolved; devices, pipes and sockets are rejected.
	Resolve(rawPath string) (*Path, error)

	// Open opens a file for reading.
	Open(path *Path) (io.ReadCloser, error)

	// Stat returns fresh metadata for a path.
	Stat(path *Path) (fs.FileInfo, error)

	// FindFiles enumerates the files below root, pruning ignored entries.
	// Returned paths carry the metadata read during the walk.
	FindFiles(root *Path) ([]*Path, error)

	// IsIgnored reports whether path is excluded by the ignore rules that
	// apply inside root.
	IsIgnored(path *Path, root string) (bool, error)

	// WriteFile replaces the content of the file at absPath, keeping its mode.
	WriteFile(absPath string, content []byte) error
}
