package fs

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"

	"cdmkn-go/internal/cdmkn"
)

// OSFilesystemManager is the real filesystem implementation of
// cdmkn.FilesystemManager.
type OSFilesystemManager struct {
	ignorePatterns []string
}

// NewOSFilesystemManager creates a filesystem manager that applies the given
// ignore patterns in every repository on top of the repository's own ignore files.
func NewOSFilesystemManager(ignorePatterns []string) *OSFilesystemManager {
	return &OSFilesystemManager{ignorePatterns: ignorePatterns}
}

// Resolve returns the canonical form of rawPath: absolute, with symlinks
// evaluated.
func (m *OSFilesystemManager) Resolve(rawPath string) (*cdmkn.Path, error) {
	absPath, err := filepath.Abs(rawPath)
	if err != nil {
		return nil, fmt.Errorf("resolving absolute path: %w", err)
	}
	canonical, err := filepath.EvalSymlinks(absPath)
	if err != nil {
		return nil, fmt.Errorf("resolving symlinks: %w", err)
	}

	info, err := os.Lstat(canonical)
	if err != nil {
		return nil, fmt.Errorf("stat path: %w", err)
	}

	mode := info.Mode()
	if mode&os.ModeDevice != 0 {
		return nil, fmt.Errorf("device files not supported: %s", canonical)
	}
	if mode&os.ModeNamedPipe != 0 {
		return nil, fmt.Errorf("named pipes not supported: %s", canonical)
	}
	if mode&os.ModeSocket != 0 {
		return nil, fmt.Errorf("sockets not supported: %s", canonical)
	}

	return cdmkn.NewPath(canonical, info), nil
}

func (m *OSFilesystemManager) Open(p *cdmkn.Path) (io.ReadCloser, error) {
	if p.IsDir() {
		return nil, fmt.Errorf("cannot open directory as file: %s", p)
	}
	return os.Open(p.String())
}

func (m *OSFilesystemManager) Stat(p *cdmkn.Path) (fs.FileInfo, error) {
	return os.Lstat(p.String())
}

// FindFiles walks root and returns every non-ignored regular file. Ignored
// directories are not descended into. Entries that vanish or cannot be read
// during the walk are skipped; only a failure on root itself is an error.
func (m *OSFilesystemManager) FindFiles(root *cdmkn.Path) ([]*cdmkn.Path, error) {
	if !root.IsDir() {
		return nil, fmt.Errorf("path is not a directory: %s", root)
	}

	matcher := NewIgnoreMatcher(root.String(), m.ignorePatterns)
	var paths []*cdmkn.Path

	err := filepath.WalkDir(root.String(), func(p string, d fs.DirEntry, err error) error {
		if p == root.String() {
			if err != nil {
				return err
			}
			return matcher.LoadDir("")
		}
		if err != nil {
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		rel, ok := cdmkn.RelativePath(root.String(), p)
		if !ok {
			return nil
		}

		if d.IsDir() {
			if matcher.Match(rel, true) {
				return filepath.SkipDir
			}
			if err := matcher.LoadDir(rel); err != nil {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() || matcher.Match(rel, false) {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return nil
		}
		paths = append(paths, cdmkn.NewPath(p, info))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking directory: %w", err)
	}
	return paths, nil
}

// IsIgnored reports whether p is excluded by the rules in effect below root,
// including the ignore files of every directory between them.
func (m *OSFilesystemManager) IsIgnored(p *cdmkn.Path, root string) (bool, error) {
	rel, ok := p.RelativeTo(root)
	if !ok {
		return false, fmt.Errorf("%s is not inside %s", p, root)
	}

	matcher := NewIgnoreMatcher(root, m.ignorePatterns)
	dir := path.Dir(rel)
	var chain []string
	for dir != "." {
		chain = append(chain, dir)
		dir = path.Dir(dir)
	}
	chain = append(chain, "")
	for _, d := range chain {
		if err := matcher.LoadDir(d); err != nil {
			return false, err
		}
	}
	return matcher.Match(rel, p.IsDir()), nil
}

// WriteFile replaces the content of absPath atomically: the content goes to a
// hidden temporary file in the same directory, which is then renamed over
// absPath. An existing file keeps its mode.
func (m *OSFilesystemManager) WriteFile(absPath string, content []byte) error {
	perm := fs.FileMode(0o644)
	info, err := os.Stat(absPath)
	switch {
	case err == nil:
		if !info.Mode().IsRegular() {
			return fmt.Errorf("not a regular file: %s", absPath)
		}
		perm = info.Mode().Perm()
	case !errors.Is(err, fs.ErrNotExist):
		return fmt.Errorf("stat %s: %w", absPath, err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(absPath), "."+filepath.Base(absPath)+".cdmkn-*")
	if err != nil {
		return fmt.Errorf("creating temporary file for %s: %w", absPath, err)
	}
	tmpPath := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			tmp.Close()
			os.Remove(tmpPath)
		}
	}()

	if _, err := tmp.Write(content); err != nil {
		return fmt.Errorf("writing %s: %w", tmpPath, err)
	}
	if err := tmp.Chmod(perm); err != nil {
		return fmt.Errorf("setting mode of %s: %w", tmpPath, err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("syncing %s: %w", tmpPath, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", tmpPath, err)
	}
	if err := os.Rename(tmpPath, absPath); err != nil {
		os.Remove(tmpPath)
		committed = true
		return fmt.Errorf("replacing %s: %w", absPath, err)
	}
	committed = true
	return nil
}

// Compile-time check that OSFilesystemManager implements cdmkn.FilesystemManager
var _ cdmkn.FilesystemManager = (*OSFilesystemManager)(nil)
