package vault

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"cdmkn-go/internal/cdmkn"
)

// FileSystemVault stores objects as files below a root directory, using the
// shared object layout. Writes go through a temp file and a rename so a
// reader never sees a partial object.
type FileSystemVault struct {
	name string
	root string
}

// NewFileSystemVault creates a filesystem vault rooted at root.
func NewFileSystemVault(name, root string) (*FileSystemVault, error) {
	for _, dir := range []string{"content", "metadata"} {
		if err := os.MkdirAll(filepath.Join(root, dir), 0755); err != nil {
			return nil, fmt.Errorf("failed to create %s directory: %w", dir, err)
		}
	}
	return &FileSystemVault{name: name, root: root}, nil
}

func (v *FileSystemVault) objectPath(key string) string {
	return filepath.Join(v.root, filepath.FromSlash(key))
}

// PutContent stores content under its checksum. Existing content is kept;
// the reader is still drained and its size checked.
func (v *FileSystemVault) PutContent(checksum string, r io.Reader, size int64) error {
	if err := checkSegment("checksum", checksum); err != nil {
		return err
	}
	destPath := v.objectPath(contentKey(checksum))

	if _, err := os.Stat(destPath); err == nil {
		written, err := io.Copy(io.Discard, r)
		if err != nil {
			return fmt.Errorf("failed to read content: %w", err)
		}
		if written != size {
			return fmt.Errorf("size mismatch: expected %d bytes, got %d", size, written)
		}
		return nil
	}

	return v.writeFile(destPath, r, size)
}

func (v *FileSystemVault) GetContent(checksum string, w io.Writer) error {
	return v.readFile(v.objectPath(contentKey(checksum)), w, fmt.Sprintf("content not found: %s", checksum))
}

// PutMetadata writes the item first and its version second, so a version
// never points at an item that was not fully written.
func (v *FileSystemVault) PutMetadata(installID, name string, r io.Reader, size int64, version int64) error {
	if err := checkMetadataName(installID, name); err != nil {
		return err
	}

	destPath := v.objectPath(metadataKey(installID, name))
	if err := os.MkdirAll(filepath.Dir(destPath), 0755); err != nil {
		return fmt.Errorf("failed to create metadata directory: %w", err)
	}
	if err := v.writeFile(destPath, r, size); err != nil {
		return err
	}

	versionData := strconv.FormatInt(version, 10)
	return v.writeFile(v.objectPath(versionKey(installID, name)), strings.NewReader(versionData), int64(len(versionData)))
}

func (v *FileSystemVault) GetMetadata(installID, name string, w io.Writer) error {
	return v.readFile(v.objectPath(metadataKey(installID, name)), w,
		fmt.Sprintf("metadata %q not found for install: %s", name, installID))
}

// GetMetadataVersion returns 0 when no version file exists.
func (v *FileSystemVault) GetMetadataVersion(installID, name string) (int64, error) {
	data, err := os.ReadFile(v.objectPath(versionKey(installID, name)))
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("reading version file: %w", err)
	}

	version, err := strconv.ParseInt(strings.TrimSpace(string(data)), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parsing version: %w", err)
	}
	return version, nil
}

// ValidateSetup verifies that the vault directories exist.
func (v *FileSystemVault) ValidateSetup() error {
	for _, dir := range []string{v.root, filepath.Join(v.root, "content"), filepath.Join(v.root, "metadata")} {
		info, err := os.Stat(dir)
		if err != nil {
			return fmt.Errorf("vault directory not accessible: %w", err)
		}
		if !info.IsDir() {
			return fmt.Errorf("vault path is not a directory: %s", dir)
		}
	}
	return nil
}

func (v *FileSystemVault) writeFile(destPath string, r io.Reader, expectedSize int64) error {
	tmpFile, err := os.CreateTemp(filepath.Dir(destPath), ".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	success := false
	defer func() {
		if !success {
			os.Remove(tmpPath)
		}
	}()

	written, err := io.Copy(tmpFile, r)
	if err != nil {
		tmpFile.Close()
		return fmt.Errorf("failed to write data: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if written != expectedSize {
		return fmt.Errorf("size mismatch: expected %d bytes, got %d", expectedSize, written)
	}

	if err := os.Rename(tmpPath, destPath); err != nil {
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	success = true
	return nil
}

func (v *FileSystemVault) readFile(srcPath string, w io.Writer, notFoundMsg string) error {
	f, err := os.Open(srcPath)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%s", notFoundMsg)
		}
		return fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(w, f); err != nil {
		return fmt.Errorf("failed to read file: %w", err)
	}
	return nil
}

// Compile-time check that FileSystemVault implements cdmkn.Vault
var _ cdmkn.Vault = (*FileSystemVault)(nil)
