package vault

import (
	"bytes"
	"fmt"
	"io"
	"sync"

	"cdmkn-go/internal/cdmkn"
)

// MemoryVault keeps every object in memory. It is used by tests and by the
// "memory" vault type. Safe for concurrent use.
type MemoryVault struct {
	name     string
	mu       sync.RWMutex
	objects  map[string][]byte
	versions map[string]int64
}

// NewMemoryVault creates an empty in-memory vault.
func NewMemoryVault(name string) *MemoryVault {
	return &MemoryVault{
		name:     name,
		objects:  make(map[string][]byte),
		versions: make(map[string]int64),
	}
}

func readExactly(r io.Reader, size int64) ([]byte, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read data: %w", err)
	}
	if int64(len(data)) != size {
		return nil, fmt.Errorf("size mismatch: expected %d bytes, got %d", size, len(data))
	}
	return data, nil
}

func (m *MemoryVault) PutContent(checksum string, r io.Reader, size int64) error {
	if err := checkSegment("checksum", checksum); err != nil {
		return err
	}
	data, err := readExactly(r, size)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[contentKey(checksum)] = data
	return nil
}

func (m *MemoryVault) GetContent(checksum string, w io.Writer) error {
	return m.get(contentKey(checksum), w, fmt.Sprintf("content not found: %s", checksum))
}

func (m *MemoryVault) PutMetadata(installID, name string, r io.Reader, size int64, version int64) error {
	if err := checkMetadataName(installID, name); err != nil {
		return err
	}
	data, err := readExactly(r, size)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[metadataKey(installID, name)] = data
	m.versions[versionKey(installID, name)] = version
	return nil
}

func (m *MemoryVault) GetMetadata(installID, name string, w io.Writer) error {
	return m.get(metadataKey(installID, name), w,
		fmt.Sprintf("metadata %q not found for install: %s", name, installID))
}

func (m *MemoryVault) GetMetadataVersion(installID, name string) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.versions[versionKey(installID, name)], nil
}

// ValidateSetup always succeeds for the in-memory vault.
func (m *MemoryVault) ValidateSetup() error {
	return nil
}

func (m *MemoryVault) get(key string, w io.Writer, notFound string) error {
	m.mu.RLock()
	data, ok := m.objects[key]
	m.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%s", notFound)
	}
	if _, err := io.Copy(w, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("failed to write data: %w", err)
	}
	return nil
}

// Compile-time check that MemoryVault implements cdmkn.Vault
var _ cdmkn.Vault = (*MemoryVault)(nil)
