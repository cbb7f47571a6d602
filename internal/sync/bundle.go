// Package sync pushes recorded history to a vault. Changes created since
// the last push are packed into a bundle, optionally encrypted and stored
// under the checksum of the stored bytes; a per-installation manifest lists
// the bundles and its vault version is the push cursor.
package sync

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"cdmkn-go/internal/database/sqlc"
)

const (
	manifestName = "manifest"
	databaseName = "db"
)

// Bundle is one pushed batch of changes.
type Bundle struct {
	ID        string         `json:"id"`
	InstallID string         `json:"install_id"`
	CreatedAt time.Time      `json:"created_at"`
	Changes   []BundleChange `json:"changes"`
}

// BundleChange is a change together with the paths needed to place it
// without access to the local database.
type BundleChange struct {
	ID            int64           `json:"id"`
	EventID       int64           `json:"event_id"`
	DocumentID    int64           `json:"document_id"`
	Repository    string          `json:"repository"`
	RelativePath  string          `json:"relative_path"`
	CanonicalPath string          `json:"canonical_path"`
	CreatedAt     time.Time       `json:"created_at"`
	Elements      json.RawMessage `json:"elements"`
}

func newBundleChange(row *sqlc.GetChangesSinceRow) BundleChange {
	return BundleChange{
		ID:            row.ID,
		EventID:       row.EventID,
		DocumentID:    row.DocumentID,
		Repository:    row.AbsolutePath,
		RelativePath:  row.RelativePath,
		CanonicalPath: row.CanonicalPath,
		CreatedAt:     row.CreatedAt.UTC(),
		Elements:      json.RawMessage(row.ChangeElements),
	}
}

// Manifest lists the bundles pushed by one installation, oldest first.
type Manifest struct {
	InstallID string          `json:"install_id"`
	Bundles   []ManifestEntry `json:"bundles"`
}

type ManifestEntry struct {
	ID        string    `json:"id"`
	Checksum  string    `json:"checksum"`
	Changes   int       `json:"changes"`
	Size      int64     `json:"size"`
	Encrypted bool      `json:"encrypted"`
	From      time.Time `json:"from"`
	To        time.Time `json:"to"`
	PushedAt  time.Time `json:"pushed_at"`
}

// Find returns the entry for checksum, or nil.
func (m *Manifest) Find(checksum string) *ManifestEntry {
	for i := range m.Bundles {
		if m.Bundles[i].Checksum == checksum {
			return &m.Bundles[i]
		}
	}
	return nil
}

func decodeJSON(r io.Reader, v any, what string) error {
	if err := json.NewDecoder(r).Decode(v); err != nil {
		return fmt.Errorf("decoding %s: %w", what, err)
	}
	return nil
}
