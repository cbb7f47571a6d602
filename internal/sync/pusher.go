package sync

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"cdmkn-go/internal/cdmkn"
	"cdmkn-go/internal/database/sqlc"
)

// DefaultBatchSize is the number of changes per bundle when none is configured.
const DefaultBatchSize = 500

// Pusher uploads history to a vault. A nil encryptor stores plaintext bundles.
type Pusher struct {
	changelog cdmkn.ChangeLog
	vault     cdmkn.Vault
	encryptor cdmkn.Encryptor
	installID string
	batchSize int
	logger    cdmkn.Logger
	clock     cdmkn.Clock
	idgen     cdmkn.IDGenerator
}

func NewPusher(changelog cdmkn.ChangeLog, vault cdmkn.Vault, encryptor cdmkn.Encryptor, installID string, batchSize int, logger cdmkn.Logger, clock cdmkn.Clock, idgen cdmkn.IDGenerator) *Pusher {
	if batchSize < 1 {
		batchSize = DefaultBatchSize
	}
	if logger == nil {
		logger = cdmkn.NewNopLogger()
	}
	if clock == nil {
		clock = cdmkn.RealClock{}
	}
	if idgen == nil {
		idgen = cdmkn.UUIDGenerator{}
	}
	return &Pusher{
		changelog: changelog,
		vault:     vault,
		encryptor: encryptor,
		installID: installID,
		batchSize: batchSize,
		logger:    logger,
		clock:     clock,
		idgen:     idgen,
	}
}

// PushResult summarizes a push.
type PushResult struct {
	Bundles []ManifestEntry
	Changes int
	// Cursor is the creation time of the newest pushed change, or the zero
	// time when nothing has ever been pushed.
	Cursor time.Time
}

// Cursor returns the creation time of the newest change already pushed.
func (p *Pusher) Cursor() (time.Time, error) {
	version, err := p.vault.GetMetadataVersion(p.installID, manifestName)
	if err != nil {
		return time.Time{}, fmt.Errorf("reading push cursor: %w", err)
	}
	if version == 0 {
		return time.Time{}, nil
	}
	return time.Unix(0, version).UTC(), nil
}

// Manifest returns the list of pushed bundles.
func (p *Pusher) Manifest() (*Manifest, error) {
	version, err := p.vault.GetMetadataVersion(p.installID, manifestName)
	if err != nil {
		return nil, fmt.Errorf("reading manifest version: %w", err)
	}
	if version == 0 {
		return &Manifest{InstallID: p.installID}, nil
	}
	var buf bytes.Buffer
	if err := p.vault.GetMetadata(p.installID, manifestName, &buf); err != nil {
		return nil, fmt.Errorf("downloading manifest: %w", err)
	}
	var m Manifest
	if err := decodeJSON(&buf, &m, "manifest"); err != nil {
		return nil, err
	}
	return &m, nil
}

// Push uploads every change created after the cursor. Each bundle is
// stored before the manifest that references it, and the manifest is
// rewritten after every bundle, so an interrupted push resumes where it
// stopped. A database snapshot is uploaded once anything was pushed.
func (p *Pusher) Push() (*PushResult, error) {
	if err := p.vault.ValidateSetup(); err != nil {
		return nil, fmt.Errorf("vault is not usable: %w", err)
	}

	manifest, err := p.Manifest()
	if err != nil {
		return nil, err
	}
	cursor, err := p.Cursor()
	if err != nil {
		return nil, err
	}

	result := &PushResult{Cursor: cursor}
	for {
		rows, err := p.nextBatch(result.Cursor)
		if err != nil {
			return result, err
		}
		if len(rows) == 0 {
			break
		}

		entry, err := p.pushBundle(rows)
		if err != nil {
			return result, err
		}
		manifest.Bundles = append(manifest.Bundles, *entry)
		if err := p.putManifest(manifest, entry.To); err != nil {
			return result, err
		}

		result.Bundles = append(result.Bundles, *entry)
		result.Changes += entry.Changes
		result.Cursor = entry.To
		p.logger.Info("bundle pushed", "bundle", entry.ID, "checksum", entry.Checksum, "changes", entry.Changes)
	}

	if len(result.Bundles) > 0 {
		if err := p.pushDatabase(result.Cursor); err != nil {
			return result, err
		}
	}
	p.logger.Info("push complete", "bundles", len(result.Bundles), "changes", result.Changes)
	return result, nil
}

// nextBatch returns the changes after cursor for one bundle. A full batch
// is cut before its last timestamp, so changes sharing a timestamp always
// land in the same bundle and the cursor never splits them.
func (p *Pusher) nextBatch(cursor time.Time) ([]*sqlc.GetChangesSinceRow, error) {
	limit := p.batchSize
	for {
		rows, err := p.changelog.ChangesSince(cursor, limit)
		if err != nil {
			return nil, cdmkn.NewStorageError("listing changes to push", err)
		}
		if len(rows) < limit {
			return rows, nil
		}
		last := rows[len(rows)-1].CreatedAt
		cut := len(rows)
		for cut > 0 && rows[cut-1].CreatedAt.Equal(last) {
			cut--
		}
		if cut > 0 {
			return rows[:cut], nil
		}
		limit *= 2
	}
}

func (p *Pusher) pushBundle(rows []*sqlc.GetChangesSinceRow) (*ManifestEntry, error) {
	bundle := Bundle{
		ID:        p.idgen.New(),
		InstallID: p.installID,
		CreatedAt: p.clock.Now(),
		Changes:   make([]BundleChange, 0, len(rows)),
	}
	for _, row := range rows {
		bundle.Changes = append(bundle.Changes, newBundleChange(row))
	}

	plain, err := json.Marshal(bundle)
	if err != nil {
		return nil, fmt.Errorf("encoding bundle: %w", err)
	}

	stored := plain
	if p.encryptor != nil {
		var sealed bytes.Buffer
		if err := p.encryptor.Encrypt(bytes.NewReader(plain), &sealed); err != nil {
			return nil, fmt.Errorf("encrypting bundle: %w", err)
		}
		stored = sealed.Bytes()
	}

	sum := sha256.Sum256(stored)
	checksum := hex.EncodeToString(sum[:])
	if err := p.vault.PutContent(checksum, bytes.NewReader(stored), int64(len(stored))); err != nil {
		return nil, fmt.Errorf("uploading bundle to vault: %w", err)
	}

	return &ManifestEntry{
		ID:        bundle.ID,
		Checksum:  checksum,
		Changes:   len(rows),
		Size:      int64(len(stored)),
		Encrypted: p.encryptor != nil,
		From:      rows[0].CreatedAt.UTC(),
		To:        rows[len(rows)-1].CreatedAt.UTC(),
		PushedAt:  bundle.CreatedAt,
	}, nil
}

func (p *Pusher) putManifest(m *Manifest, cursor time.Time) error {
	data, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("encoding manifest: %w", err)
	}
	if err := p.vault.PutMetadata(p.installID, manifestName, bytes.NewReader(data), int64(len(data)), cursor.UnixNano()); err != nil {
		return fmt.Errorf("uploading manifest to vault: %w", err)
	}
	return nil
}

// pushDatabase uploads a consistent copy of the change log as metadata.
func (p *Pusher) pushDatabase(cursor time.Time) error {
	tmpFile, err := os.CreateTemp("", "cdmkn-db-backup-*.db")
	if err != nil {
		return fmt.Errorf("creating temp file for db backup: %w", err)
	}
	tmpPath := tmpFile.Name()
	tmpFile.Close()
	// VACUUM INTO refuses to overwrite an existing file.
	os.Remove(tmpPath)
	defer os.Remove(tmpPath)

	if err := p.changelog.BackupTo(tmpPath); err != nil {
		return fmt.Errorf("backing up database: %w", err)
	}

	f, err := os.Open(tmpPath)
	if err != nil {
		return fmt.Errorf("opening db backup for upload: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat db backup: %w", err)
	}

	var r io.Reader = f
	size := info.Size()
	if p.encryptor != nil {
		var sealed bytes.Buffer
		if err := p.encryptor.Encrypt(f, &sealed); err != nil {
			return fmt.Errorf("encrypting db backup: %w", err)
		}
		r, size = &sealed, int64(sealed.Len())
	}

	if err := p.vault.PutMetadata(p.installID, databaseName, r, size, cursor.UnixNano()); err != nil {
		return fmt.Errorf("uploading db backup to vault: %w", err)
	}
	return nil
}
