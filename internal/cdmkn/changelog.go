package cdmkn

import (
	"database/sql"
	"time"

	"cdmkn-go/internal/database/sqlc"
)

// ChangeLog is the durable, append-only store for repositories, documents,
// events and changes. Every write runs in its own short transaction; partial
// writes are never observable. Lookups return nil and no error when the
// record does not exist.
type ChangeLog interface {
	// Repository operations

	// CreateRepository registers a watched root in the starting state.
	CreateRepository(absolutePath string) (*sqlc.Repository, error)

	// FindRepositoryByPath returns the repository rooted exactly at absolutePath.
	FindRepositoryByPath(absolutePath string) (*sqlc.Repository, error)

	// SearchRepositoryForPath returns the outermost watched repository
	// containing path, or the outermost one of any status if none is watched.
	SearchRepositoryForPath(path string) (*sqlc.Repository, error)

	// ListRepositories returns all repositories ordered by path.
	ListRepositories() ([]*sqlc.Repository, error)

	// SetRepositoryStatus moves a repository to a new lifecycle state.
	SetRepositoryStatus(repoID int64, status RepoStatus) error

	// Document operations

	// UpsertDocument returns the id of the document with the given canonical
	// path, creating it first if needed. Calling it again is a no-op.
	UpsertDocument(repoID int64, relativePath, canonicalPath string) (int64, error)

	// FindDocumentByPath returns a document by canonical path.
	FindDocumentByPath(repoID int64, canonicalPath string) (*sqlc.Document, error)

	// ListDocuments returns a repository's documents ordered by relative path.
	ListDocuments(repoID int64) ([]*sqlc.Document, error)

	// GetDocumentBaseline recovers the last known content of a document: the
	// cached content if present, otherwise the current side of its latest change.
	GetDocumentBaseline(repoID int64, canonicalPath string) (*Baseline, error)

	// SaveBaseline caches the first observed content of a document.
	SaveBaseline(documentID int64, content string) error

	// Event operations

	// StartEvent creates an event chained to parentEventID and points the
	// repository's current event at it, in one transaction.
	StartEvent(repoID int64, parentEventID sql.NullInt64) (int64, error)

	// GetEvent returns an event by id.
	GetEvent(eventID int64) (*sqlc.Event, error)

	// Change operations

	// AppendChange writes one change and advances the document's cached
	// baseline in the same transaction. Failures are *StorageError.
	AppendChange(documentID, eventID int64, elements []ChangeElement, createdAt time.Time) (int64, error)

	// GetChange returns a change by id.
	GetChange(changeID int64) (*sqlc.Change, error)

	// LatestChanges returns up to limit changes for a document, newest first.
	// No history yields an empty slice.
	LatestChanges(documentID int64, limit int) ([]*sqlc.Change, error)

	// ChangesSince returns up to limit changes created strictly after since,
	// oldest first, joined with their document and repository paths.
	ChangesSince(since time.Time, limit int) ([]*sqlc.GetChangesSinceRow, error)

	// Maintenance

	// Path returns the database location.
	Path() string

	// CheckMigrations verifies the schema is at the latest version.
	CheckMigrations() error

	// BackupTo writes a consistent copy of the database to destPath.
	BackupTo(destPath string) error

	Close() error
}
