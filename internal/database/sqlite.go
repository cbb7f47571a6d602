package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"cdmkn-go/internal/cdmkn"
	"cdmkn-go/internal/database/migrations"
	"cdmkn-go/internal/database/sqlc"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// SQLiteDatabase implements cdmkn.ChangeLog on SQLite.
type SQLiteDatabase struct {
	db      *sql.DB
	queries *sqlc.Queries
	path    string
	clock   cdmkn.Clock
}

// NewSQLiteDatabase opens the change log at path, which may be ":memory:".
// A nil clock means the real clock.
func NewSQLiteDatabase(path string, clock cdmkn.Clock) (*SQLiteDatabase, error) {
	db, err := OpenConnection(path)
	if err != nil {
		return nil, err
	}
	return newSQLiteDatabase(db, path, clock), nil
}

// NewSQLiteDatabaseFromDB wraps an existing connection.
// The caller is responsible for ensuring the connection is properly configured.
func NewSQLiteDatabaseFromDB(db *sql.DB, clock cdmkn.Clock) *SQLiteDatabase {
	return newSQLiteDatabase(db, "", clock)
}

func newSQLiteDatabase(db *sql.DB, path string, clock cdmkn.Clock) *SQLiteDatabase {
	if clock == nil {
		clock = cdmkn.RealClock{}
	}
	return &SQLiteDatabase{
		db:      db,
		queries: sqlc.New(db),
		path:    path,
		clock:   clock,
	}
}

// OpenConnection opens and configures a SQLite connection.
// It is exported for tools and tests that need the same configuration.
//
// Connection options go in the DSN so that every pooled connection gets
// them: foreign keys on, a busy timeout so the CLI can read while the daemon
// writes, and WAL for on-disk databases. An in-memory database lives in a
// single connection, so the pool is capped at one.
func OpenConnection(path string) (*sql.DB, error) {
	params := []string{"_foreign_keys=on", "_busy_timeout=5000"}
	memory := path == ":memory:"
	if !memory {
		params = append(params, "_journal_mode=WAL")
	}

	db, err := sql.Open("sqlite3", path+"?"+strings.Join(params, "&"))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if memory {
		db.SetMaxOpenConns(1)
	}

	var fk int
	if err := db.QueryRow("PRAGMA foreign_keys").Scan(&fk); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to read foreign key setting: %w", err)
	}
	if fk != 1 {
		db.Close()
		return nil, fmt.Errorf("foreign keys are not enabled")
	}

	return db, nil
}

func (s *SQLiteDatabase) now() time.Time {
	return s.clock.Now().UTC()
}

// Repository operations

func (s *SQLiteDatabase) CreateRepository(absolutePath string) (*sqlc.Repository, error) {
	ctx := context.Background()

	id, err := s.queries.InsertRepository(ctx, sqlc.InsertRepositoryParams{
		AbsolutePath: absolutePath,
		Status:       int64(cdmkn.RepoStarting),
		CreatedAt:    s.now(),
	})
	if err != nil {
		return nil, cdmkn.NewStorageError("inserting repository", err)
	}

	repo, err := s.queries.GetRepositoryByID(ctx, id)
	if err != nil {
		return nil, cdmkn.NewStorageError("reading inserted repository", err)
	}
	return &repo, nil
}

func (s *SQLiteDatabase) FindRepositoryByPath(absolutePath string) (*sqlc.Repository, error) {
	repo, err := s.queries.GetRepositoryByPath(context.Background(), absolutePath)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Not found
		}
		return nil, fmt.Errorf("finding repository by path: %w", err)
	}
	return &repo, nil
}

func (s *SQLiteDatabase) SearchRepositoryForPath(path string) (*sqlc.Repository, error) {
	// The outermost watched root wins, which is the root the scheduler records
	// a file under when roots overlap. Without a watched match the outermost
	// root of any status is returned.
	repos, err := s.ListRepositories()
	if err != nil {
		return nil, fmt.Errorf("searching repositories: %w", err)
	}

	var watched, outermost *sqlc.Repository
	for _, repo := range repos {
		if !containsPath(repo.AbsolutePath, path) {
			continue
		}
		if outermost == nil || len(repo.AbsolutePath) < len(outermost.AbsolutePath) {
			outermost = repo
		}
		if !cdmkn.RepoStatus(repo.Status).Watched() {
			continue
		}
		if watched == nil || len(repo.AbsolutePath) < len(watched.AbsolutePath) {
			watched = repo
		}
	}
	if watched != nil {
		return watched, nil
	}
	return outermost, nil
}

func containsPath(root, path string) bool {
	if path == root {
		return true
	}
	return len(path) > len(root) && strings.HasPrefix(path, root) &&
		(path[len(root)] == '/' || strings.HasSuffix(root, "/"))
}

func (s *SQLiteDatabase) ListRepositories() ([]*sqlc.Repository, error) {
	repos, err := s.queries.ListRepositories(context.Background())
	if err != nil {
		return nil, cdmkn.NewStorageError("listing repositories", err)
	}

	result := make([]*sqlc.Repository, len(repos))
	for i := range repos {
		result[i] = &repos[i]
	}
	return result, nil
}

func (s *SQLiteDatabase) SetRepositoryStatus(repoID int64, status cdmkn.RepoStatus) error {
	err := s.queries.UpdateRepositoryStatus(context.Background(), sqlc.UpdateRepositoryStatusParams{
		Status: int64(status),
		ID:     repoID,
	})
	if err != nil {
		return cdmkn.NewStorageError("updating repository status", err)
	}
	return nil
}

// Document operations

func (s *SQLiteDatabase) UpsertDocument(repoID int64, relativePath, canonicalPath string) (int64, error) {
	ctx := context.Background()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, cdmkn.NewStorageError("starting transaction", err)
	}
	defer tx.Rollback()

	qtx := s.queries.WithTx(tx)

	err = qtx.InsertDocumentIfAbsent(ctx, sqlc.InsertDocumentIfAbsentParams{
		RepositoryID:  repoID,
		RelativePath:  relativePath,
		CanonicalPath: canonicalPath,
		CreatedAt:     s.now(),
	})
	if err != nil {
		return 0, cdmkn.NewStorageError("inserting document", err)
	}

	doc, err := qtx.GetDocumentByPath(ctx, sqlc.GetDocumentByPathParams{
		RepositoryID:  repoID,
		CanonicalPath: canonicalPath,
	})
	if err != nil {
		return 0, cdmkn.NewStorageError("reading document", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, cdmkn.NewStorageError("committing document", err)
	}
	return doc.ID, nil
}

func (s *SQLiteDatabase) FindDocumentByPath(repoID int64, canonicalPath string) (*sqlc.Document, error) {
	doc, err := s.queries.GetDocumentByPath(context.Background(), sqlc.GetDocumentByPathParams{
		RepositoryID:  repoID,
		CanonicalPath: canonicalPath,
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Not found
		}
		return nil, fmt.Errorf("finding document by path: %w", err)
	}
	return &doc, nil
}

func (s *SQLiteDatabase) ListDocuments(repoID int64) ([]*sqlc.Document, error) {
	docs, err := s.queries.ListDocumentsByRepository(context.Background(), repoID)
	if err != nil {
		return nil, fmt.Errorf("listing documents: %w", err)
	}

	result := make([]*sqlc.Document, len(docs))
	for i := range docs {
		result[i] = &docs[i]
	}
	return result, nil
}

func (s *SQLiteDatabase) GetDocumentBaseline(repoID int64, canonicalPath string) (*cdmkn.Baseline, error) {
	ctx := context.Background()

	doc, err := s.FindDocumentByPath(repoID, canonicalPath)
	if err != nil {
		return nil, cdmkn.NewStorageError("loading baseline", err)
	}
	if doc == nil {
		return nil, nil
	}
	if doc.Content.Valid {
		return &cdmkn.Baseline{DocumentID: doc.ID, Content: doc.Content.String}, nil
	}

	changes, err := s.queries.GetLatestChangesByDocument(ctx, sqlc.GetLatestChangesByDocumentParams{
		DocumentID: doc.ID,
		Limit:      1,
	})
	if err != nil {
		return nil, cdmkn.NewStorageError("loading latest change", err)
	}
	if len(changes) == 0 {
		return nil, nil
	}

	elements, err := cdmkn.DecodeChange(&changes[0])
	if err != nil {
		return nil, err
	}
	return &cdmkn.Baseline{DocumentID: doc.ID, Content: cdmkn.ReconstructCurrent(elements)}, nil
}

func (s *SQLiteDatabase) SaveBaseline(documentID int64, content string) error {
	err := s.queries.UpdateDocumentContent(context.Background(), sqlc.UpdateDocumentContentParams{
		Content: sql.NullString{String: content, Valid: true},
		ID:      documentID,
	})
	if err != nil {
		return cdmkn.NewStorageError("saving baseline", err)
	}
	return nil
}

// Event operations

func (s *SQLiteDatabase) StartEvent(repoID int64, parentEventID sql.NullInt64) (int64, error) {
	ctx := context.Background()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, cdmkn.NewStorageError("starting transaction", err)
	}
	defer tx.Rollback()

	qtx := s.queries.WithTx(tx)

	eventID, err := qtx.InsertEvent(ctx, sqlc.InsertEventParams{
		RepositoryID:  repoID,
		ParentEventID: parentEventID,
		CreatedAt:     s.now(),
	})
	if err != nil {
		return 0, cdmkn.NewStorageError("inserting event", err)
	}

	err = qtx.UpdateRepositoryCurrentEvent(ctx, sqlc.UpdateRepositoryCurrentEventParams{
		CurrentEventID: sql.NullInt64{Int64: eventID, Valid: true},
		ID:             repoID,
	})
	if err != nil {
		return 0, cdmkn.NewStorageError("updating current event", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, cdmkn.NewStorageError("committing event", err)
	}
	return eventID, nil
}

func (s *SQLiteDatabase) GetEvent(eventID int64) (*sqlc.Event, error) {
	event, err := s.queries.GetEventByID(context.Background(), eventID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Not found
		}
		return nil, fmt.Errorf("finding event: %w", err)
	}
	return &event, nil
}

// Change operations

func (s *SQLiteDatabase) AppendChange(documentID, eventID int64, elements []cdmkn.ChangeElement, createdAt time.Time) (int64, error) {
	ctx := context.Background()

	encoded, err := cdmkn.EncodeElements(elements)
	if err != nil {
		return 0, cdmkn.NewStorageError("encoding change", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, cdmkn.NewStorageError("starting transaction", err)
	}
	defer tx.Rollback()

	qtx := s.queries.WithTx(tx)

	// created_at never moves backwards, even when the wall clock does, so
	// history order and the push cursor both follow append order.
	latest, err := qtx.GetLatestChangeTime(ctx)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return 0, cdmkn.NewStorageError("reading latest change time", err)
	}
	createdAt = createdAt.UTC()
	if err == nil && createdAt.Before(latest) {
		createdAt = latest.UTC().Add(time.Nanosecond)
	}

	changeID, err := qtx.InsertChange(ctx, sqlc.InsertChangeParams{
		DocumentID:     documentID,
		EventID:        eventID,
		ChangeElements: encoded,
		CreatedAt:      createdAt,
	})
	if err != nil {
		return 0, cdmkn.NewStorageError("inserting change", err)
	}

	// Keep the cached baseline in step with the newest change.
	err = qtx.UpdateDocumentContent(ctx, sqlc.UpdateDocumentContentParams{
		Content: sql.NullString{String: cdmkn.ReconstructCurrent(elements), Valid: true},
		ID:      documentID,
	})
	if err != nil {
		return 0, cdmkn.NewStorageError("updating baseline", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, cdmkn.NewStorageError("committing change", err)
	}
	return changeID, nil
}

func (s *SQLiteDatabase) GetChange(changeID int64) (*sqlc.Change, error) {
	change, err := s.queries.GetChangeByID(context.Background(), changeID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Not found
		}
		return nil, fmt.Errorf("finding change: %w", err)
	}
	return &change, nil
}

func (s *SQLiteDatabase) LatestChanges(documentID int64, limit int) ([]*sqlc.Change, error) {
	changes, err := s.queries.GetLatestChangesByDocument(context.Background(), sqlc.GetLatestChangesByDocumentParams{
		DocumentID: documentID,
		Limit:      int64(limit),
	})
	if err != nil {
		return nil, fmt.Errorf("listing changes: %w", err)
	}

	result := make([]*sqlc.Change, len(changes))
	for i := range changes {
		result[i] = &changes[i]
	}
	return result, nil
}

func (s *SQLiteDatabase) ChangesSince(since time.Time, limit int) ([]*sqlc.GetChangesSinceRow, error) {
	rows, err := s.queries.GetChangesSince(context.Background(), sqlc.GetChangesSinceParams{
		CreatedAt: since.UTC(),
		Limit:     int64(limit),
	})
	if err != nil {
		return nil, fmt.Errorf("listing changes since %s: %w", since.Format(time.RFC3339Nano), err)
	}

	result := make([]*sqlc.GetChangesSinceRow, len(rows))
	for i := range rows {
		result[i] = &rows[i]
	}
	return result, nil
}

// Path returns the database file path (or ":memory:" for in-memory databases).
func (s *SQLiteDatabase) Path() string {
	return s.path
}

// CheckMigrations verifies the database schema is up-to-date.
func (s *SQLiteDatabase) CheckMigrations() error {
	return migrations.CheckDBMigrationStatus(s.db)
}

// BackupTo creates a complete copy of the database at destPath using VACUUM INTO.
func (s *SQLiteDatabase) BackupTo(destPath string) error {
	_, err := s.db.Exec("VACUUM INTO ?", destPath)
	if err != nil {
		return fmt.Errorf("backing up database: %w", err)
	}
	return nil
}

// MigrateUp applies any pending schema migrations.
func (s *SQLiteDatabase) MigrateUp() error {
	return migrations.MigrateUp(s.db)
}

// Close closes the database connection.
func (s *SQLiteDatabase) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Compile-time check that SQLiteDatabase implements the cdmkn.ChangeLog interface
var _ cdmkn.ChangeLog = (*SQLiteDatabase)(nil)
