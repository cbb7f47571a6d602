package testutil

import (
	"database/sql"
	"testing"
	"time"

	"cdmkn-go/internal/cdmkn"
	"cdmkn-go/internal/database"
)

// NewTestDatabase creates an in-memory change log with the schema applied.
// A nil clock uses the real clock. The database is closed when the test ends.
func NewTestDatabase(t *testing.T, clock cdmkn.Clock) *database.SQLiteDatabase {
	t.Helper()
	db, _ := OpenTestDatabase(t, clock)
	return db
}

// OpenTestDatabase is NewTestDatabase that also hands out the raw connection,
// for tests that need to plant rows the change log API would never write.
func OpenTestDatabase(t *testing.T, clock cdmkn.Clock) (*database.SQLiteDatabase, *sql.DB) {
	t.Helper()

	sqlDB, err := database.OpenConnection(":memory:")
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	if _, err := sqlDB.Exec(database.Schema); err != nil {
		sqlDB.Close()
		t.Fatalf("failed to apply schema: %v", err)
	}

	db := database.NewSQLiteDatabaseFromDB(sqlDB, clock)
	t.Cleanup(func() {
		db.Close()
	})
	return db, sqlDB
}

// InsertRawChange stores a change row with arbitrary element text.
func InsertRawChange(t *testing.T, sqlDB *sql.DB, documentID, eventID int64, elements string, createdAt time.Time) int64 {
	t.Helper()
	res, err := sqlDB.Exec(
		"INSERT INTO changes (document_id, event_id, change_elements, created_at) VALUES (?, ?, ?, ?)",
		documentID, eventID, elements, createdAt.UTC())
	if err != nil {
		t.Fatalf("inserting raw change: %v", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		t.Fatalf("reading raw change id: %v", err)
	}
	return id
}
