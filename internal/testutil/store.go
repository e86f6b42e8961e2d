package testutil

import (
	"testing"

	"lmsync/internal/database"
	"lmsync/internal/lms"
)

// NewTestStore creates an in-memory SQLite store with the schema applied.
// The store is automatically closed when the test completes. clock and
// idgen may be nil; pass stubs for deterministic stamping.
func NewTestStore(t *testing.T, clock lms.Clock, idgen lms.IDGenerator) *database.SQLiteStore {
	t.Helper()

	db, err := database.OpenConnection(":memory:")
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}

	if _, err := db.Exec(database.Schema); err != nil {
		db.Close()
		t.Fatalf("failed to apply schema: %v", err)
	}

	store := database.NewSQLiteStoreFromDB(db, clock, idgen)

	t.Cleanup(func() {
		store.Close()
	})

	return store
}
