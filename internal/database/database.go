// Package database implements the local entity store and its query layer
// on SQLite. It is the only code path that reads or writes entity rows;
// dirty-flag and synced-at stamping is applied here so callers never touch
// those fields directly.
package database

import (
	"database/sql"
	"fmt"
	"time"

	"lmsync/internal/database/migrations"
	"lmsync/internal/lms"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// Tables in the local entity store, in wipe order (dependents first).
var allTables = []string{
	"sync_queue",
	"packages",
	"progress",
	"enrollments",
	"lessons",
	"courses",
	"users",
}

// syncableTables are the tables MarkSynced and GetDirtyEntities cover.
var syncableTables = map[string]bool{
	lms.TableCourses:     true,
	lms.TableLessons:     true,
	lms.TableEnrollments: true,
	lms.TableProgress:    true,
}

// SQLiteStore implements the local entity store and query layer on SQLite.
type SQLiteStore struct {
	db    *sql.DB
	path  string
	clock lms.Clock
	idgen lms.IDGenerator
}

// NewSQLiteStore opens a SQLite-backed store. path can be a file path or
// ":memory:" for an in-memory store. clock and idgen may be nil, in which
// case the real clock and random UUIDs are used.
func NewSQLiteStore(path string, clock lms.Clock, idgen lms.IDGenerator) (*SQLiteStore, error) {
	db, err := OpenConnection(path)
	if err != nil {
		return nil, err
	}
	if clock == nil {
		clock = lms.RealClock{}
	}
	if idgen == nil {
		idgen = lms.UUIDGenerator{}
	}
	return &SQLiteStore{db: db, path: path, clock: clock, idgen: idgen}, nil
}

// NewSQLiteStoreFromDB wraps an existing connection. Used by tests that
// apply the schema directly instead of running migrations. clock and idgen
// may be nil as in NewSQLiteStore.
func NewSQLiteStoreFromDB(db *sql.DB, clock lms.Clock, idgen lms.IDGenerator) *SQLiteStore {
	if clock == nil {
		clock = lms.RealClock{}
	}
	if idgen == nil {
		idgen = lms.UUIDGenerator{}
	}
	return &SQLiteStore{db: db, path: ":memory:", clock: clock, idgen: idgen}
}

// OpenConnection opens and configures a SQLite connection with the PRAGMAs
// the store relies on. Exported for tools and tests that need a properly
// configured connection.
func OpenConnection(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite ships with foreign keys off for backward compatibility.
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	return db, nil
}

// Path returns the database file path (or ":memory:").
func (s *SQLiteStore) Path() string {
	return s.path
}

// CheckMigrations verifies the schema is up-to-date.
func (s *SQLiteStore) CheckMigrations() error {
	return migrations.Status(s.db)
}

// MigrateUp applies any pending schema migrations.
func (s *SQLiteStore) MigrateUp() error {
	return migrations.Up(s.db)
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// ClearAll wipes every table in a single transaction. Used for logout and
// reset flows.
func (s *SQLiteStore) ClearAll() error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	for _, table := range allTables {
		if _, err := tx.Exec("DELETE FROM " + table); err != nil {
			return fmt.Errorf("clearing table %s: %w", table, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// TableCounts holds per-table row counts. Diagnostic only.
type TableCounts struct {
	Counts map[string]int
	Total  int
}

// GetSize returns per-table row counts and a total.
func (s *SQLiteStore) GetSize() (*TableCounts, error) {
	counts := &TableCounts{Counts: make(map[string]int, len(allTables))}
	for _, table := range allTables {
		var n int
		if err := s.db.QueryRow("SELECT COUNT(*) FROM " + table).Scan(&n); err != nil {
			return nil, fmt.Errorf("counting rows in %s: %w", table, err)
		}
		counts.Counts[table] = n
		counts.Total += n
	}
	return counts, nil
}

// GetDirtyEntities returns, per syncable table, all rows with unsynced
// local changes.
func (s *SQLiteStore) GetDirtyEntities() (*lms.DirtyEntities, error) {
	courses, err := s.queryCourses("SELECT " + courseColumns + " FROM courses WHERE is_dirty = 1")
	if err != nil {
		return nil, fmt.Errorf("reading dirty courses: %w", err)
	}
	lessons, err := s.queryLessons("SELECT " + lessonColumns + " FROM lessons WHERE is_dirty = 1")
	if err != nil {
		return nil, fmt.Errorf("reading dirty lessons: %w", err)
	}
	enrollments, err := s.queryEnrollments("SELECT " + enrollmentColumns + " FROM enrollments WHERE is_dirty = 1")
	if err != nil {
		return nil, fmt.Errorf("reading dirty enrollments: %w", err)
	}
	records, err := s.queryProgress("SELECT " + progressColumns + " FROM progress WHERE is_dirty = 1")
	if err != nil {
		return nil, fmt.Errorf("reading dirty progress: %w", err)
	}

	return &lms.DirtyEntities{
		Courses:     courses,
		Lessons:     lessons,
		Enrollments: enrollments,
		Progress:    records,
	}, nil
}

// MarkSynced stamps synced_at=now and clears the dirty flag for the given
// ids. Applied per-id; an id with no matching row is tolerated.
func (s *SQLiteStore) MarkSynced(table string, ids []string) error {
	if !syncableTables[table] {
		return fmt.Errorf("table is not syncable: %s", table)
	}

	now := s.clock.Now()
	stmt, err := s.db.Prepare("UPDATE " + table + " SET synced_at = ?, is_dirty = 0 WHERE id = ?")
	if err != nil {
		return fmt.Errorf("preparing statement: %w", err)
	}
	defer stmt.Close()

	for _, id := range ids {
		if _, err := stmt.Exec(now, id); err != nil {
			return fmt.Errorf("marking %s/%s synced: %w", table, id, err)
		}
	}
	return nil
}

// nullTime converts an optional timestamp for storage.
func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

// timePtr converts a scanned nullable timestamp back to a pointer.
func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}

// nullFloat converts an optional score for storage.
func nullFloat(f *float64) sql.NullFloat64 {
	if f == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *f, Valid: true}
}

// floatPtr converts a scanned nullable float back to a pointer.
func floatPtr(f sql.NullFloat64) *float64 {
	if !f.Valid {
		return nil
	}
	v := f.Float64
	return &v
}

// Compile-time check that SQLiteStore satisfies the sync engine's store
// interface.
var _ lms.Store = (*SQLiteStore)(nil)
