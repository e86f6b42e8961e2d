package database

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"lmsync/internal/model"
)

const courseColumns = "id, title, description, status, metadata, synced_at, is_dirty"

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// nullJSON converts a raw JSON blob for storage in a nullable TEXT column.
func nullJSON(j json.RawMessage) sql.NullString {
	if len(j) == 0 {
		return sql.NullString{}
	}
	return sql.NullString{String: string(j), Valid: true}
}

// rawJSON converts a scanned nullable TEXT column back to a raw JSON blob.
func rawJSON(ns sql.NullString) json.RawMessage {
	if !ns.Valid || ns.String == "" {
		return nil
	}
	return json.RawMessage(ns.String)
}

func scanCourse(row rowScanner) (*model.Course, error) {
	var (
		c        model.Course
		metadata sql.NullString
		syncedAt sql.NullTime
	)
	err := row.Scan(&c.ID, &c.Title, &c.Description, &c.Status, &metadata, &syncedAt, &c.IsDirty)
	if err != nil {
		return nil, err
	}
	c.Metadata = rawJSON(metadata)
	c.SyncedAt = timePtr(syncedAt)
	return &c, nil
}

func (s *SQLiteStore) queryCourses(query string, args ...any) ([]model.Course, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var courses []model.Course
	for rows.Next() {
		c, err := scanCourse(rows)
		if err != nil {
			return nil, err
		}
		courses = append(courses, *c)
	}
	return courses, rows.Err()
}

// ListCourses returns every course.
func (s *SQLiteStore) ListCourses() ([]model.Course, error) {
	courses, err := s.queryCourses("SELECT " + courseColumns + " FROM courses")
	if err != nil {
		return nil, fmt.Errorf("listing courses: %w", err)
	}
	return courses, nil
}

// FindCourseByID returns the course with the given id, or nil if absent.
func (s *SQLiteStore) FindCourseByID(id string) (*model.Course, error) {
	c, err := scanCourse(s.db.QueryRow("SELECT "+courseColumns+" FROM courses WHERE id = ?", id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Not found
		}
		return nil, fmt.Errorf("finding course by id: %w", err)
	}
	return c, nil
}

// ListCoursesByStatus returns courses with the given status.
func (s *SQLiteStore) ListCoursesByStatus(status string) ([]model.Course, error) {
	courses, err := s.queryCourses("SELECT "+courseColumns+" FROM courses WHERE status = ?", status)
	if err != nil {
		return nil, fmt.Errorf("listing courses by status: %w", err)
	}
	return courses, nil
}

// UpsertCourse writes one server-authoritative course row, stamping it
// synced and clean. An empty id gets a generated one. Returns the id.
func (s *SQLiteStore) UpsertCourse(c model.Course) (string, error) {
	if c.ID == "" {
		c.ID = s.idgen.New()
	}
	_, err := s.db.Exec(upsertCourseSQL, c.ID, c.Title, c.Description, c.Status, nullJSON(c.Metadata), s.clock.Now())
	if err != nil {
		return "", fmt.Errorf("upserting course: %w", err)
	}
	return c.ID, nil
}

const upsertCourseSQL = `
INSERT INTO courses (id, title, description, status, metadata, synced_at, is_dirty)
VALUES (?, ?, ?, ?, ?, ?, 0)
ON CONFLICT(id) DO UPDATE SET
    title = excluded.title,
    description = excluded.description,
    status = excluded.status,
    metadata = excluded.metadata,
    synced_at = excluded.synced_at,
    is_dirty = 0`

// BulkUpsertCourses writes a batch of server-authoritative courses in one
// transaction, with the same stamping as UpsertCourse.
func (s *SQLiteStore) BulkUpsertCourses(courses []model.Course) error {
	if len(courses) == 0 {
		return nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(upsertCourseSQL)
	if err != nil {
		return fmt.Errorf("preparing statement: %w", err)
	}
	defer stmt.Close()

	now := s.clock.Now()
	for _, c := range courses {
		if c.ID == "" {
			c.ID = s.idgen.New()
		}
		if _, err := stmt.Exec(c.ID, c.Title, c.Description, c.Status, nullJSON(c.Metadata), now); err != nil {
			return fmt.Errorf("upserting course %s: %w", c.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// MarkCourseDirty flags a course as locally modified without changing its
// content. A missing id is a no-op.
func (s *SQLiteStore) MarkCourseDirty(id string) error {
	if _, err := s.db.Exec("UPDATE courses SET is_dirty = 1 WHERE id = ?", id); err != nil {
		return fmt.Errorf("marking course dirty: %w", err)
	}
	return nil
}

// DeleteCourse removes a course row. Lessons and enrollments of the course
// are not cascaded; that is the caller's responsibility. A missing id is a
// no-op.
func (s *SQLiteStore) DeleteCourse(id string) error {
	if _, err := s.db.Exec("DELETE FROM courses WHERE id = ?", id); err != nil {
		return fmt.Errorf("deleting course: %w", err)
	}
	return nil
}
