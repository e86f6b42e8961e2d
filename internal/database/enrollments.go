package database

import (
	"database/sql"
	"errors"
	"fmt"

	"lmsync/internal/model"
)

const enrollmentColumns = "id, user_id, course_id, status, progress, enrolled_at, completed_at, synced_at, is_dirty"

func scanEnrollment(row rowScanner) (*model.Enrollment, error) {
	var (
		e           model.Enrollment
		completedAt sql.NullTime
		syncedAt    sql.NullTime
	)
	err := row.Scan(&e.ID, &e.UserID, &e.CourseID, &e.Status, &e.Progress,
		&e.EnrolledAt, &completedAt, &syncedAt, &e.IsDirty)
	if err != nil {
		return nil, err
	}
	e.CompletedAt = timePtr(completedAt)
	e.SyncedAt = timePtr(syncedAt)
	return &e, nil
}

func (s *SQLiteStore) queryEnrollments(query string, args ...any) ([]model.Enrollment, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var enrollments []model.Enrollment
	for rows.Next() {
		e, err := scanEnrollment(rows)
		if err != nil {
			return nil, err
		}
		enrollments = append(enrollments, *e)
	}
	return enrollments, rows.Err()
}

// ListEnrollments returns every enrollment.
func (s *SQLiteStore) ListEnrollments() ([]model.Enrollment, error) {
	enrollments, err := s.queryEnrollments("SELECT " + enrollmentColumns + " FROM enrollments")
	if err != nil {
		return nil, fmt.Errorf("listing enrollments: %w", err)
	}
	return enrollments, nil
}

// FindEnrollmentByID returns the enrollment with the given id, or nil if
// absent.
func (s *SQLiteStore) FindEnrollmentByID(id string) (*model.Enrollment, error) {
	e, err := scanEnrollment(s.db.QueryRow("SELECT "+enrollmentColumns+" FROM enrollments WHERE id = ?", id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Not found
		}
		return nil, fmt.Errorf("finding enrollment by id: %w", err)
	}
	return e, nil
}

// ListEnrollmentsByUser returns a user's enrollments.
func (s *SQLiteStore) ListEnrollmentsByUser(userID string) ([]model.Enrollment, error) {
	enrollments, err := s.queryEnrollments(
		"SELECT "+enrollmentColumns+" FROM enrollments WHERE user_id = ?", userID)
	if err != nil {
		return nil, fmt.Errorf("listing enrollments by user: %w", err)
	}
	return enrollments, nil
}

// ListEnrollmentsByCourse returns a course's enrollments.
func (s *SQLiteStore) ListEnrollmentsByCourse(courseID string) ([]model.Enrollment, error) {
	enrollments, err := s.queryEnrollments(
		"SELECT "+enrollmentColumns+" FROM enrollments WHERE course_id = ?", courseID)
	if err != nil {
		return nil, fmt.Errorf("listing enrollments by course: %w", err)
	}
	return enrollments, nil
}

// ListEnrollmentsByStatus returns enrollments with the given status.
func (s *SQLiteStore) ListEnrollmentsByStatus(status string) ([]model.Enrollment, error) {
	enrollments, err := s.queryEnrollments(
		"SELECT "+enrollmentColumns+" FROM enrollments WHERE status = ?", status)
	if err != nil {
		return nil, fmt.Errorf("listing enrollments by status: %w", err)
	}
	return enrollments, nil
}

// FindEnrollmentByUserAndCourse is a composite-key point lookup; there is
// conceptually one enrollment per (user, course). Returns nil if absent.
func (s *SQLiteStore) FindEnrollmentByUserAndCourse(userID, courseID string) (*model.Enrollment, error) {
	e, err := scanEnrollment(s.db.QueryRow(
		"SELECT "+enrollmentColumns+" FROM enrollments WHERE user_id = ? AND course_id = ?",
		userID, courseID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Not found
		}
		return nil, fmt.Errorf("finding enrollment by user and course: %w", err)
	}
	return e, nil
}

const upsertEnrollmentSQL = `
INSERT INTO enrollments (id, user_id, course_id, status, progress, enrolled_at, completed_at, synced_at, is_dirty)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, 0)
ON CONFLICT(id) DO UPDATE SET
    user_id = excluded.user_id,
    course_id = excluded.course_id,
    status = excluded.status,
    progress = excluded.progress,
    enrolled_at = excluded.enrolled_at,
    completed_at = excluded.completed_at,
    synced_at = excluded.synced_at,
    is_dirty = 0`

// UpsertEnrollment writes one server-authoritative enrollment row,
// stamping it synced and clean. Returns the id.
func (s *SQLiteStore) UpsertEnrollment(e model.Enrollment) (string, error) {
	if e.ID == "" {
		e.ID = s.idgen.New()
	}
	_, err := s.db.Exec(upsertEnrollmentSQL, e.ID, e.UserID, e.CourseID, e.Status,
		e.Progress, e.EnrolledAt, nullTime(e.CompletedAt), s.clock.Now())
	if err != nil {
		return "", fmt.Errorf("upserting enrollment: %w", err)
	}
	return e.ID, nil
}

// BulkUpsertEnrollments writes a batch of server-authoritative enrollments
// in one transaction.
func (s *SQLiteStore) BulkUpsertEnrollments(enrollments []model.Enrollment) error {
	if len(enrollments) == 0 {
		return nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(upsertEnrollmentSQL)
	if err != nil {
		return fmt.Errorf("preparing statement: %w", err)
	}
	defer stmt.Close()

	now := s.clock.Now()
	for _, e := range enrollments {
		if e.ID == "" {
			e.ID = s.idgen.New()
		}
		if _, err := stmt.Exec(e.ID, e.UserID, e.CourseID, e.Status,
			e.Progress, e.EnrolledAt, nullTime(e.CompletedAt), now); err != nil {
			return fmt.Errorf("upserting enrollment %s: %w", e.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// UpdateEnrollmentProgress sets the progress percentage as a local
// mutation, marking the row dirty. A missing id is a no-op.
func (s *SQLiteStore) UpdateEnrollmentProgress(id string, progress int) error {
	_, err := s.db.Exec("UPDATE enrollments SET progress = ?, is_dirty = 1 WHERE id = ?", progress, id)
	if err != nil {
		return fmt.Errorf("updating enrollment progress: %w", err)
	}
	return nil
}

// UpdateEnrollmentStatus sets the status as a local mutation, marking the
// row dirty. A missing id is a no-op.
func (s *SQLiteStore) UpdateEnrollmentStatus(id, status string) error {
	_, err := s.db.Exec("UPDATE enrollments SET status = ?, is_dirty = 1 WHERE id = ?", status, id)
	if err != nil {
		return fmt.Errorf("updating enrollment status: %w", err)
	}
	return nil
}

// CompleteEnrollment marks an enrollment completed with full progress as a
// local mutation. A missing id is a no-op.
func (s *SQLiteStore) CompleteEnrollment(id string) error {
	_, err := s.db.Exec(
		"UPDATE enrollments SET status = ?, progress = 100, completed_at = ?, is_dirty = 1 WHERE id = ?",
		model.EnrollmentStatusCompleted, s.clock.Now(), id)
	if err != nil {
		return fmt.Errorf("completing enrollment: %w", err)
	}
	return nil
}

// MarkEnrollmentDirty flags an enrollment as locally modified. A missing
// id is a no-op.
func (s *SQLiteStore) MarkEnrollmentDirty(id string) error {
	if _, err := s.db.Exec("UPDATE enrollments SET is_dirty = 1 WHERE id = ?", id); err != nil {
		return fmt.Errorf("marking enrollment dirty: %w", err)
	}
	return nil
}

// DeleteEnrollment removes an enrollment row. A missing id is a no-op.
func (s *SQLiteStore) DeleteEnrollment(id string) error {
	if _, err := s.db.Exec("DELETE FROM enrollments WHERE id = ?", id); err != nil {
		return fmt.Errorf("deleting enrollment: %w", err)
	}
	return nil
}
