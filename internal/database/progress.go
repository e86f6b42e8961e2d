package database

import (
	"database/sql"
	"errors"
	"fmt"

	"lmsync/internal/model"
)

const progressColumns = "id, user_id, enrollment_id, lesson_id, course_id, status, score, time_spent, attempts, last_accessed_at, synced_at, is_dirty"

func scanProgress(row rowScanner) (*model.Progress, error) {
	var (
		p              model.Progress
		score          sql.NullFloat64
		lastAccessedAt sql.NullTime
		syncedAt       sql.NullTime
	)
	err := row.Scan(&p.ID, &p.UserID, &p.EnrollmentID, &p.LessonID, &p.CourseID,
		&p.Status, &score, &p.TimeSpent, &p.Attempts, &lastAccessedAt, &syncedAt, &p.IsDirty)
	if err != nil {
		return nil, err
	}
	p.Score = floatPtr(score)
	p.LastAccessedAt = timePtr(lastAccessedAt)
	p.SyncedAt = timePtr(syncedAt)
	return &p, nil
}

func (s *SQLiteStore) queryProgress(query string, args ...any) ([]model.Progress, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []model.Progress
	for rows.Next() {
		p, err := scanProgress(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, *p)
	}
	return records, rows.Err()
}

// ListProgress returns every progress record.
func (s *SQLiteStore) ListProgress() ([]model.Progress, error) {
	records, err := s.queryProgress("SELECT " + progressColumns + " FROM progress")
	if err != nil {
		return nil, fmt.Errorf("listing progress: %w", err)
	}
	return records, nil
}

// FindProgressByID returns the progress record with the given id, or nil
// if absent.
func (s *SQLiteStore) FindProgressByID(id string) (*model.Progress, error) {
	p, err := scanProgress(s.db.QueryRow("SELECT "+progressColumns+" FROM progress WHERE id = ?", id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Not found
		}
		return nil, fmt.Errorf("finding progress by id: %w", err)
	}
	return p, nil
}

// ListProgressByUser returns a user's progress records.
func (s *SQLiteStore) ListProgressByUser(userID string) ([]model.Progress, error) {
	records, err := s.queryProgress("SELECT "+progressColumns+" FROM progress WHERE user_id = ?", userID)
	if err != nil {
		return nil, fmt.Errorf("listing progress by user: %w", err)
	}
	return records, nil
}

// ListProgressByEnrollment returns an enrollment's progress records.
func (s *SQLiteStore) ListProgressByEnrollment(enrollmentID string) ([]model.Progress, error) {
	records, err := s.queryProgress("SELECT "+progressColumns+" FROM progress WHERE enrollment_id = ?", enrollmentID)
	if err != nil {
		return nil, fmt.Errorf("listing progress by enrollment: %w", err)
	}
	return records, nil
}

// ListProgressByCourse returns progress records for a course.
func (s *SQLiteStore) ListProgressByCourse(courseID string) ([]model.Progress, error) {
	records, err := s.queryProgress("SELECT "+progressColumns+" FROM progress WHERE course_id = ?", courseID)
	if err != nil {
		return nil, fmt.Errorf("listing progress by course: %w", err)
	}
	return records, nil
}

// FindProgressByUserAndLesson is a composite-key point lookup. Returns nil
// if absent.
func (s *SQLiteStore) FindProgressByUserAndLesson(userID, lessonID string) (*model.Progress, error) {
	p, err := scanProgress(s.db.QueryRow(
		"SELECT "+progressColumns+" FROM progress WHERE user_id = ? AND lesson_id = ?", userID, lessonID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Not found
		}
		return nil, fmt.Errorf("finding progress by user and lesson: %w", err)
	}
	return p, nil
}

const upsertProgressSQL = `
INSERT INTO progress (id, user_id, enrollment_id, lesson_id, course_id, status, score, time_spent, attempts, last_accessed_at, synced_at, is_dirty)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 0)
ON CONFLICT(id) DO UPDATE SET
    user_id = excluded.user_id,
    enrollment_id = excluded.enrollment_id,
    lesson_id = excluded.lesson_id,
    course_id = excluded.course_id,
    status = excluded.status,
    score = excluded.score,
    time_spent = excluded.time_spent,
    attempts = excluded.attempts,
    last_accessed_at = excluded.last_accessed_at,
    synced_at = excluded.synced_at,
    is_dirty = 0`

// UpsertProgress writes one server-authoritative progress row, stamping it
// synced and clean. Returns the id.
func (s *SQLiteStore) UpsertProgress(p model.Progress) (string, error) {
	if p.ID == "" {
		p.ID = s.idgen.New()
	}
	_, err := s.db.Exec(upsertProgressSQL, p.ID, p.UserID, p.EnrollmentID, p.LessonID, p.CourseID,
		p.Status, nullFloat(p.Score), p.TimeSpent, p.Attempts, nullTime(p.LastAccessedAt), s.clock.Now())
	if err != nil {
		return "", fmt.Errorf("upserting progress: %w", err)
	}
	return p.ID, nil
}

// BulkUpsertProgress writes a batch of server-authoritative progress
// records in one transaction.
func (s *SQLiteStore) BulkUpsertProgress(records []model.Progress) error {
	if len(records) == 0 {
		return nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(upsertProgressSQL)
	if err != nil {
		return fmt.Errorf("preparing statement: %w", err)
	}
	defer stmt.Close()

	now := s.clock.Now()
	for _, p := range records {
		if p.ID == "" {
			p.ID = s.idgen.New()
		}
		if _, err := stmt.Exec(p.ID, p.UserID, p.EnrollmentID, p.LessonID, p.CourseID,
			p.Status, nullFloat(p.Score), p.TimeSpent, p.Attempts, nullTime(p.LastAccessedAt), now); err != nil {
			return fmt.Errorf("upserting progress %s: %w", p.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// UpdateProgressStatus sets the status and touches last_accessed_at as a
// local mutation, marking the row dirty. A missing id is a no-op.
func (s *SQLiteStore) UpdateProgressStatus(id, status string) error {
	_, err := s.db.Exec(
		"UPDATE progress SET status = ?, last_accessed_at = ?, is_dirty = 1 WHERE id = ?",
		status, s.clock.Now(), id)
	if err != nil {
		return fmt.Errorf("updating progress status: %w", err)
	}
	return nil
}

// AddProgressTime adds elapsed seconds to the stored total as a local
// mutation, marking the row dirty. The addition is done in SQL so
// concurrent callers cannot lose an increment. A missing id is a no-op.
func (s *SQLiteStore) AddProgressTime(id string, seconds int) error {
	_, err := s.db.Exec(
		"UPDATE progress SET time_spent = time_spent + ?, last_accessed_at = ?, is_dirty = 1 WHERE id = ?",
		seconds, s.clock.Now(), id)
	if err != nil {
		return fmt.Errorf("adding progress time: %w", err)
	}
	return nil
}

// CompleteProgress marks a lesson completed with the given score as a
// local mutation. A missing id is a no-op.
func (s *SQLiteStore) CompleteProgress(id string, score *float64) error {
	_, err := s.db.Exec(
		"UPDATE progress SET status = ?, score = ?, last_accessed_at = ?, is_dirty = 1 WHERE id = ?",
		model.ProgressStatusCompleted, nullFloat(score), s.clock.Now(), id)
	if err != nil {
		return fmt.Errorf("completing progress: %w", err)
	}
	return nil
}

// MarkProgressDirty flags a progress record as locally modified. A missing
// id is a no-op.
func (s *SQLiteStore) MarkProgressDirty(id string) error {
	if _, err := s.db.Exec("UPDATE progress SET is_dirty = 1 WHERE id = ?", id); err != nil {
		return fmt.Errorf("marking progress dirty: %w", err)
	}
	return nil
}

// DeleteProgress removes a progress row. A missing id is a no-op.
func (s *SQLiteStore) DeleteProgress(id string) error {
	if _, err := s.db.Exec("DELETE FROM progress WHERE id = ?", id); err != nil {
		return fmt.Errorf("deleting progress: %w", err)
	}
	return nil
}
