package database

import (
	"database/sql"
	"errors"
	"fmt"

	"lmsync/internal/model"
)

const lessonColumns = "id, course_id, title, type, position, content, duration, is_required, synced_at, is_dirty"

func scanLesson(row rowScanner) (*model.Lesson, error) {
	var (
		l        model.Lesson
		content  sql.NullString
		syncedAt sql.NullTime
	)
	err := row.Scan(&l.ID, &l.CourseID, &l.Title, &l.Type, &l.Position,
		&content, &l.Duration, &l.IsRequired, &syncedAt, &l.IsDirty)
	if err != nil {
		return nil, err
	}
	l.Content = rawJSON(content)
	l.SyncedAt = timePtr(syncedAt)
	return &l, nil
}

func (s *SQLiteStore) queryLessons(query string, args ...any) ([]model.Lesson, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var lessons []model.Lesson
	for rows.Next() {
		l, err := scanLesson(rows)
		if err != nil {
			return nil, err
		}
		lessons = append(lessons, *l)
	}
	return lessons, rows.Err()
}

// ListLessons returns every lesson.
func (s *SQLiteStore) ListLessons() ([]model.Lesson, error) {
	lessons, err := s.queryLessons("SELECT " + lessonColumns + " FROM lessons")
	if err != nil {
		return nil, fmt.Errorf("listing lessons: %w", err)
	}
	return lessons, nil
}

// FindLessonByID returns the lesson with the given id, or nil if absent.
func (s *SQLiteStore) FindLessonByID(id string) (*model.Lesson, error) {
	l, err := scanLesson(s.db.QueryRow("SELECT "+lessonColumns+" FROM lessons WHERE id = ?", id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Not found
		}
		return nil, fmt.Errorf("finding lesson by id: %w", err)
	}
	return l, nil
}

// ListLessonsByCourse returns a course's lessons in course order, ties
// broken by id for stability.
func (s *SQLiteStore) ListLessonsByCourse(courseID string) ([]model.Lesson, error) {
	lessons, err := s.queryLessons(
		"SELECT "+lessonColumns+" FROM lessons WHERE course_id = ? ORDER BY position, id", courseID)
	if err != nil {
		return nil, fmt.Errorf("listing lessons by course: %w", err)
	}
	return lessons, nil
}

// ListLessonsByType returns lessons of the given type.
func (s *SQLiteStore) ListLessonsByType(lessonType string) ([]model.Lesson, error) {
	lessons, err := s.queryLessons("SELECT "+lessonColumns+" FROM lessons WHERE type = ?", lessonType)
	if err != nil {
		return nil, fmt.Errorf("listing lessons by type: %w", err)
	}
	return lessons, nil
}

const upsertLessonSQL = `
INSERT INTO lessons (id, course_id, title, type, position, content, duration, is_required, synced_at, is_dirty)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, 0)
ON CONFLICT(id) DO UPDATE SET
    course_id = excluded.course_id,
    title = excluded.title,
    type = excluded.type,
    position = excluded.position,
    content = excluded.content,
    duration = excluded.duration,
    is_required = excluded.is_required,
    synced_at = excluded.synced_at,
    is_dirty = 0`

// UpsertLesson writes one server-authoritative lesson row, stamping it
// synced and clean. Returns the id.
func (s *SQLiteStore) UpsertLesson(l model.Lesson) (string, error) {
	if l.ID == "" {
		l.ID = s.idgen.New()
	}
	_, err := s.db.Exec(upsertLessonSQL, l.ID, l.CourseID, l.Title, l.Type, l.Position,
		nullJSON(l.Content), l.Duration, l.IsRequired, s.clock.Now())
	if err != nil {
		return "", fmt.Errorf("upserting lesson: %w", err)
	}
	return l.ID, nil
}

// BulkUpsertLessons writes a batch of server-authoritative lessons in one
// transaction.
func (s *SQLiteStore) BulkUpsertLessons(lessons []model.Lesson) error {
	if len(lessons) == 0 {
		return nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(upsertLessonSQL)
	if err != nil {
		return fmt.Errorf("preparing statement: %w", err)
	}
	defer stmt.Close()

	now := s.clock.Now()
	for _, l := range lessons {
		if l.ID == "" {
			l.ID = s.idgen.New()
		}
		if _, err := stmt.Exec(l.ID, l.CourseID, l.Title, l.Type, l.Position,
			nullJSON(l.Content), l.Duration, l.IsRequired, now); err != nil {
			return fmt.Errorf("upserting lesson %s: %w", l.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// MarkLessonDirty flags a lesson as locally modified. A missing id is a
// no-op.
func (s *SQLiteStore) MarkLessonDirty(id string) error {
	if _, err := s.db.Exec("UPDATE lessons SET is_dirty = 1 WHERE id = ?", id); err != nil {
		return fmt.Errorf("marking lesson dirty: %w", err)
	}
	return nil
}

// DeleteLesson removes a lesson row. A missing id is a no-op.
func (s *SQLiteStore) DeleteLesson(id string) error {
	if _, err := s.db.Exec("DELETE FROM lessons WHERE id = ?", id); err != nil {
		return fmt.Errorf("deleting lesson: %w", err)
	}
	return nil
}
