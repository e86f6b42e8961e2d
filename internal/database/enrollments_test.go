package database

import (
	"testing"
	"time"

	"lmsync/internal/model"
)

func sampleEnrollment(id, userID, courseID string) model.Enrollment {
	return model.Enrollment{
		ID:         id,
		UserID:     userID,
		CourseID:   courseID,
		Status:     model.EnrollmentStatusEnrolled,
		EnrolledAt: time.Date(2024, 1, 10, 9, 0, 0, 0, time.UTC),
	}
}

func TestSQLiteStore_FindEnrollmentByUserAndCourse(t *testing.T) {
	t.Run("returns nil when absent", func(t *testing.T) {
		s := newTestStore(t)

		e, err := s.FindEnrollmentByUserAndCourse("u1", "c1")
		if err != nil {
			t.Fatalf("FindEnrollmentByUserAndCourse() error = %v", err)
		}
		if e != nil {
			t.Errorf("FindEnrollmentByUserAndCourse() = %v, want nil", e)
		}
	})

	t.Run("finds by the composite key", func(t *testing.T) {
		s := newTestStore(t)

		if _, err := s.UpsertEnrollment(sampleEnrollment("e1", "u1", "c1")); err != nil {
			t.Fatalf("UpsertEnrollment() error = %v", err)
		}
		if _, err := s.UpsertEnrollment(sampleEnrollment("e2", "u1", "c2")); err != nil {
			t.Fatalf("UpsertEnrollment() error = %v", err)
		}

		e, err := s.FindEnrollmentByUserAndCourse("u1", "c2")
		if err != nil {
			t.Fatalf("FindEnrollmentByUserAndCourse() error = %v", err)
		}
		if e == nil || e.ID != "e2" {
			t.Errorf("FindEnrollmentByUserAndCourse() = %v, want e2", e)
		}
	})
}

func TestSQLiteStore_ListEnrollmentsByUser(t *testing.T) {
	s := newTestStore(t)

	if _, err := s.UpsertEnrollment(sampleEnrollment("e1", "u1", "c1")); err != nil {
		t.Fatalf("UpsertEnrollment() error = %v", err)
	}
	if _, err := s.UpsertEnrollment(sampleEnrollment("e2", "u2", "c1")); err != nil {
		t.Fatalf("UpsertEnrollment() error = %v", err)
	}

	enrollments, err := s.ListEnrollmentsByUser("u1")
	if err != nil {
		t.Fatalf("ListEnrollmentsByUser() error = %v", err)
	}
	if len(enrollments) != 1 || enrollments[0].ID != "e1" {
		t.Errorf("ListEnrollmentsByUser(u1) = %v, want [e1]", enrollments)
	}
}

func TestSQLiteStore_UpdateEnrollmentProgress(t *testing.T) {
	s := newTestStore(t)

	if _, err := s.UpsertEnrollment(sampleEnrollment("e1", "u1", "c1")); err != nil {
		t.Fatalf("UpsertEnrollment() error = %v", err)
	}

	if err := s.UpdateEnrollmentProgress("e1", 55); err != nil {
		t.Fatalf("UpdateEnrollmentProgress() error = %v", err)
	}

	e, err := s.FindEnrollmentByID("e1")
	if err != nil {
		t.Fatalf("FindEnrollmentByID() error = %v", err)
	}
	if e.Progress != 55 {
		t.Errorf("Progress = %d, want 55", e.Progress)
	}
	if !e.IsDirty {
		t.Error("IsDirty = false after local mutation, want true")
	}
}

func TestSQLiteStore_CompleteEnrollment(t *testing.T) {
	now := time.Date(2024, 2, 1, 12, 0, 0, 0, time.UTC)
	s, err := NewSQLiteStore(":memory:", stubClock{now: now}, nil)
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	if _, err := s.db.Exec(Schema); err != nil {
		t.Fatalf("failed to apply schema: %v", err)
	}

	if _, err := s.UpsertEnrollment(sampleEnrollment("e1", "u1", "c1")); err != nil {
		t.Fatalf("UpsertEnrollment() error = %v", err)
	}

	if err := s.CompleteEnrollment("e1"); err != nil {
		t.Fatalf("CompleteEnrollment() error = %v", err)
	}

	e, err := s.FindEnrollmentByID("e1")
	if err != nil {
		t.Fatalf("FindEnrollmentByID() error = %v", err)
	}
	if e.Status != model.EnrollmentStatusCompleted {
		t.Errorf("Status = %v, want completed", e.Status)
	}
	if e.Progress != 100 {
		t.Errorf("Progress = %d, want 100", e.Progress)
	}
	if e.CompletedAt == nil || !e.CompletedAt.Equal(now) {
		t.Errorf("CompletedAt = %v, want %v", e.CompletedAt, now)
	}
	if !e.IsDirty {
		t.Error("IsDirty = false after completion, want true")
	}
}
