package database

import (
	"testing"

	"lmsync/internal/model"
)

func sampleProgress(id, userID, lessonID string) model.Progress {
	return model.Progress{
		ID:           id,
		UserID:       userID,
		EnrollmentID: "e1",
		LessonID:     lessonID,
		CourseID:     "c1",
		Status:       model.ProgressStatusNotStarted,
	}
}

func TestSQLiteStore_FindProgressByUserAndLesson(t *testing.T) {
	t.Run("returns nil when absent", func(t *testing.T) {
		s := newTestStore(t)

		p, err := s.FindProgressByUserAndLesson("u1", "l1")
		if err != nil {
			t.Fatalf("FindProgressByUserAndLesson() error = %v", err)
		}
		if p != nil {
			t.Errorf("FindProgressByUserAndLesson() = %v, want nil", p)
		}
	})

	t.Run("finds by the composite key", func(t *testing.T) {
		s := newTestStore(t)

		if _, err := s.UpsertProgress(sampleProgress("p1", "u1", "l1")); err != nil {
			t.Fatalf("UpsertProgress() error = %v", err)
		}
		if _, err := s.UpsertProgress(sampleProgress("p2", "u1", "l2")); err != nil {
			t.Fatalf("UpsertProgress() error = %v", err)
		}

		p, err := s.FindProgressByUserAndLesson("u1", "l2")
		if err != nil {
			t.Fatalf("FindProgressByUserAndLesson() error = %v", err)
		}
		if p == nil || p.ID != "p2" {
			t.Errorf("FindProgressByUserAndLesson() = %v, want p2", p)
		}
	})
}

func TestSQLiteStore_AddProgressTime(t *testing.T) {
	s := newTestStore(t)

	if _, err := s.UpsertProgress(sampleProgress("p1", "u1", "l1")); err != nil {
		t.Fatalf("UpsertProgress() error = %v", err)
	}

	if err := s.AddProgressTime("p1", 120); err != nil {
		t.Fatalf("AddProgressTime() error = %v", err)
	}
	if err := s.AddProgressTime("p1", 30); err != nil {
		t.Fatalf("AddProgressTime() error = %v", err)
	}

	p, err := s.FindProgressByID("p1")
	if err != nil {
		t.Fatalf("FindProgressByID() error = %v", err)
	}
	if p.TimeSpent != 150 {
		t.Errorf("TimeSpent = %d, want 150", p.TimeSpent)
	}
	if p.LastAccessedAt == nil {
		t.Error("LastAccessedAt = nil, want touched")
	}
	if !p.IsDirty {
		t.Error("IsDirty = false after local mutation, want true")
	}
}

func TestSQLiteStore_CompleteProgress(t *testing.T) {
	t.Run("records the score", func(t *testing.T) {
		s := newTestStore(t)

		if _, err := s.UpsertProgress(sampleProgress("p1", "u1", "l1")); err != nil {
			t.Fatalf("UpsertProgress() error = %v", err)
		}

		score := 87.5
		if err := s.CompleteProgress("p1", &score); err != nil {
			t.Fatalf("CompleteProgress() error = %v", err)
		}

		p, err := s.FindProgressByID("p1")
		if err != nil {
			t.Fatalf("FindProgressByID() error = %v", err)
		}
		if p.Status != model.ProgressStatusCompleted {
			t.Errorf("Status = %v, want completed", p.Status)
		}
		if p.Score == nil || *p.Score != 87.5 {
			t.Errorf("Score = %v, want 87.5", p.Score)
		}
	})

	t.Run("allows completion without a score", func(t *testing.T) {
		s := newTestStore(t)

		if _, err := s.UpsertProgress(sampleProgress("p1", "u1", "l1")); err != nil {
			t.Fatalf("UpsertProgress() error = %v", err)
		}

		if err := s.CompleteProgress("p1", nil); err != nil {
			t.Fatalf("CompleteProgress() error = %v", err)
		}

		p, err := s.FindProgressByID("p1")
		if err != nil {
			t.Fatalf("FindProgressByID() error = %v", err)
		}
		if p.Score != nil {
			t.Errorf("Score = %v, want nil", p.Score)
		}
	})
}

func TestSQLiteStore_ListProgressByEnrollment(t *testing.T) {
	s := newTestStore(t)

	if _, err := s.UpsertProgress(sampleProgress("p1", "u1", "l1")); err != nil {
		t.Fatalf("UpsertProgress() error = %v", err)
	}
	other := sampleProgress("p2", "u1", "l2")
	other.EnrollmentID = "e2"
	if _, err := s.UpsertProgress(other); err != nil {
		t.Fatalf("UpsertProgress() error = %v", err)
	}

	records, err := s.ListProgressByEnrollment("e1")
	if err != nil {
		t.Fatalf("ListProgressByEnrollment() error = %v", err)
	}
	if len(records) != 1 || records[0].ID != "p1" {
		t.Errorf("ListProgressByEnrollment(e1) = %v, want [p1]", records)
	}
}
