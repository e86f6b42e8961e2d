package testutil

import (
	"time"

	"lmsync/internal/model"
)

// SampleCourse builds a published course with the given id.
func SampleCourse(id string) model.Course {
	return model.Course{
		ID:          id,
		Title:       "Course " + id,
		Description: "Description for " + id,
		Status:      model.CourseStatusPublished,
	}
}

// SampleLesson builds a video lesson in the given course at the given
// position.
func SampleLesson(id, courseID string, position int) model.Lesson {
	return model.Lesson{
		ID:         id,
		CourseID:   courseID,
		Title:      "Lesson " + id,
		Type:       model.LessonTypeVideo,
		Position:   position,
		Duration:   300,
		IsRequired: true,
	}
}

// SampleEnrollment builds an active enrollment for the given user and course.
func SampleEnrollment(id, userID, courseID string) model.Enrollment {
	return model.Enrollment{
		ID:         id,
		UserID:     userID,
		CourseID:   courseID,
		Status:     model.EnrollmentStatusEnrolled,
		Progress:   0,
		EnrolledAt: time.Date(2024, 1, 10, 9, 0, 0, 0, time.UTC),
	}
}

// SampleProgress builds a not-started progress record.
func SampleProgress(id, userID, enrollmentID, lessonID, courseID string) model.Progress {
	return model.Progress{
		ID:           id,
		UserID:       userID,
		EnrollmentID: enrollmentID,
		LessonID:     lessonID,
		CourseID:     courseID,
		Status:       model.ProgressStatusNotStarted,
	}
}

// SamplePackage builds package metadata attached to the given lesson.
func SamplePackage(id, lessonID, courseID string) model.PackageMetadata {
	return model.PackageMetadata{
		ID:           id,
		LessonID:     lessonID,
		CourseID:     courseID,
		Title:        "Package " + id,
		Version:      "1.0.0",
		ManifestPath: "imsmanifest.xml",
		LaunchPath:   "index.html",
		Size:         1024,
	}
}
