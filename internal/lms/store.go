package lms

import "lmsync/internal/model"

// Syncable table names. These are the only tables MarkSynced accepts and
// the only families the push phase covers.
const (
	TableCourses     = "courses"
	TableLessons     = "lessons"
	TableEnrollments = "enrollments"
	TableProgress    = "progress"
)

// DirtyEntities holds, per syncable table, every row with unsynced local
// changes.
type DirtyEntities struct {
	Courses     []model.Course
	Lessons     []model.Lesson
	Enrollments []model.Enrollment
	Progress    []model.Progress
}

// Total returns the number of dirty rows across all families.
func (d *DirtyEntities) Total() int {
	return len(d.Courses) + len(d.Lessons) + len(d.Enrollments) + len(d.Progress)
}

// Store is the slice of the local entity store the sync engine depends on.
// All writes made through it follow server-authoritative stamping: bulk
// upserts set synced_at and clear the dirty flag.
type Store interface {
	// GetDirtyEntities returns all locally modified rows awaiting push.
	GetDirtyEntities() (*DirtyEntities, error)

	// MarkSynced stamps synced_at=now and clears the dirty flag for the
	// given ids in the given table. Missing ids are tolerated.
	MarkSynced(table string, ids []string) error

	// Server-authoritative writes used by the pull phase.
	UpsertCourse(course model.Course) (string, error)
	BulkUpsertCourses(courses []model.Course) error
	BulkUpsertLessons(lessons []model.Lesson) error
	BulkUpsertEnrollments(enrollments []model.Enrollment) error
	BulkUpsertProgress(records []model.Progress) error

	// Durable mutation queue.
	EnqueueMutation(entry model.SyncQueueEntry) (int64, error)
	PendingQueueEntries() ([]model.SyncQueueEntry, error)
	FailedQueueEntries() ([]model.SyncQueueEntry, error)
	MarkQueueProcessing(id int64) error
	MarkQueueCompleted(id int64) error
	MarkQueueFailed(id int64, errMsg string) error
	ClearCompletedQueueEntries() (int64, error)
}
