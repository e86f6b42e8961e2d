package model

import (
	"encoding/json"
	"time"
)

// Course statuses.
const (
	CourseStatusDraft     = "draft"
	CourseStatusPublished = "published"
	CourseStatusArchived  = "archived"
)

// Lesson types.
const (
	LessonTypeVideo    = "video"
	LessonTypePackage  = "package"
	LessonTypeDocument = "document"
	LessonTypeQuiz     = "quiz"
)

// Enrollment statuses.
const (
	EnrollmentStatusEnrolled   = "enrolled"
	EnrollmentStatusInProgress = "in-progress"
	EnrollmentStatusCompleted  = "completed"
	EnrollmentStatusDropped    = "dropped"
)

// Progress statuses.
const (
	ProgressStatusNotStarted = "not-started"
	ProgressStatusInProgress = "in-progress"
	ProgressStatusCompleted  = "completed"
)

// Course is the root content entity.
type Course struct {
	ID          string          `json:"id"`
	Title       string          `json:"title"`
	Description string          `json:"description"`
	Status      string          `json:"status"`
	Metadata    json.RawMessage `json:"metadata,omitempty"`
	SyncedAt    *time.Time      `json:"syncedAt,omitempty"`
	IsDirty     bool            `json:"-"`
}

// Lesson is a unit of course content, ordered within its course via
// Position. Ties are broken by id for a stable order.
type Lesson struct {
	ID         string          `json:"id"`
	CourseID   string          `json:"courseId"`
	Title      string          `json:"title"`
	Type       string          `json:"type"`
	Position   int             `json:"order"`
	Content    json.RawMessage `json:"content,omitempty"`
	Duration   int             `json:"duration"` // seconds
	IsRequired bool            `json:"isRequired"`
	SyncedAt   *time.Time      `json:"syncedAt,omitempty"`
	IsDirty    bool            `json:"-"`
}

// Enrollment links a user to a course. Conceptually one per (user, course).
type Enrollment struct {
	ID          string     `json:"id"`
	UserID      string     `json:"userId"`
	CourseID    string     `json:"courseId"`
	Status      string     `json:"status"`
	Progress    int        `json:"progress"` // 0-100
	EnrolledAt  time.Time  `json:"enrolledAt"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
	SyncedAt    *time.Time `json:"syncedAt,omitempty"`
	IsDirty     bool       `json:"-"`
}

// Progress tracks a user's state on a single lesson.
type Progress struct {
	ID             string     `json:"id"`
	UserID         string     `json:"userId"`
	EnrollmentID   string     `json:"enrollmentId"`
	LessonID       string     `json:"lessonId"`
	CourseID       string     `json:"courseId"`
	Status         string     `json:"status"`
	Score          *float64   `json:"score,omitempty"`
	TimeSpent      int        `json:"timeSpent"` // seconds
	Attempts       int        `json:"attempts"`
	LastAccessedAt *time.Time `json:"lastAccessedAt,omitempty"`
	SyncedAt       *time.Time `json:"syncedAt,omitempty"`
	IsDirty        bool       `json:"-"`
}

// PackageMetadata describes a binary course-package archive. The binary
// itself lives in the package file area, never in the database.
type PackageMetadata struct {
	ID           string     `json:"id"`
	LessonID     string     `json:"lessonId"`
	CourseID     string     `json:"courseId"`
	Title        string     `json:"title"`
	Version      string     `json:"version"`
	ManifestPath string     `json:"manifestPath"`
	LaunchPath   string     `json:"launchPath"`
	Size         int64      `json:"size"`
	IsDownloaded bool       `json:"isDownloaded"`
	DownloadedAt *time.Time `json:"downloadedAt,omitempty"`
	FileHandleID string     `json:"fileHandleId,omitempty"`
	SyncedAt     *time.Time `json:"syncedAt,omitempty"`
}

// Queue entry mutation types.
const (
	QueueOpCreate = "CREATE"
	QueueOpUpdate = "UPDATE"
	QueueOpDelete = "DELETE"
)

// Queue entry statuses. An entry is append-only until it reaches a terminal
// status (completed/failed); failed entries are kept for inspection.
const (
	QueueStatusPending    = "pending"
	QueueStatusProcessing = "processing"
	QueueStatusFailed     = "failed"
	QueueStatusCompleted  = "completed"
)

// SyncQueueEntry is a durable deferred mutation awaiting replay against
// the server.
type SyncQueueEntry struct {
	ID            int64           `json:"id"`
	Type          string          `json:"type"`   // CREATE, UPDATE, DELETE
	Entity        string          `json:"entity"` // entity kind, e.g. "course"
	EntityID      string          `json:"entityId"`
	Payload       json.RawMessage `json:"payload,omitempty"`
	CreatedAt     time.Time       `json:"createdAt"`
	Attempts      int             `json:"attempts"`
	LastAttemptAt *time.Time      `json:"lastAttemptAt,omitempty"`
	Error         string          `json:"error,omitempty"`
	Status        string          `json:"status"`
}

// CachedUser is a read-mostly local cache of identity data.
type CachedUser struct {
	ID        string     `json:"id"`
	Email     string     `json:"email"`
	FirstName string     `json:"firstName"`
	LastName  string     `json:"lastName"`
	Roles     []string   `json:"roles,omitempty"`
	AvatarURL string     `json:"avatarUrl,omitempty"`
	SyncedAt  *time.Time `json:"syncedAt,omitempty"`
}
