package lms

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sync"

	"lmsync/internal/model"
)

// ErrSyncInProgress is returned by FullSync when another full sync has not
// yet completed. Overlapping syncs are rejected, not queued.
var ErrSyncInProgress = errors.New("sync already in progress")

// SyncEngine reconciles the local entity store with the remote API.
// A full sync runs three phases strictly in sequence: push locally dirty
// records, pull authoritative server records, drain the durable mutation
// queue. Push and drain continue past per-item failures; a pull failure
// aborts the run.
type SyncEngine struct {
	store     Store
	api       APIClient
	endpoints Endpoints
	userID    string
	logger    Logger

	mu      sync.Mutex
	syncing bool
}

// NewSyncEngine creates a sync engine. userID may be empty, in which case
// the pull phase fetches only the course collection.
func NewSyncEngine(store Store, api APIClient, endpoints Endpoints, userID string, logger Logger) *SyncEngine {
	return &SyncEngine{
		store:     store,
		api:       api,
		endpoints: endpoints,
		userID:    userID,
		logger:    logger,
	}
}

// IsSyncing reports whether a full sync is currently running.
func (e *SyncEngine) IsSyncing() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.syncing
}

// FullSync runs push, pull and queue-drain against the remote API and
// reports an aggregated result. Per-record failures never abort the run;
// they are collected into the result. The only error FullSync itself
// returns is ErrSyncInProgress.
func (e *SyncEngine) FullSync(ctx context.Context) (*SyncResult, error) {
	e.mu.Lock()
	if e.syncing {
		e.mu.Unlock()
		return nil, ErrSyncInProgress
	}
	e.syncing = true
	e.mu.Unlock()

	defer func() {
		e.mu.Lock()
		e.syncing = false
		e.mu.Unlock()
	}()

	result := newSyncResult()

	if err := e.pushDirty(ctx, result); err != nil {
		// Reading the dirty set failed; nothing sensible can follow.
		result.addError(fmt.Sprintf("push phase: %v", err))
		e.logger.Error("sync aborted during push", "error", err)
		return result, nil
	}

	if err := e.pullRemote(ctx, result); err != nil {
		// Pull failures are fatal to the run, unlike per-record push
		// failures. The queue is not drained against a half-pulled state.
		result.addError(fmt.Sprintf("pull phase: %v", err))
		e.logger.Error("sync aborted during pull", "error", err)
		return result, nil
	}

	if err := e.drainQueue(ctx, result); err != nil {
		result.addError(fmt.Sprintf("queue drain: %v", err))
		e.logger.Error("sync aborted during queue drain", "error", err)
		return result, nil
	}

	e.logger.Info("full sync finished",
		"success", result.Success,
		"synced", result.Synced.Total(),
		"failed", result.Failed.Total(),
		"errors", len(result.Errors),
	)
	return result, nil
}

// pushDirty uploads every dirty row as a full-record replace, family by
// family. A failed record keeps its dirty flag and is retried on the next
// sync; successful records are stamped synced. The returned error covers
// only the initial dirty-set read.
func (e *SyncEngine) pushDirty(ctx context.Context, result *SyncResult) error {
	dirty, err := e.store.GetDirtyEntities()
	if err != nil {
		return fmt.Errorf("reading dirty entities: %w", err)
	}
	if dirty.Total() == 0 {
		return nil
	}
	e.logger.Debug("pushing dirty records", "count", dirty.Total())

	for _, c := range dirty.Courses {
		e.pushRecord(ctx, TableCourses, e.endpoints.Courses, c.ID, c, result,
			&result.Synced.Courses, &result.Failed.Courses)
	}
	for _, l := range dirty.Lessons {
		e.pushRecord(ctx, TableLessons, e.endpoints.Lessons, l.ID, l, result,
			&result.Synced.Lessons, &result.Failed.Lessons)
	}
	for _, en := range dirty.Enrollments {
		e.pushRecord(ctx, TableEnrollments, e.endpoints.Enrollments, en.ID, en, result,
			&result.Synced.Enrollments, &result.Failed.Enrollments)
	}
	for _, p := range dirty.Progress {
		e.pushRecord(ctx, TableProgress, e.endpoints.Progress, p.ID, p, result,
			&result.Synced.Progress, &result.Failed.Progress)
	}
	return nil
}

// pushRecord replaces one record on the server and clears its dirty flag
// on success. Failures are recorded and the push moves on.
func (e *SyncEngine) pushRecord(ctx context.Context, table, endpoint, id string, record any, result *SyncResult, synced, failed *int) {
	if err := e.api.Put(ctx, endpoint+"/"+id, record, nil); err != nil {
		*failed++
		result.addError(fmt.Sprintf("push %s %s: %v", table, id, err))
		e.logger.Warn("push failed", "table", table, "id", id, "error", err)
		return
	}
	if err := e.store.MarkSynced(table, []string{id}); err != nil {
		// The server accepted the record; a local stamping failure leaves
		// it dirty and it will be re-pushed next run.
		*failed++
		result.addError(fmt.Sprintf("mark %s %s synced: %v", table, id, err))
		return
	}
	*synced++
}

// pullRemote downloads authoritative server records and bulk-upserts them
// locally: the full course collection always, plus the configured user's
// enrollments, the lessons of every enrolled course, and the user's
// progress records. Server values overwrite local rows, dirty or not.
// Any failure is fatal to the phase.
func (e *SyncEngine) pullRemote(ctx context.Context, result *SyncResult) error {
	var courses []model.Course
	if err := e.api.Get(ctx, e.endpoints.Courses, &courses); err != nil {
		return fmt.Errorf("fetching courses: %w", err)
	}
	if err := e.store.BulkUpsertCourses(courses); err != nil {
		return fmt.Errorf("storing courses: %w", err)
	}
	result.Synced.Courses += len(courses)

	if e.userID == "" {
		return nil
	}

	var enrollments []model.Enrollment
	path := e.endpoints.Enrollments + "?userId=" + url.QueryEscape(e.userID)
	if err := e.api.Get(ctx, path, &enrollments); err != nil {
		return fmt.Errorf("fetching enrollments: %w", err)
	}
	if err := e.store.BulkUpsertEnrollments(enrollments); err != nil {
		return fmt.Errorf("storing enrollments: %w", err)
	}
	result.Synced.Enrollments += len(enrollments)

	for _, courseID := range distinctCourseIDs(enrollments) {
		var lessons []model.Lesson
		path := e.endpoints.Lessons + "?courseId=" + url.QueryEscape(courseID)
		if err := e.api.Get(ctx, path, &lessons); err != nil {
			return fmt.Errorf("fetching lessons for course %s: %w", courseID, err)
		}
		if err := e.store.BulkUpsertLessons(lessons); err != nil {
			return fmt.Errorf("storing lessons for course %s: %w", courseID, err)
		}
		result.Synced.Lessons += len(lessons)
	}

	var records []model.Progress
	path = e.endpoints.Progress + "?userId=" + url.QueryEscape(e.userID)
	if err := e.api.Get(ctx, path, &records); err != nil {
		return fmt.Errorf("fetching progress: %w", err)
	}
	if err := e.store.BulkUpsertProgress(records); err != nil {
		return fmt.Errorf("storing progress: %w", err)
	}
	result.Synced.Progress += len(records)

	return nil
}

// drainQueue replays pending queued mutations in creation order. Each
// entry ends up completed or failed; a failed entry retains its error and
// attempt count and is not retried without an explicit re-queue.
func (e *SyncEngine) drainQueue(ctx context.Context, result *SyncResult) error {
	entries, err := e.store.PendingQueueEntries()
	if err != nil {
		return fmt.Errorf("reading pending queue: %w", err)
	}

	for _, entry := range entries {
		if err := e.store.MarkQueueProcessing(entry.ID); err != nil {
			result.addError(fmt.Sprintf("queue entry %d: marking processing: %v", entry.ID, err))
			continue
		}

		if err := e.dispatchQueueEntry(ctx, entry); err != nil {
			if ferr := e.store.MarkQueueFailed(entry.ID, err.Error()); ferr != nil {
				result.addError(fmt.Sprintf("queue entry %d: marking failed: %v", entry.ID, ferr))
			}
			result.addError(fmt.Sprintf("queue entry %d (%s %s %s): %v",
				entry.ID, entry.Type, entry.Entity, entry.EntityID, err))
			e.logger.Warn("queue entry failed", "id", entry.ID, "type", entry.Type, "entity", entry.Entity, "error", err)
			continue
		}

		if err := e.store.MarkQueueCompleted(entry.ID); err != nil {
			result.addError(fmt.Sprintf("queue entry %d: marking completed: %v", entry.ID, err))
		}
	}
	return nil
}

// dispatchQueueEntry issues the remote call a queue entry describes.
func (e *SyncEngine) dispatchQueueEntry(ctx context.Context, entry model.SyncQueueEntry) error {
	endpoint, err := e.endpointFor(entry.Entity)
	if err != nil {
		return err
	}

	switch entry.Type {
	case model.QueueOpCreate:
		return e.api.Post(ctx, endpoint, entry.Payload, nil)
	case model.QueueOpUpdate:
		return e.api.Put(ctx, endpoint+"/"+entry.EntityID, entry.Payload, nil)
	case model.QueueOpDelete:
		return e.api.Delete(ctx, endpoint+"/"+entry.EntityID)
	default:
		return fmt.Errorf("unknown mutation type: %s", entry.Type)
	}
}

// endpointFor maps a queue entry's entity kind to its endpoint base path.
func (e *SyncEngine) endpointFor(entity string) (string, error) {
	switch entity {
	case "course", TableCourses:
		return e.endpoints.Courses, nil
	case "lesson", TableLessons:
		return e.endpoints.Lessons, nil
	case "enrollment", TableEnrollments:
		return e.endpoints.Enrollments, nil
	case "progress":
		return e.endpoints.Progress, nil
	default:
		return "", fmt.Errorf("unknown entity kind: %s", entity)
	}
}

// DownloadCourse fetches one course and its lessons and stores both
// locally. Unlike FullSync this is all-or-nothing: any failure is
// returned to the caller. Intended for a blocking "make this course
// available offline" action.
func (e *SyncEngine) DownloadCourse(ctx context.Context, courseID string) error {
	var course model.Course
	if err := e.api.Get(ctx, e.endpoints.Courses+"/"+courseID, &course); err != nil {
		return fmt.Errorf("fetching course %s: %w", courseID, err)
	}
	if _, err := e.store.UpsertCourse(course); err != nil {
		return fmt.Errorf("storing course %s: %w", courseID, err)
	}

	var lessons []model.Lesson
	path := e.endpoints.Lessons + "?courseId=" + url.QueryEscape(courseID)
	if err := e.api.Get(ctx, path, &lessons); err != nil {
		return fmt.Errorf("fetching lessons for course %s: %w", courseID, err)
	}
	if err := e.store.BulkUpsertLessons(lessons); err != nil {
		return fmt.Errorf("storing lessons for course %s: %w", courseID, err)
	}

	e.logger.Info("course downloaded", "courseId", courseID, "lessons", len(lessons))
	return nil
}

// QueueMutation appends a durable queue entry for later delivery by the
// queue-drain phase. It does not attempt immediate delivery. Returns the
// generated queue id.
func (e *SyncEngine) QueueMutation(mutType, entity, entityID string, payload json.RawMessage) (int64, error) {
	switch mutType {
	case model.QueueOpCreate, model.QueueOpUpdate, model.QueueOpDelete:
	default:
		return 0, fmt.Errorf("unknown mutation type: %s", mutType)
	}
	if _, err := e.endpointFor(entity); err != nil {
		return 0, err
	}

	id, err := e.store.EnqueueMutation(model.SyncQueueEntry{
		Type:     mutType,
		Entity:   entity,
		EntityID: entityID,
		Payload:  payload,
	})
	if err != nil {
		return 0, fmt.Errorf("queueing mutation: %w", err)
	}

	e.logger.Debug("mutation queued", "id", id, "type", mutType, "entity", entity, "entityId", entityID)
	return id, nil
}

// QueueStatus summarizes the durable mutation queue for diagnostics.
type QueueStatus struct {
	Pending []model.SyncQueueEntry
	Failed  []model.SyncQueueEntry
}

// SyncQueueStatus returns the pending and failed queue entries.
func (e *SyncEngine) SyncQueueStatus() (*QueueStatus, error) {
	pending, err := e.store.PendingQueueEntries()
	if err != nil {
		return nil, fmt.Errorf("reading pending queue: %w", err)
	}
	failed, err := e.store.FailedQueueEntries()
	if err != nil {
		return nil, fmt.Errorf("reading failed queue: %w", err)
	}
	return &QueueStatus{Pending: pending, Failed: failed}, nil
}

// ClearSyncQueue purges completed queue entries. Failed and pending
// entries are preserved for visibility and retry. Returns the number of
// entries removed.
func (e *SyncEngine) ClearSyncQueue() (int64, error) {
	n, err := e.store.ClearCompletedQueueEntries()
	if err != nil {
		return 0, fmt.Errorf("clearing completed queue entries: %w", err)
	}
	return n, nil
}

// distinctCourseIDs returns the unique course ids across enrollments,
// preserving first-seen order.
func distinctCourseIDs(enrollments []model.Enrollment) []string {
	seen := make(map[string]bool, len(enrollments))
	var ids []string
	for _, en := range enrollments {
		if en.CourseID == "" || seen[en.CourseID] {
			continue
		}
		seen[en.CourseID] = true
		ids = append(ids, en.CourseID)
	}
	return ids
}
