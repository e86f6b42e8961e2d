package lms_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"lmsync/internal/lms"
	"lmsync/internal/model"
	"lmsync/internal/testutil"
)

var testEndpoints = lms.Endpoints{
	Courses:     "/courses",
	Lessons:     "/lessons",
	Enrollments: "/enrollments",
	Progress:    "/progress",
}

func TestSyncEngine_FullSync_Push(t *testing.T) {
	t.Run("pushes dirty records and marks them synced", func(t *testing.T) {
		clock := testutil.FixedClock()
		store := testutil.NewTestStore(t, clock, testutil.NewStubIDGenerator())
		api := testutil.NewStubAPIClient()
		api.Responses["/courses"] = []model.Course{}
		engine := lms.NewSyncEngine(store, api, testEndpoints, "", lms.NewNopLogger())

		course := testutil.SampleCourse("")
		id, err := store.UpsertCourse(course)
		if err != nil {
			t.Fatalf("UpsertCourse() error = %v", err)
		}
		if id != "id-1" {
			t.Fatalf("UpsertCourse() id = %q, want id-1", id)
		}
		if err := store.MarkCourseDirty(id); err != nil {
			t.Fatalf("MarkCourseDirty() error = %v", err)
		}

		clock.Advance(time.Hour)
		result, err := engine.FullSync(context.Background())
		if err != nil {
			t.Fatalf("FullSync() error = %v", err)
		}
		if !result.Success {
			t.Errorf("Success = false, errors = %v", result.Errors)
		}
		if result.Synced.Courses != 1 {
			t.Errorf("Synced.Courses = %d, want 1", result.Synced.Courses)
		}

		if calls := api.CallsTo("PUT", "/courses/id-1"); len(calls) != 1 {
			t.Errorf("PUT /courses/id-1 called %d times, want 1", len(calls))
		}

		c, err := store.FindCourseByID(id)
		if err != nil {
			t.Fatalf("FindCourseByID() error = %v", err)
		}
		if c.SyncedAt == nil || !c.SyncedAt.Equal(clock.Now()) {
			t.Errorf("SyncedAt = %v, want %v", c.SyncedAt, clock.Now())
		}

		dirty, err := store.GetDirtyEntities()
		if err != nil {
			t.Fatalf("GetDirtyEntities() error = %v", err)
		}
		if dirty.Total() != 0 {
			t.Errorf("dirty total after sync = %d, want 0", dirty.Total())
		}
	})

	t.Run("a failed record stays dirty and does not abort the push", func(t *testing.T) {
		store := testutil.NewTestStore(t, nil, nil)
		api := testutil.NewStubAPIClient()
		api.Responses["/courses"] = []model.Course{}
		api.Errors["PUT /courses/c2"] = errors.New("server returned 500")
		engine := lms.NewSyncEngine(store, api, testEndpoints, "", lms.NewNopLogger())

		for _, id := range []string{"c1", "c2", "c3"} {
			if _, err := store.UpsertCourse(testutil.SampleCourse(id)); err != nil {
				t.Fatalf("UpsertCourse() error = %v", err)
			}
			if err := store.MarkCourseDirty(id); err != nil {
				t.Fatalf("MarkCourseDirty() error = %v", err)
			}
		}

		result, err := engine.FullSync(context.Background())
		if err != nil {
			t.Fatalf("FullSync() error = %v", err)
		}
		if result.Success {
			t.Error("Success = true, want false")
		}
		if result.Synced.Courses != 2 {
			t.Errorf("Synced.Courses = %d, want 2", result.Synced.Courses)
		}
		if result.Failed.Courses != 1 {
			t.Errorf("Failed.Courses = %d, want 1", result.Failed.Courses)
		}
		if len(result.Errors) != 1 {
			t.Errorf("Errors = %v, want one entry", result.Errors)
		}

		dirty, err := store.GetDirtyEntities()
		if err != nil {
			t.Fatalf("GetDirtyEntities() error = %v", err)
		}
		if len(dirty.Courses) != 1 || dirty.Courses[0].ID != "c2" {
			t.Errorf("dirty courses = %v, want [c2]", dirty.Courses)
		}
	})
}

func TestSyncEngine_FullSync_Pull(t *testing.T) {
	t.Run("stores server records for the configured user", func(t *testing.T) {
		store := testutil.NewTestStore(t, nil, nil)
		api := testutil.NewStubAPIClient()
		api.Responses["/courses"] = []model.Course{
			testutil.SampleCourse("c1"),
			testutil.SampleCourse("c2"),
		}
		api.Responses["/enrollments?userId=u1"] = []model.Enrollment{
			testutil.SampleEnrollment("e1", "u1", "c1"),
		}
		api.Responses["/lessons?courseId=c1"] = []model.Lesson{
			testutil.SampleLesson("l1", "c1", 0),
			testutil.SampleLesson("l2", "c1", 1),
		}
		api.Responses["/progress?userId=u1"] = []model.Progress{
			testutil.SampleProgress("p1", "u1", "e1", "l1", "c1"),
		}
		engine := lms.NewSyncEngine(store, api, testEndpoints, "u1", lms.NewNopLogger())

		result, err := engine.FullSync(context.Background())
		if err != nil {
			t.Fatalf("FullSync() error = %v", err)
		}
		if !result.Success {
			t.Fatalf("Success = false, errors = %v", result.Errors)
		}
		if result.Synced.Courses != 2 || result.Synced.Enrollments != 1 ||
			result.Synced.Lessons != 2 || result.Synced.Progress != 1 {
			t.Errorf("Synced = %+v, want 2/2/1/1", result.Synced)
		}

		lessons, err := store.ListLessonsByCourse("c1")
		if err != nil {
			t.Fatalf("ListLessonsByCourse() error = %v", err)
		}
		if len(lessons) != 2 {
			t.Errorf("stored %d lessons, want 2", len(lessons))
		}
	})

	t.Run("server values overwrite dirty local rows", func(t *testing.T) {
		store := testutil.NewTestStore(t, nil, nil)
		api := testutil.NewStubAPIClient()
		server := testutil.SampleCourse("c1")
		server.Title = "Server Title"
		api.Responses["/courses"] = []model.Course{server}
		engine := lms.NewSyncEngine(store, api, testEndpoints, "", lms.NewNopLogger())

		local := testutil.SampleCourse("c1")
		local.Title = "Local Title"
		if _, err := store.UpsertCourse(local); err != nil {
			t.Fatalf("UpsertCourse() error = %v", err)
		}

		if _, err := engine.FullSync(context.Background()); err != nil {
			t.Fatalf("FullSync() error = %v", err)
		}

		c, err := store.FindCourseByID("c1")
		if err != nil {
			t.Fatalf("FindCourseByID() error = %v", err)
		}
		if c.Title != "Server Title" {
			t.Errorf("Title = %v, want Server Title", c.Title)
		}
		if c.IsDirty {
			t.Error("IsDirty = true after pull, want false")
		}
	})

	t.Run("a pull failure aborts the run before the queue drain", func(t *testing.T) {
		store := testutil.NewTestStore(t, nil, nil)
		api := testutil.NewStubAPIClient()
		api.Errors["GET /courses"] = errors.New("connection refused")
		engine := lms.NewSyncEngine(store, api, testEndpoints, "", lms.NewNopLogger())

		id, err := engine.QueueMutation(model.QueueOpUpdate, "course", "c1", json.RawMessage(`{"title":"x"}`))
		if err != nil {
			t.Fatalf("QueueMutation() error = %v", err)
		}

		result, err := engine.FullSync(context.Background())
		if err != nil {
			t.Fatalf("FullSync() error = %v", err)
		}
		if result.Success {
			t.Error("Success = true, want false")
		}

		// The queued entry must still be pending; nothing was dispatched.
		status, err := engine.SyncQueueStatus()
		if err != nil {
			t.Fatalf("SyncQueueStatus() error = %v", err)
		}
		if len(status.Pending) != 1 || status.Pending[0].ID != id {
			t.Errorf("Pending = %v, want the queued entry untouched", status.Pending)
		}
		if calls := api.CallsTo("PUT", "/courses/c1"); len(calls) != 0 {
			t.Errorf("queued mutation was dispatched despite pull failure")
		}
	})
}

func TestSyncEngine_FullSync_QueueDrain(t *testing.T) {
	t.Run("replays entries in creation order", func(t *testing.T) {
		store := testutil.NewTestStore(t, nil, nil)
		api := testutil.NewStubAPIClient()
		api.Responses["/courses"] = []model.Course{}
		engine := lms.NewSyncEngine(store, api, testEndpoints, "", lms.NewNopLogger())

		if _, err := engine.QueueMutation(model.QueueOpUpdate, "course", "c1", json.RawMessage(`{"title":"x"}`)); err != nil {
			t.Fatalf("QueueMutation() error = %v", err)
		}
		if _, err := engine.QueueMutation(model.QueueOpDelete, "course", "c1", nil); err != nil {
			t.Fatalf("QueueMutation() error = %v", err)
		}

		result, err := engine.FullSync(context.Background())
		if err != nil {
			t.Fatalf("FullSync() error = %v", err)
		}
		if !result.Success {
			t.Fatalf("Success = false, errors = %v", result.Errors)
		}

		// The UPDATE queued before the DELETE must be delivered first.
		var ops []string
		for _, call := range api.Calls {
			if call.Path == "/courses/c1" {
				ops = append(ops, call.Method)
			}
		}
		if len(ops) != 2 || ops[0] != "PUT" || ops[1] != "DELETE" {
			t.Errorf("dispatch order = %v, want [PUT DELETE]", ops)
		}

		status, err := engine.SyncQueueStatus()
		if err != nil {
			t.Fatalf("SyncQueueStatus() error = %v", err)
		}
		if len(status.Pending) != 0 || len(status.Failed) != 0 {
			t.Errorf("queue not drained: pending=%d failed=%d", len(status.Pending), len(status.Failed))
		}
	})

	t.Run("a failed entry records its error and does not block later entries", func(t *testing.T) {
		store := testutil.NewTestStore(t, nil, nil)
		api := testutil.NewStubAPIClient()
		api.Responses["/courses"] = []model.Course{}
		api.Errors["DELETE /courses/c1"] = errors.New("server returned 409")
		engine := lms.NewSyncEngine(store, api, testEndpoints, "", lms.NewNopLogger())

		if _, err := engine.QueueMutation(model.QueueOpDelete, "course", "c1", nil); err != nil {
			t.Fatalf("QueueMutation() error = %v", err)
		}
		if _, err := engine.QueueMutation(model.QueueOpUpdate, "lesson", "l1", json.RawMessage(`{"title":"y"}`)); err != nil {
			t.Fatalf("QueueMutation() error = %v", err)
		}

		result, err := engine.FullSync(context.Background())
		if err != nil {
			t.Fatalf("FullSync() error = %v", err)
		}
		if result.Success {
			t.Error("Success = true, want false")
		}

		status, err := engine.SyncQueueStatus()
		if err != nil {
			t.Fatalf("SyncQueueStatus() error = %v", err)
		}
		if len(status.Failed) != 1 {
			t.Fatalf("Failed = %d entries, want 1", len(status.Failed))
		}
		if status.Failed[0].Attempts != 1 {
			t.Errorf("Attempts = %d, want 1", status.Failed[0].Attempts)
		}
		if status.Failed[0].Error == "" {
			t.Error("Error is empty, want recorded message")
		}

		// The later UPDATE still went out.
		if calls := api.CallsTo("PUT", "/lessons/l1"); len(calls) != 1 {
			t.Errorf("PUT /lessons/l1 called %d times, want 1", len(calls))
		}
	})

	t.Run("clearing the queue removes only completed entries", func(t *testing.T) {
		store := testutil.NewTestStore(t, nil, nil)
		api := testutil.NewStubAPIClient()
		api.Responses["/courses"] = []model.Course{}
		api.Errors["DELETE /courses/bad"] = errors.New("server returned 500")
		engine := lms.NewSyncEngine(store, api, testEndpoints, "", lms.NewNopLogger())

		if _, err := engine.QueueMutation(model.QueueOpUpdate, "course", "c1", json.RawMessage(`{}`)); err != nil {
			t.Fatalf("QueueMutation() error = %v", err)
		}
		if _, err := engine.QueueMutation(model.QueueOpDelete, "course", "bad", nil); err != nil {
			t.Fatalf("QueueMutation() error = %v", err)
		}

		if _, err := engine.FullSync(context.Background()); err != nil {
			t.Fatalf("FullSync() error = %v", err)
		}

		n, err := engine.ClearSyncQueue()
		if err != nil {
			t.Fatalf("ClearSyncQueue() error = %v", err)
		}
		if n != 1 {
			t.Errorf("ClearSyncQueue() = %d, want 1", n)
		}

		status, err := engine.SyncQueueStatus()
		if err != nil {
			t.Fatalf("SyncQueueStatus() error = %v", err)
		}
		if len(status.Failed) != 1 {
			t.Errorf("Failed = %d entries after clear, want 1", len(status.Failed))
		}
	})
}

// blockingAPI blocks the first GET until released, so a second FullSync can
// be attempted while the first is mid-flight.
type blockingAPI struct {
	*testutil.StubAPIClient
	entered chan struct{}
	release chan struct{}
	blocked bool
}

func (b *blockingAPI) Get(ctx context.Context, path string, out any) error {
	if !b.blocked {
		b.blocked = true
		close(b.entered)
		<-b.release
	}
	return b.StubAPIClient.Get(ctx, path, out)
}

func TestSyncEngine_FullSync_MutualExclusion(t *testing.T) {
	store := testutil.NewTestStore(t, nil, nil)
	api := &blockingAPI{
		StubAPIClient: testutil.NewStubAPIClient(),
		entered:       make(chan struct{}),
		release:       make(chan struct{}),
	}
	api.Responses["/courses"] = []model.Course{}
	engine := lms.NewSyncEngine(store, api, testEndpoints, "", lms.NewNopLogger())

	done := make(chan struct{})
	go func() {
		defer close(done)
		if _, err := engine.FullSync(context.Background()); err != nil {
			t.Errorf("first FullSync() error = %v", err)
		}
	}()

	<-api.entered
	if !engine.IsSyncing() {
		t.Error("IsSyncing() = false while a sync is running")
	}

	_, err := engine.FullSync(context.Background())
	if !errors.Is(err, lms.ErrSyncInProgress) {
		t.Errorf("second FullSync() error = %v, want ErrSyncInProgress", err)
	}

	close(api.release)
	<-done

	if engine.IsSyncing() {
		t.Error("IsSyncing() = true after sync finished")
	}

	// The engine accepts a new sync once the first completes.
	if _, err := engine.FullSync(context.Background()); err != nil {
		t.Errorf("third FullSync() error = %v", err)
	}
}

func TestSyncEngine_DownloadCourse(t *testing.T) {
	t.Run("stores the course and its lessons", func(t *testing.T) {
		store := testutil.NewTestStore(t, nil, nil)
		api := testutil.NewStubAPIClient()
		api.Responses["/courses/c1"] = testutil.SampleCourse("c1")
		api.Responses["/lessons?courseId=c1"] = []model.Lesson{
			testutil.SampleLesson("l1", "c1", 0),
		}
		engine := lms.NewSyncEngine(store, api, testEndpoints, "u1", lms.NewNopLogger())

		if err := engine.DownloadCourse(context.Background(), "c1"); err != nil {
			t.Fatalf("DownloadCourse() error = %v", err)
		}

		c, err := store.FindCourseByID("c1")
		if err != nil {
			t.Fatalf("FindCourseByID() error = %v", err)
		}
		if c == nil {
			t.Fatal("course not stored")
		}
		lessons, err := store.ListLessonsByCourse("c1")
		if err != nil {
			t.Fatalf("ListLessonsByCourse() error = %v", err)
		}
		if len(lessons) != 1 {
			t.Errorf("stored %d lessons, want 1", len(lessons))
		}
	})

	t.Run("returns the error when the course fetch fails", func(t *testing.T) {
		store := testutil.NewTestStore(t, nil, nil)
		api := testutil.NewStubAPIClient()
		api.Errors["GET /courses/c1"] = errors.New("server returned 404")
		engine := lms.NewSyncEngine(store, api, testEndpoints, "u1", lms.NewNopLogger())

		if err := engine.DownloadCourse(context.Background(), "c1"); err == nil {
			t.Error("DownloadCourse() error = nil, want error")
		}
	})
}

func TestSyncEngine_QueueMutation(t *testing.T) {
	t.Run("rejects unknown mutation types", func(t *testing.T) {
		store := testutil.NewTestStore(t, nil, nil)
		engine := lms.NewSyncEngine(store, testutil.NewStubAPIClient(), testEndpoints, "u1", lms.NewNopLogger())

		if _, err := engine.QueueMutation("PATCH", "course", "c1", nil); err == nil {
			t.Error("QueueMutation(PATCH) error = nil, want error")
		}
	})

	t.Run("rejects unknown entity kinds", func(t *testing.T) {
		store := testutil.NewTestStore(t, nil, nil)
		engine := lms.NewSyncEngine(store, testutil.NewStubAPIClient(), testEndpoints, "u1", lms.NewNopLogger())

		if _, err := engine.QueueMutation(model.QueueOpUpdate, "widget", "w1", nil); err == nil {
			t.Error("QueueMutation(widget) error = nil, want error")
		}
	})

	t.Run("persists a valid mutation as pending", func(t *testing.T) {
		clock := testutil.FixedClock()
		store := testutil.NewTestStore(t, clock, nil)
		engine := lms.NewSyncEngine(store, testutil.NewStubAPIClient(), testEndpoints, "u1", lms.NewNopLogger())

		id, err := engine.QueueMutation(model.QueueOpCreate, "progress", "", json.RawMessage(`{"lessonId":"l1"}`))
		if err != nil {
			t.Fatalf("QueueMutation() error = %v", err)
		}

		entry, err := store.FindQueueEntryByID(id)
		if err != nil {
			t.Fatalf("FindQueueEntryByID() error = %v", err)
		}
		if entry == nil || entry.Status != model.QueueStatusPending {
			t.Errorf("entry = %v, want pending", entry)
		}
		if !entry.CreatedAt.Equal(clock.Now()) {
			t.Errorf("CreatedAt = %v, want %v", entry.CreatedAt, clock.Now())
		}
	})
}
