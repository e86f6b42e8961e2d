package database

import (
	"database/sql"
	"errors"
	"fmt"

	"lmsync/internal/model"
)

const queueColumns = "id, type, entity, entity_id, payload, created_at, attempts, last_attempt_at, error, status"

func scanQueueEntry(row rowScanner) (*model.SyncQueueEntry, error) {
	var (
		e             model.SyncQueueEntry
		payload       sql.NullString
		lastAttemptAt sql.NullTime
	)
	err := row.Scan(&e.ID, &e.Type, &e.Entity, &e.EntityID, &payload,
		&e.CreatedAt, &e.Attempts, &lastAttemptAt, &e.Error, &e.Status)
	if err != nil {
		return nil, err
	}
	e.Payload = rawJSON(payload)
	e.LastAttemptAt = timePtr(lastAttemptAt)
	return &e, nil
}

func (s *SQLiteStore) queryQueueEntries(query string, args ...any) ([]model.SyncQueueEntry, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []model.SyncQueueEntry
	for rows.Next() {
		e, err := scanQueueEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, *e)
	}
	return entries, rows.Err()
}

// EnqueueMutation appends a durable queue entry, stamping created_at,
// attempts=0 and status=pending. Returns the generated id.
func (s *SQLiteStore) EnqueueMutation(entry model.SyncQueueEntry) (int64, error) {
	res, err := s.db.Exec(
		"INSERT INTO sync_queue (type, entity, entity_id, payload, created_at, attempts, status) VALUES (?, ?, ?, ?, ?, 0, ?)",
		entry.Type, entry.Entity, entry.EntityID, nullJSON(entry.Payload), s.clock.Now(), model.QueueStatusPending)
	if err != nil {
		return 0, fmt.Errorf("enqueueing mutation: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("reading queue id: %w", err)
	}
	return id, nil
}

// FindQueueEntryByID returns the queue entry with the given id, or nil if
// absent.
func (s *SQLiteStore) FindQueueEntryByID(id int64) (*model.SyncQueueEntry, error) {
	e, err := scanQueueEntry(s.db.QueryRow("SELECT "+queueColumns+" FROM sync_queue WHERE id = ?", id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Not found
		}
		return nil, fmt.Errorf("finding queue entry by id: %w", err)
	}
	return e, nil
}

// PendingQueueEntries returns pending entries in creation order. The drain
// replays them oldest first so an UPDATE queued before a DELETE on the
// same entity is delivered first.
func (s *SQLiteStore) PendingQueueEntries() ([]model.SyncQueueEntry, error) {
	entries, err := s.queryQueueEntries(
		"SELECT "+queueColumns+" FROM sync_queue WHERE status = ? ORDER BY created_at, id",
		model.QueueStatusPending)
	if err != nil {
		return nil, fmt.Errorf("listing pending queue entries: %w", err)
	}
	return entries, nil
}

// FailedQueueEntries returns failed entries, kept for operator inspection.
func (s *SQLiteStore) FailedQueueEntries() ([]model.SyncQueueEntry, error) {
	entries, err := s.queryQueueEntries(
		"SELECT "+queueColumns+" FROM sync_queue WHERE status = ? ORDER BY created_at, id",
		model.QueueStatusFailed)
	if err != nil {
		return nil, fmt.Errorf("listing failed queue entries: %w", err)
	}
	return entries, nil
}

// MarkQueueProcessing transitions an entry to processing before its remote
// call is attempted.
func (s *SQLiteStore) MarkQueueProcessing(id int64) error {
	_, err := s.db.Exec("UPDATE sync_queue SET status = ? WHERE id = ?", model.QueueStatusProcessing, id)
	if err != nil {
		return fmt.Errorf("marking queue entry processing: %w", err)
	}
	return nil
}

// MarkQueueCompleted transitions an entry to its terminal success state.
func (s *SQLiteStore) MarkQueueCompleted(id int64) error {
	_, err := s.db.Exec("UPDATE sync_queue SET status = ?, error = '' WHERE id = ?", model.QueueStatusCompleted, id)
	if err != nil {
		return fmt.Errorf("marking queue entry completed: %w", err)
	}
	return nil
}

// MarkQueueFailed transitions an entry to failed, recording the error and
// incrementing the attempt count. Failed entries are not retried without
// an explicit RequeueEntry.
func (s *SQLiteStore) MarkQueueFailed(id int64, errMsg string) error {
	_, err := s.db.Exec(
		"UPDATE sync_queue SET status = ?, error = ?, attempts = attempts + 1, last_attempt_at = ? WHERE id = ?",
		model.QueueStatusFailed, errMsg, s.clock.Now(), id)
	if err != nil {
		return fmt.Errorf("marking queue entry failed: %w", err)
	}
	return nil
}

// RequeueEntry puts a failed entry back to pending for the next drain. Its
// attempt count and last error are kept for diagnostics.
func (s *SQLiteStore) RequeueEntry(id int64) error {
	_, err := s.db.Exec(
		"UPDATE sync_queue SET status = ? WHERE id = ? AND status = ?",
		model.QueueStatusPending, id, model.QueueStatusFailed)
	if err != nil {
		return fmt.Errorf("requeueing entry: %w", err)
	}
	return nil
}

// ClearCompletedQueueEntries purges terminal-success entries. Failed and
// pending entries are retained. Returns the number removed.
func (s *SQLiteStore) ClearCompletedQueueEntries() (int64, error) {
	res, err := s.db.Exec("DELETE FROM sync_queue WHERE status = ?", model.QueueStatusCompleted)
	if err != nil {
		return 0, fmt.Errorf("clearing completed queue entries: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("reading affected rows: %w", err)
	}
	return n, nil
}
