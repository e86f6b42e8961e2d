package database

import (
	"database/sql"
	"errors"
	"fmt"

	"lmsync/internal/model"
)

const packageColumns = "id, lesson_id, course_id, title, version, manifest_path, launch_path, size, is_downloaded, downloaded_at, file_handle_id, synced_at"

func scanPackage(row rowScanner) (*model.PackageMetadata, error) {
	var (
		p            model.PackageMetadata
		downloadedAt sql.NullTime
		syncedAt     sql.NullTime
	)
	err := row.Scan(&p.ID, &p.LessonID, &p.CourseID, &p.Title, &p.Version,
		&p.ManifestPath, &p.LaunchPath, &p.Size, &p.IsDownloaded,
		&downloadedAt, &p.FileHandleID, &syncedAt)
	if err != nil {
		return nil, err
	}
	p.DownloadedAt = timePtr(downloadedAt)
	p.SyncedAt = timePtr(syncedAt)
	return &p, nil
}

func (s *SQLiteStore) queryPackages(query string, args ...any) ([]model.PackageMetadata, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var packages []model.PackageMetadata
	for rows.Next() {
		p, err := scanPackage(rows)
		if err != nil {
			return nil, err
		}
		packages = append(packages, *p)
	}
	return packages, rows.Err()
}

// FindPackageByID returns the package metadata with the given id, or nil
// if absent.
func (s *SQLiteStore) FindPackageByID(id string) (*model.PackageMetadata, error) {
	p, err := scanPackage(s.db.QueryRow("SELECT "+packageColumns+" FROM packages WHERE id = ?", id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Not found
		}
		return nil, fmt.Errorf("finding package by id: %w", err)
	}
	return p, nil
}

// ListPackagesByLesson returns package metadata for a lesson.
func (s *SQLiteStore) ListPackagesByLesson(lessonID string) ([]model.PackageMetadata, error) {
	packages, err := s.queryPackages("SELECT "+packageColumns+" FROM packages WHERE lesson_id = ?", lessonID)
	if err != nil {
		return nil, fmt.Errorf("listing packages by lesson: %w", err)
	}
	return packages, nil
}

// ListPackagesByCourse returns package metadata for a course.
func (s *SQLiteStore) ListPackagesByCourse(courseID string) ([]model.PackageMetadata, error) {
	packages, err := s.queryPackages("SELECT "+packageColumns+" FROM packages WHERE course_id = ?", courseID)
	if err != nil {
		return nil, fmt.Errorf("listing packages by course: %w", err)
	}
	return packages, nil
}

// ListDownloadedPackages returns metadata rows claiming a downloaded
// binary.
func (s *SQLiteStore) ListDownloadedPackages() ([]model.PackageMetadata, error) {
	packages, err := s.queryPackages("SELECT " + packageColumns + " FROM packages WHERE is_downloaded = 1")
	if err != nil {
		return nil, fmt.Errorf("listing downloaded packages: %w", err)
	}
	return packages, nil
}

const upsertPackageSQL = `
INSERT INTO packages (id, lesson_id, course_id, title, version, manifest_path, launch_path, size, is_downloaded, downloaded_at, file_handle_id, synced_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
    lesson_id = excluded.lesson_id,
    course_id = excluded.course_id,
    title = excluded.title,
    version = excluded.version,
    manifest_path = excluded.manifest_path,
    launch_path = excluded.launch_path,
    size = excluded.size,
    synced_at = excluded.synced_at`

// UpsertPackage writes one package metadata row. Download state
// (is_downloaded, downloaded_at, file_handle_id) is preserved on update;
// it changes only through MarkPackageDownloaded and ResetPackageDownload.
// Returns the id.
func (s *SQLiteStore) UpsertPackage(p model.PackageMetadata) (string, error) {
	if p.ID == "" {
		p.ID = s.idgen.New()
	}
	_, err := s.db.Exec(upsertPackageSQL, p.ID, p.LessonID, p.CourseID, p.Title, p.Version,
		p.ManifestPath, p.LaunchPath, p.Size, p.IsDownloaded, nullTime(p.DownloadedAt),
		p.FileHandleID, s.clock.Now())
	if err != nil {
		return "", fmt.Errorf("upserting package: %w", err)
	}
	return p.ID, nil
}

// MarkPackageDownloaded records a verified binary download. Called only
// after the package file manager has persisted the archive.
func (s *SQLiteStore) MarkPackageDownloaded(id, fileHandleID string) error {
	_, err := s.db.Exec(
		"UPDATE packages SET is_downloaded = 1, downloaded_at = ?, file_handle_id = ? WHERE id = ?",
		s.clock.Now(), fileHandleID, id)
	if err != nil {
		return fmt.Errorf("marking package downloaded: %w", err)
	}
	return nil
}

// ResetPackageDownload clears the download state in one statement so the
// metadata never half-claims a binary.
func (s *SQLiteStore) ResetPackageDownload(id string) error {
	_, err := s.db.Exec(
		"UPDATE packages SET is_downloaded = 0, downloaded_at = NULL, file_handle_id = '' WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("resetting package download: %w", err)
	}
	return nil
}

// DeletePackage removes a package metadata row. The binary in the file
// area is not touched; that is the package file manager's job. A missing
// id is a no-op.
func (s *SQLiteStore) DeletePackage(id string) error {
	if _, err := s.db.Exec("DELETE FROM packages WHERE id = ?", id); err != nil {
		return fmt.Errorf("deleting package: %w", err)
	}
	return nil
}
