// Package app is the application layer between the CLI and the core
// packages. It constructs every dependency from config and manages the
// store lifecycle on Close.
package app

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"lmsync/internal/api"
	"lmsync/internal/config"
	"lmsync/internal/database"
	"lmsync/internal/lms"
	"lmsync/internal/packages"
)

// App wires the local entity store, sync engine and package manager
// together for the CLI.
type App struct {
	cfg     *config.Config
	store   *database.SQLiteStore
	engine  *lms.SyncEngine
	pkgmgr  *packages.Manager
	logger  lms.Logger
	logFile *os.File
}

// NewApp creates a fully wired App from the given config. operation
// identifies the CLI command being run (e.g. "FullSync", "DownloadCourse")
// and tags every log line. The caller must call Close when done.
func NewApp(cfg *config.Config, operation string) (*App, error) {
	store, err := database.NewStoreFromConfig(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("creating store: %w", err)
	}

	// Opening is idempotent: a store already at the latest schema version
	// passes through untouched.
	if err := store.MigrateUp(); err != nil {
		store.Close()
		return nil, fmt.Errorf("migrating database: %w", err)
	}

	opID := time.Now().UTC().Format("20060102T150405Z")
	slogger, logFile, err := newLogger(cfg.LogDir, opID)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("creating logger: %w", err)
	}
	logger := &slogAdapter{l: slogger.With("op", operation)}

	client := api.NewClient(cfg.API.BaseURL, time.Duration(cfg.API.TimeoutSeconds)*time.Second)
	endpoints := lms.Endpoints{
		Courses:     cfg.API.Endpoints.Courses,
		Lessons:     cfg.API.Endpoints.Lessons,
		Enrollments: cfg.API.Endpoints.Enrollments,
		Progress:    cfg.API.Endpoints.Progress,
	}
	engine := lms.NewSyncEngine(store, client, endpoints, cfg.UserID, logger)
	pkgmgr := packages.NewManager(cfg.Packages.Dir, store, nil, logger)

	return &App{
		cfg:     cfg,
		store:   store,
		engine:  engine,
		pkgmgr:  pkgmgr,
		logger:  logger,
		logFile: logFile,
	}, nil
}

// FullSync runs a complete push/pull/queue-drain cycle.
func (a *App) FullSync(ctx context.Context) (*lms.SyncResult, error) {
	return a.engine.FullSync(ctx)
}

// DownloadCourse makes one course and its lessons available offline.
func (a *App) DownloadCourse(ctx context.Context, courseID string) error {
	return a.engine.DownloadCourse(ctx, courseID)
}

// QueueMutation appends a durable deferred mutation. payload must be valid
// JSON or empty.
func (a *App) QueueMutation(mutType, entity, entityID string, payload json.RawMessage) (int64, error) {
	return a.engine.QueueMutation(mutType, entity, entityID, payload)
}

// QueueStatus summarizes the durable mutation queue.
func (a *App) QueueStatus() (*lms.QueueStatus, error) {
	return a.engine.SyncQueueStatus()
}

// ClearQueue purges completed queue entries, returning the number removed.
func (a *App) ClearQueue() (int64, error) {
	return a.engine.ClearSyncQueue()
}

// RequeueEntry returns a failed queue entry to pending.
func (a *App) RequeueEntry(id int64) error {
	return a.store.RequeueEntry(id)
}

// ensurePackages initializes the package file area on first use.
func (a *App) ensurePackages() error {
	if a.pkgmgr.IsInitialized() {
		return nil
	}
	return a.pkgmgr.Initialize()
}

// DownloadPackage fetches a package binary into the file area.
func (a *App) DownloadPackage(ctx context.Context, id, url string, onProgress packages.ProgressFunc) (packages.DownloadResult, error) {
	if err := a.ensurePackages(); err != nil {
		return packages.DownloadResult{PackageID: id}, err
	}
	return a.pkgmgr.DownloadPackage(ctx, id, url, onProgress), nil
}

// DeletePackage removes a package binary and resets its metadata.
func (a *App) DeletePackage(id string) error {
	if err := a.ensurePackages(); err != nil {
		return err
	}
	return a.pkgmgr.DeletePackage(id)
}

// ListPackages enumerates stored package binaries.
func (a *App) ListPackages() ([]packages.PackageInfo, error) {
	if err := a.ensurePackages(); err != nil {
		return nil, err
	}
	return a.pkgmgr.ListDownloaded()
}

// PackagesSize sums the sizes of stored package binaries.
func (a *App) PackagesSize() (int64, error) {
	if err := a.ensurePackages(); err != nil {
		return 0, err
	}
	return a.pkgmgr.TotalSize()
}

// ClearPackages deletes every stored package, best-effort.
func (a *App) ClearPackages() (int, error) {
	if err := a.ensurePackages(); err != nil {
		return 0, err
	}
	return a.pkgmgr.ClearAll()
}

// DBSize returns per-table row counts and a total.
func (a *App) DBSize() (*database.TableCounts, error) {
	return a.store.GetSize()
}

// ResetDB wipes every table. Used for logout/reset.
func (a *App) ResetDB() error {
	return a.store.ClearAll()
}

// Close releases the store and the log file.
func (a *App) Close() error {
	var firstErr error
	if err := a.store.Close(); err != nil {
		firstErr = fmt.Errorf("closing store: %w", err)
	}
	if a.logFile != nil {
		a.logFile.Close()
	}
	return firstErr
}
