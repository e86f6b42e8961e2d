// Package packages manages large binary course-package archives in a
// persistent local directory tree, decoupled from the entity store, which
// holds only package metadata. On disk each package occupies its own
// subdirectory:
//
//	<root>/
//	  <packageID>/
//	    <packageID>.zip
package packages

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sync"

	"lmsync/internal/lms"
)

// ErrNotInitialized is returned when the manager is used before a
// successful Initialize.
var ErrNotInitialized = errors.New("package manager not initialized")

// ErrPackageNotFound is returned by GetPackageFile when no binary exists
// for the id. It is distinct from I/O failures so callers can tell a
// genuine absence from a permissions problem.
var ErrPackageNotFound = errors.New("package not found")

// MetadataStore is the slice of the query layer the manager needs to keep
// package metadata consistent with the file area.
type MetadataStore interface {
	// MarkPackageDownloaded records a verified download, storing the file
	// handle reference.
	MarkPackageDownloaded(id, fileHandleID string) error

	// ResetPackageDownload clears the download state for a package.
	ResetPackageDownload(id string) error
}

// ProgressFunc receives advisory download progress as a percentage in
// [0,100]. It is only called when the response declares a content length.
type ProgressFunc func(pct float64)

// DownloadResult is the structured outcome of DownloadPackage. Download
// never fails with a Go error; everything that goes wrong lands in Error.
type DownloadResult struct {
	Success   bool
	PackageID string
	Size      int64
	Error     string
}

// Manager owns the package file area.
type Manager struct {
	root   string
	store  MetadataStore
	client *http.Client
	logger lms.Logger

	mu          sync.Mutex
	initialized bool
}

// NewManager creates a package manager rooted at the given directory.
// client may be nil, in which case http.DefaultClient is used.
func NewManager(root string, store MetadataStore, client *http.Client, logger lms.Logger) *Manager {
	if client == nil {
		client = http.DefaultClient
	}
	return &Manager{
		root:   root,
		store:  store,
		client: client,
		logger: logger,
	}
}

// Initialize creates the package root directory and verifies it is
// writable. Calling it again after success is a no-op.
func (m *Manager) Initialize() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.initialized {
		return nil
	}

	if err := os.MkdirAll(m.root, 0755); err != nil {
		return fmt.Errorf("creating package root: %w", err)
	}

	// A root we cannot write to is as good as no root at all.
	probe, err := os.CreateTemp(m.root, ".probe-*")
	if err != nil {
		return fmt.Errorf("package root not writable: %w", err)
	}
	probe.Close()
	os.Remove(probe.Name())

	m.initialized = true
	return nil
}

// IsInitialized reports whether Initialize has succeeded.
func (m *Manager) IsInitialized() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.initialized
}

// PackagePath returns the on-disk location of a package's archive. The
// file may or may not exist.
func (m *Manager) PackagePath(id string) string {
	return filepath.Join(m.root, id, id+".zip")
}

// DownloadPackage fetches a package binary with a streamed GET, persists
// it atomically under the package root, and marks the metadata row
// downloaded. All failures are mapped into the result rather than
// returned, so a UI caller can always render the outcome.
func (m *Manager) DownloadPackage(ctx context.Context, id, url string, onProgress ProgressFunc) DownloadResult {
	result := DownloadResult{PackageID: id}

	size, err := m.download(ctx, id, url, onProgress)
	if err != nil {
		m.logger.Error("package download failed", "packageId", id, "error", err)
		result.Error = err.Error()
		return result
	}

	// The binary is on disk; only now may the metadata claim it.
	handle := filepath.Join(id, id+".zip")
	if err := m.store.MarkPackageDownloaded(id, handle); err != nil {
		m.logger.Error("recording package download failed", "packageId", id, "error", err)
		result.Error = err.Error()
		return result
	}

	m.logger.Info("package downloaded", "packageId", id, "size", size)
	result.Success = true
	result.Size = size
	return result
}

// download streams the binary to a temp file and renames it into place.
func (m *Manager) download(ctx context.Context, id, url string, onProgress ProgressFunc) (int64, error) {
	m.mu.Lock()
	initialized := m.initialized
	m.mu.Unlock()
	if !initialized {
		return 0, ErrNotInitialized
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, fmt.Errorf("building request: %w", err)
	}

	resp, err := m.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("fetching package: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return 0, fmt.Errorf("fetching package: unexpected status %d", resp.StatusCode)
	}

	pkgDir := filepath.Join(m.root, id)
	if err := os.MkdirAll(pkgDir, 0755); err != nil {
		return 0, fmt.Errorf("creating package directory: %w", err)
	}

	// Write to a temp file in the same directory so the final rename is
	// atomic; a crash mid-download leaves no half-written archive behind
	// the real name.
	tmpFile, err := os.CreateTemp(pkgDir, ".tmp-*")
	if err != nil {
		return 0, fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	success := false
	defer func() {
		if !success {
			os.Remove(tmpPath)
		}
	}()

	var src io.Reader = resp.Body
	if onProgress != nil && resp.ContentLength > 0 {
		src = &progressReader{r: resp.Body, total: resp.ContentLength, onProgress: onProgress}
	}

	written, err := io.Copy(tmpFile, src)
	if err != nil {
		tmpFile.Close()
		return 0, fmt.Errorf("writing package data: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return 0, fmt.Errorf("closing temp file: %w", err)
	}

	if resp.ContentLength > 0 && written != resp.ContentLength {
		return 0, fmt.Errorf("size mismatch: expected %d bytes, got %d", resp.ContentLength, written)
	}

	if err := os.Rename(tmpPath, m.PackagePath(id)); err != nil {
		return 0, fmt.Errorf("renaming temp file: %w", err)
	}

	success = true
	if onProgress != nil {
		onProgress(100)
	}
	return written, nil
}

// GetPackageFile opens a package archive for launch. Returns
// ErrPackageNotFound when no binary exists for the id; other errors are
// real I/O failures.
func (m *Manager) GetPackageFile(id string) (io.ReadCloser, error) {
	if !m.IsInitialized() {
		return nil, ErrNotInitialized
	}

	f, err := os.Open(m.PackagePath(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrPackageNotFound, id)
		}
		return nil, fmt.Errorf("opening package %s: %w", id, err)
	}
	return f, nil
}

// DeletePackage removes a package binary and clears its metadata download
// state. The metadata is reset first: if the process dies between the two
// steps the row already says "not downloaded", which at worst strands a
// file on disk, never a claim with no file behind it.
func (m *Manager) DeletePackage(id string) error {
	if !m.IsInitialized() {
		return ErrNotInitialized
	}

	if err := m.store.ResetPackageDownload(id); err != nil {
		return fmt.Errorf("resetting package metadata: %w", err)
	}

	if err := os.RemoveAll(filepath.Join(m.root, id)); err != nil {
		return fmt.Errorf("removing package files: %w", err)
	}

	m.logger.Info("package deleted", "packageId", id)
	return nil
}

// PackageInfo describes one stored archive. Diagnostic only.
type PackageInfo struct {
	ID   string
	Size int64
}

// ListDownloaded enumerates the archives present in the file area.
// Entries that cannot be read are logged and skipped rather than aborting
// the scan.
func (m *Manager) ListDownloaded() ([]PackageInfo, error) {
	if !m.IsInitialized() {
		return nil, ErrNotInitialized
	}

	entries, err := os.ReadDir(m.root)
	if err != nil {
		return nil, fmt.Errorf("reading package root: %w", err)
	}

	var packages []PackageInfo
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		id := entry.Name()
		info, err := os.Stat(m.PackagePath(id))
		if err != nil {
			m.logger.Warn("skipping unreadable package entry", "packageId", id, "error", err)
			continue
		}
		packages = append(packages, PackageInfo{ID: id, Size: info.Size()})
	}
	return packages, nil
}

// TotalSize sums the sizes of all stored archives.
func (m *Manager) TotalSize() (int64, error) {
	packages, err := m.ListDownloaded()
	if err != nil {
		return 0, err
	}
	var total int64
	for _, p := range packages {
		total += p.Size
	}
	return total, nil
}

// ClearAll deletes every stored package, best-effort: a failure on one
// package is logged and the sweep continues. Returns the number removed.
func (m *Manager) ClearAll() (int, error) {
	packages, err := m.ListDownloaded()
	if err != nil {
		return 0, err
	}

	removed := 0
	for _, p := range packages {
		if err := m.DeletePackage(p.ID); err != nil {
			m.logger.Warn("failed to delete package", "packageId", p.ID, "error", err)
			continue
		}
		removed++
	}
	return removed, nil
}

// progressReader reports fractional read progress against a known total.
type progressReader struct {
	r          io.Reader
	total      int64
	read       int64
	onProgress ProgressFunc
}

func (p *progressReader) Read(buf []byte) (int, error) {
	n, err := p.r.Read(buf)
	if n > 0 {
		p.read += int64(n)
		pct := float64(p.read) / float64(p.total) * 100
		if pct > 100 {
			pct = 100
		}
		p.onProgress(pct)
	}
	return n, err
}
