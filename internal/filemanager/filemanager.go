// Package filemanager tracks which source files have been opened or
// changed in clangd, and issues the didOpen/didChange notifications
// needed to keep clangd's view of a file no older than the filesystem's
// view at the time of the last call (spec §4.5).
package filemanager

import (
	"crypto/sha256"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/cxxls/clangd-indexcore/internal/compiledb"
)

// LSPOpener is the subset of lspclient.Client that ensure_file_ready
// needs; kept narrow so tests can substitute a fake.
type LSPOpener interface {
	DidOpen(uri, languageID, text string, version int) error
	DidChange(uri string, version int, text string) error
}

type fileRecord struct {
	version     int
	lastModTime time.Time
	contentHash [32]byte
}

// Manager maintains open_files: canonical_path -> {version, mtime, hash}.
type Manager struct {
	mu    sync.Mutex
	files map[string]*fileRecord
}

// New returns an empty Manager.
func New() *Manager {
	return &Manager{files: make(map[string]*fileRecord)}
}

// EnsureFileReady implements spec §4.5's ensure_file_ready: canonicalize,
// then open or re-sync the file in clangd depending on whether it's
// already tracked and whether the on-disk mtime has advanced.
//
// Invariant: called twice with no intervening filesystem change issues
// exactly one didOpen and zero didChange notifications.
func (m *Manager) EnsureFileReady(path string, client LSPOpener) error {
	canonical, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("filemanager: canonicalizing %s: %w", path, err)
	}
	if resolved, err := filepath.EvalSymlinks(canonical); err == nil {
		canonical = resolved
	}

	info, err := os.Stat(canonical)
	if err != nil {
		return fmt.Errorf("filemanager: stat %s: %w", canonical, err)
	}

	m.mu.Lock()
	rec, known := m.files[canonical]
	m.mu.Unlock()

	if !known {
		return m.openFile(canonical, info.ModTime(), client)
	}

	if info.ModTime().After(rec.lastModTime) {
		return m.maybeReopen(canonical, rec, info.ModTime(), client)
	}

	return nil
}

func (m *Manager) openFile(canonical string, mtime time.Time, client LSPOpener) error {
	content, err := os.ReadFile(canonical)
	if err != nil {
		return fmt.Errorf("filemanager: reading %s: %w", canonical, err)
	}

	uri := compiledb.FileURI(canonical)
	if err := client.DidOpen(uri, languageID(canonical), string(content), 1); err != nil {
		return fmt.Errorf("filemanager: didOpen %s: %w", canonical, err)
	}

	m.mu.Lock()
	m.files[canonical] = &fileRecord{
		version:     1,
		lastModTime: mtime,
		contentHash: sha256.Sum256(content),
	}
	m.mu.Unlock()
	return nil
}

func (m *Manager) maybeReopen(canonical string, rec *fileRecord, mtime time.Time, client LSPOpener) error {
	content, err := os.ReadFile(canonical)
	if err != nil {
		return fmt.Errorf("filemanager: reading %s: %w", canonical, err)
	}
	hash := sha256.Sum256(content)

	m.mu.Lock()
	if hash == rec.contentHash {
		rec.lastModTime = mtime
		m.mu.Unlock()
		return nil
	}
	m.mu.Unlock()

	uri := compiledb.FileURI(canonical)
	newVersion := rec.version + 1
	if err := client.DidChange(uri, newVersion, string(content)); err != nil {
		return fmt.Errorf("filemanager: didChange %s: %w", canonical, err)
	}

	m.mu.Lock()
	rec.version = newVersion
	rec.lastModTime = mtime
	rec.contentHash = hash
	m.mu.Unlock()
	return nil
}

// IsOpen reports whether canonical is currently tracked as open.
func (m *Manager) IsOpen(canonical string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.files[canonical]
	return ok
}

// Version returns the current didChange version for canonical, or 0 if
// not open.
func (m *Manager) Version(canonical string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.files[canonical]
	if !ok {
		return 0
	}
	return rec.version
}

func languageID(path string) string {
	switch filepath.Ext(path) {
	case ".c":
		return "c"
	default:
		return "cpp"
	}
}
