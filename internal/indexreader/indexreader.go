// Package indexreader is a staleness-aware cache over indexstore. It
// answers the question tools actually care about: is this file's on-disk
// index usable right now?
package indexreader

import (
	"errors"
	"os"
	"sync"

	"github.com/cxxls/clangd-indexcore/internal/indexfile"
	"github.com/cxxls/clangd-indexcore/internal/indexstore"
)

// Status is the staleness classification for one source file's index.
type Status int

const (
	// None means storage has no matching index file at all.
	None Status = iota
	// InProgress means indexing is believed to be underway (set by
	// callers that know the monitor's state; the reader itself never
	// produces this from storage alone).
	InProgress
	// Done means a readable, version-matching index file was found.
	// clangd owns index validity; the reader does not second-guess
	// mtimes once the version matches.
	Done
	// Stale is reserved for future use (e.g. age-based invalidation);
	// the reader currently never returns it on its own — version
	// mismatches are classified Invalid instead, per spec.
	Stale
	// Invalid means a file was found but is unusable: wrong format
	// version or unparseable.
	Invalid
)

func (s Status) String() string {
	switch s {
	case None:
		return "None"
	case InProgress:
		return "InProgress"
	case Done:
		return "Done"
	case Stale:
		return "Stale"
	case Invalid:
		return "Invalid"
	default:
		return "Unknown"
	}
}

// Result is what read_index_for_file returns.
type Result struct {
	Status Status
	Reason string // populated for Invalid
	Entry  *indexfile.IndexEntry
}

// Reader caches parsed index entries by canonical source path.
type Reader struct {
	storage *indexstore.Storage

	mu    sync.Mutex
	cache map[string]Result
}

// New wraps storage with a staleness cache.
func New(storage *indexstore.Storage) *Reader {
	return &Reader{
		storage: storage,
		cache:   make(map[string]Result),
	}
}

// ReadIndexForFile classifies the on-disk index for canonical source path.
// Results are cached; call Clear to force a re-read.
func (r *Reader) ReadIndexForFile(canonicalSource string) Result {
	r.mu.Lock()
	if cached, ok := r.cache[canonicalSource]; ok {
		r.mu.Unlock()
		return cached
	}
	r.mu.Unlock()

	result := r.readUncached(canonicalSource)

	r.mu.Lock()
	r.cache[canonicalSource] = result
	r.mu.Unlock()

	return result
}

func (r *Reader) readUncached(canonicalSource string) Result {
	entry, err := r.storage.ReadIndex(canonicalSource)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Result{Status: None}
		}
		return Result{Status: Invalid, Reason: err.Error()}
	}

	if entry.FormatVersion != r.storage.ExpectedFormatVersion() {
		return Result{
			Status: Invalid,
			Reason: "version-mismatch",
			Entry:  entry,
		}
	}

	return Result{Status: Done, Entry: entry}
}

// Clear drops the entire cache, or just one entry if canonicalSource is
// non-empty.
func (r *Reader) Clear(canonicalSource string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if canonicalSource == "" {
		r.cache = make(map[string]Result)
		return
	}
	delete(r.cache, canonicalSource)
}
