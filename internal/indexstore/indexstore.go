// Package indexstore locates and reads clangd's on-disk `.idx` files. It
// does not parse them (see internal/indexfile) and does not classify
// staleness (see internal/indexreader) — it only knows how to find the
// right bytes on disk.
package indexstore

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/cxxls/clangd-indexcore/internal/indexfile"
)

// Storage reads `.idx` files out of one build directory's index cache,
// typically `<build>/.cache/clangd/index/`.
type Storage struct {
	dir             string
	expectedVersion int
	maxFiles        int
}

// New returns a Storage rooted at dir, expecting index files written at
// expectedFormatVersion (see version.ClangdVersion.IndexFormatVersion).
// maxFiles caps how many `*.idx` entries ListIndexFiles will return for
// one directory; 0 means unbounded.
func New(dir string, expectedFormatVersion, maxFiles int) *Storage {
	return &Storage{dir: dir, expectedVersion: expectedFormatVersion, maxFiles: maxFiles}
}

// ReadIndex scans the directory for a file whose name begins with
// "{basename}." and ends with ".idx", where basename is the base name of
// sourcePath (including extension, excluding directory). Any hash value
// in between is accepted — clangd may re-hash using a different scheme
// over time, and matching by prefix avoids depending on our own hash
// function staying in lockstep with clangd's.
//
// Returns os.ErrNotExist (wrapped) if no matching file exists.
func (s *Storage) ReadIndex(sourcePath string) (*indexfile.IndexEntry, error) {
	base := filepath.Base(sourcePath)
	prefix := base + "."

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("indexstore: %s: %w", s.dir, os.ErrNotExist)
		}
		return nil, fmt.Errorf("indexstore: reading %s: %w", s.dir, err)
	}

	var match string
	for _, e := range entries {
		name := e.Name()
		if strings.HasPrefix(name, prefix) && strings.HasSuffix(name, ".idx") {
			match = name
			break
		}
	}
	if match == "" {
		return nil, fmt.Errorf("indexstore: no index file for %s in %s: %w", base, s.dir, os.ErrNotExist)
	}

	data, err := os.ReadFile(filepath.Join(s.dir, match))
	if err != nil {
		return nil, fmt.Errorf("indexstore: reading %s: %w", match, err)
	}

	entry, err := indexfile.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("indexstore: parsing %s: %w", match, err)
	}
	return entry, nil
}

// ListIndexFiles returns the base names of every `*.idx` file in the
// storage directory, sorted for determinism, capped at maxFiles if
// configured.
func (s *Storage) ListIndexFiles() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("indexstore: reading %s: %w", s.dir, err)
	}

	var names []string
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".idx") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	if s.maxFiles > 0 && len(names) > s.maxFiles {
		names = names[:s.maxFiles]
	}
	return names, nil
}

// ExpectedFormatVersion returns the format version this storage expects
// freshly-written index files to carry.
func (s *Storage) ExpectedFormatVersion() int {
	return s.expectedVersion
}
