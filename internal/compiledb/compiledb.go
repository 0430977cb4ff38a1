// Package compiledb parses compile_commands.json and exposes the
// canonicalized views the rest of the core depends on: the ordered list of
// source files, and a bidirectional original<->canonical path mapping.
package compiledb

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/cxxls/clangd-indexcore/internal/logger"
)

// Entry is one raw compile_commands.json record.
type Entry struct {
	Directory string   `json:"directory"`
	File      string   `json:"file"`
	Arguments []string `json:"arguments,omitempty"`
	Command   string   `json:"command,omitempty"`
	Output    string   `json:"output,omitempty"`
}

type rawEntry struct {
	Directory string          `json:"directory"`
	File      string          `json:"file"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
	Command   string          `json:"command,omitempty"`
	Output    string          `json:"output,omitempty"`
}

// Database is a parsed, canonicalized compile_commands.json. Every view is
// computed once, at Load, and never mutated afterward.
type Database struct {
	raw              []Entry
	canonicalFiles   []string          // de-duplicated, first-seen order
	originalToCanon  map[string]string // as given in the JSON -> canonical
	canonToOriginal  map[string]string // canonical -> as given in the JSON
}

// Load reads, parses, and canonicalizes a compile_commands.json file.
// An individual entry that fails to canonicalize is dropped with a logged
// warning; Load fails only if the file cannot be read, the JSON itself is
// malformed, or every entry fails.
func Load(path string, log logger.Logger) (*Database, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("compiledb: read %s: %w", path, err)
	}
	return Parse(data, log)
}

// Parse canonicalizes a compile_commands.json document already read into
// memory.
func Parse(data []byte, log logger.Logger) (*Database, error) {
	var rawEntries []rawEntry
	if err := json.Unmarshal(data, &rawEntries); err != nil {
		return nil, fmt.Errorf("compiledb: parse compile_commands.json: %w", err)
	}

	db := &Database{
		originalToCanon: make(map[string]string, len(rawEntries)),
		canonToOriginal: make(map[string]string, len(rawEntries)),
	}

	seen := make(map[string]bool, len(rawEntries))
	dropped := 0

	for _, re := range rawEntries {
		canon, err := canonicalize(re.Directory, re.File)
		if err != nil {
			log.Info("compiledb: dropping entry for %q: %v", re.File, err)
			dropped++
			continue
		}

		entry := Entry{
			Directory: re.Directory,
			File:      re.File,
			Command:   re.Command,
			Output:    re.Output,
		}
		if len(re.Arguments) > 0 {
			var args []string
			if err := json.Unmarshal(re.Arguments, &args); err == nil {
				entry.Arguments = args
			}
		}
		db.raw = append(db.raw, entry)

		db.originalToCanon[re.File] = canon
		db.canonToOriginal[canon] = re.File

		if !seen[canon] {
			seen[canon] = true
			db.canonicalFiles = append(db.canonicalFiles, canon)
		}
	}

	if len(rawEntries) > 0 && dropped == len(rawEntries) {
		return nil, fmt.Errorf("compiledb: all %d entries failed to canonicalize", dropped)
	}

	return db, nil
}

// canonicalize joins a compile_commands.json directory/file pair and
// resolves it to an absolute, cleaned path. Symlinks are resolved when
// possible; if the file doesn't yet exist on disk, the cleaned join is
// still returned (a stale CDB entry isn't fatal here, only a concern for
// downstream readers).
func canonicalize(directory, file string) (string, error) {
	if file == "" {
		return "", fmt.Errorf("empty file field")
	}
	joined := file
	if !filepath.IsAbs(joined) {
		joined = filepath.Join(directory, file)
	}
	joined = filepath.Clean(joined)

	if resolved, err := filepath.EvalSymlinks(joined); err == nil {
		return resolved, nil
	}
	// File may not exist yet (vanished-between-scan-and-index, or a
	// generated source) — fall back to the cleaned absolute path.
	return joined, nil
}

// CanonicalFiles returns the de-duplicated list of canonical source paths,
// in first-seen order.
func (db *Database) CanonicalFiles() []string {
	out := make([]string, len(db.canonicalFiles))
	copy(out, db.canonicalFiles)
	return out
}

// RawEntries returns the unmodified entry list, for downstream tools that
// need compiler arguments.
func (db *Database) RawEntries() []Entry {
	out := make([]Entry, len(db.raw))
	copy(out, db.raw)
	return out
}

// OriginalToCanonical resolves a path exactly as it appeared in the JSON to
// its canonical form.
func (db *Database) OriginalToCanonical(original string) (string, bool) {
	c, ok := db.originalToCanon[original]
	return c, ok
}

// CanonicalToOriginal resolves a canonical path back to the form it was
// originally given in the JSON.
func (db *Database) CanonicalToOriginal(canonical string) (string, bool) {
	o, ok := db.canonToOriginal[canonical]
	return o, ok
}

// ResolvePath looks up path in the original->canonical mapping directly;
// failing that, it tries the path resolved against dir; failing that, it
// returns path unchanged. This mirrors the monitor's ingress path
// resolution (no filesystem call, direct-then-resolved-then-passthrough).
func (db *Database) ResolvePath(path, dir string) string {
	if c, ok := db.originalToCanon[path]; ok {
		return c
	}
	if !filepath.IsAbs(path) {
		joined := filepath.Clean(filepath.Join(dir, path))
		if c, ok := db.originalToCanon[joined]; ok {
			return c
		}
		if _, ok := db.canonToOriginal[joined]; ok {
			return joined
		}
	}
	return path
}

// FileURI converts a canonical filesystem path to a file:// URI, trimming
// any surrounding whitespace defensively (compile_commands.json entries
// are occasionally hand-edited).
func FileURI(path string) string {
	path = strings.TrimSpace(path)
	if !filepath.IsAbs(path) {
		return "file://" + path
	}
	return "file://" + path
}
