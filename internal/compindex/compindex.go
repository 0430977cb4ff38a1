// Package compindex holds one component's per-file indexing state: which
// canonical source files the compilation database names, the .idx path
// each is expected to land at, and the current state of each.
package compindex

// FileState is the per-file indexing status. Any state may transition to
// any other — clangd may re-report or retry a file at will.
type FileState int

const (
	Pending FileState = iota
	InProgress
	Indexed
	Failed
)

func (s FileState) String() string {
	switch s {
	case Pending:
		return "Pending"
	case InProgress:
		return "InProgress"
	case Indexed:
		return "Indexed"
	case Failed:
		return "Failed"
	default:
		return "Unknown"
	}
}

// Index is the ComponentIndex of spec §3: cdb_files, file_to_index, and
// file_states share an identical key set by construction (invariant I1).
// It carries no locking of its own — internal/monitor owns the single
// lock that guards all mutation.
type Index struct {
	cdbFiles    map[string]bool
	fileToIndex map[string]string
	fileStates  map[string]FileState
	failMsgs    map[string]string
}

// New builds an Index from the canonical source file list and their
// predicted .idx file names (already computed via indexhash+basename).
func New(canonicalFiles []string, fileToIndex map[string]string) *Index {
	idx := &Index{
		cdbFiles:    make(map[string]bool, len(canonicalFiles)),
		fileToIndex: make(map[string]string, len(canonicalFiles)),
		fileStates:  make(map[string]FileState, len(canonicalFiles)),
		failMsgs:    make(map[string]string),
	}
	for _, f := range canonicalFiles {
		idx.cdbFiles[f] = true
		idx.fileToIndex[f] = fileToIndex[f]
		idx.fileStates[f] = Pending
	}
	return idx
}

// Contains reports whether path is a known CDB file.
func (idx *Index) Contains(path string) bool {
	return idx.cdbFiles[path]
}

// State returns the current state of path, and whether path is tracked
// at all.
func (idx *Index) State(path string) (FileState, bool) {
	s, ok := idx.fileStates[path]
	return s, ok
}

// SetState transitions path to state. A path not in cdb_files is a no-op
// (standard-library virtual files never enter file_states — decision in
// the Open Questions).
func (idx *Index) SetState(path string, state FileState) {
	if !idx.cdbFiles[path] {
		return
	}
	idx.fileStates[path] = state
	if state != Failed {
		delete(idx.failMsgs, path)
	}
}

// SetFailed transitions path to Failed with an associated message.
func (idx *Index) SetFailed(path, msg string) {
	if !idx.cdbFiles[path] {
		return
	}
	idx.fileStates[path] = Failed
	idx.failMsgs[path] = msg
}

// FailureMessage returns the message recorded by SetFailed, if any.
func (idx *Index) FailureMessage(path string) string {
	return idx.failMsgs[path]
}

// IndexPath returns the predicted .idx file name for path.
func (idx *Index) IndexPath(path string) string {
	return idx.fileToIndex[path]
}

// Files returns every tracked canonical source path, in no particular
// order.
func (idx *Index) Files() []string {
	out := make([]string, 0, len(idx.cdbFiles))
	for f := range idx.cdbFiles {
		out = append(out, f)
	}
	return out
}

// Counters are the derived, recomputed-on-demand state totals of spec §3.
type Counters struct {
	Pending    int
	InProgress int
	Indexed    int
	Failed     int
	Total      int
	Coverage   float64
}

// Count recomputes the derived counters from current file_states.
func (idx *Index) Count() Counters {
	var c Counters
	c.Total = len(idx.fileStates)
	for _, s := range idx.fileStates {
		switch s {
		case Pending:
			c.Pending++
		case InProgress:
			c.InProgress++
		case Indexed:
			c.Indexed++
		case Failed:
			c.Failed++
		}
	}
	if c.Total == 0 {
		c.Coverage = 1.0
	} else {
		c.Coverage = float64(c.Indexed) / float64(c.Total)
	}
	return c
}

// IsFullyIndexed reports invariant I3: pending = 0 and in_progress = 0.
func (idx *Index) IsFullyIndexed() bool {
	c := idx.Count()
	return c.Pending == 0 && c.InProgress == 0
}

// NextPending returns one canonical path currently Pending, or "" if none
// remain. Iteration order over a Go map is unspecified, so callers must
// not depend on which Pending file is returned when several qualify.
func (idx *Index) NextPending() string {
	for f, s := range idx.fileStates {
		if s == Pending {
			return f
		}
	}
	return ""
}
