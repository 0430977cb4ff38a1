// Package monitor implements the component index monitor: the state
// machine that keeps an in-memory belief about indexing progress in sync
// with clangd's on-disk reality (spec §4.8). It is the core of the whole
// system — every other package exists to feed it events or to read its
// state.
package monitor

import (
	"errors"
	"sync"
	"time"

	"github.com/cxxls/clangd-indexcore/internal/compindex"
	"github.com/cxxls/clangd-indexcore/internal/indexreader"
	"github.com/cxxls/clangd-indexcore/internal/latch"
	"github.com/cxxls/clangd-indexcore/internal/logger"
	"github.com/cxxls/clangd-indexcore/internal/progress"
)

// State is the component's own indexing state machine, distinct from any
// individual file's state.
type State int

const (
	Init State = iota
	InProgress
	Partial
	Completed
)

func (s State) String() string {
	switch s {
	case Init:
		return "Init"
	case InProgress:
		return "InProgress"
	case Partial:
		return "Partial"
	case Completed:
		return "Completed"
	default:
		return "Unknown"
	}
}

// Resolver converts a path as reported by a progress event into its
// canonical form. internal/compiledb.Database satisfies this.
type Resolver interface {
	ResolvePath(path, dir string) string
}

// Trigger is the effector the monitor calls to cause clangd to start
// indexing a specific file. internal/session wires the real
// implementation (opening the file over LSP); the monitor has no
// knowledge of clangd beyond this interface.
type Trigger interface {
	TriggerIndex(path string)
}

// ComponentIndexState is a point-in-time, lock-free snapshot for callers
// outside the monitor (e.g. get_index_state()).
type ComponentIndexState struct {
	State      State
	Percent    float32
	Counters   compindex.Counters
	StartedAt  *time.Time
	LastUpdate time.Time
}

// Monitor guards one ComponentIndex, its ComponentIndexingState, and an
// IndexLatch behind a single mutex, per spec §9's "single-lock monitor"
// design note: correctness here depends on atomic updates across the
// per-file map and the derived counters, so the lock is never split.
type Monitor struct {
	mu sync.Mutex

	index   *compindex.Index
	state   State
	percent float32
	started *time.Time
	updated time.Time

	buildDir string
	resolver Resolver
	reader   *indexreader.Reader
	latch    *latch.Latch
	trigger  Trigger
	log      logger.Logger
}

// New constructs a Monitor for one component. index must already be
// seeded with every cdb_files entry (see compindex.New).
func New(index *compindex.Index, buildDir string, resolver Resolver, reader *indexreader.Reader, trigger Trigger, log logger.Logger) *Monitor {
	return &Monitor{
		index:    index,
		state:    Init,
		buildDir: buildDir,
		resolver: resolver,
		reader:   reader,
		latch:    latch.New(),
		trigger:  trigger,
		log:      log,
		updated:  time.Time{},
	}
}

// Handle ingests one progress event, mutating state under the lock, then
// performs any external effects (trigger calls, latch signalling) after
// releasing it, per spec §4.8's concurrency note — lock-ordering hazards
// between the monitor's own lock and the trigger/latch are avoided by
// never holding the lock across an external call.
func (m *Monitor) Handle(ev progress.Event) {
	m.mu.Lock()

	var toTrigger string
	var latchSuccess, latchFailure bool
	var failureMsg string

	switch ev.Kind {
	case progress.OverallIndexingStarted:
		m.state = InProgress
		now := time.Now()
		m.started = &now

	case progress.OverallProgress:
		m.state = InProgress
		m.percent = ev.Percent

	case progress.FileIndexingStarted:
		path := m.resolve(ev.Path)
		m.index.SetState(path, compindex.InProgress)

	case progress.FileIndexingCompleted:
		path := m.resolve(ev.Path)
		m.index.SetState(path, compindex.Indexed)

	case progress.FileAstIndexed:
		path := m.resolve(ev.Path)
		m.index.SetState(path, compindex.Indexed)
		if m.state == Init || m.state == Partial {
			toTrigger = m.index.NextPending()
		}

	case progress.FileAstFailed:
		path := m.resolve(ev.Path)
		m.index.SetFailed(path, "AST build failed")
		if m.state == Init || m.state == Partial {
			toTrigger = m.index.NextPending()
		}

	case progress.OverallCompleted:
		m.runPostCompletionValidation()
		if m.index.IsFullyIndexed() {
			m.state = Completed
			m.started = nil
		} else {
			m.state = Partial
			toTrigger = m.index.NextPending()
		}
		latchSuccess = true

	case progress.IndexingFailed:
		latchFailure = true
		failureMsg = ev.Err
	}

	m.updated = time.Now()
	m.mu.Unlock()

	if toTrigger != "" && m.trigger != nil {
		m.trigger.TriggerIndex(toTrigger)
	}
	if latchSuccess {
		m.latch.TriggerSuccess()
	}
	if latchFailure {
		var err error
		if failureMsg != "" {
			err = errors.New(failureMsg)
		}
		m.latch.TriggerFailure(err)
	}
}

// resolve must be called with mu held.
func (m *Monitor) resolve(path string) string {
	if m.resolver == nil {
		return path
	}
	return m.resolver.ResolvePath(path, m.buildDir)
}

// runPostCompletionValidation recovers files clangd indexed but never
// emitted progress for — common with warm on-disk caches where clangd
// finds an up-to-date index and never re-reports it. Must be called with
// mu held; the reader itself does its own I/O so this briefly does file
// I/O under the monitor lock, same as the original design.
func (m *Monitor) runPostCompletionValidation() {
	for _, f := range m.index.Files() {
		s, ok := m.index.State(f)
		if !ok || s != compindex.Pending {
			continue
		}

		if m.reader == nil {
			continue
		}

		res := m.reader.ReadIndexForFile(f)
		switch res.Status {
		case indexreader.Done:
			m.index.SetState(f, compindex.Indexed)
		case indexreader.Invalid, indexreader.Stale:
			m.log.Info("monitor: %s still pending after overall completion (%s): %s", f, res.Status, res.Reason)
		case indexreader.None, indexreader.InProgress:
			// Leave Pending; nothing more we can learn right now.
		}
	}
}

// Latch returns the indexing latch for this component, for
// ensure_indexed(timeout) callers.
func (m *Monitor) Latch() *latch.Latch {
	return m.latch
}

// Snapshot returns the current ComponentIndexState.
func (m *Monitor) Snapshot() ComponentIndexState {
	m.mu.Lock()
	defer m.mu.Unlock()

	return ComponentIndexState{
		State:      m.state,
		Percent:    m.percent,
		Counters:   m.index.Count(),
		StartedAt:  m.started,
		LastUpdate: m.updated,
	}
}
