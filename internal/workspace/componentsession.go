package workspace

import (
	"context"
	"fmt"
	"sync"

	"github.com/cxxls/clangd-indexcore/internal/compiledb"
	"github.com/cxxls/clangd-indexcore/internal/lspclient"
	"github.com/cxxls/clangd-indexcore/internal/monitor"
	"github.com/cxxls/clangd-indexcore/internal/session"
)

// ComponentSession is the tool-facing handle for one build directory
// (spec §6): ensure_file_ready, lsp_session, ensure_indexed,
// get_index_state. A session-level mutex serializes tool calls against
// this component, per spec §5's concurrency model; calls against
// different ComponentSessions never contend.
type ComponentSession struct {
	mu       sync.Mutex
	sess     *session.Session
	db       *compiledb.Database
	buildDir string
}

func newComponentSession(sess *session.Session, db *compiledb.Database, buildDir string) *ComponentSession {
	return &ComponentSession{sess: sess, db: db, buildDir: buildDir}
}

// EnsureFileReady opens or re-syncs path in clangd, resolving it against
// the component's compilation database mapping first.
func (c *ComponentSession) EnsureFileReady(ctx context.Context, path string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	resolved := c.db.ResolvePath(path, c.buildDir)
	return c.sess.Files().EnsureFileReady(resolved, c.sess.Client())
}

// LSPSession returns the locked LSP client handle; the caller holds
// ComponentSession's lock for the duration of its use by convention
// (spec §6's "locked handle").
func (c *ComponentSession) LSPSession() *lspclient.Client {
	return c.sess.Client()
}

// Lock/Unlock expose the session-level mutex so a caller can bracket a
// multi-step tool operation (e.g. several LSP requests) as one atomic
// unit, matching spec §5's "session lock held across the full LSP
// request/response" guarantee. EnsureFileReady acquires this same
// mutex itself, so it cannot be called while the caller holds it.
func (c *ComponentSession) Lock()   { c.mu.Lock() }
func (c *ComponentSession) Unlock() { c.mu.Unlock() }

// EnsureIndexed blocks until clangd reports overall indexing complete
// (the component then being Completed or Partial, pending files
// included), ctx is done, or the underlying latch reports failure.
func (c *ComponentSession) EnsureIndexed(ctx context.Context) error {
	return c.sess.EnsureIndexed(ctx)
}

// GetIndexState returns a point-in-time snapshot of this component's
// indexing progress.
func (c *ComponentSession) GetIndexState() monitor.ComponentIndexState {
	return c.sess.Monitor().Snapshot()
}

// Stop performs graceful shutdown of the underlying clangd session.
func (c *ComponentSession) Stop() error {
	return c.sess.Stop()
}

func (c *ComponentSession) String() string {
	return fmt.Sprintf("ComponentSession(%d files)", len(c.db.CanonicalFiles()))
}
