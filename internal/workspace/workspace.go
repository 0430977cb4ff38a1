// Package workspace owns every ComponentSession in a project: the
// registry keyed by build directory, dynamic discovery of build
// directories a tool names but the workspace hasn't seen yet, and
// shutdown of every component on drop (spec §4.12). Components are shut
// down concurrently; no order among them is defined.
package workspace

import (
	"fmt"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/cxxls/clangd-indexcore/internal/coreerr"
	"github.com/cxxls/clangd-indexcore/internal/compiledb"
	"github.com/cxxls/clangd-indexcore/internal/config"
	"github.com/cxxls/clangd-indexcore/internal/logger"
	"github.com/cxxls/clangd-indexcore/internal/session"
	"github.com/cxxls/clangd-indexcore/internal/version"
)

// Session is the WorkspaceSession of spec §4.12: a registry of
// components keyed by canonicalized build directory, a scanner for
// dynamic discovery, and the detected clangd path/version shared by
// every component it constructs.
type Session struct {
	mu         sync.Mutex
	components map[string]*ComponentSession
	known      map[string]*ProjectComponent

	scanner    ProjectScanner
	cfg        *config.Config
	clangdVers *version.ClangdVersion
	log        logger.Logger

	inflight singleflight.Group

	watcher      *fsnotify.Watcher
	watchedDirs  map[string]bool
	debounceMu   sync.Mutex
	debounceTmr  *time.Timer
	pendingFiles map[string]bool
	stopWatch    chan struct{}
}

// Option customizes New.
type Option func(*Session)

// WithKnownComponents seeds the workspace with components already known
// at startup, bypassing dynamic discovery for them.
func WithKnownComponents(components ...*ProjectComponent) Option {
	return func(s *Session) {
		for _, c := range components {
			s.known[c.BuildDir] = c
		}
	}
}

// New constructs an empty workspace session. clangdVers may be nil if
// version detection hasn't run yet; components constructed later will
// then use index format version 18.
func New(scanner ProjectScanner, cfg *config.Config, clangdVers *version.ClangdVersion, log logger.Logger, opts ...Option) *Session {
	s := &Session{
		components:   make(map[string]*ComponentSession),
		known:        make(map[string]*ProjectComponent),
		scanner:      scanner,
		cfg:          cfg,
		clangdVers:   clangdVers,
		log:          log,
		watchedDirs:  make(map[string]bool),
		pendingFiles: make(map[string]bool),
		stopWatch:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// GetComponentSession implements spec §4.12's five-step lookup: canonical
// map hit, else scanner discovery, else a DiscoveryMissError listing what
// the workspace does know about. Concurrent callers racing on the same
// unseen buildDir are deduplicated via singleflight so exactly one
// ComponentSession is constructed.
func (s *Session) GetComponentSession(buildDir string) (*ComponentSession, error) {
	canonical, err := filepath.Abs(buildDir)
	if err != nil {
		return nil, fmt.Errorf("workspace: canonicalizing %s: %w", buildDir, err)
	}
	if resolved, err := filepath.EvalSymlinks(canonical); err == nil {
		canonical = resolved
	}

	s.mu.Lock()
	if cs, ok := s.components[canonical]; ok {
		s.mu.Unlock()
		return cs, nil
	}
	s.mu.Unlock()

	v, err, _ := s.inflight.Do(canonical, func() (interface{}, error) {
		return s.materialize(canonical)
	})
	if err != nil {
		return nil, err
	}
	return v.(*ComponentSession), nil
}

func (s *Session) materialize(canonical string) (*ComponentSession, error) {
	// Another goroutine may have won the race and inserted while we were
	// waiting to be scheduled for singleflight.Do's call.
	s.mu.Lock()
	if cs, ok := s.components[canonical]; ok {
		s.mu.Unlock()
		return cs, nil
	}
	comp, known := s.known[canonical]
	s.mu.Unlock()

	if !known {
		discovered, err := s.scanner.DiscoverComponent(canonical)
		if err != nil || discovered == nil {
			return nil, s.discoveryMissError(canonical)
		}
		s.mu.Lock()
		s.known[discovered.BuildDir] = discovered
		s.mu.Unlock()
		comp = discovered
	}

	compLog := s.log.WithComponent(comp.BuildDir)

	db, err := compiledb.Load(comp.CompileDBPath, compLog)
	if err != nil {
		return nil, fmt.Errorf("workspace: loading compilation database for %s: %w", comp.BuildDir, err)
	}

	sess, err := session.New(session.Config{
		BuildDir:      comp.BuildDir,
		SourceRoot:    comp.SourceRoot,
		ClangdPath:    s.cfg.ClangdPath,
		ClangdArgs:    s.cfg.ClangdArgs,
		InitTimeout:   s.cfg.InitTimeout,
		MaxIndexFiles: s.cfg.MaxIndexFileCap,
		ClangdVersion: s.clangdVers,
	}, db, compLog)
	if err != nil {
		return nil, err
	}

	cs := newComponentSession(sess, db, comp.BuildDir)

	s.mu.Lock()
	s.components[comp.BuildDir] = cs
	s.mu.Unlock()

	return cs, nil
}

func (s *Session) discoveryMissError(requested string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	known := make([]string, 0, len(s.components)+len(s.known))
	for d := range s.components {
		known = append(known, d)
	}
	for d := range s.known {
		if _, ok := s.components[d]; !ok {
			known = append(known, d)
		}
	}
	sort.Strings(known)
	return &coreerr.DiscoveryMissError{Requested: requested, Known: known}
}

// GetWorkspace returns every known build directory, known and
// materialized, sorted for determinism (the "locked handle to the
// workspace" spec §6 names).
func (s *Session) GetWorkspace() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	seen := make(map[string]bool)
	for d := range s.components {
		seen[d] = true
	}
	for d := range s.known {
		seen[d] = true
	}
	out := make([]string, 0, len(seen))
	for d := range seen {
		out = append(out, d)
	}
	sort.Strings(out)
	return out
}

// Stop clears the registry and shuts down every ComponentSession
// concurrently via errgroup, in no defined order, and returns the first
// error any of them reports, matching spec §4.12's "drop clears the map"
// and §5's "process is killed" guarantee that no session is left running.
func (s *Session) Stop() error {
	close(s.stopWatch)
	if s.watcher != nil {
		_ = s.watcher.Close()
	}

	s.mu.Lock()
	sessions := make([]*ComponentSession, 0, len(s.components))
	for _, cs := range s.components {
		sessions = append(sessions, cs)
	}
	s.components = make(map[string]*ComponentSession)
	s.mu.Unlock()

	var g errgroup.Group
	for _, cs := range sessions {
		cs := cs
		g.Go(func() error {
			return cs.Stop()
		})
	}
	return g.Wait()
}
