// Package session owns one clangd child process end to end: the process
// manager, transport+framing+dispatch stack, LSP client, file manager,
// and component index monitor for exactly one build directory (spec
// §4.11).
package session

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/cxxls/clangd-indexcore/internal/compiledb"
	"github.com/cxxls/clangd-indexcore/internal/compindex"
	"github.com/cxxls/clangd-indexcore/internal/coreerr"
	"github.com/cxxls/clangd-indexcore/internal/filemanager"
	"github.com/cxxls/clangd-indexcore/internal/framing"
	"github.com/cxxls/clangd-indexcore/internal/indexhash"
	"github.com/cxxls/clangd-indexcore/internal/indexreader"
	"github.com/cxxls/clangd-indexcore/internal/indexstore"
	"github.com/cxxls/clangd-indexcore/internal/logger"
	"github.com/cxxls/clangd-indexcore/internal/lspclient"
	"github.com/cxxls/clangd-indexcore/internal/monitor"
	"github.com/cxxls/clangd-indexcore/internal/procmgr"
	"github.com/cxxls/clangd-indexcore/internal/progress"
	"github.com/cxxls/clangd-indexcore/internal/rpc"
	"github.com/cxxls/clangd-indexcore/internal/transport"
	"github.com/cxxls/clangd-indexcore/internal/version"
)

// Config bundles everything Session needs to construct a clangd session
// for one build directory.
type Config struct {
	BuildDir       string
	SourceRoot     string
	ClangdPath     string
	ClangdArgs     []string
	InitTimeout    time.Duration
	IndexCacheDir  string // defaults to <BuildDir>/.cache/clangd/index
	MaxIndexFiles  int
	ClangdVersion  *version.ClangdVersion
}

// Session is a ComponentSession's clangd half: process + transport stack
// + LSP client + file manager + monitor, all for one build directory.
type Session struct {
	cfg Config
	log logger.Logger

	proc    *procmgr.Manager
	dispatch *rpc.Dispatch
	client  *lspclient.Client
	files   *filemanager.Manager
	monitor *monitor.Monitor
	db      *compiledb.Database

	progressCh chan progress.Event
	stopFwd    chan struct{}
}

// lspTrigger adapts the LSP client into monitor.Trigger by opening the
// file over LSP, which is the real-world effector that makes clangd start
// indexing a file (spec §9's "index-trigger indirection").
type lspTrigger struct {
	files  *filemanager.Manager
	client *lspclient.Client
}

func (t *lspTrigger) TriggerIndex(path string) {
	_ = t.files.EnsureFileReady(path, t.client)
}

// New constructs a ClangdSession per spec §4.11's six-step sequence. It
// returns once `initialized` has been sent; initial indexing still
// proceeds in the background and is observed via Monitor()/EnsureIndexed.
// An empty ClangdPath resolves "clangd" on PATH.
func New(cfg Config, db *compiledb.Database, log logger.Logger) (*Session, error) {
	if cfg.ClangdPath == "" {
		cfg.ClangdPath = "clangd"
	}
	if cfg.IndexCacheDir == "" {
		cfg.IndexCacheDir = filepath.Join(cfg.BuildDir, ".cache", "clangd", "index")
	}
	if cfg.InitTimeout == 0 {
		cfg.InitTimeout = 30 * time.Second
	}

	s := &Session{cfg: cfg, log: log, db: db}

	// Step 1+2: build config, spawn without starting the reader; install
	// the stderr callback before Start so no line is missed. A full
	// progress channel blocks the stderr reader until the forwarder
	// drains it; once the session stops, events are discarded.
	proc, err := procmgr.New(procmgr.Config{
		ClangdPath: cfg.ClangdPath,
		WorkDir:    cfg.SourceRoot,
		Args:       cfg.ClangdArgs,
	}, log)
	if err != nil {
		return nil, coreerr.NewFatal(coreerr.KindTransport, "session.spawn", "failed to build clangd process", err)
	}
	s.proc = proc

	s.progressCh = make(chan progress.Event, 10000)
	s.stopFwd = make(chan struct{})
	proc.OnStderrLine(func(line string) {
		if ev, ok := progress.ParseStderrLine(line); ok {
			select {
			case s.progressCh <- ev:
			case <-s.stopFwd:
			}
		}
	})

	// Step 3: start the process, wire up transport/framing/dispatch.
	if err := proc.Start(); err != nil {
		return nil, coreerr.NewFatal(coreerr.KindTransport, "session.start", "failed to start clangd", err)
	}
	stdout, stdin := proc.StdioPair()
	tp := transport.NewStdio(stdout, stdin, nil)
	framer := framing.New(tp)
	dispatch := rpc.New(framer, log)
	s.dispatch = dispatch
	dispatch.Start()

	client := lspclient.New(dispatch)
	s.client = client

	// Step 4: register our notification/request handlers before anything
	// from the server could possibly need them. NewLSPSource installs both
	// the $/progress handler and the workDoneProgress/create handler; it
	// owns both registrations, so nothing else may overwrite them.
	progress.NewLSPSource(client, s.progressCh)

	s.files = filemanager.New()

	formatVersion := 18
	if cfg.ClangdVersion != nil {
		formatVersion = cfg.ClangdVersion.IndexFormatVersion()
	}
	storage := indexstore.New(cfg.IndexCacheDir, formatVersion, cfg.MaxIndexFiles)
	reader := indexreader.New(storage)

	fileToIndex := make(map[string]string)
	for _, f := range db.CanonicalFiles() {
		fileToIndex[f] = indexhash.IndexFileName(filepath.Base(f), f, formatVersion)
	}
	idx := compindex.New(db.CanonicalFiles(), fileToIndex)

	trig := &lspTrigger{files: s.files, client: client}
	s.monitor = monitor.New(idx, cfg.BuildDir, db, reader, trig, log)

	go s.forwardProgress()

	// Step 5: initialize, with a caller-chosen timeout.
	ctx, cancel := context.WithTimeout(context.Background(), cfg.InitTimeout)
	defer cancel()
	if _, err := client.Initialize(ctx, os.Getpid(), compiledb.FileURI(cfg.SourceRoot)); err != nil {
		s.killHard()
		close(s.stopFwd)
		s.dispatch.Close()
		if ctx.Err() != nil {
			return nil, coreerr.OperationTimeout("LSP initialization")
		}
		return nil, coreerr.NewFatal(coreerr.KindProtocol, "session.initialize", "initialize failed", err)
	}

	// Step 6.
	if err := client.Initialized(ctx); err != nil {
		s.killHard()
		close(s.stopFwd)
		s.dispatch.Close()
		return nil, coreerr.New(coreerr.KindProtocol, "session.initialized", "initialized notification failed", err)
	}

	return s, nil
}

func (s *Session) forwardProgress() {
	for {
		select {
		case ev := <-s.progressCh:
			s.monitor.Handle(ev)
		case <-s.stopFwd:
			return
		}
	}
}

func (s *Session) killHard() {
	_ = s.proc.Kill()
}

// Client returns the LSP client. It does no locking of its own; callers
// are expected to serialize their own access via the owning
// ComponentSession.
func (s *Session) Client() *lspclient.Client { return s.client }

// Files returns the file manager for ensure_file_ready.
func (s *Session) Files() *filemanager.Manager { return s.files }

// Monitor returns the component index monitor.
func (s *Session) Monitor() *monitor.Monitor { return s.monitor }

// EnsureIndexed waits on the monitor's latch until it fires or ctx is done.
func (s *Session) EnsureIndexed(ctx context.Context) error {
	res, err := s.monitor.Latch().Wait(ctx)
	if err != nil {
		return err
	}
	_ = res
	return nil
}

// Stop performs the graceful shutdown sequence: shutdown request, exit
// notification, wait with timeout, kill if still alive.
func (s *Session) Stop() error {
	close(s.stopFwd)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.client.Shutdown(ctx); err != nil {
		s.log.Debug("session: shutdown request failed: %v", err)
	}
	if err := s.client.Exit(); err != nil {
		s.log.Debug("session: exit notification failed: %v", err)
	}

	s.dispatch.Close()

	if err := s.proc.WaitTimeout(2 * time.Second); err != nil {
		return fmt.Errorf("session: %w", err)
	}
	return nil
}
