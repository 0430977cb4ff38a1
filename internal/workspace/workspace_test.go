package workspace

import (
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cxxls/clangd-indexcore/internal/config"
	"github.com/cxxls/clangd-indexcore/internal/coreerr"
	"github.com/cxxls/clangd-indexcore/internal/logger"
)

type fakeScanner struct {
	calls     int32
	component *ProjectComponent
	err       error
}

func (f *fakeScanner) DiscoverComponent(buildDir string) (*ProjectComponent, error) {
	atomic.AddInt32(&f.calls, 1)
	if f.err != nil {
		return nil, f.err
	}
	return f.component, nil
}

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.ClangdPath = "/bin/cat"
	cfg.InitTimeout = 100 * time.Millisecond
	return cfg
}

func writeCDB(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "compile_commands.json")
	content := `[{"directory": "` + dir + `", "file": "a.cpp", "command": "clang++ a.cpp"}]`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestGetComponentSession_UnknownDirWithNoScannerMatchReturnsDiscoveryMiss(t *testing.T) {
	scanner := &fakeScanner{err: errors.New("no build found")}
	ws := New(scanner, testConfig(), nil, &logger.NullLogger{})

	_, err := ws.GetComponentSession(t.TempDir())
	require.Error(t, err)

	var dmErr *coreerr.DiscoveryMissError
	assert.True(t, errors.As(err, &dmErr))
}

func TestGetComponentSession_ConcurrentCallsDedupeScannerInvocations(t *testing.T) {
	dir := t.TempDir()
	cdbPath := writeCDB(t, dir)

	scanner := &fakeScanner{component: &ProjectComponent{
		BuildDir:      dir,
		SourceRoot:    dir,
		CompileDBPath: cdbPath,
	}}
	ws := New(scanner, testConfig(), nil, &logger.NullLogger{})

	const n = 8
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		go func() {
			_, err := ws.GetComponentSession(dir)
			errs <- err
		}()
	}
	for i := 0; i < n; i++ {
		<-errs
	}

	// /bin/cat never completes LSP initialize, so every call eventually
	// fails, but the scanner itself must only ever be consulted once: all
	// n goroutines should have deduplicated onto the same in-flight
	// construction.
	assert.Equal(t, int32(1), atomic.LoadInt32(&scanner.calls))
}

func TestGetWorkspace_ListsKnownAndMaterialized(t *testing.T) {
	dir := t.TempDir()
	cdbPath := writeCDB(t, dir)

	scanner := &fakeScanner{component: &ProjectComponent{
		BuildDir:      dir,
		SourceRoot:    dir,
		CompileDBPath: cdbPath,
	}}
	ws := New(scanner, testConfig(), nil, &logger.NullLogger{})
	_, _ = ws.GetComponentSession(dir)

	known := ws.GetWorkspace()
	assert.Contains(t, known, dir)
}
