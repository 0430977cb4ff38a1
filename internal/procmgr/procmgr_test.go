package procmgr

import (
	"bufio"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cxxls/clangd-indexcore/internal/logger"
)

// These tests use /bin/sh as a stand-in for clangd: we only exercise
// procmgr's piping/lifecycle plumbing, not LSP semantics.

func TestManager_StdioRoundTrip(t *testing.T) {
	m, err := New(Config{
		ClangdPath: "/bin/sh",
		Args:       []string{"-c", "cat"},
	}, &logger.NullLogger{})
	require.NoError(t, err)
	require.NoError(t, m.Start())
	defer m.Kill()

	stdout, stdin := m.StdioPair()
	_, err = stdin.Write([]byte("hello\n"))
	require.NoError(t, err)

	reader := bufio.NewReader(stdout)
	line, err := reader.ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, "hello\n", line)
}

func TestManager_StderrLinesDelivered(t *testing.T) {
	var mu sync.Mutex
	var lines []string

	m, err := New(Config{
		ClangdPath: "/bin/sh",
		Args:       []string{"-c", "echo one 1>&2; echo two 1>&2"},
	}, &logger.NullLogger{})
	require.NoError(t, err)

	m.OnStderrLine(func(line string) {
		mu.Lock()
		lines = append(lines, line)
		mu.Unlock()
	})
	require.NoError(t, m.Start())

	_ = m.Wait()

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		mu.Lock()
		n := len(lines)
		mu.Unlock()
		if n >= 2 {
			break
		}
		time.Sleep(time.Millisecond)
	}

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"one", "two"}, lines)
}

func TestManager_KillStopsProcess(t *testing.T) {
	m, err := New(Config{
		ClangdPath: "/bin/sh",
		Args:       []string{"-c", "sleep 30"},
	}, &logger.NullLogger{})
	require.NoError(t, err)
	require.NoError(t, m.Start())

	require.NoError(t, m.Kill())
	err = m.Wait()
	assert.Error(t, err) // killed, non-zero/signal exit
}
