package logger

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileLogger_WithComponentTagsLines(t *testing.T) {
	dir := t.TempDir()
	fl, err := NewFileLogger(filepath.Join(dir, "core.log"), LevelDebug)
	require.NoError(t, err)
	defer fl.Close()

	var root Logger = fl
	root.Info("workspace scan started")

	compA := root.WithComponent("/proj/build-a")
	compB := root.WithComponent("/proj/build-b")
	compA.Error("initialize timed out")
	compB.Debug("indexing file.cpp")

	logs := fl.GetLogs(LevelDebug)
	assert.Contains(t, logs, "workspace scan started")
	assert.Contains(t, logs, "[/proj/build-a] initialize timed out")
	assert.Contains(t, logs, "[/proj/build-b] indexing file.cpp")
	assert.NotContains(t, logs, "[/proj/build-a] workspace scan started")
}

func TestComponentLogger_WithComponentRetags(t *testing.T) {
	dir := t.TempDir()
	fl, err := NewFileLogger(filepath.Join(dir, "core.log"), LevelDebug)
	require.NoError(t, err)
	defer fl.Close()

	first := fl.WithComponent("/proj/build-a")
	second := first.WithComponent("/proj/build-b")
	second.Info("retagged line")

	logs := fl.GetLogs(LevelDebug)
	assert.Contains(t, logs, "[/proj/build-b] retagged line")
	assert.NotContains(t, logs, "[/proj/build-a] retagged line")
}

func TestNullLogger_WithComponentIsStillNull(t *testing.T) {
	var l Logger = &NullLogger{}
	tagged := l.WithComponent("/proj/build-a")
	tagged.Error("ignored")
	assert.Equal(t, "", tagged.GetLogs(LevelDebug))
}
