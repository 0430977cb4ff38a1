package compiledb

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cxxls/clangd-indexcore/internal/logger"
)

func TestParse_CanonicalFilesDeduped(t *testing.T) {
	data := []byte(`[
		{"directory": "/proj/build", "file": "../src/a.cpp", "arguments": ["clang++", "-c", "../src/a.cpp"]},
		{"directory": "/proj/build", "file": "../src/b.cpp", "arguments": ["clang++", "-c", "../src/b.cpp"]},
		{"directory": "/proj/build", "file": "../src/a.cpp", "arguments": ["clang++", "-c", "../src/a.cpp", "-DX"]}
	]`)

	db, err := Parse(data, &logger.NullLogger{})
	require.NoError(t, err)

	files := db.CanonicalFiles()
	assert.Len(t, files, 2)
	assert.Equal(t, "/proj/src/a.cpp", files[0])
	assert.Equal(t, "/proj/src/b.cpp", files[1])
}

func TestParse_PathMappingInvolution(t *testing.T) {
	data := []byte(`[
		{"directory": "/proj/build", "file": "../src/a.cpp", "arguments": []},
		{"directory": "/proj/build", "file": "/abs/src/b.cpp", "arguments": []}
	]`)

	db, err := Parse(data, &logger.NullLogger{})
	require.NoError(t, err)

	for _, e := range db.RawEntries() {
		canon, ok := db.OriginalToCanonical(e.File)
		require.True(t, ok)
		orig, ok := db.CanonicalToOriginal(canon)
		require.True(t, ok)
		assert.Equal(t, e.File, orig)
	}
}

func TestParse_DropsEntryWithEmptyFile(t *testing.T) {
	data := []byte(`[
		{"directory": "/proj/build", "file": "", "arguments": []},
		{"directory": "/proj/build", "file": "a.cpp", "arguments": []}
	]`)

	db, err := Parse(data, &logger.NullLogger{})
	require.NoError(t, err)
	assert.Len(t, db.CanonicalFiles(), 1)
}

func TestParse_AllEntriesFailIsFatal(t *testing.T) {
	data := []byte(`[{"directory": "/proj/build", "file": "", "arguments": []}]`)
	_, err := Parse(data, &logger.NullLogger{})
	assert.Error(t, err)
}

func TestDatabase_ResolvePath(t *testing.T) {
	data := []byte(`[{"directory": "/proj/build", "file": "../src/a.cpp", "arguments": []}]`)
	db, err := Parse(data, &logger.NullLogger{})
	require.NoError(t, err)

	assert.Equal(t, "/proj/src/a.cpp", db.ResolvePath("../src/a.cpp", "/proj/build"))
	assert.Equal(t, "/proj/src/a.cpp", db.ResolvePath("/proj/src/a.cpp", "/proj/build"))
	assert.Equal(t, "/nowhere.cpp", db.ResolvePath("/nowhere.cpp", "/proj/build"))
}
