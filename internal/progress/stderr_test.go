package progress

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseStderrLine_IndexingStarted(t *testing.T) {
	ev, ok := ParseStderrLine(`V[09:54:12.100] Indexing /p/a.cpp (digest:=ABCDEF)`)
	assert.True(t, ok)
	assert.Equal(t, FileIndexingStarted, ev.Kind)
	assert.Equal(t, "/p/a.cpp", ev.Path)
	assert.Equal(t, "ABCDEF", ev.Digest)
}

func TestParseStderrLine_IndexingCompleted(t *testing.T) {
	ev, ok := ParseStderrLine(`I[09:54:12.201] Indexed /p/a.cpp (10 symbols, 20 refs, 3 files)`)
	assert.True(t, ok)
	assert.Equal(t, FileIndexingCompleted, ev.Kind)
	assert.Equal(t, "/p/a.cpp", ev.Path)
	assert.Equal(t, 10, ev.Symbols)
	assert.Equal(t, 20, ev.Refs)
}

func TestParseStderrLine_IndexingCompleted_SingularUnits(t *testing.T) {
	ev, ok := ParseStderrLine(`I[09:54:12.201] Indexed /p/a.cpp (1 symbol, 1 ref, 1 file)`)
	assert.True(t, ok)
	assert.Equal(t, 1, ev.Symbols)
	assert.Equal(t, 1, ev.Refs)
}

func TestParseStderrLine_StandardLibraryStarted(t *testing.T) {
	ev, ok := ParseStderrLine(`I[09:54:12.100] Indexing c++20 standard library in the context of /p/a.cpp`)
	assert.True(t, ok)
	assert.Equal(t, StandardLibraryStarted, ev.Kind)
	assert.Equal(t, "c++20", ev.Path)
	assert.Equal(t, "/p/a.cpp", ev.Context)
}

func TestParseStderrLine_StandardLibraryCompleted(t *testing.T) {
	ev, ok := ParseStderrLine(`I[09:54:12.300] Indexed c++20 standard library: 5000 symbols, 120 filtered`)
	assert.True(t, ok)
	assert.Equal(t, StandardLibraryCompleted, ev.Kind)
	assert.Equal(t, "c++20", ev.Path)
	assert.Equal(t, 5000, ev.LibSymbols)
	assert.Equal(t, 120, ev.LibFiltered)
}

func TestParseStderrLine_Unmatched(t *testing.T) {
	_, ok := ParseStderrLine(`E[09:54:12.400] Some unrelated error message`)
	assert.False(t, ok)
}
