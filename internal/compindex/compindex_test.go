package compindex

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func testIndex() *Index {
	return New([]string{"/p/a.cpp", "/p/b.cpp"}, map[string]string{
		"/p/a.cpp": "a.cpp.AAAA.idx",
		"/p/b.cpp": "b.cpp.BBBB.idx",
	})
}

func TestNew_KeySetsIdentical(t *testing.T) {
	idx := testIndex()
	for _, f := range []string{"/p/a.cpp", "/p/b.cpp"} {
		assert.True(t, idx.Contains(f))
		s, ok := idx.State(f)
		assert.True(t, ok)
		assert.Equal(t, Pending, s)
		assert.NotEmpty(t, idx.IndexPath(f))
	}
}

func TestSetState_IgnoresUntrackedPath(t *testing.T) {
	idx := testIndex()
	idx.SetState("/p/virtual-stdlib.h", Indexed)
	_, ok := idx.State("/p/virtual-stdlib.h")
	assert.False(t, ok)
}

func TestCount_CoverageAndZeroTotal(t *testing.T) {
	idx := testIndex()
	idx.SetState("/p/a.cpp", Indexed)

	c := idx.Count()
	assert.Equal(t, 1, c.Indexed)
	assert.Equal(t, 1, c.Pending)
	assert.Equal(t, 2, c.Total)
	assert.InDelta(t, 0.5, c.Coverage, 0.0001)

	empty := New(nil, nil)
	assert.Equal(t, 1.0, empty.Count().Coverage)
}

func TestIsFullyIndexed(t *testing.T) {
	idx := testIndex()
	assert.False(t, idx.IsFullyIndexed())

	idx.SetState("/p/a.cpp", Indexed)
	idx.SetState("/p/b.cpp", Failed)
	assert.True(t, idx.IsFullyIndexed())
}

func TestSetFailed_RecordsMessage(t *testing.T) {
	idx := testIndex()
	idx.SetFailed("/p/a.cpp", "AST build failed")
	s, _ := idx.State("/p/a.cpp")
	assert.Equal(t, Failed, s)
	assert.Equal(t, "AST build failed", idx.FailureMessage("/p/a.cpp"))

	idx.SetState("/p/a.cpp", Pending)
	assert.Empty(t, idx.FailureMessage("/p/a.cpp"))
}

func TestNextPending(t *testing.T) {
	idx := testIndex()
	idx.SetState("/p/a.cpp", Indexed)
	assert.Equal(t, "/p/b.cpp", idx.NextPending())

	idx.SetState("/p/b.cpp", Indexed)
	assert.Equal(t, "", idx.NextPending())
}
