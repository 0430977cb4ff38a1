package indexreader

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cxxls/clangd-indexcore/internal/indexstore"
)

func writeFakeIndex(t *testing.T, dir, name string, version uint32) {
	t.Helper()
	metaBody := make([]byte, 4)
	binary.LittleEndian.PutUint32(metaBody, version)
	meta := chunkBytes("meta", metaBody)
	striBody := append([]byte{0, 0, 0, 0}, 0)
	stri := chunkBytes("stri", striBody)

	var body []byte
	body = append(body, []byte("CdIx")...)
	body = append(body, meta...)
	body = append(body, stri...)

	riffSize := make([]byte, 4)
	binary.LittleEndian.PutUint32(riffSize, uint32(len(body)))

	var out []byte
	out = append(out, []byte("RIFF")...)
	out = append(out, riffSize...)
	out = append(out, body...)

	require.NoError(t, os.WriteFile(filepath.Join(dir, name), out, 0644))
}

func chunkBytes(id string, body []byte) []byte {
	sz := make([]byte, 4)
	binary.LittleEndian.PutUint32(sz, uint32(len(body)))
	out := append([]byte(id), sz...)
	out = append(out, body...)
	if len(body)%2 == 1 {
		out = append(out, 0)
	}
	return out
}

func TestReadIndexForFile_None(t *testing.T) {
	dir := t.TempDir()
	r := New(indexstore.New(dir, 18, 0))
	res := r.ReadIndexForFile("/p/missing.cpp")
	assert.Equal(t, None, res.Status)
}

func TestReadIndexForFile_Done(t *testing.T) {
	dir := t.TempDir()
	writeFakeIndex(t, dir, "a.cpp.AAAA000000000000.idx", 18)
	r := New(indexstore.New(dir, 18, 0))
	res := r.ReadIndexForFile("/p/a.cpp")
	assert.Equal(t, Done, res.Status)
	require.NotNil(t, res.Entry)
}

func TestReadIndexForFile_VersionMismatchIsInvalid(t *testing.T) {
	dir := t.TempDir()
	writeFakeIndex(t, dir, "a.cpp.AAAA000000000000.idx", 19)
	r := New(indexstore.New(dir, 18, 0))
	res := r.ReadIndexForFile("/p/a.cpp")
	assert.Equal(t, Invalid, res.Status)
	assert.Equal(t, "version-mismatch", res.Reason)
}

func TestReadIndexForFile_CachedUntilCleared(t *testing.T) {
	dir := t.TempDir()
	storage := indexstore.New(dir, 18, 0)
	r := New(storage)

	res := r.ReadIndexForFile("/p/a.cpp")
	assert.Equal(t, None, res.Status)

	writeFakeIndex(t, dir, "a.cpp.AAAA000000000000.idx", 18)

	// Still cached as None.
	res = r.ReadIndexForFile("/p/a.cpp")
	assert.Equal(t, None, res.Status)

	r.Clear("/p/a.cpp")
	res = r.ReadIndexForFile("/p/a.cpp")
	assert.Equal(t, Done, res.Status)
}
