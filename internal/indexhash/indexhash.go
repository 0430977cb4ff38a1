// Package indexhash implements the two path-hash functions clangd uses to
// name its on-disk `.idx` files (spec §4.7): xxHash64 with seed 0 for
// index format versions ≤ 18, and XXH3-64bits for versions ≥ 19. Rather
// than hand-rolling either algorithm, both are delegated to the
// ecosystem's canonical pure-Go implementations: github.com/cespare/xxhash/v2
// (used the same way by standardbeagle-lci for content hashing) and
// github.com/zeebo/xxh3 (the standard pure-Go XXH3 implementation; not
// present in the retrieved pack, named here per the out-of-pack-dependency
// rule rather than grounded in an example).
package indexhash

import (
	"fmt"

	"github.com/cespare/xxhash/v2"
	"github.com/zeebo/xxh3"
)

// FormatVersionThreshold is the index format version at and below which
// clangd names index files using xxHash64; above it, XXH3-64 is used.
const FormatVersionThreshold = 18

// XXHash64 computes xxHash64(seed=0) of b.
func XXHash64(b []byte) uint64 {
	return xxhash.Sum64(b)
}

// XXH3_64 computes XXH3-64bits of b.
func XXH3_64(b []byte) uint64 {
	return xxh3.Hash(b)
}

// ComputeFileHash selects the hash function by format version and renders
// it as 16 uppercase hex digits with no prefix, matching clangd's index
// filename convention exactly.
func ComputeFileHash(pathBytes []byte, formatVersion int) string {
	var h uint64
	if formatVersion <= FormatVersionThreshold {
		h = XXHash64(pathBytes)
	} else {
		h = XXH3_64(pathBytes)
	}
	return fmt.Sprintf("%016X", h)
}

// IndexFileName returns the `{basename}.{hash}.idx` filename clangd uses
// for sourcePath under the given index format version, where basename is
// the final path component of sourcePath.
func IndexFileName(basename, sourcePath string, formatVersion int) string {
	return fmt.Sprintf("%s.%s.idx", basename, ComputeFileHash([]byte(sourcePath), formatVersion))
}
