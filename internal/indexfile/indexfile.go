// Package indexfile parses clangd's RIFF/CdIx on-disk index format
// (spec §4.7). It has no knowledge of where `.idx` files live on disk —
// that is internal/indexstore's job — and takes only raw bytes in.
package indexfile

import (
	"bytes"
	"compress/zlib"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

var (
	riffMagic = []byte("RIFF")
	cdixType  = []byte("CdIx")
)

// ErrInvalidMagic is returned when the first four bytes are not "RIFF".
var ErrInvalidMagic = errors.New("indexfile: invalid RIFF magic")

// ErrInvalidType is returned when the RIFF form type is not "CdIx".
var ErrInvalidType = errors.New("indexfile: invalid RIFF type, expected CdIx")

// ErrUnsupportedVersion is returned when the meta chunk's format version
// falls outside the supported 12..=20 range.
var ErrUnsupportedVersion = errors.New("indexfile: unsupported index format version")

// ErrTruncated is returned when a chunk header or body runs past the end
// of the buffer.
var ErrTruncated = errors.New("indexfile: truncated chunk")

// ErrMissingChunk is returned when a required chunk (meta or stri) is
// absent.
var ErrMissingChunk = errors.New("indexfile: missing required chunk")

const (
	minFormatVersion = 12
	maxFormatVersion = 20
)

// IncludeNode is one entry in the srcs chunk's include graph.
type IncludeNode struct {
	// IsTU is true when flags&0x01 is set: this node is a translation unit
	// compiled independently, not merely a header.
	IsTU bool
	// HasCompileError is true when flags&0x02 is set.
	HasCompileError bool
	URI             string
	Digest          [8]byte
	DirectIncludes  []string
}

const (
	flagIsTU            = 0x01
	flagHasCompileError = 0x02
)

// IndexEntry is the fully parsed contents of one `.idx` file.
type IndexEntry struct {
	FormatVersion int
	Strings       []string
	Nodes         []IncludeNode
}

// Parse validates the RIFF/CdIx container and decodes the meta, stri, and
// (if present) srcs chunks from raw .idx file bytes.
func Parse(data []byte) (*IndexEntry, error) {
	if len(data) < 12 {
		return nil, ErrTruncated
	}
	if !bytes.Equal(data[0:4], riffMagic) {
		return nil, ErrInvalidMagic
	}
	// data[4:8] is the RIFF container size; we don't need it since we walk
	// chunks until the buffer is exhausted, but validate it's parseable.
	_ = binary.LittleEndian.Uint32(data[4:8])
	if !bytes.Equal(data[8:12], cdixType) {
		return nil, ErrInvalidType
	}

	var metaBytes, striBytes, srcsBytes []byte
	var haveMeta, haveStri, haveSrcs bool

	off := 12
	for off+8 <= len(data) {
		id := data[off : off+4]
		size := binary.LittleEndian.Uint32(data[off+4 : off+8])
		bodyStart := off + 8
		bodyEnd := bodyStart + int(size)
		if bodyEnd > len(data) {
			return nil, ErrTruncated
		}
		body := data[bodyStart:bodyEnd]

		switch string(id) {
		case "meta":
			metaBytes = body
			haveMeta = true
		case "stri":
			striBytes = body
			haveStri = true
		case "srcs":
			srcsBytes = body
			haveSrcs = true
		}

		next := bodyEnd
		if size%2 == 1 {
			next++ // chunks are padded to an even size
		}
		off = next
	}

	if !haveMeta {
		return nil, fmt.Errorf("%w: meta", ErrMissingChunk)
	}
	if !haveStri {
		return nil, fmt.Errorf("%w: stri", ErrMissingChunk)
	}

	version, err := parseMeta(metaBytes)
	if err != nil {
		return nil, err
	}

	strings_, err := parseStri(striBytes)
	if err != nil {
		return nil, err
	}

	var nodes []IncludeNode
	if haveSrcs {
		nodes, err = parseSrcs(srcsBytes, strings_)
		if err != nil {
			return nil, err
		}
	}

	return &IndexEntry{FormatVersion: version, Strings: strings_, Nodes: nodes}, nil
}

func parseMeta(body []byte) (int, error) {
	if len(body) < 4 {
		return 0, ErrTruncated
	}
	version := int(binary.LittleEndian.Uint32(body[0:4]))
	if version < minFormatVersion || version > maxFormatVersion {
		return 0, fmt.Errorf("%w: %d", ErrUnsupportedVersion, version)
	}
	return version, nil
}

func parseStri(body []byte) ([]string, error) {
	if len(body) < 4 {
		return nil, ErrTruncated
	}
	uncompressedSize := binary.LittleEndian.Uint32(body[0:4])
	raw := body[4:]

	var tableBytes []byte
	if uncompressedSize == 0 {
		tableBytes = raw
	} else {
		zr, err := zlib.NewReader(bytes.NewReader(raw))
		if err != nil {
			return nil, fmt.Errorf("indexfile: stri chunk zlib header: %w", err)
		}
		defer zr.Close()
		decompressed, err := io.ReadAll(zr)
		if err != nil {
			return nil, fmt.Errorf("indexfile: stri chunk zlib decode: %w", err)
		}
		if uint32(len(decompressed)) != uncompressedSize {
			return nil, fmt.Errorf("indexfile: stri chunk decompressed to %d bytes, expected %d", len(decompressed), uncompressedSize)
		}
		tableBytes = decompressed
	}

	strs := splitNullTerminated(tableBytes)
	if len(strs) == 0 {
		strs = []string{""}
	} else {
		strs[0] = ""
	}
	return strs, nil
}

func splitNullTerminated(b []byte) []string {
	if len(b) == 0 {
		return []string{""}
	}
	parts := bytes.Split(b, []byte{0})
	// A trailing NUL produces one empty trailing element; drop it so the
	// string table reflects only actual entries.
	if len(parts) > 0 && len(parts[len(parts)-1]) == 0 {
		parts = parts[:len(parts)-1]
	}
	out := make([]string, len(parts))
	for i, p := range parts {
		out[i] = string(p)
	}
	if len(out) == 0 {
		out = []string{""}
	}
	return out
}

func parseSrcs(body []byte, strs []string) ([]IncludeNode, error) {
	var nodes []IncludeNode
	off := 0
	for off < len(body) {
		if off+1 > len(body) {
			return nil, ErrTruncated
		}
		flags := body[off]
		off++

		uriIdx, next, err := readVarint(body, off)
		if err != nil {
			return nil, err
		}
		off = next

		if off+8 > len(body) {
			return nil, ErrTruncated
		}
		var digest [8]byte
		copy(digest[:], body[off:off+8])
		off += 8

		nIncl, next, err := readVarint(body, off)
		if err != nil {
			return nil, err
		}
		off = next

		includes := make([]string, 0, nIncl)
		for i := uint64(0); i < nIncl; i++ {
			idx, next, err := readVarint(body, off)
			if err != nil {
				return nil, err
			}
			off = next
			includes = append(includes, stringAt(strs, idx))
		}

		nodes = append(nodes, IncludeNode{
			IsTU:            flags&flagIsTU != 0,
			HasCompileError: flags&flagHasCompileError != 0,
			URI:             stringAt(strs, uriIdx),
			Digest:          digest,
			DirectIncludes:  includes,
		})
	}
	return nodes, nil
}

func stringAt(strs []string, idx uint64) string {
	if idx >= uint64(len(strs)) {
		return ""
	}
	return strs[idx]
}
