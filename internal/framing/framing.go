// Package framing wraps a transport.Transport with LSP's Content-Length
// message framing, per the LSP 3.17 base protocol.
package framing

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"

	"github.com/cxxls/clangd-indexcore/internal/transport"
)

// MaxMessageSize is the largest message body this framer will accept.
// Messages declaring a larger Content-Length are rejected outright.
const MaxMessageSize = 16 * 1024 * 1024 // 16 MiB

// ErrMessageTooLarge is returned when a header declares a Content-Length
// greater than MaxMessageSize.
var ErrMessageTooLarge = errors.New("framing: message exceeds 16MiB limit")

// ErrMissingContentLength is returned when a header block has no
// Content-Length field, or its value is not a valid non-negative integer.
var ErrMissingContentLength = errors.New("framing: missing or invalid Content-Length header")

const headerSep = "\r\n\r\n"
const contentLengthPrefix = "Content-Length:"

// Framer turns a byte-stream Transport into a message-stream: Send(msg)
// writes one framed message, Receive() returns one complete message body.
// Framer buffers across Transport.Receive calls and drains every complete
// message present in a single underlying read before requesting more.
type Framer struct {
	t   transport.Transport
	buf bytes.Buffer
	// pending holds messages already extracted from buf during a prior
	// Receive call that drained more than one message from a single read.
	pending [][]byte
}

// New wraps t in a Framer.
func New(t transport.Transport) *Framer {
	return &Framer{t: t}
}

// Send frames and writes msg.
func (f *Framer) Send(msg []byte) error {
	header := fmt.Sprintf("Content-Length: %d\r\n\r\n", len(msg))
	out := make([]byte, 0, len(header)+len(msg))
	out = append(out, header...)
	out = append(out, msg...)
	return f.t.Send(out)
}

// Receive returns the next complete message, blocking on the underlying
// transport as needed.
func (f *Framer) Receive() ([]byte, error) {
	if len(f.pending) > 0 {
		msg := f.pending[0]
		f.pending = f.pending[1:]
		return msg, nil
	}

	for {
		// Try to drain everything already buffered before reading more.
		msgs, err := f.drain()
		if err != nil {
			return nil, err
		}
		if len(msgs) > 0 {
			f.pending = msgs[1:]
			return msgs[0], nil
		}

		chunk, err := f.t.Receive()
		if err != nil {
			return nil, err
		}
		f.buf.Write(chunk)
	}
}

// drain extracts every complete framed message currently sitting in buf,
// leaving any trailing partial message in place.
func (f *Framer) drain() ([][]byte, error) {
	var out [][]byte
	for {
		data := f.buf.Bytes()
		sepIdx := bytes.Index(data, []byte(headerSep))
		if sepIdx < 0 {
			return out, nil
		}

		headerBlock := data[:sepIdx]
		contentLength, ok, tooLarge := parseContentLength(headerBlock)
		if tooLarge {
			return out, ErrMessageTooLarge
		}
		if !ok {
			return out, ErrMissingContentLength
		}

		bodyStart := sepIdx + len(headerSep)
		if len(data) < bodyStart+contentLength {
			// Not enough body bytes buffered yet; wait for more.
			return out, nil
		}

		body := make([]byte, contentLength)
		copy(body, data[bodyStart:bodyStart+contentLength])
		out = append(out, body)

		consumed := bodyStart + contentLength
		f.buf.Next(consumed)
	}
}

// parseContentLength scans a raw header block (one or more "\r\n"-separated
// header lines) for Content-Length. The header name match is case-sensitive
// per the LSP base protocol.
func parseContentLength(headerBlock []byte) (length int, ok bool, tooLarge bool) {
	lines := bytes.Split(headerBlock, []byte("\r\n"))
	for _, line := range lines {
		s := string(line)
		if len(s) <= len(contentLengthPrefix) {
			continue
		}
		if s[:len(contentLengthPrefix)] != contentLengthPrefix {
			continue
		}
		valueStr := trimSpace(s[len(contentLengthPrefix):])
		n, err := strconv.Atoi(valueStr)
		if err != nil || n < 0 {
			return 0, false, false
		}
		if n > MaxMessageSize {
			return 0, false, true
		}
		return n, true, false
	}
	return 0, false, false
}

func trimSpace(s string) string {
	start := 0
	for start < len(s) && (s[start] == ' ' || s[start] == '\t') {
		start++
	}
	end := len(s)
	for end > start && (s[end-1] == ' ' || s[end-1] == '\t') {
		end--
	}
	return s[start:end]
}
