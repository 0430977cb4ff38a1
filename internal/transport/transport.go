// Package transport provides the duplex byte-stream abstraction that the
// framing and JSON-RPC dispatch layers are built on. A Transport knows
// nothing about LSP or JSON-RPC; it only moves bytes.
package transport

import (
	"errors"
	"io"
	"sync"
)

// ErrClosed is returned by Send/Receive once Close has been called.
var ErrClosed = errors.New("transport: closed")

// Transport is the capability interface every concrete transport
// implements. It is intentionally small: send raw bytes, receive raw
// bytes, report connectivity, and close. Framing is layered on top.
type Transport interface {
	// Send writes b in full to the underlying stream.
	Send(b []byte) error
	// Receive reads whatever is currently available, blocking until at
	// least one byte has arrived or the stream ends. It does not attempt
	// to frame the data; the caller (Framing) is responsible for buffering
	// partial reads across calls.
	Receive() ([]byte, error)
	// Close releases the underlying stream. Safe to call more than once.
	Close() error
	// IsConnected reports whether the transport is still usable.
	IsConnected() bool
}

// Stdio is a Transport over a child process's stdin/stdout, or any pair of
// io.Writer/io.Reader representing a duplex byte stream.
type Stdio struct {
	r io.Reader
	w io.Writer
	c io.Closer // optional; may be nil if neither r nor w needs closing

	mu     sync.Mutex
	closed bool

	readBuf []byte
}

// NewStdio builds a Stdio transport. closer, if non-nil, is invoked by
// Close in addition to any Close methods r/w might separately expose.
func NewStdio(r io.Reader, w io.Writer, closer io.Closer) *Stdio {
	return &Stdio{
		r:       r,
		w:       w,
		c:       closer,
		readBuf: make([]byte, 64*1024),
	}
}

func (s *Stdio) Send(b []byte) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	s.mu.Unlock()

	_, err := s.w.Write(b)
	if err != nil {
		s.markClosed()
	}
	return err
}

func (s *Stdio) Receive() ([]byte, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrClosed
	}
	s.mu.Unlock()

	n, err := s.r.Read(s.readBuf)
	if n > 0 {
		out := make([]byte, n)
		copy(out, s.readBuf[:n])
		if err == nil {
			return out, nil
		}
		// Some readers return (n>0, io.EOF) on the final chunk; hand back
		// the data and let the next Receive call surface the error.
		s.markClosed()
		return out, nil
	}
	if err != nil {
		s.markClosed()
		return nil, err
	}
	return nil, nil
}

func (s *Stdio) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	if s.c != nil {
		return s.c.Close()
	}
	return nil
}

func (s *Stdio) IsConnected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.closed
}

func (s *Stdio) markClosed() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
}
