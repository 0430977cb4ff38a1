package transport

import "sync"

// Mock is an in-memory Transport for tests. Writes to Send are appended to
// an outbound queue a test can inspect with Sent(); Receive drains bytes
// pushed in by Feed, blocking until some are available or the mock is
// closed.
type Mock struct {
	mu     sync.Mutex
	cond   *sync.Cond
	closed bool

	sent []byte
	in   [][]byte
}

// NewMock creates a ready-to-use Mock transport.
func NewMock() *Mock {
	m := &Mock{}
	m.cond = sync.NewCond(&m.mu)
	return m
}

func (m *Mock) Send(b []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	cp := make([]byte, len(b))
	copy(cp, b)
	m.sent = append(m.sent, cp...)
	return nil
}

// Feed makes b available to a subsequent Receive call, as if the remote
// peer had written it to the stream.
func (m *Mock) Feed(b []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	cp := make([]byte, len(b))
	copy(cp, b)
	m.in = append(m.in, cp)
	m.cond.Broadcast()
}

func (m *Mock) Receive() ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for len(m.in) == 0 && !m.closed {
		m.cond.Wait()
	}
	if len(m.in) == 0 {
		return nil, ErrClosed
	}
	chunk := m.in[0]
	m.in = m.in[1:]
	return chunk, nil
}

func (m *Mock) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	m.cond.Broadcast()
	return nil
}

func (m *Mock) IsConnected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return !m.closed
}

// Sent returns everything written via Send so far.
func (m *Mock) Sent() []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := make([]byte, len(m.sent))
	copy(cp, m.sent)
	return cp
}
