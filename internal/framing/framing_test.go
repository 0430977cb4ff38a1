package framing

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cxxls/clangd-indexcore/internal/transport"
)

func TestFramer_MultiMessageCoalesced(t *testing.T) {
	mock := transport.NewMock()
	f := New(mock)

	mock.Feed([]byte("Content-Length: 2\r\n\r\n{}Content-Length: 2\r\n\r\n[]"))

	first, err := f.Receive()
	require.NoError(t, err)
	assert.Equal(t, "{}", string(first))

	second, err := f.Receive()
	require.NoError(t, err)
	assert.Equal(t, "[]", string(second))
}

func TestFramer_SendRoundTrip(t *testing.T) {
	mock := transport.NewMock()
	f := New(mock)

	require.NoError(t, f.Send([]byte(`{"hello":"world"}`)))

	sent := mock.Sent()
	assert.Equal(t, "Content-Length: 17\r\n\r\n{\"hello\":\"world\"}", string(sent))
}

func TestFramer_RoundTripArbitraryStrings(t *testing.T) {
	for _, msg := range []string{"", "x", `{"a":1}`, string(make([]byte, 4096))} {
		mock := transport.NewMock()
		f := New(mock)
		require.NoError(t, f.Send([]byte(msg)))
		mock.Feed(mock.Sent())

		got, err := f.Receive()
		require.NoError(t, err)
		assert.Equal(t, msg, string(got))
	}
}

func TestFramer_MessageTooLarge(t *testing.T) {
	mock := transport.NewMock()
	f := New(mock)

	mock.Feed([]byte(fmt.Sprintf("Content-Length: %d\r\n\r\n", MaxMessageSize+1)))

	_, err := f.Receive()
	assert.ErrorIs(t, err, ErrMessageTooLarge)
}

func TestFramer_MissingContentLength(t *testing.T) {
	mock := transport.NewMock()
	f := New(mock)

	mock.Feed([]byte("X-Other: 1\r\n\r\n"))

	_, err := f.Receive()
	assert.ErrorIs(t, err, ErrMissingContentLength)
}

func TestFramer_NonIntegerContentLength(t *testing.T) {
	mock := transport.NewMock()
	f := New(mock)

	mock.Feed([]byte("Content-Length: abc\r\n\r\n"))

	_, err := f.Receive()
	assert.ErrorIs(t, err, ErrMissingContentLength)
}

func TestFramer_PartialReadsAccumulate(t *testing.T) {
	mock := transport.NewMock()
	f := New(mock)

	go func() {
		mock.Feed([]byte("Content-Length: 5\r"))
		mock.Feed([]byte("\n\r\nhel"))
		mock.Feed([]byte("lo"))
	}()

	got, err := f.Receive()
	require.NoError(t, err)
	assert.Equal(t, "hello", string(got))
}
