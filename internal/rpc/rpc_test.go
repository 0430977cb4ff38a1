package rpc

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cxxls/clangd-indexcore/internal/framing"
	"github.com/cxxls/clangd-indexcore/internal/logger"
	"github.com/cxxls/clangd-indexcore/internal/transport"
)

func newPair(t *testing.T) (*Dispatch, *transport.Mock) {
	t.Helper()
	mock := transport.NewMock()
	d := New(framing.New(mock), &logger.NullLogger{})
	d.Start()
	return d, mock
}

func TestDispatch_SendRequestSuccess(t *testing.T) {
	d, mock := newPair(t)

	go func() {
		// Wait for the request to be written, then answer it.
		for len(mock.Sent()) == 0 {
			time.Sleep(time.Millisecond)
		}
		mock.Feed(rawFrame(`{"jsonrpc":"2.0","id":"1","result":{"ok":true}}`))
	}()

	result, err := d.SendRequest(context.Background(), "initialize", map[string]string{})
	require.NoError(t, err)
	assert.JSONEq(t, `{"ok":true}`, string(result))
}

func TestDispatch_SendRequestError(t *testing.T) {
	d, mock := newPair(t)

	go func() {
		for len(mock.Sent()) == 0 {
			time.Sleep(time.Millisecond)
		}
		mock.Feed(rawFrame(`{"jsonrpc":"2.0","id":"1","error":{"code":-32601,"message":"nope"}}`))
	}()

	_, err := d.SendRequest(context.Background(), "foo", nil)
	require.Error(t, err)
	var rpcErr *Error
	require.ErrorAs(t, err, &rpcErr)
	assert.Equal(t, -32601, rpcErr.Code)
}

func TestDispatch_ContextCancelFreesSlot(t *testing.T) {
	d, _ := newPair(t)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := d.SendRequest(ctx, "slow", nil)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	d.mu.Lock()
	n := len(d.pending)
	d.mu.Unlock()
	assert.Equal(t, 0, n, "pending slot must be freed after context cancellation")
}

func TestDispatch_NotificationFanout(t *testing.T) {
	d, mock := newPair(t)

	received := make(chan json.RawMessage, 1)
	d.RegisterNotificationHandler("$/progress", func(params json.RawMessage) {
		received <- params
	})

	mock.Feed(rawFrame(`{"jsonrpc":"2.0","method":"$/progress","params":{"x":1}}`))

	select {
	case p := <-received:
		assert.JSONEq(t, `{"x":1}`, string(p))
	case <-time.After(time.Second):
		t.Fatal("notification not delivered")
	}
}

func TestDispatch_UnknownServerRequestGetsMethodNotFound(t *testing.T) {
	d, mock := newPair(t)

	mock.Feed(rawFrame(`{"jsonrpc":"2.0","id":"99","method":"some/unknownMethod"}`))

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if len(mock.Sent()) > 0 {
			break
		}
		time.Sleep(time.Millisecond)
	}
	assert.Contains(t, string(mock.Sent()), "-32601")
}

func TestDispatch_WorkDoneProgressCreateAcked(t *testing.T) {
	d, mock := newPair(t)

	mock.Feed(rawFrame(`{"jsonrpc":"2.0","id":"7","method":"window/workDoneProgress/create","params":{"token":"t1"}}`))

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if len(mock.Sent()) > 0 {
			break
		}
		time.Sleep(time.Millisecond)
	}
	sent := string(mock.Sent())
	assert.Contains(t, sent, `"id":"7"`)
	assert.NotContains(t, sent, "error")
}

func rawFrame(jsonBody string) []byte {
	return []byte("Content-Length: " + itoaInt(len(jsonBody)) + "\r\n\r\n" + jsonBody)
}

func itoaInt(n int) string {
	if n == 0 {
		return "0"
	}
	digits := []byte{}
	for n > 0 {
		digits = append([]byte{byte('0' + n%10)}, digits...)
		n /= 10
	}
	return string(digits)
}
