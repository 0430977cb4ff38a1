// Package rpc implements a full-duplex JSON-RPC 2.0 peer over a framed
// transport, per spec section 4.2. It is a generalization of the teacher's
// synchronous request/response Transport (clangd-query's internal/lsp
// jsonrpc.go): rather than blocking a single in-flight request at a time,
// a background reader goroutine demultiplexes arriving responses,
// notifications, and server-initiated requests concurrently, so our
// outgoing requests, our outgoing notifications, and the server's
// incoming traffic can all be in flight on one connection.
package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/cxxls/clangd-indexcore/internal/framing"
	"github.com/cxxls/clangd-indexcore/internal/logger"
)

// Standard JSON-RPC 2.0 error codes.
const (
	ParseError     = -32700
	InvalidRequest = -32600
	MethodNotFound = -32601
	InvalidParams  = -32602
	InternalError  = -32603
)

// ErrConnectionClosed is returned by SendRequest/SendNotification once the
// dispatch is closed: by Close, by a failed send, or by the reader loop
// observing the transport die.
var ErrConnectionClosed = errors.New("rpc: connection closed")

// Error is a JSON-RPC error object, returned verbatim to callers of
// SendRequest when the server replies with an error (spec §7 kind 3).
type Error struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

type request struct {
	Jsonrpc string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

type response struct {
	Jsonrpc string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *Error          `json:"error,omitempty"`
}

type wireMsg struct {
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method,omitempty"`
	Params  json.RawMessage `json:"params,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *Error          `json:"error,omitempty"`
	Jsonrpc string          `json:"jsonrpc,omitempty"`
}

// NotificationHandler processes a server-to-client notification.
type NotificationHandler func(params json.RawMessage)

// RequestHandler answers a server-to-client request. Returning an error
// produces a JSON-RPC error response with InternalError unless the error
// is a *Error, in which case its Code/Message are used verbatim.
type RequestHandler func(ctx context.Context, params json.RawMessage) (interface{}, error)

// pendingSlot is the one-shot response slot for a single outgoing request.
type pendingSlot struct {
	ch chan response
}

// Dispatch is a full-duplex JSON-RPC 2.0 peer (spec §4.2).
type Dispatch struct {
	framer *framing.Framer
	log    logger.Logger

	nextID int64

	mu      sync.Mutex
	pending map[string]*pendingSlot
	closed  bool
	lastErr error

	notifMu  sync.RWMutex
	notifs   map[string]NotificationHandler
	reqMu    sync.RWMutex
	reqs     map[string]RequestHandler
	readerWG sync.WaitGroup
}

// New creates a Dispatch over an already-framed transport. Call Start to
// begin the background reader.
func New(framer *framing.Framer, log logger.Logger) *Dispatch {
	if log == nil {
		log = &logger.NullLogger{}
	}
	return &Dispatch{
		framer:  framer,
		log:     log,
		pending: make(map[string]*pendingSlot),
		notifs:  make(map[string]NotificationHandler),
		reqs:    make(map[string]RequestHandler),
	}
}

// RegisterNotificationHandler installs the handler invoked for every
// incoming notification with the given method. Only one handler is kept
// per method.
func (d *Dispatch) RegisterNotificationHandler(method string, h NotificationHandler) {
	d.notifMu.Lock()
	defer d.notifMu.Unlock()
	d.notifs[method] = h
}

// RegisterRequestHandler installs the handler invoked for every incoming
// server-to-client request with the given method.
func (d *Dispatch) RegisterRequestHandler(method string, h RequestHandler) {
	d.reqMu.Lock()
	defer d.reqMu.Unlock()
	d.reqs[method] = h
}

// Start launches the background reader goroutine. It must be called
// exactly once.
func (d *Dispatch) Start() {
	d.readerWG.Add(1)
	go d.readLoop()
}

// Wait blocks until the reader goroutine has exited (the transport died
// or Close was called).
func (d *Dispatch) Wait() {
	d.readerWG.Wait()
}

// SendRequest sends a JSON-RPC request and blocks until the matching
// response arrives, ctx is done, or the connection closes. Cancelling ctx
// frees the request's ID and discards any late response; it does not send
// a cancellation notification (the LSP client layer is responsible for
// that if the method it wraps supports it).
func (d *Dispatch) SendRequest(ctx context.Context, method string, params interface{}) (json.RawMessage, error) {
	paramsJSON, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("rpc: encoding params for %s: %w", method, err)
	}

	id := strconv.FormatInt(atomic.AddInt64(&d.nextID, 1), 10)
	idJSON, _ := json.Marshal(id)

	slot := &pendingSlot{ch: make(chan response, 1)}

	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil, ErrConnectionClosed
	}
	d.pending[id] = slot
	d.mu.Unlock()

	// Always clean up the slot, win or lose, so a cancelled/timed-out
	// request never leaks and a late response is silently discarded.
	defer func() {
		d.mu.Lock()
		delete(d.pending, id)
		d.mu.Unlock()
	}()

	req := request{
		Jsonrpc: "2.0",
		ID:      idJSON,
		Method:  method,
		Params:  paramsJSON,
	}
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("rpc: encoding request %s: %w", method, err)
	}
	if err := d.framer.Send(body); err != nil {
		d.markClosed(err)
		return nil, ErrConnectionClosed
	}

	select {
	case resp := <-slot.ch:
		if resp.Error != nil {
			return nil, resp.Error
		}
		return resp.Result, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// SendNotification sends a fire-and-forget JSON-RPC notification.
func (d *Dispatch) SendNotification(method string, params interface{}) error {
	paramsJSON, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("rpc: encoding params for %s: %w", method, err)
	}

	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return ErrConnectionClosed
	}
	d.mu.Unlock()

	notif := struct {
		Jsonrpc string          `json:"jsonrpc"`
		Method  string          `json:"method"`
		Params  json.RawMessage `json:"params,omitempty"`
	}{"2.0", method, paramsJSON}

	body, err := json.Marshal(notif)
	if err != nil {
		return fmt.Errorf("rpc: encoding notification %s: %w", method, err)
	}
	if err := d.framer.Send(body); err != nil {
		d.markClosed(err)
		return ErrConnectionClosed
	}
	return nil
}

// Close marks the dispatch closed, so SendRequest/SendNotification calls
// made after it return ErrConnectionClosed at once. It does not wake
// SendRequest calls already waiting: those return on a response, when
// their ctx is done, or when the reader loop fails every pending slot
// after a transport error.
func (d *Dispatch) Close() {
	d.markClosed(ErrConnectionClosed)
}

func (d *Dispatch) markClosed(err error) {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	d.lastErr = err
	d.mu.Unlock()
}

// readLoop is the single consumer of framer.Receive. It never blocks on
// pending-slot delivery (channels are buffered 1) and never blocks on
// notification/request handler execution longer than the handler itself
// takes, since handlers run synchronously in arrival order per spec §4.2's
// notification-ordering guarantee. Server *requests*, which may be slow,
// are answered from their own goroutine so a slow tool-side handler never
// stalls delivery of the next message.
func (d *Dispatch) readLoop() {
	defer d.readerWG.Done()
	for {
		body, err := d.framer.Receive()
		if err != nil {
			d.markClosed(err)
			d.failAllPending(err)
			return
		}

		var msg wireMsg
		if err := json.Unmarshal(body, &msg); err != nil {
			d.log.Error("rpc: discarding unparsable message: %v", err)
			continue
		}

		switch {
		case len(msg.ID) > 0 && (msg.Result != nil || msg.Error != nil):
			d.deliverResponse(msg)
		case len(msg.ID) > 0 && msg.Method != "":
			go d.handleServerRequest(msg)
		case msg.Method != "":
			d.handleNotification(msg)
		default:
			d.log.Error("rpc: discarding malformed message with no id/method")
		}
	}
}

func (d *Dispatch) deliverResponse(msg wireMsg) {
	var id string
	if err := json.Unmarshal(msg.ID, &id); err != nil {
		// Some servers send numeric IDs for some responses; normalize.
		id = string(msg.ID)
	}

	d.mu.Lock()
	slot, ok := d.pending[id]
	d.mu.Unlock()
	if !ok {
		// Either already cancelled/timed out, or not ours. Discard.
		return
	}

	slot.ch <- response{ID: msg.ID, Result: msg.Result, Error: msg.Error}
}

func (d *Dispatch) handleNotification(msg wireMsg) {
	d.notifMu.RLock()
	h, ok := d.notifs[msg.Method]
	d.notifMu.RUnlock()
	if !ok {
		return
	}
	h(msg.Params)
}

func (d *Dispatch) handleServerRequest(msg wireMsg) {
	d.reqMu.RLock()
	h, ok := d.reqs[msg.Method]
	d.reqMu.RUnlock()

	var result interface{}
	var rpcErr *Error

	if !ok && msg.Method == "window/workDoneProgress/create" {
		// Acknowledged with a null-result success even with no handler
		// registered, per spec §4.2; a registered handler (the common
		// case, see lspclient.RegisterWorkDoneProgressCreate) still runs
		// below and is expected to return (nil, nil) itself.
		result = nil
	} else if !ok {
		rpcErr = &Error{Code: MethodNotFound, Message: fmt.Sprintf("method not found: %s", msg.Method)}
	} else {
		r, err := h(context.Background(), msg.Params)
		if err != nil {
			var asRPC *Error
			if errors.As(err, &asRPC) {
				rpcErr = asRPC
			} else {
				rpcErr = &Error{Code: InternalError, Message: err.Error()}
			}
		} else {
			result = r
		}
	}

	resultJSON, _ := json.Marshal(result)
	resp := response{Jsonrpc: "2.0", ID: msg.ID, Result: resultJSON, Error: rpcErr}
	if rpcErr != nil {
		resp.Result = nil
	}

	body, err := json.Marshal(resp)
	if err != nil {
		d.log.Error("rpc: encoding response to server request %s: %v", msg.Method, err)
		return
	}
	if err := d.framer.Send(body); err != nil {
		d.markClosed(err)
	}
}

func (d *Dispatch) failAllPending(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for id, slot := range d.pending {
		select {
		case slot.ch <- response{Error: &Error{Code: InternalError, Message: err.Error()}}:
		default:
		}
		delete(d.pending, id)
	}
}
