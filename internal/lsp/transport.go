package lsp

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/tliron/commonlog"
)

// Handler serves requests and notifications read by a Transport. For a
// notification the result is discarded.
type Handler interface {
	Handle(ctx context.Context, method string, params json.RawMessage) (any, error)
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, method string, params json.RawMessage) (any, error)

// Handle implements Handler.
func (f HandlerFunc) Handle(ctx context.Context, method string, params json.RawMessage) (any, error) {
	return f(ctx, method, params)
}

// Transport handles JSON-RPC 2.0 communication over stdio.
// It implements the LSP base protocol with Content-Length headers.
//
// Requests are served concurrently, each in its own goroutine.
// Notifications are served one at a time in arrival order so document
// changes are applied in sequence.
type Transport struct {
	reader *bufio.Reader
	writer io.Writer
	closer io.Closer
	log    commonlog.Logger

	writeMu sync.Mutex

	mu      sync.Mutex
	nextID  atomic.Int64
	pending map[int64]chan *message

	inflight sync.WaitGroup
	closed   atomic.Bool
	done     chan struct{}
}

// message is any JSON-RPC message. Requests carry ID and Method,
// notifications only Method, responses ID and Result or Error.
type message struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method,omitempty"`
	Params  json.RawMessage `json:"params,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *RPCError       `json:"error,omitempty"`
}

// outgoing request or notification.
type request struct {
	JSONRPC string `json:"jsonrpc"`
	ID      *int64 `json:"id,omitempty"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
}

type resultResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  any             `json:"result"`
}

type errorResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Error   *RPCError       `json:"error"`
}

// NewTransport creates a new transport over the given connection.
// The conn must support reading and writing (typically stdin/stdout pipes).
func NewTransport(r io.Reader, w io.Writer, c io.Closer) *Transport {
	return &Transport{
		reader:  bufio.NewReaderSize(r, 64*1024),
		writer:  w,
		closer:  c,
		log:     commonlog.GetLogger("endpointls.lsp.transport"),
		pending: make(map[int64]chan *message),
		done:    make(chan struct{}),
	}
}

// Serve reads messages until the connection ends, the context is
// cancelled or the transport is closed, then waits for in-flight requests.
// A clean end of input returns nil.
func (t *Transport) Serve(ctx context.Context, h Handler) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	defer t.inflight.Wait()

	go func() {
		select {
		case <-ctx.Done():
			t.Close()
		case <-t.done:
		}
	}()

	for {
		msg, err := t.readMessage()
		if err != nil {
			if t.closed.Load() || errors.Is(err, io.EOF) || errors.Is(err, io.ErrClosedPipe) {
				return nil
			}
			if errors.Is(err, ErrMissingContentLength) {
				t.log.Warning("skipping message", "error", err)
				continue
			}
			return fmt.Errorf("read message: %w", err)
		}
		t.dispatch(ctx, h, msg)
	}
}

// Close closes the transport and releases resources.
func (t *Transport) Close() error {
	if t.closed.Swap(true) {
		return nil // Already closed
	}
	close(t.done)

	// Callers waiting on pending channels will receive from t.done instead.
	t.mu.Lock()
	t.pending = make(map[int64]chan *message)
	t.mu.Unlock()

	if t.closer != nil {
		return t.closer.Close()
	}
	return nil
}

// IsClosed returns true if the transport has been closed.
func (t *Transport) IsClosed() bool {
	return t.closed.Load()
}

// Done is closed when the transport closes.
func (t *Transport) Done() <-chan struct{} {
	return t.done
}

// Call sends a request to the client and waits for its response.
func (t *Transport) Call(ctx context.Context, method string, params any, result any) error {
	if t.closed.Load() {
		return ErrShutdown
	}

	id := t.nextID.Add(1)
	ch := make(chan *message, 1)

	t.mu.Lock()
	t.pending[id] = ch
	t.mu.Unlock()

	defer func() {
		t.mu.Lock()
		delete(t.pending, id)
		t.mu.Unlock()
	}()

	if err := t.send(&request{JSONRPC: "2.0", ID: &id, Method: method, Params: params}); err != nil {
		return fmt.Errorf("send request: %w", err)
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.done:
		return ErrShutdown
	case resp := <-ch:
		if resp.Error != nil {
			return resp.Error
		}
		if result != nil && len(resp.Result) > 0 {
			if err := json.Unmarshal(resp.Result, result); err != nil {
				return fmt.Errorf("unmarshal result: %w", err)
			}
		}
		return nil
	}
}

// Notify sends a notification (no response expected).
func (t *Transport) Notify(_ context.Context, method string, params any) error {
	if t.closed.Load() {
		return ErrShutdown
	}
	return t.send(&request{JSONRPC: "2.0", Method: method, Params: params})
}

// dispatch routes a message by its shape.
func (t *Transport) dispatch(ctx context.Context, h Handler, data []byte) {
	var msg message
	if err := json.Unmarshal(data, &msg); err != nil {
		t.log.Warning("malformed message", "error", err)
		t.reply(json.RawMessage("null"), nil, &RPCError{Code: CodeParseError, Message: err.Error()})
		return
	}

	hasID := len(msg.ID) > 0 && string(msg.ID) != "null"
	switch {
	case msg.Method == "" && hasID:
		t.handleResponse(&msg)

	case msg.Method != "" && hasID:
		t.inflight.Add(1)
		go func() {
			defer t.inflight.Done()
			result, err := h.Handle(ctx, msg.Method, msg.Params)
			if err != nil {
				t.reply(msg.ID, nil, toRPCError(err))
				return
			}
			t.reply(msg.ID, result, nil)
		}()

	case msg.Method != "":
		if _, err := h.Handle(ctx, msg.Method, msg.Params); err != nil {
			t.log.Warning("notification failed", "method", msg.Method, "error", err)
		}
	}
}

func (t *Transport) reply(id json.RawMessage, result any, rpcErr *RPCError) {
	var err error
	if rpcErr != nil {
		err = t.send(&errorResponse{JSONRPC: "2.0", ID: id, Error: rpcErr})
	} else {
		err = t.send(&resultResponse{JSONRPC: "2.0", ID: id, Result: result})
	}
	if err != nil && !t.closed.Load() {
		t.log.Error("write response", "id", string(id), "error", err)
	}
}

// handleResponse routes a response to its waiting caller.
func (t *Transport) handleResponse(msg *message) {
	id, err := strconv.ParseInt(strings.Trim(string(msg.ID), `"`), 10, 64)
	if err != nil {
		return
	}

	t.mu.Lock()
	ch, ok := t.pending[id]
	if ok {
		delete(t.pending, id)
	}
	t.mu.Unlock()

	if ok {
		select {
		case ch <- msg:
		default:
		}
	}
}

// send writes a message with LSP content-length header.
func (t *Transport) send(msg any) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	header := fmt.Sprintf("Content-Length: %d\r\n\r\n", len(data))

	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	if _, err := io.WriteString(t.writer, header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	if _, err := t.writer.Write(data); err != nil {
		return fmt.Errorf("write body: %w", err)
	}
	return nil
}

// readMessage reads a single LSP message.
func (t *Transport) readMessage() ([]byte, error) {
	var contentLength int
	for {
		line, err := t.reader.ReadString('\n')
		if err != nil {
			return nil, err
		}
		line = strings.TrimSpace(line)
		if line == "" {
			break // End of headers
		}
		name, value, ok := strings.Cut(line, ":")
		if ok && strings.EqualFold(strings.TrimSpace(name), "content-length") {
			if n, err := strconv.Atoi(strings.TrimSpace(value)); err == nil {
				contentLength = n
			}
		}
		// Ignore Content-Type and other headers
	}

	if contentLength <= 0 {
		return nil, ErrMissingContentLength
	}

	body := make([]byte, contentLength)
	if _, err := io.ReadFull(t.reader, body); err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	return body, nil
}
