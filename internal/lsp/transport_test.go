package lsp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"kr.dev/diff"
)

// pipePair connects two transports back to back. Each side closes its
// own read end, which also fails writes from the other side.
type pipePair struct {
	client, server    *Transport
	clientErr, srvErr chan error
	c2sWriter         *io.PipeWriter
}

func newPipePair(t *testing.T, clientH, serverH Handler) *pipePair {
	t.Helper()
	c2sR, c2sW := io.Pipe()
	s2cR, s2cW := io.Pipe()

	p := &pipePair{
		client:    NewTransport(s2cR, c2sW, s2cR),
		server:    NewTransport(c2sR, s2cW, c2sR),
		clientErr: make(chan error, 1),
		srvErr:    make(chan error, 1),
		c2sWriter: c2sW,
	}
	ctx, cancel := context.WithCancel(context.Background())
	go func() { p.clientErr <- p.client.Serve(ctx, clientH) }()
	go func() { p.srvErr <- p.server.Serve(ctx, serverH) }()

	t.Cleanup(func() {
		cancel()
		p.client.Close()
		p.server.Close()
		for _, ch := range []chan error{p.clientErr, p.srvErr} {
			select {
			case err := <-ch:
				if err != nil {
					t.Errorf("Serve() error = %v", err)
				}
			case <-time.After(2 * time.Second):
				t.Error("Serve() did not return")
			}
		}
	})
	return p
}

func noHandler() Handler {
	return HandlerFunc(func(context.Context, string, json.RawMessage) (any, error) {
		return nil, nil
	})
}

func testContext(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestTransport_CallAndReply(t *testing.T) {
	echo := HandlerFunc(func(_ context.Context, method string, params json.RawMessage) (any, error) {
		var in map[string]int
		if err := json.Unmarshal(params, &in); err != nil {
			return nil, err
		}
		return map[string]any{"method": method, "sum": in["a"] + in["b"]}, nil
	})
	p := newPipePair(t, noHandler(), echo)

	var got struct {
		Method string `json:"method"`
		Sum    int    `json:"sum"`
	}
	if err := p.client.Call(testContext(t), "math/add", map[string]int{"a": 2, "b": 3}, &got); err != nil {
		t.Fatalf("Call() error = %v", err)
	}
	if got.Method != "math/add" || got.Sum != 5 {
		t.Errorf("Call() result = %+v", got)
	}
}

func TestTransport_ErrorReply(t *testing.T) {
	h := HandlerFunc(func(_ context.Context, method string, _ json.RawMessage) (any, error) {
		if method == "bad" {
			return nil, &RPCError{Code: CodeInvalidParams, Message: "nope"}
		}
		return nil, ErrNotInitialized
	})
	p := newPipePair(t, noHandler(), h)
	ctx := testContext(t)

	tests := []struct {
		method string
		code   int
	}{
		{"bad", CodeInvalidParams},
		{"early", CodeServerNotInitialized},
	}
	for _, tt := range tests {
		err := p.client.Call(ctx, tt.method, nil, nil)
		var rpcErr *RPCError
		if !errors.As(err, &rpcErr) {
			t.Fatalf("Call(%s) error = %v, want RPCError", tt.method, err)
		}
		if rpcErr.Code != tt.code {
			t.Errorf("Call(%s) code = %d, want %d", tt.method, rpcErr.Code, tt.code)
		}
	}
}

func TestTransport_NotificationsInOrder(t *testing.T) {
	var (
		mu  sync.Mutex
		got []string
	)
	done := make(chan struct{})
	h := HandlerFunc(func(_ context.Context, method string, params json.RawMessage) (any, error) {
		var v string
		json.Unmarshal(params, &v)
		mu.Lock()
		got = append(got, v)
		n := len(got)
		mu.Unlock()
		if n == 5 {
			close(done)
		}
		return nil, nil
	})
	p := newPipePair(t, noHandler(), h)
	ctx := testContext(t)

	want := []string{"a", "b", "c", "d", "e"}
	for _, v := range want {
		if err := p.client.Notify(ctx, "note", v); err != nil {
			t.Fatalf("Notify() error = %v", err)
		}
	}
	select {
	case <-done:
	case <-ctx.Done():
		t.Fatal("notifications not delivered")
	}
	mu.Lock()
	defer mu.Unlock()
	diff.Test(t, t.Errorf, got, want)
}

func TestTransport_ServerToClientCall(t *testing.T) {
	client := HandlerFunc(func(_ context.Context, method string, _ json.RawMessage) (any, error) {
		return "pong:" + method, nil
	})
	p := newPipePair(t, client, noHandler())

	var got string
	if err := p.server.Call(testContext(t), "ping", nil, &got); err != nil {
		t.Fatalf("Call() error = %v", err)
	}
	if got != "pong:ping" {
		t.Errorf("Call() = %q", got)
	}
}

func TestTransport_SkipsMessageWithoutContentLength(t *testing.T) {
	got := make(chan string, 1)
	h := HandlerFunc(func(_ context.Context, method string, _ json.RawMessage) (any, error) {
		got <- method
		return nil, nil
	})
	p := newPipePair(t, noHandler(), h)

	body := `{"jsonrpc":"2.0","method":"ok"}`
	raw := "Content-Type: application/json\r\n\r\n" +
		fmt.Sprintf("Content-Length: %d\r\n\r\n", len(body)) + body
	if _, err := io.WriteString(p.c2sWriter, raw); err != nil {
		t.Fatalf("write: %v", err)
	}

	select {
	case m := <-got:
		if m != "ok" {
			t.Errorf("handled %q, want ok", m)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("message after bad header not handled")
	}
}

func TestTransport_PlainErrorIsInternal(t *testing.T) {
	h := HandlerFunc(func(context.Context, string, json.RawMessage) (any, error) {
		return nil, errors.New("boom")
	})
	p := newPipePair(t, noHandler(), h)

	err := p.client.Call(testContext(t), "anything", nil, nil)
	var rpcErr *RPCError
	if !errors.As(err, &rpcErr) || rpcErr.Code != CodeInternalError {
		t.Errorf("Call() error = %v, want internal error", err)
	}
}

func TestTransport_ClosedTransport(t *testing.T) {
	r, w := io.Pipe()
	tr := NewTransport(r, w, r)
	if err := tr.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if !tr.IsClosed() {
		t.Error("IsClosed() = false after Close")
	}
	select {
	case <-tr.Done():
	default:
		t.Error("Done() not closed")
	}
	if err := tr.Notify(context.Background(), "x", nil); !errors.Is(err, ErrShutdown) {
		t.Errorf("Notify() error = %v, want ErrShutdown", err)
	}
	if err := tr.Call(context.Background(), "x", nil, nil); !errors.Is(err, ErrShutdown) {
		t.Errorf("Call() error = %v, want ErrShutdown", err)
	}
	// A second close is a no-op.
	if err := tr.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
}
