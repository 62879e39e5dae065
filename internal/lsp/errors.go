package lsp

import (
	"errors"
	"fmt"
)

// Standard errors returned by the LSP server.
var (
	// ErrShutdown indicates the transport has been closed.
	ErrShutdown = errors.New("lsp transport shut down")

	// ErrNotInitialized indicates a request arrived before initialize.
	ErrNotInitialized = errors.New("server not initialized")

	// ErrDocumentNotOpen indicates the document is not open.
	ErrDocumentNotOpen = errors.New("document not open")

	// ErrMissingContentLength indicates a message header without Content-Length.
	ErrMissingContentLength = errors.New("missing Content-Length header")
)

// RPCError represents a JSON-RPC error.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// Error implements the error interface.
func (e *RPCError) Error() string {
	if e.Data != nil {
		return fmt.Sprintf("rpc error %d: %s (data: %v)", e.Code, e.Message, e.Data)
	}
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

// Standard JSON-RPC error codes.
const (
	// JSON-RPC standard errors
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603

	// LSP-specific errors
	CodeServerNotInitialized = -32002
	CodeRequestCancelled     = -32800
)

// toRPCError maps a handler error to the error sent on the wire.
func toRPCError(err error) *RPCError {
	var rpcErr *RPCError
	switch {
	case errors.As(err, &rpcErr):
		return rpcErr
	case errors.Is(err, ErrNotInitialized):
		return &RPCError{Code: CodeServerNotInitialized, Message: err.Error()}
	default:
		return &RPCError{Code: CodeInternalError, Message: err.Error()}
	}
}
