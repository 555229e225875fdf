package lsp

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Standard errors returned by the LSP session.
var (
	// ErrInitializeFailed indicates the server rejected the initialize
	// handshake. The session is only usable for disposal afterwards.
	ErrInitializeFailed = errors.New("lsp: initialize failed")

	// ErrInvalidState indicates a call was made from the wrong session state.
	ErrInvalidState = errors.New("lsp: invalid session state")

	// ErrSessionDisposed indicates the session has been disposed.
	ErrSessionDisposed = errors.New("lsp: session disposed")

	// ErrTransportClosed indicates the byte channel has ended or errored.
	// All pending and future requests fail with this error.
	ErrTransportClosed = errors.New("lsp: transport closed")

	// ErrProcessUnsupported indicates the platform cannot spawn server
	// processes; stdio transport construction fails fast with it.
	ErrProcessUnsupported = errors.New("lsp: process spawning unsupported on this platform")
)

// RPCError represents a JSON-RPC error object from the server.
type RPCError struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// Error implements the error interface.
func (e *RPCError) Error() string {
	if len(e.Data) > 0 {
		return fmt.Sprintf("rpc error %d: %s (data: %s)", e.Code, e.Message, e.Data)
	}
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

// Standard JSON-RPC error codes.
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603

	// LSP-specific errors
	CodeServerNotInitialized = -32002
	CodeRequestCancelled     = -32800
	CodeContentModified      = -32801
)
