package lsp

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

// SocketTransport speaks JSON-RPC over a WebSocket connection. The socket
// is message-oriented, so each WebSocket message carries exactly one
// JSON-RPC message and no extra framing is needed. Used where subprocess
// spawning is unavailable.
type SocketTransport struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
	closed  atomic.Bool
}

// DialSocket connects to a language server's WebSocket endpoint.
func DialSocket(ctx context.Context, url string) (*SocketTransport, error) {
	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial %s: %s: %w", url, resp.Status, err)
		}
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}
	return &SocketTransport{conn: conn}, nil
}

// NewSocketTransport wraps an already-established WebSocket connection.
func NewSocketTransport(conn *websocket.Conn) *SocketTransport {
	return &SocketTransport{conn: conn}
}

// WriteMessage sends one JSON-RPC message as a single WebSocket message.
func (t *SocketTransport) WriteMessage(data []byte) error {
	if t.closed.Load() {
		return ErrTransportClosed
	}

	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	if err := t.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("%w: %w", ErrTransportClosed, err)
	}
	return nil
}

// ReadMessage blocks until the next WebSocket message arrives. Messages
// are delivered in wire order.
func (t *SocketTransport) ReadMessage() ([]byte, error) {
	_, data, err := t.conn.ReadMessage()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTransportClosed, err)
	}
	return data, nil
}

// Close sends a close frame and releases the connection.
func (t *SocketTransport) Close() error {
	if t.closed.Swap(true) {
		return nil
	}

	// Best effort close handshake; the peer may already be gone.
	deadline := time.Now().Add(time.Second)
	_ = t.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)

	return t.conn.Close()
}
