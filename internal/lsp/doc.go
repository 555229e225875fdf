// Package lsp drives a Language Server Protocol session for a single open
// document: the initialize handshake, open/change/close lifecycle with
// version bookkeeping, and correlated completion, hover, definition, and
// references queries over an abstract framed transport.
//
// # Architecture
//
//   - Session: one JSON-RPC 2.0 conversation bound to one document
//   - Transport: framing-only duplex channel (stdio subprocess or WebSocket)
//   - Notification stream: broadcast of server-initiated messages
//
// # Quick Start
//
//	transport, err := lsp.NewStdioTransport("gopls", nil)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	session := lsp.NewSession(transport, "/path/to/file.go", "/path/to")
//	defer session.Dispose()
//
//	if err := session.Initialize(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	if err := session.OpenDocument(ctx); err != nil {
//	    log.Fatal(err)
//	}
//
//	text, err := session.Hover(ctx, 10, 5)
//
// A Session is driven from a single control context; callers serialize
// their own calls. The inbound read loop is the session's only internal
// goroutine, and it touches shared state only through the pending table
// and the notification stream.
package lsp
