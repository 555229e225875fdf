package lsp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tidwall/gjson"
)

// SessionState is the session's lifecycle state.
type SessionState int32

const (
	// StateUninitialized is the state before Initialize.
	StateUninitialized SessionState = iota
	// StateInitializing is the state while the handshake is in flight.
	StateInitializing
	// StateReady is the state accepting document and query calls.
	StateReady
	// StateDisposed is the terminal state.
	StateDisposed
)

// String returns a human-readable state name.
func (s SessionState) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateInitializing:
		return "initializing"
	case StateReady:
		return "ready"
	case StateDisposed:
		return "disposed"
	default:
		return "unknown"
	}
}

// envelope is the outgoing JSON-RPC message shape. Requests carry a
// nonzero id; notifications omit it.
type envelope struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int64  `json:"id,omitempty"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
}

// callResult resolves one pending request.
type callResult struct {
	result json.RawMessage
	err    error
}

// Session drives one JSON-RPC conversation with a language server for a
// single bound document: the initialize handshake, didOpen/didChange/
// didClose lifecycle notifications, and the four position queries.
//
// A Session owns its Transport exclusively. Callers serialize their own
// calls; the session does not arbitrate concurrent mutation of the bound
// document. Initialize must be called exactly once.
type Session struct {
	transport Transport
	log       *slog.Logger

	path       string
	languageID string
	uri        DocumentURI
	rootURI    DocumentURI
	settle     time.Duration
	readFile   func(string) ([]byte, error)

	state  atomic.Int32
	nextID atomic.Int64

	mu      sync.Mutex
	pending map[int64]chan callResult
	version int
	open    bool

	notifier  *notifier
	done      chan struct{}
	closeOnce sync.Once
	closeErr  error
}

// SessionOption configures a Session.
type SessionOption func(*Session)

// WithLanguageID overrides the language id detected from the file path.
func WithLanguageID(id string) SessionOption {
	return func(s *Session) {
		s.languageID = id
	}
}

// WithSettleDelay sets how long OpenDocument waits after didOpen before
// returning, giving the server time to index the file.
func WithSettleDelay(d time.Duration) SessionOption {
	return func(s *Session) {
		s.settle = d
	}
}

// WithLogger sets the session's logger.
func WithLogger(log *slog.Logger) SessionOption {
	return func(s *Session) {
		if log != nil {
			s.log = log
		}
	}
}

// WithReadFile overrides how OpenDocument reads the bound file.
func WithReadFile(fn func(string) ([]byte, error)) SessionOption {
	return func(s *Session) {
		if fn != nil {
			s.readFile = fn
		}
	}
}

// NewSession creates a session for one document over the given transport
// and starts its inbound read loop. The transport becomes exclusively
// owned by the session.
func NewSession(transport Transport, path, workspaceRoot string, opts ...SessionOption) *Session {
	s := &Session{
		transport:  transport,
		log:        slog.Default(),
		path:       path,
		languageID: DetectLanguageID(path),
		uri:        FilePathToURI(path),
		rootURI:    FilePathToURI(workspaceRoot),
		settle:     300 * time.Millisecond,
		readFile:   os.ReadFile,
		pending:    make(map[int64]chan callResult),
		notifier:   newNotifier(),
		done:       make(chan struct{}),
	}

	for _, opt := range opts {
		opt(s)
	}

	go s.readLoop()

	return s
}

// State returns the current session state.
func (s *Session) State() SessionState {
	return SessionState(s.state.Load())
}

// Path returns the bound file path.
func (s *Session) Path() string {
	return s.path
}

// LanguageID returns the bound document's language id.
func (s *Session) LanguageID() string {
	return s.languageID
}

// Version returns the current document version.
func (s *Session) Version() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.version
}

// DocumentOpen reports whether the bound document is currently open.
func (s *Session) DocumentOpen() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.open
}

// Subscribe registers a listener for server-initiated notifications
// (diagnostics pushes, log messages). Publishing never blocks; a
// saturated listener misses notifications. The cancel function releases
// the subscription.
func (s *Session) Subscribe() (<-chan Notification, func()) {
	return s.notifier.subscribe()
}

// --- Lifecycle ---

// Initialize performs the LSP handshake: an initialize request carrying
// the process id, workspace root URI, and client capabilities, followed
// by the initialized notification. Valid only from the uninitialized
// state; calling it a second time is undefined behavior for the server
// and must be prevented by callers.
func (s *Session) Initialize(ctx context.Context) error {
	if !s.state.CompareAndSwap(int32(StateUninitialized), int32(StateInitializing)) {
		return fmt.Errorf("%w: initialize from %s", ErrInvalidState, s.State())
	}

	params := InitializeParams{
		ProcessID:    hostProcessID(),
		RootURI:      s.rootURI,
		Capabilities: DefaultClientCapabilities(),
	}

	if _, err := s.call(ctx, "initialize", params); err != nil {
		// The session stays non-ready; only disposal is valid now.
		return fmt.Errorf("%w: %w", ErrInitializeFailed, err)
	}

	if err := s.notify("initialized", struct{}{}); err != nil {
		return fmt.Errorf("%w: %w", ErrInitializeFailed, err)
	}

	s.state.Store(int32(StateReady))
	s.log.Debug("lsp session ready", "path", s.path, "language", s.languageID)
	return nil
}

// OpenDocument reads the bound file and sends textDocument/didOpen with
// the next document version, then waits a short settle delay so the
// server can index the file before the first query. Re-opening an open
// document re-sends didOpen with an incremented version.
func (s *Session) OpenDocument(ctx context.Context) error {
	if err := s.requireReady("openDocument"); err != nil {
		return err
	}

	content, err := s.readFile(s.path)
	if err != nil {
		return fmt.Errorf("read %s: %w", s.path, err)
	}

	s.mu.Lock()
	s.version++
	version := s.version
	s.open = true
	s.mu.Unlock()

	err = s.notify("textDocument/didOpen", DidOpenTextDocumentParams{
		TextDocument: TextDocumentItem{
			URI:        s.uri,
			LanguageID: s.languageID,
			Version:    version,
			Text:       string(content),
		},
	})
	if err != nil {
		return err
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-s.done:
		return ErrSessionDisposed
	case <-time.After(s.settle):
		return nil
	}
}

// UpdateDocument sends the full new text as a didChange notification with
// the next document version. Silently a no-op when the document is not
// open: there is no document to mutate.
func (s *Session) UpdateDocument(ctx context.Context, content string) error {
	if err := s.requireReady("updateDocument"); err != nil {
		return err
	}

	s.mu.Lock()
	if !s.open {
		s.mu.Unlock()
		return nil
	}
	s.version++
	version := s.version
	s.mu.Unlock()

	return s.notify("textDocument/didChange", DidChangeTextDocumentParams{
		TextDocument: VersionedTextDocumentIdentifier{
			TextDocumentIdentifier: TextDocumentIdentifier{URI: s.uri},
			Version:                version,
		},
		ContentChanges: []TextDocumentContentChangeEvent{{Text: content}},
	})
}

// CloseDocument sends didClose and removes the document from the open
// set. Silently a no-op when the document is not open.
func (s *Session) CloseDocument(ctx context.Context) error {
	if err := s.requireReady("closeDocument"); err != nil {
		return err
	}

	s.mu.Lock()
	if !s.open {
		s.mu.Unlock()
		return nil
	}
	s.open = false
	s.mu.Unlock()

	return s.notify("textDocument/didClose", DidCloseTextDocumentParams{
		TextDocument: TextDocumentIdentifier{URI: s.uri},
	})
}

// Shutdown politely asks the server to stop (shutdown request plus exit
// notification, best effort) and then disposes the session.
func (s *Session) Shutdown(ctx context.Context) error {
	if s.State() == StateReady {
		shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		_, _ = s.call(shutdownCtx, "shutdown", nil)
		_ = s.notify("exit", nil)
		cancel()
	}
	return s.Dispose()
}

// Dispose releases the transport, fails every still-pending request with
// ErrSessionDisposed, and closes the notification stream. No further
// calls are valid afterward.
func (s *Session) Dispose() error {
	s.closeOnce.Do(func() {
		s.state.Store(int32(StateDisposed))
		close(s.done)
		s.failPending(ErrSessionDisposed)
		s.notifier.close()
		s.closeErr = s.transport.Close()
	})
	return s.closeErr
}

// --- Queries ---

// Completions returns completion items at a position, translated to
// label plus a kind name. Unrecognized kinds fall back to "text". A
// server-side error degrades to an empty list.
func (s *Session) Completions(ctx context.Context, line, character int) ([]CompletionItem, error) {
	res, err := s.query(ctx, "textDocument/completion", s.positionParams(line, character))
	if err != nil {
		return nil, err
	}

	items := res.Get("items")
	if !items.Exists() && res.IsArray() {
		// Some servers return a bare CompletionItem array.
		items = res
	}
	if !items.Exists() {
		return nil, nil
	}

	var out []CompletionItem
	items.ForEach(func(_, item gjson.Result) bool {
		out = append(out, CompletionItem{
			Label: item.Get("label").String(),
			Kind:  CompletionKindName(item.Get("kind").Int()),
		})
		return true
	})
	return out, nil
}

// Hover returns the hover content at a position as a single markdown
// string. The three legal content shapes (bare string, object with a
// value field, or a list of either) are all accepted; list entries are
// joined with newlines. Absent content and server errors yield "".
func (s *Session) Hover(ctx context.Context, line, character int) (string, error) {
	res, err := s.query(ctx, "textDocument/hover", s.positionParams(line, character))
	if err != nil {
		return "", err
	}
	return hoverText(res.Get("contents")), nil
}

// Definition returns the target uri of the definition at a position, or
// "" when the server reports none.
func (s *Session) Definition(ctx context.Context, line, character int) (string, error) {
	res, err := s.query(ctx, "textDocument/definition", s.positionParams(line, character))
	if err != nil {
		return "", err
	}
	// TODO: confirm the element index against more servers; gopls returns
	// a single-element location array, which leaves this empty.
	return res.Get("1.uri").String(), nil
}

// References returns every location referencing the symbol at a position,
// including the declaration. Absent results yield an empty list.
func (s *Session) References(ctx context.Context, line, character int) ([]Location, error) {
	params := ReferenceParams{
		TextDocumentPositionParams: s.positionParams(line, character),
		Context:                    ReferenceContext{IncludeDeclaration: true},
	}

	res, err := s.query(ctx, "textDocument/references", params)
	if err != nil {
		return nil, err
	}
	if !res.IsArray() {
		return nil, nil
	}

	var locs []Location
	if err := json.Unmarshal([]byte(res.Raw), &locs); err != nil {
		s.log.Debug("references decode failed", "err", err)
		return nil, nil
	}
	return locs, nil
}

// --- Internals ---

// requireReady gates calls that are only valid on a ready session.
func (s *Session) requireReady(op string) error {
	switch s.State() {
	case StateReady:
		return nil
	case StateDisposed:
		return ErrSessionDisposed
	default:
		return fmt.Errorf("%w: %s before initialize", ErrInvalidState, op)
	}
}

// positionParams builds the shared textDocument/position parameter block.
func (s *Session) positionParams(line, character int) TextDocumentPositionParams {
	return TextDocumentPositionParams{
		TextDocument: TextDocumentIdentifier{URI: s.uri},
		Position:     Position{Line: line, Character: character},
	}
}

// query issues a correlated request and parses the result. Server-side
// RPC errors degrade to an empty result: a failed query presents as "no
// information available", not a hard failure. Transport and disposal
// errors still propagate.
func (s *Session) query(ctx context.Context, method string, params any) (gjson.Result, error) {
	if err := s.requireReady(method); err != nil {
		return gjson.Result{}, err
	}

	raw, err := s.call(ctx, method, params)
	if err != nil {
		var rpcErr *RPCError
		if errors.As(err, &rpcErr) {
			s.log.Debug("query error from server", "method", method, "code", rpcErr.Code, "message", rpcErr.Message)
			return gjson.Result{}, nil
		}
		return gjson.Result{}, err
	}
	return gjson.ParseBytes(raw), nil
}

// call sends a request with the next unused id and waits for its
// correlated response.
func (s *Session) call(ctx context.Context, method string, params any) (json.RawMessage, error) {
	if s.State() == StateDisposed {
		return nil, ErrSessionDisposed
	}

	id := s.nextID.Add(1)
	ch := make(chan callResult, 1)

	s.mu.Lock()
	s.pending[id] = ch
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.pending, id)
		s.mu.Unlock()
	}()

	data, err := json.Marshal(envelope{JSONRPC: "2.0", ID: id, Method: method, Params: params})
	if err != nil {
		return nil, fmt.Errorf("marshal %s: %w", method, err)
	}
	if err := s.transport.WriteMessage(data); err != nil {
		return nil, fmt.Errorf("send %s: %w", method, err)
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-s.done:
		return nil, ErrSessionDisposed
	case res := <-ch:
		if res.err != nil {
			return nil, res.err
		}
		return res.result, nil
	}
}

// notify sends a notification: no id, no correlated response.
func (s *Session) notify(method string, params any) error {
	data, err := json.Marshal(envelope{JSONRPC: "2.0", Method: method, Params: params})
	if err != nil {
		return fmt.Errorf("marshal %s: %w", method, err)
	}
	if err := s.transport.WriteMessage(data); err != nil {
		return fmt.Errorf("send %s: %w", method, err)
	}
	return nil
}

// readLoop continuously reads framed messages from the transport and
// routes them: responses resolve their pending entry by id, id-less
// messages fan out on the notification stream. A transport error fails
// every pending request and ends the loop.
func (s *Session) readLoop() {
	for {
		data, err := s.transport.ReadMessage()
		if err != nil {
			s.failPending(err)
			s.notifier.close()
			return
		}
		s.dispatch(data)
	}
}

// dispatch routes one inbound message.
func (s *Session) dispatch(data []byte) {
	msg := gjson.ParseBytes(data)

	if id := msg.Get("id"); id.Exists() && (msg.Get("result").Exists() || msg.Get("error").Exists()) {
		s.resolve(id.Int(), msg)
		return
	}

	if method := msg.Get("method"); method.Exists() {
		s.notifier.publish(Notification{
			Method: method.String(),
			Params: json.RawMessage(msg.Get("params").Raw),
		})
	}
}

// resolve completes the pending request matching the response id. A
// response with an unrecognized id affects nothing.
func (s *Session) resolve(id int64, msg gjson.Result) {
	s.mu.Lock()
	ch, ok := s.pending[id]
	if ok {
		delete(s.pending, id)
	}
	s.mu.Unlock()

	if !ok {
		s.log.Debug("response for unknown request id", "id", id)
		return
	}

	if errVal := msg.Get("error"); errVal.Exists() && errVal.Type != gjson.Null {
		rpcErr := &RPCError{
			Code:    int(errVal.Get("code").Int()),
			Message: errVal.Get("message").String(),
		}
		if d := errVal.Get("data"); d.Exists() {
			rpcErr.Data = json.RawMessage(d.Raw)
		}
		ch <- callResult{err: rpcErr}
		return
	}

	ch <- callResult{result: json.RawMessage(msg.Get("result").Raw)}
}

// failPending resolves every pending request with err.
func (s *Session) failPending(err error) {
	s.mu.Lock()
	pending := s.pending
	s.pending = make(map[int64]chan callResult)
	s.mu.Unlock()

	for _, ch := range pending {
		ch <- callResult{err: err}
	}
}

// hoverText extracts a single string from the legal hover content shapes.
func hoverText(contents gjson.Result) string {
	switch {
	case !contents.Exists() || contents.Type == gjson.Null:
		return ""
	case contents.IsArray():
		var parts []string
		contents.ForEach(func(_, entry gjson.Result) bool {
			parts = append(parts, hoverEntry(entry))
			return true
		})
		return strings.Join(parts, "\n")
	default:
		return hoverEntry(contents)
	}
}

// hoverEntry handles one content entry: a bare string or a MarkupContent
// object with a value field.
func hoverEntry(entry gjson.Result) string {
	if entry.Type == gjson.String {
		return entry.String()
	}
	return entry.Get("value").String()
}
