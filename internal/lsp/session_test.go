package lsp

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/tidwall/gjson"
)

// noReply marks a method the scripted server must leave pending.
const noReply = "-"

// fakeTransport is an in-memory Transport. Messages the session writes are
// recorded and also handed to an optional scripted responder.
type fakeTransport struct {
	mu     sync.Mutex
	sent   [][]byte
	reqs   chan []byte
	inbox  chan []byte
	closed atomic.Bool
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		reqs:  make(chan []byte, 64),
		inbox: make(chan []byte, 64),
	}
}

func (f *fakeTransport) WriteMessage(data []byte) error {
	if f.closed.Load() {
		return ErrTransportClosed
	}
	msg := append([]byte(nil), data...)
	f.mu.Lock()
	f.sent = append(f.sent, msg)
	f.mu.Unlock()
	select {
	case f.reqs <- msg:
	default:
	}
	return nil
}

func (f *fakeTransport) ReadMessage() ([]byte, error) {
	data, ok := <-f.inbox
	if !ok {
		return nil, fmt.Errorf("%w: test transport closed", ErrTransportClosed)
	}
	return data, nil
}

func (f *fakeTransport) Close() error {
	if f.closed.Swap(true) {
		return nil
	}
	close(f.inbox)
	return nil
}

func (f *fakeTransport) deliver(msg string) {
	f.inbox <- []byte(msg)
}

func (f *fakeTransport) sentMessages() []gjson.Result {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]gjson.Result, len(f.sent))
	for i, msg := range f.sent {
		out[i] = gjson.ParseBytes(msg)
	}
	return out
}

// waitSent blocks until the session has written at least n messages.
func (f *fakeTransport) waitSent(t *testing.T, n int) []gjson.Result {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		msgs := f.sentMessages()
		if len(msgs) >= n {
			return msgs
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("timed out waiting for %d sent messages, have %d", n, len(f.sentMessages()))
	return nil
}

// serve answers every request with the result JSON scripted for its
// method: missing methods get null, noReply leaves the request pending,
// and entries in errs become JSON-RPC error responses.
func (f *fakeTransport) serve(results, errs map[string]string) {
	go func() {
		for req := range f.reqs {
			msg := gjson.ParseBytes(req)
			id := msg.Get("id")
			if !id.Exists() {
				continue
			}
			method := msg.Get("method").String()
			if errBody, ok := errs[method]; ok {
				f.deliver(fmt.Sprintf(`{"jsonrpc":"2.0","id":%d,"error":%s}`, id.Int(), errBody))
				continue
			}
			result, ok := results[method]
			if !ok {
				result = "null"
			}
			if result == noReply {
				continue
			}
			f.deliver(fmt.Sprintf(`{"jsonrpc":"2.0","id":%d,"result":%s}`, id.Int(), result))
		}
	}()
}

func newTestSession(f *fakeTransport) *Session {
	return NewSession(f, "/work/main.go", "/work",
		WithSettleDelay(time.Millisecond),
		WithReadFile(func(string) ([]byte, error) {
			return []byte("package main\n"), nil
		}),
	)
}

// newReadySession returns a session past initialize and didOpen.
func newReadySession(t *testing.T, results, errs map[string]string) (*Session, *fakeTransport) {
	t.Helper()

	f := newFakeTransport()
	f.serve(results, errs)
	s := newTestSession(f)
	t.Cleanup(func() { s.Dispose() })

	ctx := context.Background()
	if err := s.Initialize(ctx); err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}
	if err := s.OpenDocument(ctx); err != nil {
		t.Fatalf("OpenDocument() error = %v", err)
	}
	return s, f
}

func TestInitializeHandshake(t *testing.T) {
	f := newFakeTransport()
	f.serve(map[string]string{"initialize": `{"capabilities":{}}`}, nil)
	s := newTestSession(f)
	defer s.Dispose()

	if err := s.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}
	if got := s.State(); got != StateReady {
		t.Errorf("State() = %v, want %v", got, StateReady)
	}

	msgs := f.waitSent(t, 2)

	init := msgs[0]
	if got := init.Get("method").String(); got != "initialize" {
		t.Errorf("first message method = %q, want initialize", got)
	}
	if got := init.Get("id").Int(); got != 1 {
		t.Errorf("initialize id = %d, want 1", got)
	}
	if !init.Get("params.processId").Exists() {
		t.Error("initialize params missing processId")
	}
	if got := init.Get("params.rootUri").String(); got != "file:///work" {
		t.Errorf("initialize rootUri = %q, want file:///work", got)
	}
	if !init.Get("params.capabilities.textDocument.hover").Exists() {
		t.Error("initialize params missing hover capability")
	}

	initialized := msgs[1]
	if got := initialized.Get("method").String(); got != "initialized" {
		t.Errorf("second message method = %q, want initialized", got)
	}
	if initialized.Get("id").Exists() {
		t.Error("initialized notification must not carry an id")
	}
}

func TestInitializeErrorResponse(t *testing.T) {
	f := newFakeTransport()
	f.serve(nil, map[string]string{
		"initialize": `{"code":-32603,"message":"server exploded"}`,
	})
	s := newTestSession(f)
	defer s.Dispose()

	err := s.Initialize(context.Background())
	if !errors.Is(err, ErrInitializeFailed) {
		t.Fatalf("Initialize() error = %v, want ErrInitializeFailed", err)
	}
	if got := s.State(); got == StateReady {
		t.Error("session became ready despite a failed handshake")
	}
}

func TestInitializeTwice(t *testing.T) {
	s, _ := newReadySession(t, nil, nil)

	err := s.Initialize(context.Background())
	if !errors.Is(err, ErrInvalidState) {
		t.Fatalf("second Initialize() error = %v, want ErrInvalidState", err)
	}
}

func TestQueryBeforeInitialize(t *testing.T) {
	f := newFakeTransport()
	s := newTestSession(f)
	defer s.Dispose()

	if _, err := s.Hover(context.Background(), 0, 0); !errors.Is(err, ErrInvalidState) {
		t.Errorf("Hover() before initialize error = %v, want ErrInvalidState", err)
	}
	if err := s.OpenDocument(context.Background()); !errors.Is(err, ErrInvalidState) {
		t.Errorf("OpenDocument() before initialize error = %v, want ErrInvalidState", err)
	}
}

func TestDocumentVersioning(t *testing.T) {
	s, f := newReadySession(t, nil, nil)
	ctx := context.Background()

	if err := s.UpdateDocument(ctx, "v2"); err != nil {
		t.Fatalf("UpdateDocument() error = %v", err)
	}
	if err := s.UpdateDocument(ctx, "v3"); err != nil {
		t.Fatalf("UpdateDocument() error = %v", err)
	}
	if got := s.Version(); got != 3 {
		t.Errorf("Version() = %d, want 3", got)
	}
	if err := s.CloseDocument(ctx); err != nil {
		t.Fatalf("CloseDocument() error = %v", err)
	}
	if s.DocumentOpen() {
		t.Error("DocumentOpen() = true after close")
	}

	before := len(f.sentMessages())
	// Not open anymore: both must be silent no-ops.
	if err := s.UpdateDocument(ctx, "v4"); err != nil {
		t.Fatalf("UpdateDocument() after close error = %v", err)
	}
	if err := s.CloseDocument(ctx); err != nil {
		t.Fatalf("second CloseDocument() error = %v", err)
	}
	if after := len(f.sentMessages()); after != before {
		t.Errorf("closed document still produced %d notifications", after-before)
	}

	var versions []int64
	var methods []string
	for _, msg := range f.sentMessages() {
		switch msg.Get("method").String() {
		case "textDocument/didOpen":
			methods = append(methods, "open")
			versions = append(versions, msg.Get("params.textDocument.version").Int())
		case "textDocument/didChange":
			methods = append(methods, "change")
			versions = append(versions, msg.Get("params.textDocument.version").Int())
		case "textDocument/didClose":
			methods = append(methods, "close")
		}
	}

	wantMethods := []string{"open", "change", "change", "close"}
	if len(methods) != len(wantMethods) {
		t.Fatalf("lifecycle notifications = %v, want %v", methods, wantMethods)
	}
	for i := range wantMethods {
		if methods[i] != wantMethods[i] {
			t.Fatalf("lifecycle notifications = %v, want %v", methods, wantMethods)
		}
	}
	for i, v := range versions {
		if v != int64(i+1) {
			t.Errorf("version %d = %d, want %d", i, v, i+1)
		}
	}
}

func TestReopenResendsDidOpen(t *testing.T) {
	s, f := newReadySession(t, nil, nil)

	if err := s.OpenDocument(context.Background()); err != nil {
		t.Fatalf("second OpenDocument() error = %v", err)
	}

	var opens []int64
	for _, msg := range f.sentMessages() {
		if msg.Get("method").String() == "textDocument/didOpen" {
			opens = append(opens, msg.Get("params.textDocument.version").Int())
		}
	}
	if len(opens) != 2 || opens[0] != 1 || opens[1] != 2 {
		t.Errorf("didOpen versions = %v, want [1 2]", opens)
	}
}

func TestRequestIDsUniqueIncreasing(t *testing.T) {
	s, f := newReadySession(t, nil, nil)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := s.Hover(ctx, 0, 0); err != nil {
			t.Fatalf("Hover() error = %v", err)
		}
	}

	var ids []int64
	for _, msg := range f.sentMessages() {
		if id := msg.Get("id"); id.Exists() {
			ids = append(ids, id.Int())
		}
	}

	// initialize plus three hovers.
	if len(ids) != 4 {
		t.Fatalf("request count = %d, want 4", len(ids))
	}
	for i, id := range ids {
		if id != int64(i+1) {
			t.Errorf("request id %d = %d, want %d", i, id, i+1)
		}
	}
}

func TestUnknownResponseIDIgnored(t *testing.T) {
	s, f := newReadySession(t, map[string]string{
		"textDocument/hover": `{"contents":"doc"}`,
	}, nil)

	f.deliver(`{"jsonrpc":"2.0","id":999,"result":{"contents":"stray"}}`)

	got, err := s.Hover(context.Background(), 0, 0)
	if err != nil {
		t.Fatalf("Hover() error = %v", err)
	}
	if got != "doc" {
		t.Errorf("Hover() = %q, want %q", got, "doc")
	}
}

func TestHoverContentShapes(t *testing.T) {
	tests := []struct {
		name   string
		result string
		want   string
	}{
		{name: "null result", result: "null", want: ""},
		{name: "bare string", result: `{"contents":"plain"}`, want: "plain"},
		{name: "value object", result: `{"contents":{"kind":"markdown","value":"b"}}`, want: "b"},
		{name: "mixed list", result: `{"contents":["a",{"value":"b"}]}`, want: "a\nb"},
		{name: "empty list", result: `{"contents":[]}`, want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, _ := newReadySession(t, map[string]string{
				"textDocument/hover": tt.result,
			}, nil)

			got, err := s.Hover(context.Background(), 2, 4)
			if err != nil {
				t.Fatalf("Hover() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("Hover() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestCompletionsTranslation(t *testing.T) {
	tests := []struct {
		name   string
		result string
		want   []CompletionItem
	}{
		{
			name:   "function kind",
			result: `{"items":[{"label":"foo","kind":3}]}`,
			want:   []CompletionItem{{Label: "foo", Kind: "function"}},
		},
		{
			name:   "unrecognized kind falls back to text",
			result: `{"items":[{"label":"weird","kind":999}]}`,
			want:   []CompletionItem{{Label: "weird", Kind: "text"}},
		},
		{
			name:   "bare array result",
			result: `[{"label":"bar","kind":6}]`,
			want:   []CompletionItem{{Label: "bar", Kind: "variable"}},
		},
		{name: "null result", result: "null", want: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, _ := newReadySession(t, map[string]string{
				"textDocument/completion": tt.result,
			}, nil)

			got, err := s.Completions(context.Background(), 1, 1)
			if err != nil {
				t.Fatalf("Completions() error = %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("Completions() = %v, want %v", got, tt.want)
			}
			for i := range tt.want {
				if got[i] != tt.want[i] {
					t.Errorf("item %d = %v, want %v", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestDefinitionSecondElement(t *testing.T) {
	tests := []struct {
		name   string
		result string
		want   string
	}{
		{
			name:   "two locations",
			result: `[{"uri":"file:///a.go"},{"uri":"file:///b.go"}]`,
			want:   "file:///b.go",
		},
		{name: "single location", result: `[{"uri":"file:///a.go"}]`, want: ""},
		{name: "null result", result: "null", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, _ := newReadySession(t, map[string]string{
				"textDocument/definition": tt.result,
			}, nil)

			got, err := s.Definition(context.Background(), 3, 9)
			if err != nil {
				t.Fatalf("Definition() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("Definition() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestReferences(t *testing.T) {
	s, f := newReadySession(t, map[string]string{
		"textDocument/references": `[
			{"uri":"file:///a.go","range":{"start":{"line":1,"character":2},"end":{"line":1,"character":5}}},
			{"uri":"file:///b.go","range":{"start":{"line":7,"character":0},"end":{"line":7,"character":3}}}
		]`,
	}, nil)

	got, err := s.References(context.Background(), 1, 2)
	if err != nil {
		t.Fatalf("References() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("References() returned %d locations, want 2", len(got))
	}
	if got[1].URI != "file:///b.go" || got[1].Range.Start.Line != 7 {
		t.Errorf("References()[1] = %+v", got[1])
	}

	var found bool
	for _, msg := range f.sentMessages() {
		if msg.Get("method").String() == "textDocument/references" {
			found = true
			if !msg.Get("params.context.includeDeclaration").Bool() {
				t.Error("references params missing includeDeclaration=true")
			}
		}
	}
	if !found {
		t.Fatal("no references request sent")
	}
}

func TestQueryServerErrorDegrades(t *testing.T) {
	s, _ := newReadySession(t, nil, map[string]string{
		"textDocument/hover":      `{"code":-32601,"message":"unsupported"}`,
		"textDocument/completion": `{"code":-32601,"message":"unsupported"}`,
	})
	ctx := context.Background()

	text, err := s.Hover(ctx, 0, 0)
	if err != nil || text != "" {
		t.Errorf("Hover() = (%q, %v), want (\"\", nil)", text, err)
	}
	items, err := s.Completions(ctx, 0, 0)
	if err != nil || len(items) != 0 {
		t.Errorf("Completions() = (%v, %v), want (empty, nil)", items, err)
	}
}

func TestDisposeFailsPendingRequests(t *testing.T) {
	s, f := newReadySession(t, map[string]string{
		"textDocument/hover": noReply,
	}, nil)

	results := make(chan error, 2)
	for i := 0; i < 2; i++ {
		go func() {
			_, err := s.Hover(context.Background(), 0, 0)
			results <- err
		}()
	}

	// initialize, initialized, didOpen, then the two hovers.
	f.waitSent(t, 5)

	if err := s.Dispose(); err != nil {
		t.Fatalf("Dispose() error = %v", err)
	}

	for i := 0; i < 2; i++ {
		select {
		case err := <-results:
			if !errors.Is(err, ErrSessionDisposed) {
				t.Errorf("pending request error = %v, want ErrSessionDisposed", err)
			}
		case <-time.After(2 * time.Second):
			t.Fatal("pending request hung after Dispose()")
		}
	}
}

func TestTransportFailureFailsPending(t *testing.T) {
	s, f := newReadySession(t, map[string]string{
		"textDocument/hover": noReply,
	}, nil)

	result := make(chan error, 1)
	go func() {
		_, err := s.Hover(context.Background(), 0, 0)
		result <- err
	}()

	f.waitSent(t, 4)
	f.Close() // read loop sees the channel end

	select {
	case err := <-result:
		if !errors.Is(err, ErrTransportClosed) {
			t.Errorf("pending request error = %v, want ErrTransportClosed", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("pending request hung after transport failure")
	}
}

func TestNotificationFanOut(t *testing.T) {
	s, f := newReadySession(t, nil, nil)

	ch1, cancel1 := s.Subscribe()
	defer cancel1()
	ch2, cancel2 := s.Subscribe()
	defer cancel2()

	f.deliver(`{"jsonrpc":"2.0","method":"textDocument/publishDiagnostics","params":{
		"uri":"file:///work/main.go",
		"diagnostics":[{"range":{"start":{"line":3,"character":0},"end":{"line":3,"character":5}},"severity":1,"message":"undefined: x"}]
	}}`)

	for i, ch := range []<-chan Notification{ch1, ch2} {
		select {
		case note := <-ch:
			params, ok := DecodeDiagnostics(note)
			if !ok {
				t.Fatalf("subscriber %d: DecodeDiagnostics() failed for %q", i, note.Method)
			}
			if len(params.Diagnostics) != 1 || params.Diagnostics[0].Severity != SeverityError {
				t.Errorf("subscriber %d: diagnostics = %+v", i, params.Diagnostics)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("subscriber %d never received the notification", i)
		}
	}
}

func TestSubscriptionClosedOnDispose(t *testing.T) {
	s, _ := newReadySession(t, nil, nil)

	ch, cancel := s.Subscribe()
	defer cancel()

	s.Dispose()

	select {
	case _, ok := <-ch:
		if ok {
			t.Error("expected closed channel after Dispose()")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("subscription channel not closed after Dispose()")
	}
}

func TestShutdownSendsExit(t *testing.T) {
	s, f := newReadySession(t, nil, nil)

	if err := s.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown() error = %v", err)
	}
	if got := s.State(); got != StateDisposed {
		t.Errorf("State() = %v, want %v", got, StateDisposed)
	}

	var sawShutdown, sawExit bool
	for _, msg := range f.sentMessages() {
		switch msg.Get("method").String() {
		case "shutdown":
			sawShutdown = true
		case "exit":
			sawExit = true
		}
	}
	if !sawShutdown || !sawExit {
		t.Errorf("shutdown=%v exit=%v, want both", sawShutdown, sawExit)
	}
}
