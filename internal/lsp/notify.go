package lsp

import (
	"encoding/json"
	"sync"
)

// Notification is a server-initiated message with no correlation id,
// e.g. textDocument/publishDiagnostics.
type Notification struct {
	Method string
	Params json.RawMessage
}

// subscriberBuffer is the per-subscriber channel capacity. Publishing
// never blocks: a saturated subscriber misses notifications instead of
// stalling the read loop.
const subscriberBuffer = 16

// notifier is a replay-none broadcast channel for server notifications.
type notifier struct {
	mu     sync.Mutex
	subs   map[int]chan Notification
	nextID int
	closed bool
}

func newNotifier() *notifier {
	return &notifier{subs: make(map[int]chan Notification)}
}

// subscribe registers a new listener. The returned cancel function is
// idempotent and releases the subscription.
func (n *notifier) subscribe() (<-chan Notification, func()) {
	n.mu.Lock()
	defer n.mu.Unlock()

	ch := make(chan Notification, subscriberBuffer)
	if n.closed {
		close(ch)
		return ch, func() {}
	}

	id := n.nextID
	n.nextID++
	n.subs[id] = ch

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			n.mu.Lock()
			defer n.mu.Unlock()
			if sub, ok := n.subs[id]; ok {
				delete(n.subs, id)
				close(sub)
			}
		})
	}
	return ch, cancel
}

// publish fans a notification out to every subscriber without blocking.
func (n *notifier) publish(note Notification) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.closed {
		return
	}
	for _, ch := range n.subs {
		select {
		case ch <- note:
		default:
			// Subscriber saturated, drop.
		}
	}
}

// close terminates every subscription. Further publishes are no-ops.
func (n *notifier) close() {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.closed {
		return
	}
	n.closed = true
	for id, ch := range n.subs {
		delete(n.subs, id)
		close(ch)
	}
}

// DecodeDiagnostics decodes a publishDiagnostics notification. The second
// return value is false for any other method or a malformed payload.
func DecodeDiagnostics(note Notification) (*PublishDiagnosticsParams, bool) {
	if note.Method != "textDocument/publishDiagnostics" {
		return nil, false
	}
	var params PublishDiagnosticsParams
	if err := json.Unmarshal(note.Params, &params); err != nil {
		return nil, false
	}
	return &params, true
}
