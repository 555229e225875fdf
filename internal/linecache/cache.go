// Package linecache maintains a per-line syntax highlight cache so large
// documents never re-tokenize the whole buffer on an edit. Validity is
// two-tier: a generation counter invalidates the entire cache in O(1),
// while per-line eviction reclaims the specifically touched lines eagerly;
// a stored-text equality check at lookup is the safety net for line-shift
// edits that eager eviction cannot prove.
package linecache

import (
	"log/slog"
	"runtime"
	"sort"
	"sync"

	"github.com/dshills/langlens/internal/highlight"
)

// SyncThreshold is the stale-line count at or below which PreHighlight
// tokenizes inline. Larger batches go to the worker pool: offload has
// fixed dispatch overhead that is wasteful for the handful of lines
// dirtied by a single keystroke, but keeps scrolling responsive when a
// large unseen range needs tokenizing at once.
const SyncThreshold = 50

// record is one cached line: the exact text last tokenized, the spans it
// produced, and the generation it was produced at. The record is valid
// only while both the text and the generation still match.
type record struct {
	text       string
	spans      []highlight.Span
	generation uint64
}

// Cache is a per-line span cache keyed by 0-based line index.
//
// The cache is mutated from the editor's single control context; the
// internal mutex exists only because offloaded batches merge from worker
// goroutines, not to support concurrent callers.
type Cache struct {
	tokenizer *highlight.Tokenizer
	log       *slog.Logger
	workers   int

	mu         sync.Mutex
	languageID string
	entries    map[int]*record
	dirty      map[int]struct{}
	generation uint64
	disposed   bool
	hits       uint64
	misses     uint64
}

// CacheOption configures a Cache.
type CacheOption func(*Cache)

// WithLogger sets the cache's logger.
func WithLogger(log *slog.Logger) CacheOption {
	return func(c *Cache) {
		if log != nil {
			c.log = log
		}
	}
}

// WithWorkers sets the worker count for offloaded batches.
func WithWorkers(n int) CacheOption {
	return func(c *Cache) {
		if n > 0 {
			c.workers = n
		}
	}
}

// New creates a cache tokenizing with the given tokenizer and language id.
// A nil tokenizer gets the default grammar registry and theme.
func New(tokenizer *highlight.Tokenizer, languageID string, opts ...CacheOption) *Cache {
	if tokenizer == nil {
		tokenizer = highlight.NewTokenizer(nil, nil)
	}

	c := &Cache{
		tokenizer:  tokenizer,
		log:        slog.Default(),
		workers:    runtime.NumCPU(),
		languageID: languageID,
		entries:    make(map[int]*record),
		dirty:      make(map[int]struct{}),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// LanguageID returns the current language id.
func (c *Cache) LanguageID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.languageID
}

// SetLanguage switches the language mode and drops the entire cache, since
// every cached span was produced under the old grammar.
func (c *Cache) SetLanguage(languageID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if languageID == c.languageID {
		return
	}
	c.languageID = languageID
	c.dropAllLocked()
}

// LineSpan returns the rendered spans for text at the given line index. A
// valid cached record (same generation, same stored text) is returned as
// is with no re-tokenization. Otherwise the line is tokenized, stored at
// the current generation, cleared from the dirty set, and returned.
// Tokenize failure degrades to a single unstyled span.
func (c *Cache) LineSpan(index int, text string) []highlight.Span {
	c.mu.Lock()
	if rec, ok := c.entries[index]; ok && rec.generation == c.generation && rec.text == text {
		c.hits++
		spans := rec.spans
		c.mu.Unlock()
		return spans
	}
	gen := c.generation
	lang := c.languageID
	c.mu.Unlock()

	spans := tokenizeOrPlain(c.tokenizer, text, lang)

	c.mu.Lock()
	c.misses++
	if !c.disposed {
		// An invalidation since the snapshot leaves this record stale by
		// generation, so the next lookup recomputes rather than serves it.
		c.entries[index] = &record{text: text, spans: spans, generation: gen}
		delete(c.dirty, index)
	}
	c.mu.Unlock()

	return spans
}

// InvalidateAll drops every cached record and bumps the generation. Use
// when the whole document content may have changed.
func (c *Cache) InvalidateAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.dropAllLocked()
}

// InvalidateLines evicts exactly the given line indices, marks them dirty,
// and bumps the generation. Use for scattered single-line edits.
func (c *Cache) InvalidateLines(lines ...int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, line := range lines {
		delete(c.entries, line)
		c.dirty[line] = struct{}{}
	}
	c.generation++
}

// InvalidateRange evicts lines [start, end], marks them dirty, evicts every
// cached record beyond end, and bumps the generation. Inserting or deleting
// whole lines shifts every subsequent line's content relative to its old
// entry, so index-keyed records beyond the touched range cannot be trusted;
// the eager drop is an optimization, the stored-text check at lookup is the
// correctness guarantee.
func (c *Cache) InvalidateRange(start, end int) {
	if start > end {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	for line := start; line <= end; line++ {
		delete(c.entries, line)
		c.dirty[line] = struct{}{}
	}
	for line := range c.entries {
		if line > end {
			delete(c.entries, line)
		}
	}
	c.generation++
}

// DirtyLines returns the lines known stale but not yet re-highlighted, in
// ascending order.
func (c *Cache) DirtyLines() []int {
	c.mu.Lock()
	defer c.mu.Unlock()

	lines := make([]int, 0, len(c.dirty))
	for line := range c.dirty {
		lines = append(lines, line)
	}
	sort.Ints(lines)
	return lines
}

// Dispose drops all cached state. The cache is unusable afterward; this is
// a documented contract, not separately enforced.
func (c *Cache) Dispose() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.disposed = true
	c.entries = make(map[int]*record)
	c.dirty = make(map[int]struct{})
}

// Stats returns cache counters.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	return Stats{
		Size:       len(c.entries),
		Dirty:      len(c.dirty),
		Hits:       c.hits,
		Misses:     c.misses,
		Generation: c.generation,
	}
}

// Stats holds cache counters.
type Stats struct {
	Size       int
	Dirty      int
	Hits       uint64
	Misses     uint64
	Generation uint64
}

// Generation returns the current cache generation.
func (c *Cache) Generation() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.generation
}

// dropAllLocked clears every record and bumps the generation. Caller holds
// the mutex.
func (c *Cache) dropAllLocked() {
	c.entries = make(map[int]*record)
	c.dirty = make(map[int]struct{})
	c.generation++
}

// tokenizeOrPlain tokenizes one line, degrading to a single unstyled span
// on failure. A bad line never fails the caller.
func tokenizeOrPlain(tok *highlight.Tokenizer, text, languageID string) []highlight.Span {
	spans, err := tok.TokenizeLine(text, languageID)
	if err != nil {
		return highlight.PlainSpan(text)
	}
	return spans
}
