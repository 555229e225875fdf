package linecache

import (
	"golang.org/x/sync/errgroup"

	"github.com/dshills/langlens/internal/highlight"
)

// batchLine is one line queued for tokenization: its index and the text it
// is being tokenized against.
type batchLine struct {
	index int
	text  string
}

// lineSpans is one tokenized result ready to merge.
type lineSpans struct {
	index int
	text  string
	spans []highlight.Span
}

// PreHighlight recomputes the missing or stale lines in [start, end]. Small
// batches (at most SyncThreshold lines) are tokenized inline; larger ones
// are offloaded to a worker pool where each worker runs its own tokenizer
// instance, so no mutable tokenizer state crosses the offload boundary.
// done fires exactly once after results are merged, on either path, so the
// rendering surface can schedule a repaint.
//
// text is called once per line in the range and must not call back into
// the cache. There is no cancellation: a batch in flight always completes
// and merges, and results superseded by a later invalidation are discarded
// at the next lookup by the generation and text checks.
func (c *Cache) PreHighlight(start, end int, text func(int) string, done func()) {
	if done == nil {
		done = func() {}
	}
	if start > end {
		done()
		return
	}

	c.mu.Lock()
	if c.disposed {
		c.mu.Unlock()
		done()
		return
	}
	gen := c.generation
	lang := c.languageID
	var stale []batchLine
	for i := start; i <= end; i++ {
		t := text(i)
		if rec, ok := c.entries[i]; ok && rec.generation == gen && rec.text == t {
			continue
		}
		stale = append(stale, batchLine{index: i, text: t})
	}
	c.mu.Unlock()

	if len(stale) == 0 {
		done()
		return
	}

	if len(stale) <= SyncThreshold {
		c.merge(tokenizeBatch(c.tokenizer, lang, stale), gen)
		done()
		return
	}

	c.log.Debug("highlight batch offloaded", "lines", len(stale), "workers", c.workers)
	go func() {
		c.merge(c.tokenizeParallel(lang, stale), gen)
		done()
	}()
}

// tokenizeBatch tokenizes lines sequentially with the cache's own
// tokenizer.
func tokenizeBatch(tok *highlight.Tokenizer, lang string, lines []batchLine) []lineSpans {
	out := make([]lineSpans, len(lines))
	for i, ln := range lines {
		out[i] = lineSpans{index: ln.index, text: ln.text, spans: tokenizeOrPlain(tok, ln.text, lang)}
	}
	return out
}

// tokenizeParallel splits lines into contiguous chunks, one worker per
// chunk, each with an independent tokenizer clone.
func (c *Cache) tokenizeParallel(lang string, lines []batchLine) []lineSpans {
	workers := c.workers
	if workers < 1 {
		workers = 1
	}
	chunk := (len(lines) + workers - 1) / workers

	results := make([]lineSpans, len(lines))
	var g errgroup.Group
	for off := 0; off < len(lines); off += chunk {
		hi := off + chunk
		if hi > len(lines) {
			hi = len(lines)
		}
		part := lines[off:hi]
		slot := results[off:hi]
		g.Go(func() error {
			tok := c.tokenizer.Clone()
			for i, ln := range part {
				slot[i] = lineSpans{index: ln.index, text: ln.text, spans: tokenizeOrPlain(tok, ln.text, lang)}
			}
			return nil
		})
	}
	// Workers never return errors; bad lines degrade to unstyled spans.
	_ = g.Wait()
	return results
}

// merge writes batch results at the generation captured when the batch was
// dispatched. An invalidation since dispatch leaves the merged records
// stale, so the next lookup recomputes instead of serving them.
func (c *Cache) merge(results []lineSpans, gen uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.disposed {
		return
	}
	for _, r := range results {
		c.entries[r.index] = &record{text: r.text, spans: r.spans, generation: gen}
		delete(c.dirty, r.index)
	}
}
