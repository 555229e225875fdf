package linecache

import (
	"fmt"
	"testing"
)

func TestLineSpanCachesByIdentity(t *testing.T) {
	c := New(nil, "go")
	defer c.Dispose()

	first := c.LineSpan(0, "x := 1")
	second := c.LineSpan(0, "x := 1")

	if len(first) == 0 {
		t.Fatal("LineSpan() produced no spans")
	}
	if &first[0] != &second[0] {
		t.Error("second lookup re-tokenized instead of returning the cached spans")
	}

	stats := c.Stats()
	if stats.Hits != 1 || stats.Misses != 1 {
		t.Errorf("stats = %+v, want 1 hit 1 miss", stats)
	}
}

func TestLineSpanTextMismatchRecomputes(t *testing.T) {
	c := New(nil, "go")
	defer c.Dispose()

	c.LineSpan(3, "a := 1")
	spans := c.LineSpan(3, "longer := 22")

	if len(spans) == 0 || spans[len(spans)-1].End != uint32(len("longer := 22")) {
		t.Errorf("spans = %v, want coverage of the new text", spans)
	}
	if got := c.Stats().Misses; got != 2 {
		t.Errorf("misses = %d, want 2", got)
	}
}

func TestInvalidateLinesBumpsGeneration(t *testing.T) {
	c := New(nil, "go")
	defer c.Dispose()

	c.LineSpan(0, "a := 1")
	gen := c.Generation()

	c.InvalidateLines(7)
	if got := c.Generation(); got != gen+1 {
		t.Fatalf("generation = %d, want %d", got, gen+1)
	}

	// Line 0 was not evicted, but its generation is stale now.
	c.LineSpan(0, "a := 1")
	if got := c.Stats().Misses; got != 2 {
		t.Errorf("misses = %d, want recompute of generation-stale line", got)
	}
}

func TestInvalidateRangeEvictsBeyondEnd(t *testing.T) {
	c := New(nil, "go")
	defer c.Dispose()

	// A 3-line tail of a document: lines 5..7.
	lines := map[int]string{5: "five := 5", 6: "six := 6", 7: "seven := 7"}
	for i, text := range lines {
		c.LineSpan(i, text)
	}

	// Delete line 5: lines shift up, line 6 now holds the old line 7 text.
	c.InvalidateRange(5, 5)

	if got := c.Stats().Size; got != 0 {
		t.Fatalf("entries after range invalidation = %d, want 0", got)
	}

	spans := c.LineSpan(6, "seven := 7")
	if len(spans) == 0 || spans[len(spans)-1].End != uint32(len("seven := 7")) {
		t.Errorf("shifted line spans = %v, want spans for the new text", spans)
	}
}

func TestInvalidateRangeMarksDirty(t *testing.T) {
	c := New(nil, "go")
	defer c.Dispose()

	c.InvalidateRange(2, 4)

	dirty := c.DirtyLines()
	want := []int{2, 3, 4}
	if len(dirty) != len(want) {
		t.Fatalf("DirtyLines() = %v, want %v", dirty, want)
	}
	for i := range want {
		if dirty[i] != want[i] {
			t.Fatalf("DirtyLines() = %v, want %v", dirty, want)
		}
	}

	// Recomputing a line clears it from the dirty set.
	c.LineSpan(3, "y := 2")
	dirty = c.DirtyLines()
	if len(dirty) != 2 || dirty[0] != 2 || dirty[1] != 4 {
		t.Errorf("DirtyLines() after recompute = %v, want [2 4]", dirty)
	}
}

func TestInvalidateAll(t *testing.T) {
	c := New(nil, "go")
	defer c.Dispose()

	for i := 0; i < 5; i++ {
		c.LineSpan(i, fmt.Sprintf("v%d := %d", i, i))
	}
	gen := c.Generation()

	c.InvalidateAll()

	stats := c.Stats()
	if stats.Size != 0 {
		t.Errorf("size after InvalidateAll = %d, want 0", stats.Size)
	}
	if stats.Generation != gen+1 {
		t.Errorf("generation = %d, want %d", stats.Generation, gen+1)
	}
}

func TestSetLanguage(t *testing.T) {
	c := New(nil, "go")
	defer c.Dispose()

	c.LineSpan(0, "x := 1")
	gen := c.Generation()

	c.SetLanguage("python")
	if c.LanguageID() != "python" {
		t.Errorf("LanguageID() = %q, want python", c.LanguageID())
	}
	if got := c.Generation(); got != gen+1 {
		t.Errorf("generation after language switch = %d, want %d", got, gen+1)
	}
	if got := c.Stats().Size; got != 0 {
		t.Errorf("size after language switch = %d, want 0", got)
	}

	// Switching to the same language is a no-op.
	c.SetLanguage("python")
	if got := c.Generation(); got != gen+1 {
		t.Errorf("generation after no-op switch = %d, want %d", got, gen+1)
	}
}

func TestDisposeStopsCaching(t *testing.T) {
	c := New(nil, "go")

	c.LineSpan(0, "x := 1")
	c.Dispose()

	// Still returns spans, but stores nothing.
	spans := c.LineSpan(1, "y := 2")
	if len(spans) == 0 {
		t.Error("LineSpan() after Dispose() returned no spans")
	}
	if got := c.Stats().Size; got != 0 {
		t.Errorf("size after Dispose = %d, want 0", got)
	}
}
