package body

import (
	"testing"

	"github.com/rcache/engine/boc"
	"github.com/rcache/engine/stevedore"
)

func TestGetSpaceReusesTailCapacity(t *testing.T) {
	c := NewChain()
	b := boc.New()
	alloc := NewAllocator(64, 4096, 10)
	stv := stevedore.NewTransient()

	chunk1, free1, err := c.GetSpace(b, alloc, stv, 64)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if free1 != 64 {
		t.Fatalf("expected 64 bytes free, got %d", free1)
	}
	c.Extend(b, 10) // only 10 of 64 consumed

	chunk2, free2, err := c.GetSpace(b, alloc, stv, 64)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if chunk2 != chunk1 {
		t.Fatal("expected GetSpace to reuse the tail chunk's remaining capacity")
	}
	if free2 != 54 {
		t.Fatalf("expected 54 bytes free, got %d", free2)
	}
}

func TestExtendUpdatesLenAndNotifiesBOC(t *testing.T) {
	c := NewChain()
	b := boc.New()
	b.SetState(boc.Stream)
	alloc := NewAllocator(64, 4096, 10)
	stv := stevedore.NewTransient()

	if _, _, err := c.GetSpace(b, alloc, stv, 64); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	c.Extend(b, 5)
	if got := c.Len(); got != 5 {
		t.Fatalf("expected chain length 5, got %d", got)
	}
	if got := b.LenSoFar(); got != 5 {
		t.Fatalf("expected BOC len_so_far 5, got %d", got)
	}
}

func TestExtendPanicsWithoutGetSpace(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic extending with no allocated chunk")
		}
	}()
	c := NewChain()
	b := boc.New()
	c.Extend(b, 1)
}

func TestTrimShrinksOversizedTailChunk(t *testing.T) {
	c := NewChain()
	b := boc.New()
	alloc := NewAllocator(64, 8192, 10)
	stv := stevedore.NewTransient()

	if _, _, err := c.GetSpace(b, alloc, stv, 4096); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	c.Extend(b, 10) // 10 valid bytes in a 4096-byte chunk: huge slack

	c.Trim(b, alloc)

	c.mu.Lock()
	n := len(c.chunks)
	var lastSpace, lastLen int
	if n > 0 {
		lastSpace = c.chunks[n-1].Space
		lastLen = c.chunks[n-1].Len
	}
	c.mu.Unlock()

	if n != 1 {
		t.Fatalf("expected exactly one chunk after trim, got %d", n)
	}
	if lastLen != 10 {
		t.Fatalf("expected trimmed chunk to keep 10 valid bytes, got %d", lastLen)
	}
	if lastSpace >= 4096 {
		t.Fatalf("expected trim to right-size the chunk, still has space %d", lastSpace)
	}

	// boc_done must free the parked oversized chunk without panicking.
	b.Done()
}

func TestTrimUnlinksEmptyTailChunk(t *testing.T) {
	c := NewChain()
	b := boc.New()
	alloc := NewAllocator(64, 8192, 10)
	stv := stevedore.NewTransient()

	if _, _, err := c.GetSpace(b, alloc, stv, 4096); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// No Extend: tail chunk stays empty.
	c.Trim(b, alloc)

	if got := c.Len(); got != 0 {
		t.Fatalf("expected empty chain after trimming an empty tail, got %d", got)
	}
	c.mu.Lock()
	n := len(c.chunks)
	c.mu.Unlock()
	if n != 0 {
		t.Fatalf("expected the empty tail chunk to be unlinked, got %d chunks", n)
	}
}

func TestSlimFreesAllChunks(t *testing.T) {
	c := NewChain()
	b := boc.New()
	alloc := NewAllocator(64, 4096, 10)
	stv := stevedore.NewTransient()

	if _, _, err := c.GetSpace(b, alloc, stv, 64); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	c.Extend(b, 20)

	c.Slim()

	if got := c.Len(); got != 0 {
		t.Fatalf("expected zero length after Slim, got %d", got)
	}
}

func TestInvariantNonLastChunksAreFull(t *testing.T) {
	c := NewChain()
	b := boc.New()
	alloc := NewAllocator(16, 16, 10) // force many small chunks
	stv := stevedore.NewTransient()

	for i := 0; i < 3; i++ {
		_, free, err := c.GetSpace(b, alloc, stv, 16)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		c.Extend(b, free) // fill each chunk completely
	}
	// One more partial chunk.
	if _, _, err := c.GetSpace(b, alloc, stv, 16); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	c.Extend(b, 4)

	c.mu.Lock()
	defer c.mu.Unlock()
	for i, ch := range c.chunks {
		isLast := i == len(c.chunks)-1
		if !isLast && ch.Len != ch.Space {
			t.Fatalf("non-last chunk %d has Len %d != Space %d", i, ch.Len, ch.Space)
		}
	}
}
