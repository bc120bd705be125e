package body

import (
	"errors"
	"sync"

	"github.com/rcache/engine/boc"
	"github.com/rcache/engine/stevedore"
)

// ErrFetchFailed is returned by Iterate when the producer transitioned its
// BOC to FAILED before the reader finished (spec §7, FetchFailed).
var ErrFetchFailed = errors.New("body: fetch failed")

// Chain is an object's body: an ordered list of chunks (spec §3.4).
//
// Invariant: for any chunk that is not the last, Len == Space. The total
// valid length equals the sum of all chunks' Len.
type Chain struct {
	// mu guards the chunk slice once no BOC is attached (finished bodies
	// are otherwise immutable except for the iterator's final removal,
	// which must be serialized with the knowledge that no other reader is
	// running — spec §5).
	mu     sync.Mutex
	chunks []*stevedore.Chunk
}

// NewChain returns an empty body chain.
func NewChain() *Chain { return &Chain{} }

// Len returns the total valid byte length across every chunk.
func (c *Chain) Len() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lenLocked()
}

func (c *Chain) lenLocked() int64 {
	var n int64
	for _, ch := range c.chunks {
		n += int64(ch.Len)
	}
	return n
}

// GetSpace returns a pointer into free capacity for the producer to write
// into: the tail chunk's remaining space if any exists, otherwise a freshly
// allocated chunk linked at the tail. Must be called while bc is attached
// (spec §4.2, get_space).
func (c *Chain) GetSpace(bc *boc.BOC, alloc *Allocator, stv stevedore.Stevedore, sizeHint int) (*stevedore.Chunk, int, error) {
	bc.Lock()
	if n := len(c.chunks); n > 0 {
		last := c.chunks[n-1]
		if free := last.Space - last.Len; free > 0 {
			bc.Unlock()
			return last, free, nil
		}
	}
	bc.Unlock()

	chunk, err := alloc.Alloc(stv, sizeHint, stevedore.LessOK)
	if err != nil {
		return nil, 0, err
	}
	bc.Lock()
	c.chunks = append(c.chunks, chunk)
	bc.Unlock()
	return chunk, chunk.Space - chunk.Len, nil
}

// Extend advances the tail chunk's Len by n bytes (previously reserved via
// GetSpace), then publishes the new total length to the BOC and wakes
// waiters (spec §4.2, extend).
func (c *Chain) Extend(bc *boc.BOC, n int) {
	bc.Lock()
	if len(c.chunks) == 0 {
		bc.Unlock()
		panic("body: extend with no chunk allocated")
	}
	last := c.chunks[len(c.chunks)-1]
	last.Len += n
	total := c.lenLocked()
	bc.Unlock()

	bc.ExtendNotify(total)
}

// Trim right-sizes the tail chunk at end-of-fetch: if its slack is at least
// 512 bytes, a right-sized chunk is allocated, the tail's bytes are copied
// in, and the oversized original is parked on the BOC for Done to free
// later. An empty tail chunk is simply unlinked and freed immediately
// (spec §4.2, trim).
func (c *Chain) Trim(bc *boc.BOC, alloc *Allocator) {
	const minSlack = 512

	bc.Lock()
	n := len(c.chunks)
	if n == 0 {
		bc.Unlock()
		return
	}
	last := c.chunks[n-1]
	if last.Len == 0 {
		c.chunks = c.chunks[:n-1]
		bc.Unlock()
		last.Owner.SmlFree(last)
		return
	}
	if last.Space-last.Len < minSlack {
		bc.Unlock()
		return
	}
	bc.Unlock()

	right, err := alloc.Alloc(last.Owner, last.Len, 0)
	if err != nil {
		return // keep the oversized chunk; not fatal
	}
	copy(right.Bytes, last.Bytes[:last.Len])
	right.Len = last.Len

	bc.Lock()
	c.chunks[len(c.chunks)-1] = right
	bc.Unlock()

	bc.ParkScratch(last)
}

// Slim drops every body chunk, freeing each via its owning stevedore (spec
// §4.2, slim — the auxiliary-attribute half of slim lives in object.Object).
func (c *Chain) Slim() {
	c.mu.Lock()
	chunks := c.chunks
	c.chunks = nil
	c.mu.Unlock()

	for _, ch := range chunks {
		ch.Owner.SmlFree(ch)
	}
}

// bytesInRange copies the bytes in [from, to) across however many chunks
// they span. Called only while bytes up to `to` are already committed
// (i.e. after a WaitForExtend(>=to) return), so no locking is needed: the
// chunk list only grows at the tail and earlier bytes are immutable once
// written.
func (c *Chain) bytesInRange(from, to int64) []byte {
	if to <= from {
		return nil
	}
	out := make([]byte, 0, to-from)
	var base int64
	for _, ch := range c.chunks {
		chStart, chEnd := base, base+int64(ch.Len)
		base = chEnd
		if chEnd <= from || chStart >= to {
			continue
		}
		lo := from
		if chStart > lo {
			lo = chStart
		}
		hi := to
		if chEnd < hi {
			hi = chEnd
		}
		out = append(out, ch.Bytes[lo-chStart:hi-chStart]...)
		if hi >= to {
			break
		}
	}
	return out
}
