// Package body implements the chunked body store (spec §4.2, component
// C2): the allocation policy, the chunk chain, the body iterator, and
// per-stevedore LRU eviction.
package body

import (
	"github.com/rcache/engine/stevedore"
)

// Allocator implements the alloc/shrink/nuke retry policy from
// original_source/bin/varnishd/storage/storage_simple.c (SML_alloc),
// reproduced faithfully per SPEC_FULL.md §12.
type Allocator struct {
	ChunkSize    int // preferred size for new allocations (fetch_chunksize)
	MaxChunkSize int // hard per-chunk cap (fetch_maxchunksize)
	NukeLimit    int // max LRU evictions attempted per allocation
}

// NewAllocator builds an Allocator from the documented tunables.
func NewAllocator(chunkSize, maxChunkSize, nukeLimit int) *Allocator {
	return &Allocator{ChunkSize: chunkSize, MaxChunkSize: maxChunkSize, NukeLimit: nukeLimit}
}

// Alloc allocates a chunk of at most size bytes from stv.
//
//   - If size > MaxChunkSize and LessOK isn't set, fail outright.
//   - Otherwise size is clamped to MaxChunkSize.
//   - stv.SmlAlloc(size) is tried; on failure, if LessOK is set, size is
//     halved (floor at ChunkSize) and retried.
//   - Once shrinking can no longer help and allocation still fails,
//     lru_nuke_one is invoked and the whole loop retried; Alloc gives up
//     (ErrOutOfStorage) once neither shrinking nor nuking frees anything,
//     or NukeLimit evictions have been attempted.
func (a *Allocator) Alloc(stv stevedore.Stevedore, size int, flags stevedore.AllocFlags) (*stevedore.Chunk, error) {
	lessOK := flags&stevedore.LessOK != 0

	if size > a.MaxChunkSize {
		if !lessOK {
			return nil, stevedore.ErrOutOfStorage
		}
		size = a.MaxChunkSize
	}

	cur := size
	nukes := 0
	for {
		c, err := stv.SmlAlloc(cur)
		if err == nil {
			return c, nil
		}
		if lessOK && cur > a.ChunkSize {
			cur = cur / 2
			if cur < a.ChunkSize {
				cur = a.ChunkSize
			}
			continue
		}
		lru := stv.LRU()
		if lru == nil || nukes >= a.NukeLimit || !lru.NukeOne() {
			return nil, stevedore.ErrOutOfStorage
		}
		nukes++
		// A nuke may have freed enough room for the originally-clamped size;
		// retry the whole loop from there rather than staying capped at
		// whatever floor the shrink loop had already reached.
		cur = size
	}
}

// AllocObj allocates the header chunk for a brand-new object, sized to hold
// the object's fixed attributes (headerSize) plus workspace extra bytes,
// retrying past undersized allocations under LRU pressure (spec §4.2,
// "Object allocation").
func (a *Allocator) AllocObj(stv stevedore.Stevedore, headerSize, workspace int) (*stevedore.Chunk, error) {
	ltot := headerSize + pad(workspace)
	if ltot > a.MaxChunkSize {
		// No amount of eviction can make a chunk larger than the cap.
		return nil, stevedore.ErrOutOfStorage
	}
	nukes := 0
	for {
		c, err := stv.AllocObj(ltot)
		if err == nil && c.Space >= ltot {
			c.Len = headerSize
			return c, nil
		}
		if err == nil {
			stv.SmlFree(c)
		}
		lru := stv.LRU()
		if lru == nil || nukes >= a.NukeLimit || !lru.NukeOne() {
			return nil, stevedore.ErrOutOfStorage
		}
		nukes++
	}
}

// pad rounds workspace up to an 8-byte boundary, mirroring the original's
// pointer-alignment padding of inline workspace.
func pad(n int) int {
	const align = 8
	return (n + align - 1) &^ (align - 1)
}
