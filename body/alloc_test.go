package body

import (
	"testing"
	"time"

	"github.com/rcache/engine/stevedore"
)

func TestAllocRejectsOversizeWithoutLessOK(t *testing.T) {
	a := NewAllocator(4096, 8192, 10)
	stv := stevedore.NewTransient()
	_, err := a.Alloc(stv, 16384, 0)
	if err != stevedore.ErrOutOfStorage {
		t.Fatalf("expected ErrOutOfStorage, got %v", err)
	}
}

func TestAllocClampsToMaxChunkSize(t *testing.T) {
	a := NewAllocator(4096, 8192, 10)
	stv := stevedore.NewTransient()
	c, err := a.Alloc(stv, 16384, stevedore.LessOK)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.Space > 8192 {
		t.Fatalf("expected chunk clamped to 8192, got %d", c.Space)
	}
}

// shrinkingStevedore fails SmlAlloc until size drops to or below a
// threshold, exercising the halve-then-retry half of the allocation policy.
type shrinkingStevedore struct {
	stevedore.Stevedore
	threshold int
}

func (s *shrinkingStevedore) SmlAlloc(size int) (*stevedore.Chunk, error) {
	if size > s.threshold {
		return nil, stevedore.ErrOutOfStorage
	}
	return &stevedore.Chunk{Bytes: make([]byte, size), Space: size, Owner: s}, nil
}

func TestAllocHalvesUntilItFits(t *testing.T) {
	a := NewAllocator(1024, 8192, 10)
	stv := &shrinkingStevedore{Stevedore: stevedore.NewTransient(), threshold: 1500}
	c, err := a.Alloc(stv, 8192, stevedore.LessOK)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.Space > 1500 {
		t.Fatalf("expected shrunk allocation <= 1500, got %d", c.Space)
	}
	if c.Space < a.ChunkSize {
		t.Fatalf("shrinking must floor at ChunkSize, got %d", c.Space)
	}
}

// nukeableStevedore fails SmlAlloc once (simulating pressure), then
// succeeds once LRU.NukeOne has been called.
type nukeableStevedore struct {
	stevedore.Stevedore
	lru     *stevedore.LRU
	nuked   bool
	nukeErr bool
}

func (s *nukeableStevedore) SmlAlloc(size int) (*stevedore.Chunk, error) {
	if !s.nuked {
		return nil, stevedore.ErrOutOfStorage
	}
	return &stevedore.Chunk{Bytes: make([]byte, size), Space: size, Owner: s}, nil
}

func (s *nukeableStevedore) LRU() *stevedore.LRU { return s.lru }

type fakeVictim struct{ nuked *bool }

func (v fakeVictim) Evictable() bool { return true }
func (v fakeVictim) Nuke()           { *v.nuked = true }

func TestAllocNukesOnExhaustion(t *testing.T) {
	a := NewAllocator(1024, 8192, 10)
	lru := stevedore.NewLRU(0)
	stv := &nukeableStevedore{Stevedore: stevedore.NewTransient(), lru: lru}
	lru.Add(fakeVictim{nuked: &stv.nuked}, time.Now())

	// nukeableStevedore.SmlAlloc only succeeds once fakeVictim.Nuke has run
	// (flipping stv.nuked), so a successful Alloc here proves the
	// shrink-exhausted path fell through to LRU.NukeOne before retrying.
	c, err := a.Alloc(stv, 512, 0)
	if err != nil {
		t.Fatalf("unexpected error after nuke: %v", err)
	}
	if c == nil {
		t.Fatal("expected a chunk after successful nuke")
	}
	if !stv.nuked {
		t.Fatal("expected NukeOne to have run")
	}
}

func TestAllocGivesUpWhenNothingToNuke(t *testing.T) {
	a := NewAllocator(1024, 8192, 10)
	lru := stevedore.NewLRU(0)
	stv := &nukeableStevedore{Stevedore: stevedore.NewTransient(), lru: lru}
	_, err := a.Alloc(stv, 512, 0)
	if err != stevedore.ErrOutOfStorage {
		t.Fatalf("expected ErrOutOfStorage with empty LRU, got %v", err)
	}
}

func TestAllocObjFailsWhenMaxChunkSizeTooSmall(t *testing.T) {
	a := NewAllocator(64, 32, 5) // MaxChunkSize smaller than any header
	stv := stevedore.NewTransient()
	_, err := a.AllocObj(stv, 128, 0)
	if err != stevedore.ErrOutOfStorage {
		t.Fatalf("expected ErrOutOfStorage, got %v", err)
	}
}

func TestAllocObjSetsHeaderLen(t *testing.T) {
	a := NewAllocator(4096, 8192, 10)
	stv := stevedore.NewTransient()
	c, err := a.AllocObj(stv, 64, 16)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.Len != 64 {
		t.Fatalf("expected header Len == 64, got %d", c.Len)
	}
}

func TestPadRoundsToEightByteBoundary(t *testing.T) {
	cases := map[int]int{0: 0, 1: 8, 7: 8, 8: 8, 9: 16, 100: 104}
	for in, want := range cases {
		if got := pad(in); got != want {
			t.Errorf("pad(%d) = %d, want %d", in, got, want)
		}
	}
}
