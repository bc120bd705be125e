package diskstore

import (
	"os"
	"testing"

	"github.com/rcache/engine/stevedore"
)

func TestOpenAllocFreeCloseLifecycle(t *testing.T) {
	s := New("disk0", 4096)
	if err := s.Open(); err != nil {
		t.Fatalf("unexpected error opening: %v", err)
	}
	defer s.Close(false)

	c, err := s.SmlAlloc(128)
	if err != nil {
		t.Fatalf("unexpected error allocating: %v", err)
	}
	copy(c.Bytes, []byte("payload"))

	// Flush the write by round-tripping through Get (billy.Put already
	// persists synchronously, so this just exercises SmlGetObj).
	got, err := s.SmlGetObj(c.Handle)
	if err != nil {
		t.Fatalf("unexpected error reading back: %v", err)
	}
	if len(got.Bytes) != 128 {
		t.Fatalf("expected 128 bytes back, got %d", len(got.Bytes))
	}

	s.SmlFree(c)
}

func TestSmlAllocRejectsOversizeOfShelf(t *testing.T) {
	s := New("disk0", 64)
	if err := s.Open(); err != nil {
		t.Fatalf("unexpected error opening: %v", err)
	}
	defer s.Close(false)

	if _, err := s.SmlAlloc(128); err != stevedore.ErrOutOfStorage {
		t.Fatalf("expected ErrOutOfStorage for an over-shelf allocation, got %v", err)
	}
}

func TestCloseFinalPassRemovesScratchDir(t *testing.T) {
	s := New("disk0", 4096)
	if err := s.Open(); err != nil {
		t.Fatalf("unexpected error opening: %v", err)
	}
	dir := s.dir
	if dir == "" {
		t.Fatal("expected Open to record a scratch directory")
	}
	if err := s.Close(false); err != nil { // final pass: dir is removed
		t.Fatalf("unexpected error on final pass: %v", err)
	}
	if _, err := os.Stat(dir); err == nil {
		t.Fatal("expected the scratch directory to be removed on the final close pass")
	}
}

func TestInterfaces(t *testing.T) {
	s := New("disk0", 4096)
	var _ stevedore.Stevedore = s
	var _ stevedore.ObjGetter = s
}
