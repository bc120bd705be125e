// Package diskstore is a shelf-based (size-classed) scratch-file Stevedore,
// standing in for spec §3.6's "mmapped file" backend variant. It is backed
// by github.com/holiman/billy, a teacher go.mod dependency whose
// fixed-capacity, size-classed "shelf" design is a close structural match
// for this core's fixed-capacity Chunk model. Files live under a temp
// directory and are removed on Close — this backend is scratch space, not
// a disk-persistent cache that survives a restart (an explicit non-goal).
package diskstore

import (
	"os"
	"sync"
	"time"

	"github.com/holiman/billy"
	"github.com/rcache/engine/stevedore"
)

// Store is a billy-backed stevedore.
type Store struct {
	id   string
	dir  string
	size uint32

	mu sync.Mutex
	db billy.Database

	lru *stevedore.LRU
}

// New creates a diskstore.Store whose shelf slot size is shelfSize bytes;
// every chunk allocated here must fit within one shelf slot.
func New(id string, shelfSize uint32) *Store {
	return &Store{
		id:   id,
		size: shelfSize,
		lru:  stevedore.NewLRU(time.Second),
	}
}

func (s *Store) Name() string        { return "diskstore:" + s.id }
func (s *Store) ID() string          { return s.id }
func (s *Store) LRU() *stevedore.LRU { return s.lru }

// Open creates the scratch directory and opens the billy shelf database.
func (s *Store) Open() error {
	dir, err := os.MkdirTemp("", "cachecore-diskstore-"+s.id+"-")
	if err != nil {
		return err
	}
	db, err := billy.Open(billy.Options{Path: dir}, s.size, nil)
	if err != nil {
		os.RemoveAll(dir)
		return err
	}
	s.mu.Lock()
	s.dir, s.db = dir, db
	s.mu.Unlock()
	return nil
}

// Close closes the shelf database. On the final pass (warning == false) it
// also removes the scratch directory, since this backend never persists
// across a restart.
func (s *Store) Close(warning bool) error {
	s.mu.Lock()
	db, dir := s.db, s.dir
	s.mu.Unlock()

	if db == nil {
		return nil
	}
	if err := db.Close(); err != nil {
		return err
	}
	if !warning {
		return os.RemoveAll(dir)
	}
	return nil
}

// SmlAlloc reserves one shelf slot and tracks it under a fresh handle.
func (s *Store) SmlAlloc(size int) (*stevedore.Chunk, error) {
	if uint32(size) > s.size {
		return nil, stevedore.ErrOutOfStorage
	}
	s.mu.Lock()
	db := s.db
	s.mu.Unlock()

	buf := make([]byte, size)
	id, err := db.Put(buf)
	if err != nil {
		return nil, err
	}
	return &stevedore.Chunk{Bytes: buf, Space: size, Owner: s, Handle: id}, nil
}

// SmlFree deletes the backing shelf slot.
func (s *Store) SmlFree(c *stevedore.Chunk) {
	s.mu.Lock()
	db := s.db
	s.mu.Unlock()
	if db != nil {
		db.Delete(c.Handle)
	}
	c.Bytes = nil
	c.Len, c.Space = 0, 0
}

// AllocObj reserves the header slot for a new object.
func (s *Store) AllocObj(workspace int) (*stevedore.Chunk, error) {
	return s.SmlAlloc(workspace)
}

// SmlGetObj implements stevedore.ObjGetter by reading the slot straight off
// disk.
func (s *Store) SmlGetObj(handle uint64) (*stevedore.Chunk, error) {
	s.mu.Lock()
	db := s.db
	s.mu.Unlock()
	buf, err := db.Get(handle)
	if err != nil {
		return nil, err
	}
	return &stevedore.Chunk{Bytes: buf, Space: len(buf), Len: len(buf), Owner: s, Handle: handle}, nil
}

var _ stevedore.Stevedore = (*Store)(nil)
var _ stevedore.ObjGetter = (*Store)(nil)
