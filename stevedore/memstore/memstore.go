// Package memstore is a fastcache-backed Stevedore for small, whole-body
// objects, grounded on triedb/pathdb/disklayer.go's use of
// *fastcache.Cache as a bounded in-memory byte cache.
package memstore

import (
	"encoding/binary"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/VictoriaMetrics/fastcache"
	"github.com/rcache/engine/stevedore"
)

// Store is a fastcache-backed stevedore. Because fastcache stores whole
// values keyed by a byte key, chunks allocated here are not progressively
// mutated in place the way the "simple" growable chain is (body.Chain);
// Store is meant for objects whose full body is already known at alloc
// time, or as a destination for Trim's final, right-sized copy.
type Store struct {
	id    string
	cache *fastcache.Cache
	lru   *stevedore.LRU
	next  uint64
}

// New creates a memstore.Store with maxBytes of budget.
func New(id string, maxBytes int) *Store {
	return &Store{
		id:    id,
		cache: fastcache.New(maxBytes),
		lru:   stevedore.NewLRU(time.Second),
	}
}

func (s *Store) Name() string { return "memstore:" + s.id }
func (s *Store) ID() string   { return s.id }

func (s *Store) Open() error      { return nil }
func (s *Store) Close(bool) error { s.cache.Reset(); return nil }
func (s *Store) LRU() *stevedore.LRU { return s.lru }

func (s *Store) key(handle uint64) []byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], handle)
	return b[:]
}

// SmlAlloc reserves size bytes under a fresh synthetic handle.
func (s *Store) SmlAlloc(size int) (*stevedore.Chunk, error) {
	handle := atomic.AddUint64(&s.next, 1)
	buf := make([]byte, size)
	s.cache.Set(s.key(handle), buf)
	return &stevedore.Chunk{
		Bytes:  buf,
		Space:  size,
		Owner:  s,
		Handle: handle,
	}, nil
}

// SmlFree deletes the backing entry.
func (s *Store) SmlFree(c *stevedore.Chunk) {
	s.cache.Del(s.key(c.Handle))
	c.Bytes = nil
	c.Len, c.Space = 0, 0
}

// AllocObj reserves the header blob for a new object.
func (s *Store) AllocObj(workspace int) (*stevedore.Chunk, error) {
	return s.SmlAlloc(workspace)
}

// SmlGetObj implements stevedore.ObjGetter: a previously stored blob can be
// retrieved purely from its handle, without an in-process objcore.
func (s *Store) SmlGetObj(handle uint64) (*stevedore.Chunk, error) {
	buf, ok := s.cache.HasGet(nil, s.key(handle))
	if !ok {
		return nil, fmt.Errorf("memstore: no entry for handle %d", handle)
	}
	return &stevedore.Chunk{Bytes: buf, Space: len(buf), Len: len(buf), Owner: s, Handle: handle}, nil
}

// fastcache.Cache is internally sharded and safe for concurrent access;
// s.next is only ever touched atomically, so Store needs no lock of its
// own.
var _ stevedore.Stevedore = (*Store)(nil)
var _ stevedore.ObjGetter = (*Store)(nil)
