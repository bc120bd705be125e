package objhash

import (
	"sync"

	"github.com/rcache/engine/digest"
	"github.com/rcache/engine/object"
)

// classicBuckets is the fixed bucket-array size for the "classic" strategy
// — a chained hash table indexed by the digest's leading byte, the shape
// documented for Varnish's classic hasher in hash_slinger.h (a fixed bucket
// array of per-bucket chains, each independently locked).
const classicBuckets = 256

type classicBucket struct {
	mu    sync.Mutex
	heads map[digest.Digest]*object.Objhead
}

// classicTable is the "classic" strategy: digest.Bytes()[0] selects one of
// 256 independently-locked buckets, each a small chained map. Finer-grained
// than the single lock of simpleTable and of critbitTable.
type classicTable struct {
	buckets [classicBuckets]*classicBucket
}

func newClassicTable() *classicTable {
	t := &classicTable{}
	for i := range t.buckets {
		t.buckets[i] = &classicBucket{heads: make(map[digest.Digest]*object.Objhead)}
	}
	return t
}

func (t *classicTable) bucket(d digest.Digest) *classicBucket {
	return t.buckets[d[0]]
}

func (t *classicTable) Lookup(d digest.Digest) (*object.Objhead, bool) {
	b := t.bucket(d)
	b.mu.Lock()
	defer b.mu.Unlock()

	if h, ok := b.heads[d]; ok {
		h.Lock()
		h.Ref()
		h.Unlock()
		return h, false
	}
	h := object.NewObjhead(d)
	b.heads[d] = h
	return h, true
}

// Deref holds the bucket lock across the decrement and the delete, matching
// Lookup's lock order, so a concurrent Lookup can't re-Ref a head between
// the refcount hitting zero and its removal from the bucket.
func (t *classicTable) Deref(h *object.Objhead) bool {
	b := t.bucket(h.Digest)
	b.mu.Lock()
	defer b.mu.Unlock()

	h.Lock()
	destroyed := h.Deref()
	empty := h.Empty()
	h.Unlock()

	if destroyed && empty {
		delete(b.heads, h.Digest)
		return true
	}
	return false
}

func (t *classicTable) Len() int {
	n := 0
	for _, b := range t.buckets {
		b.mu.Lock()
		n += len(b.heads)
		b.mu.Unlock()
	}
	return n
}
