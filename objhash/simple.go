package objhash

import (
	"sync"

	"github.com/rcache/engine/digest"
	"github.com/rcache/engine/object"
)

// simpleTable is the "simple" strategy: a single map guarded by one mutex.
// Grounded on eth/feemarket/cache.go's sync.RWMutex-guarded map pattern for
// the general per-entry-locking discipline, simplified to a plain Mutex
// since lookups here always mutate (pin the refcount).
type simpleTable struct {
	mu    sync.Mutex
	heads map[digest.Digest]*object.Objhead
}

func newSimpleTable() *simpleTable {
	return &simpleTable{heads: make(map[digest.Digest]*object.Objhead)}
}

func (t *simpleTable) Lookup(d digest.Digest) (*object.Objhead, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if h, ok := t.heads[d]; ok {
		h.Lock()
		h.Ref()
		h.Unlock()
		return h, false
	}
	h := object.NewObjhead(d)
	t.heads[d] = h
	return h, true
}

// Deref holds t.mu across the decrement and the delete, matching Lookup's
// lock order, so a concurrent Lookup can't re-Ref a head between the
// refcount hitting zero and its removal from the table.
func (t *simpleTable) Deref(h *object.Objhead) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	h.Lock()
	destroyed := h.Deref()
	empty := h.Empty()
	h.Unlock()

	if destroyed && empty {
		delete(t.heads, h.Digest)
		return true
	}
	return false
}

func (t *simpleTable) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.heads)
}
