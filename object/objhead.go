package object

import (
	"container/list"
	"sync"
	"time"

	"github.com/rcache/engine/digest"
)

// Objhead is the per-digest node carrying the variant list and waiting list
// (spec §3.2). One exists per distinct digest currently present in the
// index.
//
// Invariant: an Objhead is reachable from the index iff its refcount >= 1;
// when the last reference drops and the objcore list is empty, the head is
// destroyed (enforced by the objhash.Table implementations, not here).
type Objhead struct {
	Digest digest.Digest

	mu sync.Mutex

	refcount int64
	cores    *list.List // of *Objcore, in insertion order

	wait *WaitList
}

// NewObjhead creates a head for digest d with refcount 1 (the index's own
// reference).
func NewObjhead(d digest.Digest) *Objhead {
	return &Objhead{Digest: d, refcount: 1, cores: list.New()}
}

// Lock and Unlock expose head.mtx directly: every read or write of the
// objcore list, contained objcores' flags, waiting list, or refcount is
// done under this lock (spec §4.4, "Per-head locking discipline").
func (h *Objhead) Lock()   { h.mu.Lock() }
func (h *Objhead) Unlock() { h.mu.Unlock() }

// Ref increments the head's refcount. Must be called with h locked.
func (h *Objhead) Ref() { h.refcount++ }

// Deref decrements the head's refcount and reports whether it reached zero.
// Must be called with h locked.
func (h *Objhead) Deref() bool {
	h.refcount--
	return h.refcount == 0
}

// RefCount returns the current refcount. Must be called with h locked.
func (h *Objhead) RefCount() int64 { return h.refcount }

// InsertCore appends oc to the tail of the objcore list. Must be called
// with h locked.
func (h *Objhead) InsertCore(oc *Objcore) {
	h.cores.PushBack(oc)
}

// RemoveCore detaches oc from the objcore list, if present. Must be called
// with h locked.
func (h *Objhead) RemoveCore(oc *Objcore) {
	for e := h.cores.Front(); e != nil; e = e.Next() {
		if e.Value.(*Objcore) == oc {
			h.cores.Remove(e)
			return
		}
	}
}

// Cores returns the objcore list for iteration. Must be called with h
// locked; callers must not mutate the list directly (use InsertCore /
// RemoveCore).
func (h *Objhead) Cores() *list.List { return h.cores }

// Empty reports whether the objcore list is empty. Must be called with h
// locked.
func (h *Objhead) Empty() bool { return h.cores.Len() == 0 }

// WaitList lazily creates and returns this head's waiting list. Must be
// called with h locked.
func (h *Objhead) WaitList() *WaitList {
	if h.wait == nil {
		h.wait = newWaitList()
	}
	return h.wait
}

// WaitListEntry is one parked request on an objhead's waiting list.
type WaitListEntry struct {
	id       uint64
	deadline time.Time
	result   chan WaitResult
}

// WaitResult reports how a parked request left the waiting list.
type WaitResult int

const (
	// Rushed means the request was released by a rush pass and should
	// re-attempt its lookup.
	Rushed WaitResult = iota
	// TimedOut means the request's deadline elapsed before a rush reached
	// it.
	TimedOut
	// Cancelled means the caller gave up waiting (e.g. client disconnect).
	Cancelled
)

// WaitList is an objhead's FIFO of parked requests (spec §3.2, §4.4).
// Requests are enqueued when a lookup returns BUSY/EXPBUSY and elect to
// wait; hsh_rush releases up to n of them per pass, oldest first.
type WaitList struct {
	mu      sync.Mutex
	fifo    *list.List // of *WaitListEntry
	nextID  uint64
	entries map[uint64]*list.Element
}

func newWaitList() *WaitList {
	return &WaitList{fifo: list.New(), entries: make(map[uint64]*list.Element)}
}

// Enqueue parks a new waiter with the given deadline and returns a channel
// that receives exactly one WaitResult when the wait ends.
func (w *WaitList) Enqueue(deadline time.Time) (id uint64, result <-chan WaitResult, cancel func()) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.nextID++
	id = w.nextID
	ch := make(chan WaitResult, 1)
	e := w.fifo.PushBack(&WaitListEntry{id: id, deadline: deadline, result: ch})
	w.entries[id] = e
	cancel = func() { w.resolve(id, Cancelled) }
	return id, ch, cancel
}

// Len reports how many requests are currently parked.
func (w *WaitList) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.fifo.Len()
}

// Rush releases up to n requests from the front of the FIFO, oldest first,
// reporting Rushed on each (spec §4.4, hsh_rush). Returns the number
// actually released.
func (w *WaitList) Rush(n int) int {
	w.mu.Lock()
	released := make([]*WaitListEntry, 0, n)
	for i := 0; i < n; i++ {
		front := w.fifo.Front()
		if front == nil {
			break
		}
		e := front.Value.(*WaitListEntry)
		w.fifo.Remove(front)
		delete(w.entries, e.id)
		released = append(released, e)
	}
	w.mu.Unlock()

	for _, e := range released {
		e.result <- Rushed
	}
	return len(released)
}

// ExpireTimeouts releases every waiter whose deadline has passed, reporting
// TimedOut on each (spec §5, Cancellation and timeouts).
func (w *WaitList) ExpireTimeouts(at time.Time) int {
	w.mu.Lock()
	var expired []*WaitListEntry
	for e := w.fifo.Front(); e != nil; {
		next := e.Next()
		entry := e.Value.(*WaitListEntry)
		if at.After(entry.deadline) {
			w.fifo.Remove(e)
			delete(w.entries, entry.id)
			expired = append(expired, entry)
		}
		e = next
	}
	w.mu.Unlock()

	for _, e := range expired {
		e.result <- TimedOut
	}
	return len(expired)
}

// resolve removes id from the FIFO (if still present) and delivers res.
func (w *WaitList) resolve(id uint64, res WaitResult) {
	w.mu.Lock()
	e, ok := w.entries[id]
	if !ok {
		w.mu.Unlock()
		return
	}
	entry := e.Value.(*WaitListEntry)
	w.fifo.Remove(e)
	delete(w.entries, id)
	w.mu.Unlock()
	entry.result <- res
}
