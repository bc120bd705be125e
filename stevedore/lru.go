package stevedore

import (
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/simplelru"
)

// Victim is anything a stevedore's LRU can track for eviction: the cache
// core's objcore implements this (see object.Objcore). Kept as a narrow
// interface here so the stevedore package doesn't need to import object.
type Victim interface {
	// Evictable reports whether this entry may currently be nuked: not
	// PRIVATE, not under construction, refcount == 0 (spec §4.2,
	// lru_nuke_one).
	Evictable() bool
	// Nuke marks the entry DYING and drops it from the index. Called with
	// the LRU's bookkeeping already updated.
	Nuke()
}

// LRU is a per-stevedore least-recently-used list of finished objcores,
// grounded on the teacher's consensus/satoshi/satoshi.go use of
// github.com/hashicorp/golang-lru (the same module version, here via its
// simplelru building block rather than the ARC policy, since lru_nuke_one
// needs explicit oldest-eviction rather than automatic capacity eviction).
type LRU struct {
	mu    sync.Mutex
	inner *simplelru.LRU
	// touchEvery throttles lru_touch: an entry already touched within this
	// window is left in place rather than moved to the tail again.
	touchEvery  time.Duration
	lastTouched map[uint64]time.Time
	nextID      uint64
	ids         map[uint64]Victim
}

// NewLRU creates an LRU with effectively unbounded capacity: eviction is
// driven exclusively by explicit NukeOne calls from the allocator under
// memory pressure, not by a fixed entry-count ceiling.
func NewLRU(touchHysteresis time.Duration) *LRU {
	inner, _ := simplelru.NewLRU(1<<30, nil)
	return &LRU{
		inner:       inner,
		touchEvery:  touchHysteresis,
		lastTouched: make(map[uint64]time.Time),
		ids:         make(map[uint64]Victim),
	}
}

// Add appends v to the LRU's tail with timestamp ts (lru_add).
func (l *LRU) Add(v Victim, ts time.Time) uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.nextID++
	id := l.nextID
	l.ids[id] = v
	l.inner.Add(id, v)
	l.lastTouched[id] = ts
	return id
}

// Touch moves v's entry to the tail if enough time has passed since the
// last touch (lru_touch's hysteresis).
func (l *LRU) Touch(id uint64, ts time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	last, ok := l.lastTouched[id]
	if ok && ts.Sub(last) < l.touchEvery {
		return
	}
	if v, ok := l.ids[id]; ok {
		l.inner.Add(id, v) // re-adding moves it to the most-recently-used end
		l.lastTouched[id] = ts
	}
}

// Remove detaches id without freeing anything (lru_remove).
func (l *LRU) Remove(id uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.inner.Remove(id)
	delete(l.ids, id)
	delete(l.lastTouched, id)
}

// NukeOne selects the least-recently-used evictable victim, marks it DYING
// and drops it from the index, then returns true. It returns false if no
// evictable victim exists (spec §4.2, lru_nuke_one).
func (l *LRU) NukeOne() bool {
	l.mu.Lock()
	keys := l.inner.Keys()
	l.mu.Unlock()

	for _, k := range keys {
		id := k.(uint64)
		l.mu.Lock()
		v, ok := l.ids[id]
		l.mu.Unlock()
		if !ok || !v.Evictable() {
			continue
		}
		l.mu.Lock()
		l.inner.Remove(id)
		delete(l.ids, id)
		delete(l.lastTouched, id)
		l.mu.Unlock()
		v.Nuke()
		return true
	}
	return false
}

// Len reports how many entries the LRU currently tracks.
func (l *LRU) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.inner.Len()
}
