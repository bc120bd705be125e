package object

import (
	"sync/atomic"
	"time"

	"github.com/rcache/engine/boc"
	"github.com/rcache/engine/body"
	"github.com/rcache/engine/stevedore"
)

// Flags records an objcore's lifecycle state (spec §3.3).
type Flags uint32

const (
	// Busy means no usable body exists yet.
	Busy Flags = 1 << iota
	// HFM marks a hit-for-miss sentinel.
	HFM
	// HFP marks a hit-for-pass sentinel.
	HFP
	// Failed means the fetch producing this object's body errored.
	Failed
	// Dying means the objcore is ban-matched or purged and is being torn
	// down once its refcount reaches zero.
	Dying
	// Private means this objcore was never, and will never be, inserted
	// into the index (pass/synth responses).
	Private
)

// Has reports whether all bits in mask are set.
func (f Flags) Has(mask Flags) bool { return f&mask == mask }

// Objcore is one cached variant's metadata and pointer into storage (spec
// §3.3).
type Objcore struct {
	Head *Objhead // back-pointer; nil for Private objcores

	refcount atomic.Int64
	flags    atomic.Uint32

	// Expiry data, all seconds, origin-relative (spec §3.3).
	TOrigin time.Time
	TTL     time.Duration
	Grace   time.Duration
	Keep    time.Duration

	Vary []byte // the Vary-axis variant key this objcore matches against

	// Hdr holds the object's fixed/variable/auxiliary attributes (status
	// line, response headers, method, URL, Vary) — spec §4.3.
	Hdr *Object

	stobj Stobj
	Body  *body.Chain

	// BOC is non-nil iff the body is still being produced.
	boc atomic.Pointer[boc.BOC]

	// BanRef is an opaque token correlating this objcore to the ban
	// generation that last re-evaluated it (spec §4.5).
	BanRef uint64

	// lruID is this objcore's handle within its stevedore's LRU, valid
	// only once it has been added (spec §4.2).
	lruID   uint64
	inLRU   atomic.Bool
	onNuked func(*Objcore) // engine hook: drop from index on LRU nuke
}

// New creates a fresh, Busy objcore attached to head (nil for Private
// objcores) with a new BOC and empty body chain.
func New(head *Objhead) *Objcore {
	oc := &Objcore{Head: head, Body: body.NewChain(), Hdr: NewObject()}
	oc.refcount.Store(1)
	oc.flags.Store(uint32(Busy))
	if head == nil {
		oc.flags.Or(uint32(Private))
	}
	oc.boc.Store(boc.New())
	return oc
}

// Flags returns the current flag set.
func (oc *Objcore) Flags() Flags { return Flags(oc.flags.Load()) }

// SetFlags ORs bits into the flag set.
func (oc *Objcore) SetFlags(f Flags) { oc.flags.Or(uint32(f)) }

// ClearFlags ANDs bits out of the flag set.
func (oc *Objcore) ClearFlags(f Flags) { oc.flags.And(^uint32(f)) }

// Ref increments the reference count (index, objcore-to-objcore, or
// transient lookup references all count — spec §3.2).
func (oc *Objcore) Ref() { oc.refcount.Add(1) }

// Deref decrements the reference count and reports whether it reached zero.
func (oc *Objcore) Deref() bool { return oc.refcount.Add(-1) == 0 }

// RefCount returns the current reference count.
func (oc *Objcore) RefCount() int64 { return oc.refcount.Load() }

// BOC returns the attached BOC, or nil once the body has finished producing
// and BOC has been cleared.
func (oc *Objcore) BOC() *boc.BOC { return oc.boc.Load() }

// ClearBOC detaches the BOC once the body is finished or failed.
func (oc *Objcore) ClearBOC() { oc.boc.Store(nil) }

// Stobj returns the stevedore-private storage handle.
func (oc *Objcore) Stobj() *Stobj { return &oc.stobj }

// SetStobj registers the storage backend and header chunk (spec §4.2,
// allocobj).
func (oc *Objcore) SetStobj(stv stevedore.Stevedore, header *stevedore.Chunk) {
	oc.stobj = Stobj{Stevedore: stv, Priv: header}
}

// now is a package-level clock. Expired, InGrace and InKeep do not read it:
// they take the instant to test as an argument.
var now = time.Now

// Expired reports whether t_origin+ttl has elapsed as of at.
func (oc *Objcore) Expired(at time.Time) bool {
	return at.After(oc.TOrigin.Add(oc.TTL))
}

// InGrace reports whether the objcore is stale but still within its grace
// window.
func (oc *Objcore) InGrace(at time.Time) bool {
	return oc.Expired(at) && at.Before(oc.TOrigin.Add(oc.TTL).Add(oc.Grace))
}

// InKeep reports whether the objcore is past its grace window but still
// within keep (eligible for conditional revalidation, not direct serving).
func (oc *Objcore) InKeep(at time.Time) bool {
	graceEnd := oc.TOrigin.Add(oc.TTL).Add(oc.Grace)
	return at.After(graceEnd) && at.Before(graceEnd.Add(oc.Keep))
}

// SetExpiry adjusts TTL/grace/keep relative to "now" — used by Purge (spec
// §4.5) to expire an objcore in place without removing it from the list.
func (oc *Objcore) SetExpiry(at time.Time, ttl, grace, keep time.Duration) {
	oc.TOrigin = at
	oc.TTL, oc.Grace, oc.Keep = ttl, grace, keep
}

// Evictable implements stevedore.Victim: an objcore may be LRU-nuked only
// when it isn't Private, isn't still under construction (BOC attached), and
// has no outstanding references (spec §4.2, lru_nuke_one).
func (oc *Objcore) Evictable() bool {
	if oc.Flags().Has(Private) {
		return false
	}
	if oc.BOC() != nil {
		return false
	}
	return oc.RefCount() == 0
}

// SetNukeHook installs the callback invoked by Nuke to drop this objcore
// from the index. Set once by the engine at insert time.
func (oc *Objcore) SetNukeHook(f func(*Objcore)) { oc.onNuked = f }

// Nuke implements stevedore.Victim: mark Dying and drop from the index.
func (oc *Objcore) Nuke() {
	oc.SetFlags(Dying)
	if oc.onNuked != nil {
		oc.onNuked(oc)
	}
}

// MarkLRU records this objcore's LRU handle once added.
func (oc *Objcore) MarkLRU(id uint64) {
	oc.lruID = id
	oc.inLRU.Store(true)
}

// LRUID returns the LRU handle and whether one has been assigned.
func (oc *Objcore) LRUID() (uint64, bool) { return oc.lruID, oc.inLRU.Load() }

// ClearLRU forgets the LRU handle (called after Remove).
func (oc *Objcore) ClearLRU() { oc.inLRU.Store(false) }

var _ stevedore.Victim = (*Objcore)(nil)
