// Package boc implements Body-on-Creation coordination (spec §3.5, §4.3):
// the synchronizer that lets one producer append to an object body while
// an arbitrary number of readers iterate it concurrently.
package boc

import (
	"sync"

	"github.com/rcache/engine/stevedore"
)

// State is the BOC's lifecycle state, monotonic except via Failed.
type State int

const (
	ReqDone State = iota
	PrepStream
	Stream
	Finished
	Failed
)

func (s State) String() string {
	switch s {
	case ReqDone:
		return "REQ_DONE"
	case PrepStream:
		return "PREP_STREAM"
	case Stream:
		return "STREAM"
	case Finished:
		return "FINISHED"
	case Failed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}

// BOC is created when a new objcore is about to receive a body and exists
// only until the body is fully produced.
type BOC struct {
	mu    sync.Mutex
	cond  *sync.Cond
	state State

	lenSoFar int64 // monotone while state in {Stream, Finished}

	// scratch parks a trim-leftover chunk for boc_done to free later
	// (spec §4.2, Trim).
	scratch *stevedore.Chunk
}

// New creates a BOC in its initial REQ_DONE state.
func New() *BOC {
	b := &BOC{state: ReqDone}
	b.cond = sync.NewCond(&b.mu)
	return b
}

// Lock and Unlock expose the BOC's mutex directly so body.Chain can
// serialize chunk-list mutation (append at tail) under the same lock that
// guards len_so_far, per spec §5's "Object chunks are mutated under
// boc.mtx while a BOC exists".
func (b *BOC) Lock()   { b.mu.Lock() }
func (b *BOC) Unlock() { b.mu.Unlock() }

// State returns the current state.
func (b *BOC) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// LenSoFar returns the current valid byte count.
func (b *BOC) LenSoFar() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.lenSoFar
}

// SetState transitions the BOC and wakes every waiter. Moving "backwards"
// (other than into Failed) is a programming bug, not a runtime condition —
// callers that violate it will panic.
func (b *BOC) SetState(s State) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if s != Failed && s < b.state {
		panic("boc: state must not move backwards except into FAILED")
	}
	b.state = s
	b.cond.Broadcast()
}

// ExtendNotify records that len bytes are now valid and wakes waiters
// (spec §4.3, extend_notify). new_len must be >= the previous value.
func (b *BOC) ExtendNotify(newLen int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if newLen > b.lenSoFar {
		b.lenSoFar = newLen
	}
	b.cond.Broadcast()
}

// Fail transitions to FAILED and wakes every waiter — the producer's
// failure-propagation path (spec §5, Cancellation and timeouts).
func (b *BOC) Fail() {
	b.SetState(Failed)
}

// WaitForExtend blocks while the state is STREAM and len_so_far has not
// exceeded current, then returns the current len_so_far and state. In any
// state other than STREAM it returns at once. Spurious wakeups are tolerated by construction (the loop
// re-checks its condition before returning) — spec §4.3.
func (b *BOC) WaitForExtend(current int64) (int64, State) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for b.state == Stream && b.lenSoFar <= current {
		b.cond.Wait()
	}
	return b.lenSoFar, b.state
}

// ParkScratch stashes a trim leftover chunk for later freeing by Done.
func (b *BOC) ParkScratch(c *stevedore.Chunk) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.scratch = c
}

// Done frees any parked scratch chunk via its owning stevedore (spec §4.3,
// boc_done). Touching the LRU with the current timestamp is the caller's
// responsibility (it owns the objcore/stevedore pairing); Done only
// reclaims the scratch chunk.
func (b *BOC) Done() {
	b.mu.Lock()
	c := b.scratch
	b.scratch = nil
	b.mu.Unlock()
	if c != nil {
		c.Owner.SmlFree(c)
	}
}
