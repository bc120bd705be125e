package lookup

import (
	"context"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/rcache/engine/config"
	"github.com/rcache/engine/digest"
	"github.com/rcache/engine/metrics"
	"github.com/rcache/engine/object"
	"github.com/rcache/engine/objhash"
	"github.com/rcache/engine/stevedore"
)

// Backend is the narrow interface the engine needs from the fetch layer to
// kick off a background revalidation (spec §12's note that a director sits
// between C5 and the fetch layer as an external collaborator — this is the
// one seam the core exposes toward it).
type Backend interface {
	Refetch(ctx context.Context, d digest.Digest, oc *object.Objcore)
}

// Engine is the lookup & coalescing engine (spec §4.5, component C5).
type Engine struct {
	table   objhash.Table
	stv     *stevedore.Registry
	cfg     config.Params
	policy  Policy
	bans    *banList
	sent    *sentinels
	refetch *semaphore.Weighted
	metrics *metrics.Registry
	backend Backend
}

// New builds an Engine over the given stevedore registry and tunables, with
// the hash table strategy selected by cfg.HashAlgorithm. Body storage allocation (component C2) is the fetch layer's
// responsibility, not the engine's — see boc_attach/AllocObj in the
// external interfaces (spec §6).
func New(cfg config.Params, stv *stevedore.Registry, backend Backend, reg *metrics.Registry) *Engine {
	return &Engine{
		table:   objhash.New(cfg.HashAlgorithm),
		stv:     stv,
		cfg:     cfg,
		policy:  DefaultPolicy{},
		bans:    newBanList(),
		sent:    newSentinels(),
		refetch: semaphore.NewWeighted(cfg.MaxConcurrentRefetch),
		metrics: reg,
		backend: backend,
	}
}

// SetPolicy overrides the classification hook (spec §9's open question).
func (e *Engine) SetPolicy(p Policy) { e.policy = p }

// Lookup classifies a request against the digest's objhead (spec §4.5,
// "Lookup"). The returned Result.Head is pinned; callers must call
// e.Release(result.Head) exactly once when done with it, regardless of
// outcome.
func (e *Engine) Lookup(d digest.Digest, vary []byte, alwaysInsert bool) Result {
	head, _ := e.table.Lookup(d)

	if alwaysInsert {
		e.countMiss()
		return Result{Outcome: Miss, Head: head}
	}

	now := time.Now()

	// A live HFM/HFP sentinel forces MISS/PASS for its TTL window,
	// bypassing normal classification entirely (spec §4.5, "When a fetch
	// marks an objcore HFM/HFP, subsequent lookups will treat it as a
	// sentinel that forces MISS/PASS for a window equal to its TTL").
	if e.sent.Active(d, now) {
		e.countMiss()
		return Result{Outcome: Miss, Head: head}
	}

	checkBans := e.bans.MaybeBanned([32]byte(d))

	head.Lock()
	var c Candidates
	for el := head.Cores().Front(); el != nil; el = el.Next() {
		oc := el.Value.(*object.Objcore)
		fl := oc.Flags()
		if fl.Has(object.Dying) || fl.Has(object.Failed) {
			continue
		}
		if fl.Has(object.HFM) || fl.Has(object.HFP) {
			// Sentinels are never themselves servable; e.sent above is
			// what makes them effective once Busy clears.
			continue
		}
		if fl.Has(object.Busy) {
			if c.BusyAny == nil {
				c.BusyAny = oc
			}
			continue
		}
		if !e.policy.VaryMatches(oc, vary) {
			continue
		}
		if checkBans && !e.bans.fresh(oc) {
			continue
		}
		if oc.Expired(now) {
			if oc.InGrace(now) && c.MatchedExpired == nil {
				c.MatchedExpired = oc
			}
			continue
		}
		if c.Matched == nil {
			c.Matched = oc
		}
	}
	outcome, oc, busy := e.policy.Classify(now, c)
	if oc != nil {
		oc.Ref()
	}
	head.Unlock()

	if e.metrics != nil {
		switch outcome {
		case Hit:
			e.metrics.Hits.Mark(1)
		case Miss:
			e.metrics.Misses.Mark(1)
		case Busy:
			e.metrics.Busy.Mark(1)
		case Exp:
			e.metrics.ExpHits.Mark(1)
		case ExpBusy:
			e.metrics.ExpBusyHits.Mark(1)
		}
	}
	if outcome == Exp {
		e.maybeBackgroundRefetch(d, oc)
	}

	return Result{Outcome: outcome, Oc: oc, BusyOc: busy, Head: head}
}

func (e *Engine) countMiss() {
	if e.metrics != nil {
		e.metrics.Misses.Mark(1)
	}
}

// maybeBackgroundRefetch spawns a bounded, self-initiated revalidation for
// an EXP hit when a Backend is configured and a semaphore slot is free
// (spec §11 domain-stack wiring for golang.org/x/sync/semaphore). Declining
// to refetch (no slot free) is not an error: the stale copy is still served
// from cache, and the next lookup will try again.
func (e *Engine) maybeBackgroundRefetch(d digest.Digest, oc *object.Objcore) {
	if e.backend == nil || oc == nil {
		return
	}
	if !e.refetch.TryAcquire(1) {
		return
	}
	go func() {
		defer e.refetch.Release(1)
		e.backend.Refetch(context.Background(), d, oc)
	}()
}

// Release drops the caller's pin on head, taken by Lookup. Insert takes no
// pin of its own.
func (e *Engine) Release(head *object.Objhead) {
	e.table.Deref(head)
}

// WaitOnBusy parks the caller on head's waiting list until a rush reaches
// it or deadline elapses (spec §6, request_wait_on_busy). It is the only
// suspension point besides BOC's WaitForExtend (spec §5).
func (e *Engine) WaitOnBusy(head *object.Objhead, deadline time.Time) object.WaitResult {
	head.Lock()
	wl := head.WaitList()
	head.Unlock()

	_, ch, cancel := wl.Enqueue(deadline)
	timer := time.NewTimer(time.Until(deadline))
	defer timer.Stop()

	select {
	case r := <-ch:
		return r
	case <-timer.C:
		cancel()
		if e.metrics != nil {
			e.metrics.WaitTimeouts.Mark(1)
		}
		select {
		case r := <-ch:
			// A rush may have raced the timer; prefer its result.
			return r
		default:
			return object.TimedOut
		}
	}
}

// Insert attaches a new Busy objcore to head's list and returns it (spec
// §4.5, "Insert"). Pass private=true for pass/synth responses that must
// never be shared — the returned objcore bypasses the waiting list and the
// LRU entirely (spec §4.5, "Private objcores").
func (e *Engine) Insert(head *object.Objhead, private bool, stv stevedore.Stevedore, ttl, grace, keep time.Duration) *object.Objcore {
	if private {
		oc := object.New(nil)
		oc.SetExpiry(time.Now(), ttl, grace, keep)
		return oc
	}

	oc := object.New(head)
	oc.SetExpiry(time.Now(), ttl, grace, keep)
	oc.SetNukeHook(func(victim *object.Objcore) { e.dropCore(head, victim) })

	head.Lock()
	head.InsertCore(oc)
	head.Unlock()

	if e.metrics != nil {
		e.metrics.Inserts.Mark(1)
	}
	return oc
}

// dropCore removes oc from head's list (LRU nuke or ban/purge teardown)
// and, if the head's list becomes empty, lets the table reclaim it on the
// next Deref.
func (e *Engine) dropCore(head *object.Objhead, oc *object.Objcore) {
	head.Lock()
	head.RemoveCore(oc)
	head.Unlock()
}

// Unbusy clears Busy on a successfully-fetched objcore and rushes waiters
// (spec §6, hsh_unbusy). If sentinelKind is non-zero (HFM or HFP) the
// objcore is flagged as that sentinel instead of a normal cached variant,
// and lookups of d are forced to MISS for oc.TTL.
func (e *Engine) Unbusy(d digest.Digest, head *object.Objhead, oc *object.Objcore, sentinelKind object.Flags) {
	oc.ClearFlags(object.Busy)
	oc.ClearBOC()
	if sentinelKind != 0 {
		oc.SetFlags(sentinelKind)
		e.sent.Arm(d, time.Now().Add(oc.TTL))
	}
	e.rush(head)
}

// Fail clears Busy and sets Failed on oc after a fetch error, then rushes
// waiters so they retry (spec §6, hsh_fail; spec §7, FetchFailed).
func (e *Engine) Fail(head *object.Objhead, oc *object.Objcore) {
	oc.ClearFlags(object.Busy)
	oc.SetFlags(object.Failed)
	oc.ClearBOC()
	if e.metrics != nil {
		e.metrics.FetchFails.Mark(1)
	}
	e.rush(head)
}

// rush releases waiters from head's waiting list in successive passes
// within this one call, multiplying the batch size by cfg.RushExponent on
// each pass, until the list is empty or a pass releases nothing (spec
// §4.4, hsh_rush — "n... grows on each pass, designed to avoid a
// thundering herd while ensuring forward progress").
func (e *Engine) rush(head *object.Objhead) {
	head.Lock()
	wl := head.WaitList()
	head.Unlock()

	n := e.cfg.RushExponent
	if n < 1 {
		n = 1
	}
	for pass := 0; ; pass++ {
		want := n
		for i := 0; i < pass; i++ {
			want *= e.cfg.RushExponent
		}
		if wl.Len() == 0 {
			return
		}
		released := wl.Rush(want)
		if released == 0 || wl.Len() == 0 {
			return
		}
	}
}

// Purge expires every objcore matching the digest in place, relative to
// now (spec §4.5, "purge").
func (e *Engine) Purge(head *object.Objhead, ttl, grace, keep time.Duration) {
	now := time.Now()
	head.Lock()
	defer head.Unlock()
	for el := head.Cores().Front(); el != nil; el = el.Next() {
		oc := el.Value.(*object.Objcore)
		oc.SetExpiry(now, ttl, grace, keep)
	}
}

// Ban registers a new ban predicate, optionally scoped to an explicit set
// of digests (enabling the bloom-filter fast path — see banList), and fans
// a persist event to every stevedore backend capable of recording it (spec
// §4.5, ban_info_new). Returns the backend OR-of-return-codes; non-zero
// means PersistDrop for at least one backend.
func (e *Engine) Ban(match func(*object.Objcore) bool, info []byte, scope ...digest.Digest) (id uint64, persistRC int) {
	digests := make([][32]byte, len(scope))
	for i, d := range scope {
		digests[i] = [32]byte(d)
	}
	id = e.bans.Add(match, digests...)
	return id, e.stv.BanInfoNew(info)
}

// Snipe tries to atomically transition oc to Dying from an idle
// (refcount==0) state, returning false if it is still referenced (spec
// §4.5, "snipe").
func (e *Engine) Snipe(oc *object.Objcore) bool {
	if oc.RefCount() != 0 {
		return false
	}
	oc.SetFlags(object.Dying)
	return true
}

// Kill marks oc Dying unconditionally; real teardown happens once its
// refcount reaches zero (spec §4.5, "kill").
func (e *Engine) Kill(oc *object.Objcore) {
	oc.SetFlags(object.Dying)
}
