// Package lookup implements the lookup & coalescing engine (spec §4.5,
// component C5): classification into HIT/MISS/BUSY/EXP/EXPBUSY, insert,
// purge/ban propagation, and waking waiters when a fetch completes or
// fails.
//
// Grounded on eth/feemarket/cache.go's loop()/removeStaleEntries()
// background-goroutine pattern for how the engine drives expiry, and on
// miner/worker.go's channel-based main loop for the general shape of a
// coordinator that reacts to completion events by waking parked work.
package lookup

import "github.com/rcache/engine/object"

// Outcome classifies a lookup (spec §4.5's table).
type Outcome int

const (
	// Miss means nothing in the head's objcore list matches; the caller
	// should create a new Busy objcore and insert it.
	Miss Outcome = iota
	// Hit means a matching, fresh, non-busy objcore was found.
	Hit
	// Busy means only busy candidates were found; the caller may park on
	// the waiting list.
	Busy
	// Exp means a matching objcore was found in grace with no busy
	// refresh in flight; the caller may background-refetch.
	Exp
	// ExpBusy means a matching objcore was found in grace while a refresh
	// is already in flight; the caller serves the grace copy immediately.
	ExpBusy
)

func (o Outcome) String() string {
	switch o {
	case Miss:
		return "MISS"
	case Hit:
		return "HIT"
	case Busy:
		return "BUSY"
	case Exp:
		return "EXP"
	case ExpBusy:
		return "EXPBUSY"
	default:
		return "UNKNOWN"
	}
}

// Result is what a Lookup call returns.
type Result struct {
	Outcome Outcome

	// Oc is the objcore to serve: set on Hit, Exp and ExpBusy.
	Oc *object.Objcore

	// BusyOc is the in-flight refresh objcore: set on ExpBusy only.
	BusyOc *object.Objcore

	// Head is the pinned objhead backing this lookup. Callers must
	// eventually call Engine.Release(Head) exactly once, regardless of
	// outcome.
	Head *object.Objhead
}
