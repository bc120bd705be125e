package lookup

import (
	"sync"
	"time"

	"github.com/holiman/bloomfilter/v2"
	"github.com/rcache/engine/object"
)

// Ban is a predicate that invalidates matching cached objects lazily, at
// lookup time (spec §4.5, glossary "Ban").
type Ban struct {
	ID      uint64
	Created time.Time
	Match   func(*object.Objcore) bool
}

// banList holds every ban predicate created so far. Bans scoped to an
// explicit set of digests (the common case: "ban this exact URL", where
// the caller already knows which digest(s) it names) are also recorded
// into a bloom filter, so a lookup whose digest was never ban-touched can
// skip the full per-head scan entirely (SPEC_FULL.md §11 domain-stack
// wiring for github.com/holiman/bloomfilter/v2). A ban with no explicit
// scope (a fully generic content predicate, e.g. "ban everything whose
// Content-Type matches...") can't be represented in a digest-keyed bloom
// filter, so its presence forces every lookup down the full-scan path
// regardless of what the bloom filter says.
type banList struct {
	mu         sync.Mutex
	bans       []Ban
	next       uint64
	bloom      *bloomfilter.Filter
	hasGeneric bool
}

func newBanList() *banList {
	// 2^20 bits with 4 hash functions: about 100K ban-touched digests at a
	// 1% false-positive rate;
	// a false positive only costs a full scan, never a correctness bug.
	f, err := bloomfilter.New(1<<20, 4)
	if err != nil {
		// bloomfilter.New only errors on a degenerate (m, k); these
		// constants are fixed and known-good.
		panic(err)
	}
	return &banList{bloom: f}
}

// Add registers a new ban, returning its ID. digests, if non-empty, scopes
// the ban to exactly those cache keys for the bloom fast-path; an empty
// digests list marks the ban as generic (see banList's doc comment).
func (bl *banList) Add(match func(*object.Objcore) bool, digests ...[32]byte) uint64 {
	bl.mu.Lock()
	defer bl.mu.Unlock()
	bl.next++
	bl.bans = append(bl.bans, Ban{ID: bl.next, Created: time.Now(), Match: match})
	if len(digests) == 0 {
		bl.hasGeneric = true
	}
	for _, d := range digests {
		bl.bloom.Add(hash64(d))
	}
	return bl.next
}

// MaybeBanned reports whether d might be affected by a registered ban.
// False means "definitely not" (safe to skip ban evaluation entirely);
// true means "maybe — evaluate the ban list for real".
func (bl *banList) MaybeBanned(d [32]byte) bool {
	bl.mu.Lock()
	defer bl.mu.Unlock()
	if len(bl.bans) == 0 {
		return false
	}
	if bl.hasGeneric {
		return true
	}
	return bl.bloom.Contains(hash64(d))
}

// fresh evaluates oc against every registered ban, marking it Dying and
// returning false on the first match (spec §4.5, purge/ban freshness
// evaluation during lookup).
func (bl *banList) fresh(oc *object.Objcore) bool {
	bl.mu.Lock()
	bans := append([]Ban(nil), bl.bans...)
	bl.mu.Unlock()

	for _, b := range bans {
		if b.Match(oc) {
			oc.SetFlags(object.Dying)
			return false
		}
	}
	return true
}

// hash64 folds a 32-byte digest down to a uint64 for the bloom filter's
// hash input, taking the first 8 bytes — the digest is already a uniformly
// distributed cryptographic hash, so truncation doesn't bias the filter.
func hash64(d [32]byte) uint64 {
	var h uint64
	for i := 0; i < 8; i++ {
		h = h<<8 | uint64(d[i])
	}
	return h
}
