// Package objhash implements the hash table / object index (spec §4.4,
// component C4): the abstract Table interface mapping a 32-byte digest to
// an Objhead, behind three candidate strategies ("simple", "classic",
// "critbit") named in original_source/bin/varnishd/hash/hash_slinger.h.
package objhash

import (
	"github.com/rcache/engine/config"
	"github.com/rcache/engine/digest"
	"github.com/rcache/engine/object"
)

// Table maps a digest to its Objhead. All three strategies satisfy the same
// find-or-insert / deref contract (spec §4.4).
type Table interface {
	// Lookup returns the existing head for d, pinning it (refcount++), or
	// atomically inserts and returns a fresh one (refcount starts at 1).
	// created reports which case occurred.
	Lookup(d digest.Digest) (head *object.Objhead, created bool)

	// Deref decrements head's refcount via the backing table (so the table
	// may remove empty heads) and reports whether the head was just
	// destroyed.
	Deref(head *object.Objhead) bool

	// Len reports how many heads are currently tracked. For diagnostics and
	// tests only.
	Len() int
}

// New builds the Table implementation selected by algo (spec §6,
// hash_algorithm tunable).
func New(algo config.HashAlgorithm) Table {
	switch algo {
	case config.HashClassic:
		return newClassicTable()
	case config.HashCritbit:
		return newCritbitTable()
	default:
		return newSimpleTable()
	}
}
