// Package stevedore implements the pluggable storage-backend abstraction
// (spec §3.6, §4.1 — component C1): the Stevedore method table, the
// fixed-capacity Chunk, and the process-wide Registry that holds every
// configured backend.
package stevedore

import "errors"

// AllocFlags modify an allocation request.
type AllocFlags uint8

// LessOK permits Alloc to return a chunk smaller than requested rather than
// fail outright, per the shrink-then-nuke retry loop in §4.2.
const LessOK AllocFlags = 1 << iota

// ErrOutOfStorage is returned when an allocation cannot be satisfied even
// after shrinking and nuking (spec §7, OutOfStorage).
var ErrOutOfStorage = errors.New("stevedore: out of storage")

// Chunk is a contiguous allocation from a Stevedore holding part of a body
// or a fixed-size header (spec §3.4).
//
// Invariant: for any chunk that is not the last in a chain, Len == Space.
// Only the last chunk in a chain may be partially filled.
type Chunk struct {
	Bytes []byte    // payload; len(Bytes) == Space
	Space int       // capacity, <= fetch_maxchunksize
	Len   int       // bytes currently valid, <= Space
	Owner Stevedore // backend that allocated this chunk

	// Handle is a backend-private token (e.g. a billy shelf id) used by
	// backends that don't keep the payload resident in Bytes. Zero value
	// means "unused".
	Handle uint64
}

// Stevedore is a registered storage backend (spec §3.6).
type Stevedore interface {
	// Name is the human-readable backend name (e.g. "malloc", "file").
	Name() string
	// ID is the identifier used by Registry.Find and by stobj handles.
	ID() string

	Open() error
	// Close runs a lifecycle close pass. warning is true for the first
	// ("warning") pass and false for the final pass (spec §4.1).
	Close(warning bool) error

	// SmlAlloc allocates a new chunk of exactly size bytes. Callers apply
	// the shrink/nuke retry policy (body.Allocator); SmlAlloc itself just
	// reports success or failure for the exact size requested.
	SmlAlloc(size int) (*Chunk, error)
	// SmlFree releases a chunk back to the backend.
	SmlFree(c *Chunk)

	// AllocObj allocates the header chunk for a new object, of exactly
	// workspace bytes; body.Allocator.AllocObj passes the header size plus
	// the padded workspace as that total (spec §4.2, "Object allocation").
	AllocObj(workspace int) (*Chunk, error)

	// LRU returns this backend's eviction list, or nil if it doesn't keep
	// one (spec §4.2, "LRU").
	LRU() *LRU
}

// ObjGetter is implemented by backends that can look up a previously stored
// object by its on-disk handle without the in-process objcore (spec §3.6,
// optional sml_getobj). Most backends don't implement it.
type ObjGetter interface {
	SmlGetObj(handle uint64) (*Chunk, error)
}

// BanPersister is implemented by backends that can durably record ban
// events (spec §3.6, optional baninfo/banexport). A non-zero return means
// the backend could not persist and the caller should surface PersistDrop.
type BanPersister interface {
	BanInfoNew(b []byte) int
	BanInfoDrop(b []byte) int
	BanExport(b []byte) int
}

// Transient is the reserved identifier for the always-present transient
// backend used for uncacheable/short-lived objects (spec §3.6).
const Transient = "transient"
