// Package config holds the tunables consumed by the cache core (spec §6),
// grouped the way the teacher's params.ChainConfig groups chain-wide knobs.
package config

import "time"

// HashAlgorithm selects the object-index strategy (§4.4).
type HashAlgorithm string

const (
	HashSimple  HashAlgorithm = "simple"
	HashClassic HashAlgorithm = "classic"
	HashCritbit HashAlgorithm = "critbit"
)

// Params are the tunables the core consults. They are supplied once at
// startup and treated as read-only thereafter; nothing in the core mutates
// a Params after construction.
type Params struct {
	// FetchChunkSize is the preferred chunk size for new body allocations.
	FetchChunkSize int

	// FetchMaxChunkSize is the hard cap per chunk. Allocations above this
	// size fail unless LessOK is requested by the caller.
	FetchMaxChunkSize int

	// NukeLimit bounds how many LRU evictions a single allocation attempt
	// may trigger before giving up.
	NukeLimit int

	// RushExponent controls how the waiter count grows on each rush pass:
	// pass i releases up to RushExponent^i waiters, bounded by the waiting
	// list's length.
	RushExponent int

	// DefaultTTL, DefaultGrace, DefaultKeep are the initial expiry windows
	// applied to newly inserted objects absent any overriding policy.
	DefaultTTL   time.Duration
	DefaultGrace time.Duration
	DefaultKeep  time.Duration

	// HashAlgorithm selects the objhash.Table strategy.
	HashAlgorithm HashAlgorithm

	// WaitTimeout bounds how long a request may sit on an objhead's waiting
	// list before it is reported as timed out (§5, Cancellation and
	// timeouts).
	WaitTimeout time.Duration

	// MaxConcurrentRefetch bounds the number of background EXP
	// revalidation fetches the engine will itself spawn concurrently.
	MaxConcurrentRefetch int64
}

// Default returns the tunables' documented defaults.
func Default() Params {
	return Params{
		FetchChunkSize:       128 * 1024,
		FetchMaxChunkSize:    4 * 1024 * 1024,
		NukeLimit:            50,
		RushExponent:         2,
		DefaultTTL:           120 * time.Second,
		DefaultGrace:         10 * time.Second,
		DefaultKeep:          0,
		HashAlgorithm:        HashSimple,
		WaitTimeout:          15 * time.Second,
		MaxConcurrentRefetch: 16,
	}
}
