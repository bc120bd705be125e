// Package digest computes and represents the 32-byte cache key derived from
// a canonicalized request.
package digest

import (
	"crypto/sha256"
	"encoding/hex"
	"hash"

	"github.com/holiman/uint256"
)

// Size is the fixed length of a Digest in bytes.
const Size = sha256.Size

// Digest is the cache key: a fixed 32-byte value computed by feeding a
// canonicalized sequence of hash-key fields into a cryptographic hash.
type Digest [Size]byte

// Zero is the all-zero digest, used by tests and as a sentinel.
var Zero Digest

// String renders the digest as lowercase hex.
func (d Digest) String() string {
	return hex.EncodeToString(d[:])
}

// Bytes returns the digest's bytes as a slice. Callers must not mutate it.
func (d Digest) Bytes() []byte {
	return d[:]
}

// Less reports whether d sorts before other, treating both as big-endian
// unsigned integers.
func (d Digest) Less(other Digest) bool {
	return d.Uint256().Lt(other.Uint256())
}

// Uint256 loads the digest into a uint256.Int for fast bitwise comparisons.
func (d Digest) Uint256() *uint256.Int {
	return new(uint256.Int).SetBytes32(d[:])
}

// Bit returns bit n (0 = most significant) of the digest, counting from the
// most significant bit of the first byte. Used by the critbit strategy to
// walk its binary trie without re-deriving bit arithmetic inline.
func (d Digest) Bit(n int) uint {
	byteIdx := n / 8
	bitIdx := 7 - uint(n%8)
	return uint((d[byteIdx] >> bitIdx) & 1)
}

// Builder canonicalizes a sequence of hash-key fields (method, host, URL,
// Vary-selected header values, ...) into a single Digest. Fields must be fed
// in a stable, caller-determined order — the same inputs in the same order
// always yield the same digest.
type Builder struct {
	h hash.Hash
}

// NewBuilder returns a fresh Builder.
func NewBuilder() *Builder {
	return &Builder{h: sha256.New()}
}

// AddString feeds a canonicalization field into the digest, separated from
// neighboring fields by a NUL byte so that e.g. ("ab", "c") and ("a", "bc")
// never collide.
func (b *Builder) AddString(s string) *Builder {
	b.h.Write([]byte(s))
	b.h.Write([]byte{0})
	return b
}

// AddBytes is the []byte equivalent of AddString.
func (b *Builder) AddBytes(p []byte) *Builder {
	b.h.Write(p)
	b.h.Write([]byte{0})
	return b
}

// Sum finalizes the digest.
func (b *Builder) Sum() Digest {
	var d Digest
	copy(d[:], b.h.Sum(nil))
	return d
}
