// Package object implements the in-memory cached object (spec §3.3, §4.3 —
// component C3): objcore metadata, its attribute storage (fixed, variable,
// auxiliary), and the stevedore-private handle indirection.
//
// Grounded on eth/feemarket/cache.go's CacheMetadata/*Entry embedding
// pattern for "metadata struct embedded in every cache entry", generalized
// here to the richer fixed/variable/auxiliary attribute model §3.3 requires.
package object

import (
	"fmt"
	"sync"

	"github.com/rcache/engine/stevedore"
)

// Attr names the attributes an object carries (spec §4.3): AttrStatus,
// AttrMethod and AttrURL are fixed-slot (written exactly once, at insert
// time); AttrHeaders is variable-length; AttrVary is auxiliary, owning its
// own backing chunk (see auxAttrSet).
type Attr int

const (
	AttrStatus Attr = iota
	AttrMethod
	AttrURL
	nFixedAttrs
	AttrHeaders
	AttrVary
)

// Stobj is the small indirection record pointing at an object's
// stevedore-private storage (spec §3.3).
type Stobj struct {
	Stevedore stevedore.Stevedore
	Priv      *stevedore.Chunk
	Priv2     uint64
}

// Object is an object's attribute set: fixed attribute slots, a map of
// variable-length attributes, and a set of auxiliary attributes each owning
// its own stevedore chunk (spec §4.3). Fixed and variable attributes are
// held as Go byte slices inside Object; they are not stored in a stevedore
// chunk.
type Object struct {
	mu sync.Mutex

	fixed    [nFixedAttrs][]byte
	variable map[Attr][]byte
	aux      map[Attr]*stevedore.Chunk
}

// NewObject returns an empty Object header.
func NewObject() *Object {
	return &Object{
		variable: make(map[Attr][]byte),
		aux:      make(map[Attr]*stevedore.Chunk),
	}
}

// GetAttr returns the borrowed bytes for attr and whether it is set.
func (o *Object) GetAttr(attr Attr) ([]byte, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if isAuxiliary(attr) {
		if c, ok := o.aux[attr]; ok {
			return c.Bytes[:c.Len], true
		}
		return nil, false
	}
	if attr < nFixedAttrs {
		b := o.fixed[attr]
		return b, b != nil
	}
	if b, ok := o.variable[attr]; ok {
		return b, true
	}
	return nil, false
}

// SetAttr stores attr's value. Fixed attributes overwrite the existing slot
// (it is a programming error to resize one); variable attributes may grow or
// shrink freely within the same logical record; auxiliary attributes each
// get their own backing chunk, allocated from stv on first use (and again
// whenever a value outgrows it). Auxiliary classification is checked before
// the fixed-slot range test.
func (o *Object) SetAttr(attr Attr, v []byte, stv stevedore.Stevedore, alloc func(stevedore.Stevedore, int) (*stevedore.Chunk, error)) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if isAuxiliary(attr) {
		c, ok := o.aux[attr]
		if !ok || len(v) > c.Space {
			var err error
			c, err = alloc(stv, len(v))
			if err != nil {
				return err
			}
			o.aux[attr] = c
		}
		copy(c.Bytes, v)
		c.Len = len(v)
		return nil
	}

	if attr < nFixedAttrs {
		if existing := o.fixed[attr]; existing != nil && len(existing) != len(v) {
			panic(fmt.Sprintf("object: fixed attr %d resized from %d to %d bytes", attr, len(existing), len(v)))
		}
		cp := make([]byte, len(v))
		copy(cp, v)
		o.fixed[attr] = cp
		return nil
	}

	cp := make([]byte, len(v))
	copy(cp, v)
	o.variable[attr] = cp
	return nil
}

// auxAttrSet holds the attributes that own their own chunk rather than living
// packed in the variable region. In this core only Vary (which can be
// arbitrarily large and is looked at independently of the rest of the
// metadata) is auxiliary; callers may extend this set.
var auxAttrSet = map[Attr]bool{
	AttrVary: true,
}

func isAuxiliary(attr Attr) bool { return auxAttrSet[attr] }

// Slim drops every auxiliary attribute, freeing its chunk via its owning
// stevedore (spec §4.2, slim). Fixed and variable attributes are Go memory
// inside Object and are left untouched.
func (o *Object) Slim() {
	o.mu.Lock()
	aux := o.aux
	o.aux = make(map[Attr]*stevedore.Chunk)
	o.mu.Unlock()

	for _, c := range aux {
		c.Owner.SmlFree(c)
	}
}
