package stevedore

// transientStevedore is the always-present backend for uncacheable or
// short-lived objects (spec §3.6). It allocates plain heap buffers and
// keeps no LRU: transient objects are never eviction candidates, they're
// simply freed when their refcount drops to zero.
type transientStevedore struct{}

// NewTransient returns the reserved transient backend.
func NewTransient() Stevedore { return transientStevedore{} }

func (transientStevedore) Name() string { return "transient" }
func (transientStevedore) ID() string   { return Transient }

func (transientStevedore) Open() error         { return nil }
func (transientStevedore) Close(bool) error    { return nil }
func (t transientStevedore) LRU() *LRU         { return nil }

func (t transientStevedore) SmlAlloc(size int) (*Chunk, error) {
	return &Chunk{Bytes: make([]byte, size), Space: size, Owner: t}, nil
}

func (t transientStevedore) SmlFree(c *Chunk) {
	c.Bytes = nil
	c.Len, c.Space = 0, 0
}

func (t transientStevedore) AllocObj(workspace int) (*Chunk, error) {
	return t.SmlAlloc(workspace)
}
