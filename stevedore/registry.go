package stevedore

import (
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
)

// Registry holds the process-wide set of configured storage backends
// (spec §4.1, component C1).
type Registry struct {
	mu    sync.Mutex // guards backends during Register/open/close
	list  []Stevedore
	byID  map[string]Stevedore
	next  atomic.Pointer[Stevedore] // round-robin cursor, §13 Open Question
	trans Stevedore
}

// NewRegistry creates an empty Registry backed by the given transient
// stevedore (always present, reserved identifier "transient").
func NewRegistry(transient Stevedore) *Registry {
	r := &Registry{
		byID:  make(map[string]Stevedore),
		trans: transient,
	}
	r.byID[transient.ID()] = transient
	return r
}

// Register appends stv to the ordered backend list. Must happen before
// OpenAll; the list is append-only at startup (spec §5, Shared-resource
// policy).
func (r *Registry) Register(stv Stevedore) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.list = append(r.list, stv)
	r.byID[stv.ID()] = stv
	if len(r.list) == 1 {
		first := r.list[0]
		r.next.Store(&first)
	}
}

// OpenAll opens every registered backend, in registration order.
func (r *Registry) OpenAll() error {
	r.mu.Lock()
	list := append([]Stevedore(nil), r.list...)
	r.mu.Unlock()

	for _, stv := range list {
		if err := stv.Open(); err != nil {
			return err
		}
	}
	return nil
}

// CloseAll runs the two-phase shutdown from spec §4.1: a "warning" pass
// (argument 1) fanned out across every backend concurrently, fully joined,
// followed by a "final" pass (argument 0), also fanned out and joined. Each
// pass invokes the backend's Close hook if present.
func (r *Registry) CloseAll() error {
	r.mu.Lock()
	list := append([]Stevedore(nil), r.list...)
	r.mu.Unlock()

	if err := closePass(list, true); err != nil {
		return err
	}
	return closePass(list, false)
}

func closePass(list []Stevedore, warning bool) error {
	var g errgroup.Group
	for _, stv := range list {
		stv := stv
		g.Go(func() error {
			return stv.Close(warning)
		})
	}
	return g.Wait()
}

// Next round-robins among registered non-transient backends, returning the
// transient backend if none is registered (spec §4.1, STV_next).
func (r *Registry) Next() Stevedore {
	r.mu.Lock()
	list := r.list
	r.mu.Unlock()
	if len(list) == 0 {
		return r.trans
	}

	cur := r.next.Load()
	idx := 0
	if cur != nil {
		for i, s := range list {
			if s == *cur {
				idx = (i + 1) % len(list)
				break
			}
		}
	}
	picked := list[idx]
	r.next.Store(&picked)
	return picked
}

// Find looks up a backend by identifier, returning the transient backend if
// name matches its reserved identifier (spec §4.1, STV_find).
func (r *Registry) Find(name string) Stevedore {
	if name == Transient {
		return r.trans
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.byID[name]
}

// TransientStevedore returns the registry's always-present transient backend.
func (r *Registry) TransientStevedore() Stevedore {
	return r.trans
}

// BanInfoNew fans a new-ban event to every backend implementing
// BanPersister, returning the bitwise OR of their return codes (non-zero
// means at least one backend could not persist).
func (r *Registry) BanInfoNew(b []byte) int {
	return r.fanBan(b, func(bp BanPersister, b []byte) int { return bp.BanInfoNew(b) })
}

// BanInfoDrop is the drop-event equivalent of BanInfoNew.
func (r *Registry) BanInfoDrop(b []byte) int {
	return r.fanBan(b, func(bp BanPersister, b []byte) int { return bp.BanInfoDrop(b) })
}

// BanExport fans an export request to every backend implementing
// BanPersister.
func (r *Registry) BanExport(b []byte) int {
	return r.fanBan(b, func(bp BanPersister, b []byte) int { return bp.BanExport(b) })
}

func (r *Registry) fanBan(b []byte, call func(BanPersister, []byte) int) int {
	r.mu.Lock()
	list := append([]Stevedore(nil), r.list...)
	r.mu.Unlock()

	rc := 0
	for _, stv := range list {
		if bp, ok := stv.(BanPersister); ok {
			rc |= call(bp, b)
		}
	}
	return rc
}
