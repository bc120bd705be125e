package object

import (
	"testing"
	"time"

	"github.com/rcache/engine/digest"
)

func TestNewObjcoreStartsBusy(t *testing.T) {
	h := NewObjhead(digest.Digest{})
	oc := New(h)
	if !oc.Flags().Has(Busy) {
		t.Fatal("expected a freshly created objcore to be Busy")
	}
	if oc.Flags().Has(Private) {
		t.Fatal("objcore attached to a head must not be Private")
	}
	if oc.BOC() == nil {
		t.Fatal("expected a freshly created objcore to carry a BOC")
	}
}

func TestNewObjcorePrivateWhenHeadless(t *testing.T) {
	oc := New(nil)
	if !oc.Flags().Has(Private) {
		t.Fatal("expected a headless objcore to be Private")
	}
}

func TestRefDerefRoundTrip(t *testing.T) {
	oc := New(nil)
	if oc.RefCount() != 1 {
		t.Fatalf("expected initial refcount 1, got %d", oc.RefCount())
	}
	oc.Ref()
	if oc.RefCount() != 2 {
		t.Fatalf("expected refcount 2, got %d", oc.RefCount())
	}
	if oc.Deref() {
		t.Fatal("expected Deref to report non-zero with refcount still 1")
	}
	if !oc.Deref() {
		t.Fatal("expected Deref to report zero at the final reference")
	}
}

func TestExpiryWindows(t *testing.T) {
	base := time.Unix(1000, 0)
	oc := New(nil)
	oc.TOrigin = base
	oc.TTL = 10 * time.Second
	oc.Grace = 5 * time.Second
	oc.Keep = 5 * time.Second

	if oc.Expired(base.Add(5 * time.Second)) {
		t.Fatal("should not be expired within TTL")
	}
	if !oc.Expired(base.Add(11 * time.Second)) {
		t.Fatal("should be expired past TTL")
	}
	if !oc.InGrace(base.Add(12 * time.Second)) {
		t.Fatal("should be in grace shortly after TTL expiry")
	}
	if oc.InGrace(base.Add(20 * time.Second)) {
		t.Fatal("should no longer be in grace past the grace window")
	}
	if !oc.InKeep(base.Add(18 * time.Second)) {
		t.Fatal("should be in keep past grace but within keep")
	}
	if oc.InKeep(base.Add(40 * time.Second)) {
		t.Fatal("should no longer be in keep past the keep window")
	}
}

func TestSetExpiryRebasesWindows(t *testing.T) {
	oc := New(nil)
	now := time.Unix(2000, 0)
	oc.SetExpiry(now, 0, 0, 0)
	if !oc.Expired(now) {
		t.Fatal("a zero-TTL purge should be immediately expired")
	}
}

func TestEvictableRules(t *testing.T) {
	oc := New(nil) // Private, BOC attached, refcount 1
	if oc.Evictable() {
		t.Fatal("a Private objcore must never be evictable")
	}

	h := NewObjhead(digest.Digest{})
	oc2 := New(h)
	if oc2.Evictable() {
		t.Fatal("an objcore still under construction (BOC attached) must not be evictable")
	}

	oc2.ClearBOC()
	if oc2.Evictable() {
		t.Fatal("an objcore with refcount > 0 must not be evictable")
	}
	oc2.Deref() // drop the construction-time reference to zero
	if !oc2.Evictable() {
		t.Fatal("expected a finished, unreferenced, non-Private objcore to be evictable")
	}
}

func TestNukeMarksDyingAndCallsHook(t *testing.T) {
	oc := New(nil)
	var hookCalled bool
	oc.SetNukeHook(func(n *Objcore) {
		if n != oc {
			t.Fatal("nuke hook called with wrong objcore")
		}
		hookCalled = true
	})
	oc.Nuke()
	if !oc.Flags().Has(Dying) {
		t.Fatal("expected Nuke to set the Dying flag")
	}
	if !hookCalled {
		t.Fatal("expected the nuke hook to run")
	}
}

func TestSetClearFlags(t *testing.T) {
	oc := New(nil)
	oc.SetFlags(HFM)
	if !oc.Flags().Has(HFM) {
		t.Fatal("expected HFM flag to be set")
	}
	oc.ClearFlags(HFM)
	if oc.Flags().Has(HFM) {
		t.Fatal("expected HFM flag to be cleared")
	}
}
