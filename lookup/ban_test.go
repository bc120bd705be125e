package lookup

import (
	"testing"

	"github.com/rcache/engine/object"
)

func TestBanListMaybeBannedFalseWhenEmpty(t *testing.T) {
	bl := newBanList()
	if bl.MaybeBanned([32]byte{1}) {
		t.Fatal("expected MaybeBanned to report false with no bans registered")
	}
}

func TestBanListScopedBanBloomFastPath(t *testing.T) {
	bl := newBanList()
	var touched [32]byte
	touched[0] = 1
	var untouched [32]byte
	untouched[0] = 2

	bl.Add(func(oc *object.Objcore) bool { return true }, touched)

	if !bl.MaybeBanned(touched) {
		t.Fatal("expected the ban-touched digest to be flagged maybe-banned")
	}
	if bl.MaybeBanned(untouched) {
		t.Fatal("expected an untouched digest to be definitely not banned")
	}
}

func TestBanListGenericBanForcesFullScanForEveryDigest(t *testing.T) {
	bl := newBanList()
	bl.Add(func(oc *object.Objcore) bool { return false }) // no digests: generic
	var any [32]byte
	any[0] = 42
	if !bl.MaybeBanned(any) {
		t.Fatal("expected a generic ban to force MaybeBanned true for any digest")
	}
}

func TestBanListFreshMarksMatchingObjcoreDying(t *testing.T) {
	bl := newBanList()
	bl.Add(func(oc *object.Objcore) bool { return true })

	oc := object.New(nil)
	if bl.fresh(oc) {
		t.Fatal("expected fresh to return false for a ban-matched objcore")
	}
	if !oc.Flags().Has(object.Dying) {
		t.Fatal("expected a ban match to set the Dying flag")
	}
}

func TestBanListFreshTrueWhenNoMatch(t *testing.T) {
	bl := newBanList()
	bl.Add(func(oc *object.Objcore) bool { return false })

	oc := object.New(nil)
	if !bl.fresh(oc) {
		t.Fatal("expected fresh to return true when no ban matches")
	}
	if oc.Flags().Has(object.Dying) {
		t.Fatal("expected no flag change when no ban matches")
	}
}
