package digest

import "testing"

func TestBuilderDeterministic(t *testing.T) {
	d1 := NewBuilder().AddString("GET").AddString("example.com").AddString("/a").Sum()
	d2 := NewBuilder().AddString("GET").AddString("example.com").AddString("/a").Sum()
	if d1 != d2 {
		t.Fatalf("same inputs in same order must yield the same digest: %s != %s", d1, d2)
	}
}

func TestBuilderFieldBoundary(t *testing.T) {
	// "ab","c" must not collide with "a","bc".
	d1 := NewBuilder().AddString("ab").AddString("c").Sum()
	d2 := NewBuilder().AddString("a").AddString("bc").Sum()
	if d1 == d2 {
		t.Fatalf("field boundary collision: %s == %s", d1, d2)
	}
}

func TestBuilderOrderSensitive(t *testing.T) {
	d1 := NewBuilder().AddString("GET").AddString("/a").Sum()
	d2 := NewBuilder().AddString("/a").AddString("GET").Sum()
	if d1 == d2 {
		t.Fatalf("different order should (almost certainly) yield different digests")
	}
}

func TestBit(t *testing.T) {
	var d Digest
	d[0] = 0b10000000
	if d.Bit(0) != 1 {
		t.Fatalf("expected MSB of first byte to be 1")
	}
	if d.Bit(1) != 0 {
		t.Fatalf("expected second bit to be 0")
	}
}

func TestLessMatchesUint256(t *testing.T) {
	a := Digest{0x00}
	b := Digest{0x01}
	if !a.Less(b) {
		t.Fatalf("expected a < b")
	}
	if b.Less(a) {
		t.Fatalf("expected b >= a")
	}
}
