package config

import "testing"

func TestDefaultIsInternallyConsistent(t *testing.T) {
	p := Default()
	if p.FetchChunkSize <= 0 || p.FetchMaxChunkSize <= 0 {
		t.Fatal("chunk sizes must be positive")
	}
	if p.FetchChunkSize > p.FetchMaxChunkSize {
		t.Fatal("preferred chunk size must not exceed the hard cap")
	}
	if p.NukeLimit <= 0 {
		t.Fatal("NukeLimit must be positive or allocation retries would never terminate")
	}
	if p.RushExponent <= 1 {
		t.Fatal("RushExponent must be > 1 to make forward progress across rush passes")
	}
	if p.HashAlgorithm != HashSimple {
		t.Fatalf("expected the documented default strategy %q, got %q", HashSimple, p.HashAlgorithm)
	}
	if p.WaitTimeout <= 0 {
		t.Fatal("WaitTimeout must be positive")
	}
	if p.MaxConcurrentRefetch <= 0 {
		t.Fatal("MaxConcurrentRefetch must be positive")
	}
}

func TestHashAlgorithmConstants(t *testing.T) {
	vals := []HashAlgorithm{HashSimple, HashClassic, HashCritbit}
	seen := map[HashAlgorithm]bool{}
	for _, v := range vals {
		if seen[v] {
			t.Fatalf("duplicate HashAlgorithm constant value %q", v)
		}
		seen[v] = true
	}
}
