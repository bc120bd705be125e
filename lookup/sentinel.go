package lookup

import (
	"sync"
	"time"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/rcache/engine/digest"
)

// sentinels tracks digests currently forced to MISS or PASS by a
// hit-for-miss/hit-for-pass objcore, for a window equal to that sentinel's
// TTL (spec §4.5, "When a fetch marks an objcore HFM/HFP, subsequent
// lookups will treat it as a sentinel that forces MISS/PASS for a window
// equal to its TTL"). Grounded on miner/worker.go's own
// mapset.Set[common.Hash] usage for a concurrent membership set.
type sentinels struct {
	mu      sync.Mutex
	set     mapset.Set[digest.Digest]
	expires map[digest.Digest]time.Time
}

func newSentinels() *sentinels {
	return &sentinels{
		set:     mapset.NewSet[digest.Digest](),
		expires: make(map[digest.Digest]time.Time),
	}
}

// Arm marks d as sentinel-forced until until.
func (s *sentinels) Arm(d digest.Digest, until time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.set.Add(d)
	s.expires[d] = until
}

// Active reports whether d is still within its sentinel window as of now,
// lazily evicting it (and returning false) once the window has passed.
func (s *sentinels) Active(d digest.Digest, now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	exp, ok := s.expires[d]
	if !ok {
		return false
	}
	if now.After(exp) {
		s.set.Remove(d)
		delete(s.expires, d)
		return false
	}
	return true
}

// Disarm removes d's sentinel immediately (e.g. once a fresh objcore has
// replaced it).
func (s *sentinels) Disarm(d digest.Digest) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.set.Remove(d)
	delete(s.expires, d)
}
