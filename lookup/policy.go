package lookup

import (
	"bytes"
	"time"

	"github.com/rcache/engine/object"
)

// Candidates is what one pass over an objhead's objcore list produced,
// handed to Policy.Classify to turn into an Outcome (spec §9's open
// question: "the exact rule that classifies a lookup as EXP vs EXPBUSY vs
// MISS depends on VCL-driven policy; the core must expose hooks rather
// than hard-code").
type Candidates struct {
	// Matched is the first matching, fresh, non-busy objcore, if any.
	Matched *object.Objcore
	// MatchedExpired is the first matching objcore found in grace, if any.
	MatchedExpired *object.Objcore
	// BusyAny is any busy (non-HFM/HFP) candidate found, regardless of
	// variant match — a busy fetch for any variant of this digest is
	// enough to justify EXPBUSY/BUSY per spec §4.5 step 2.
	BusyAny *object.Objcore
}

// Policy decides how lookup Candidates map to an Outcome. The default
// implementation matches spec §4.5's table exactly; callers (tests, or a
// VCL-equivalent policy layer) may substitute their own.
type Policy interface {
	Classify(now time.Time, c Candidates) (Outcome, *object.Objcore, *object.Objcore)
	// VaryMatches reports whether oc's stored variant key matches the
	// request's vary vector.
	VaryMatches(oc *object.Objcore, vary []byte) bool
}

// DefaultPolicy implements spec §4.5's classification table literally.
type DefaultPolicy struct{}

func (DefaultPolicy) Classify(_ time.Time, c Candidates) (Outcome, *object.Objcore, *object.Objcore) {
	if c.Matched != nil {
		return Hit, c.Matched, nil
	}
	if c.MatchedExpired != nil {
		if c.BusyAny != nil {
			return ExpBusy, c.MatchedExpired, c.BusyAny
		}
		return Exp, c.MatchedExpired, nil
	}
	if c.BusyAny != nil {
		return Busy, nil, nil
	}
	return Miss, nil, nil
}

func (DefaultPolicy) VaryMatches(oc *object.Objcore, vary []byte) bool {
	return bytes.Equal(oc.Vary, vary)
}
