package feeds

import (
	"math"
	"time"
)

// DefaultHalfLife is how long it takes an untouched post to lose half of its
// relevance.
const DefaultHalfLife = 7 * 24 * time.Hour

// DecayPolicy time-decays relevance so older posts rank lower absent
// re-engagement. The factor approaches zero asymptotically, posts are never
// discarded from the index for being old.
//
// Computed in Go rather than in SQL: modernc.org/sqlite has no pow().
type DecayPolicy struct {
	halfLife time.Duration
}

// NewDecayPolicy returns an exponential decay policy with the given
// half-life. Non-positive half-lives fall back to DefaultHalfLife.
func NewDecayPolicy(halfLife time.Duration) *DecayPolicy {
	if halfLife <= 0 {
		halfLife = DefaultHalfLife
	}
	return &DecayPolicy{halfLife: halfLife}
}

// Factor returns the freshness multiplier in (0, 1] for a post created at the
// given unix timestamp. Posts with timestamps in the future count as brand
// new.
func (p *DecayPolicy) Factor(createdAt int64, now time.Time) float64 {
	age := now.Sub(time.Unix(createdAt, 0))
	if age <= 0 {
		return 1.0
	}
	return math.Exp(-math.Ln2 * age.Seconds() / p.halfLife.Seconds())
}
