package feeds

import (
	"math"
	"time"

	"pressfeed/models"
)

// Scorer computes the relevance of a post to a set of subscribed interests.
// Higher is more relevant. Scoring is pure: identical inputs always produce
// identical scores, which pagination relies on.
type Scorer struct {
	decay *DecayPolicy
}

func NewScorer(decay *DecayPolicy) *Scorer {
	return &Scorer{decay: decay}
}

// Score multiplies three factors:
//
//   - the number of post tags intersecting the subscription, weighted by the
//     highest affinity among the matched interests (the maximum, not a sum,
//     so heavily-tagged posts gain no unfair advantage)
//   - an engagement boost growing logarithmically with the like counter
//   - the freshness factor from the decay policy
//
// Callers must only pass posts with at least one intersecting tag; the tag
// index query guarantees that upstream, so zero-match posts are never scored.
func (s *Scorer) Score(post models.Post, sub models.Subscription, now time.Time) float64 {
	matched := 0
	maxWeight := 0.0
	for _, tag := range post.Interests {
		if w, ok := sub[tag]; ok {
			matched++
			if w > maxWeight {
				maxWeight = w
			}
		}
	}
	if matched == 0 {
		return 0
	}

	base := maxWeight * float64(matched)
	engagement := 1 + math.Log1p(float64(post.Likes))

	return base * engagement * s.decay.Factor(post.CreatedAt, now)
}
