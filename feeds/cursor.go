package feeds

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"sort"

	"github.com/samber/lo"

	"pressfeed/models"
)

// cursor encodes pagination progress through a ranked result set. Fence pins
// the walk to the insertion sequence observed on the first page, ScoredAt
// pins the decay reference time, and Score/LastId are the keyset position to
// resume strictly after. Sig ties the cursor to one subscription so a cursor
// cannot be replayed against a different feed.
type cursor struct {
	Sig      string  `json:"sig"`
	Fence    uint64  `json:"fence"`
	ScoredAt int64   `json:"scoredAt"`
	Score    float64 `json:"score"`
	LastId   int64   `json:"lastId"`
}

func encodeCursor(c cursor) string {
	data, _ := json.Marshal(c)
	return base64.RawURLEncoding.EncodeToString(data)
}

// decodeCursor parses an opaque cursor token and checks it against the
// signature of the current subscription. Any mismatch or garbage token is
// reported as ErrInvalidCursor, never coerced to a fresh walk.
func decodeCursor(token string, sig string) (cursor, error) {
	data, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return cursor{}, models.ErrInvalidCursor
	}
	var c cursor
	if err := json.Unmarshal(data, &c); err != nil {
		return cursor{}, models.ErrInvalidCursor
	}
	if c.Sig != sig {
		return cursor{}, models.ErrInvalidCursor
	}
	return c, nil
}

// subscriptionSignature hashes the canonical form of a subscription, sorted
// interest names with their affinity weights.
func subscriptionSignature(sub models.Subscription) string {
	names := lo.Keys(sub)
	sort.Strings(names)

	h := fnv.New64a()
	for _, name := range names {
		fmt.Fprintf(h, "%s:%g;", name, sub[name])
	}
	return fmt.Sprintf("%016x", h.Sum64())
}
