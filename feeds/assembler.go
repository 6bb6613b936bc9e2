// Package feeds assembles ranked, deduplicated, cursor-paginated feed pages
// from tag index candidates.
package feeds

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	log "github.com/sirupsen/logrus"

	"pressfeed/index"
	"pressfeed/models"
)

var (
	feedRequests = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pressfeed_feed_requests_total",
		Help: "Number of feed assembly requests",
	})
	feedErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pressfeed_feed_errors_total",
		Help: "Number of failed feed assembly requests",
	})
	feedLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "pressfeed_feed_assembly_seconds",
		Help:    "Feed assembly duration",
		Buckets: prometheus.ExponentialBuckets(0.0001, 2, 12), // Start at 0.1ms, double each bucket, 12 buckets
	})
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 100

	// DefaultFanoutLimit caps candidate pulls per interest per page so one
	// over-represented interest cannot starve the others.
	DefaultFanoutLimit = 512
)

// AssemblerConfig tunes page and fan-out bounds. Zero values fall back to the
// package defaults.
type AssemblerConfig struct {
	FanoutLimit int
	MaxPageSize int
}

// Assembler merges candidates from the tag index across a subscription,
// deduplicates them, ranks by relevance and slices cursor-stable pages.
type Assembler struct {
	index       *index.Index
	scorer      *Scorer
	fanoutLimit int
	maxPageSize int
}

func NewAssembler(idx *index.Index, scorer *Scorer, config AssemblerConfig) *Assembler {
	if config.FanoutLimit <= 0 {
		config.FanoutLimit = DefaultFanoutLimit
	}
	if config.MaxPageSize <= 0 {
		config.MaxPageSize = MaxPageSize
	}
	return &Assembler{
		index:       idx,
		scorer:      scorer,
		fanoutLimit: config.FanoutLimit,
		maxPageSize: config.MaxPageSize,
	}
}

// Assemble returns one ranked page of at most limit posts for the given
// subscription, plus a cursor to continue from, nil when exhausted. Two calls
// with the same subscription and cursor against an unchanged index return
// identical pages. Posts indexed after the walk started are only surfaced by
// a fresh feed request, never retro-inserted into an in-progress walk.
func (a *Assembler) Assemble(ctx context.Context, sub models.Subscription, cursorToken string, limit int) (*models.FeedResponse, error) {
	feedRequests.Inc()
	start := time.Now()
	defer func() { feedLatency.Observe(time.Since(start).Seconds()) }()

	if len(sub) == 0 {
		feedErrors.Inc()
		return nil, models.ErrEmptySubscription
	}
	if limit < 1 {
		limit = DefaultPageSize
	}
	if limit > a.maxPageSize {
		limit = a.maxPageSize
	}

	sig := subscriptionSignature(sub)
	fresh := cursorToken == ""

	cur := cursor{Sig: sig, Fence: a.index.Fence(), ScoredAt: time.Now().Unix()}
	if !fresh {
		var err error
		if cur, err = decodeCursor(cursorToken, sig); err != nil {
			feedErrors.Inc()
			return nil, err
		}
	}

	candidates, err := a.collect(ctx, sub, cur.Fence)
	if err != nil {
		feedErrors.Inc()
		return nil, err
	}

	now := time.Unix(cur.ScoredAt, 0)
	ranked := make([]models.FeedPost, 0, len(candidates))
	for id, post := range candidates {
		ranked = append(ranked, models.FeedPost{Id: id, Score: a.scorer.Score(post, sub, now)})
	}

	// Score descending, then post id descending so more recent posts win
	// ties. The order is total, which keyset resumption depends on.
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Score != ranked[j].Score {
			return ranked[i].Score > ranked[j].Score
		}
		return ranked[i].Id > ranked[j].Id
	})

	if !fresh {
		ranked = resumeAfter(ranked, cur)
	}

	var nextCursor *string

	// Only set cursor if more results remain past this page
	if len(ranked) > limit {
		ranked = ranked[:limit]
		last := ranked[len(ranked)-1]
		encoded := encodeCursor(cursor{
			Sig:      cur.Sig,
			Fence:    cur.Fence,
			ScoredAt: cur.ScoredAt,
			Score:    last.Score,
			LastId:   last.Id,
		})
		nextCursor = &encoded
	}

	log.WithFields(log.Fields{
		"interests": len(sub),
		"page":      len(ranked),
		"more":      nextCursor != nil,
	}).Debug("Assembled feed page")

	return &models.FeedResponse{Feed: ranked, Cursor: nextCursor}, nil
}

// collect fans out one candidate pull per subscribed interest, deduplicating
// by post id on the way in. Each pull is capped at the fan-out limit and
// abandons cooperatively when the caller gives up on the request.
func (a *Assembler) collect(ctx context.Context, sub models.Subscription, fence uint64) (map[int64]models.Post, error) {
	var (
		mu         sync.Mutex
		wg         sync.WaitGroup
		candidates = make(map[int64]models.Post)
	)

	for name := range sub {
		wg.Add(1)
		go func(interest string) {
			defer wg.Done()

			pulled := 0
			for id := range a.index.CandidatesFor(interest) {
				if ctx.Err() != nil || pulled >= a.fanoutLimit {
					return
				}
				post, seq, ok := a.index.Lookup(id)
				if !ok || seq > fence {
					// Retracted mid-iteration, or indexed after this
					// walk started.
					continue
				}
				mu.Lock()
				candidates[id] = post
				mu.Unlock()
				pulled++
			}
		}(name)
	}

	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return candidates, nil
}

// resumeAfter drops everything at or before the cursor position in rank
// order.
func resumeAfter(ranked []models.FeedPost, cur cursor) []models.FeedPost {
	idx := sort.Search(len(ranked), func(i int) bool {
		if ranked[i].Score != cur.Score {
			return ranked[i].Score < cur.Score
		}
		return ranked[i].Id < cur.LastId
	})
	return ranked[idx:]
}
