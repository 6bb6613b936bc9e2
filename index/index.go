// Package index maintains the in-memory tag index of the feed core: an
// inverted mapping from interests to the posts tagged with them, a symmetric
// mapping from publishers to their posts, and a single arena holding each
// post payload exactly once.
package index

import (
	"iter"
	"strconv"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/samber/lo"
	log "github.com/sirupsen/logrus"

	"pressfeed/models"
)

var (
	indexedPosts = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "pressfeed_indexed_posts",
		Help: "Number of posts currently held by the tag index",
	})
	rejectedPosts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pressfeed_rejected_posts_total",
		Help: "Posts rejected at ingestion due to validation failures",
	})
)

// Directory supplies the canonical existence checks for publishers and
// interests. It is implemented by the persistence layer in production and by
// in-memory stubs in tests.
type Directory interface {
	HasPublisher(id int64) bool
	HasInterest(name string) bool
}

type entry struct {
	post models.Post
	seq  uint64
}

// Index is safe for concurrent use. Reads take shared locks; writes are
// serialized against each other and against readers per bucket, so indexing a
// post only contends with traffic touching the same interests or publisher.
type Index struct {
	directory Directory

	mu    sync.RWMutex // guards posts and seq
	posts map[int64]*entry
	seq   uint64

	bmu        sync.RWMutex // guards the bucket maps, not the buckets
	interests  map[string]*bucket
	publishers map[int64]*bucket
}

// New returns an empty index validating references against directory. The
// instance is explicitly lifetime-scoped, there is no package-level singleton.
func New(directory Directory) *Index {
	return &Index{
		directory:  directory,
		posts:      make(map[int64]*entry),
		interests:  make(map[string]*bucket),
		publishers: make(map[int64]*bucket),
	}
}

// Index registers a post under each of its interest tags and under its
// publisher. Dangling references and tagless posts are rejected with a
// ValidationError rather than silently dropped.
func (idx *Index) Index(post models.Post) error {
	tags := lo.Uniq(post.Interests)
	if len(tags) == 0 {
		rejectedPosts.Inc()
		return models.NewValidationError("interests", "")
	}
	if !idx.directory.HasPublisher(post.PublisherId) {
		rejectedPosts.Inc()
		return models.NewValidationError("publisher", strconv.FormatInt(post.PublisherId, 10))
	}
	for _, tag := range tags {
		if !idx.directory.HasInterest(tag) {
			rejectedPosts.Inc()
			return models.NewValidationError("interest", tag)
		}
	}

	post.Interests = tags

	idx.mu.Lock()
	if _, ok := idx.posts[post.Id]; ok {
		idx.mu.Unlock()
		rejectedPosts.Inc()
		return models.NewValidationError("post", strconv.FormatInt(post.Id, 10))
	}
	idx.seq++
	idx.posts[post.Id] = &entry{post: post, seq: idx.seq}
	idx.mu.Unlock()

	for _, tag := range tags {
		idx.interestBucket(tag).add(post.Id)
	}
	idx.publisherBucket(post.PublisherId).add(post.Id)

	indexedPosts.Inc()
	log.WithFields(log.Fields{
		"post":      post.Id,
		"publisher": post.PublisherId,
		"interests": tags,
	}).Debug("Indexed post")

	return nil
}

// Retract removes a post from the arena and from every mapping it
// participates in. Returns ErrNotFound if the post was never indexed.
func (idx *Index) Retract(postId int64) error {
	idx.mu.Lock()
	e, ok := idx.posts[postId]
	if !ok {
		idx.mu.Unlock()
		return models.ErrNotFound
	}
	delete(idx.posts, postId)
	idx.mu.Unlock()

	for _, tag := range e.post.Interests {
		if b := idx.lookupInterestBucket(tag); b != nil {
			b.remove(postId)
		}
	}
	if b := idx.lookupPublisherBucket(e.post.PublisherId); b != nil {
		b.remove(postId)
	}

	indexedPosts.Dec()
	log.WithFields(log.Fields{"post": postId}).Debug("Retracted post")

	return nil
}

// Boost bumps a post's engagement counter. Counters only move upwards, so
// non-positive deltas are rejected.
func (idx *Index) Boost(postId int64, delta int64) error {
	if delta <= 0 {
		return models.NewValidationError("delta", strconv.FormatInt(delta, 10))
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()
	e, ok := idx.posts[postId]
	if !ok {
		return models.ErrNotFound
	}
	e.post.Likes += delta
	return nil
}

// CandidatesFor yields the ids of posts tagged with the given interest, most
// recently indexed first. The sequence is finite and restartable: every range
// over it reflects the index state at that point in time.
func (idx *Index) CandidatesFor(interest string) iter.Seq[int64] {
	return func(yield func(int64) bool) {
		b := idx.lookupInterestBucket(interest)
		if b == nil {
			return
		}
		for _, id := range b.snapshot() {
			if !yield(id) {
				return
			}
		}
	}
}

// PostsBy is the symmetric query over the publisher mapping.
func (idx *Index) PostsBy(publisherId int64) iter.Seq[int64] {
	return func(yield func(int64) bool) {
		b := idx.lookupPublisherBucket(publisherId)
		if b == nil {
			return
		}
		for _, id := range b.snapshot() {
			if !yield(id) {
				return
			}
		}
	}
}

// Lookup returns a copy of the indexed post and its insertion sequence.
func (idx *Index) Lookup(postId int64) (models.Post, uint64, bool) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	e, ok := idx.posts[postId]
	if !ok {
		return models.Post{}, 0, false
	}
	return e.post, e.seq, true
}

// Fence returns the current insertion sequence. Posts indexed after a fence
// was taken carry a higher sequence, which lets an in-progress pagination
// walk exclude them.
func (idx *Index) Fence() uint64 {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.seq
}

// Len reports the number of indexed posts.
func (idx *Index) Len() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.posts)
}

func (idx *Index) interestBucket(name string) *bucket {
	idx.bmu.Lock()
	defer idx.bmu.Unlock()
	b, ok := idx.interests[name]
	if !ok {
		b = &bucket{}
		idx.interests[name] = b
	}
	return b
}

func (idx *Index) publisherBucket(id int64) *bucket {
	idx.bmu.Lock()
	defer idx.bmu.Unlock()
	b, ok := idx.publishers[id]
	if !ok {
		b = &bucket{}
		idx.publishers[id] = b
	}
	return b
}

func (idx *Index) lookupInterestBucket(name string) *bucket {
	idx.bmu.RLock()
	defer idx.bmu.RUnlock()
	return idx.interests[name]
}

func (idx *Index) lookupPublisherBucket(id int64) *bucket {
	idx.bmu.RLock()
	defer idx.bmu.RUnlock()
	return idx.publishers[id]
}
