package index_test

import (
	"slices"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pressfeed/index"
	"pressfeed/models"
)

// staticDirectory is an in-memory Directory for tests
type staticDirectory struct {
	publishers map[int64]bool
	interests  map[string]bool
}

func (d *staticDirectory) HasPublisher(id int64) bool   { return d.publishers[id] }
func (d *staticDirectory) HasInterest(name string) bool { return d.interests[name] }

func testDirectory() *staticDirectory {
	return &staticDirectory{
		publishers: map[int64]bool{1: true, 2: true},
		interests:  map[string]bool{"food": true, "tech": true, "sports": true},
	}
}

func post(id, publisherId int64, interests ...string) models.Post {
	return models.Post{
		Id:          id,
		PublisherId: publisherId,
		Title:       "post",
		CreatedAt:   1700000000 + id,
		Interests:   interests,
	}
}

func TestIndexCandidates(t *testing.T) {
	idx := index.New(testDirectory())

	require.NoError(t, idx.Index(post(1, 1, "food")))
	require.NoError(t, idx.Index(post(2, 1, "food", "tech")))
	require.NoError(t, idx.Index(post(3, 2, "tech")))

	// Every post appears under all and only its declared tags, most recent
	// first
	assert.Equal(t, []int64{2, 1}, slices.Collect(idx.CandidatesFor("food")))
	assert.Equal(t, []int64{3, 2}, slices.Collect(idx.CandidatesFor("tech")))
	assert.Empty(t, slices.Collect(idx.CandidatesFor("sports")))
	assert.Empty(t, slices.Collect(idx.CandidatesFor("unknown")))
}

func TestPostsBy(t *testing.T) {
	idx := index.New(testDirectory())

	require.NoError(t, idx.Index(post(1, 1, "food")))
	require.NoError(t, idx.Index(post(2, 2, "tech")))
	require.NoError(t, idx.Index(post(3, 1, "tech")))

	assert.Equal(t, []int64{3, 1}, slices.Collect(idx.PostsBy(1)))
	assert.Equal(t, []int64{2}, slices.Collect(idx.PostsBy(2)))
	assert.Empty(t, slices.Collect(idx.PostsBy(99)))
}

func TestIndexValidation(t *testing.T) {
	tests := []struct {
		name string
		post models.Post
	}{
		{
			name: "unknown publisher",
			post: post(1, 99, "food"),
		},
		{
			name: "unknown interest",
			post: post(1, 1, "food", "gardening"),
		},
		{
			name: "no interests",
			post: post(1, 1),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			idx := index.New(testDirectory())
			err := idx.Index(tt.post)

			var validation *models.ValidationError
			require.ErrorAs(t, err, &validation)
			// Rejected posts leave no trace in any mapping
			assert.Zero(t, idx.Len())
			assert.Empty(t, slices.Collect(idx.CandidatesFor("food")))
		})
	}
}

func TestIndexDuplicate(t *testing.T) {
	idx := index.New(testDirectory())

	require.NoError(t, idx.Index(post(1, 1, "food")))
	err := idx.Index(post(1, 1, "tech"))

	var validation *models.ValidationError
	require.ErrorAs(t, err, &validation)
	assert.Equal(t, 1, idx.Len())
	assert.Empty(t, slices.Collect(idx.CandidatesFor("tech")))
}

func TestRetract(t *testing.T) {
	idx := index.New(testDirectory())

	require.NoError(t, idx.Index(post(1, 1, "food", "tech")))
	require.NoError(t, idx.Index(post(2, 1, "food")))

	require.NoError(t, idx.Retract(1))

	assert.Equal(t, []int64{2}, slices.Collect(idx.CandidatesFor("food")))
	assert.Empty(t, slices.Collect(idx.CandidatesFor("tech")))
	assert.Equal(t, []int64{2}, slices.Collect(idx.PostsBy(1)))

	_, _, ok := idx.Lookup(1)
	assert.False(t, ok)

	// Retracting an unindexed post reports NotFound
	assert.ErrorIs(t, idx.Retract(1), models.ErrNotFound)
	assert.ErrorIs(t, idx.Retract(99), models.ErrNotFound)
}

func TestBoost(t *testing.T) {
	idx := index.New(testDirectory())
	require.NoError(t, idx.Index(post(1, 1, "food")))

	require.NoError(t, idx.Boost(1, 3))
	require.NoError(t, idx.Boost(1, 1))

	indexed, _, ok := idx.Lookup(1)
	require.True(t, ok)
	assert.Equal(t, int64(4), indexed.Likes)

	assert.ErrorIs(t, idx.Boost(99, 1), models.ErrNotFound)

	// Engagement counters only move upwards
	var validation *models.ValidationError
	assert.ErrorAs(t, idx.Boost(1, 0), &validation)
	assert.ErrorAs(t, idx.Boost(1, -2), &validation)
}

func TestFence(t *testing.T) {
	idx := index.New(testDirectory())
	assert.Zero(t, idx.Fence())

	require.NoError(t, idx.Index(post(1, 1, "food")))
	fence := idx.Fence()

	require.NoError(t, idx.Index(post(2, 1, "food")))
	assert.Greater(t, idx.Fence(), fence)

	// Sequences assigned before the fence stay below it
	_, seq1, _ := idx.Lookup(1)
	_, seq2, _ := idx.Lookup(2)
	assert.LessOrEqual(t, seq1, fence)
	assert.Greater(t, seq2, fence)
}

func TestCandidatesRestartable(t *testing.T) {
	idx := index.New(testDirectory())
	require.NoError(t, idx.Index(post(1, 1, "food")))

	candidates := idx.CandidatesFor("food")
	assert.Equal(t, []int64{1}, slices.Collect(candidates))

	// A re-invocation yields a fresh sequence reflecting the current state
	require.NoError(t, idx.Index(post(2, 1, "food")))
	assert.Equal(t, []int64{2, 1}, slices.Collect(candidates))
}

func TestConcurrentReadersAndWriters(t *testing.T) {
	idx := index.New(testDirectory())

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				id := int64(worker*1000 + j)
				assert.NoError(t, idx.Index(post(id, 1, "food")))
				for range idx.CandidatesFor("food") {
					break
				}
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 400, idx.Len())
	assert.Len(t, slices.Collect(idx.CandidatesFor("food")), 400)
}
