package feeds_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pressfeed/feeds"
	"pressfeed/index"
	"pressfeed/models"
)

type openDirectory struct{}

func (openDirectory) HasPublisher(int64) bool { return true }
func (openDirectory) HasInterest(string) bool { return true }

func newTestAssembler(config feeds.AssemblerConfig) (*index.Index, *feeds.Assembler) {
	idx := index.New(openDirectory{})
	scorer := feeds.NewScorer(feeds.NewDecayPolicy(7 * 24 * time.Hour))
	return idx, feeds.NewAssembler(idx, scorer, config)
}

func indexPost(t *testing.T, idx *index.Index, id int64, interests ...string) {
	t.Helper()
	require.NoError(t, idx.Index(models.Post{
		Id:          id,
		PublisherId: 1,
		Title:       "post",
		CreatedAt:   time.Now().Unix(),
		Interests:   interests,
	}))
}

func ids(feed []models.FeedPost) []int64 {
	out := make([]int64, len(feed))
	for i, post := range feed {
		out[i] = post.Id
	}
	return out
}

func TestAssembleScenario(t *testing.T) {
	idx, assembler := newTestAssembler(feeds.AssemblerConfig{})

	// Publisher A posts P1 tagged food, P2 tagged food+tech
	indexPost(t, idx, 1, "food")
	indexPost(t, idx, 2, "food", "tech")

	sub := models.NewSubscription([]string{"food", "tech"})
	response, err := assembler.Assemble(context.Background(), sub, "", 10)
	require.NoError(t, err)

	// P2 scores higher, two tag matches against one, and the page is
	// exhausted so the cursor is terminal
	assert.Equal(t, []int64{2, 1}, ids(response.Feed))
	assert.Nil(t, response.Cursor)
}

func TestAssembleAfterRetraction(t *testing.T) {
	idx, assembler := newTestAssembler(feeds.AssemblerConfig{})

	indexPost(t, idx, 1, "food")
	indexPost(t, idx, 2, "food", "tech")

	require.NoError(t, idx.Retract(2))

	sub := models.NewSubscription([]string{"food", "tech"})
	response, err := assembler.Assemble(context.Background(), sub, "", 10)
	require.NoError(t, err)

	assert.Equal(t, []int64{1}, ids(response.Feed))
	assert.Nil(t, response.Cursor)
}

func TestAssembleEmptySubscription(t *testing.T) {
	_, assembler := newTestAssembler(feeds.AssemblerConfig{})

	_, err := assembler.Assemble(context.Background(), models.Subscription{}, "", 10)
	assert.ErrorIs(t, err, models.ErrEmptySubscription)
}

func TestAssembleDeduplicates(t *testing.T) {
	idx, assembler := newTestAssembler(feeds.AssemblerConfig{})

	// One post matching three subscribed interests
	indexPost(t, idx, 1, "food", "tech", "sports")

	sub := models.NewSubscription([]string{"food", "tech", "sports"})
	response, err := assembler.Assemble(context.Background(), sub, "", 10)
	require.NoError(t, err)

	assert.Equal(t, []int64{1}, ids(response.Feed))
}

func TestAssembleDeterministic(t *testing.T) {
	idx, assembler := newTestAssembler(feeds.AssemblerConfig{})

	for i := int64(1); i <= 20; i++ {
		indexPost(t, idx, i, "food")
	}

	sub := models.NewSubscription([]string{"food"})
	first, err := assembler.Assemble(context.Background(), sub, "", 10)
	require.NoError(t, err)
	second, err := assembler.Assemble(context.Background(), sub, "", 10)
	require.NoError(t, err)

	assert.Equal(t, ids(first.Feed), ids(second.Feed))
	for i := range first.Feed {
		assert.InDelta(t, first.Feed[i].Score, second.Feed[i].Score, 1e-6)
	}
}

func TestAssemblePaginationComplete(t *testing.T) {
	idx, assembler := newTestAssembler(feeds.AssemblerConfig{})

	indexPost(t, idx, 1, "food")
	indexPost(t, idx, 2, "tech")
	indexPost(t, idx, 3, "food", "tech")
	indexPost(t, idx, 4, "sports")
	for i := int64(5); i <= 23; i++ {
		indexPost(t, idx, i, []string{"food", "tech", "sports"}[i%3])
	}

	sub := models.NewSubscription([]string{"food", "tech", "sports"})

	// Walk every page and concatenate
	var walked []int64
	cursor := ""
	for {
		page, err := assembler.Assemble(context.Background(), sub, cursor, 7)
		require.NoError(t, err)
		assert.LessOrEqual(t, len(page.Feed), 7)
		walked = append(walked, ids(page.Feed)...)
		if page.Cursor == nil {
			break
		}
		cursor = *page.Cursor
	}

	// The concatenation is exactly the full deduplicated ranked set, no
	// omissions, no repeats
	full, err := assembler.Assemble(context.Background(), sub, "", 100)
	require.NoError(t, err)
	assert.Equal(t, ids(full.Feed), walked)
}

func TestAssembleInvalidCursor(t *testing.T) {
	idx, assembler := newTestAssembler(feeds.AssemblerConfig{})

	for i := int64(1); i <= 5; i++ {
		indexPost(t, idx, i, "food")
	}

	sub := models.NewSubscription([]string{"food"})
	page, err := assembler.Assemble(context.Background(), sub, "", 2)
	require.NoError(t, err)
	require.NotNil(t, page.Cursor)

	// Changing the subscription between calls invalidates the cursor
	changed := models.NewSubscription([]string{"food", "tech"})
	_, err = assembler.Assemble(context.Background(), changed, *page.Cursor, 2)
	assert.ErrorIs(t, err, models.ErrInvalidCursor)

	_, err = assembler.Assemble(context.Background(), sub, "garbage", 2)
	assert.ErrorIs(t, err, models.ErrInvalidCursor)
}

func TestAssembleWalkExcludesNewPosts(t *testing.T) {
	idx, assembler := newTestAssembler(feeds.AssemblerConfig{})

	for i := int64(1); i <= 6; i++ {
		indexPost(t, idx, i, "food")
	}

	sub := models.NewSubscription([]string{"food"})
	page, err := assembler.Assemble(context.Background(), sub, "", 3)
	require.NoError(t, err)
	require.NotNil(t, page.Cursor)

	// A post indexed mid-walk must not appear on continuation pages
	indexPost(t, idx, 7, "food")

	rest, err := assembler.Assemble(context.Background(), sub, *page.Cursor, 10)
	require.NoError(t, err)
	assert.NotContains(t, ids(rest.Feed), int64(7))

	// A fresh feed request does surface it
	fresh, err := assembler.Assemble(context.Background(), sub, "", 10)
	require.NoError(t, err)
	assert.Contains(t, ids(fresh.Feed), int64(7))
}

func TestAssembleFanoutCap(t *testing.T) {
	idx, assembler := newTestAssembler(feeds.AssemblerConfig{FanoutLimit: 5})

	// An over-represented interest cannot push more than the cap into a page
	for i := int64(1); i <= 50; i++ {
		indexPost(t, idx, i, "food")
	}
	indexPost(t, idx, 51, "tech")

	sub := models.NewSubscription([]string{"food", "tech"})
	page, err := assembler.Assemble(context.Background(), sub, "", 100)
	require.NoError(t, err)

	assert.Len(t, page.Feed, 6)
	assert.Contains(t, ids(page.Feed), int64(51))
}

func TestAssembleCancelled(t *testing.T) {
	idx, assembler := newTestAssembler(feeds.AssemblerConfig{})
	indexPost(t, idx, 1, "food")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := assembler.Assemble(ctx, models.NewSubscription([]string{"food"}), "", 10)
	assert.ErrorIs(t, err, context.Canceled)
}
