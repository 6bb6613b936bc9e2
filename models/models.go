package models

// Publisher is the author entity of posts. Display metadata only, the feed
// core never interprets it.
type Publisher struct {
	Id    int64  `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Interest is a topic tag with a unique name. Weight is the affinity
// multiplier applied when a subscriber follows this interest.
type Interest struct {
	Id          int64   `json:"id"`
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Weight      float64 `json:"weight"`
}

// Post model with the key fields the feed core needs. Identity is immutable
// once created, only the Likes counter mutates and only upwards.
type Post struct {
	Id          int64    `json:"id"`
	PublisherId int64    `json:"publisherId"`
	Title       string   `json:"title"`
	Link        string   `json:"link,omitempty"`
	CreatedAt   int64    `json:"createdAt"`
	Likes       int64    `json:"likes"`
	Interests   []string `json:"interests"`
}

// Subscription maps subscribed interest names to their affinity weights.
// Held by the caller, never persisted by the core.
type Subscription map[string]float64

// NewSubscription builds an unweighted subscription where every interest
// carries the default affinity of 1.0.
func NewSubscription(interests []string) Subscription {
	sub := make(Subscription, len(interests))
	for _, name := range interests {
		sub[name] = 1.0
	}
	return sub
}

// FeedPost is a single scored entry of an assembled feed page.
type FeedPost struct {
	Id    int64   `json:"post"`
	Score float64 `json:"score"`
}

// FeedResponse is one page of an assembled feed. Cursor is nil when the
// ranked result set is exhausted.
type FeedResponse struct {
	Feed   []FeedPost `json:"feed"`
	Cursor *string    `json:"cursor"`
}

// LikePostEvent fired when a consumer likes a post
type LikePostEvent struct {
	PostId int64
	Delta  int64
}

// DeletePostEvent fired when a post is retracted
type DeletePostEvent struct {
	PostId int64
}
