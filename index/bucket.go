package index

import "sync"

// bucket is one ordered posting list of the inverted index, either the posts
// tagged with a single interest or the posts authored by a single publisher.
// Buckets carry their own lock so writers only contend per interest/publisher,
// never across the whole index.
type bucket struct {
	mu  sync.RWMutex
	ids []int64 // insertion order, oldest first
}

func (b *bucket) add(id int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.ids = append(b.ids, id)
}

func (b *bucket) remove(id int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, existing := range b.ids {
		if existing == id {
			b.ids = append(b.ids[:i], b.ids[i+1:]...)
			return
		}
	}
}

// snapshot copies the posting list most recent first. The copy keeps
// iteration free of the bucket lock.
func (b *bucket) snapshot() []int64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	ids := make([]int64, len(b.ids))
	for i, id := range b.ids {
		ids[len(b.ids)-1-i] = id
	}
	return ids
}
