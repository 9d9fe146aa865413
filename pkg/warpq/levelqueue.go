package warpq

import (
	"math"
	"sort"
)

// NoScore is the tie-break score given to items added without one.
// Unscored items sort after every scored item.
var NoScore = math.Inf(1)

// queuedItem is a key waiting at one priority level.
type queuedItem struct {
	key   string
	score float64
}

// LevelQueue is a first-in-first-out queue of unique keys for a single
// priority level. Membership checks are constant time.
//
// LevelQueue is not safe for concurrent use.
type LevelQueue struct {
	items []queuedItem
	keys  map[string]struct{}
}

// NewLevelQueue creates an empty LevelQueue.
func NewLevelQueue() *LevelQueue {
	return &LevelQueue{
		items: make([]queuedItem, 0),
		keys:  make(map[string]struct{}),
	}
}

// Add appends key at the tail of the queue. Adding a key that is already
// queued does nothing, its position and score are kept.
func (q *LevelQueue) Add(key string, score float64) {
	if _, ok := q.keys[key]; ok {
		return
	}
	q.items = append(q.items, queuedItem{key: key, score: score})
	q.keys[key] = struct{}{}
}

// Has reports whether key is queued.
func (q *LevelQueue) Has(key string) bool {
	_, ok := q.keys[key]
	return ok
}

// Pop removes and returns the oldest key.
func (q *LevelQueue) Pop() (string, bool) {
	if len(q.items) == 0 {
		return "", false
	}
	head := q.items[0]
	q.items[0] = queuedItem{}
	q.items = q.items[1:]
	delete(q.keys, head.key)
	return head.key, true
}

// Remove takes key out of the queue wherever it is.
func (q *LevelQueue) Remove(key string) (string, bool) {
	if _, ok := q.keys[key]; !ok {
		return "", false
	}
	for i, item := range q.items {
		if item.key != key {
			continue
		}
		q.items = append(q.items[:i], q.items[i+1:]...)
		delete(q.keys, key)
		return key, true
	}
	// keys and items disagree; repair the set
	delete(q.keys, key)
	return "", false
}

// SortByScore reorders the queue by ascending tie-break score. Items with
// equal scores keep their arrival order. The queue is never sorted implicitly.
func (q *LevelQueue) SortByScore() {
	sort.SliceStable(q.items, func(i, j int) bool {
		return q.items[i].score < q.items[j].score
	})
}

// First returns the head of the queue without removing it.
func (q *LevelQueue) First() (string, bool) {
	if len(q.items) == 0 {
		return "", false
	}
	return q.items[0].key, true
}

// Last returns the tail of the queue without removing it.
func (q *LevelQueue) Last() (string, bool) {
	if len(q.items) == 0 {
		return "", false
	}
	return q.items[len(q.items)-1].key, true
}

// Keys returns the queued keys in pop order.
func (q *LevelQueue) Keys() []string {
	keys := make([]string, len(q.items))
	for i, item := range q.items {
		keys[i] = item.key
	}
	return keys
}

// Size returns the number of queued keys.
func (q *LevelQueue) Size() int {
	return len(q.items)
}

// IsEmpty reports whether the queue holds no keys.
func (q *LevelQueue) IsEmpty() bool {
	return len(q.items) == 0
}

// Reset drops every queued key.
func (q *LevelQueue) Reset() {
	q.items = make([]queuedItem, 0)
	q.keys = make(map[string]struct{})
}
