package index

import (
	"container/heap"
	"sort"
	"sync"
)

// Item is a queue entry: a blueprint id, its relevance score and an opaque
// payload (typically the analysis record).
type Item struct {
	ID      string
	Score   float64
	Payload interface{}
}

// RelevanceQueue is a max-priority queue for best-first candidate
// extraction. Pop is destructive; Snapshot returns a sorted copy so callers
// can drain candidates without losing them. Safe for concurrent use.
type RelevanceQueue struct {
	mu    sync.Mutex
	items itemHeap
}

// NewRelevanceQueue creates an empty queue.
func NewRelevanceQueue() *RelevanceQueue {
	return &RelevanceQueue{}
}

// Push adds an item.
func (q *RelevanceQueue) Push(item Item) {
	q.mu.Lock()
	defer q.mu.Unlock()
	heap.Push(&q.items, item)
}

// Pop removes and returns the highest-scored item.
func (q *RelevanceQueue) Pop() (Item, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.items.Len() == 0 {
		return Item{}, false
	}
	return heap.Pop(&q.items).(Item), true
}

// Snapshot returns a copy of the queue contents sorted by descending score.
// The queue itself is untouched.
func (q *RelevanceQueue) Snapshot() []Item {
	q.mu.Lock()
	out := make([]Item, len(q.items))
	copy(out, q.items)
	q.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Remove deletes every item carrying id and reports whether any was found.
func (q *RelevanceQueue) Remove(id string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	found := false
	kept := q.items[:0]
	for _, item := range q.items {
		if item.ID == id {
			found = true
			continue
		}
		kept = append(kept, item)
	}
	q.items = kept
	if found {
		heap.Init(&q.items)
	}
	return found
}

// Len returns the number of queued items.
func (q *RelevanceQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.items.Len()
}

// Clear drops every item.
func (q *RelevanceQueue) Clear() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = nil
}

type itemHeap []Item

func (h itemHeap) Len() int            { return len(h) }
func (h itemHeap) Less(i, j int) bool  { return h[i].Score > h[j].Score }
func (h itemHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *itemHeap) Push(x interface{}) { *h = append(*h, x.(Item)) }
func (h *itemHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}
