package kb

import "container/heap"

// evictionItem is one entry in the min-priority eviction queue: the ground
// or Skolemized assertion id and the priority it was committed with.
type evictionItem struct {
	id       string
	priority float64
	index    int
}

// evictionHeap is a container/heap min-heap over evictionItem.priority, so
// Pop always yields the currently lowest-priority candidate (spec §4.3
// "poll the lowest-priority ground/Skolem id").
type evictionHeap []*evictionItem

func (h evictionHeap) Len() int            { return len(h) }
func (h evictionHeap) Less(i, j int) bool  { return h[i].priority < h[j].priority }
func (h evictionHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *evictionHeap) Push(x interface{}) {
	item := x.(*evictionItem)
	item.index = len(*h)
	*h = append(*h, item)
}

func (h *evictionHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return item
}

// evictionQueue wraps evictionHeap with id-based removal so a direct
// retraction (not via eviction) can drop an id out of the queue in O(log n).
type evictionQueue struct {
	h    evictionHeap
	byID map[string]*evictionItem
}

func newEvictionQueue() *evictionQueue {
	q := &evictionQueue{byID: make(map[string]*evictionItem)}
	heap.Init(&q.h)
	return q
}

// Push adds id with priority. If id is already queued, its priority is
// updated in place.
func (q *evictionQueue) Push(id string, priority float64) {
	if item, ok := q.byID[id]; ok {
		item.priority = priority
		heap.Fix(&q.h, item.index)
		return
	}
	item := &evictionItem{id: id, priority: priority}
	heap.Push(&q.h, item)
	q.byID[id] = item
}

// Remove drops id from the queue, if present.
func (q *evictionQueue) Remove(id string) {
	item, ok := q.byID[id]
	if !ok {
		return
	}
	heap.Remove(&q.h, item.index)
	delete(q.byID, id)
}

// PeekLowestID returns the id of the lowest-priority entry without removing
// it, or "" if the queue is empty.
func (q *evictionQueue) PeekLowestID() string {
	if len(q.h) == 0 {
		return ""
	}
	return q.h[0].id
}

// PopLowest removes and returns the lowest-priority id, or "" if empty.
func (q *evictionQueue) PopLowest() string {
	if len(q.h) == 0 {
		return ""
	}
	item := heap.Pop(&q.h).(*evictionItem)
	delete(q.byID, item.id)
	return item.id
}

// Len reports the number of queued ids.
func (q *evictionQueue) Len() int { return len(q.h) }
