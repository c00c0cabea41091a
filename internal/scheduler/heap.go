// Package scheduler fires self-destruct deadlines.
//
// Every decoded single-view message arms a deadline for the session that saw
// it. Deadlines live in a min-heap ordered by due time; one goroutine sleeps
// until the root is due, pops it and calls the fire callback. Cancel and
// CancelSession remove entries in O(log N) through the index kept on each
// item.
package scheduler

import "container/heap"

// item is one pending destruction.
type item struct {
	key       string // sessionID + "/" + messageID
	sessionID string
	messageID string
	dueMs     int64 // unix milliseconds; the sort key

	// idx is the item's position in the heap slice, maintained by Swap.
	idx int
}

type minHeap []*item

func (h minHeap) Len() int           { return len(h) }
func (h minHeap) Less(i, j int) bool { return h[i].dueMs < h[j].dueMs }

func (h minHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].idx = i
	h[j].idx = j
}

func (h *minHeap) Push(x any) {
	it := x.(*item)
	it.idx = len(*h)
	*h = append(*h, it)
}

func (h *minHeap) Pop() any {
	old := *h
	n := len(old)
	it := old[n-1]
	old[n-1] = nil
	it.idx = -1
	*h = old[:n-1]
	return it
}

func (h *minHeap) remove(idx int) *item {
	return heap.Remove(h, idx).(*item)
}
