// Package shapeq implements a timestamp-ordered priority queue: a binary
// max-heap over Element, indexed so that an owning state manager can
// delete or re-key an arbitrary element in O(log n) given the handle
// returned by Insert.
package shapeq

import (
	"container/heap"
	"time"
)

// Element is the priority-queue handle for one shape: its id and the
// timestamp it is currently keyed by. One-to-one with a live BoardShape.
type Element struct {
	ID        string
	Timestamp time.Time

	index int // current slot in the backing heap array; owned by Queue.
}

// Queue is a max-heap over Element ordered by Timestamp (newest on top).
// Ties are broken by ID, the lexicographically larger ID sitting nearer
// the top, purely to make ordering deterministic for tests —
// equal-timestamp ordering is otherwise unconstrained.
type Queue struct {
	h maxHeap
}

// New returns an empty Queue.
func New() *Queue {
	return &Queue{h: maxHeap{}}
}

// Insert adds an element for id keyed by ts and returns the live *Element handle that
// Delete and IncreaseTimestamp expect. The returned Element must not be
// copied by value once inserted; callers store the pointer (e.g. in a
// shapeId -> *Element map) and pass it back into the other operations.
func (q *Queue) Insert(id string, ts time.Time) *Element {
	e := &Element{ID: id, Timestamp: ts}
	heap.Push(&q.h, e)
	return e
}

// Top returns the element with the greatest timestamp without removing it.
// ok is false if the queue is empty.
func (q *Queue) Top() (*Element, bool) {
	if len(q.h) == 0 {
		return nil, false
	}
	return q.h[0], true
}

// Extract removes and returns the element with the greatest timestamp.
func (q *Queue) Extract() (*Element, bool) {
	if len(q.h) == 0 {
		return nil, false
	}
	e := heap.Pop(&q.h).(*Element)
	return e, true
}

// Delete removes an arbitrary element given its handle.
func (q *Queue) Delete(e *Element) {
	if e.index < 0 || e.index >= len(q.h) || q.h[e.index] != e {
		return
	}
	heap.Remove(&q.h, e.index)
}

// IncreaseTimestamp updates e's timestamp and restores the heap property.
// Despite the name, correctness does not require tNew > e.Timestamp — the
// heap is always re-fixed from e's current position regardless of
// direction.
func (q *Queue) IncreaseTimestamp(e *Element, tNew time.Time) {
	if e.index < 0 || e.index >= len(q.h) || q.h[e.index] != e {
		return
	}
	e.Timestamp = tNew
	heap.Fix(&q.h, e.index)
}

// Size returns the number of elements currently in the queue.
func (q *Queue) Size() int {
	return len(q.h)
}

// Clear empties the queue.
func (q *Queue) Clear() {
	q.h = maxHeap{}
}

// maxHeap implements container/heap.Interface over *Element pointers so
// that external code can hold a stable handle independent of slice
// reslicing.
type maxHeap []*Element

func (h maxHeap) Len() int { return len(h) }

func (h maxHeap) Less(i, j int) bool {
	if h[i].Timestamp.Equal(h[j].Timestamp) {
		return h[i].ID > h[j].ID // tie-break: lexicographically larger ID "wins" (sorts first)
	}
	return h[i].Timestamp.After(h[j].Timestamp) // max-heap: "less" means "should be closer to the root"
}

func (h maxHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *maxHeap) Push(x any) {
	e := x.(*Element)
	e.index = len(*h)
	*h = append(*h, e)
}

func (h *maxHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	e.index = -1
	*h = old[:n-1]
	return e
}
