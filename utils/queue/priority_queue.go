// Package queue implements a priority queue usable with container/heap.
package queue

// Item is an element of a PriorityQueue.
type Item[T any] struct {
	Value T
	// Priority orders items, lowest first.
	Priority int64

	seq   uint64
	index int
}

// PriorityQueue is a min-heap of items. Items of equal priority are popped in
// insertion order.
//
// PriorityQueue implements heap.Interface and is not safe for concurrent use.
type PriorityQueue[T any] struct {
	items []*Item[T]
	seq   uint64
}

// NewPriorityQueue returns an empty queue with room for size items.
func NewPriorityQueue[T any](size int) *PriorityQueue[T] {
	return &PriorityQueue[T]{
		items: make([]*Item[T], 0, size),
	}
}

func (pq *PriorityQueue[T]) Len() int { return len(pq.items) }

func (pq *PriorityQueue[T]) Less(i, j int) bool {
	if pq.items[i].Priority == pq.items[j].Priority {
		return pq.items[i].seq < pq.items[j].seq
	}
	return pq.items[i].Priority < pq.items[j].Priority
}

func (pq *PriorityQueue[T]) Swap(i, j int) {
	pq.items[i], pq.items[j] = pq.items[j], pq.items[i]
	pq.items[i].index = i
	pq.items[j].index = j
}

// Push appends x, which must be an *Item[T]. Use heap.Push.
func (pq *PriorityQueue[T]) Push(x any) {
	item := x.(*Item[T])
	item.index = len(pq.items)
	item.seq = pq.seq
	pq.seq++
	pq.items = append(pq.items, item)
}

// Pop removes the last item. Use heap.Pop.
func (pq *PriorityQueue[T]) Pop() any {
	old := pq.items
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	item.index = -1
	pq.items = old[0 : n-1]
	return item
}
