// Package blockingheap wraps a heap so that Pop blocks until an element is
// available.
package blockingheap

import (
	"container/heap"
	"io"
	"sync"
)

// BlockingHeap is a concurrency-safe heap of T.
type BlockingHeap[T any] struct {
	heap heap.Interface
	mu   sync.Mutex
	cond *sync.Cond

	closed bool
}

// New heapifies h and wraps it. Elements pushed into h must be of type T.
func New[T any](h heap.Interface) *BlockingHeap[T] {
	heap.Init(h)
	bh := &BlockingHeap[T]{heap: h}
	bh.cond = sync.NewCond(&bh.mu)
	return bh
}

// Push adds x. It returns io.EOF once the heap is closed.
func (h *BlockingHeap[T]) Push(x T) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return io.EOF
	}
	heap.Push(h.heap, x)
	h.cond.Signal()
	return nil
}

// Pop removes the smallest element, waiting for one if the heap is empty. It
// returns io.EOF once the heap is closed.
func (h *BlockingHeap[T]) Pop() (out T, _ error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for h.heap.Len() == 0 && !h.closed {
		h.cond.Wait()
	}
	if h.closed {
		return out, io.EOF
	}
	return heap.Pop(h.heap).(T), nil
}

// Len returns the number of queued elements.
func (h *BlockingHeap[T]) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.heap.Len()
}

// Close wakes every waiting Pop. Queued elements are discarded.
func (h *BlockingHeap[T]) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	h.cond.Broadcast()
}
