package tls

import "container/heap"

// Candidate pairs an internal node id with its distance to the active
// query, as tracked by the best-first search beams.
type Candidate struct {
	ID   uint32
	Dist float32
}

type candidateSlice []Candidate

func (c candidateSlice) Len() int            { return len(c) }
func (c candidateSlice) Swap(i, j int)       { c[i], c[j] = c[j], c[i] }
func (c *candidateSlice) Push(x interface{}) { *c = append(*c, x.(Candidate)) }
func (c *candidateSlice) Pop() interface{} {
	old := *c
	n := len(old)
	item := old[n-1]
	*c = old[:n-1]
	return item
}

// MinHeap is the `C` candidate beam of search_layer: pops the nearest
// unexpanded candidate first.
type MinHeap struct{ items candidateSlice }

func (h MinHeap) Len() int { return len(h.items) }

func (h *MinHeap) less(i, j int) bool { return h.items[i].Dist < h.items[j].Dist }

func (h *MinHeap) Reset() { h.items = h.items[:0] }

func (h *MinHeap) Push(c Candidate) { heap.Push((*minHeapAdapter)(h), c) }
func (h *MinHeap) Pop() Candidate   { return heap.Pop((*minHeapAdapter)(h)).(Candidate) }
func (h *MinHeap) Peek() Candidate  { return h.items[0] }

type minHeapAdapter MinHeap

func (a *minHeapAdapter) Len() int            { return len(a.items) }
func (a *minHeapAdapter) Less(i, j int) bool  { return a.items[i].Dist < a.items[j].Dist }
func (a *minHeapAdapter) Swap(i, j int)       { a.items[i], a.items[j] = a.items[j], a.items[i] }
func (a *minHeapAdapter) Push(x interface{})  { a.items = append(a.items, x.(Candidate)) }
func (a *minHeapAdapter) Pop() interface{} {
	old := a.items
	n := len(old)
	item := old[n-1]
	a.items = old[:n-1]
	return item
}

// MaxHeap is the `W` result beam of search_layer: tracks the ef closest
// candidates seen so far, with the current worst on top so it can be
// evicted in O(log ef) once the beam is full.
type MaxHeap struct{ items candidateSlice }

func (h MaxHeap) Len() int { return len(h.items) }

func (h *MaxHeap) Reset() { h.items = h.items[:0] }

func (h *MaxHeap) Push(c Candidate) { heap.Push((*maxHeapAdapter)(h), c) }
func (h *MaxHeap) Pop() Candidate   { return heap.Pop((*maxHeapAdapter)(h)).(Candidate) }
func (h *MaxHeap) Peek() Candidate  { return h.items[0] }

type maxHeapAdapter MaxHeap

func (a *maxHeapAdapter) Len() int           { return len(a.items) }
func (a *maxHeapAdapter) Less(i, j int) bool { return a.items[i].Dist > a.items[j].Dist } // reversed: max on top
func (a *maxHeapAdapter) Swap(i, j int)      { a.items[i], a.items[j] = a.items[j], a.items[i] }
func (a *maxHeapAdapter) Push(x interface{}) { a.items = append(a.items, x.(Candidate)) }
func (a *maxHeapAdapter) Pop() interface{} {
	old := a.items
	n := len(old)
	item := old[n-1]
	a.items = old[:n-1]
	return item
}

// Sorted drains h (closest first) into a freshly allocated slice, leaving h
// empty. Used once search_layer has finished accumulating W.
func (h *MaxHeap) Sorted() []Candidate {
	out := make([]Candidate, h.Len())
	for i := len(out) - 1; i >= 0; i-- {
		out[i] = h.Pop()
	}
	return out
}
