package tls

import "testing"

func TestVisitMarksAndReports(t *testing.T) {
	s := NewScratch(16, 4, 4)
	s.BeginSearch()
	if s.Visit(3) {
		t.Error("first Visit(3) should report false (not previously visited)")
	}
	if !s.Visit(3) {
		t.Error("second Visit(3) in the same search should report true")
	}
}

func TestBeginSearchStartsFreshGeneration(t *testing.T) {
	s := NewScratch(16, 4, 4)
	s.BeginSearch()
	s.Visit(3)
	s.BeginSearch()
	if s.Visit(3) {
		t.Error("Visit(3) after a new BeginSearch should report false again")
	}
}

func TestVisitGrowsPastInitialCapacity(t *testing.T) {
	s := NewScratch(2, 4, 4)
	s.BeginSearch()
	if s.Visit(10) {
		t.Error("Visit on an id beyond initial capacity should still work and report false first time")
	}
}

func TestHeapsMinAndMax(t *testing.T) {
	var min MinHeap
	min.Push(Candidate{ID: 1, Dist: 5})
	min.Push(Candidate{ID: 2, Dist: 1})
	min.Push(Candidate{ID: 3, Dist: 3})
	if got := min.Pop(); got.ID != 2 {
		t.Errorf("MinHeap.Pop() = id %d, want 2 (smallest distance)", got.ID)
	}

	var max MaxHeap
	max.Push(Candidate{ID: 1, Dist: 5})
	max.Push(Candidate{ID: 2, Dist: 1})
	max.Push(Candidate{ID: 3, Dist: 3})
	if got := max.Peek(); got.ID != 1 {
		t.Errorf("MaxHeap.Peek() = id %d, want 1 (largest distance on top)", got.ID)
	}
}

func TestMaxHeapSortedAscending(t *testing.T) {
	var max MaxHeap
	max.Push(Candidate{ID: 1, Dist: 5})
	max.Push(Candidate{ID: 2, Dist: 1})
	max.Push(Candidate{ID: 3, Dist: 3})
	out := max.Sorted()
	want := []float32{1, 3, 5}
	for i, c := range out {
		if c.Dist != want[i] {
			t.Errorf("Sorted()[%d].Dist = %v, want %v", i, c.Dist, want[i])
		}
	}
}

func TestPoolGrowsAndReuses(t *testing.T) {
	p := NewPool(8, 4, 4)
	s1 := p.Get(0)
	p.Grow(64)
	s2 := p.Get(0)
	if s1 != s2 {
		t.Error("Get(workerID) should return the same *Scratch across calls for the same worker")
	}
}
