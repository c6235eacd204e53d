package tls

// Scratch is the per-worker working set: a visited bitmap reset via
// generation stamps instead of zeroing, the candidate/result heaps
// searchLayer needs, and a small neighbor buffer reused across expansion
// steps.
type Scratch struct {
	visited []uint32 // per-node-id generation stamp
	stamp   uint32    // current search's stamp; a node is visited iff visited[id]==stamp

	Candidates MinHeap
	Results    MaxHeap

	// NeighborBuf is reused to avoid an allocation per expanded node; sized
	// to M0+1, grown lazily if a caller ever needs more.
	NeighborBuf []uint32
}

// NewScratch allocates a Scratch sized to the given node capacity and
// initial heap capacity (ef).
func NewScratch(capacity uint32, ef int, neighborBufCap int) *Scratch {
	return &Scratch{
		visited:     make([]uint32, capacity),
		stamp:       0,
		Candidates:  MinHeap{items: make(candidateSlice, 0, ef)},
		Results:     MaxHeap{items: make(candidateSlice, 0, ef)},
		NeighborBuf: make([]uint32, 0, neighborBufCap),
	}
}

// Grow extends the visited bitmap to cover a larger node capacity, used
// when the index is Reserve()'d to a bigger size between searches.
func (s *Scratch) Grow(capacity uint32) {
	if uint32(len(s.visited)) >= capacity {
		return
	}
	grown := make([]uint32, capacity)
	copy(grown, s.visited)
	s.visited = grown
}

// BeginSearch starts a new generation, amortizing visited-bitmap resets to
// O(touched nodes) instead of O(capacity) per search. On stamp overflow it
// falls back to a full zero, which is rare enough (once every 2^32
// searches per worker) not to matter.
func (s *Scratch) BeginSearch() {
	s.stamp++
	if s.stamp == 0 {
		for i := range s.visited {
			s.visited[i] = 0
		}
		s.stamp = 1
	}
	s.Candidates.Reset()
	s.Results.Reset()
}

// Visit marks id visited for the active search and reports whether it was
// already visited (i.e. whether the caller should skip expanding it
// again). Safe to call repeatedly; first call for an id returns false.
func (s *Scratch) Visit(id uint32) (alreadyVisited bool) {
	if int(id) >= len(s.visited) {
		grown := make([]uint32, id+1)
		copy(grown, s.visited)
		s.visited = grown
	}
	if s.visited[id] == s.stamp {
		return true
	}
	s.visited[id] = s.stamp
	return false
}
