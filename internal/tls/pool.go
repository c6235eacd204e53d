package tls

import "sync"

// Pool hands out a Scratch per caller-supplied worker id, keyed by an
// index the caller passes explicitly rather than a true goroutine-local,
// so the engine stays agnostic to whatever thread pool sits above it. The
// façade passes through the worker id its caller gives Add and Search; it
// has no default worker id of its own.
type Pool struct {
	mu       sync.Mutex
	scratch  map[int]*Scratch
	capacity uint32
	ef       int
	nbufCap  int
}

// NewPool creates an empty pool; scratches are allocated lazily on first
// use per worker id.
func NewPool(capacity uint32, ef, neighborBufCap int) *Pool {
	return &Pool{
		scratch:  make(map[int]*Scratch),
		capacity: capacity,
		ef:       ef,
		nbufCap:  neighborBufCap,
	}
}

// Get returns the Scratch for workerID, allocating it on first use and
// growing it to the pool's current capacity otherwise.
func (p *Pool) Get(workerID int) *Scratch {
	p.mu.Lock()
	defer p.mu.Unlock()

	s, ok := p.scratch[workerID]
	if !ok {
		s = NewScratch(p.capacity, p.ef, p.nbufCap)
		p.scratch[workerID] = s
		return s
	}
	s.Grow(p.capacity)
	return s
}

// Grow raises the capacity new scratches (and future Get calls on existing
// ones) are sized to, called when the graph's node store is reserved
// bigger.
func (p *Pool) Grow(capacity uint32) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.capacity = capacity
}
