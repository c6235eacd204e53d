package nstore

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
)

// noEntry marks an empty graph's entry point: no node has been inserted yet.
const noEntry = ^uint32(0)

// ErrOutOfCapacity is the sentinel Alloc wraps when the node arena has no
// room left, distinct from vstore's own validation-failure sentinel so
// callers can tell "grow me" apart from "this vector is malformed".
var ErrOutOfCapacity = errors.New("nstore: out of capacity")

// Store is the fixed-capacity node arena. It is never relocated once
// Reserve has run: growing Reserve again replaces the backing []*Node
// slice, but every already-issued *Node pointer keeps pointing at its own
// heap allocation, so concurrent readers holding a *Node from before a
// Reserve call are never invalidated.
type Store struct {
	m, m0 int // connectivity parameters: M for layer>0, M0 for layer 0

	mu       sync.RWMutex // guards the nodes slice itself during Reserve
	nodes    []*Node
	size     atomic.Uint32
	capacity atomic.Uint32

	entryID  atomic.Uint32
	maxLevel atomic.Int32
	entryMu  sync.Mutex // guards the entry_id/max_level bump
}

// New allocates a Store with room for `capacity` nodes under connectivity
// parameters m (layers > 0) and m0 (layer 0).
func New(m, m0 int, capacity uint32) *Store {
	s := &Store{
		m:     m,
		m0:    m0,
		nodes: make([]*Node, capacity),
	}
	s.size.Store(0)
	s.capacity.Store(capacity)
	s.entryID.Store(noEntry)
	s.maxLevel.Store(-1)
	return s
}

// CapAt returns the neighbor-list cap for layer l: M0 at layer 0, M above it.
func (s *Store) CapAt(l int) int {
	if l == 0 {
		return s.m0
	}
	return s.m
}

func (s *Store) M() int  { return s.m }
func (s *Store) M0() int { return s.m0 }

// Capacity returns the current reserved node capacity.
func (s *Store) Capacity() uint32 { return s.capacity.Load() }

// Size returns the number of live nodes.
func (s *Store) Size() uint32 { return s.size.Load() }

// Reserve grows the arena to hold at least n nodes. Not safe to call
// concurrently with Alloc/Get; callers must hold exclusive access.
func (s *Store) Reserve(n uint32) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n <= s.capacity.Load() {
		return nil
	}
	grown := make([]*Node, n)
	copy(grown, s.nodes)
	s.nodes = grown
	s.capacity.Store(n)
	return nil
}

// Alloc reserves the next dense internal id, constructs its Node with the
// given label and random top layer, and installs it in the arena. It does
// not touch entry_id/max_level or neighbor lists; insertion wires those up
// afterward.
//
// The id is reserved with a CAS loop rather than a plain load-then-store so
// that concurrent inserters never race onto the same slot: two goroutines
// reading the same size snapshot will have exactly one of them win the
// CompareAndSwap, and the loser retries against the new size.
func (s *Store) Alloc(label int64, topLayer int) (uint32, *Node, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var id uint32
	for {
		id = s.size.Load()
		if id >= s.capacity.Load() {
			return 0, nil, fmt.Errorf("nstore: out of capacity (size %d == capacity %d): %w", id, s.capacity.Load(), ErrOutOfCapacity)
		}
		if s.size.CompareAndSwap(id, id+1) {
			break
		}
	}

	node := newNode(label, topLayer, s.CapAt)
	s.nodes[id] = node

	return id, node, nil
}

// Get returns the node at internal id. Panics-free: out-of-range or unset
// slots return nil, which callers treat as "not live".
func (s *Store) Get(id uint32) *Node {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if int(id) >= len(s.nodes) {
		return nil
	}
	return s.nodes[id]
}

// EntryID returns the current global entry point id and whether one exists.
func (s *Store) EntryID() (uint32, bool) {
	id := s.entryID.Load()
	return id, id != noEntry
}

// MaxLevel returns the current highest top_layer across all nodes, or -1
// if the index is empty.
func (s *Store) MaxLevel() int {
	return int(s.maxLevel.Load())
}

// SetFirstEntry installs the first inserted node as the entry point; called
// exactly once, for internal id 0.
func (s *Store) SetFirstEntry(id uint32, topLayer int) {
	s.entryID.Store(id)
	s.maxLevel.Store(int32(topLayer))
}

// MaybePromoteEntry bumps entry_id/max_level if topLayer strictly exceeds
// the current max_level — a rare event with connectivity M, guarded by a
// single mutex so concurrent inserters never race the bump.
func (s *Store) MaybePromoteEntry(id uint32, topLayer int) {
	s.entryMu.Lock()
	defer s.entryMu.Unlock()
	if int32(topLayer) > s.maxLevel.Load() {
		s.entryID.Store(id)
		s.maxLevel.Store(int32(topLayer))
	}
}

// Clear resets size and entry point, keeping capacity and connectivity
// parameters intact.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.nodes {
		s.nodes[i] = nil
	}
	s.size.Store(0)
	s.entryID.Store(noEntry)
	s.maxLevel.Store(-1)
}

// InstallLoaded places an already-constructed node at id directly, used
// while rebuilding a Store from a persisted file (internal/persist). It
// bypasses Alloc's capacity bookkeeping since the caller is replaying a
// known-valid prior state, not performing a fresh insertion.
func (s *Store) InstallLoaded(id uint32, node *Node) {
	s.nodes[id] = node
	if id+1 > s.size.Load() {
		s.size.Store(id + 1)
	}
}

// FinalizeLoad sets entry_id/max_level after all nodes have been installed
// via InstallLoaded, restoring the values recorded when the store was saved.
func (s *Store) FinalizeLoad(entryID uint32, maxLevel int) {
	s.entryID.Store(entryID)
	s.maxLevel.Store(int32(maxLevel))
}

// NewNodeForLoad constructs a detached Node (not yet installed in the
// arena) for the persistence loader to populate from file bytes before
// calling InstallLoaded.
func NewNodeForLoad(label int64, topLayer int, capAt func(layer int) int) *Node {
	return newNode(label, topLayer, capAt)
}
