// Package vstore implements the vector arena: a contiguous block of raw
// vector bytes indexed by internal id, with an owning mode (bytes copied
// into the arena) and a borrowing mode (caller retains ownership, the
// store only keeps a pointer). A Store opened in view mode is backed by a
// read-only memory mapping and rejects writes outright.
package vstore

import (
	"errors"
	"fmt"
	"sync"

	"github.com/xDarkicex/proxigraph/internal/dist"
)

// cacheLine is the alignment boundary for per-vector strides, keeping a
// single vector's load inside as few cache lines as reasonably possible.
const cacheLine = 64

// ErrInvalidVector is the sentinel wrapped by every Add rejection that is
// about the vector itself (wrong byte length) or the slot it was asked to
// occupy (id out of range) rather than about the arena running out of room
// — that failure comes from nstore's own capacity check instead.
var ErrInvalidVector = errors.New("vstore: invalid vector")

// Store is a fixed-capacity arena of vector bytes indexed by internal id.
// Reserve grows it by copying into a larger arena, so ids stay valid but a
// byte view returned by At before a Reserve points into the old arena.
type Store struct {
	elem     dist.ElementType
	dim      int
	stride   int
	capacity uint32

	// Owning arena; in view mode, the arena's sub-slice of the read-only
	// mapping.
	data []byte

	// Borrowed slots: id -> caller-owned byte view. Only populated for
	// vectors added with copy=false. Guarded by its own mutex since ids
	// written by concurrent Adds share this one Go map, unlike the owning
	// arena where each id's byte range is disjoint and needs no lock.
	borrowedMu sync.RWMutex
	borrowed   map[uint32][]byte

	// Set when the arena is a read-only memory mapping (view mode); Add is
	// then forbidden regardless of the copy flag.
	readOnly bool
	mapping  *Mapping
}

// New allocates an owning Store with room for capacity vectors of the given
// element type and dimension.
func New(elem dist.ElementType, dim int, capacity uint32) (*Store, error) {
	if dim <= 0 {
		return nil, fmt.Errorf("vstore: dimension must be positive, got %d", dim)
	}
	size := elem.Size()
	if size == 0 {
		return nil, fmt.Errorf("vstore: unsupported element type %s", elem)
	}
	s := &Store{
		elem:     elem,
		dim:      dim,
		stride:   alignUp(size*dim, cacheLine),
		capacity: capacity,
		borrowed: make(map[uint32][]byte),
	}
	s.data = make([]byte, int(capacity)*s.stride)
	return s, nil
}

func alignUp(n, align int) int {
	if n%align == 0 {
		return n
	}
	return n + (align - n%align)
}

// Reserve grows the owning arena to the new capacity, preserving existing
// bytes. It is the caller's job to serialize this against concurrent
// Add/At calls; Reserve itself is not safe to call alongside them.
func (s *Store) Reserve(capacity uint32) error {
	if s.readOnly {
		return fmt.Errorf("vstore: cannot reserve on a read-only view")
	}
	if capacity <= s.capacity {
		return nil
	}
	grown := make([]byte, int(capacity)*s.stride)
	copy(grown, s.data)
	s.data = grown
	s.capacity = capacity
	return nil
}

// Add stores vec at slot id. With copy=true the bytes are memcpy'd into the
// arena; with copy=false the store retains the caller's slice directly and
// the caller guarantees its lifetime outlives all reads of this slot.
func (s *Store) Add(id uint32, vec []byte, copyBytes bool) error {
	if s.readOnly {
		return fmt.Errorf("vstore: add is forbidden on a read-only view")
	}
	if id >= s.capacity {
		return fmt.Errorf("vstore: id %d exceeds capacity %d: %w", id, s.capacity, ErrInvalidVector)
	}
	if len(vec) != s.elem.Size()*s.dim {
		return fmt.Errorf("vstore: vector byte length %d does not match element size*dim %d: %w",
			len(vec), s.elem.Size()*s.dim, ErrInvalidVector)
	}
	if !copyBytes {
		s.borrowedMu.Lock()
		s.borrowed[id] = vec
		s.borrowedMu.Unlock()
		return nil
	}
	off := int(id) * s.stride
	copy(s.data[off:off+s.elem.Size()*s.dim], vec)
	return nil
}

// At returns the byte view for slot id: the arena slice in owning/view
// mode, or the caller-retained slice in borrowing mode.
func (s *Store) At(id uint32) []byte {
	s.borrowedMu.RLock()
	v, ok := s.borrowed[id]
	s.borrowedMu.RUnlock()
	if ok {
		return v
	}
	off := int(id) * s.stride
	return s.data[off : off+s.elem.Size()*s.dim]
}

func (s *Store) ElementType() dist.ElementType { return s.elem }
func (s *Store) Dim() int                      { return s.dim }
func (s *Store) Stride() int                   { return s.stride }
func (s *Store) Capacity() uint32              { return s.capacity }
func (s *Store) IsReadOnly() bool              { return s.readOnly }

// Bytes exposes the raw owning arena for persistence: the vector arena
// section of the save format is this slice written verbatim.
func (s *Store) Bytes() []byte { return s.data }

// LoadArena replaces the owning arena wholesale with bytes read back from a
// persisted file (internal/persist). len(arena) must equal
// int(capacity)*stride, the exact size the writer produced it at.
func (s *Store) LoadArena(arena []byte) error {
	if s.readOnly {
		return fmt.Errorf("vstore: cannot load into a read-only view")
	}
	want := int(s.capacity) * s.stride
	if len(arena) != want {
		return fmt.Errorf("vstore: loaded arena size %d does not match capacity*stride %d", len(arena), want)
	}
	s.data = arena
	return nil
}

// Close releases any backing memory mapping.
func (s *Store) Close() error {
	if s.mapping != nil {
		return s.mapping.Close()
	}
	return nil
}
