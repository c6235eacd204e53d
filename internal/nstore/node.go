// Package nstore implements the node arena: a fixed-capacity collection of
// graph nodes, never relocated once reserved, where each node packs its
// per-layer neighbor lists into a single flat []uint32 buffer to keep a
// node's edges hot in cache during expansion.
package nstore

import (
	"runtime"
	"sync/atomic"
)

// Node is one graph node: a label, its top layer, and a flat neighbor
// buffer segmented by layer. Concurrency: multiple readers may copy a
// node's lists without locking, tolerating torn reads; mutators take
// writeLock, always in ascending-id order across nodes to avoid
// lock-cycle deadlocks.
type Node struct {
	Label    int64
	TopLayer int32

	// neighbors holds every layer's neighbor ids back to back; offset[l]
	// is the start index of layer l's segment, capacity[l] its length, and
	// count[l] the number of ids currently populated (<= capacity[l]).
	neighbors []uint32
	offset    []uint32
	capacity  []uint32
	count     []atomic.Uint32

	writeLock atomic.Uint32
}

func newNode(label int64, topLayer int, capAt func(layer int) int) *Node {
	n := &Node{
		Label:    label,
		TopLayer: int32(topLayer),
		offset:   make([]uint32, topLayer+1),
		capacity: make([]uint32, topLayer+1),
		count:    make([]atomic.Uint32, topLayer+1),
	}
	var total uint32
	for l := 0; l <= topLayer; l++ {
		c := capAt(l)
		n.offset[l] = total
		n.capacity[l] = uint32(c)
		total += uint32(c)
	}
	n.neighbors = make([]uint32, total)
	return n
}

// Lock acquires the node's write flag, spinning until free. Callers must
// always acquire locks across multiple nodes in ascending internal-id
// order to prevent cycles.
func (n *Node) Lock() {
	for !n.writeLock.CompareAndSwap(0, 1) {
		runtime.Gosched()
	}
}

// Unlock releases the node's write flag.
func (n *Node) Unlock() {
	n.writeLock.Store(0)
}

// Degree returns the current neighbor count at layer l.
func (n *Node) Degree(l int) int {
	if l < 0 || l >= len(n.count) {
		return 0
	}
	return int(n.count[l].Load())
}

// Cap returns the configured neighbor capacity (M_l) at layer l.
func (n *Node) Cap(l int) int {
	if l < 0 || l >= len(n.capacity) {
		return 0
	}
	return int(n.capacity[l])
}

// Snapshot copies the current layer-l neighbor list into dst (growing it if
// needed) and returns the resulting slice. Copying into caller-owned scratch
// before use lets readers tolerate torn writes: count is loaded once and
// never exceeds the layer's capacity, so the copy never reads outside the
// layer's segment. A concurrent Append can make the copy miss a just-added
// edge; a concurrent Replace (after pruning) can make it see a mix of the
// old and new lists.
func (n *Node) Snapshot(l int, dst []uint32) []uint32 {
	if l < 0 || l >= len(n.offset) {
		return dst[:0]
	}
	cnt := int(n.count[l].Load())
	start := n.offset[l]
	if cap(dst) < cnt {
		dst = make([]uint32, cnt)
	} else {
		dst = dst[:cnt]
	}
	copy(dst, n.neighbors[start:int(start)+cnt])
	return dst
}

// Append adds id to layer l's list. Caller must hold n.Lock(). Returns
// false if the layer is already at capacity (caller decides whether to
// prune first).
func (n *Node) Append(l int, id uint32) bool {
	cnt := n.count[l].Load()
	if cnt >= n.capacity[l] {
		return false
	}
	n.neighbors[n.offset[l]+cnt] = id
	n.count[l].Store(cnt + 1)
	return true
}

// Replace overwrites layer l's list wholesale with ids (len(ids) must be
// <= Cap(l)). Caller must hold n.Lock(). Used after heuristic pruning
// shrinks a node's list back down to its cap.
func (n *Node) Replace(l int, ids []uint32) {
	start := n.offset[l]
	for i, id := range ids {
		n.neighbors[int(start)+i] = id
	}
	n.count[l].Store(uint32(len(ids)))
}

// Contains reports whether id is already present in layer l's list, used
// to reject duplicate links.
func (n *Node) Contains(l int, id uint32) bool {
	cnt := int(n.count[l].Load())
	start := n.offset[l]
	for i := 0; i < cnt; i++ {
		if n.neighbors[int(start)+i] == id {
			return true
		}
	}
	return false
}
