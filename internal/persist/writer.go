package persist

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"math"
	"os"
	"path/filepath"

	"github.com/xDarkicex/proxigraph/internal/nstore"
	"github.com/xDarkicex/proxigraph/internal/vstore"
)

// WriteParams carries the fields the node/vector stores don't already know
// about themselves (metric identity, search-time tuning, the level decay
// constant) so Save doesn't need to import pgraph and create a cycle.
type WriteParams struct {
	ElementType    uint32
	MetricID       uint32
	EfConstruction int
	EfSearch       int
	LevelLambda    float64
}

// Save writes ns/vs to path as a single self-describing file, via a
// write-to-temp-file-then-rename so a crash or a concurrent reader never
// observes a partially-written file.
func Save(path string, ns *nstore.Store, vs *vstore.Store, p WriteParams) error {
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("persist: create temp file: %w", err)
	}

	writeErr := writeAll(f, ns, vs, p)

	if syncErr := f.Sync(); syncErr != nil && writeErr == nil {
		writeErr = syncErr
	}
	if closeErr := f.Close(); closeErr != nil && writeErr == nil {
		writeErr = closeErr
	}
	if writeErr != nil {
		os.Remove(tmp)
		return fmt.Errorf("persist: write %s: %w", filepath.Base(path), writeErr)
	}

	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("persist: rename temp file into place: %w", err)
	}
	return nil
}

func writeAll(f *os.File, ns *nstore.Store, vs *vstore.Store, p WriteParams) error {
	crc := crc32.NewIEEE()
	w := bufio.NewWriter(f)

	if _, err := w.Write([]byte(Magic)); err != nil {
		return err
	}
	crc.Write([]byte(Magic))

	hdr := Header{
		Version:        FormatVersion,
		Dim:            uint32(vs.Dim()),
		ElementType:    p.ElementType,
		MetricID:       p.MetricID,
		M:              uint32(ns.M()),
		M0:             uint32(ns.M0()),
		EfConstruction: uint32(p.EfConstruction),
		EfSearch:       uint32(p.EfSearch),
		Size:           uint64(ns.Size()),
		Capacity:       uint64(ns.Capacity()),
		MaxLevel:       uint32(noEntry), // set below from the entry point
		LevelLambda:    p.LevelLambda,
	}
	if id, ok := ns.EntryID(); ok {
		hdr.EntryID = id
		hdr.MaxLevel = uint32(ns.MaxLevel())
	} else {
		hdr.EntryID = noEntry
		hdr.MaxLevel = 0
	}

	if err := writeHeader(w, crc, hdr); err != nil {
		return err
	}

	for id := uint32(0); id < uint32(ns.Size()); id++ {
		node := ns.Get(id)
		if node == nil {
			return fmt.Errorf("persist: node %d missing below size %d", id, ns.Size())
		}
		if err := writeNode(w, crc, node); err != nil {
			return err
		}
	}

	// Vectors added with copy=false live outside the owning arena, so each
	// live slot is copied in through At before the arena is written.
	arena := make([]byte, len(vs.Bytes()))
	copy(arena, vs.Bytes())
	for id := uint32(0); id < ns.Size(); id++ {
		copy(arena[int(id)*vs.Stride():], vs.At(id))
	}
	if _, err := w.Write(arena); err != nil {
		return err
	}
	crc.Write(arena)

	if err := binary.Write(w, binary.LittleEndian, crc.Sum32()); err != nil {
		return err
	}

	return w.Flush()
}

func writeU32(w *bufio.Writer, crc interface{ Write([]byte) (int, error) }, v uint32) error {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	if _, err := w.Write(b[:]); err != nil {
		return err
	}
	_, err := crc.Write(b[:])
	return err
}

func writeU64(w *bufio.Writer, crc interface{ Write([]byte) (int, error) }, v uint64) error {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	if _, err := w.Write(b[:]); err != nil {
		return err
	}
	_, err := crc.Write(b[:])
	return err
}

func writeF64(w *bufio.Writer, crc interface{ Write([]byte) (int, error) }, v float64) error {
	return writeU64(w, crc, math.Float64bits(v))
}

func writeI64(w *bufio.Writer, crc interface{ Write([]byte) (int, error) }, v int64) error {
	return writeU64(w, crc, uint64(v))
}

func writeHeader(w *bufio.Writer, crc interface{ Write([]byte) (int, error) }, h Header) error {
	for _, v := range []uint32{h.Version, h.Dim, h.ElementType, h.MetricID, h.M, h.M0, h.EfConstruction, h.EfSearch} {
		if err := writeU32(w, crc, v); err != nil {
			return err
		}
	}
	if err := writeU64(w, crc, h.Size); err != nil {
		return err
	}
	if err := writeU64(w, crc, h.Capacity); err != nil {
		return err
	}
	if err := writeU32(w, crc, h.EntryID); err != nil {
		return err
	}
	if err := writeU32(w, crc, h.MaxLevel); err != nil {
		return err
	}
	return writeF64(w, crc, h.LevelLambda)
}

func writeNode(w *bufio.Writer, crc interface{ Write([]byte) (int, error) }, n *nstore.Node) error {
	if err := writeI64(w, crc, n.Label); err != nil {
		return err
	}
	if err := writeU32(w, crc, uint32(n.TopLayer)); err != nil {
		return err
	}
	for l := 0; l <= int(n.TopLayer); l++ {
		ids := n.Snapshot(l, nil)
		if err := writeU32(w, crc, uint32(len(ids))); err != nil {
			return err
		}
		for _, id := range ids {
			if err := writeU32(w, crc, id); err != nil {
				return err
			}
		}
	}
	return nil
}
