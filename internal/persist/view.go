package persist

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"hash/crc32"

	"github.com/xDarkicex/proxigraph/internal/nstore"
	"github.com/xDarkicex/proxigraph/internal/vstore"
)

// View opens path read-only and maps the vector arena into the process
// directly, leaving the index backed by that mapping for its whole
// lifetime; any attempt to mutate it fails. Node records are small
// relative to the arena that dominates an index's memory footprint, so
// they're parsed once into ordinary heap Nodes from the same mapping
// (no extra file read, no extra copy beyond the handful of bytes each
// field occupies) while the arena — the part that actually matters for
// memory — stays a zero-copy sub-slice of the mapping for the life of the
// Store.
func View(path string, exp Expect, log Logger) (*Result, error) {
	if log == nil {
		log = nopLogger{}
	}
	raw, closer, err := vstore.MapReadOnly(path)
	if err != nil {
		return nil, fmt.Errorf("persist: %w", err)
	}
	defer closer()

	if len(raw) < 4 {
		return nil, &IncompatibleError{Reason: "file too small to contain a checksum trailer"}
	}
	payload, trailer := raw[:len(raw)-4], raw[len(raw)-4:]
	computed := crc32.ChecksumIEEE(payload)
	stored := binary.LittleEndian.Uint32(trailer)
	if stored != computed {
		log.Warnf("persist: view %s: crc32 mismatch: file says %08x, computed %08x", path, stored, computed)
		return nil, &IncompatibleError{Reason: fmt.Sprintf("crc32 mismatch: file says %08x, computed %08x", stored, computed)}
	}

	br := bytes.NewReader(payload)
	hdr, err := readHeaderChecked(br, exp)
	if err != nil {
		return nil, err
	}

	ns := nstore.New(int(hdr.M), int(hdr.M0), uint32(hdr.Capacity))
	for id := uint32(0); id < uint32(hdr.Size); id++ {
		node, err := readNode(br, ns)
		if err != nil {
			return nil, fmt.Errorf("persist: reading node %d: %w", id, err)
		}
		ns.InstallLoaded(id, node)
	}

	entryID := hdr.EntryID
	maxLevel := int(hdr.MaxLevel)
	if entryID == noEntry {
		maxLevel = -1
	}
	ns.FinalizeLoad(entryID, maxLevel)

	arenaOffset := int64(len(payload) - br.Len())
	arenaSize := int64(br.Len())

	vs, err := vstore.View(path, exp.ElementType, exp.Dim, uint32(hdr.Capacity), arenaOffset, arenaSize)
	if err != nil {
		return nil, fmt.Errorf("persist: %w", err)
	}

	return &Result{Header: hdr, NS: ns, VS: vs}, nil
}
