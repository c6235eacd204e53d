package persist

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"io"
	"os"

	"github.com/xDarkicex/proxigraph/internal/dist"
	"github.com/xDarkicex/proxigraph/internal/nstore"
	"github.com/xDarkicex/proxigraph/internal/vstore"
)

// Expect pins the identity fields a loaded file must match; a mismatch on
// any of them is a fatal load error. MetricID 0 means "skip the metric
// check" — the index was built with a user callback and is inherently
// non-portable, so the caller is trusted to supply the matching callback
// itself.
type Expect struct {
	Dim         int
	ElementType dist.ElementType
	MetricID    uint32
}

// Result is what Load/View hand back: the reconstructed stores plus the
// header fields the façade needs to restore tuning parameters.
type Result struct {
	Header Header
	NS     *nstore.Store
	VS     *vstore.Store
}

// Load reads path fully into freshly allocated owning stores. log receives
// a warning if the trailing checksum doesn't match the computed one; a nil
// log is treated as a no-op sink.
func Load(path string, exp Expect, log Logger) (*Result, error) {
	if log == nil {
		log = nopLogger{}
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("persist: open %s: %w", path, err)
	}
	defer f.Close()

	crc := crc32.NewIEEE()
	br := bufio.NewReader(f)
	r := io.TeeReader(br, crc)

	hdr, err := readHeaderChecked(r, exp)
	if err != nil {
		return nil, err
	}

	vs, err := vstore.New(exp.ElementType, int(hdr.Dim), uint32(hdr.Capacity))
	if err != nil {
		return nil, fmt.Errorf("persist: %w", err)
	}
	ns := nstore.New(int(hdr.M), int(hdr.M0), uint32(hdr.Capacity))

	for id := uint32(0); id < uint32(hdr.Size); id++ {
		node, err := readNode(r, ns)
		if err != nil {
			return nil, fmt.Errorf("persist: reading node %d: %w", id, err)
		}
		ns.InstallLoaded(id, node)
	}

	stride := vs.Stride()
	arena := make([]byte, int(hdr.Capacity)*stride)
	if _, err := io.ReadFull(r, arena); err != nil {
		return nil, fmt.Errorf("persist: reading vector arena: %w", err)
	}
	if err := loadArenaInto(vs, arena); err != nil {
		return nil, fmt.Errorf("persist: %w", err)
	}

	computed := crc.Sum32()
	var stored uint32
	if err := binary.Read(br, binary.LittleEndian, &stored); err != nil {
		return nil, fmt.Errorf("persist: reading trailer checksum: %w", err)
	}
	if stored != computed {
		log.Warnf("persist: load %s: crc32 mismatch: file says %08x, computed %08x", path, stored, computed)
		return nil, &IncompatibleError{Reason: fmt.Sprintf("crc32 mismatch: file says %08x, computed %08x", stored, computed)}
	}

	entryID := hdr.EntryID
	maxLevel := int(hdr.MaxLevel)
	if entryID == noEntry {
		maxLevel = -1
	}
	ns.FinalizeLoad(entryID, maxLevel)

	return &Result{Header: hdr, NS: ns, VS: vs}, nil
}

func readHeaderChecked(r io.Reader, exp Expect) (Header, error) {
	magic := make([]byte, len(Magic))
	if _, err := io.ReadFull(r, magic); err != nil {
		return Header{}, fmt.Errorf("persist: reading magic: %w", err)
	}
	if string(magic) != Magic {
		return Header{}, &IncompatibleError{Reason: fmt.Sprintf("bad magic %q", magic)}
	}

	var hdr Header
	fields := []*uint32{&hdr.Version, &hdr.Dim, &hdr.ElementType, &hdr.MetricID,
		&hdr.M, &hdr.M0, &hdr.EfConstruction, &hdr.EfSearch}
	for _, f := range fields {
		if err := binary.Read(r, binary.LittleEndian, f); err != nil {
			return Header{}, fmt.Errorf("persist: reading header: %w", err)
		}
	}
	if err := binary.Read(r, binary.LittleEndian, &hdr.Size); err != nil {
		return Header{}, fmt.Errorf("persist: reading header: %w", err)
	}
	if err := binary.Read(r, binary.LittleEndian, &hdr.Capacity); err != nil {
		return Header{}, fmt.Errorf("persist: reading header: %w", err)
	}
	if err := binary.Read(r, binary.LittleEndian, &hdr.EntryID); err != nil {
		return Header{}, fmt.Errorf("persist: reading header: %w", err)
	}
	if err := binary.Read(r, binary.LittleEndian, &hdr.MaxLevel); err != nil {
		return Header{}, fmt.Errorf("persist: reading header: %w", err)
	}
	if err := binary.Read(r, binary.LittleEndian, &hdr.LevelLambda); err != nil {
		return Header{}, fmt.Errorf("persist: reading header: %w", err)
	}

	if hdr.Version != FormatVersion {
		return Header{}, &IncompatibleError{Reason: fmt.Sprintf("unsupported version %d", hdr.Version)}
	}
	if int(hdr.Dim) != exp.Dim {
		return Header{}, &IncompatibleError{Reason: fmt.Sprintf("dimension %d does not match expected %d", hdr.Dim, exp.Dim)}
	}
	if dist.ElementType(hdr.ElementType) != exp.ElementType {
		return Header{}, &IncompatibleError{Reason: fmt.Sprintf("element type %d does not match expected %s", hdr.ElementType, exp.ElementType)}
	}
	if exp.MetricID != 0 && hdr.MetricID != exp.MetricID {
		return Header{}, &IncompatibleError{Reason: fmt.Sprintf("metric %d does not match expected %d", hdr.MetricID, exp.MetricID)}
	}

	return hdr, nil
}

func readNode(r io.Reader, ns *nstore.Store) (*nstore.Node, error) {
	var label int64
	if err := binary.Read(r, binary.LittleEndian, &label); err != nil {
		return nil, err
	}
	var topLayer uint32
	if err := binary.Read(r, binary.LittleEndian, &topLayer); err != nil {
		return nil, err
	}

	node := nstore.NewNodeForLoad(label, int(topLayer), ns.CapAt)
	for l := 0; l <= int(topLayer); l++ {
		var count uint32
		if err := binary.Read(r, binary.LittleEndian, &count); err != nil {
			return nil, err
		}
		ids := make([]uint32, count)
		for i := range ids {
			if err := binary.Read(r, binary.LittleEndian, &ids[i]); err != nil {
				return nil, err
			}
		}
		node.Replace(l, ids)
	}
	return node, nil
}

// loadArenaInto copies a freshly read vector arena byte-for-byte into vs's
// owning backing slice. vstore has no exported bulk-load setter since
// normal operation only ever writes through Add; persist is the one
// caller allowed to replace the whole arena at once, so it reaches in via
// the small accessor below rather than vstore growing a wider public API
// for a single internal consumer.
func loadArenaInto(vs *vstore.Store, arena []byte) error {
	return vs.LoadArena(arena)
}
