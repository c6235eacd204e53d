package persist

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/xDarkicex/proxigraph/internal/dist"
	"github.com/xDarkicex/proxigraph/internal/nstore"
	"github.com/xDarkicex/proxigraph/internal/vstore"
)

func buildStores(t *testing.T) (*nstore.Store, *vstore.Store) {
	t.Helper()
	vs, err := vstore.New(dist.F32, 2, 8)
	if err != nil {
		t.Fatalf("vstore.New: %v", err)
	}
	ns := nstore.New(4, 8, 8)

	for i := 0; i < 3; i++ {
		id, node, err := ns.Alloc(int64(10+i), 1)
		if err != nil {
			t.Fatalf("Alloc: %v", err)
		}
		if err := vs.Add(id, []byte{byte(i), 0, 0, 0, 0, 0, 0, 0}, true); err != nil {
			t.Fatalf("vs.Add: %v", err)
		}
		if id == 0 {
			ns.SetFirstEntry(id, 1)
		} else {
			node.Lock()
			node.Append(0, 0)
			node.Unlock()
		}
	}
	return ns, vs
}

func TestSaveThenLoadRoundTrips(t *testing.T) {
	ns, vs := buildStores(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "idx.bin")

	p := WriteParams{ElementType: uint32(dist.F32), MetricID: 1, EfConstruction: 64, EfSearch: 32, LevelLambda: 0.5}
	if err := Save(path, ns, vs, p); err != nil {
		t.Fatalf("Save: %v", err)
	}

	exp := Expect{Dim: 2, ElementType: dist.F32, MetricID: 1}
	res, err := Load(path, exp, nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if res.NS.Size() != ns.Size() {
		t.Errorf("loaded Size() = %d, want %d", res.NS.Size(), ns.Size())
	}
	for id := uint32(0); id < ns.Size(); id++ {
		want := ns.Get(id)
		got := res.NS.Get(id)
		if got.Label != want.Label || got.TopLayer != want.TopLayer {
			t.Errorf("node %d = (label=%d, top=%d), want (label=%d, top=%d)", id, got.Label, got.TopLayer, want.Label, want.TopLayer)
		}
		for l := 0; l <= int(want.TopLayer); l++ {
			wantIDs := want.Snapshot(l, nil)
			gotIDs := got.Snapshot(l, nil)
			if len(wantIDs) != len(gotIDs) {
				t.Fatalf("node %d layer %d neighbor count = %d, want %d", id, l, len(gotIDs), len(wantIDs))
			}
			for i := range wantIDs {
				if wantIDs[i] != gotIDs[i] {
					t.Errorf("node %d layer %d neighbor[%d] = %d, want %d", id, l, i, gotIDs[i], wantIDs[i])
				}
			}
		}
		if got := res.VS.At(id); got[0] != vs.At(id)[0] {
			t.Errorf("node %d vector byte 0 = %d, want %d", id, got[0], vs.At(id)[0])
		}
	}

	entry, ok := res.NS.EntryID()
	wantEntry, wantOK := ns.EntryID()
	if ok != wantOK || entry != wantEntry {
		t.Errorf("EntryID() = (%d, %v), want (%d, %v)", entry, ok, wantEntry, wantOK)
	}
	if res.NS.MaxLevel() != ns.MaxLevel() {
		t.Errorf("MaxLevel() = %d, want %d", res.NS.MaxLevel(), ns.MaxLevel())
	}
}

func TestViewMatchesLoad(t *testing.T) {
	ns, vs := buildStores(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "idx.bin")

	p := WriteParams{ElementType: uint32(dist.F32), MetricID: 1, EfConstruction: 64, EfSearch: 32, LevelLambda: 0.5}
	if err := Save(path, ns, vs, p); err != nil {
		t.Fatalf("Save: %v", err)
	}
	exp := Expect{Dim: 2, ElementType: dist.F32, MetricID: 1}

	loaded, err := Load(path, exp, nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	viewed, err := View(path, exp, nil)
	if err != nil {
		t.Fatalf("View: %v", err)
	}
	defer viewed.VS.Close()

	if loaded.NS.Size() != viewed.NS.Size() {
		t.Fatalf("Size mismatch between Load and View: %d vs %d", loaded.NS.Size(), viewed.NS.Size())
	}
	for id := uint32(0); id < loaded.NS.Size(); id++ {
		a := loaded.VS.At(id)
		b := viewed.VS.At(id)
		if string(a) != string(b) {
			t.Errorf("node %d vector mismatch between Load and View", id)
		}
	}
}

func TestLoadRejectsDimensionMismatch(t *testing.T) {
	ns, vs := buildStores(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "idx.bin")

	p := WriteParams{ElementType: uint32(dist.F32), MetricID: 1, EfConstruction: 64, EfSearch: 32, LevelLambda: 0.5}
	if err := Save(path, ns, vs, p); err != nil {
		t.Fatalf("Save: %v", err)
	}

	_, err := Load(path, Expect{Dim: 99, ElementType: dist.F32, MetricID: 1}, nil)
	if err == nil {
		t.Fatal("expected IncompatibleError for dimension mismatch")
	}
	if _, ok := err.(*IncompatibleError); !ok {
		t.Errorf("error type = %T, want *IncompatibleError", err)
	}
}

func TestLoadRejectsBadMagic(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "garbage.bin")
	if err := os.WriteFile(path, []byte("NOTUSEARCHXXX"), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	_, err := Load(path, Expect{Dim: 2, ElementType: dist.F32, MetricID: 1}, nil)
	if _, ok := err.(*IncompatibleError); !ok {
		t.Errorf("error type = %T, want *IncompatibleError for bad magic", err)
	}
}

func TestLoadDetectsChecksumCorruption(t *testing.T) {
	ns, vs := buildStores(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "idx.bin")

	p := WriteParams{ElementType: uint32(dist.F32), MetricID: 1, EfConstruction: 64, EfSearch: 32, LevelLambda: 0.5}
	if err := Save(path, ns, vs, p); err != nil {
		t.Fatalf("Save: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	// Flip a byte inside the vector arena, well past the header and node
	// records, without touching the trailing checksum itself.
	data[len(data)-8] ^= 0xFF
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	_, err = Load(path, Expect{Dim: 2, ElementType: dist.F32, MetricID: 1}, nil)
	if err == nil {
		t.Fatal("expected checksum mismatch error after corrupting the file")
	}
	if _, ok := err.(*IncompatibleError); !ok {
		t.Errorf("error type = %T, want *IncompatibleError for checksum mismatch", err)
	}
}

func TestLoadMetricIDZeroSkipsCheck(t *testing.T) {
	ns, vs := buildStores(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "idx.bin")

	// Saved with MetricID 0 (a user callback metric).
	p := WriteParams{ElementType: uint32(dist.F32), MetricID: 0, EfConstruction: 64, EfSearch: 32, LevelLambda: 0.5}
	if err := Save(path, ns, vs, p); err != nil {
		t.Fatalf("Save: %v", err)
	}

	// Expect.MetricID also 0: skip-the-check contract.
	if _, err := Load(path, Expect{Dim: 2, ElementType: dist.F32, MetricID: 0}, nil); err != nil {
		t.Errorf("Load with MetricID 0 on both sides should succeed: %v", err)
	}
}
