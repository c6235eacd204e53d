package nstore

import (
	"sync"
	"testing"
)

func TestAllocAssignsDenseIncreasingIDs(t *testing.T) {
	s := New(16, 32, 8)
	for i := 0; i < 5; i++ {
		id, _, err := s.Alloc(int64(i), 0)
		if err != nil {
			t.Fatalf("Alloc: %v", err)
		}
		if id != uint32(i) {
			t.Errorf("Alloc #%d returned id %d, want %d", i, id, i)
		}
	}
	if s.Size() != 5 {
		t.Errorf("Size() = %d, want 5", s.Size())
	}
}

func TestAllocRejectsOutOfCapacity(t *testing.T) {
	s := New(16, 32, 2)
	if _, _, err := s.Alloc(1, 0); err != nil {
		t.Fatalf("Alloc #1: %v", err)
	}
	if _, _, err := s.Alloc(2, 0); err != nil {
		t.Fatalf("Alloc #2: %v", err)
	}
	if _, _, err := s.Alloc(3, 0); err == nil {
		t.Error("expected OutOfCapacity error on third Alloc into capacity-2 store")
	}
}

func TestAllocConcurrentNeverDuplicatesIDs(t *testing.T) {
	s := New(16, 32, 1000)
	var wg sync.WaitGroup
	ids := make([]uint32, 1000)
	for i := 0; i < 1000; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id, _, err := s.Alloc(int64(i), 0)
			if err != nil {
				t.Errorf("Alloc: %v", err)
				return
			}
			ids[i] = id
		}(i)
	}
	wg.Wait()

	seen := make(map[uint32]bool, 1000)
	for _, id := range ids {
		if seen[id] {
			t.Fatalf("duplicate id %d handed out by concurrent Alloc", id)
		}
		seen[id] = true
	}
}

func TestNodeAppendAndSnapshot(t *testing.T) {
	s := New(4, 8, 8)
	_, node, err := s.Alloc(1, 1)
	if err != nil {
		t.Fatalf("Alloc: %v", err)
	}
	node.Lock()
	node.Append(0, 2)
	node.Append(0, 3)
	node.Unlock()

	got := node.Snapshot(0, nil)
	if len(got) != 2 || got[0] != 2 || got[1] != 3 {
		t.Errorf("Snapshot(0) = %v, want [2 3]", got)
	}
	if node.Degree(0) != 2 {
		t.Errorf("Degree(0) = %d, want 2", node.Degree(0))
	}
}

func TestNodeAppendRespectsCap(t *testing.T) {
	s := New(2, 4, 8) // M=2, so layer>0 cap is 2
	_, node, err := s.Alloc(1, 1)
	if err != nil {
		t.Fatalf("Alloc: %v", err)
	}
	node.Lock()
	defer node.Unlock()
	if !node.Append(1, 10) || !node.Append(1, 11) {
		t.Fatal("expected first two appends at cap 2 to succeed")
	}
	if node.Append(1, 12) {
		t.Error("expected third append to fail once layer is at cap")
	}
}

func TestNodeReplaceOverwritesWholesale(t *testing.T) {
	s := New(4, 8, 8)
	_, node, err := s.Alloc(1, 0)
	if err != nil {
		t.Fatalf("Alloc: %v", err)
	}
	node.Lock()
	node.Append(0, 1)
	node.Append(0, 2)
	node.Replace(0, []uint32{9})
	node.Unlock()

	got := node.Snapshot(0, nil)
	if len(got) != 1 || got[0] != 9 {
		t.Errorf("Snapshot(0) after Replace = %v, want [9]", got)
	}
}

func TestEntryPointPromotion(t *testing.T) {
	s := New(4, 8, 8)
	id0, _, _ := s.Alloc(1, 0)
	s.SetFirstEntry(id0, 0)

	id1, _, _ := s.Alloc(2, 3)
	s.MaybePromoteEntry(id1, 3)

	entry, ok := s.EntryID()
	if !ok || entry != id1 {
		t.Errorf("EntryID() = (%d, %v), want (%d, true) after promotion", entry, ok, id1)
	}
	if s.MaxLevel() != 3 {
		t.Errorf("MaxLevel() = %d, want 3", s.MaxLevel())
	}
}

func TestEntryPointPromotionIgnoresLowerLevel(t *testing.T) {
	s := New(4, 8, 8)
	id0, _, _ := s.Alloc(1, 2)
	s.SetFirstEntry(id0, 2)

	id1, _, _ := s.Alloc(2, 1)
	s.MaybePromoteEntry(id1, 1)

	entry, _ := s.EntryID()
	if entry != id0 {
		t.Errorf("EntryID() = %d, want unchanged %d (promotion only happens on strictly higher level)", entry, id0)
	}
}

func TestClearResetsSizeAndEntry(t *testing.T) {
	s := New(4, 8, 8)
	id0, _, _ := s.Alloc(1, 0)
	s.SetFirstEntry(id0, 0)
	s.Clear()

	if s.Size() != 0 {
		t.Errorf("Size() after Clear = %d, want 0", s.Size())
	}
	if _, ok := s.EntryID(); ok {
		t.Error("EntryID() should report absent after Clear")
	}
	if s.Capacity() != 8 {
		t.Errorf("Capacity() after Clear = %d, want unchanged 8", s.Capacity())
	}
}
