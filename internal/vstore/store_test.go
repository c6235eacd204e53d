package vstore

import (
	"bytes"
	"testing"

	"github.com/xDarkicex/proxigraph/internal/dist"
)

func TestStoreAddAndAt(t *testing.T) {
	s, err := New(dist.F32, 4, 8)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	vec := []byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16}
	if err := s.Add(0, vec, true); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if got := s.At(0); !bytes.Equal(got, vec) {
		t.Errorf("At(0) = %v, want %v", got, vec)
	}
}

func TestStoreAddRejectsWrongLength(t *testing.T) {
	s, err := New(dist.F32, 4, 8)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := s.Add(0, []byte{1, 2, 3}, true); err == nil {
		t.Error("expected error for vector of wrong byte length")
	}
}

func TestStoreAddRejectsOutOfCapacity(t *testing.T) {
	s, err := New(dist.F32, 4, 2)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	vec := make([]byte, 16)
	if err := s.Add(5, vec, true); err == nil {
		t.Error("expected error for id beyond capacity")
	}
}

func TestStoreBorrowingMode(t *testing.T) {
	s, err := New(dist.F32, 4, 8)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	vec := make([]byte, 16)
	vec[0] = 42
	if err := s.Add(0, vec, false); err != nil {
		t.Fatalf("Add(copy=false): %v", err)
	}
	vec[0] = 99 // caller mutates after Add; borrowed mode should see it
	if got := s.At(0); got[0] != 99 {
		t.Errorf("borrowed slot did not reflect caller mutation: got %v, want 99", got[0])
	}
}

func TestStoreReservePreservesContents(t *testing.T) {
	s, err := New(dist.F32, 4, 2)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	vec := make([]byte, 16)
	vec[0] = 7
	if err := s.Add(0, vec, true); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := s.Reserve(16); err != nil {
		t.Fatalf("Reserve: %v", err)
	}
	if s.Capacity() != 16 {
		t.Errorf("Capacity() = %d, want 16", s.Capacity())
	}
	if got := s.At(0); got[0] != 7 {
		t.Errorf("Reserve did not preserve existing contents: got %v, want first byte 7", got[0])
	}
}

func TestStoreReserveShrinkIsNoOp(t *testing.T) {
	s, err := New(dist.F32, 4, 16)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := s.Reserve(4); err != nil {
		t.Fatalf("Reserve: %v", err)
	}
	if s.Capacity() != 16 {
		t.Errorf("Reserve(m <= n) should be a no-op; Capacity() = %d, want 16", s.Capacity())
	}
}

func TestStoreStrideIsCacheLineAligned(t *testing.T) {
	s, err := New(dist.F32, 1, 1)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if s.Stride()%cacheLine != 0 {
		t.Errorf("Stride() = %d, want a multiple of %d", s.Stride(), cacheLine)
	}
}
