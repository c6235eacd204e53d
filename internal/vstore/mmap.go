package vstore

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"

	"github.com/xDarkicex/proxigraph/internal/dist"
)

// Mapping is a read-only memory mapping of a region of a file, used to back
// the vector arena without copying it into the process heap. Read-only
// since a mapped index is never mutated in place.
type Mapping struct {
	file *os.File
	data []byte
}

// mapFile memory-maps the full contents of path read-only.
func mapFile(path string) (*Mapping, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("vstore: open %s: %w", path, err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("vstore: stat %s: %w", path, err)
	}
	size := info.Size()
	if size == 0 {
		f.Close()
		return nil, fmt.Errorf("vstore: cannot map empty file %s", path)
	}

	data, err := unix.Mmap(int(f.Fd()), 0, int(size), unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("vstore: mmap %s: %w", path, err)
	}

	return &Mapping{file: f, data: data}, nil
}

// Close unmaps the region and closes the backing file.
func (m *Mapping) Close() error {
	var err error
	if m.data != nil {
		if uerr := unix.Munmap(m.data); uerr != nil {
			err = fmt.Errorf("vstore: munmap: %w", uerr)
		}
		m.data = nil
	}
	if m.file != nil {
		if cerr := m.file.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("vstore: close mapped file: %w", cerr)
		}
		m.file = nil
	}
	return err
}

// MapReadOnly memory-maps the full contents of path read-only and hands
// back the raw bytes plus a closer. Used by internal/persist to parse a
// file's header and node records directly out of mapped memory instead of
// through buffered file reads.
func MapReadOnly(path string) ([]byte, func() error, error) {
	m, err := mapFile(path)
	if err != nil {
		return nil, nil, err
	}
	return m.data, m.Close, nil
}

// View opens a read-only Store whose arena is the byte range
// [offset, offset+size) of the memory-mapped file at path. size must equal
// capacity*stride for the given element type/dim/capacity, as computed by
// the persistence layer when it wrote the file.
func View(path string, elem dist.ElementType, dim int, capacity uint32, offset, size int64) (*Store, error) {
	m, err := mapFile(path)
	if err != nil {
		return nil, err
	}
	if offset < 0 || size < 0 || offset+size > int64(len(m.data)) {
		m.Close()
		return nil, fmt.Errorf("vstore: vector arena range [%d,%d) out of bounds for mapped file of size %d",
			offset, offset+size, len(m.data))
	}

	s := &Store{
		elem:     elem,
		dim:      dim,
		stride:   alignUp(elem.Size()*dim, cacheLine),
		capacity: capacity,
		borrowed: make(map[uint32][]byte),
		readOnly: true,
		mapping:  m,
		data:     m.data[offset : offset+size],
	}
	return s, nil
}
