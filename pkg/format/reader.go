package format

import (
	"encoding/binary"
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// MmapFile represents a memory-mapped file.
type MmapFile struct {
	path string
	data []byte
	size int64
}

// OpenMmap opens a file and maps it into memory read-only.
func OpenMmap(path string) (*MmapFile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat file: %w", err)
	}

	size := info.Size()
	if size == 0 {
		return &MmapFile{path: path, data: nil, size: 0}, nil
	}

	data, err := unix.Mmap(int(f.Fd()), 0, int(size), unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("mmap: %w", err)
	}

	return &MmapFile{
		path: path,
		data: data,
		size: size,
	}, nil
}

// Close unmaps the file.
func (m *MmapFile) Close() error {
	if m.data == nil {
		return nil
	}
	data := m.data
	m.data = nil
	if err := unix.Munmap(data); err != nil {
		return fmt.Errorf("munmap: %w", err)
	}
	return nil
}

// Data returns the raw memory-mapped bytes.
func (m *MmapFile) Data() []byte {
	return m.data
}

// Size returns the file size.
func (m *MmapFile) Size() int64 {
	return m.size
}

// ArrayReader provides read access to a columnar file via mmap.
//
// Thread Safety: ArrayReader is safe for concurrent read access from multiple
// goroutines. Close should only be called once, after all reads have completed.
type ArrayReader struct {
	mmap   *MmapFile
	header Header
	data   []byte
}

// OpenArray opens a columnar file.
func OpenArray(path string) (*ArrayReader, error) {
	mmap, err := OpenMmap(path)
	if err != nil {
		return nil, fmt.Errorf("mmap file: %w", err)
	}

	if mmap.Size() < int64(HeaderSize) {
		mmap.Close()
		return nil, ErrInvalidHeader
	}

	header, err := DecodeHeader(mmap.Data()[:HeaderSize])
	if err != nil {
		mmap.Close()
		return nil, fmt.Errorf("decode header: %w", err)
	}

	if header.Magic != MagicNumber {
		mmap.Close()
		return nil, ErrMagicMismatch
	}

	if header.Version != Version {
		mmap.Close()
		return nil, ErrVersionMismatch
	}

	expectedSize := int64(HeaderSize) + int64(header.Count)*int64(header.Width)
	if mmap.Size() < expectedSize {
		mmap.Close()
		return nil, fmt.Errorf("file too small: %d < %d", mmap.Size(), expectedSize)
	}

	return &ArrayReader{
		mmap:   mmap,
		header: header,
		data:   mmap.Data()[HeaderSize:],
	}, nil
}

// Close releases the memory mapping.
func (r *ArrayReader) Close() error {
	return r.mmap.Close()
}

// Count returns the number of elements.
func (r *ArrayReader) Count() uint64 {
	return r.header.Count
}

// Width returns the element width in bytes.
func (r *ArrayReader) Width() uint32 {
	return r.header.Width
}

// GetU64 returns the uint64 value at the given index.
func (r *ArrayReader) GetU64(idx uint64) (uint64, error) {
	if idx >= r.header.Count {
		return 0, ErrBoundsCheck
	}
	if r.header.Width != 8 {
		return 0, fmt.Errorf("width mismatch: expected 8, got %d", r.header.Width)
	}
	offset := idx * 8
	return binary.LittleEndian.Uint64(r.data[offset:]), nil
}

// UnsafeGetU64 returns the value without bounds checking.
//
// WARNING: Passing an idx >= Count() panics. Only use this where the caller
// has already validated the index.
func (r *ArrayReader) UnsafeGetU64(idx uint64) uint64 {
	return binary.LittleEndian.Uint64(r.data[idx*8:])
}

// Record returns the fixed-width record at the given index. The returned
// slice aliases the mapping and is only valid until Close.
func (r *ArrayReader) Record(idx uint64) ([]byte, error) {
	if idx >= r.header.Count {
		return nil, ErrBoundsCheck
	}
	w := uint64(r.header.Width)
	return r.data[idx*w : (idx+1)*w : (idx+1)*w], nil
}
