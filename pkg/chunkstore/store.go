// Package chunkstore persists decompressed chunks in a columnar record file
// with a minimal-perfect-hash coordinate index.
//
// Directory layout:
//
//	chunks.bin        fixed-width records, one decompressed chunk each
//	chunks_keys.u64   packed coordinate per MPHF slot
//	chunks_pos.u64    record position per MPHF slot
//	chunks_order.u64  packed coordinates in insertion order
//	chunks.mph        serialized MPHF
package chunkstore

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/euancatapang/Exploration-to-Bedrock/pkg/decompress"
	"github.com/euancatapang/Exploration-to-Bedrock/pkg/format"
)

// ErrHeightMismatch indicates a chunk whose size does not match the store.
var ErrHeightMismatch = errors.New("chunk height does not match store")

type indexPaths struct {
	records string
	keys    string
	pos     string
	order   string
	mph     string
}

func pathsFor(dir string) indexPaths {
	return indexPaths{
		records: filepath.Join(dir, "chunks.bin"),
		keys:    filepath.Join(dir, "chunks_keys.u64"),
		pos:     filepath.Join(dir, "chunks_pos.u64"),
		order:   filepath.Join(dir, "chunks_order.u64"),
		mph:     filepath.Join(dir, "chunks.mph"),
	}
}

// Writer appends decompressed chunks and builds the index on Close.
//
// A coordinate written twice keeps its first position in Coords order but
// resolves to the latest record.
type Writer struct {
	dir     string
	height  int
	paths   indexPaths
	records *format.ArrayWriter
	pos     map[uint64]uint64
	order   []uint64
	closed  bool
}

// NewWriter creates a chunk store in dir for chunks of the given world height.
func NewWriter(dir string, height int) (*Writer, error) {
	if err := format.ValidateWorldHeight(height); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create chunk store dir: %w", err)
	}

	paths := pathsFor(dir)
	records, err := format.NewArrayWriter(paths.records, uint32(decompress.ChunkSize(height)))
	if err != nil {
		return nil, fmt.Errorf("create chunk records: %w", err)
	}

	return &Writer{
		dir:     dir,
		height:  height,
		paths:   paths,
		records: records,
		pos:     make(map[uint64]uint64),
	}, nil
}

// Add appends one chunk.
func (w *Writer) Add(c *decompress.Chunk) error {
	if c.Height != w.height || len(c.Data) != decompress.ChunkSize(w.height) {
		return fmt.Errorf("%w: chunk (%d, %d) has height %d, store %d", ErrHeightMismatch, c.X, c.Y, c.Height, w.height)
	}

	idx := w.records.Count()
	if err := w.records.WriteRecord(c.Data); err != nil {
		return fmt.Errorf("write chunk (%d, %d): %w", c.X, c.Y, err)
	}

	k := Coord{X: c.X, Y: c.Y}.Key()
	if _, seen := w.pos[k]; !seen {
		w.order = append(w.order, k)
	}
	w.pos[k] = idx
	return nil
}

// Count returns the number of distinct coordinates written.
func (w *Writer) Count() int {
	return len(w.order)
}

// Close flushes the records and writes the coordinate index.
func (w *Writer) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true

	if err := w.records.Close(); err != nil {
		return fmt.Errorf("close chunk records: %w", err)
	}

	positions := make([]uint64, len(w.order))
	for i, k := range w.order {
		positions[i] = w.pos[k]
	}

	if err := writeU64s(w.paths.order, w.order); err != nil {
		return fmt.Errorf("write order: %w", err)
	}
	return buildIndex(w.dir, w.paths, w.order, positions)
}

// Reader serves chunks from a closed store.
//
// Thread Safety: Reader is safe for concurrent Get calls. Chunk data returned
// by Get aliases the mapping and is only valid until Close.
type Reader struct {
	height  int
	records *format.ArrayReader
	order   *format.ArrayReader
	idx     *index
}

// Open opens a chunk store written by Writer.
func Open(dir string) (*Reader, error) {
	paths := pathsFor(dir)

	records, err := format.OpenArray(paths.records)
	if err != nil {
		return nil, fmt.Errorf("open chunk records: %w", err)
	}

	height, err := heightFromWidth(int(records.Width()))
	if err != nil {
		records.Close()
		return nil, err
	}

	order, err := format.OpenArray(paths.order)
	if err != nil {
		records.Close()
		return nil, fmt.Errorf("open order: %w", err)
	}

	idx, err := openIndex(paths, order.Count())
	if err != nil {
		records.Close()
		order.Close()
		return nil, err
	}

	return &Reader{height: height, records: records, order: order, idx: idx}, nil
}

func heightFromWidth(width int) (int, error) {
	voxels := (width - format.ChunkTrailerSize) / 3
	height := voxels / (format.ChunkWidth * format.ChunkWidth)
	if decompress.ChunkSize(height) != width {
		return 0, fmt.Errorf("%w: record width %d is not a chunk size", format.ErrInvalidHeader, width)
	}
	if err := format.ValidateWorldHeight(height); err != nil {
		return 0, err
	}
	return height, nil
}

// Height returns the world height of the stored chunks.
func (r *Reader) Height() int {
	return r.height
}

// Len returns the number of distinct chunks.
func (r *Reader) Len() int {
	return int(r.order.Count())
}

// Get returns the chunk at (x, y).
func (r *Reader) Get(x, y int32) (*decompress.Chunk, bool, error) {
	pos, ok := r.idx.lookup(Coord{X: x, Y: y})
	if !ok {
		return nil, false, nil
	}
	data, err := r.records.Record(pos)
	if err != nil {
		return nil, false, fmt.Errorf("read chunk (%d, %d): %w", x, y, err)
	}
	return &decompress.Chunk{X: x, Y: y, Height: r.height, Data: data}, true, nil
}

// Coords returns the stored coordinates in the order they were first written.
func (r *Reader) Coords() []Coord {
	n := r.order.Count()
	out := make([]Coord, n)
	for i := uint64(0); i < n; i++ {
		out[i] = CoordFromKey(r.order.UnsafeGetU64(i))
	}
	return out
}

// Close releases the mappings.
func (r *Reader) Close() error {
	var firstErr error
	for _, c := range []interface{ Close() error }{r.records, r.order, r.idx} {
		if err := c.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
