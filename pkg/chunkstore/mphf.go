package chunkstore

import (
	"encoding/binary"
	"fmt"
	"os"

	"github.com/cespare/xxhash/v2"
	"github.com/relab/bbhash"

	"github.com/euancatapang/Exploration-to-Bedrock/pkg/fileutil"
	"github.com/euancatapang/Exploration-to-Bedrock/pkg/format"
)

// Coord is a chunk coordinate in blocks.
type Coord struct {
	X, Y int32
}

// Key packs a coordinate into the 64-bit key stored beside each MPHF slot.
func (c Coord) Key() uint64 {
	return uint64(uint32(c.X))<<32 | uint64(uint32(c.Y))
}

// CoordFromKey unpacks a key built by Coord.Key.
func CoordFromKey(k uint64) Coord {
	return Coord{X: int32(uint32(k >> 32)), Y: int32(uint32(k))}
}

// hashKey computes the MPHF input for a packed coordinate.
func hashKey(k uint64) uint64 {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], k)
	return xxhash.Sum64(buf[:])
}

// buildIndex builds the coordinate MPHF and writes it beside the key and
// position columns. keys[i] is stored at record positions[i].
func buildIndex(tmpDir string, paths indexPaths, keys, positions []uint64) error {
	if len(keys) == 0 {
		return writeEmptyIndex(tmpDir, paths)
	}

	hashes := make([]uint64, len(keys))
	for i, k := range keys {
		hashes[i] = hashKey(k)
	}

	// gamma=2.0 is a good space/time tradeoff
	mph, err := bbhash.New(hashes, bbhash.Gamma(2.0))
	if err != nil {
		return fmt.Errorf("build MPHF: %w", err)
	}

	// BBHash returns 1-indexed values; slot = Find-1.
	slotKeys := make([]uint64, len(keys))
	slotPos := make([]uint64, len(keys))
	for i, k := range keys {
		v := mph.Find(hashes[i])
		if v == 0 {
			return fmt.Errorf("MPHF lookup failed for chunk %v", CoordFromKey(k))
		}
		slotKeys[v-1] = k
		slotPos[v-1] = positions[i]
	}

	data, err := mph.MarshalBinary()
	if err != nil {
		return fmt.Errorf("marshal MPHF: %w", err)
	}
	err = fileutil.WriteTmpThenMove(tmpDir, paths.mph, func(tmpPath string) error {
		return os.WriteFile(tmpPath, data, 0644)
	})
	if err != nil {
		return fmt.Errorf("write MPHF: %w", err)
	}

	if err := writeU64s(paths.keys, slotKeys); err != nil {
		return fmt.Errorf("write keys: %w", err)
	}
	if err := writeU64s(paths.pos, slotPos); err != nil {
		return fmt.Errorf("write positions: %w", err)
	}
	return nil
}

func writeEmptyIndex(tmpDir string, paths indexPaths) error {
	err := fileutil.WriteTmpThenMove(tmpDir, paths.mph, func(tmpPath string) error {
		return os.WriteFile(tmpPath, nil, 0644)
	})
	if err != nil {
		return fmt.Errorf("write empty mph: %w", err)
	}
	if err := writeU64s(paths.keys, nil); err != nil {
		return err
	}
	return writeU64s(paths.pos, nil)
}

func writeU64s(path string, vals []uint64) error {
	w, err := format.NewArrayWriter(path, 8)
	if err != nil {
		return err
	}
	for _, v := range vals {
		if err := w.WriteU64(v); err != nil {
			w.Close()
			return err
		}
	}
	return w.Close()
}

// index provides coordinate lookups against the MPHF.
type index struct {
	mph   *bbhash.BBHash2
	keys  *format.ArrayReader
	pos   *format.ArrayReader
	count uint64
}

func openIndex(paths indexPaths, count uint64) (*index, error) {
	if !fileutil.ColumnFileValid(paths.keys, count, 8) || !fileutil.ColumnFileValid(paths.pos, count, 8) {
		return nil, fmt.Errorf("%w: chunk index does not match %d records", format.ErrInvalidHeader, count)
	}

	keys, err := format.OpenArray(paths.keys)
	if err != nil {
		return nil, fmt.Errorf("open keys: %w", err)
	}
	pos, err := format.OpenArray(paths.pos)
	if err != nil {
		keys.Close()
		return nil, fmt.Errorf("open positions: %w", err)
	}

	idx := &index{keys: keys, pos: pos, count: count}
	if count == 0 {
		return idx, nil
	}

	data, err := os.ReadFile(paths.mph)
	if err != nil {
		idx.Close()
		return nil, fmt.Errorf("read mph file: %w", err)
	}
	idx.mph = &bbhash.BBHash2{}
	if err := idx.mph.UnmarshalBinary(data); err != nil {
		idx.Close()
		return nil, fmt.Errorf("unmarshal MPHF: %w", err)
	}
	return idx, nil
}

// lookup returns the record position of c. The stored key is compared so
// coordinates outside the build set are rejected.
func (i *index) lookup(c Coord) (uint64, bool) {
	if i.count == 0 || i.mph == nil {
		return 0, false
	}
	k := c.Key()
	v := i.mph.Find(hashKey(k))
	if v == 0 || v-1 >= i.count {
		return 0, false
	}
	slot := v - 1
	if i.keys.UnsafeGetU64(slot) != k {
		return 0, false
	}
	return i.pos.UnsafeGetU64(slot), true
}

func (i *index) Close() error {
	var firstErr error
	if i.keys != nil {
		if err := i.keys.Close(); err != nil {
			firstErr = err
		}
	}
	if i.pos != nil {
		if err := i.pos.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
