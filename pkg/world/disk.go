package world

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/klauspost/compress/zstd"

	"github.com/euancatapang/Exploration-to-Bedrock/pkg/fileutil"
	"github.com/euancatapang/Exploration-to-Bedrock/pkg/format"
	"github.com/euancatapang/Exploration-to-Bedrock/pkg/logging"
)

const (
	columnWidth = format.ChunkWidth
	columnsDir  = "columns"
)

// Options configures a disk world.
type Options struct {
	// Height is the world height. Must be a valid world height.
	Height int
	// Level is the zstd level used for column files.
	Level zstd.EncoderLevel
}

// DiskStore persists the world as one zstd-compressed palette file per
// 16x16 column under dir/columns. Columns load lazily and dirty columns are
// written on Flush and Close.
//
// All access is serialized by one mutex, so concurrent translators share a
// single writer.
type DiskStore struct {
	dir    string
	height int

	mu      sync.Mutex
	columns map[[2]int]*column
	enc     *zstd.Encoder
	dec     *zstd.Decoder
	closed  bool
}

var _ Store = (*DiskStore)(nil)

// Open opens or creates a disk world in dir.
func Open(dir string, opts Options) (*DiskStore, error) {
	if err := format.ValidateWorldHeight(opts.Height); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Join(dir, columnsDir), 0755); err != nil {
		return nil, fmt.Errorf("create world dir: %w", err)
	}

	level := opts.Level
	if level == 0 {
		level = zstd.SpeedDefault
	}
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(level))
	if err != nil {
		return nil, fmt.Errorf("create zstd encoder: %w", err)
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		enc.Close()
		return nil, fmt.Errorf("create zstd decoder: %w", err)
	}

	return &DiskStore{
		dir:     dir,
		height:  opts.Height,
		columns: make(map[[2]int]*column),
		enc:     enc,
		dec:     dec,
	}, nil
}

// Height returns the world height.
func (s *DiskStore) Height() int {
	return s.height
}

func floorDiv(v, d int) int {
	q := v / d
	if v%d != 0 && v < 0 {
		q--
	}
	return q
}

func split(x, z int) (key [2]int, lx, lz int) {
	cx := floorDiv(x, columnWidth)
	cz := floorDiv(z, columnWidth)
	return [2]int{cx, cz}, x - cx*columnWidth, z - cz*columnWidth
}

func (s *DiskStore) columnPath(key [2]int) string {
	return filepath.Join(s.dir, columnsDir, fmt.Sprintf("c_%d_%d.zst", key[0]*columnWidth, key[1]*columnWidth))
}

// column returns the loaded column for key. With create false a missing
// column yields nil. Callers hold s.mu.
func (s *DiskStore) column(key [2]int, create bool) (*column, error) {
	if c, ok := s.columns[key]; ok {
		return c, nil
	}

	data, err := os.ReadFile(s.columnPath(key))
	switch {
	case errors.Is(err, os.ErrNotExist):
		if !create {
			return nil, nil
		}
		c := newColumn(s.height)
		s.columns[key] = c
		return c, nil
	case err != nil:
		return nil, fmt.Errorf("read column: %w", err)
	}

	raw, err := s.dec.DecodeAll(data, nil)
	if err != nil {
		return nil, fmt.Errorf("decompress column %v: %w", key, err)
	}
	c, err := unmarshalColumn(raw, s.height)
	if err != nil {
		return nil, fmt.Errorf("column %v: %w", key, err)
	}
	s.columns[key] = c
	return c, nil
}

func (s *DiskStore) Block(x, y, z int) (Block, bool, error) {
	if y < 0 || y >= s.height {
		return Block{}, false, nil
	}
	key, lx, lz := split(x, z)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return Block{}, false, os.ErrClosed
	}
	c, err := s.column(key, false)
	if err != nil || c == nil {
		return Block{}, false, err
	}
	b, ok := c.get(lx, y, lz)
	return b, ok, nil
}

func (s *DiskStore) SetBlock(x, y, z int, b Block) error {
	if y < 0 || y >= s.height {
		return fmt.Errorf("%w: y=%d height=%d", ErrOutOfBounds, y, s.height)
	}
	key, lx, lz := split(x, z)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return os.ErrClosed
	}
	c, err := s.column(key, true)
	if err != nil {
		return err
	}
	return c.set(lx, y, lz, b)
}

// Flush writes every dirty column to disk.
func (s *DiskStore) Flush() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.flushLocked()
}

func (s *DiskStore) flushLocked() (int, error) {
	written := 0
	for key, c := range s.columns {
		if !c.dirty {
			continue
		}
		out := s.enc.EncodeAll(c.marshal(), nil)
		err := fileutil.WriteTmpThenMove(s.dir, s.columnPath(key), func(tmpPath string) error {
			return os.WriteFile(tmpPath, out, 0644)
		})
		if err != nil {
			return written, fmt.Errorf("write column %v: %w", key, err)
		}
		c.dirty = false
		written++
	}
	return written, nil
}

// Close flushes dirty columns and releases the codecs.
func (s *DiskStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true

	written, err := s.flushLocked()
	s.enc.Close()
	s.dec.Close()

	logging.L().Debug().
		Str("dir", s.dir).
		Int("columns_loaded", len(s.columns)).
		Int("columns_written", written).
		Msg("world store closed")
	return err
}
