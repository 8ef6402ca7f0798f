// Package world is the destination block store written by the translator.
package world

import (
	"errors"
	"fmt"
	"sync"
)

// ErrOutOfBounds indicates a y coordinate outside the world height.
var ErrOutOfBounds = errors.New("block position out of bounds")

// Block is a destination block: a namespaced name and a data value.
type Block struct {
	Name string
	Data uint16
}

func (b Block) String() string {
	return fmt.Sprintf("%s:%d", b.Name, b.Data)
}

// Reader reads blocks. ok is false when nothing was ever set at the position.
type Reader interface {
	Block(x, y, z int) (Block, bool, error)
}

// Writer sets blocks.
type Writer interface {
	SetBlock(x, y, z int, b Block) error
}

// Store is a world open for reading and writing.
type Store interface {
	Reader
	Writer
	Close() error
}

type pos struct {
	x, y, z int
}

// MemoryStore keeps every block in a map. It is safe for concurrent use.
type MemoryStore struct {
	mu     sync.RWMutex
	height int
	blocks map[pos]Block
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty world. height <= 0 disables the y bound.
func NewMemoryStore(height int) *MemoryStore {
	return &MemoryStore{height: height, blocks: make(map[pos]Block)}
}

func (m *MemoryStore) Block(x, y, z int) (Block, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.blocks[pos{x, y, z}]
	return b, ok, nil
}

func (m *MemoryStore) SetBlock(x, y, z int, b Block) error {
	if m.height > 0 && (y < 0 || y >= m.height) {
		return fmt.Errorf("%w: y=%d height=%d", ErrOutOfBounds, y, m.height)
	}
	m.mu.Lock()
	m.blocks[pos{x, y, z}] = b
	m.mu.Unlock()
	return nil
}

// Len returns the number of blocks set.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.blocks)
}

func (m *MemoryStore) Close() error {
	return nil
}

// With opens the disk world in dir, runs fn and always closes the store.
// A close error is returned when fn succeeded.
func With(dir string, opts Options, fn func(Store) error) (err error) {
	s, err := Open(dir, opts)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := s.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	return fn(s)
}
