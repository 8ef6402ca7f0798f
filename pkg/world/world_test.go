package world

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/euancatapang/Exploration-to-Bedrock/pkg/format"
)

var (
	stone = Block{Name: "minecraft:stone"}
	stair = Block{Name: "minecraft:oak_stairs", Data: 6}
)

func TestMemoryStore(t *testing.T) {
	m := NewMemoryStore(16)

	_, ok, err := m.Block(0, 0, 0)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, m.SetBlock(-1, 3, 7, stair))
	b, ok, err := m.Block(-1, 3, 7)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, stair, b)
	assert.Equal(t, 1, m.Len())

	require.ErrorIs(t, m.SetBlock(0, 16, 0, stone), ErrOutOfBounds)
	require.ErrorIs(t, m.SetBlock(0, -1, 0, stone), ErrOutOfBounds)
}

func TestSplitNegativeCoordinates(t *testing.T) {
	tests := []struct {
		x, z   int
		key    [2]int
		lx, lz int
	}{
		{0, 0, [2]int{0, 0}, 0, 0},
		{15, 16, [2]int{0, 1}, 15, 0},
		{-1, -16, [2]int{-1, -1}, 15, 0},
		{-17, -512, [2]int{-2, -32}, 15, 0},
	}
	for _, tt := range tests {
		key, lx, lz := split(tt.x, tt.z)
		assert.Equal(t, tt.key, key, "(%d, %d)", tt.x, tt.z)
		assert.Equal(t, tt.lx, lx)
		assert.Equal(t, tt.lz, lz)
	}
}

func TestDiskStorePersists(t *testing.T) {
	dir := t.TempDir()

	err := With(dir, Options{Height: 32}, func(s Store) error {
		for y := 0; y < 32; y++ {
			if err := s.SetBlock(5, y, -3, stone); err != nil {
				return err
			}
		}
		return s.SetBlock(-512, 0, -500, stair)
	})
	require.NoError(t, err)

	entries, err := os.ReadDir(filepath.Join(dir, columnsDir))
	require.NoError(t, err)
	assert.Len(t, entries, 2)

	s, err := Open(dir, Options{Height: 32})
	require.NoError(t, err)
	defer s.Close()

	b, ok, err := s.Block(-512, 0, -500)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, stair, b)

	b, ok, err = s.Block(5, 31, -3)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, stone, b)

	_, ok, err = s.Block(6, 0, -3)
	require.NoError(t, err)
	assert.False(t, ok)

	_, ok, err = s.Block(1000, 0, 1000)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestDiskStoreHeightMismatch(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, With(dir, Options{Height: 32}, func(s Store) error {
		return s.SetBlock(0, 0, 0, stone)
	}))

	s, err := Open(dir, Options{Height: 16})
	require.NoError(t, err)
	defer s.Close()

	_, _, err = s.Block(0, 0, 0)
	require.Error(t, err)
}

func TestDiskStoreRejectsBadHeight(t *testing.T) {
	_, err := Open(t.TempDir(), Options{Height: 300})
	require.ErrorIs(t, err, format.ErrFormat)
}

func TestDiskStoreConcurrentWriters(t *testing.T) {
	s, err := Open(t.TempDir(), Options{Height: 16})
	require.NoError(t, err)

	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for x := 0; x < 16; x++ {
				for z := 0; z < 16; z++ {
					assert.NoError(t, s.SetBlock(w*16+x, w, z, stone))
				}
			}
		}(w)
	}
	wg.Wait()

	n, err := s.Flush()
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())

	require.True(t, errors.Is(s.SetBlock(0, 0, 0, stone), os.ErrClosed))
}

func TestWithClosesOnError(t *testing.T) {
	dir := t.TempDir()
	boom := errors.New("boom")

	err := With(dir, Options{Height: 16}, func(s Store) error {
		if err := s.SetBlock(0, 0, 0, stone); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	// Dirty columns are still flushed
	s, err := Open(dir, Options{Height: 16})
	require.NoError(t, err)
	defer s.Close()
	_, ok, err := s.Block(0, 0, 0)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestColumnRejectsCorruptData(t *testing.T) {
	c := newColumn(16)
	require.NoError(t, c.set(1, 2, 3, stair))
	raw := c.marshal()

	back, err := unmarshalColumn(raw, 16)
	require.NoError(t, err)
	b, ok := back.get(1, 2, 3)
	require.True(t, ok)
	assert.Equal(t, stair, b)

	_, err = unmarshalColumn(raw[:len(raw)-1], 16)
	require.ErrorIs(t, err, errColumnFormat)
	_, err = unmarshalColumn([]byte("nope"), 16)
	require.ErrorIs(t, err, errColumnFormat)
}
