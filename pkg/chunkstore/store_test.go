package chunkstore

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/euancatapang/Exploration-to-Bedrock/pkg/decompress"
	"github.com/euancatapang/Exploration-to-Bedrock/pkg/format"
	"github.com/euancatapang/Exploration-to-Bedrock/pkg/savegen"
)

const testHeight = 16

func testChunk(x, y int32, fill byte) *decompress.Chunk {
	data := savegen.ChunkData(testHeight, func(_, _, _ int) savegen.Voxel {
		return savegen.Voxel{ID: fill, Low: fill}
	})
	return &decompress.Chunk{X: x, Y: y, Height: testHeight, Data: data}
}

func writeStore(t *testing.T, dir string, chunks ...*decompress.Chunk) {
	t.Helper()
	w, err := NewWriter(dir, testHeight)
	require.NoError(t, err)
	for _, c := range chunks {
		require.NoError(t, w.Add(c))
	}
	require.NoError(t, w.Close())
}

func TestCoordKey(t *testing.T) {
	for _, c := range []Coord{{0, 0}, {-16, 32}, {-512, -512}, {1 << 30, -(1 << 30)}} {
		assert.Equal(t, c, CoordFromKey(c.Key()))
	}
	assert.NotEqual(t, Coord{16, 0}.Key(), Coord{0, 16}.Key())
}

func TestStoreRoundTrip(t *testing.T) {
	dir := t.TempDir()

	var chunks []*decompress.Chunk
	for i := int32(0); i < 40; i++ {
		chunks = append(chunks, testChunk((i%8-4)*16, (i/8-2)*16, byte(i)))
	}
	writeStore(t, dir, chunks...)

	r, err := Open(dir)
	require.NoError(t, err)
	defer r.Close()

	assert.Equal(t, testHeight, r.Height())
	assert.Equal(t, len(chunks), r.Len())

	coords := r.Coords()
	require.Len(t, coords, len(chunks))
	for i, c := range chunks {
		assert.Equal(t, Coord{c.X, c.Y}, coords[i])

		got, ok, err := r.Get(c.X, c.Y)
		require.NoError(t, err)
		require.True(t, ok, "chunk (%d, %d)", c.X, c.Y)
		assert.Equal(t, c.Data, got.Data)
		assert.Equal(t, testHeight, got.Height)
	}

	_, ok, err := r.Get(4096, 4096)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStoreDuplicateCoordKeepsLatest(t *testing.T) {
	dir := t.TempDir()
	writeStore(t, dir, testChunk(0, 0, 1), testChunk(16, 0, 2), testChunk(0, 0, 3))

	r, err := Open(dir)
	require.NoError(t, err)
	defer r.Close()

	assert.Equal(t, []Coord{{0, 0}, {16, 0}}, r.Coords())
	got, ok, err := r.Get(0, 0)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, byte(3), got.Block(0))
}

func TestStoreEmpty(t *testing.T) {
	dir := t.TempDir()
	writeStore(t, dir)

	r, err := Open(dir)
	require.NoError(t, err)
	defer r.Close()

	assert.Zero(t, r.Len())
	assert.Empty(t, r.Coords())
	_, ok, err := r.Get(0, 0)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestWriterRejectsWrongHeight(t *testing.T) {
	w, err := NewWriter(t.TempDir(), testHeight)
	require.NoError(t, err)
	defer w.Close()

	c := testChunk(0, 0, 1)
	c.Height = 32
	require.ErrorIs(t, w.Add(c), ErrHeightMismatch)
}

func TestNewWriterRejectsBadHeight(t *testing.T) {
	_, err := NewWriter(t.TempDir(), 24)
	require.ErrorIs(t, err, format.ErrFormat)
}

func TestOpenRejectsTruncatedIndex(t *testing.T) {
	dir := t.TempDir()
	writeStore(t, dir, testChunk(0, 0, 1), testChunk(16, 16, 2))

	require.NoError(t, os.Truncate(filepath.Join(dir, "chunks_pos.u64"), format.HeaderSize+8))
	_, err := Open(dir)
	require.ErrorIs(t, err, format.ErrInvalidHeader)
}
