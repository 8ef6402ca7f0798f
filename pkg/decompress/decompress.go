// Package decompress turns reconstructed chunk payloads into raw voxel data.
package decompress

import (
	"fmt"

	"github.com/euancatapang/Exploration-to-Bedrock/pkg/chunk"
	"github.com/euancatapang/Exploration-to-Bedrock/pkg/format"
)

// ChunkSize returns the exact decompressed size of a chunk for a world of the
// given height: a block array, a two-byte modifier per block and a trailer.
func ChunkSize(height int) int {
	return VoxelCount(height)*3 + format.ChunkTrailerSize
}

// VoxelCount returns the number of voxels in a chunk column.
func VoxelCount(height int) int {
	return format.ChunkWidth * height * format.ChunkWidth
}

// Chunk is a decompressed chunk.
//
// Data holds VoxelCount block ids followed by VoxelCount little-endian
// modifiers and the trailer.
type Chunk struct {
	X, Y   int32
	Height int
	Data   []byte
}

// VoxelIndex returns the index of the voxel at local (x, y, z): z-major,
// then y, then x.
func VoxelIndex(height, x, y, z int) int {
	return z*format.ChunkWidth*height + y*format.ChunkWidth + x
}

// Block returns the source block id at voxel index i.
func (c *Chunk) Block(i int) byte {
	return c.Data[i]
}

// Modifier returns the low and high modifier bytes at voxel index i.
func (c *Chunk) Modifier(i int) (low, high byte) {
	off := VoxelCount(c.Height) + 2*i
	return c.Data[off], c.Data[off+1]
}

// Decompressor decompresses payloads to a fixed chunk size.
type Decompressor struct {
	codec  Codec
	height int
	size   int
}

// New creates a decompressor for a world of the given height. The chunk
// size is computed once and shared by every chunk of the run.
func New(codec Codec, height int) (*Decompressor, error) {
	if err := format.ValidateWorldHeight(height); err != nil {
		return nil, err
	}
	if codec == nil {
		codec = LZ4Block{}
	}
	return &Decompressor{codec: codec, height: height, size: ChunkSize(height)}, nil
}

// Size returns the exact decompressed chunk size.
func (d *Decompressor) Size() int {
	return d.size
}

// Height returns the world height.
func (d *Decompressor) Height() int {
	return d.height
}

// Decompress decodes one payload. Any failure, including a decoded length
// other than Size, is a *format.ChunkError wrapping format.ErrDecompression.
func (d *Decompressor) Decompress(p chunk.Payload) (*Chunk, error) {
	data, err := d.codec.Decompress(p.Data, d.size)
	if err == nil && len(data) != d.size {
		err = fmt.Errorf("codec returned %d bytes, want %d", len(data), d.size)
	}
	if err != nil {
		return nil, &format.ChunkError{
			X:     p.X,
			Y:     p.Y,
			Stage: format.StageDecompress,
			Err:   fmt.Errorf("%w: %v", format.ErrDecompression, err),
		}
	}
	return &Chunk{X: p.X, Y: p.Y, Height: d.height, Data: data}, nil
}
