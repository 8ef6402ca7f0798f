// Package savegen builds synthetic save files for tests and benchmarks.
package savegen

import (
	"fmt"
	"math/rand"
	"os"

	"github.com/euancatapang/Exploration-to-Bedrock/pkg/format"
)

// DefaultSeed is the default seed for reproducible terrain.
const DefaultSeed = 42

// BedrockID is the block id filling the two lowest layers of generated
// chunks. It keeps every generated payload starting with the LZ4 signature.
const BedrockID = 0x03

// Voxel is one source voxel: block id plus the two modifier bytes.
type Voxel struct {
	ID   byte
	Low  byte
	High byte
}

// VoxelFunc returns the voxel at local (x, y, z).
type VoxelFunc func(x, y, z int) Voxel

// ChunkSpec is one chunk to lay out in a save file. Payload is the
// compressed block exactly as it will be stored.
type ChunkSpec struct {
	X, Y    int32
	Payload []byte
}

// GeneratorConfig configures synthetic terrain.
type GeneratorConfig struct {
	// WorldHeight is the chunk column height. Must be a valid world height.
	WorldHeight int
	// ChunksX and ChunksZ give the grid of chunks to generate.
	ChunksX, ChunksZ int
	// OriginX and OriginZ locate the first chunk, in blocks.
	OriginX, OriginZ int32
	// Palette lists the surface block ids. If empty, only bedrock is used.
	Palette []Voxel
	// Seed for reproducible generation. 0 = use DefaultSeed.
	Seed int64
}

// DefaultConfig returns a small grid of chunks with a mixed palette.
func DefaultConfig(chunksX, chunksZ int) GeneratorConfig {
	return GeneratorConfig{
		WorldHeight: 32,
		ChunksX:     chunksX,
		ChunksZ:     chunksZ,
		Palette: []Voxel{
			{ID: 0x01},
			{ID: 0x02},
			{ID: 0x05, Low: 0x22},
			{ID: 0x0A, High: 0x20},
		},
		Seed: DefaultSeed,
	}
}

// Generator generates synthetic chunk columns.
type Generator struct {
	cfg GeneratorConfig
	rng *rand.Rand
}

// NewGenerator creates a new terrain generator.
func NewGenerator(cfg GeneratorConfig) *Generator {
	seed := cfg.Seed
	if seed == 0 {
		seed = DefaultSeed
	}
	return &Generator{
		cfg: cfg,
		rng: rand.New(rand.NewSource(seed)),
	}
}

// Chunks returns the compressed chunks of the configured grid.
func (g *Generator) Chunks() []ChunkSpec {
	specs := make([]ChunkSpec, 0, g.cfg.ChunksX*g.cfg.ChunksZ)
	for cz := 0; cz < g.cfg.ChunksZ; cz++ {
		for cx := 0; cx < g.cfg.ChunksX; cx++ {
			data := ChunkData(g.cfg.WorldHeight, g.terrain())
			specs = append(specs, ChunkSpec{
				X:       g.cfg.OriginX + int32(cx*format.ChunkWidth),
				Y:       g.cfg.OriginZ + int32(cz*format.ChunkWidth),
				Payload: EncodeRLE(data),
			})
		}
	}
	return specs
}

// Save returns a complete save file for the configured grid.
func (g *Generator) Save() []byte {
	return BuildSave(g.cfg.WorldHeight, g.Chunks())
}

func (g *Generator) terrain() VoxelFunc {
	surface := 2 + g.rng.Intn(g.cfg.WorldHeight-2)
	var fill Voxel
	if len(g.cfg.Palette) > 0 {
		fill = g.cfg.Palette[g.rng.Intn(len(g.cfg.Palette))]
	}
	return func(_, y, _ int) Voxel {
		switch {
		case y < 2:
			return Voxel{ID: BedrockID}
		case y < surface:
			return fill
		default:
			return Voxel{}
		}
	}
}

// ChunkData returns the decompressed form of a chunk: the block array, the
// modifier array and a zeroed trailer.
func ChunkData(height int, fn VoxelFunc) []byte {
	voxels := format.ChunkWidth * height * format.ChunkWidth
	data := make([]byte, voxels*3+format.ChunkTrailerSize)
	for z := 0; z < format.ChunkWidth; z++ {
		for y := 0; y < height; y++ {
			for x := 0; x < format.ChunkWidth; x++ {
				i := z*format.ChunkWidth*height + y*format.ChunkWidth + x
				v := fn(x, y, z)
				data[i] = v.ID
				data[voxels+2*i] = v.Low
				data[voxels+2*i+1] = v.High
			}
		}
	}
	return data
}

// BuildSave lays out a save file: the header, then one head per chunk, then
// every chunk's body segments in order. Bodies are therefore never adjacent
// to their heads, so readers must follow next indexes.
func BuildSave(height int, chunks []ChunkSpec) []byte {
	bodyCounts := make([]int, len(chunks))
	total := 1 + len(chunks)
	for i, c := range chunks {
		bodyCounts[i] = BodyCount(len(c.Payload))
		total += bodyCounts[i]
	}

	out := make([]byte, 0, total*format.SegmentSize)
	out = append(out, format.EncodeSaveHeader(format.SaveHeader{WorldHeight: height})...)

	firstBody := make([]int, len(chunks))
	next := 1 + len(chunks)
	for i, c := range chunks {
		h := format.HeadHeader{
			Next:           format.NoNext,
			X:              c.X,
			Y:              c.Y,
			CompressedSize: uint32(len(c.Payload)),
		}
		if bodyCounts[i] > 0 {
			h.Next = int32(next)
			firstBody[i] = next
			next += bodyCounts[i]
		}
		out = append(out, format.EncodeHead(h, c.Payload)...)
	}

	for i, c := range chunks {
		if bodyCounts[i] == 0 {
			continue
		}
		rest := c.Payload[format.HeadPayloadMax:]
		for b := 0; b < bodyCounts[i]; b++ {
			hdr := format.BodyHeader{
				Next:      int32(firstBody[i] + b + 1),
				Remaining: uint32(len(rest)),
			}
			if b == bodyCounts[i]-1 {
				hdr.Next = format.NoNext
			}
			out = append(out, format.EncodeBody(hdr, rest)...)
			if len(rest) > format.BodyPayloadMax {
				rest = rest[format.BodyPayloadMax:]
			}
		}
	}
	return out
}

// BodyCount returns the number of body segments a payload of n bytes needs.
func BodyCount(n int) int {
	if n <= format.HeadPayloadMax {
		return 0
	}
	return (n - format.HeadPayloadMax + format.BodyPayloadMax - 1) / format.BodyPayloadMax
}

// WriteFile writes a save file to path.
func WriteFile(path string, data []byte) error {
	if len(data)%format.SegmentSize != 0 {
		return fmt.Errorf("save data is %d bytes, not a multiple of %d", len(data), format.SegmentSize)
	}
	return os.WriteFile(path, data, 0o644)
}
