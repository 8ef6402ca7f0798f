// Package translate maps source block ids and modifiers to destination blocks.
package translate

import (
	"context"
	"fmt"

	"github.com/euancatapang/Exploration-to-Bedrock/internal/logctx"
	"github.com/euancatapang/Exploration-to-Bedrock/pkg/decompress"
	"github.com/euancatapang/Exploration-to-Bedrock/pkg/format"
	"github.com/euancatapang/Exploration-to-Bedrock/pkg/world"
)

// High modifier byte sentinels.
const (
	highWater = 0x20
	highLava  = 0x03
)

var (
	Water = world.Block{Name: "minecraft:water"}
	Lava  = world.Block{Name: "minecraft:lava"}
)

const namespace = "minecraft:"

// Resolution is the outcome for one voxel.
type Resolution struct {
	Block world.Block
	// Place is false when the voxel has no destination and is skipped.
	Place bool
	// UnknownBlock is set when Block is UnknownBlock.
	UnknownBlock bool
	// UnknownModifier is set when the category had no rule for the low byte.
	UnknownModifier bool
}

// Translator resolves voxels against a fixed slab table.
type Translator struct {
	slabs    SlabTable
	counters *Counters
}

// New creates a translator. The slab table is not modified.
func New(slabs SlabTable) *Translator {
	return &Translator{slabs: slabs, counters: &Counters{}}
}

// Counters returns the run counters updated by TranslateChunk.
func (t *Translator) Counters() *Counters {
	return t.counters
}

// Resolve maps one voxel. It is defined for every input.
func (t *Translator) Resolve(id, low, high byte) Resolution {
	m := Lookup(id)
	if m.Kind == NoMapping {
		return Resolution{}
	}

	switch high {
	case highWater:
		return Resolution{Block: Water, Place: true}
	case highLava:
		return Resolution{Block: Lava, Place: true}
	}

	var r Resolution
	switch {
	case m.Kind == Categorized && m.Category == CategorySlab:
		if low == topSlab {
			r.Block = t.slabs.Top(m.Name)
		} else {
			r.Block = world.Block{Name: namespace + m.Name}
		}

	case m.Kind == Categorized:
		data, ok := Orientation(m.Category, low)
		r.UnknownModifier = !ok
		r.Block = world.Block{Name: namespace + m.Name, Data: uint16(data)}

	default:
		r.Block = world.Block{Name: namespace + m.Name}
	}

	r.Place = true
	r.UnknownBlock = r.Block.Name == UnknownBlock.Name
	return r
}

// TranslateChunk places every mapped voxel of c into w at
// (x+c.X, y, z+c.Y), walking z, then y, then x.
//
// A write failure stops the chunk and is returned as a *format.ChunkError
// with the partial stats. Blocks already written stay in the world, but a
// chunk that does not finish adds nothing to the run counters.
func (t *Translator) TranslateChunk(ctx context.Context, c *decompress.Chunk, w world.Writer) (ChunkStats, error) {
	var stats ChunkStats

	for z := 0; z < format.ChunkWidth; z++ {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		for y := 0; y < c.Height; y++ {
			for x := 0; x < format.ChunkWidth; x++ {
				i := decompress.VoxelIndex(c.Height, x, y, z)
				low, high := c.Modifier(i)

				r := t.Resolve(c.Block(i), low, high)
				stats.Voxels++
				if r.UnknownModifier {
					stats.UnknownModifiers++
				}
				if !r.Place {
					continue
				}

				if err := w.SetBlock(x+int(c.X), y, z+int(c.Y), r.Block); err != nil {
					return stats, &format.ChunkError{
						X:     c.X,
						Y:     c.Y,
						Stage: format.StageTranslate,
						Err:   fmt.Errorf("set block (%d, %d, %d): %w", x+int(c.X), y, z+int(c.Y), err),
					}
				}
				stats.Placed++
				if r.UnknownBlock {
					stats.UnknownBlocks++
				}
			}
		}
	}

	t.counters.add(stats)

	if stats.UnknownModifiers > 0 {
		log := logctx.FromContext(ctx)
		log.Debug().
			Int32("chunk_x", c.X).
			Int32("chunk_y", c.Y).
			Int64("unknown_modifiers", stats.UnknownModifiers).
			Msg("unknown block modifiers")
	}
	return stats, nil
}
