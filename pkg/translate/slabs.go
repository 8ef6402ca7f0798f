package translate

import (
	"context"
	"fmt"

	"github.com/euancatapang/Exploration-to-Bedrock/internal/logctx"
	"github.com/euancatapang/Exploration-to-Bedrock/pkg/world"
)

// Reference blocks for top slabs sit at (SlabReferenceX, 0, SlabReferenceZ+k)
// in the template world, one per slab material.
const (
	SlabReferenceX = -512
	SlabReferenceZ = -512
)

// UnknownBlock is placed where no destination block can be determined.
var UnknownBlock = world.Block{Name: "minecraft:unknown"}

// staticTopSlabs carry their top-half state as a plain data value.
var staticTopSlabs = map[string]world.Block{
	"oak_slab":          {Name: "minecraft:oak_slab", Data: 8},
	"smooth_stone_slab": {Name: "minecraft:smooth_stone_slab", Data: 8},
}

// slabReferences gives the z offset of each slab's reference block.
var slabReferences = map[string]int{
	"normal_stone_slab":      1,
	"andesite_slab":          2,
	"cobblestone_slab":       3,
	"brick_slab":             6,
	"mossy_cobblestone_slab": 7,
	"smooth_sandstone_slab":  8,
	"sandstone_slab":         9,
	"stone_brick_slab":       10,
	"birch_slab":             11,
	"jungle_slab":            12,
	"spruce_slab":            13,
}

// SlabTable maps a slab name to its top-half destination block. It is built
// once before translation and never modified.
type SlabTable struct {
	top map[string]world.Block
}

// StaticSlabs returns a table holding only the slabs that need no
// reference world.
func StaticSlabs() SlabTable {
	top := make(map[string]world.Block, len(staticTopSlabs))
	for name, b := range staticTopSlabs {
		top[name] = b
	}
	return SlabTable{top: top}
}

// DiscoverSlabs reads the reference blocks from a template world. A missing
// reference resolves its slab to UnknownBlock.
func DiscoverSlabs(ctx context.Context, r world.Reader) (SlabTable, error) {
	log := logctx.FromContext(ctx)
	t := StaticSlabs()

	missing := 0
	for name, k := range slabReferences {
		x, z := SlabReferenceX, SlabReferenceZ+k
		b, ok, err := r.Block(x, 0, z)
		if err != nil {
			return SlabTable{}, fmt.Errorf("read slab reference %s at (%d, 0, %d): %w", name, x, z, err)
		}
		if !ok {
			log.Warn().Str("slab", name).Int("x", x).Int("z", z).Msg("slab reference block missing")
			b = UnknownBlock
			missing++
		}
		t.top[name] = b
	}

	log.Debug().Int("slabs", len(t.top)).Int("missing", missing).Msg("slab table ready")
	return t, nil
}

// Top returns the top-half block for a slab, or UnknownBlock.
func (t SlabTable) Top(name string) world.Block {
	if b, ok := t.top[name]; ok {
		return b
	}
	return UnknownBlock
}

// Len returns the number of known slabs.
func (t SlabTable) Len() int {
	return len(t.top)
}

// ReferencePositions returns where each dynamically discovered slab is read
// from, keyed by slab name.
func ReferencePositions() map[string][3]int {
	out := make(map[string][3]int, len(slabReferences))
	for name, k := range slabReferences {
		out[name] = [3]int{SlabReferenceX, 0, SlabReferenceZ + k}
	}
	return out
}
