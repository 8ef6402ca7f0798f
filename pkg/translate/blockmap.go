package translate

// Category selects how a block's low modifier byte becomes an orientation.
type Category uint8

const (
	CategoryNone Category = iota
	CategorySlab
	CategoryStairs
	CategoryDoor
	CategoryGate
	CategoryTrapdoor
	CategoryTorch
	CategoryLadder
	CategoryLog
)

var categoryNames = [...]string{
	CategoryNone:     "none",
	CategorySlab:     "slab",
	CategoryStairs:   "stairs",
	CategoryDoor:     "door",
	CategoryGate:     "gate",
	CategoryTrapdoor: "trapdoor",
	CategoryTorch:    "torch",
	CategoryLadder:   "ladder",
	CategoryLog:      "log",
}

func (c Category) String() string {
	if int(c) < len(categoryNames) {
		return categoryNames[c]
	}
	return "unknown"
}

// MappingKind tags a Mapping.
type MappingKind uint8

const (
	// NoMapping means the source block has no destination and is skipped.
	NoMapping MappingKind = iota
	// Direct maps to a bare destination block with data 0.
	Direct
	// Categorized maps to a destination block whose data comes from the
	// modifier rules of its category.
	Categorized
)

// Mapping is the destination of one source block id.
type Mapping struct {
	Kind     MappingKind
	Name     string
	Category Category
}

func direct(name string) Mapping {
	return Mapping{Kind: Direct, Name: name}
}

func categorized(name string, c Category) Mapping {
	return Mapping{Kind: Categorized, Name: name, Category: c}
}

// Lookup returns the mapping for a source block id. Ids absent from the
// table map to NoMapping.
func Lookup(id byte) Mapping {
	return blockTable[id]
}

// blockTable is indexed by source block id. Air and ids without an
// equivalent are left as the zero Mapping (NoMapping). Ids mapped to
// "unknown" exist in the source game but have no destination block.
var blockTable = [256]Mapping{
	0x01: direct("dirt"),
	0x02: direct("grass_block"),
	0x03: direct("bedrock"),
	0x04: direct("stone"),
	0x05: direct("oak_planks"),
	0x06: direct("cobblestone"),
	0x07: direct("sand"),
	0x08: direct("gravel"),
	0x09: categorized("oak_log", CategoryLog),
	0x0A: direct("oak_leaves"),
	0x0B: direct("glass"),
	0x0C: direct("bricks"),
	0x0D: direct("sandstone"),
	0x0E: direct("stone_bricks"),
	0x0F: direct("mossy_cobblestone"),
	0x10: direct("andesite"),
	0x11: direct("birch_planks"),
	0x12: direct("jungle_planks"),
	0x13: direct("spruce_planks"),
	0x14: direct("snow_block"),
	0x15: direct("ice"),
	0x16: direct("clay"),
	0x17: direct("obsidian"),
	0x18: direct("coal_ore"),
	0x19: direct("iron_ore"),
	0x1A: direct("gold_ore"),
	0x1B: direct("diamond_ore"),
	0x1C: direct("bookshelf"),
	0x1D: direct("crafting_table"),
	0x1E: direct("furnace"),
	0x1F: direct("glowstone"),

	0x20: categorized("torch", CategoryTorch),
	0x21: categorized("ladder", CategoryLadder),
	0x22: categorized("wooden_door", CategoryDoor),
	0x23: categorized("iron_door", CategoryDoor),
	0x24: categorized("fence_gate", CategoryGate),
	0x25: categorized("trapdoor", CategoryTrapdoor),
	0x26: categorized("oak_stairs", CategoryStairs),
	0x27: categorized("stone_stairs", CategoryStairs),
	0x28: categorized("brick_stairs", CategoryStairs),
	0x29: categorized("stone_brick_stairs", CategoryStairs),
	0x2A: categorized("sandstone_stairs", CategoryStairs),

	0x2B: categorized("oak_slab", CategorySlab),
	0x2C: categorized("smooth_stone_slab", CategorySlab),
	0x2D: categorized("normal_stone_slab", CategorySlab),
	0x2E: categorized("andesite_slab", CategorySlab),
	0x2F: categorized("cobblestone_slab", CategorySlab),
	0x30: categorized("brick_slab", CategorySlab),
	0x31: categorized("mossy_cobblestone_slab", CategorySlab),
	0x32: categorized("smooth_sandstone_slab", CategorySlab),
	0x33: categorized("sandstone_slab", CategorySlab),
	0x34: categorized("stone_brick_slab", CategorySlab),
	0x35: categorized("birch_slab", CategorySlab),
	0x36: categorized("jungle_slab", CategorySlab),
	0x37: categorized("spruce_slab", CategorySlab),

	0x38: categorized("birch_log", CategoryLog),
	0x39: categorized("spruce_log", CategoryLog),
	0x3A: direct("white_wool"),
	0x3B: direct("red_wool"),
	0x3C: direct("oak_fence"),
	0x3D: direct("cactus"),
	0x3E: direct("pumpkin"),
	0x3F: direct("tnt"),
	0x40: direct("unknown"),
	0x41: direct("unknown"),
	0x42: categorized("birch_door", CategoryDoor),
	0x43: categorized("spruce_fence_gate", CategoryGate),
	0x44: categorized("iron_trapdoor", CategoryTrapdoor),
	0x45: categorized("spruce_stairs", CategoryStairs),
	0x46: direct("bed"),
	0x47: direct("chest"),
}
