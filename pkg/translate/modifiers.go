package translate

// Low modifier byte thresholds.
const (
	topSlab         = 0x24
	stairsUpsideMin = 0x24
	gateOpenMin     = 0x22
	trapdoorOpenMin = 0x28
	doorData        = 8
)

type staticKey struct {
	category Category
	low      byte
}

// staticModifiers is an exact (category, low byte) table, consulted before
// the additive rules.
var staticModifiers = map[staticKey]int{
	{CategoryTorch, 0x20}: 5,
	{CategoryTorch, 0x21}: 1,
	{CategoryTorch, 0x22}: 2,
	{CategoryTorch, 0x23}: 3,
	{CategoryTorch, 0x24}: 4,

	{CategoryLadder, 0x20}: 2,
	{CategoryLadder, 0x21}: 3,
	{CategoryLadder, 0x22}: 4,
	{CategoryLadder, 0x23}: 5,

	{CategoryLog, 0x00}: 0,
	{CategoryLog, 0x01}: 4,
	{CategoryLog, 0x02}: 8,
	{CategoryLog, 0x20}: 0,
	{CategoryLog, 0x21}: 4,
	{CategoryLog, 0x22}: 8,
}

// Direction corrections added on top of the base bits. Absent bytes add 0.
var (
	stairsModifiers = map[byte]int{
		0x21: 2, 0x22: 1, 0x23: 3,
		0x26: 2, 0x27: 1, 0x28: 3,
	}

	gateModifiers = map[byte]int{
		0x21: 1, 0x23: 1,
	}

	trapdoorModifiers = map[byte]int{
		0x21: 1, 0x22: 2, 0x23: 3,
		0x25: 1, 0x26: 2, 0x27: 3,
		0x29: 1, 0x2A: 2, 0x2B: 3,
		0x2D: 1, 0x2E: 2, 0x2F: 3,
	}

	trapdoorOnRoof = map[byte]bool{
		0x24: true, 0x25: true, 0x26: true, 0x27: true,
		0x2C: true, 0x2D: true, 0x2E: true, 0x2F: true,
	}
)

// Orientation computes the destination data value for a categorized block.
// ok is false when the category has no rule for low; the caller then uses 0
// and counts an unknown modifier.
func Orientation(c Category, low byte) (data int, ok bool) {
	if v, found := staticModifiers[staticKey{c, low}]; found {
		return v, true
	}

	switch c {
	case CategoryStairs:
		if low >= stairsUpsideMin {
			data = 4
		}
		return data + stairsModifiers[low], true

	case CategoryDoor:
		return doorData, true

	case CategoryGate:
		if low >= gateOpenMin {
			data = 4
		}
		return data + gateModifiers[low], true

	case CategoryTrapdoor:
		if low >= trapdoorOpenMin {
			data = 8
		}
		if trapdoorOnRoof[low] {
			data += 4
		}
		return data + trapdoorModifiers[low], true
	}
	return 0, false
}
