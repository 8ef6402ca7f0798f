package translate

import "sync/atomic"

// ChunkStats counts the outcome of translating one chunk.
type ChunkStats struct {
	// Voxels is every voxel walked, mapped or not.
	Voxels int64
	// Placed is the number of voxels written to the world.
	Placed           int64
	UnknownBlocks    int64
	UnknownModifiers int64
}

// Summary is a point-in-time copy of the run counters. Only chunks that
// translated completely are included.
type Summary struct {
	ChunksProcessed int64
	// VoxelsProcessed is 16*height*16 per processed chunk.
	VoxelsProcessed  int64
	BlocksPlaced     int64
	UnknownBlocks    int64
	UnknownModifiers int64
}

// Counters accumulates run-scoped translation counts. Safe for concurrent use.
type Counters struct {
	chunks           atomic.Int64
	voxels           atomic.Int64
	placed           atomic.Int64
	unknownBlocks    atomic.Int64
	unknownModifiers atomic.Int64
}

func (c *Counters) add(s ChunkStats) {
	c.chunks.Add(1)
	c.voxels.Add(s.Voxels)
	c.placed.Add(s.Placed)
	c.unknownBlocks.Add(s.UnknownBlocks)
	c.unknownModifiers.Add(s.UnknownModifiers)
}

// Snapshot returns the current counts.
func (c *Counters) Snapshot() Summary {
	return Summary{
		ChunksProcessed:  c.chunks.Load(),
		VoxelsProcessed:  c.voxels.Load(),
		BlocksPlaced:     c.placed.Load(),
		UnknownBlocks:    c.unknownBlocks.Load(),
		UnknownModifiers: c.unknownModifiers.Load(),
	}
}
