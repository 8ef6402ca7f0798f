package segment

import (
	"context"
	"fmt"
	"time"

	"github.com/euancatapang/Exploration-to-Bedrock/internal/logctx"
	"github.com/euancatapang/Exploration-to-Bedrock/pkg/format"
)

// SplitOptions configures Split.
type SplitOptions struct {
	// WorldHeight overrides the height stored in the save header when > 0.
	WorldHeight int
}

// SplitResult describes a split save file.
type SplitResult struct {
	Segments    int
	Heads       int
	Bodies      int
	WorldHeight int
	Duration    time.Duration
}

// Split partitions the save file at path into 1024-byte segments, classifies
// each one and puts it into store. A file whose size is not a positive
// multiple of the segment size fails with format.ErrFormat.
func Split(ctx context.Context, path string, store Store, opts SplitOptions) (*SplitResult, error) {
	start := time.Now()
	log := logctx.FromContext(ctx)

	mm, err := format.OpenMmap(path)
	if err != nil {
		return nil, fmt.Errorf("open save file: %w", err)
	}
	defer mm.Close()

	size := mm.Size()
	if size == 0 || size%format.SegmentSize != 0 {
		return nil, fmt.Errorf("%w: size %d of %s is not a multiple of %d bytes",
			format.ErrFormat, size, path, format.SegmentSize)
	}

	data := mm.Data()
	count := int(size / format.SegmentSize)
	result := &SplitResult{Segments: count}

	for i := 0; i < count; i++ {
		if i%256 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}

		raw := data[i*format.SegmentSize : (i+1)*format.SegmentSize]
		seg := Segment{Index: i, Kind: Classify(i, raw), Data: raw}
		switch seg.Kind {
		case KindHead:
			seg.Ordinal = result.Heads
			result.Heads++
		case KindBody:
			seg.Ordinal = result.Bodies
			result.Bodies++
		}

		if err := store.Put(seg); err != nil {
			return nil, fmt.Errorf("store segment %d: %w", i, err)
		}
	}

	if opts.WorldHeight > 0 {
		if err := format.ValidateWorldHeight(opts.WorldHeight); err != nil {
			return nil, err
		}
		result.WorldHeight = opts.WorldHeight
	} else {
		hdr, err := format.DecodeSaveHeader(data[:format.SegmentSize])
		if err != nil {
			return nil, fmt.Errorf("decode save header: %w", err)
		}
		result.WorldHeight = hdr.WorldHeight
	}

	result.Duration = time.Since(start)
	log.Debug().
		Str("path", path).
		Int("segments", result.Segments).
		Int("heads", result.Heads).
		Int("bodies", result.Bodies).
		Int("world_height", result.WorldHeight).
		Msg("split save file")

	return result, nil
}
