// Package chunk reassembles compressed chunk payloads by following the
// head/body segment chains of a split save file.
package chunk

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/euancatapang/Exploration-to-Bedrock/internal/logctx"
	"github.com/euancatapang/Exploration-to-Bedrock/pkg/format"
	"github.com/euancatapang/Exploration-to-Bedrock/pkg/segment"
)

// Payload is the compressed data of one chunk.
type Payload struct {
	X, Y int32
	// CompressedSize is the size declared by the head segment.
	CompressedSize uint32
	Data           []byte
}

// Result holds reconstructed payloads and the chunks that had to be skipped.
type Result struct {
	Payloads []Payload
	Skipped  []*format.ChunkError
	Duration time.Duration
}

// Reconstructor follows segment chains in a store.
type Reconstructor struct {
	store segment.Store
}

// NewReconstructor creates a reconstructor reading from store.
func NewReconstructor(store segment.Store) *Reconstructor {
	return &Reconstructor{store: store}
}

// Reconstruct rebuilds the payload of every head segment. Broken chains are
// reported in Result.Skipped and do not stop the run. A store without heads
// fails with format.ErrNoChunks.
func (r *Reconstructor) Reconstruct(ctx context.Context) (*Result, error) {
	start := time.Now()
	log := logctx.FromContext(ctx)

	heads, err := r.store.Heads()
	if err != nil {
		return nil, fmt.Errorf("list heads: %w", err)
	}
	if len(heads) == 0 {
		return nil, format.ErrNoChunks
	}

	log.Info().Int("chunks", len(heads)).Msg("found chunk heads")

	result := &Result{Payloads: make([]Payload, 0, len(heads))}
	for _, head := range heads {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		p, err := r.Payload(head)
		if err != nil {
			var ce *format.ChunkError
			if !errors.As(err, &ce) {
				return nil, err
			}
			log.Warn().
				Int32("chunk_x", ce.X).
				Int32("chunk_y", ce.Y).
				Int("head_index", head.Index).
				Err(ce.Err).
				Msg("skipping chunk")
			result.Skipped = append(result.Skipped, ce)
			continue
		}
		result.Payloads = append(result.Payloads, p)
	}

	result.Duration = time.Since(start)
	return result, nil
}

// Payload assembles the compressed payload that starts at head.
//
// The chain is walked through store.At by file index. It is bounded by the
// number of stored segments so a cyclic chain fails with
// format.ErrCorruptChain instead of looping.
func (r *Reconstructor) Payload(head segment.Segment) (Payload, error) {
	h, err := format.DecodeHead(head.Data)
	if err != nil {
		return Payload{}, fmt.Errorf("decode head %d: %w", head.Index, err)
	}

	fail := func(err error) (Payload, error) {
		return Payload{}, &format.ChunkError{X: h.X, Y: h.Y, Stage: format.StageReconstruct, Err: err}
	}

	// The declared size is untrusted; no chain can be longer than the store.
	maxHops := r.store.Len()
	limit := uint64(format.HeadPayloadMax) + uint64(maxHops)*format.BodyPayloadMax
	data := make([]byte, 0, min(uint64(h.CompressedSize), limit))
	data = append(data, format.HeadPayload(head.Data, h)...)

	next := h.Next
	for hops := 0; next != format.NoNext; hops++ {
		if hops >= maxHops {
			return fail(fmt.Errorf("%w: more than %d hops from segment %d", format.ErrCorruptChain, maxHops, head.Index))
		}

		body, err := r.store.At(int(next))
		if errors.Is(err, segment.ErrNotFound) {
			return fail(fmt.Errorf("%w: index %d", format.ErrMissingSegment, next))
		}
		if err != nil {
			return Payload{}, fmt.Errorf("read segment %d: %w", next, err)
		}
		if body.Kind != segment.KindBody {
			return fail(fmt.Errorf("%w: index %d is a %s segment", format.ErrMissingSegment, next, body.Kind))
		}

		b, err := format.DecodeBody(body.Data)
		if err != nil {
			return fail(fmt.Errorf("decode body %d: %w", next, err))
		}
		data = append(data, format.BodyPayload(body.Data, b)...)
		next = b.Next
	}

	// The declared size wins over the concatenated length.
	if uint64(len(data)) > uint64(h.CompressedSize) {
		data = data[:h.CompressedSize]
	}

	return Payload{X: h.X, Y: h.Y, CompressedSize: h.CompressedSize, Data: data}, nil
}
