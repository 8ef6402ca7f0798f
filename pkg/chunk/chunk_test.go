package chunk

import (
	"bytes"
	"context"
	"io"
	"math/rand"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/euancatapang/Exploration-to-Bedrock/pkg/format"
	"github.com/euancatapang/Exploration-to-Bedrock/pkg/segment"
)

// synthPayload returns n bytes starting with the LZ4 signature.
func synthPayload(n int, seed int64) []byte {
	p := make([]byte, n)
	rand.New(rand.NewSource(seed)).Read(p)
	copy(p, format.LZ4Signature)
	return p
}

// chainSegments lays payload out as a head followed by bodies, the head at
// file index first and bodies at consecutive indexes.
func chainSegments(payload []byte, x, y int32, first int) [][]byte {
	headLen := min(len(payload), format.HeadPayloadMax)
	rest := payload[headLen:]

	next := format.NoNext
	if len(rest) > 0 {
		next = int32(first + 1)
	}
	segs := [][]byte{format.EncodeHead(format.HeadHeader{
		Next: next, X: x, Y: y, CompressedSize: uint32(len(payload)),
	}, payload[:headLen])}

	idx := first + 1
	for len(rest) > 0 {
		n := min(len(rest), format.BodyPayloadMax)
		next := format.NoNext
		if n < len(rest) {
			next = int32(idx + 1)
		}
		segs = append(segs, format.EncodeBody(format.BodyHeader{Next: next, Remaining: uint32(len(rest))}, rest[:n]))
		rest = rest[n:]
		idx++
	}
	return segs
}

func putAll(t *testing.T, store segment.Store, first int, segs [][]byte) {
	t.Helper()
	heads, bodies := 0, 0
	for i, data := range segs {
		idx := first + i
		seg := segment.Segment{Index: idx, Kind: segment.Classify(idx, data), Data: data}
		switch seg.Kind {
		case segment.KindHead:
			seg.Ordinal = heads
			heads++
		case segment.KindBody:
			seg.Ordinal = bodies
			bodies++
		}
		require.NoError(t, store.Put(seg))
	}
}

func newStore(t *testing.T, segs [][]byte) *segment.MemoryStore {
	t.Helper()
	store := segment.NewMemoryStore()
	all := append([][]byte{format.EncodeSaveHeader(format.SaveHeader{WorldHeight: 64})}, segs...)
	putAll(t, store, 0, all)
	return store
}

func TestReconstructRoundTrip(t *testing.T) {
	for _, n := range []int{4, 950, 1000, 1001, 2016, 2017, 5000} {
		payload := synthPayload(n, int64(n))
		store := newStore(t, chainSegments(payload, 32, -64, 1))

		res, err := NewReconstructor(store).Reconstruct(context.Background())
		require.NoError(t, err, "n=%d", n)
		require.Len(t, res.Payloads, 1, "n=%d", n)
		assert.Empty(t, res.Skipped)

		p := res.Payloads[0]
		assert.Equal(t, int32(32), p.X)
		assert.Equal(t, int32(-64), p.Y)
		assert.Equal(t, uint32(n), p.CompressedSize)
		assert.True(t, bytes.Equal(payload, p.Data), "n=%d: payload mismatch", n)
	}
}

func TestReconstructTerminalBodyUsesRemaining(t *testing.T) {
	payload := synthPayload(format.HeadPayloadMax, 1)
	tail := bytes.Repeat([]byte{0xEE}, format.BodyPayloadMax)

	// Declared size exceeds the real data so truncation cannot hide an
	// over-long copy from the last body.
	store := newStore(t, [][]byte{
		format.EncodeHead(format.HeadHeader{Next: 2, CompressedSize: 2000}, payload),
		format.EncodeBody(format.BodyHeader{Next: format.NoNext, Remaining: 300}, tail),
	})

	res, err := NewReconstructor(store).Reconstruct(context.Background())
	require.NoError(t, err)
	require.Len(t, res.Payloads, 1)

	data := res.Payloads[0].Data
	require.Len(t, data, format.HeadPayloadMax+300)
	assert.Equal(t, payload, data[:format.HeadPayloadMax])
	assert.Equal(t, tail[:300], data[format.HeadPayloadMax:])
}

// A chained head always contributes its full capacity even when its declared
// size is smaller; the chain is still followed and the result is cut to the
// declared size.
func TestReconstructShortChainedHeadQuirk(t *testing.T) {
	payload := synthPayload(format.HeadPayloadMax, 2)
	store := newStore(t, [][]byte{
		format.EncodeHead(format.HeadHeader{Next: 2, CompressedSize: 600}, payload),
		format.EncodeBody(format.BodyHeader{Next: format.NoNext, Remaining: 10}, nil),
	})

	p, err := NewReconstructor(store).Payload(mustAt(t, store, 1))
	require.NoError(t, err)
	assert.Equal(t, payload[:600], p.Data)
}

func TestReconstructMissingSegment(t *testing.T) {
	good := synthPayload(300, 3)
	store := newStore(t, [][]byte{
		format.EncodeHead(format.HeadHeader{Next: 9, X: 16, Y: 16, CompressedSize: 1500}, synthPayload(1000, 4)),
		format.EncodeHead(format.HeadHeader{Next: format.NoNext, X: 0, Y: 0, CompressedSize: 300}, good),
	})

	res, err := NewReconstructor(store).Reconstruct(context.Background())
	require.NoError(t, err)

	require.Len(t, res.Payloads, 1)
	assert.Equal(t, good, res.Payloads[0].Data)

	require.Len(t, res.Skipped, 1)
	assert.ErrorIs(t, res.Skipped[0], format.ErrMissingSegment)
	assert.Equal(t, int32(16), res.Skipped[0].X)
	assert.Equal(t, format.StageReconstruct, res.Skipped[0].Stage)
}

func TestReconstructChainIntoHead(t *testing.T) {
	store := newStore(t, [][]byte{
		format.EncodeHead(format.HeadHeader{Next: 2, CompressedSize: 1500}, synthPayload(1000, 5)),
		format.EncodeHead(format.HeadHeader{Next: format.NoNext, X: 16, CompressedSize: 10}, synthPayload(10, 6)),
	})

	_, err := NewReconstructor(store).Payload(mustAt(t, store, 1))
	assert.ErrorIs(t, err, format.ErrMissingSegment)
}

func TestReconstructCycle(t *testing.T) {
	store := newStore(t, [][]byte{
		format.EncodeHead(format.HeadHeader{Next: 2, CompressedSize: 5000}, synthPayload(1000, 7)),
		format.EncodeBody(format.BodyHeader{Next: 3, Remaining: 4000}, nil),
		format.EncodeBody(format.BodyHeader{Next: 2, Remaining: 3000}, nil),
	})

	_, err := NewReconstructor(store).Payload(mustAt(t, store, 1))
	assert.ErrorIs(t, err, format.ErrCorruptChain)
}

func TestReconstructOversizedDeclaredSize(t *testing.T) {
	store := newStore(t, [][]byte{
		format.EncodeHead(format.HeadHeader{Next: 2, CompressedSize: 0xFFFFFFF0}, synthPayload(1000, 9)),
		format.EncodeBody(format.BodyHeader{Next: format.NoNext, Remaining: 10}, bytes.Repeat([]byte{0xAB}, 10)),
	})

	head := mustAt(t, store, 1)
	limit := format.HeadPayloadMax + store.Len()*format.BodyPayloadMax
	for i := 0; i < 8; i++ {
		p, err := NewReconstructor(store).Payload(head)
		require.NoError(t, err)
		assert.Len(t, p.Data, format.HeadPayloadMax+10)
		assert.LessOrEqual(t, cap(p.Data), limit)
		assert.Equal(t, uint32(0xFFFFFFF0), p.CompressedSize)
	}
}

func TestReconstructNoHeads(t *testing.T) {
	store := newStore(t, [][]byte{format.EncodeBody(format.BodyHeader{Next: format.NoNext}, nil)})

	_, err := NewReconstructor(store).Reconstruct(context.Background())
	assert.ErrorIs(t, err, format.ErrNoChunks)
}

func TestPayloadFileRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "payloads.bin")
	in := []Payload{
		{X: 0, Y: 0, CompressedSize: 950, Data: synthPayload(950, 8)},
		{X: -16, Y: 48, CompressedSize: 3000, Data: synthPayload(3000, 9)},
		{X: 160, Y: -160, CompressedSize: 0, Data: []byte{}},
	}

	w, err := NewPayloadWriter(path)
	require.NoError(t, err)
	require.NoError(t, w.WriteAll(in))
	assert.Equal(t, uint64(3), w.Count())
	require.NoError(t, w.Close())

	r, err := OpenPayloadFile(path)
	require.NoError(t, err)
	defer r.Close()
	assert.Equal(t, uint64(3), r.Count())

	for _, want := range in {
		got, err := r.Read()
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err = r.Read()
	assert.ErrorIs(t, err, io.EOF)
}

func mustAt(t *testing.T, store segment.Store, idx int) segment.Segment {
	t.Helper()
	seg, err := store.At(idx)
	require.NoError(t, err)
	return seg
}
