package format

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// Save file layout:
//
// The file is a sequence of 1024-byte segments. Segment 0 is the save header.
// Every other segment is either a chunk head or a body continuing a chunk.
//
// Head segment (little-endian):
//
//	[0:4]   next index   int32, -1 when the payload fits in the head
//	[8:12]  chunk x      int32, multiple of 16
//	[12:16] chunk y      int32, multiple of 16
//	[20:24] compressed   uint32, total compressed payload size
//	[24:]   payload      starts with the LZ4 block signature
//
// Body segment:
//
//	[0:4]   next index   int32, -1 terminates the chain
//	[4:8]   remaining    uint32, payload bytes left including this segment
//	[8:]    payload
const (
	// SegmentSize is the fixed size of every save file segment.
	SegmentSize = 1024

	// HeadPayloadOffset is where the compressed payload starts in a head segment.
	HeadPayloadOffset = 24
	// HeadPayloadMax is the payload capacity of a head segment.
	HeadPayloadMax = SegmentSize - HeadPayloadOffset // 1000

	// BodyPayloadOffset is where the payload continues in a body segment.
	BodyPayloadOffset = 8
	// BodyPayloadMax is the payload capacity of a body segment.
	BodyPayloadMax = SegmentSize - BodyPayloadOffset // 1016

	// NoNext marks the end of a segment chain.
	NoNext int32 = -1

	// ChunkWidth is the horizontal size of a chunk in both x and z.
	ChunkWidth = 16
	// ChunkTrailerSize is the opaque trailer following the modifier array of a
	// decompressed chunk.
	ChunkTrailerSize = 528

	// saveHeaderHeightOffset locates the world height in segment 0.
	saveHeaderHeightOffset = 8

	MinWorldHeight = 16
	MaxWorldHeight = 256
)

// LZ4Signature is the first four bytes of every chunk payload.
var LZ4Signature = []byte{0x1F, 0x03, 0x01, 0x00}

// HeadHeader holds the fixed fields of a head segment.
type HeadHeader struct {
	Next           int32
	X              int32
	Y              int32
	CompressedSize uint32
}

// BodyHeader holds the fixed fields of a body segment.
type BodyHeader struct {
	Next      int32
	Remaining uint32
}

// SaveHeader is the geometry carried by segment 0.
type SaveHeader struct {
	WorldHeight int
}

// IsHeadSegment reports whether a non-header segment starts a chunk.
// Coordinates are checked as unsigned values, so negative multiples of 16
// also qualify.
func IsHeadSegment(seg []byte) bool {
	if len(seg) < HeadPayloadOffset+len(LZ4Signature) {
		return false
	}
	x := binary.LittleEndian.Uint32(seg[8:12])
	y := binary.LittleEndian.Uint32(seg[12:16])
	return x%ChunkWidth == 0 &&
		y%ChunkWidth == 0 &&
		bytes.Equal(seg[HeadPayloadOffset:HeadPayloadOffset+len(LZ4Signature)], LZ4Signature)
}

// DecodeHead reads the fixed fields of a head segment.
func DecodeHead(seg []byte) (HeadHeader, error) {
	if len(seg) < HeadPayloadOffset {
		return HeadHeader{}, ErrInvalidHeader
	}
	return HeadHeader{
		Next:           int32(binary.LittleEndian.Uint32(seg[0:4])),
		X:              int32(binary.LittleEndian.Uint32(seg[8:12])),
		Y:              int32(binary.LittleEndian.Uint32(seg[12:16])),
		CompressedSize: binary.LittleEndian.Uint32(seg[20:24]),
	}, nil
}

// DecodeBody reads the fixed fields of a body segment.
func DecodeBody(seg []byte) (BodyHeader, error) {
	if len(seg) < BodyPayloadOffset {
		return BodyHeader{}, ErrInvalidHeader
	}
	return BodyHeader{
		Next:      int32(binary.LittleEndian.Uint32(seg[0:4])),
		Remaining: binary.LittleEndian.Uint32(seg[4:8]),
	}, nil
}

// HeadPayload returns the payload bytes carried by a head segment.
//
// An unchained head carries exactly CompressedSize bytes. A chained head
// always contributes its full 1000-byte capacity, even when CompressedSize is
// smaller; the caller truncates the assembled payload afterwards.
func HeadPayload(seg []byte, h HeadHeader) []byte {
	n := HeadPayloadMax
	if h.Next == NoNext && int(h.CompressedSize) < n {
		n = int(h.CompressedSize)
	}
	return clip(seg, HeadPayloadOffset, n)
}

// BodyPayload returns min(Remaining, 1016) payload bytes of a body segment.
func BodyPayload(seg []byte, b BodyHeader) []byte {
	n := BodyPayloadMax
	if int64(b.Remaining) < int64(n) {
		n = int(b.Remaining)
	}
	return clip(seg, BodyPayloadOffset, n)
}

func clip(seg []byte, off, n int) []byte {
	if off > len(seg) {
		return nil
	}
	end := off + n
	if end > len(seg) {
		end = len(seg)
	}
	return seg[off:end]
}

// DecodeSaveHeader reads the world geometry from segment 0.
func DecodeSaveHeader(seg []byte) (SaveHeader, error) {
	if len(seg) < saveHeaderHeightOffset+4 {
		return SaveHeader{}, fmt.Errorf("%w: header segment too short", ErrFormat)
	}
	height := binary.LittleEndian.Uint32(seg[saveHeaderHeightOffset:])
	if err := ValidateWorldHeight(int(height)); err != nil {
		return SaveHeader{}, err
	}
	return SaveHeader{WorldHeight: int(height)}, nil
}

// ValidateWorldHeight checks that height is a multiple of 16 within range.
func ValidateWorldHeight(height int) error {
	if height < MinWorldHeight || height > MaxWorldHeight || height%ChunkWidth != 0 {
		return fmt.Errorf("%w: world height %d", ErrFormat, height)
	}
	return nil
}

// EncodeSaveHeader builds a header segment carrying the given world height.
func EncodeSaveHeader(h SaveHeader) []byte {
	seg := make([]byte, SegmentSize)
	binary.LittleEndian.PutUint32(seg[saveHeaderHeightOffset:], uint32(h.WorldHeight))
	return seg
}

// EncodeHead builds a head segment. Payload bytes beyond the head capacity
// are dropped.
func EncodeHead(h HeadHeader, payload []byte) []byte {
	seg := make([]byte, SegmentSize)
	binary.LittleEndian.PutUint32(seg[0:4], uint32(h.Next))
	binary.LittleEndian.PutUint32(seg[8:12], uint32(h.X))
	binary.LittleEndian.PutUint32(seg[12:16], uint32(h.Y))
	binary.LittleEndian.PutUint32(seg[20:24], h.CompressedSize)
	copy(seg[HeadPayloadOffset:], payload)
	return seg
}

// EncodeBody builds a body segment. Payload bytes beyond the body capacity
// are dropped.
func EncodeBody(b BodyHeader, payload []byte) []byte {
	seg := make([]byte, SegmentSize)
	binary.LittleEndian.PutUint32(seg[0:4], uint32(b.Next))
	binary.LittleEndian.PutUint32(seg[4:8], b.Remaining)
	copy(seg[BodyPayloadOffset:], payload)
	return seg
}
