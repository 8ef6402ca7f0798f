package savegen

import "fmt"

// LZ4 block rules the encoder honors: a match is at least 4 bytes and the
// final 12 bytes of a block are never covered by a match.
const (
	minMatch     = 4
	lastLiterals = 12
)

// EncodeRLE encodes src as a raw LZ4 block using only offset-1 matches, so
// every run of five or more equal bytes collapses into one sequence.
//
// A chunk whose block array opens with at least 20 bytes of 0x03 therefore
// encodes to a block starting with the save-file LZ4 signature 1F 03 01 00.
func EncodeRLE(src []byte) []byte {
	out := make([]byte, 0, len(src)/4+16)
	limit := len(src) - lastLiterals

	lit := 0
	i := 0
	for i < limit {
		run := 1
		for i+run < limit && src[i+run] == src[i] {
			run++
		}
		if run-1 >= minMatch {
			out = appendSequence(out, src[lit:i+1], run-1)
			i += run
			lit = i
			continue
		}
		i += run
	}
	return appendLiterals(out, src[lit:])
}

// RLEBlock builds an LZ4 block that decodes to size copies of fill and is
// exactly compressedSize bytes long. The block has two sequences: one literal
// plus an offset-1 match, then a literal-only tail whose length is chosen to
// hit compressedSize.
func RLEBlock(fill byte, size, compressedSize int) ([]byte, error) {
	for tail := lastLiterals; tail <= size-1-minMatch; tail++ {
		match := size - 1 - tail
		if sequenceLen(1, match)+literalsLen(tail) != compressedSize {
			continue
		}
		out := appendSequence(make([]byte, 0, compressedSize), []byte{fill}, match)
		return appendLiterals(out, repeat(fill, tail)), nil
	}
	return nil, fmt.Errorf("no %d-byte block decodes to %d bytes", compressedSize, size)
}

func appendSequence(out, lits []byte, match int) []byte {
	out = append(out, nibble(len(lits))<<4|nibble(match-minMatch))
	if len(lits) >= 15 {
		out = appendLength(out, len(lits)-15)
	}
	out = append(out, lits...)
	out = append(out, 0x01, 0x00)
	if match-minMatch >= 15 {
		out = appendLength(out, match-minMatch-15)
	}
	return out
}

func appendLiterals(out, lits []byte) []byte {
	out = append(out, nibble(len(lits))<<4)
	if len(lits) >= 15 {
		out = appendLength(out, len(lits)-15)
	}
	return append(out, lits...)
}

func appendLength(out []byte, v int) []byte {
	for v >= 255 {
		out = append(out, 255)
		v -= 255
	}
	return append(out, byte(v))
}

func nibble(v int) byte {
	if v >= 15 {
		return 15
	}
	return byte(v)
}

func lengthBytes(v int) int {
	return v/255 + 1
}

func sequenceLen(lits, match int) int {
	n := 1 + lits + 2
	if lits >= 15 {
		n += lengthBytes(lits - 15)
	}
	if match-minMatch >= 15 {
		n += lengthBytes(match - minMatch - 15)
	}
	return n
}

func literalsLen(lits int) int {
	n := 1 + lits
	if lits >= 15 {
		n += lengthBytes(lits - 15)
	}
	return n
}

func repeat(b byte, n int) []byte {
	out := make([]byte, n)
	for i := range out {
		out[i] = b
	}
	return out
}
