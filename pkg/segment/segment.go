// Package segment splits an Exploration save file into its fixed-size
// segments and stores them for chunk reconstruction.
package segment

import (
	"github.com/euancatapang/Exploration-to-Bedrock/pkg/format"
)

// Kind classifies a segment.
type Kind uint8

const (
	KindHeader Kind = iota
	KindHead
	KindBody
)

func (k Kind) String() string {
	switch k {
	case KindHeader:
		return "header"
	case KindHead:
		return "head"
	case KindBody:
		return "body"
	default:
		return "unknown"
	}
}

// Segment is one 1024-byte unit of the save file.
type Segment struct {
	// Index is the position of the segment in the file.
	Index int
	// Ordinal is the position among segments of the same kind.
	Ordinal int
	Kind    Kind
	Data    []byte
}

// Classify determines the kind of the segment at the given file index.
// Segment 0 is always the header regardless of its content.
func Classify(index int, data []byte) Kind {
	if index == 0 {
		return KindHeader
	}
	if format.IsHeadSegment(data) {
		return KindHead
	}
	return KindBody
}
