package format

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidHeader indicates an invalid or corrupted file header.
	ErrInvalidHeader = errors.New("invalid file header")
	// ErrMagicMismatch indicates the magic number doesn't match.
	ErrMagicMismatch = errors.New("magic number mismatch")
	// ErrVersionMismatch indicates an unsupported format version.
	ErrVersionMismatch = errors.New("unsupported format version")
	// ErrBoundsCheck indicates an out-of-bounds access attempt.
	ErrBoundsCheck = errors.New("index out of bounds")

	// ErrFormat indicates the save file itself has an invalid shape.
	// It aborts the whole run.
	ErrFormat = errors.New("invalid save file format")
	// ErrNoChunks indicates the save file contains no head segments.
	ErrNoChunks = errors.New("no chunks found in save file")
	// ErrMissingSegment indicates a chain references a body segment that does not exist.
	ErrMissingSegment = errors.New("missing body segment")
	// ErrCorruptChain indicates a chain that never terminates within the file.
	ErrCorruptChain = errors.New("corrupt segment chain")
	// ErrDecompression indicates a chunk payload that does not decompress to the exact chunk size.
	ErrDecompression = errors.New("chunk decompression failed")
)

// Stage names used in ChunkError.
const (
	StageReconstruct = "reconstruct"
	StageDecompress  = "decompress"
	StageTranslate   = "translate"
)

// ChunkError is a failure scoped to a single chunk. The chunk is skipped and
// the run continues.
type ChunkError struct {
	X, Y  int32
	Stage string
	Err   error
}

func (e *ChunkError) Error() string {
	return fmt.Sprintf("chunk (%d, %d) %s: %v", e.X, e.Y, e.Stage, e.Err)
}

func (e *ChunkError) Unwrap() error {
	return e.Err
}
