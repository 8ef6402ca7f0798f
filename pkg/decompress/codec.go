package decompress

import (
	"errors"
	"fmt"

	"github.com/pierrec/lz4/v4"
)

// Codec decompresses a block whose decompressed size is known up front.
//
// Implementations must fail rather than return fewer than size bytes.
type Codec interface {
	Decompress(src []byte, size int) ([]byte, error)
}

// LZ4Block decodes raw LZ4 blocks (no frame header).
type LZ4Block struct{}

var _ Codec = LZ4Block{}

// Decompress decodes src into a buffer of exactly size bytes.
func (LZ4Block) Decompress(src []byte, size int) ([]byte, error) {
	if len(src) == 0 {
		return nil, errors.New("empty lz4 block")
	}

	dst := make([]byte, size)
	n, err := lz4.UncompressBlock(src, dst)
	if err != nil {
		return nil, err
	}
	if n != size {
		return nil, fmt.Errorf("decoded %d bytes, want %d", n, size)
	}
	return dst, nil
}

// CompressBlock encodes src as a raw LZ4 block. It is used to build
// synthetic save files.
func CompressBlock(src []byte) ([]byte, error) {
	dst := make([]byte, lz4.CompressBlockBound(len(src)))

	var c lz4.Compressor
	n, err := c.CompressBlock(src, dst)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, errors.New("lz4: data is incompressible")
	}
	return dst[:n], nil
}
