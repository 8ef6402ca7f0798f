package convert

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/euancatapang/Exploration-to-Bedrock/pkg/chunk"
	"github.com/euancatapang/Exploration-to-Bedrock/pkg/decompress"
	"github.com/euancatapang/Exploration-to-Bedrock/pkg/format"
	"github.com/euancatapang/Exploration-to-Bedrock/pkg/report"
	"github.com/euancatapang/Exploration-to-Bedrock/pkg/savegen"
	"github.com/euancatapang/Exploration-to-Bedrock/pkg/segment"
	"github.com/euancatapang/Exploration-to-Bedrock/pkg/translate"
	"github.com/euancatapang/Exploration-to-Bedrock/pkg/world"
)

const (
	idAndesiteSlab = 0x2E
	lowTopSlab     = 0x24
)

func writeSave(t *testing.T, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "save01.dat")
	require.NoError(t, savegen.WriteFile(path, data))
	return path
}

func rleChunk(t *testing.T, x, y int32, size, compressed int) savegen.ChunkSpec {
	t.Helper()
	block, err := savegen.RLEBlock(savegen.BedrockID, size, compressed)
	require.NoError(t, err)
	return savegen.ChunkSpec{X: x, Y: y, Payload: block}
}

func newTestPipeline(t *testing.T, cfg Config) *Pipeline {
	t.Helper()
	cfg.TempDir = t.TempDir()
	return NewPipeline(cfg, nil)
}

func TestRunSingleSegmentChunk(t *testing.T) {
	const height = 16
	save := savegen.BuildSave(height, []savegen.ChunkSpec{
		rleChunk(t, 0, 0, decompress.ChunkSize(height), 950),
	})
	require.Len(t, save, 2048)
	savePath := writeSave(t, save)

	store := segment.NewMemoryStore()
	_, err := segment.Split(context.Background(), savePath, store, segment.SplitOptions{})
	require.NoError(t, err)
	rec, err := chunk.NewReconstructor(store).Reconstruct(context.Background())
	require.NoError(t, err)
	require.Len(t, rec.Payloads, 1)
	assert.Len(t, rec.Payloads[0].Data, 950)
	assert.Equal(t, uint32(950), rec.Payloads[0].CompressedSize)

	out := filepath.Join(t.TempDir(), "world")
	res, err := newTestPipeline(t, Config{}).Run(context.Background(), savePath, out)
	require.NoError(t, err)

	assert.NotEmpty(t, res.RunID)
	assert.Equal(t, 2, res.Segments)
	assert.Equal(t, 1, res.Heads)
	assert.Equal(t, 0, res.Bodies)
	assert.Equal(t, height, res.WorldHeight)
	assert.Equal(t, 1, res.Reconstructed)
	assert.Equal(t, 1, res.Decompressed)
	assert.Equal(t, 0, res.Skipped)
	assert.Nil(t, res.ChunkErrors)
	assert.Equal(t, int64(1), res.Translate.ChunksProcessed)
	assert.Equal(t, int64(16*height*16), res.Translate.VoxelsProcessed)
	assert.Equal(t, int64(16*height*16), res.Translate.BlocksPlaced)

	// Every modifier byte is 0x03, the lava sentinel.
	err = world.With(out, world.Options{Height: height}, func(w world.Store) error {
		for _, p := range [][3]int{{0, 0, 0}, {15, 15, 15}, {7, 3, 9}} {
			b, ok, err := w.Block(p[0], p[1], p[2])
			require.NoError(t, err)
			require.True(t, ok)
			assert.Equal(t, translate.Lava, b)
		}
		_, ok, err := w.Block(16, 0, 0)
		require.NoError(t, err)
		assert.False(t, ok)
		return nil
	})
	require.NoError(t, err)
}

func TestRunSparseChunkCountsAllVoxels(t *testing.T) {
	const height = 16
	data := savegen.ChunkData(height, func(x, y, z int) savegen.Voxel {
		if z == 0 && (y == 0 || y == 1 && x < 4) {
			return savegen.Voxel{ID: savegen.BedrockID}
		}
		return savegen.Voxel{}
	})
	payload := savegen.EncodeRLE(data)
	require.Equal(t, format.LZ4Signature, payload[:len(format.LZ4Signature)])

	save := savegen.BuildSave(height, []savegen.ChunkSpec{{X: 0, Y: 0, Payload: payload}})
	require.Len(t, save, 2048)

	res, err := newTestPipeline(t, Config{}).Run(context.Background(), writeSave(t, save), filepath.Join(t.TempDir(), "world"))
	require.NoError(t, err)

	assert.Equal(t, int64(1), res.Translate.ChunksProcessed)
	assert.Equal(t, int64(16*height*16), res.Translate.VoxelsProcessed)
	assert.Equal(t, int64(20), res.Translate.BlocksPlaced)
}

func TestRunGeneratedWorld(t *testing.T) {
	gen := savegen.NewGenerator(savegen.DefaultConfig(3, 2))
	reportPath := filepath.Join(t.TempDir(), "report.parquet")

	p := newTestPipeline(t, Config{Workers: 4, ReportPath: reportPath})
	res, err := p.Run(context.Background(), writeSave(t, gen.Save()), filepath.Join(t.TempDir(), "world"))
	require.NoError(t, err)

	assert.Equal(t, 6, res.Heads)
	assert.Equal(t, 6, res.Decompressed)
	assert.Equal(t, 0, res.Skipped)
	assert.Equal(t, int64(6), res.Translate.ChunksProcessed)
	assert.Positive(t, res.Translate.BlocksPlaced)

	rows, err := report.ReadFile(reportPath)
	require.NoError(t, err)
	require.Len(t, rows, 6)

	var placed int64
	for _, r := range rows {
		assert.Equal(t, report.StatusConverted, r.Status)
		assert.Positive(t, r.CompressedSize)
		placed += r.Placed
	}
	assert.Equal(t, res.Translate.BlocksPlaced, placed)
}

func TestRunSkipsBrokenChunks(t *testing.T) {
	const height = 16
	size := decompress.ChunkSize(height)

	save := savegen.BuildSave(height, []savegen.ChunkSpec{
		rleChunk(t, 0, 0, size, 950),
		rleChunk(t, 16, 0, size-1, 950), // decodes one byte short
	})

	// A head whose chain points past the end of the file.
	payload := append([]byte{0x1F, 0x03, 0x01, 0x00}, make([]byte, 1496)...)
	save = append(save, format.EncodeHead(format.HeadHeader{
		Next:           9,
		X:              32,
		Y:              0,
		CompressedSize: uint32(len(payload)),
	}, payload)...)

	reportPath := filepath.Join(t.TempDir(), "report.parquet")
	p := newTestPipeline(t, Config{ReportPath: reportPath})
	res, err := p.Run(context.Background(), writeSave(t, save), filepath.Join(t.TempDir(), "world"))
	require.NoError(t, err)

	assert.Equal(t, 3, res.Heads)
	assert.Equal(t, 2, res.Reconstructed)
	assert.Equal(t, 1, res.Decompressed)
	assert.Equal(t, 2, res.Skipped)
	assert.Equal(t, int64(1), res.Translate.ChunksProcessed)
	assert.Equal(t, int64(16*height*16), res.Translate.BlocksPlaced)

	require.NotNil(t, res.ChunkErrors)
	assert.Len(t, res.ChunkErrors.Errors, 2)
	assert.True(t, errors.Is(res.ChunkErrors, format.ErrMissingSegment))
	assert.True(t, errors.Is(res.ChunkErrors, format.ErrDecompression))

	stages := map[int32]string{}
	for _, err := range res.ChunkErrors.Errors {
		var ce *format.ChunkError
		require.True(t, errors.As(err, &ce))
		stages[ce.X] = ce.Stage
	}
	assert.Equal(t, map[int32]string{
		16: format.StageDecompress,
		32: format.StageReconstruct,
	}, stages)

	rows, err := report.ReadFile(reportPath)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, report.StatusConverted, rows[0].Status)
	assert.Equal(t, report.StatusSkipped, rows[1].Status)
	assert.Equal(t, format.StageDecompress, rows[1].Stage)
	assert.Equal(t, int64(950), rows[1].CompressedSize)
	assert.Equal(t, report.StatusSkipped, rows[2].Status)
	assert.Equal(t, format.StageReconstruct, rows[2].Stage)
}

func TestRunTemplateSlabs(t *testing.T) {
	const height = 16
	andesiteTop := world.Block{Name: "minecraft:stone_block_slab3", Data: 11}

	tmpl := filepath.Join(t.TempDir(), "template")
	ref := translate.ReferencePositions()["andesite_slab"]
	err := world.With(tmpl, world.Options{Height: height}, func(w world.Store) error {
		return w.SetBlock(ref[0], ref[1], ref[2], andesiteTop)
	})
	require.NoError(t, err)

	data := savegen.ChunkData(height, func(x, y, z int) savegen.Voxel {
		switch {
		case y < 2:
			return savegen.Voxel{ID: savegen.BedrockID}
		case x == 5 && y == 3 && z == 5:
			return savegen.Voxel{ID: idAndesiteSlab, Low: lowTopSlab}
		case x == 6 && y == 3 && z == 5:
			return savegen.Voxel{ID: idAndesiteSlab}
		}
		return savegen.Voxel{}
	})
	save := savegen.BuildSave(height, []savegen.ChunkSpec{{X: 0, Y: 0, Payload: savegen.EncodeRLE(data)}})

	out := filepath.Join(t.TempDir(), "world")
	res, err := newTestPipeline(t, Config{TemplateDir: tmpl}).Run(context.Background(), writeSave(t, save), out)
	require.NoError(t, err)
	assert.Equal(t, int64(16*2*16+2), res.Translate.BlocksPlaced)

	err = world.With(out, world.Options{Height: height}, func(w world.Store) error {
		b, ok, err := w.Block(5, 3, 5)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, andesiteTop, b)

		b, ok, err = w.Block(6, 3, 5)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, world.Block{Name: "minecraft:andesite_slab"}, b)

		// The template itself is carried into the output.
		b, ok, err = w.Block(ref[0], ref[1], ref[2])
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, andesiteTop, b)
		return nil
	})
	require.NoError(t, err)
}

func TestRunHeightOverride(t *testing.T) {
	const height = 16
	save := savegen.BuildSave(height, []savegen.ChunkSpec{
		rleChunk(t, 0, 0, decompress.ChunkSize(height), 950),
	})
	// Corrupt the stored height; the override must win.
	save[8] = 0x07

	res, err := newTestPipeline(t, Config{WorldHeight: height}).
		Run(context.Background(), writeSave(t, save), filepath.Join(t.TempDir(), "world"))
	require.NoError(t, err)
	assert.Equal(t, height, res.WorldHeight)
	assert.Equal(t, 1, res.Decompressed)
}

func TestRunFormatErrors(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want error
	}{
		{"empty", nil, format.ErrFormat},
		{"unaligned", make([]byte, 1500), format.ErrFormat},
		{"header only", savegen.BuildSave(16, nil), format.ErrNoChunks},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "save.dat")
			require.NoError(t, os.WriteFile(path, tt.data, 0o644))

			_, err := newTestPipeline(t, Config{}).Run(context.Background(), path, filepath.Join(t.TempDir(), "world"))
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.want), "got %v", err)
		})
	}
}

func TestRunCleansTempDir(t *testing.T) {
	save := savegen.BuildSave(16, []savegen.ChunkSpec{rleChunk(t, 0, 0, decompress.ChunkSize(16), 950)})
	parent := t.TempDir()

	_, err := NewPipeline(Config{TempDir: parent}, nil).
		Run(context.Background(), writeSave(t, save), filepath.Join(t.TempDir(), "world"))
	require.NoError(t, err)

	entries, err := os.ReadDir(parent)
	require.NoError(t, err)
	assert.Empty(t, entries)

	_, err = NewPipeline(Config{TempDir: parent, KeepTemp: true}, nil).
		Run(context.Background(), writeSave(t, save), filepath.Join(t.TempDir(), "world"))
	require.NoError(t, err)

	entries, err = os.ReadDir(parent)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	for _, name := range []string{"payloads.bin", "segments", "chunks"} {
		_, err := os.Stat(filepath.Join(parent, entries[0].Name(), name))
		assert.NoError(t, err, name)
	}
}

func TestRunCanceled(t *testing.T) {
	gen := savegen.NewGenerator(savegen.DefaultConfig(2, 2))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newTestPipeline(t, Config{}).Run(ctx, writeSave(t, gen.Save()), filepath.Join(t.TempDir(), "world"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestConfigDefaults(t *testing.T) {
	p := NewPipeline(Config{}, nil)
	assert.Equal(t, 1, p.config.Workers)
	assert.NotZero(t, p.config.Level)

	p = NewPipeline(Config{Workers: 8}, nil)
	assert.Equal(t, 8, p.config.Workers)
}
