// Package convert runs the full save-to-world conversion: split, reconstruct,
// decompress and translate, materializing each stage under a run directory.
package convert

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/hashicorp/go-multierror"
	"golang.org/x/sync/errgroup"

	"github.com/euancatapang/Exploration-to-Bedrock/internal/logctx"
	"github.com/euancatapang/Exploration-to-Bedrock/pkg/chunk"
	"github.com/euancatapang/Exploration-to-Bedrock/pkg/chunkstore"
	"github.com/euancatapang/Exploration-to-Bedrock/pkg/decompress"
	"github.com/euancatapang/Exploration-to-Bedrock/pkg/fileutil"
	"github.com/euancatapang/Exploration-to-Bedrock/pkg/format"
	"github.com/euancatapang/Exploration-to-Bedrock/pkg/logging"
	"github.com/euancatapang/Exploration-to-Bedrock/pkg/report"
	"github.com/euancatapang/Exploration-to-Bedrock/pkg/s3fetch"
	"github.com/euancatapang/Exploration-to-Bedrock/pkg/segment"
	"github.com/euancatapang/Exploration-to-Bedrock/pkg/translate"
	"github.com/euancatapang/Exploration-to-Bedrock/pkg/world"
)

const progressInterval = 256

// Pipeline orchestrates one conversion run.
type Pipeline struct {
	config   Config
	codec    decompress.Codec
	s3Client *s3fetch.Client
	tempDir  string
}

// Result is the run summary.
type Result struct {
	RunID string

	Segments    int
	Heads       int
	Bodies      int
	WorldHeight int

	Reconstructed int
	Decompressed  int
	Skipped       int

	// Translate counts fully translated chunks only. A chunk skipped during
	// translation may have written some blocks that are not counted here.
	Translate translate.Summary
	Duration  time.Duration

	// ChunkErrors holds one *format.ChunkError per skipped chunk, or nil.
	ChunkErrors *multierror.Error
}

// NewPipeline creates a pipeline. s3Client may be nil; a client is created
// from the default AWS configuration when an s3:// input is used.
func NewPipeline(config Config, s3Client *s3fetch.Client) *Pipeline {
	return &Pipeline{
		config:   config.withDefaults(),
		codec:    decompress.LZ4Block{},
		s3Client: s3Client,
	}
}

// Run converts the save at input (a local path or s3:// URI) into a world
// under outDir.
//
// Chunk-scoped failures are skipped and reported in Result.ChunkErrors. A
// malformed save (format.ErrFormat), a save without chunks
// (format.ErrNoChunks) and I/O failures abort the run.
func (p *Pipeline) Run(ctx context.Context, input, outDir string) (*Result, error) {
	start := time.Now()
	ctx, runID := logctx.WithRun(ctx, *logging.L())
	log := logctx.FromContext(ctx)

	tempDir, err := os.MkdirTemp(p.config.TempDir, "exp2bedrock-*")
	if err != nil {
		return nil, fmt.Errorf("create temp dir: %w", err)
	}
	p.tempDir = tempDir
	defer p.cleanup(ctx)

	log.Info().
		Str("input", input).
		Str("out_dir", outDir).
		Str("temp_dir", tempDir).
		Int("workers", p.config.Workers).
		Msg("starting conversion")

	savePath, err := p.resolveInput(ctx, input)
	if err != nil {
		return nil, err
	}

	split, store, err := p.runSplit(ctx, savePath)
	if err != nil {
		return nil, fmt.Errorf("split phase: %w", err)
	}

	skips := newSkipLog()
	rec := report.NewRecorder()

	sizes, err := p.runReconstruct(ctx, store, skips, rec)
	if err != nil {
		return nil, fmt.Errorf("reconstruct phase: %w", err)
	}

	decompressed, err := p.runDecompress(ctx, split.WorldHeight, skips, rec)
	if err != nil {
		return nil, fmt.Errorf("decompress phase: %w", err)
	}

	summary, err := p.runTranslate(ctx, outDir, split.WorldHeight, sizes, skips, rec)
	if err != nil {
		return nil, fmt.Errorf("translate phase: %w", err)
	}

	if p.config.ReportPath != "" {
		reportStart := time.Now()
		if err := rec.WriteFile(p.config.ReportPath); err != nil {
			return nil, err
		}
		logging.FileCreated(log, "report", time.Since(reportStart)).
			Str("path", p.config.ReportPath).
			Int("rows", rec.Len()).
			Log("wrote chunk report")
	}

	result := &Result{
		RunID:         runID,
		Segments:      split.Segments,
		Heads:         split.Heads,
		Bodies:        split.Bodies,
		WorldHeight:   split.WorldHeight,
		Reconstructed: len(sizes.order),
		Decompressed:  decompressed,
		Skipped:       skips.total(),
		Translate:     summary,
		Duration:      time.Since(start),
		ChunkErrors:   skips.err(),
	}

	logging.PhaseComplete(log, "convert", result.Duration).
		Int("segments", result.Segments).
		Int("heads", result.Heads).
		Int("skipped", result.Skipped).
		Count("voxels_processed", summary.VoxelsProcessed).
		Count("blocks_placed", summary.BlocksPlaced).
		Count("unknown_blocks", summary.UnknownBlocks).
		Count("unknown_modifiers", summary.UnknownModifiers).
		Log("conversion complete")

	return result, nil
}

func (p *Pipeline) client(ctx context.Context) (*s3fetch.Client, error) {
	if p.s3Client != nil {
		return p.s3Client, nil
	}
	c, err := s3fetch.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("create S3 client: %w", err)
	}
	p.s3Client = c
	return c, nil
}

func (p *Pipeline) fetcher(ctx context.Context) (*s3fetch.Fetcher, error) {
	c, err := p.client(ctx)
	if err != nil {
		return nil, err
	}
	return s3fetch.NewFetcher(c, s3fetch.FetchConfig{
		DownloadDir: filepath.Join(p.tempDir, "download"),
		KeepFiles:   p.config.KeepTemp,
	}), nil
}

// resolveInput returns a local path for input, downloading it first when it
// is an S3 URI.
func (p *Pipeline) resolveInput(ctx context.Context, input string) (string, error) {
	if !s3fetch.IsS3URI(input) {
		if !fileutil.Exists(input) {
			return "", fmt.Errorf("input %s: %w", input, os.ErrNotExist)
		}
		return input, nil
	}
	f, err := p.fetcher(ctx)
	if err != nil {
		return "", err
	}
	res, err := f.FetchSave(ctx, input)
	if err != nil {
		return "", err
	}
	return res.LocalPath, nil
}

func (p *Pipeline) runSplit(ctx context.Context, savePath string) (*segment.SplitResult, segment.Store, error) {
	log := logctx.FromContext(ctx)

	store, err := segment.NewDirStore(filepath.Join(p.tempDir, "segments"))
	if err != nil {
		return nil, nil, err
	}

	split, err := segment.Split(ctx, savePath, store, segment.SplitOptions{WorldHeight: p.config.WorldHeight})
	if err != nil {
		return nil, nil, err
	}

	logging.PhaseComplete(log, "split", split.Duration).
		Int("segments", split.Segments).
		Int("heads", split.Heads).
		Int("bodies", split.Bodies).
		Int("world_height", split.WorldHeight).
		Log("split complete")

	return split, store, nil
}

// chunkSizes records the compressed size of each reconstructed chunk. A
// coordinate seen twice keeps the later size, matching the chunk store.
type chunkSizes struct {
	byCoord map[chunkstore.Coord]int64
	order   []chunkstore.Coord
}

func (p *Pipeline) payloadPath() string {
	return filepath.Join(p.tempDir, "payloads.bin")
}

func (p *Pipeline) chunksDir() string {
	return filepath.Join(p.tempDir, "chunks")
}

func (p *Pipeline) runReconstruct(ctx context.Context, store segment.Store, skips *skipLog, rec *report.Recorder) (*chunkSizes, error) {
	log := logctx.FromContext(ctx)

	res, err := chunk.NewReconstructor(store).Reconstruct(ctx)
	if err != nil {
		return nil, err
	}
	for _, ce := range res.Skipped {
		skips.add(ce, 0, rec)
	}

	pw, err := chunk.NewPayloadWriter(p.payloadPath())
	if err != nil {
		return nil, err
	}
	if err := pw.WriteAll(res.Payloads); err != nil {
		pw.Close()
		return nil, err
	}
	if err := pw.Close(); err != nil {
		return nil, err
	}

	sizes := &chunkSizes{
		byCoord: make(map[chunkstore.Coord]int64, len(res.Payloads)),
		order:   make([]chunkstore.Coord, 0, len(res.Payloads)),
	}
	for _, pl := range res.Payloads {
		c := chunkstore.Coord{X: pl.X, Y: pl.Y}
		sizes.byCoord[c] = int64(pl.CompressedSize)
		sizes.order = append(sizes.order, c)
	}

	logging.PhaseComplete(log, "reconstruct", res.Duration).
		Int("payloads", len(res.Payloads)).
		Int("skipped", len(res.Skipped)).
		Log("reconstruction complete")

	return sizes, nil
}

func (p *Pipeline) runDecompress(ctx context.Context, height int, skips *skipLog, rec *report.Recorder) (n int, err error) {
	start := time.Now()
	log := logctx.FromContext(ctx)

	d, err := decompress.New(p.codec, height)
	if err != nil {
		return 0, err
	}

	pr, err := chunk.OpenPayloadFile(p.payloadPath())
	if err != nil {
		return 0, err
	}
	defer pr.Close()

	w, err := chunkstore.NewWriter(p.chunksDir(), height)
	if err != nil {
		return 0, err
	}
	defer func() {
		if cerr := w.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	for {
		if err := ctx.Err(); err != nil {
			return n, err
		}

		pl, err := pr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return n, err
		}

		c, err := d.Decompress(pl)
		if err != nil {
			var ce *format.ChunkError
			if !errors.As(err, &ce) {
				return n, err
			}
			log.Warn().
				Int32("chunk_x", ce.X).
				Int32("chunk_y", ce.Y).
				Uint32("compressed_size", pl.CompressedSize).
				Err(ce.Err).
				Msg("skipping chunk")
			skips.add(ce, int64(pl.CompressedSize), rec)
			continue
		}

		if err := w.Add(c); err != nil {
			return n, err
		}
		n++
	}

	logging.PhaseComplete(log, "decompress", time.Since(start)).
		Int("chunks", n).
		Int("distinct_chunks", w.Count()).
		Int("skipped", skips.count(format.StageDecompress)).
		Bytes("bytes", int64(n)*int64(d.Size())).
		Log("decompression complete")

	return n, nil
}

// prepareWorld copies the configured template into outDir.
func (p *Pipeline) prepareWorld(ctx context.Context, outDir string) error {
	if p.config.TemplateDir == "" {
		return os.MkdirAll(outDir, 0755)
	}

	var (
		n   int
		err error
	)
	if s3fetch.IsS3URI(p.config.TemplateDir) {
		f, ferr := p.fetcher(ctx)
		if ferr != nil {
			return ferr
		}
		n, err = f.FetchTree(ctx, p.config.TemplateDir, outDir)
	} else {
		n, err = fileutil.CopyDir(p.config.TemplateDir, outDir)
	}
	if err != nil {
		return fmt.Errorf("prepare template: %w", err)
	}

	log := logctx.FromContext(ctx)
	log.Info().
		Str("template", p.config.TemplateDir).
		Int("files", n).
		Msg("copied world template")
	return nil
}

func (p *Pipeline) runTranslate(ctx context.Context, outDir string, height int, sizes *chunkSizes, skips *skipLog, rec *report.Recorder) (translate.Summary, error) {
	start := time.Now()
	log := logctx.FromContext(ctx)

	if err := p.prepareWorld(ctx, outDir); err != nil {
		return translate.Summary{}, err
	}
	// Column files left behind by an interrupted run.
	if err := fileutil.CleanupTmpFiles(outDir); err != nil {
		return translate.Summary{}, fmt.Errorf("clean world dir: %w", err)
	}

	chunks, err := chunkstore.Open(p.chunksDir())
	if err != nil {
		return translate.Summary{}, err
	}
	defer chunks.Close()

	var tr *translate.Translator
	err = world.With(outDir, world.Options{Height: height, Level: p.config.Level}, func(w world.Store) error {
		slabs := translate.StaticSlabs()
		if p.config.TemplateDir != "" {
			var err error
			if slabs, err = translate.DiscoverSlabs(ctx, w); err != nil {
				return err
			}
		}
		log.Debug().Int("slabs", slabs.Len()).Msg("slab table ready")

		tr = translate.New(slabs)
		coords := chunks.Coords()
		tracker := logging.NewChunkProgress(int64(len(coords)), decompress.VoxelCount(height))

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(p.config.Workers)
		for _, c := range coords {
			g.Go(func() error {
				return p.translateOne(gctx, tr, chunks, w, c, sizes, skips, rec, tracker)
			})
		}
		return g.Wait()
	})
	if err != nil {
		return translate.Summary{}, err
	}

	summary := tr.Counters().Snapshot()
	logging.PhaseComplete(log, "translate", time.Since(start)).
		Count("chunks", summary.ChunksProcessed).
		Count("voxels_processed", summary.VoxelsProcessed).
		Count("blocks_placed", summary.BlocksPlaced).
		Int("skipped", skips.count(format.StageTranslate)).
		Log("translation complete")
	return summary, nil
}

// translateOne translates a single stored chunk. Chunk-scoped failures are
// recorded and swallowed so siblings keep running.
func (p *Pipeline) translateOne(
	ctx context.Context,
	tr *translate.Translator,
	chunks *chunkstore.Reader,
	w world.Writer,
	coord chunkstore.Coord,
	sizes *chunkSizes,
	skips *skipLog,
	rec *report.Recorder,
	tracker *logging.ChunkProgress,
) error {
	start := time.Now()

	c, ok, err := chunks.Get(coord.X, coord.Y)
	if err != nil {
		return fmt.Errorf("read chunk (%d, %d): %w", coord.X, coord.Y, err)
	}
	if !ok {
		return fmt.Errorf("read chunk (%d, %d): %w", coord.X, coord.Y, format.ErrBoundsCheck)
	}

	ctx = logctx.WithChunk(ctx, c.X, c.Y)
	log := logctx.FromContext(ctx)

	stats, err := tr.TranslateChunk(ctx, c, w)
	if err != nil {
		var ce *format.ChunkError
		if !errors.As(err, &ce) {
			return err
		}
		// Blocks written before the failure stay in the world but are left
		// out of the run totals.
		log.Warn().Err(ce.Err).Int64("partial_blocks", stats.Placed).Msg("skipping chunk")
		skips.add(ce, sizes.byCoord[coord], rec)
		tracker.Skip()
		return nil
	}

	done := tracker.Done(time.Since(start), stats.Placed)
	rec.Add(report.Row{
		ChunkX:           c.X,
		ChunkY:           c.Y,
		CompressedSize:   sizes.byCoord[coord],
		Status:           report.StatusConverted,
		Placed:           stats.Placed,
		UnknownBlocks:    stats.UnknownBlocks,
		UnknownModifiers: stats.UnknownModifiers,
	})

	logging.ChunkComplete(log, "translate", time.Since(start)).
		Count("placed", stats.Placed).
		LogDebug("chunk translated")
	if done%progressInterval == 0 {
		snap := tracker.Snapshot()
		logging.PhaseProgress(log, "translate", snap.Elapsed).
			Chunks(snap).
			Log("translation progress")
	}
	return nil
}

// cleanup removes the run directory unless KeepTemp is set.
func (p *Pipeline) cleanup(ctx context.Context) {
	if p.tempDir == "" {
		return
	}
	log := logctx.FromContext(ctx)
	if p.config.KeepTemp {
		log.Info().Str("temp_dir", p.tempDir).Msg("keeping intermediate files")
		return
	}
	if err := os.RemoveAll(p.tempDir); err != nil {
		log.Warn().Err(err).Str("temp_dir", p.tempDir).Msg("failed to remove temp dir")
	}
}
