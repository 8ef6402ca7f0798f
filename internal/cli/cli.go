// Package cli implements the command-line interface for exp2bedrock.
package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/joho/godotenv"

	"github.com/euancatapang/Exploration-to-Bedrock/pkg/chunk"
	"github.com/euancatapang/Exploration-to-Bedrock/pkg/convert"
	"github.com/euancatapang/Exploration-to-Bedrock/pkg/format"
	"github.com/euancatapang/Exploration-to-Bedrock/pkg/logging"
	"github.com/euancatapang/Exploration-to-Bedrock/pkg/segment"
)

// Environment variables consulted when the matching flag is not given.
const (
	EnvWorldHeight = "EXP2BR_WORLD_HEIGHT"
	EnvWorkers     = "EXP2BR_WORKERS"
	EnvTemplate    = "EXP2BR_TEMPLATE"
	EnvLogFile     = "EXP2BR_LOG_FILE"
)

const usage = `usage: exp2bedrock <command> [options]
commands:
  convert  convert a save file into a world
  inspect  print the chunk layout of a save file`

// Run executes the CLI with the given arguments.
func Run(ctx context.Context, args []string, stdout io.Writer) error {
	if len(args) == 0 {
		return errors.New(usage)
	}

	switch args[0] {
	case "convert":
		return runConvert(ctx, args[1:], stdout)
	case "inspect":
		return runInspect(ctx, args[1:], stdout)
	default:
		return fmt.Errorf("unknown command: %s", args[0])
	}
}

// loadEnv reads envFile when it exists. Variables already set in the process
// environment take precedence over the file.
func loadEnv(envFile string) (map[string]string, error) {
	env := map[string]string{}
	if envFile != "" {
		vars, err := godotenv.Read(envFile)
		switch {
		case err == nil:
			env = vars
		case errors.Is(err, os.ErrNotExist):
		default:
			return nil, fmt.Errorf("read %s: %w", envFile, err)
		}
	}
	for _, k := range []string{EnvWorldHeight, EnvWorkers, EnvTemplate, EnvLogFile} {
		if v, ok := os.LookupEnv(k); ok {
			env[k] = v
		}
	}
	return env, nil
}

// flagSet reports which flags were given on the command line.
func flagSet(fs *flag.FlagSet) map[string]bool {
	set := map[string]bool{}
	fs.Visit(func(f *flag.Flag) { set[f.Name] = true })
	return set
}

func envInt(env map[string]string, key string, dst *int) error {
	v, ok := env[key]
	if !ok || v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("%s: invalid integer %q", key, v)
	}
	*dst = n
	return nil
}

func envString(env map[string]string, key string, dst *string) {
	if v, ok := env[key]; ok && v != "" {
		*dst = v
	}
}

type convertOptions struct {
	out      string
	height   int
	workers  int
	template string
	tmp      string
	keepTmp  bool
	report   string
	logFile  string
	debug    bool
	human    bool
	input    string
}

func parseConvert(args []string) (*convertOptions, error) {
	var o convertOptions
	fs := flag.NewFlagSet("convert", flag.ContinueOnError)
	fs.StringVar(&o.out, "out", "", "output directory for the converted world")
	fs.IntVar(&o.height, "height", 0, "world height override (multiple of 16, 16-256)")
	fs.IntVar(&o.workers, "workers", 1, "chunks translated concurrently")
	fs.StringVar(&o.template, "template", "", "template world directory or s3:// prefix holding slab reference blocks")
	fs.StringVar(&o.tmp, "tmp", "", "parent directory for intermediate files")
	fs.BoolVar(&o.keepTmp, "keep-tmp", false, "keep intermediate files after the run")
	fs.StringVar(&o.report, "report", "", "write a Parquet chunk report to this path")
	fs.StringVar(&o.logFile, "log-file", "", "also write JSON logs to this rotating file")
	fs.BoolVar(&o.debug, "debug", false, "enable debug logging")
	fs.BoolVar(&o.human, "human", false, "human-readable console logs")
	envFile := fs.String("env", ".env", "optional dotenv file with EXP2BR_* settings")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	env, err := loadEnv(*envFile)
	if err != nil {
		return nil, err
	}
	set := flagSet(fs)
	if !set["height"] {
		if err := envInt(env, EnvWorldHeight, &o.height); err != nil {
			return nil, err
		}
	}
	if !set["workers"] {
		if err := envInt(env, EnvWorkers, &o.workers); err != nil {
			return nil, err
		}
	}
	if !set["template"] {
		envString(env, EnvTemplate, &o.template)
	}
	if !set["log-file"] {
		envString(env, EnvLogFile, &o.logFile)
	}

	if o.out == "" {
		return nil, errors.New("--out is required")
	}
	if fs.NArg() != 1 {
		return nil, errors.New("exactly one save file (path or s3:// URI) is required")
	}
	if o.workers < 1 {
		return nil, fmt.Errorf("--workers must be at least 1, got %d", o.workers)
	}
	o.input = fs.Arg(0)
	return &o, nil
}

func runConvert(ctx context.Context, args []string, stdout io.Writer) error {
	o, err := parseConvert(args)
	if err != nil {
		return err
	}

	closer := logging.Configure(logging.Options{Debug: o.debug, Human: o.human, File: o.logFile})
	defer closer.Close()

	p := convert.NewPipeline(convert.Config{
		WorldHeight: o.height,
		Workers:     o.workers,
		TempDir:     o.tmp,
		KeepTemp:    o.keepTmp,
		TemplateDir: o.template,
		ReportPath:  o.report,
	}, nil)

	res, err := p.Run(ctx, o.input, o.out)
	if err != nil {
		return fmt.Errorf("convert %s: %w", o.input, err)
	}

	fmt.Fprintf(stdout, "run:               %s\n", res.RunID)
	fmt.Fprintf(stdout, "segments:          %s (%d heads, %d bodies)\n", humanize.Comma(int64(res.Segments)), res.Heads, res.Bodies)
	fmt.Fprintf(stdout, "world height:      %d\n", res.WorldHeight)
	fmt.Fprintf(stdout, "chunks converted:  %d\n", res.Translate.ChunksProcessed)
	fmt.Fprintf(stdout, "chunks skipped:    %d\n", res.Skipped)
	fmt.Fprintf(stdout, "voxels processed:  %s\n", humanize.Comma(res.Translate.VoxelsProcessed))
	fmt.Fprintf(stdout, "blocks placed:     %s\n", humanize.Comma(res.Translate.BlocksPlaced))
	fmt.Fprintf(stdout, "unknown blocks:    %s\n", humanize.Comma(res.Translate.UnknownBlocks))
	fmt.Fprintf(stdout, "unknown modifiers: %s\n", humanize.Comma(res.Translate.UnknownModifiers))
	fmt.Fprintf(stdout, "duration:          %s\n", res.Duration.Round(time.Millisecond))
	if res.ChunkErrors != nil {
		for _, e := range res.ChunkErrors.Errors {
			fmt.Fprintf(stdout, "  skipped %v\n", e)
		}
	}
	return nil
}

func runInspect(ctx context.Context, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("inspect", flag.ContinueOnError)
	height := fs.Int("height", 0, "world height override (multiple of 16, 16-256)")
	verbose := fs.Bool("chunks", false, "list every chunk")
	debug := fs.Bool("debug", false, "enable debug logging")

	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return errors.New("exactly one save file path is required")
	}
	path := fs.Arg(0)

	logging.Init(*debug, true)

	store := segment.NewMemoryStore()
	split, err := segment.Split(ctx, path, store, segment.SplitOptions{WorldHeight: *height})
	if err != nil {
		return fmt.Errorf("inspect %s: %w", path, err)
	}

	fmt.Fprintf(stdout, "file:         %s\n", path)
	fmt.Fprintf(stdout, "size:         %s\n", humanize.IBytes(uint64(split.Segments)*format.SegmentSize))
	fmt.Fprintf(stdout, "segments:     %d (%d heads, %d bodies)\n", split.Segments, split.Heads, split.Bodies)
	fmt.Fprintf(stdout, "world height: %d\n", split.WorldHeight)

	res, err := chunk.NewReconstructor(store).Reconstruct(ctx)
	if err != nil {
		return fmt.Errorf("inspect %s: %w", path, err)
	}

	var total int64
	for _, p := range res.Payloads {
		total += int64(p.CompressedSize)
	}
	fmt.Fprintf(stdout, "chunks:       %d (%d broken)\n", len(res.Payloads), len(res.Skipped))
	fmt.Fprintf(stdout, "compressed:   %s\n", humanize.IBytes(uint64(total)))

	if *verbose {
		for _, p := range res.Payloads {
			fmt.Fprintf(stdout, "  chunk (%d, %d) %d bytes\n", p.X, p.Y, p.CompressedSize)
		}
	}
	for _, ce := range res.Skipped {
		fmt.Fprintf(stdout, "  broken %v\n", ce)
	}
	return nil
}
