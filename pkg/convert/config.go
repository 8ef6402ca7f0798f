package convert

import "github.com/klauspost/compress/zstd"

// Config configures a conversion run.
type Config struct {
	// WorldHeight overrides the height stored in the save header when > 0.
	WorldHeight int
	// Workers is the number of chunks translated concurrently (default: 1).
	Workers int
	// TempDir is the parent of the per-run work directory (default: os.TempDir()).
	TempDir string
	// KeepTemp leaves intermediate files in place after the run.
	KeepTemp bool
	// TemplateDir is a local directory or s3:// prefix copied into the output
	// world before translation. Slab references are read from it.
	TemplateDir string
	// ReportPath, when set, receives a Parquet report with one row per chunk.
	ReportPath string
	// Level is the zstd level for world column files.
	Level zstd.EncoderLevel
}

func (c Config) withDefaults() Config {
	if c.Workers <= 0 {
		c.Workers = 1
	}
	if c.Level == 0 {
		c.Level = zstd.SpeedDefault
	}
	return c
}
