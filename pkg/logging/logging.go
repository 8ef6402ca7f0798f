// Package logging provides structured logging for exp2bedrock using zerolog.
package logging

import (
	"io"
	"os"
	"sync/atomic"
	"time"

	"github.com/natefinch/lumberjack"
	"github.com/rs/zerolog"
)

var (
	logger     *zerolog.Logger
	prettyMode atomic.Bool
)

func init() {
	// Default to JSON logging at info level
	l := zerolog.New(os.Stderr).With().Timestamp().Logger()
	logger = &l
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
}

// Options configures the global logger.
type Options struct {
	Debug bool
	// Human selects the console writer and humanized companion fields.
	Human bool
	// File, when set, also writes JSON logs to a rotating file.
	File string
	// MaxSizeMB is the rotation size of File. 0 uses 100.
	MaxSizeMB int
	// MaxBackups is the number of rotated files kept. 0 keeps all.
	MaxBackups int
}

// Init configures the global logger.
// If debug is true, sets log level to Debug.
// If human is true, uses a human-friendly console writer.
func Init(debug bool, human bool) {
	Configure(Options{Debug: debug, Human: human})
}

// Configure sets up the global logger from opts. The returned closer
// releases the log file, if any.
func Configure(opts Options) io.Closer {
	level := zerolog.InfoLevel
	if opts.Debug {
		level = zerolog.DebugLevel
	}
	zerolog.SetGlobalLevel(level)
	SetPrettyMode(opts.Human)

	var console io.Writer = os.Stderr
	if opts.Human {
		console = zerolog.ConsoleWriter{
			Out:        os.Stderr,
			TimeFormat: time.RFC3339,
			NoColor:    false,
		}
	}

	var closer io.Closer = nopCloser{}
	output := zerolog.LevelWriter(zerolog.LevelWriterAdapter{Writer: console})
	if opts.File != "" {
		maxSize := opts.MaxSizeMB
		if maxSize <= 0 {
			maxSize = 100
		}
		file := &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    maxSize,
			MaxBackups: opts.MaxBackups,
			Compress:   true,
		}
		output = zerolog.MultiLevelWriter(console, file)
		closer = file
	}

	l := zerolog.New(output).With().Timestamp().Logger()
	logger = &l
	return closer
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// L returns the base logger.
func L() *zerolog.Logger {
	return logger
}

// WithPhase returns a logger with the phase field set.
func WithPhase(phase string) zerolog.Logger {
	return logger.With().Str("phase", phase).Logger()
}

// SetLogger allows overriding the global logger (useful for testing).
func SetLogger(l zerolog.Logger) {
	logger = &l
}

// SetPrettyMode toggles humanized companion fields on completion events.
func SetPrettyMode(on bool) {
	prettyMode.Store(on)
}

// IsPrettyMode reports whether humanized companion fields are emitted.
func IsPrettyMode() bool {
	return prettyMode.Load()
}
