// Package logctx carries loggers through context.Context.
//
// A conversion run attaches a logger tagged with its run_id once, and each
// stage narrows it further (phase, chunk coordinates) before handing the
// context down:
//
//	ctx, runID := logctx.WithRun(ctx, logging.WithPhase("convert"))
//	ctx = logctx.WithChunk(ctx, x, y)
//	log := logctx.FromContext(ctx)
//	log.Warn().Msg("skipping chunk")
package logctx

import (
	"context"
	"os"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// loggerKey and runKey are private so other packages cannot collide with them.
type (
	loggerKey struct{}
	runKey    struct{}
)

var (
	defaultLogger     zerolog.Logger
	defaultLoggerOnce sync.Once
)

func initDefaultLogger() {
	defaultLoggerOnce.Do(func() {
		defaultLogger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	})
}

// DefaultLogger returns the logger used when a context carries none. It
// writes JSON to stderr.
func DefaultLogger() zerolog.Logger {
	initDefaultLogger()
	return defaultLogger
}

// SetDefaultLogger overrides the default logger. Call it during start-up
// only; it is not safe to call concurrently with FromContext.
func SetDefaultLogger(l zerolog.Logger) {
	initDefaultLogger()
	defaultLogger = l
}

// WithLogger returns a new context with the given logger attached.
func WithLogger(ctx context.Context, logger zerolog.Logger) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, loggerKey{}, logger)
}

// FromContext extracts the logger from the context, falling back to the
// default logger. It never returns a zero-value logger.
func FromContext(ctx context.Context) zerolog.Logger {
	if ctx == nil {
		return DefaultLogger()
	}
	if logger, ok := ctx.Value(loggerKey{}).(zerolog.Logger); ok {
		return logger
	}
	return DefaultLogger()
}

// WithRun starts a run: it generates a run id, tags base with it and
// attaches both to the context.
func WithRun(ctx context.Context, base zerolog.Logger) (context.Context, string) {
	if ctx == nil {
		ctx = context.Background()
	}
	id := uuid.NewString()
	ctx = context.WithValue(ctx, runKey{}, id)
	return WithLogger(ctx, base.With().Str("run_id", id).Logger()), id
}

// RunID returns the run id set by WithRun, or "".
func RunID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(runKey{}).(string)
	return id
}

// WithChunk returns a context whose logger carries chunk coordinates.
func WithChunk(ctx context.Context, x, y int32) context.Context {
	logger := FromContext(ctx).With().Int32("chunk_x", x).Int32("chunk_y", y).Logger()
	return WithLogger(ctx, logger)
}

// WithStr returns a new context with a logger that has the specified string field added.
func WithStr(ctx context.Context, key, value string) context.Context {
	logger := FromContext(ctx).With().Str(key, value).Logger()
	return WithLogger(ctx, logger)
}

// WithInt returns a new context with a logger that has the specified int field added.
func WithInt(ctx context.Context, key string, value int) context.Context {
	logger := FromContext(ctx).With().Int(key, value).Logger()
	return WithLogger(ctx, logger)
}
