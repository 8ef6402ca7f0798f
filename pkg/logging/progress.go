package logging

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog"
)

// etaWindow is how many recent chunk durations feed the ETA.
const etaWindow = 16

// ChunkProgress tracks the translate phase: chunks done or skipped, the
// voxels they covered and the blocks they placed. Safe for concurrent use.
type ChunkProgress struct {
	total          int64
	voxelsPerChunk int64
	start          time.Time

	done    atomic.Int64
	skipped atomic.Int64
	placed  atomic.Int64

	mu     sync.Mutex
	recent [etaWindow]time.Duration
	n      int
}

// ChunkProgressSnapshot is a point-in-time view of a ChunkProgress.
type ChunkProgressSnapshot struct {
	Done, Skipped, Total int64
	// Voxels counts the voxels of done chunks only.
	Voxels  int64
	Placed  int64
	Elapsed time.Duration
	// ETA is zero until a chunk finishes or once nothing is left.
	ETA time.Duration
}

// NewChunkProgress starts tracking total chunks of voxelsPerChunk voxels.
func NewChunkProgress(total int64, voxelsPerChunk int) *ChunkProgress {
	return &ChunkProgress{
		total:          total,
		voxelsPerChunk: int64(voxelsPerChunk),
		start:          time.Now(),
	}
}

// Done records a translated chunk.
func (p *ChunkProgress) Done(d time.Duration, placed int64) int64 {
	p.placed.Add(placed)

	p.mu.Lock()
	p.recent[p.n%etaWindow] = d
	p.n++
	p.mu.Unlock()

	return p.done.Add(1)
}

// Skip records a chunk that could not be translated.
func (p *ChunkProgress) Skip() {
	p.skipped.Add(1)
}

// Snapshot returns the current progress.
func (p *ChunkProgress) Snapshot() ChunkProgressSnapshot {
	s := ChunkProgressSnapshot{
		Done:    p.done.Load(),
		Skipped: p.skipped.Load(),
		Total:   p.total,
		Placed:  p.placed.Load(),
		Elapsed: time.Since(p.start),
	}
	s.Voxels = s.Done * p.voxelsPerChunk

	left := s.Total - s.Done - s.Skipped
	if s.Done == 0 || left <= 0 {
		return s
	}

	p.mu.Lock()
	window := min(p.n, etaWindow)
	var sum time.Duration
	for _, d := range p.recent[:window] {
		sum += d
	}
	p.mu.Unlock()

	s.ETA = sum / time.Duration(window) * time.Duration(left)
	return s
}

// CompletionEvent helps build consistent completion log events.
type CompletionEvent struct {
	log     zerolog.Logger
	event   string
	phase   string
	elapsed time.Duration
	fields  map[string]interface{}
}

// NewCompletionEvent creates a new completion event builder.
func NewCompletionEvent(log zerolog.Logger, event, phase string, elapsed time.Duration) *CompletionEvent {
	return &CompletionEvent{
		log:     log,
		event:   event,
		phase:   phase,
		elapsed: elapsed,
		fields:  make(map[string]interface{}),
	}
}

// Str adds a string field.
func (ce *CompletionEvent) Str(key, val string) *CompletionEvent {
	ce.fields[key] = val
	return ce
}

// Int adds an int field.
func (ce *CompletionEvent) Int(key string, val int) *CompletionEvent {
	ce.fields[key] = val
	return ce
}

// Bytes adds byte count with optional human-readable companion.
func (ce *CompletionEvent) Bytes(key string, bytes int64) *CompletionEvent {
	ce.fields[key] = bytes
	if IsPrettyMode() {
		ce.fields[key+"_h"] = humanize.IBytes(uint64(max(bytes, 0)))
	}
	return ce
}

// Count adds count with optional human-readable companion.
func (ce *CompletionEvent) Count(key string, n int64) *CompletionEvent {
	ce.fields[key] = n
	if IsPrettyMode() {
		ce.fields[key+"_h"] = humanize.Comma(n)
	}
	return ce
}

// Chunks adds chunk and voxel progress fields from a snapshot.
func (ce *CompletionEvent) Chunks(s ChunkProgressSnapshot) *CompletionEvent {
	ce.fields["chunks_done"] = s.Done
	ce.fields["chunks_skipped"] = s.Skipped
	ce.fields["chunks_total"] = s.Total
	ce.Count("voxels_done", s.Voxels)
	ce.Count("blocks_placed", s.Placed)
	if s.Total > 0 {
		ce.fields["progress_pct"] = float64(s.Done+s.Skipped) * 100.0 / float64(s.Total)
		if IsPrettyMode() {
			ce.fields["progress_h"] = humanize.Comma(s.Done+s.Skipped) + "/" + humanize.Comma(s.Total)
		}
	}
	if s.ETA > 0 {
		ce.fields["eta_ms"] = s.ETA.Milliseconds()
		if IsPrettyMode() {
			ce.fields["eta_h"] = humanDuration(s.ETA)
		}
	}
	return ce
}

// Log emits the completion event.
func (ce *CompletionEvent) Log(msg string) {
	ce.emit(ce.log.Info(), msg)
}

// LogDebug emits the completion event at debug level.
func (ce *CompletionEvent) LogDebug(msg string) {
	ce.emit(ce.log.Debug(), msg)
}

func (ce *CompletionEvent) emit(e *zerolog.Event, msg string) {
	e = e.Str("event", ce.event).
		Str("phase", ce.phase).
		Int64("duration_ms", ce.elapsed.Milliseconds())

	if IsPrettyMode() {
		e = e.Str("duration_h", humanDuration(ce.elapsed))
	}

	for k, v := range ce.fields {
		e = e.Interface(k, v)
	}

	e.Msg(msg)
}

// PhaseComplete logs a phase completion event.
func PhaseComplete(log zerolog.Logger, phase string, elapsed time.Duration) *CompletionEvent {
	return NewCompletionEvent(log, "phase_completed", phase, elapsed)
}

// PhaseProgress logs a periodic progress event for a running phase.
func PhaseProgress(log zerolog.Logger, phase string, elapsed time.Duration) *CompletionEvent {
	return NewCompletionEvent(log, "phase_progress", phase, elapsed)
}

// ChunkComplete logs a chunk completion event.
func ChunkComplete(log zerolog.Logger, phase string, elapsed time.Duration) *CompletionEvent {
	return NewCompletionEvent(log, "chunk_completed", phase, elapsed)
}

// FileCreated logs a file creation completion event.
func FileCreated(log zerolog.Logger, phase string, elapsed time.Duration) *CompletionEvent {
	return NewCompletionEvent(log, "file_created", phase, elapsed)
}

func humanDuration(d time.Duration) string {
	switch {
	case d >= time.Minute:
		return d.Round(time.Second).String()
	case d >= time.Second:
		return d.Round(10 * time.Millisecond).String()
	default:
		return d.Round(time.Millisecond).String()
	}
}
