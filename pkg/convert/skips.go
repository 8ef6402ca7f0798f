package convert

import (
	"sync"

	"github.com/hashicorp/go-multierror"

	"github.com/euancatapang/Exploration-to-Bedrock/pkg/format"
	"github.com/euancatapang/Exploration-to-Bedrock/pkg/report"
)

// skipLog collects chunk-scoped failures from every stage.
type skipLog struct {
	mu     sync.Mutex
	errs   *multierror.Error
	counts map[string]int
}

func newSkipLog() *skipLog {
	return &skipLog{counts: make(map[string]int)}
}

func (s *skipLog) add(ce *format.ChunkError, compressed int64, rec *report.Recorder) {
	s.mu.Lock()
	s.errs = multierror.Append(s.errs, ce)
	s.counts[ce.Stage]++
	s.mu.Unlock()

	rec.Add(report.Row{
		ChunkX:         ce.X,
		ChunkY:         ce.Y,
		CompressedSize: compressed,
		Status:         report.StatusSkipped,
		Stage:          ce.Stage,
		Error:          ce.Err.Error(),
	})
}

func (s *skipLog) count(stage string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.counts[stage]
}

func (s *skipLog) total() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.errs == nil {
		return 0
	}
	return len(s.errs.Errors)
}

func (s *skipLog) err() *multierror.Error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.errs
}
