// Package report writes a per-chunk conversion report as a Parquet file.
package report

import (
	"fmt"
	"path/filepath"
	"sort"
	"sync"

	"github.com/parquet-go/parquet-go"

	"github.com/euancatapang/Exploration-to-Bedrock/pkg/fileutil"
)

// Chunk statuses.
const (
	StatusConverted = "converted"
	StatusSkipped   = "skipped"
)

// Row is one chunk of the report.
type Row struct {
	ChunkX           int32  `parquet:"chunk_x"`
	ChunkY           int32  `parquet:"chunk_y"`
	CompressedSize   int64  `parquet:"compressed_size"`
	Status           string `parquet:"status"`
	Stage            string `parquet:"stage,optional"`
	Error            string `parquet:"error,optional"`
	Placed           int64  `parquet:"placed"`
	UnknownBlocks    int64  `parquet:"unknown_blocks"`
	UnknownModifiers int64  `parquet:"unknown_modifiers"`
}

// Recorder collects rows from concurrent workers.
type Recorder struct {
	mu   sync.Mutex
	rows []Row
}

// NewRecorder creates an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// Add records one row.
func (r *Recorder) Add(row Row) {
	r.mu.Lock()
	r.rows = append(r.rows, row)
	r.mu.Unlock()
}

// Rows returns the recorded rows sorted by coordinate.
func (r *Recorder) Rows() []Row {
	r.mu.Lock()
	rows := make([]Row, len(r.rows))
	copy(rows, r.rows)
	r.mu.Unlock()

	sort.Slice(rows, func(i, j int) bool {
		if rows[i].ChunkX != rows[j].ChunkX {
			return rows[i].ChunkX < rows[j].ChunkX
		}
		return rows[i].ChunkY < rows[j].ChunkY
	})
	return rows
}

// Len returns the number of recorded rows.
func (r *Recorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.rows)
}

// WriteFile writes the rows to path atomically.
func (r *Recorder) WriteFile(path string) error {
	rows := r.Rows()
	err := fileutil.WriteTmpThenMove(filepath.Dir(path), path, func(tmpPath string) error {
		return parquet.WriteFile(tmpPath, rows)
	})
	if err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return nil
}

// ReadFile reads a report written by WriteFile.
func ReadFile(path string) ([]Row, error) {
	rows, err := parquet.ReadFile[Row](path)
	if err != nil {
		return nil, fmt.Errorf("read report: %w", err)
	}
	return rows, nil
}
