// Package telemetry persists workflow run metrics as Parquet files.
package telemetry

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/parquet-go/parquet-go"
)

// StepRecord is one executed workflow step for Parquet storage
type StepRecord struct {
	RunID      string    `parquet:"run_id"`
	WorkflowID string    `parquet:"workflow_id"`
	StepID     string    `parquet:"step_id"`
	Agent      string    `parquet:"agent"`
	Status     string    `parquet:"status"`
	ErrorKind  string    `parquet:"error_kind"`
	SkippedBy  string    `parquet:"skipped_by"`
	StartedAt  time.Time `parquet:"started_at"`
	FinishedAt time.Time `parquet:"finished_at"`
	DurationMS int64     `parquet:"duration_ms"`
}

// Recorder buffers step records per run and writes one Parquet file per
// flush. A nil *Recorder is valid and drops everything.
type Recorder struct {
	outputDir string
	mu        sync.Mutex
	buffer    []StepRecord
}

// NewRecorder creates a recorder writing into outputDir.
func NewRecorder(outputDir string) (*Recorder, error) {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create telemetry directory: %w", err)
	}
	return &Recorder{
		outputDir: outputDir,
		buffer:    make([]StepRecord, 0, 64),
	}, nil
}

// NewRunID returns a fresh workflow run identifier.
func NewRunID() string {
	return uuid.New().String()
}

// Record buffers one step record.
func (r *Recorder) Record(rec StepRecord) {
	if r == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.buffer = append(r.buffer, rec)
}

// Flush writes the buffered records to a new Parquet file and clears the
// buffer. An empty buffer is a no-op.
func (r *Recorder) Flush() (string, error) {
	if r == nil {
		return "", nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.buffer) == 0 {
		return "", nil
	}

	filename := fmt.Sprintf("workflow_runs_%s_%d.parquet", time.Now().Format("20060102_150405"), time.Now().UnixNano())
	path := filepath.Join(r.outputDir, filename)

	if err := parquet.WriteFile(path, r.buffer); err != nil {
		return "", fmt.Errorf("failed to write telemetry parquet file: %w", err)
	}

	r.buffer = r.buffer[:0]
	return path, nil
}

// Close flushes any remaining records.
func (r *Recorder) Close() error {
	_, err := r.Flush()
	return err
}
