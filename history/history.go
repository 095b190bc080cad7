// Package history persists analysis runs and serves the configuration-hash
// cache. A run record is created pending, transitions exactly once to
// completed or failed, and is never re-opened. Completed runs double as
// cache entries: an identical (dataset, config hash) pair short-circuits
// re-execution by returning the stored preview.
package history

import (
	"context"
	"errors"
	"time"

	"github.com/PiyushKumar010/Pattern-Recognition/dataset"
)

// Status is the lifecycle state of an analysis run.
type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// PreviewRow is one persisted result row: the combination's labels and its
// computed statistics. Previews are bounded; callers needing the full result
// set must re-derive it from the dataset store.
type PreviewRow struct {
	// Label is the composite combination label.
	Label string `msgpack:"label" json:"label"`

	// Conditions maps each selected column to its applied condition
	// description. Columns without a condition in this combination map to
	// the empty string.
	Conditions map[string]string `msgpack:"conditions" json:"conditions"`

	// MatchingRows is the number of rows the combination matched.
	MatchingRows int64 `msgpack:"matching_rows" json:"matching_rows"`

	// Stats maps result column to its statistics. Nil statistic values mean
	// no data, not zero.
	Stats map[string]dataset.ColumnStats `msgpack:"stats" json:"stats"`

	// SampleIDs is a bounded, formatted list of matching row IDs.
	SampleIDs string `msgpack:"sample_ids,omitempty" json:"sample_ids,omitempty"`

	// Error holds the per-combination query error, if any. Errored rows are
	// kept visible in the result set rather than dropped.
	Error string `msgpack:"error,omitempty" json:"error,omitempty"`
}

// Run is one analysis run record.
type Run struct {
	ID            string
	Dataset       string
	ConfigJSON    []byte
	ConfigHash    string
	Status        Status
	StartedAt     time.Time
	CompletedAt   *time.Time
	ExecutionTime time.Duration
	RowCount      int64
	ErrorCount    int64
	Preview       []PreviewRow
	ErrorMessage  string
}

// Completion carries the terminal data recorded when a run completes.
type Completion struct {
	ExecutionTime time.Duration
	RowCount      int64
	ErrorCount    int64
	Preview       []PreviewRow
}

// Stats summarizes the stored history.
type Stats struct {
	TotalRuns          int64   `json:"total_runs"`
	TotalDatasets      int64   `json:"total_datasets"`
	CompletedRuns      int64   `json:"completed_runs"`
	FailedRuns         int64   `json:"failed_runs"`
	AvgExecutionTimeMs float64 `json:"avg_execution_time_ms"`
}

// ErrRunNotFound indicates a run lookup by ID failed.
var ErrRunNotFound = errors.New("analysis run not found")

// Store is the history/cache persistence contract. Failures reading or
// writing the store are advisory: the engine degrades to recomputing and
// logs a warning rather than failing the run.
type Store interface {
	// CreateRun inserts a new pending run and registers its dataset
	// reference. Check-then-insert per (dataset, hash) is atomic;
	// last-writer-wins is acceptable for concurrent identical requests.
	CreateRun(ctx context.Context, run *Run) error

	// CompleteRun transitions a pending run to completed.
	CompleteRun(ctx context.Context, id string, done Completion) error

	// FailRun transitions a pending run to failed.
	FailRun(ctx context.Context, id, message string) error

	// FindCached returns the most recent completed run for the given
	// dataset and config hash, or nil if none exists. Pending and failed
	// runs are never served as cache hits.
	FindCached(ctx context.Context, datasetRef, configHash string) (*Run, error)

	// Run returns a run by ID, or ErrRunNotFound.
	Run(ctx context.Context, id string) (*Run, error)

	// List returns runs ordered newest first.
	List(ctx context.Context, limit, offset int) ([]Run, error)

	// Delete removes one run from history.
	Delete(ctx context.Context, id string) error

	// Clear removes all runs from history.
	Clear(ctx context.Context) error

	// Stats summarizes the stored history.
	Stats(ctx context.Context) (*Stats, error)

	// Close releases store resources.
	Close() error
}
