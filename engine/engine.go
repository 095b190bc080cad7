// Package engine orchestrates analysis runs: it validates requests, enforces
// the combination ceiling before any work starts, consults the result cache,
// executes one aggregate query per combination under bounded concurrency, and
// records the run's lifecycle in history.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/PiyushKumar010/Pattern-Recognition/combine"
	"github.com/PiyushKumar010/Pattern-Recognition/condition"
	"github.com/PiyushKumar010/Pattern-Recognition/dataset"
	"github.com/PiyushKumar010/Pattern-Recognition/history"
)

// Default execution bounds.
const (
	DefaultMaxTotalCombinations = 100000
	DefaultPreviewRowLimit      = 100
	DefaultWorkers              = 4
	DefaultSampleIDLimit        = 20
)

// Options configures an Engine. Zero values take the documented defaults.
type Options struct {
	// MaxTotalCombinations is the hard ceiling on the combination count of a
	// single run. Exceeding it fails the request before any query executes.
	MaxTotalCombinations int

	// PreviewRowLimit bounds how many result rows are persisted per run.
	PreviewRowLimit int

	// Workers bounds concurrent combination queries. The dataset store's
	// connection pool bounds effective concurrency further.
	Workers int

	// SampleIDLimit is the number of matching row IDs captured per result
	// row when the request names an ID column.
	SampleIDLimit int

	Logger *slog.Logger
}

func (o *Options) withDefaults() {
	if o.MaxTotalCombinations <= 0 {
		o.MaxTotalCombinations = DefaultMaxTotalCombinations
	}
	if o.PreviewRowLimit <= 0 {
		o.PreviewRowLimit = DefaultPreviewRowLimit
	}
	if o.Workers <= 0 {
		o.Workers = DefaultWorkers
	}
	if o.SampleIDLimit <= 0 {
		o.SampleIDLimit = DefaultSampleIDLimit
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
}

// Engine coordinates dataset queries and run history. Safe for concurrent use.
type Engine struct {
	data   dataset.Store
	runs   history.Store
	opts   Options
	logger *slog.Logger
}

// New creates an engine over the given stores.
func New(data dataset.Store, runs history.Store, opts Options) (*Engine, error) {
	if data == nil {
		return nil, fmt.Errorf("dataset store is required")
	}
	if runs == nil {
		return nil, fmt.Errorf("history store is required")
	}
	opts.withDefaults()
	return &Engine{data: data, runs: runs, opts: opts, logger: opts.Logger}, nil
}

// Result is the outcome of a submitted analysis.
type Result struct {
	RunID             string               `json:"run_id"`
	Status            history.Status       `json:"status"`
	ServedFromCache   bool                 `json:"served_from_cache"`
	TotalCombinations int                  `json:"total_combinations"`
	RowCount          int64                `json:"row_count"`
	ErrorCount        int64                `json:"error_count"`
	ExecutionTime     time.Duration        `json:"execution_time"`
	Rows              []history.PreviewRow `json:"rows"`
}

// Submit validates and executes an analysis request. An identical completed
// run is served from cache without touching the dataset. Validation and
// ceiling failures return before any run record exists.
func (e *Engine) Submit(ctx context.Context, req Request) (*Result, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	columns, total, err := e.compile(req)
	if err != nil {
		return nil, err
	}
	if total > e.opts.MaxTotalCombinations {
		return nil, &LimitExceededError{Total: total, Ceiling: e.opts.MaxTotalCombinations}
	}

	configJSON, hash, err := req.fingerprint()
	if err != nil {
		return nil, err
	}

	// Cache failures degrade to recomputing.
	if cached, err := e.runs.FindCached(ctx, req.Dataset, hash); err != nil {
		e.logger.Warn("cache lookup failed, recomputing", "dataset", req.Dataset, "error", err)
	} else if cached != nil {
		e.logger.Info("serving analysis from cache",
			"run_id", cached.ID, "dataset", req.Dataset, "rows", cached.RowCount)
		return &Result{
			RunID:             cached.ID,
			Status:            cached.Status,
			ServedFromCache:   true,
			TotalCombinations: total,
			RowCount:          cached.RowCount,
			ErrorCount:        cached.ErrorCount,
			ExecutionTime:     cached.ExecutionTime,
			Rows:              cached.Preview,
		}, nil
	}

	run := &history.Run{
		ID:         uuid.NewString(),
		Dataset:    req.Dataset,
		ConfigJSON: configJSON,
		ConfigHash: hash,
		Status:     history.StatusPending,
		StartedAt:  time.Now().UTC(),
	}
	recorded := true
	if err := e.runs.CreateRun(ctx, run); err != nil {
		e.logger.Warn("failed to record analysis run, continuing without history",
			"run_id", run.ID, "error", err)
		recorded = false
	}

	e.logger.Info("starting analysis run",
		"run_id", run.ID, "dataset", req.Dataset,
		"columns", len(req.Columns), "combinations", total, "workers", e.opts.Workers)

	start := time.Now()
	rows, errorCount, err := e.execute(ctx, req, columns)
	elapsed := time.Since(start)

	// Terminal transitions are recorded even when the request context is
	// already cancelled.
	recordCtx := context.WithoutCancel(ctx)

	if err != nil {
		if recorded {
			if ferr := e.runs.FailRun(recordCtx, run.ID, err.Error()); ferr != nil {
				e.logger.Warn("failed to record run failure", "run_id", run.ID, "error", ferr)
			}
		}
		return nil, fmt.Errorf("analysis run %s failed: %w", run.ID, err)
	}

	preview := rows
	if len(preview) > e.opts.PreviewRowLimit {
		preview = preview[:e.opts.PreviewRowLimit]
	}
	if recorded {
		done := history.Completion{
			ExecutionTime: elapsed,
			RowCount:      int64(len(rows)),
			ErrorCount:    errorCount,
			Preview:       preview,
		}
		if err := e.runs.CompleteRun(recordCtx, run.ID, done); err != nil {
			e.logger.Warn("failed to record run completion", "run_id", run.ID, "error", err)
		}
	}

	e.logger.Info("analysis run completed",
		"run_id", run.ID, "rows", len(rows), "errors", errorCount, "elapsed", elapsed)

	return &Result{
		RunID:             run.ID,
		Status:            history.StatusCompleted,
		TotalCombinations: total,
		RowCount:          int64(len(rows)),
		ErrorCount:        errorCount,
		ExecutionTime:     elapsed,
		Rows:              preview,
	}, nil
}

// compile turns the request's conditions into per-column fragment lists, in
// column selection order, and returns the total combination count.
func (e *Engine) compile(req Request) ([]combine.ColumnFragments, int, error) {
	columns := make([]combine.ColumnFragments, 0, len(req.Columns))
	counts := make([]int, 0, len(req.Columns))
	for _, col := range req.Columns {
		fragments, err := condition.Compile(col, req.Conditions[col])
		if err != nil {
			return nil, 0, err
		}
		columns = append(columns, combine.ColumnFragments{Column: col, Fragments: fragments})
		counts = append(counts, len(fragments))
	}
	return columns, condition.RunningProduct(counts), nil
}

// indexedRow tags a result row with its combination index so concurrent
// collection can be sorted back into enumeration order.
type indexedRow struct {
	index int
	row   history.PreviewRow
}

// execute runs one aggregate query per combination through a bounded worker
// pool. Per-combination failures become errored rows; connectivity failures
// and cancellation abort the run.
func (e *Engine) execute(ctx context.Context, req Request, columns []combine.ColumnFragments) ([]history.PreviewRow, int64, error) {
	gen, err := combine.New(columns)
	if err != nil {
		return nil, 0, err
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		mu       sync.Mutex
		rows     []indexedRow
		fatalErr error
	)
	fatal := func(err error) {
		mu.Lock()
		if fatalErr == nil {
			fatalErr = err
		}
		mu.Unlock()
		cancel()
	}

	work := make(chan combine.Combination)
	var wg sync.WaitGroup
	for i := 0; i < e.opts.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for combo := range work {
				row, skip, err := e.runCombination(runCtx, req, combo)
				if err != nil {
					fatal(err)
					return
				}
				if skip {
					continue
				}
				mu.Lock()
				rows = append(rows, indexedRow{index: combo.Index, row: row})
				mu.Unlock()
			}
		}()
	}

	// Dispatch lazily; the check between dispatches is the cancellation point.
dispatch:
	for {
		combo, ok := gen.Next()
		if !ok {
			break
		}
		select {
		case work <- combo:
		case <-runCtx.Done():
			break dispatch
		}
	}
	close(work)
	wg.Wait()

	if fatalErr != nil {
		return nil, 0, fatalErr
	}
	if err := ctx.Err(); err != nil {
		return nil, 0, fmt.Errorf("analysis cancelled: %w", err)
	}

	sort.Slice(rows, func(i, j int) bool { return rows[i].index < rows[j].index })
	var (
		out        = make([]history.PreviewRow, len(rows))
		errorCount int64
	)
	for i, r := range rows {
		out[i] = r.row
		if r.row.Error != "" {
			errorCount++
		}
	}
	return out, errorCount, nil
}

// runCombination executes one combination's aggregate query. skip reports the
// row fell below the minimum matching-row threshold. A returned error is
// run-fatal; per-query failures are recorded on the row instead.
func (e *Engine) runCombination(ctx context.Context, req Request, combo combine.Combination) (history.PreviewRow, bool, error) {
	conditions := make(map[string]string, len(combo.Fragments))
	for _, f := range combo.Fragments {
		conditions[f.Column] = f.Label
	}
	row := history.PreviewRow{Label: combo.Label, Conditions: conditions}

	res, err := e.data.Aggregate(ctx, dataset.AggregateRequest{
		Table:     req.Dataset,
		Predicate: combo.Clause,
		Columns:   req.ResultColumns,
		Stats:     req.stats(),
	})
	if err != nil {
		if dataset.IsUnavailable(err) || ctx.Err() != nil {
			return history.PreviewRow{}, false, err
		}
		e.logger.Warn("combination query failed",
			"combination", combo.Index, "label", combo.Label, "error", err)
		row.Error = err.Error()
		return row, false, nil
	}

	if res.MatchingRows < req.MinMatchingRows {
		return history.PreviewRow{}, true, nil
	}

	row.MatchingRows = res.MatchingRows
	row.Stats = res.Columns

	if req.IDColumn != "" && res.MatchingRows > 0 {
		ids, err := e.data.SampleIDs(ctx, req.Dataset, combo.Clause, req.IDColumn, e.opts.SampleIDLimit)
		if err != nil {
			if dataset.IsUnavailable(err) || ctx.Err() != nil {
				return history.PreviewRow{}, false, err
			}
			e.logger.Warn("sample id fetch failed",
				"combination", combo.Index, "error", err)
		} else {
			row.SampleIDs = formatSampleIDs(ids, res.MatchingRows)
		}
	}
	return row, false, nil
}

// formatSampleIDs joins captured IDs and notes how many matches were not
// captured.
func formatSampleIDs(ids []string, matching int64) string {
	if len(ids) == 0 {
		return ""
	}
	joined := strings.Join(ids, ", ")
	if extra := matching - int64(len(ids)); extra > 0 {
		return fmt.Sprintf("%s ... (%d more)", joined, extra)
	}
	return joined
}

// Status returns the run record for id, preview omitted.
func (e *Engine) Status(ctx context.Context, id string) (*history.Run, error) {
	run, err := e.runs.Run(ctx, id)
	if err != nil {
		return nil, err
	}
	run.Preview = nil
	return run, nil
}

// Preview returns the persisted preview rows of a run.
func (e *Engine) Preview(ctx context.Context, id string) ([]history.PreviewRow, error) {
	run, err := e.runs.Run(ctx, id)
	if err != nil {
		return nil, err
	}
	return run.Preview, nil
}

// History lists past runs, newest first.
func (e *Engine) History(ctx context.Context, limit, offset int) ([]history.Run, error) {
	return e.runs.List(ctx, limit, offset)
}

// DeleteRun removes one run from history.
func (e *Engine) DeleteRun(ctx context.Context, id string) error {
	return e.runs.Delete(ctx, id)
}

// ClearHistory removes all runs from history.
func (e *Engine) ClearHistory(ctx context.Context) error {
	return e.runs.Clear(ctx)
}

// HistoryStats summarizes stored history.
func (e *Engine) HistoryStats(ctx context.Context) (*history.Stats, error) {
	return e.runs.Stats(ctx)
}

// Ping verifies the dataset backend is reachable.
func (e *Engine) Ping(ctx context.Context) error {
	return e.data.Ping(ctx)
}
