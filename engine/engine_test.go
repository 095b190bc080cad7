package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/PiyushKumar010/Pattern-Recognition/condition"
	"github.com/PiyushKumar010/Pattern-Recognition/dataset"
	"github.com/PiyushKumar010/Pattern-Recognition/history"
)

type fakeDataset struct {
	mu        sync.Mutex
	queries   []string
	aggregate func(req dataset.AggregateRequest) (*dataset.AggregateResult, error)
	sampleIDs func(predicate string) ([]string, error)
}

func (f *fakeDataset) Aggregate(ctx context.Context, req dataset.AggregateRequest) (*dataset.AggregateResult, error) {
	f.mu.Lock()
	f.queries = append(f.queries, req.Predicate)
	f.mu.Unlock()
	if f.aggregate != nil {
		return f.aggregate(req)
	}
	return &dataset.AggregateResult{MatchingRows: 10, Columns: map[string]dataset.ColumnStats{}}, nil
}

func (f *fakeDataset) SampleIDs(ctx context.Context, table, predicate, idColumn string, limit int) ([]string, error) {
	if f.sampleIDs != nil {
		return f.sampleIDs(predicate)
	}
	return nil, nil
}

func (f *fakeDataset) Ping(ctx context.Context) error { return nil }
func (f *fakeDataset) Close() error                   { return nil }

func (f *fakeDataset) queryCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.queries)
}

type fakeHistory struct {
	mu   sync.Mutex
	runs map[string]*history.Run
}

func newFakeHistory() *fakeHistory {
	return &fakeHistory{runs: make(map[string]*history.Run)}
}

func (f *fakeHistory) CreateRun(ctx context.Context, run *history.Run) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	copied := *run
	f.runs[run.ID] = &copied
	return nil
}

func (f *fakeHistory) CompleteRun(ctx context.Context, id string, done history.Completion) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	run, ok := f.runs[id]
	if !ok || run.Status != history.StatusPending {
		return history.ErrRunNotFound
	}
	run.Status = history.StatusCompleted
	run.ExecutionTime = done.ExecutionTime
	run.RowCount = done.RowCount
	run.ErrorCount = done.ErrorCount
	run.Preview = done.Preview
	return nil
}

func (f *fakeHistory) FailRun(ctx context.Context, id, message string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	run, ok := f.runs[id]
	if !ok || run.Status != history.StatusPending {
		return history.ErrRunNotFound
	}
	run.Status = history.StatusFailed
	run.ErrorMessage = message
	return nil
}

func (f *fakeHistory) FindCached(ctx context.Context, datasetRef, configHash string) (*history.Run, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, run := range f.runs {
		if run.Dataset == datasetRef && run.ConfigHash == configHash && run.Status == history.StatusCompleted {
			copied := *run
			return &copied, nil
		}
	}
	return nil, nil
}

func (f *fakeHistory) Run(ctx context.Context, id string) (*history.Run, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	run, ok := f.runs[id]
	if !ok {
		return nil, history.ErrRunNotFound
	}
	copied := *run
	return &copied, nil
}

func (f *fakeHistory) List(ctx context.Context, limit, offset int) ([]history.Run, error) {
	return nil, nil
}
func (f *fakeHistory) Delete(ctx context.Context, id string) error { return nil }
func (f *fakeHistory) Clear(ctx context.Context) error             { return nil }
func (f *fakeHistory) Stats(ctx context.Context) (*history.Stats, error) {
	return &history.Stats{}, nil
}
func (f *fakeHistory) Close() error { return nil }

func (f *fakeHistory) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.runs)
}

func testRequest() Request {
	return Request{
		Dataset: "ds_orders",
		Columns: []string{"region", "tier"},
		Conditions: condition.Set{
			"region": condition.Categorical{Groups: [][]string{{"US"}, {"EU"}}},
			"tier":   condition.Categorical{Groups: [][]string{{"gold"}, {"silver"}, {"bronze"}}},
		},
		ResultColumns: []string{"revenue"},
		Stats:         []dataset.Stat{dataset.StatCount, dataset.StatMean},
	}
}

func newTestEngine(t *testing.T, data dataset.Store, runs history.Store) *Engine {
	t.Helper()
	eng, err := New(data, runs, Options{Logger: slog.Default()})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return eng
}

func TestSubmitRunsAllCombinations(t *testing.T) {
	data := &fakeDataset{}
	runs := newFakeHistory()
	eng := newTestEngine(t, data, runs)

	res, err := eng.Submit(context.Background(), testRequest())
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}

	if res.TotalCombinations != 6 {
		t.Errorf("total = %d, want 6", res.TotalCombinations)
	}
	if res.RowCount != 6 {
		t.Errorf("row count = %d, want 6", res.RowCount)
	}
	if res.ServedFromCache {
		t.Error("first submit must not be a cache hit")
	}
	if data.queryCount() != 6 {
		t.Errorf("issued %d queries, want 6", data.queryCount())
	}
	if res.Status != history.StatusCompleted {
		t.Errorf("status = %q, want completed", res.Status)
	}

	// Rows come back in enumeration order regardless of worker scheduling.
	wantFirst := "region = US; tier = gold"
	if res.Rows[0].Label != wantFirst {
		t.Errorf("first row label = %q, want %q", res.Rows[0].Label, wantFirst)
	}
	wantLast := "region = EU; tier = bronze"
	if res.Rows[5].Label != wantLast {
		t.Errorf("last row label = %q, want %q", res.Rows[5].Label, wantLast)
	}

	run, err := runs.Run(context.Background(), res.RunID)
	if err != nil {
		t.Fatalf("recorded run not found: %v", err)
	}
	if run.Status != history.StatusCompleted {
		t.Errorf("recorded status = %q, want completed", run.Status)
	}
}

func TestSubmitServedFromCache(t *testing.T) {
	data := &fakeDataset{}
	runs := newFakeHistory()
	eng := newTestEngine(t, data, runs)

	req := testRequest()
	first, err := eng.Submit(context.Background(), req)
	if err != nil {
		t.Fatalf("first Submit failed: %v", err)
	}
	queriesAfterFirst := data.queryCount()

	second, err := eng.Submit(context.Background(), req)
	if err != nil {
		t.Fatalf("second Submit failed: %v", err)
	}
	if !second.ServedFromCache {
		t.Error("identical request should be served from cache")
	}
	if second.RunID != first.RunID {
		t.Errorf("cache hit returned run %s, want %s", second.RunID, first.RunID)
	}
	if data.queryCount() != queriesAfterFirst {
		t.Errorf("cache hit issued %d extra queries", data.queryCount()-queriesAfterFirst)
	}
	if runs.count() != 1 {
		t.Errorf("cache hit created a new run record, have %d", runs.count())
	}
}

func TestSubmitLimitExceeded(t *testing.T) {
	data := &fakeDataset{}
	runs := newFakeHistory()
	eng, err := New(data, runs, Options{MaxTotalCombinations: 5})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	_, err = eng.Submit(context.Background(), testRequest()) // 6 combinations
	var limitErr *LimitExceededError
	if !errors.As(err, &limitErr) {
		t.Fatalf("expected LimitExceededError, got %v", err)
	}
	if limitErr.Total != 6 || limitErr.Ceiling != 5 {
		t.Errorf("error = %+v, want total 6 ceiling 5", limitErr)
	}
	if data.queryCount() != 0 {
		t.Error("ceiling check must run before any query")
	}
	if runs.count() != 0 {
		t.Error("ceiling failure must not create a run record")
	}
}

func TestSubmitValidation(t *testing.T) {
	eng := newTestEngine(t, &fakeDataset{}, newFakeHistory())

	tests := []struct {
		name   string
		mutate func(*Request)
	}{
		{"missing dataset", func(r *Request) { r.Dataset = "" }},
		{"no columns", func(r *Request) { r.Columns = nil }},
		{"duplicate column", func(r *Request) { r.Columns = []string{"region", "region"} }},
		{"missing condition", func(r *Request) { r.Columns = append(r.Columns, "extra") }},
		{"no result columns", func(r *Request) { r.ResultColumns = nil }},
		{"bad stat", func(r *Request) { r.Stats = []dataset.Stat{"median"} }},
		{"negative min rows", func(r *Request) { r.MinMatchingRows = -1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := testRequest()
			tt.mutate(&req)
			if _, err := eng.Submit(context.Background(), req); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestSubmitRecordsPerCombinationErrors(t *testing.T) {
	var calls int
	var mu sync.Mutex
	data := &fakeDataset{
		aggregate: func(req dataset.AggregateRequest) (*dataset.AggregateResult, error) {
			mu.Lock()
			calls++
			n := calls
			mu.Unlock()
			if n == 1 {
				return nil, fmt.Errorf(`column "revenue" has type VARCHAR`)
			}
			return &dataset.AggregateResult{MatchingRows: 3}, nil
		},
	}
	runs := newFakeHistory()
	eng := newTestEngine(t, data, runs)

	res, err := eng.Submit(context.Background(), testRequest())
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	if res.Status != history.StatusCompleted {
		t.Errorf("status = %q; one errored combination must not fail the run", res.Status)
	}
	if res.ErrorCount != 1 {
		t.Errorf("error count = %d, want 1", res.ErrorCount)
	}
	if res.RowCount != 6 {
		t.Errorf("row count = %d, want 6 (errored row stays visible)", res.RowCount)
	}

	errored := 0
	for _, row := range res.Rows {
		if row.Error != "" {
			errored++
		}
	}
	if errored != 1 {
		t.Errorf("found %d errored rows, want 1", errored)
	}
}

func TestSubmitFatalOnUnavailable(t *testing.T) {
	data := &fakeDataset{
		aggregate: func(req dataset.AggregateRequest) (*dataset.AggregateResult, error) {
			return nil, fmt.Errorf("query: %w", dataset.ErrUnavailable)
		},
	}
	runs := newFakeHistory()
	eng := newTestEngine(t, data, runs)

	_, err := eng.Submit(context.Background(), testRequest())
	if err == nil {
		t.Fatal("expected run to fail")
	}
	if !errors.Is(err, dataset.ErrUnavailable) {
		t.Errorf("error = %v, want wrapped ErrUnavailable", err)
	}

	if runs.count() != 1 {
		t.Fatalf("expected 1 run record, have %d", runs.count())
	}
	for _, run := range runs.runs {
		if run.Status != history.StatusFailed {
			t.Errorf("run status = %q, want failed", run.Status)
		}
		if run.ErrorMessage == "" {
			t.Error("failed run should carry an error message")
		}
	}
}

func TestSubmitMinMatchingRows(t *testing.T) {
	var calls int
	var mu sync.Mutex
	data := &fakeDataset{
		aggregate: func(req dataset.AggregateRequest) (*dataset.AggregateResult, error) {
			mu.Lock()
			calls++
			n := calls
			mu.Unlock()
			if n%2 == 0 {
				return &dataset.AggregateResult{MatchingRows: 1}, nil
			}
			return &dataset.AggregateResult{MatchingRows: 50}, nil
		},
	}
	eng := newTestEngine(t, data, newFakeHistory())

	req := testRequest()
	req.MinMatchingRows = 10
	res, err := eng.Submit(context.Background(), req)
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	if res.RowCount != 3 {
		t.Errorf("row count = %d, want 3 (half skipped)", res.RowCount)
	}
	for _, row := range res.Rows {
		if row.MatchingRows < 10 {
			t.Errorf("row %q kept with %d matches", row.Label, row.MatchingRows)
		}
	}
}

func TestSubmitSampleIDs(t *testing.T) {
	data := &fakeDataset{
		aggregate: func(req dataset.AggregateRequest) (*dataset.AggregateResult, error) {
			return &dataset.AggregateResult{MatchingRows: 25}, nil
		},
		sampleIDs: func(predicate string) ([]string, error) {
			ids := make([]string, 20)
			for i := range ids {
				ids[i] = fmt.Sprintf("%d", i+1)
			}
			return ids, nil
		},
	}
	eng := newTestEngine(t, data, newFakeHistory())

	req := testRequest()
	req.IDColumn = "order_id"
	res, err := eng.Submit(context.Background(), req)
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	for _, row := range res.Rows {
		if !strings.HasSuffix(row.SampleIDs, " ... (5 more)") {
			t.Errorf("sample ids = %q, want '... (5 more)' suffix", row.SampleIDs)
		}
		if !strings.HasPrefix(row.SampleIDs, "1, 2, 3") {
			t.Errorf("sample ids = %q, want leading ids", row.SampleIDs)
		}
	}
}

func TestSubmitCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	data := &fakeDataset{
		aggregate: func(req dataset.AggregateRequest) (*dataset.AggregateResult, error) {
			cancel()
			return &dataset.AggregateResult{MatchingRows: 1}, nil
		},
	}
	runs := newFakeHistory()
	eng := newTestEngine(t, data, runs)

	_, err := eng.Submit(ctx, testRequest())
	if err == nil {
		t.Fatal("expected cancellation error")
	}
	if !errors.Is(err, context.Canceled) {
		t.Errorf("error = %v, want context.Canceled", err)
	}

	// The terminal state is recorded despite the cancelled request context.
	for _, run := range runs.runs {
		if run.Status != history.StatusFailed {
			t.Errorf("run status = %q, want failed", run.Status)
		}
	}
}

func TestFormatSampleIDs(t *testing.T) {
	tests := []struct {
		name     string
		ids      []string
		matching int64
		want     string
	}{
		{"empty", nil, 0, ""},
		{"all captured", []string{"a", "b"}, 2, "a, b"},
		{"truncated", []string{"a", "b"}, 7, "a, b ... (5 more)"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := formatSampleIDs(tt.ids, tt.matching); got != tt.want {
				t.Errorf("formatSampleIDs = %q, want %q", got, tt.want)
			}
		})
	}
}
