package history

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

const schema = `
CREATE TABLE IF NOT EXISTS datasets (
	table_ref        TEXT PRIMARY KEY,
	first_seen_at    TIMESTAMP NOT NULL,
	last_accessed_at TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS analysis_runs (
	id                TEXT PRIMARY KEY,
	dataset_ref       TEXT NOT NULL REFERENCES datasets(table_ref),
	config_json       TEXT NOT NULL,
	config_hash       TEXT NOT NULL,
	status            TEXT NOT NULL,
	started_at        TIMESTAMP NOT NULL,
	completed_at      TIMESTAMP,
	execution_time_ms INTEGER NOT NULL DEFAULT 0,
	result_row_count  INTEGER NOT NULL DEFAULT 0,
	error_count       INTEGER NOT NULL DEFAULT 0,
	result_preview    BLOB,
	error_message     TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_runs_cache
	ON analysis_runs(dataset_ref, config_hash, status);
CREATE INDEX IF NOT EXISTS idx_runs_started
	ON analysis_runs(started_at);
`

// SQLite is the SQLite-backed history store.
type SQLite struct {
	db     *sql.DB
	codec  *PreviewCodec
	logger *slog.Logger
}

// OpenSQLite opens (and if necessary initializes) the history database.
// Path ":memory:" opens an in-memory store, useful for tests.
func OpenSQLite(path string, logger *slog.Logger) (*SQLite, error) {
	if logger == nil {
		logger = slog.Default()
	}

	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open history db: %w", err)
	}
	// SQLite serializes writers; a single connection avoids lock contention
	// between the cache check and the run insert.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize history schema: %w", err)
	}

	codec, err := NewPreviewCodec()
	if err != nil {
		db.Close()
		return nil, err
	}

	return &SQLite{db: db, codec: codec, logger: logger}, nil
}

// CreateRun inserts a pending run, registering its dataset reference first.
// The whole operation runs in one transaction so concurrent identical
// submissions cannot corrupt the store.
func (s *SQLite) CreateRun(ctx context.Context, run *Run) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO datasets (table_ref, first_seen_at, last_accessed_at) VALUES (?, ?, ?)
		 ON CONFLICT(table_ref) DO UPDATE SET last_accessed_at = excluded.last_accessed_at`,
		run.Dataset, now, now,
	); err != nil {
		return fmt.Errorf("failed to register dataset: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO analysis_runs
			(id, dataset_ref, config_json, config_hash, status, started_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		run.ID, run.Dataset, string(run.ConfigJSON), run.ConfigHash, string(run.Status), run.StartedAt.UTC(),
	); err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}

	return tx.Commit()
}

// CompleteRun transitions a pending run to completed, recording timing,
// row count, error count, and the encoded preview.
func (s *SQLite) CompleteRun(ctx context.Context, id string, done Completion) error {
	blob, err := s.codec.Encode(done.Preview)
	if err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE analysis_runs
		 SET status = ?, completed_at = ?, execution_time_ms = ?,
		     result_row_count = ?, error_count = ?, result_preview = ?
		 WHERE id = ? AND status = ?`,
		string(StatusCompleted), time.Now().UTC(), done.ExecutionTime.Milliseconds(),
		done.RowCount, done.ErrorCount, blob, id, string(StatusPending),
	)
	if err != nil {
		return fmt.Errorf("failed to complete run: %w", err)
	}
	return s.requireUpdated(res, id)
}

// FailRun transitions a pending run to failed with the given message.
func (s *SQLite) FailRun(ctx context.Context, id, message string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE analysis_runs
		 SET status = ?, completed_at = ?, error_message = ?
		 WHERE id = ? AND status = ?`,
		string(StatusFailed), time.Now().UTC(), message, id, string(StatusPending),
	)
	if err != nil {
		return fmt.Errorf("failed to mark run failed: %w", err)
	}
	return s.requireUpdated(res, id)
}

// requireUpdated guards terminal-state finality: a completed or failed run
// is never updated again.
func (s *SQLite) requireUpdated(res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("run %s is not pending: %w", id, ErrRunNotFound)
	}
	return nil
}

// FindCached returns the most recent completed run for (dataset, hash),
// or nil on a miss.
func (s *SQLite) FindCached(ctx context.Context, datasetRef, configHash string) (*Run, error) {
	row := s.db.QueryRowContext(ctx,
		selectRun+` WHERE dataset_ref = ? AND config_hash = ? AND status = ?
		 ORDER BY started_at DESC LIMIT 1`,
		datasetRef, configHash, string(StatusCompleted),
	)
	run, err := s.scanRun(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return run, err
}

const selectRun = `
SELECT id, dataset_ref, config_json, config_hash, status, started_at,
       completed_at, execution_time_ms, result_row_count, error_count,
       result_preview, error_message
FROM analysis_runs`

type rowScanner interface {
	Scan(dest ...any) error
}

func (s *SQLite) scanRun(row rowScanner) (*Run, error) {
	var (
		run         Run
		configJSON  string
		status      string
		completedAt sql.NullTime
		execMs      int64
		preview     []byte
	)
	err := row.Scan(&run.ID, &run.Dataset, &configJSON, &run.ConfigHash, &status,
		&run.StartedAt, &completedAt, &execMs, &run.RowCount, &run.ErrorCount,
		&preview, &run.ErrorMessage)
	if err != nil {
		return nil, err
	}

	run.ConfigJSON = []byte(configJSON)
	run.Status = Status(status)
	if completedAt.Valid {
		t := completedAt.Time
		run.CompletedAt = &t
	}
	run.ExecutionTime = time.Duration(execMs) * time.Millisecond

	if len(preview) > 0 {
		rows, err := s.codec.Decode(preview)
		if err != nil {
			return nil, err
		}
		run.Preview = rows
	}
	return &run, nil
}

// Run returns a run by ID.
func (s *SQLite) Run(ctx context.Context, id string) (*Run, error) {
	row := s.db.QueryRowContext(ctx, selectRun+` WHERE id = ?`, id)
	run, err := s.scanRun(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("run %s: %w", id, ErrRunNotFound)
	}
	return run, err
}

// List returns runs ordered newest first.
func (s *SQLite) List(ctx context.Context, limit, offset int) ([]Run, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	rows, err := s.db.QueryContext(ctx,
		selectRun+` ORDER BY started_at DESC LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := s.scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *run)
	}
	return runs, rows.Err()
}

// Delete removes one run from history.
func (s *SQLite) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM analysis_runs WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete run: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check delete: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("run %s: %w", id, ErrRunNotFound)
	}
	return nil
}

// Clear removes all runs from history.
func (s *SQLite) Clear(ctx context.Context) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM analysis_runs`)
	if err != nil {
		return fmt.Errorf("failed to clear history: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil {
		s.logger.Info("history cleared", "runs", n)
	}
	return nil
}

// Stats summarizes the stored history.
func (s *SQLite) Stats(ctx context.Context) (*Stats, error) {
	var (
		stats Stats
		avgMs sql.NullFloat64
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
		       COUNT(DISTINCT dataset_ref),
		       SUM(CASE WHEN status = ? THEN 1 ELSE 0 END),
		       SUM(CASE WHEN status = ? THEN 1 ELSE 0 END),
		       AVG(CASE WHEN status = ? THEN execution_time_ms END)
		FROM analysis_runs`,
		string(StatusCompleted), string(StatusFailed), string(StatusCompleted),
	).Scan(&stats.TotalRuns, &stats.TotalDatasets, &stats.CompletedRuns, &stats.FailedRuns, &avgMs)
	if err != nil {
		return nil, fmt.Errorf("failed to compute history stats: %w", err)
	}
	if avgMs.Valid {
		stats.AvgExecutionTimeMs = avgMs.Float64
	}
	return &stats, nil
}

// Close releases the database and codec.
func (s *SQLite) Close() error {
	s.codec.Close()
	return s.db.Close()
}
