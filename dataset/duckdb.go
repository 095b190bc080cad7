package dataset

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	_ "github.com/duckdb/duckdb-go/v2"
)

// DuckDBOptions configures the DuckDB-backed dataset store.
type DuckDBOptions struct {
	// Path is the database file path. Empty opens an in-memory database.
	Path string

	// MaxOpenConns bounds the connection pool and therefore the number of
	// combination queries in flight at once. Defaults to 4.
	MaxOpenConns int

	// Logger for query logging. Uses slog.Default() if nil.
	Logger *slog.Logger
}

// DuckDB is the DuckDB-backed dataset store.
type DuckDB struct {
	db     *sql.DB
	logger *slog.Logger
}

// OpenDuckDB opens the dataset database. The caller owns the returned store
// and must Close it.
func OpenDuckDB(opts DuckDBOptions) (*DuckDB, error) {
	db, err := sql.Open("duckdb", opts.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open duckdb: %w", err)
	}

	maxConns := opts.MaxOpenConns
	if maxConns <= 0 {
		maxConns = 4
	}
	db.SetMaxOpenConns(maxConns)

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &DuckDB{db: db, logger: logger}, nil
}

// NewDuckDB wraps an existing database handle. Useful for tests and for
// sharing a handle with an ingestion pipeline.
func NewDuckDB(db *sql.DB, logger *slog.Logger) *DuckDB {
	if logger == nil {
		logger = slog.Default()
	}
	return &DuckDB{db: db, logger: logger}
}

// Aggregate runs one aggregate query and scans its scalar results.
// Statistics with no data come back as nil pointers.
func (d *DuckDB) Aggregate(ctx context.Context, req AggregateRequest) (*AggregateResult, error) {
	query, err := BuildAggregateQuery(req)
	if err != nil {
		return nil, err
	}
	d.logger.Debug("executing aggregate query", "table", req.Table, "query", query)

	var matchingRows int64
	scans := make([]sql.NullFloat64, len(req.Columns)*len(req.Stats))
	dest := make([]any, 0, 1+len(scans))
	dest = append(dest, &matchingRows)
	for i := range scans {
		dest = append(dest, &scans[i])
	}

	if err := d.db.QueryRowContext(ctx, query).Scan(dest...); err != nil {
		return nil, fmt.Errorf("aggregate query failed: %w", err)
	}

	result := &AggregateResult{
		MatchingRows: matchingRows,
		Columns:      make(map[string]ColumnStats, len(req.Columns)),
	}
	i := 0
	for _, column := range req.Columns {
		stats := make(ColumnStats, len(req.Stats))
		for _, stat := range req.Stats {
			if scans[i].Valid {
				v := scans[i].Float64
				stats[stat] = &v
			} else {
				stats[stat] = nil
			}
			i++
		}
		result.Columns[column] = stats
	}
	return result, nil
}

// SampleIDs fetches up to limit matching ID values as strings.
func (d *DuckDB) SampleIDs(ctx context.Context, table, predicate, idColumn string, limit int) ([]string, error) {
	query, err := BuildSampleQuery(table, predicate, idColumn, limit)
	if err != nil {
		return nil, err
	}

	rows, err := d.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("sample query failed: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id sql.NullString
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan sample id: %w", err)
		}
		if id.Valid {
			ids = append(ids, id.String)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sample query failed: %w", err)
	}
	return ids, nil
}

// Ping verifies backend connectivity. Failures are reported as
// ErrUnavailable so the engine aborts instead of recording per-combination
// errors.
func (d *DuckDB) Ping(ctx context.Context) error {
	if err := d.db.PingContext(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// Close releases the connection pool.
func (d *DuckDB) Close() error {
	return d.db.Close()
}
