// Package dataset provides read access to ingested tabular datasets through
// a relational backend. The engine issues exactly one aggregate query per
// combination; only aggregated scalars cross this boundary, never row sets.
package dataset

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"net"
)

// Stat identifies one requested aggregate statistic.
type Stat string

const (
	StatCount  Stat = "count"
	StatMean   Stat = "mean"
	StatSum    Stat = "sum"
	StatStdDev Stat = "stddev"
	StatMin    Stat = "min"
	StatMax    Stat = "max"
)

// AllStats lists every supported statistic in canonical order.
var AllStats = []Stat{StatCount, StatMean, StatSum, StatStdDev, StatMin, StatMax}

// Valid reports whether s is a supported statistic.
func (s Stat) Valid() bool {
	switch s {
	case StatCount, StatMean, StatSum, StatStdDev, StatMin, StatMax:
		return true
	}
	return false
}

// AggregateRequest describes one aggregate query over a dataset table.
type AggregateRequest struct {
	// Table is the backend table identifier assigned at ingestion time.
	Table string

	// Predicate is the WHERE clause body. Empty means all rows.
	Predicate string

	// Columns are the result columns statistics are computed over.
	Columns []string

	// Stats are the requested statistics, applied to every result column.
	Stats []Stat
}

// ColumnStats holds the computed statistics for one result column. A nil
// entry means the statistic had no data to aggregate (zero matching rows or
// all-NULL values), which is distinguishable from a true zero.
type ColumnStats map[Stat]*float64

// AggregateResult is the outcome of one aggregate query.
type AggregateResult struct {
	// MatchingRows is the number of rows the predicate matched.
	MatchingRows int64

	// Columns maps each requested result column to its statistics.
	Columns map[string]ColumnStats
}

// Store is the dataset backend contract. Implementations must be safe for
// concurrent use; the connection pool behind a Store bounds how many
// combination queries may run at once.
type Store interface {
	// Aggregate runs one aggregate query and returns its scalar results.
	Aggregate(ctx context.Context, req AggregateRequest) (*AggregateResult, error)

	// SampleIDs returns up to limit values of idColumn for rows matching
	// the predicate, in storage order.
	SampleIDs(ctx context.Context, table, predicate, idColumn string, limit int) ([]string, error)

	// Ping verifies backend connectivity.
	Ping(ctx context.Context) error

	// Close releases backend resources.
	Close() error
}

// ErrUnavailable indicates a connectivity-level backend failure. Unlike a
// per-query failure, it aborts the whole run.
var ErrUnavailable = errors.New("dataset backend unavailable")

// IsUnavailable classifies an error as connectivity-level. Per-query failures
// (bad column, type mismatch) are not connectivity failures and must be
// recorded on their combination instead of aborting the run.
func IsUnavailable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrUnavailable) ||
		errors.Is(err, driver.ErrBadConn) ||
		errors.Is(err, sql.ErrConnDone) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}
