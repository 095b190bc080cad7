package dataset

import (
	"fmt"
	"strings"

	"github.com/PiyushKumar010/Pattern-Recognition/internal/sqlutil"
)

// statFunc maps a statistic to its SQL aggregate over a quoted column
// expression. Standard deviation is the population form.
func statFunc(stat Stat, col string) string {
	switch stat {
	case StatCount:
		return "COUNT(" + col + ")"
	case StatMean:
		return "AVG(" + col + ")"
	case StatSum:
		return "SUM(" + col + ")"
	case StatStdDev:
		return "STDDEV_POP(" + col + ")"
	case StatMin:
		return "MIN(" + col + ")"
	case StatMax:
		return "MAX(" + col + ")"
	}
	return ""
}

// BuildAggregateQuery renders the single-round-trip aggregate query for one
// combination: a COUNT(*) of matching rows followed by every requested
// statistic for every result column, in request order. The scan order of the
// produced query is fixed: matching rows first, then columns × stats.
func BuildAggregateQuery(req AggregateRequest) (string, error) {
	if req.Table == "" {
		return "", fmt.Errorf("table is required")
	}
	for _, stat := range req.Stats {
		if !stat.Valid() {
			return "", fmt.Errorf("unsupported statistic %q", stat)
		}
	}

	parts := make([]string, 0, 1+len(req.Columns)*len(req.Stats))
	parts = append(parts, "COUNT(*) AS matching_rows")
	for _, column := range req.Columns {
		col := sqlutil.QuoteIdentifier(column)
		for _, stat := range req.Stats {
			parts = append(parts, statFunc(stat, col))
		}
	}

	predicate := req.Predicate
	if predicate == "" {
		predicate = "1=1"
	}

	query := "SELECT " + strings.Join(parts, ", ") +
		" FROM " + sqlutil.QuoteIdentifier(req.Table) +
		" WHERE " + predicate
	return query, nil
}

// BuildSampleQuery renders the bounded sample-ID fetch for one combination.
func BuildSampleQuery(table, predicate, idColumn string, limit int) (string, error) {
	if table == "" {
		return "", fmt.Errorf("table is required")
	}
	if idColumn == "" {
		return "", fmt.Errorf("id column is required")
	}
	if limit <= 0 {
		return "", fmt.Errorf("limit must be positive, got %d", limit)
	}
	if predicate == "" {
		predicate = "1=1"
	}
	return fmt.Sprintf("SELECT CAST(%s AS VARCHAR) FROM %s WHERE %s LIMIT %d",
		sqlutil.QuoteIdentifier(idColumn), sqlutil.QuoteIdentifier(table), predicate, limit), nil
}
