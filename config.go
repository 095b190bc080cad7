package patternrec

import (
	"fmt"
	"log/slog"

	"github.com/PiyushKumar010/Pattern-Recognition/engine"
)

// Config configures a Service. Validate is called by Open; zero values take
// the documented defaults.
type Config struct {
	// DatasetPath is the DuckDB database file holding ingested datasets.
	// Empty opens an in-memory database.
	DatasetPath string

	// HistoryPath is the SQLite database file for run history and the result
	// cache. Empty defaults to "history.db"; ":memory:" keeps history
	// in-process only.
	HistoryPath string

	// MaxTotalCombinations caps the combination count of a single run.
	MaxTotalCombinations int

	// PreviewRowLimit bounds how many result rows are persisted per run.
	PreviewRowLimit int

	// Workers bounds concurrent combination queries per run. Also sizes the
	// dataset connection pool.
	Workers int

	// DefaultFragmentEstimate is the assumed fragment count for columns not
	// yet configured, used by limit feedback.
	DefaultFragmentEstimate int

	// Logger receives structured logs. Defaults to slog.Default().
	Logger *slog.Logger
}

func (c *Config) validate() error {
	if c.MaxTotalCombinations < 0 {
		return fmt.Errorf("max total combinations must not be negative")
	}
	if c.PreviewRowLimit < 0 {
		return fmt.Errorf("preview row limit must not be negative")
	}
	if c.Workers < 0 {
		return fmt.Errorf("workers must not be negative")
	}
	if c.MaxTotalCombinations == 0 {
		c.MaxTotalCombinations = engine.DefaultMaxTotalCombinations
	}
	if c.PreviewRowLimit == 0 {
		c.PreviewRowLimit = engine.DefaultPreviewRowLimit
	}
	if c.Workers == 0 {
		c.Workers = engine.DefaultWorkers
	}
	if c.HistoryPath == "" {
		c.HistoryPath = "history.db"
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	return nil
}
