package engine

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/PiyushKumar010/Pattern-Recognition/condition"
	"github.com/PiyushKumar010/Pattern-Recognition/dataset"
	"github.com/PiyushKumar010/Pattern-Recognition/history"
)

// Request describes one analysis: which dataset, which columns to combine
// under which conditions, and which statistics to compute.
type Request struct {
	// Dataset is the backend table reference of the ingested dataset.
	Dataset string `json:"dataset"`

	// Columns are the selected filter columns, in selection order. The order
	// fixes combination enumeration order and is part of the config identity.
	Columns []string `json:"columns"`

	// Conditions maps each selected column to its condition definition.
	Conditions condition.Set `json:"conditions"`

	// ResultColumns are the columns statistics are computed over.
	ResultColumns []string `json:"result_columns"`

	// Stats are the requested statistics. Empty means all supported.
	Stats []dataset.Stat `json:"stats,omitempty"`

	// IDColumn, when set, enables sample-ID capture per result row.
	IDColumn string `json:"id_column,omitempty"`

	// MinMatchingRows drops result rows matching fewer rows than this.
	MinMatchingRows int64 `json:"min_matching_rows,omitempty"`
}

// ErrInvalidRequest marks structural request validation failures.
var ErrInvalidRequest = errors.New("invalid analysis request")

// Validate checks structural validity. Condition semantics are validated
// separately during compilation.
func (r Request) Validate() error {
	if r.Dataset == "" {
		return fmt.Errorf("%w: dataset reference is required", ErrInvalidRequest)
	}
	if len(r.Columns) == 0 {
		return fmt.Errorf("%w: at least one filter column is required", ErrInvalidRequest)
	}
	seen := make(map[string]struct{}, len(r.Columns))
	for _, col := range r.Columns {
		if col == "" {
			return fmt.Errorf("%w: filter column name is empty", ErrInvalidRequest)
		}
		if _, dup := seen[col]; dup {
			return fmt.Errorf("%w: filter column %q selected twice", ErrInvalidRequest, col)
		}
		seen[col] = struct{}{}
		if _, ok := r.Conditions[col]; !ok {
			return fmt.Errorf("%w: no condition defined for column %q", ErrInvalidRequest, col)
		}
	}
	if len(r.ResultColumns) == 0 {
		return fmt.Errorf("%w: at least one result column is required", ErrInvalidRequest)
	}
	for _, stat := range r.Stats {
		if !stat.Valid() {
			return fmt.Errorf("%w: unsupported statistic %q", ErrInvalidRequest, stat)
		}
	}
	if r.MinMatchingRows < 0 {
		return fmt.Errorf("%w: min matching rows must not be negative", ErrInvalidRequest)
	}
	return nil
}

// stats returns the effective statistic set.
func (r Request) stats() []dataset.Stat {
	if len(r.Stats) == 0 {
		return dataset.AllStats
	}
	return r.Stats
}

// fingerprint returns the request's canonical JSON encoding and its content
// hash. Condition map entries hash order-independently; column and list
// order is preserved because it is semantically meaningful.
func (r Request) fingerprint() ([]byte, string, error) {
	configJSON, err := json.Marshal(r)
	if err != nil {
		return nil, "", fmt.Errorf("failed to encode request: %w", err)
	}
	hash, err := history.Fingerprint(r)
	if err != nil {
		return nil, "", err
	}
	return configJSON, hash, nil
}

// LimitExceededError reports a request whose combination count exceeds the
// configured ceiling. Returned before any run record exists.
type LimitExceededError struct {
	Total   int
	Ceiling int
}

func (e *LimitExceededError) Error() string {
	return fmt.Sprintf("combination count %d exceeds limit %d", e.Total, e.Ceiling)
}
