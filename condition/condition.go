// Package condition defines per-column filter conditions and compiles them
// into SQL predicate fragments. A condition describes one or more alternative
// filters for a single column (numeric intervals, date cutoffs, categorical
// value groups, OR-combinable comparisons); compilation turns each alternative
// into one Fragment. Fragments of the same column are independent alternatives
// and may overlap.
//
// The set of condition kinds is closed. Adding a new kind means adding a
// variant type here and a compiler case in compile.go.
package condition

import (
	"encoding/json"
	"fmt"
)

// Kind identifies the condition variant.
type Kind string

const (
	KindNumericRange Kind = "numeric_range"
	KindDateRange    Kind = "date_range"
	KindDateBefore   Kind = "date_before"
	KindDateAfter    Kind = "date_after"
	KindDateOn       Kind = "date_on"
	KindCategorical  Kind = "categorical"
	KindOrConditions Kind = "or_conditions"
)

// Definition is the interface implemented by all condition variants.
// Use type switches to access variant data; the compiler matches
// exhaustively over the closed set.
type Definition interface {
	// Kind returns the condition variant identifier.
	Kind() Kind

	// definitionMarker prevents external implementations.
	definitionMarker()
}

// Bound is one numeric interval. Low must not exceed High.
type Bound struct {
	Low  float64 `json:"low"`
	High float64 `json:"high"`
}

// NumericRange splits a column into numeric intervals.
//
// If Ranges is non-empty, each bound pair becomes one fragment. Otherwise
// Count equal-width intervals are derived from Min and Max. Every interval is
// half-open [low, high) except the last, which is closed [low, high], so each
// value in range matches exactly one fragment.
type NumericRange struct {
	Count  int      `json:"count,omitempty"`
	Min    *float64 `json:"min,omitempty"`
	Max    *float64 `json:"max,omitempty"`
	Ranges []Bound  `json:"ranges,omitempty"`
}

func (NumericRange) Kind() Kind        { return KindNumericRange }
func (NumericRange) definitionMarker() {}

// DateBound is one calendar date interval, inclusive on both ends.
// Dates use the 2006-01-02 format.
type DateBound struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// DateRange produces one fragment per date interval.
type DateRange struct {
	Ranges []DateBound `json:"ranges"`
}

func (DateRange) Kind() Kind        { return KindDateRange }
func (DateRange) definitionMarker() {}

// DateBefore produces one strictly-before fragment per listed cutoff date.
type DateBefore struct {
	Dates []string `json:"dates"`
}

func (DateBefore) Kind() Kind        { return KindDateBefore }
func (DateBefore) definitionMarker() {}

// DateAfter produces one strictly-after fragment per listed cutoff date.
type DateAfter struct {
	Dates []string `json:"dates"`
}

func (DateAfter) Kind() Kind        { return KindDateAfter }
func (DateAfter) definitionMarker() {}

// DateOn produces one exact-match fragment per listed date.
type DateOn struct {
	Dates []string `json:"dates"`
}

func (DateOn) Kind() Kind        { return KindDateOn }
func (DateOn) definitionMarker() {}

// Categorical produces one set-membership fragment per value group.
type Categorical struct {
	Groups [][]string `json:"groups"`
}

func (Categorical) Kind() Kind        { return KindCategorical }
func (Categorical) definitionMarker() {}

// Comparison is a single numeric comparison within an OrConditions definition.
type Comparison struct {
	Op    string  `json:"op"`
	Value float64 `json:"value"`
}

// OrConditions produces one fragment per comparison. When more than one
// comparison is given, a final fragment combining them all with OR is
// appended as an additional alternative.
type OrConditions struct {
	Conditions []Comparison `json:"conditions"`
}

func (OrConditions) Kind() Kind        { return KindOrConditions }
func (OrConditions) definitionMarker() {}

// InvalidConditionError reports a malformed condition definition. It names
// the offending column so callers can surface actionable messages before any
// run is created.
type InvalidConditionError struct {
	Column string
	Detail string
}

func (e *InvalidConditionError) Error() string {
	return fmt.Sprintf("invalid condition for column %q: %s", e.Column, e.Detail)
}

func invalidf(column, format string, args ...any) error {
	return &InvalidConditionError{Column: column, Detail: fmt.Sprintf(format, args...)}
}

// MarshalJSON implementations add the kind discriminator so definitions
// round-trip through configuration JSON and hash deterministically. Each
// marshals through a local alias type to avoid recursing into itself.

func (d NumericRange) MarshalJSON() ([]byte, error) {
	type alias NumericRange
	return json.Marshal(struct {
		Kind Kind `json:"kind"`
		alias
	}{d.Kind(), alias(d)})
}

func (d DateRange) MarshalJSON() ([]byte, error) {
	type alias DateRange
	return json.Marshal(struct {
		Kind Kind `json:"kind"`
		alias
	}{d.Kind(), alias(d)})
}

func (d DateBefore) MarshalJSON() ([]byte, error) {
	type alias DateBefore
	return json.Marshal(struct {
		Kind Kind `json:"kind"`
		alias
	}{d.Kind(), alias(d)})
}

func (d DateAfter) MarshalJSON() ([]byte, error) {
	type alias DateAfter
	return json.Marshal(struct {
		Kind Kind `json:"kind"`
		alias
	}{d.Kind(), alias(d)})
}

func (d DateOn) MarshalJSON() ([]byte, error) {
	type alias DateOn
	return json.Marshal(struct {
		Kind Kind `json:"kind"`
		alias
	}{d.Kind(), alias(d)})
}

func (d Categorical) MarshalJSON() ([]byte, error) {
	type alias Categorical
	return json.Marshal(struct {
		Kind Kind `json:"kind"`
		alias
	}{d.Kind(), alias(d)})
}

func (d OrConditions) MarshalJSON() ([]byte, error) {
	type alias OrConditions
	return json.Marshal(struct {
		Kind Kind `json:"kind"`
		alias
	}{d.Kind(), alias(d)})
}

// ParseDefinition decodes a JSON condition definition by its kind
// discriminator. Unknown kinds are rejected.
func ParseDefinition(data []byte) (Definition, error) {
	var probe struct {
		Kind Kind `json:"kind"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, fmt.Errorf("failed to decode condition: %w", err)
	}

	switch probe.Kind {
	case KindNumericRange:
		var d NumericRange
		if err := json.Unmarshal(data, &d); err != nil {
			return nil, fmt.Errorf("failed to decode numeric_range condition: %w", err)
		}
		return d, nil
	case KindDateRange:
		var d DateRange
		if err := json.Unmarshal(data, &d); err != nil {
			return nil, fmt.Errorf("failed to decode date_range condition: %w", err)
		}
		return d, nil
	case KindDateBefore:
		var d DateBefore
		if err := json.Unmarshal(data, &d); err != nil {
			return nil, fmt.Errorf("failed to decode date_before condition: %w", err)
		}
		return d, nil
	case KindDateAfter:
		var d DateAfter
		if err := json.Unmarshal(data, &d); err != nil {
			return nil, fmt.Errorf("failed to decode date_after condition: %w", err)
		}
		return d, nil
	case KindDateOn:
		var d DateOn
		if err := json.Unmarshal(data, &d); err != nil {
			return nil, fmt.Errorf("failed to decode date_on condition: %w", err)
		}
		return d, nil
	case KindCategorical:
		var d Categorical
		if err := json.Unmarshal(data, &d); err != nil {
			return nil, fmt.Errorf("failed to decode categorical condition: %w", err)
		}
		return d, nil
	case KindOrConditions:
		var d OrConditions
		if err := json.Unmarshal(data, &d); err != nil {
			return nil, fmt.Errorf("failed to decode or_conditions condition: %w", err)
		}
		return d, nil
	case "":
		return nil, fmt.Errorf("condition is missing a kind")
	default:
		return nil, fmt.Errorf("unknown condition kind %q", probe.Kind)
	}
}

// Set maps column names to their condition definitions. It decodes each
// entry through ParseDefinition.
type Set map[string]Definition

// UnmarshalJSON decodes a JSON object of column name to condition definition.
func (s *Set) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	out := make(Set, len(raw))
	for column, msg := range raw {
		def, err := ParseDefinition(msg)
		if err != nil {
			return fmt.Errorf("column %q: %w", column, err)
		}
		out[column] = def
	}
	*s = out
	return nil
}
