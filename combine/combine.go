// Package combine lazily enumerates the cartesian product of per-column
// predicate fragments. Combinations are produced one at a time in a fixed
// odometer order (last column varying fastest) so identical configurations
// always enumerate identically; the product is never materialized.
package combine

import (
	"fmt"
	"strings"

	"github.com/PiyushKumar010/Pattern-Recognition/condition"
)

// ColumnFragments pairs a selected column with its compiled fragments,
// in the column's selection order.
type ColumnFragments struct {
	Column    string
	Fragments []condition.Fragment
}

// Combination is one element of the cartesian product: exactly one fragment
// per selected column.
type Combination struct {
	// Index is the ordinal position in enumeration order, starting at 0.
	// Concurrent executors tag results with it so assembly can restore
	// enumeration order.
	Index int

	// Fragments holds the chosen fragment per column, in selection order.
	Fragments []condition.Fragment

	// Label is the composite human-readable label, fragment labels joined
	// in selection order.
	Label string

	// Clause is the composite SQL predicate, fragment clauses conjoined.
	Clause string
}

// Generator enumerates combinations in odometer order. Not safe for
// concurrent use; not restartable.
type Generator struct {
	columns  []ColumnFragments
	odometer []int
	index    int
	total    int
	done     bool
}

// New creates a generator over the given per-column fragment lists.
// Returns an error if no columns are given or any fragment list is empty.
func New(columns []ColumnFragments) (*Generator, error) {
	if len(columns) == 0 {
		return nil, fmt.Errorf("no columns to combine")
	}
	counts := make([]int, len(columns))
	for i, col := range columns {
		if len(col.Fragments) == 0 {
			return nil, fmt.Errorf("column %q has no fragments", col.Column)
		}
		counts[i] = len(col.Fragments)
	}
	return &Generator{
		columns:  columns,
		odometer: make([]int, len(columns)),
		total:    condition.RunningProduct(counts),
	}, nil
}

// Total returns the number of combinations the generator will produce.
func (g *Generator) Total() int { return g.total }

// Next returns the next combination in enumeration order. The second return
// value is false once the product is exhausted.
func (g *Generator) Next() (Combination, bool) {
	if g.done {
		return Combination{}, false
	}

	fragments := make([]condition.Fragment, len(g.columns))
	for i, pos := range g.odometer {
		fragments[i] = g.columns[i].Fragments[pos]
	}
	combo := Combination{
		Index:     g.index,
		Fragments: fragments,
		Label:     compositeLabel(fragments),
		Clause:    compositeClause(fragments),
	}
	g.index++

	// Advance the odometer, last column fastest.
	for i := len(g.odometer) - 1; i >= 0; i-- {
		g.odometer[i]++
		if g.odometer[i] < len(g.columns[i].Fragments) {
			return combo, true
		}
		g.odometer[i] = 0
	}
	g.done = true
	return combo, true
}

// compositeLabel joins fragment labels in selection order.
func compositeLabel(fragments []condition.Fragment) string {
	labels := make([]string, len(fragments))
	for i, f := range fragments {
		labels[i] = f.Label
	}
	return strings.Join(labels, "; ")
}

// compositeClause conjoins fragment clauses. Each clause is parenthesized so
// OR alternatives keep their precedence.
func compositeClause(fragments []condition.Fragment) string {
	if len(fragments) == 0 {
		return "1=1"
	}
	clauses := make([]string, len(fragments))
	for i, f := range fragments {
		clauses[i] = f.Clause
	}
	return "(" + strings.Join(clauses, ") AND (") + ")"
}
