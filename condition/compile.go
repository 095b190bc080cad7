package condition

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/PiyushKumar010/Pattern-Recognition/internal/sqlutil"
)

// DateLayout is the display and wire format for condition dates.
const DateLayout = "2006-01-02"

// Fragment is one atomic predicate compiled from a condition definition.
// Label is the human-readable description shown in result rows; Clause is
// the SQL predicate body (no WHERE keyword). Fragments are immutable once
// compiled.
type Fragment struct {
	Column string
	Label  string
	Clause string
}

// Compile translates one column's condition definition into its ordered list
// of predicate fragments. The translation is structural: fragments defined by
// the user are never dropped or merged. Returns *InvalidConditionError for
// malformed definitions.
func Compile(column string, def Definition) ([]Fragment, error) {
	if column == "" {
		return nil, invalidf(column, "column name is empty")
	}
	if def == nil {
		return nil, invalidf(column, "no condition defined")
	}

	switch d := def.(type) {
	case NumericRange:
		return compileNumericRange(column, d)
	case DateRange:
		return compileDateRange(column, d)
	case DateBefore:
		return compileDateList(column, d.Dates, "before")
	case DateAfter:
		return compileDateList(column, d.Dates, "after")
	case DateOn:
		return compileDateList(column, d.Dates, "on")
	case Categorical:
		return compileCategorical(column, d)
	case OrConditions:
		return compileOrConditions(column, d)
	default:
		return nil, invalidf(column, "unsupported condition kind %q", def.Kind())
	}
}

// compileNumericRange produces one fragment per interval. Explicit bound
// pairs win over equal-width partitioning. Every interval is [low, high)
// except the last, which is [low, high], so each in-range value matches
// exactly one fragment.
func compileNumericRange(column string, d NumericRange) ([]Fragment, error) {
	bounds := d.Ranges
	if len(bounds) == 0 {
		if d.Count <= 0 {
			return nil, invalidf(column, "numeric range count must be positive, got %d", d.Count)
		}
		if d.Min == nil || d.Max == nil {
			return nil, invalidf(column, "numeric range needs explicit ranges or min/max bounds")
		}
		if *d.Min > *d.Max {
			return nil, invalidf(column, "numeric bounds are inverted: min %v > max %v", *d.Min, *d.Max)
		}
		width := (*d.Max - *d.Min) / float64(d.Count)
		bounds = make([]Bound, d.Count)
		for i := 0; i < d.Count; i++ {
			low := *d.Min + width*float64(i)
			high := low + width
			if i == d.Count-1 {
				high = *d.Max
			}
			bounds[i] = Bound{Low: low, High: high}
		}
	}

	col := sqlutil.QuoteIdentifier(column)
	fragments := make([]Fragment, 0, len(bounds))
	for i, b := range bounds {
		if b.Low > b.High {
			return nil, invalidf(column, "range %d is inverted: low %v > high %v", i+1, b.Low, b.High)
		}
		last := i == len(bounds)-1
		var clause, label string
		if last {
			clause = col + " >= " + formatFloat(b.Low) + " AND " + col + " <= " + formatFloat(b.High)
			label = fmt.Sprintf("%s: [%.2f to %.2f]", column, b.Low, b.High)
		} else {
			clause = col + " >= " + formatFloat(b.Low) + " AND " + col + " < " + formatFloat(b.High)
			label = fmt.Sprintf("%s: [%.2f to %.2f)", column, b.Low, b.High)
		}
		fragments = append(fragments, Fragment{Column: column, Label: label, Clause: clause})
	}
	return fragments, nil
}

// compileDateRange produces one inclusive BETWEEN fragment per date interval.
func compileDateRange(column string, d DateRange) ([]Fragment, error) {
	if len(d.Ranges) == 0 {
		return nil, invalidf(column, "date range list is empty")
	}

	col := dateExpr(column)
	fragments := make([]Fragment, 0, len(d.Ranges))
	for i, r := range d.Ranges {
		start, err := parseDate(column, r.Start)
		if err != nil {
			return nil, err
		}
		end, err := parseDate(column, r.End)
		if err != nil {
			return nil, err
		}
		if start.After(end) {
			return nil, invalidf(column, "date range %d is inverted: %s > %s", i+1, r.Start, r.End)
		}
		clause := col + " BETWEEN " + dateLiteral(start) + " AND " + dateLiteral(end)
		label := fmt.Sprintf("%s: %s to %s", column, start.Format(DateLayout), end.Format(DateLayout))
		fragments = append(fragments, Fragment{Column: column, Label: label, Clause: clause})
	}
	return fragments, nil
}

// compileDateList produces one fragment per listed date for the
// before/after/on variants.
func compileDateList(column string, dates []string, op string) ([]Fragment, error) {
	if len(dates) == 0 {
		return nil, invalidf(column, "date list is empty")
	}

	var sqlOp string
	switch op {
	case "before":
		sqlOp = " < "
	case "after":
		sqlOp = " > "
	case "on":
		sqlOp = " = "
	}

	col := dateExpr(column)
	fragments := make([]Fragment, 0, len(dates))
	for _, raw := range dates {
		date, err := parseDate(column, raw)
		if err != nil {
			return nil, err
		}
		clause := col + sqlOp + dateLiteral(date)
		label := fmt.Sprintf("%s %s %s", column, op, date.Format(DateLayout))
		fragments = append(fragments, Fragment{Column: column, Label: label, Clause: clause})
	}
	return fragments, nil
}

// compileCategorical produces one IN-membership fragment per value group.
func compileCategorical(column string, d Categorical) ([]Fragment, error) {
	if len(d.Groups) == 0 {
		return nil, invalidf(column, "categorical groups are empty")
	}

	col := sqlutil.QuoteIdentifier(column)
	fragments := make([]Fragment, 0, len(d.Groups))
	for i, group := range d.Groups {
		if len(group) == 0 {
			return nil, invalidf(column, "categorical group %d is empty", i+1)
		}
		values := make([]string, len(group))
		for j, v := range group {
			values[j] = sqlutil.QuoteLiteral(v)
		}
		clause := col + " IN (" + strings.Join(values, ", ") + ")"
		fragments = append(fragments, Fragment{
			Column: column,
			Label:  categoricalLabel(column, group),
			Clause: clause,
		})
	}
	return fragments, nil
}

// categoricalLabel formats a value group for display, truncating after
// three values.
func categoricalLabel(column string, group []string) string {
	switch {
	case len(group) == 1:
		return fmt.Sprintf("%s = %s", column, group[0])
	case len(group) <= 3:
		return fmt.Sprintf("%s in [%s]", column, strings.Join(group, ", "))
	default:
		return fmt.Sprintf("%s in [%s...] (%d values)", column, strings.Join(group[:3], ", "), len(group))
	}
}

// compileOrConditions produces one fragment per comparison, plus one combined
// OR fragment when more than one comparison is given.
func compileOrConditions(column string, d OrConditions) ([]Fragment, error) {
	if len(d.Conditions) == 0 {
		return nil, invalidf(column, "comparison list is empty")
	}

	col := sqlutil.QuoteIdentifier(column)
	clauses := make([]string, 0, len(d.Conditions))
	labels := make([]string, 0, len(d.Conditions))
	fragments := make([]Fragment, 0, len(d.Conditions)+1)
	for _, c := range d.Conditions {
		if !validComparisonOp(c.Op) {
			return nil, invalidf(column, "unknown comparison operator %q", c.Op)
		}
		clause := col + " " + c.Op + " " + formatFloat(c.Value)
		label := fmt.Sprintf("%s %s %.2f", column, c.Op, c.Value)
		clauses = append(clauses, clause)
		labels = append(labels, label)
		fragments = append(fragments, Fragment{Column: column, Label: label, Clause: clause})
	}

	if len(d.Conditions) > 1 {
		fragments = append(fragments, Fragment{
			Column: column,
			Label:  "(" + strings.Join(labels, " OR ") + ")",
			Clause: "(" + strings.Join(clauses, " OR ") + ")",
		})
	}
	return fragments, nil
}

func validComparisonOp(op string) bool {
	switch op {
	case ">", "<", ">=", "<=", "=", "<>":
		return true
	}
	return false
}

// dateExpr casts a column to DATE so date-typed and timestamp-typed columns
// compare the same way.
func dateExpr(column string) string {
	return "CAST(" + sqlutil.QuoteIdentifier(column) + " AS DATE)"
}

func dateLiteral(t time.Time) string {
	return "DATE '" + t.Format(DateLayout) + "'"
}

func parseDate(column, raw string) (time.Time, error) {
	t, err := time.Parse(DateLayout, raw)
	if err != nil {
		return time.Time{}, invalidf(column, "unparseable date %q (want %s)", raw, DateLayout)
	}
	return t, nil
}

// formatFloat renders a numeric literal without losing precision.
func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
