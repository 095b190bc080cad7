package combine

import (
	"testing"

	"github.com/PiyushKumar010/Pattern-Recognition/condition"
)

func frag(col, label, clause string) condition.Fragment {
	return condition.Fragment{Column: col, Label: label, Clause: clause}
}

func TestGeneratorOrder(t *testing.T) {
	gen, err := New([]ColumnFragments{
		{Column: "A", Fragments: []condition.Fragment{
			frag("A", "a1", "A = 1"),
			frag("A", "a2", "A = 2"),
		}},
		{Column: "B", Fragments: []condition.Fragment{
			frag("B", "b1", "B = 1"),
			frag("B", "b2", "B = 2"),
			frag("B", "b3", "B = 3"),
		}},
	})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if gen.Total() != 6 {
		t.Fatalf("Total = %d, want 6", gen.Total())
	}

	// Odometer order: last column varies fastest.
	wantLabels := []string{
		"a1; b1", "a1; b2", "a1; b3",
		"a2; b1", "a2; b2", "a2; b3",
	}
	var got []string
	for {
		combo, ok := gen.Next()
		if !ok {
			break
		}
		if combo.Index != len(got) {
			t.Errorf("combination %d has index %d", len(got), combo.Index)
		}
		got = append(got, combo.Label)
	}
	if len(got) != 6 {
		t.Fatalf("expected 6 combinations, got %d", len(got))
	}
	for i, want := range wantLabels {
		if got[i] != want {
			t.Errorf("combination %d label = %q, want %q", i, got[i], want)
		}
	}

	// Exhausted generator stays exhausted.
	if _, ok := gen.Next(); ok {
		t.Error("expected exhausted generator to return false")
	}
}

func TestGeneratorCompositeClause(t *testing.T) {
	gen, err := New([]ColumnFragments{
		{Column: "A", Fragments: []condition.Fragment{frag("A", "a", "A >= 1 AND A < 2")}},
		{Column: "B", Fragments: []condition.Fragment{frag("B", "b", "B > 5 OR B < 1")}},
	})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	combo, ok := gen.Next()
	if !ok {
		t.Fatal("expected one combination")
	}
	want := "(A >= 1 AND A < 2) AND (B > 5 OR B < 1)"
	if combo.Clause != want {
		t.Errorf("clause = %q, want %q", combo.Clause, want)
	}
	if len(combo.Fragments) != 2 {
		t.Errorf("expected 2 fragments, got %d", len(combo.Fragments))
	}
}

func TestGeneratorSingleColumn(t *testing.T) {
	gen, err := New([]ColumnFragments{
		{Column: "A", Fragments: []condition.Fragment{
			frag("A", "a1", "A = 1"),
			frag("A", "a2", "A = 2"),
		}},
	})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	var count int
	for {
		if _, ok := gen.Next(); !ok {
			break
		}
		count++
	}
	if count != 2 {
		t.Errorf("expected 2 combinations, got %d", count)
	}
}

func TestGeneratorErrors(t *testing.T) {
	if _, err := New(nil); err == nil {
		t.Error("expected error for no columns")
	}
	_, err := New([]ColumnFragments{{Column: "A"}})
	if err == nil {
		t.Error("expected error for empty fragment list")
	}
}

func TestGeneratorDeterminism(t *testing.T) {
	build := func() *Generator {
		gen, err := New([]ColumnFragments{
			{Column: "A", Fragments: []condition.Fragment{frag("A", "a1", "1"), frag("A", "a2", "2")}},
			{Column: "B", Fragments: []condition.Fragment{frag("B", "b1", "3"), frag("B", "b2", "4")}},
		})
		if err != nil {
			t.Fatalf("New failed: %v", err)
		}
		return gen
	}

	first := build()
	second := build()
	for {
		c1, ok1 := first.Next()
		c2, ok2 := second.Next()
		if ok1 != ok2 {
			t.Fatal("generators disagree on length")
		}
		if !ok1 {
			break
		}
		if c1.Label != c2.Label || c1.Clause != c2.Clause {
			t.Errorf("generators diverge at index %d: %q vs %q", c1.Index, c1.Label, c2.Label)
		}
	}
}
