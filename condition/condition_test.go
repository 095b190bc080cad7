package condition

import (
	"encoding/json"
	"testing"
)

func TestParseDefinitionKinds(t *testing.T) {
	tests := []struct {
		name string
		json string
		want Kind
	}{
		{"numeric", `{"kind":"numeric_range","count":3,"min":0,"max":9}`, KindNumericRange},
		{"date range", `{"kind":"date_range","ranges":[{"start":"2024-01-01","end":"2024-02-01"}]}`, KindDateRange},
		{"before", `{"kind":"date_before","dates":["2024-01-01"]}`, KindDateBefore},
		{"categorical", `{"kind":"categorical","groups":[["a"]]}`, KindCategorical},
		{"or", `{"kind":"or_conditions","conditions":[{"op":">","value":1}]}`, KindOrConditions},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			def, err := ParseDefinition([]byte(tt.json))
			if err != nil {
				t.Fatalf("ParseDefinition failed: %v", err)
			}
			if def.Kind() != tt.want {
				t.Errorf("kind = %q, want %q", def.Kind(), tt.want)
			}

			// Marshaling must reproduce the kind discriminator.
			out, err := json.Marshal(def)
			if err != nil {
				t.Fatalf("Marshal failed: %v", err)
			}
			again, err := ParseDefinition(out)
			if err != nil {
				t.Fatalf("re-parse failed: %v (json %s)", err, out)
			}
			if again.Kind() != tt.want {
				t.Errorf("re-parsed kind = %q, want %q", again.Kind(), tt.want)
			}
		})
	}
}

func TestParseDefinitionRejectsUnknownKind(t *testing.T) {
	if _, err := ParseDefinition([]byte(`{"kind":"regex"}`)); err == nil {
		t.Error("expected error for unknown kind")
	}
	if _, err := ParseDefinition([]byte(`{"count":3}`)); err == nil {
		t.Error("expected error for missing kind")
	}
}

func TestSetUnmarshal(t *testing.T) {
	blob := []byte(`{
		"score": {"kind":"numeric_range","count":2,"min":0,"max":10},
		"tier":  {"kind":"categorical","groups":[["gold"],["silver"]]}
	}`)
	var set Set
	if err := json.Unmarshal(blob, &set); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if len(set) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(set))
	}
	if _, ok := set["score"].(NumericRange); !ok {
		t.Errorf("score decoded as %T", set["score"])
	}
	if _, ok := set["tier"].(Categorical); !ok {
		t.Errorf("tier decoded as %T", set["tier"])
	}
}
