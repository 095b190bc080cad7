package history

import "testing"

func TestFingerprintDeterministic(t *testing.T) {
	config := map[string]any{
		"columns": []string{"region", "score"},
		"conditions": map[string]any{
			"score": map[string]any{"kind": "numeric_range", "count": 4},
		},
	}

	first, err := Fingerprint(config)
	if err != nil {
		t.Fatalf("Fingerprint failed: %v", err)
	}
	second, err := Fingerprint(config)
	if err != nil {
		t.Fatalf("Fingerprint failed: %v", err)
	}
	if first != second {
		t.Errorf("fingerprint not deterministic: %s != %s", first, second)
	}
	if len(first) != 64 {
		t.Errorf("expected 64 hex chars, got %d", len(first))
	}
}

func TestFingerprintIgnoresMapKeyOrder(t *testing.T) {
	// Same mapping built in different insertion orders must hash identically.
	a := map[string]int{"alpha": 1, "beta": 2, "gamma": 3}
	b := map[string]int{"gamma": 3, "alpha": 1, "beta": 2}

	ha, err := Fingerprint(a)
	if err != nil {
		t.Fatalf("Fingerprint failed: %v", err)
	}
	hb, err := Fingerprint(b)
	if err != nil {
		t.Fatalf("Fingerprint failed: %v", err)
	}
	if ha != hb {
		t.Errorf("map key order changed fingerprint: %s != %s", ha, hb)
	}
}

func TestFingerprintSensitiveToListOrder(t *testing.T) {
	ha, err := Fingerprint([]string{"a", "b"})
	if err != nil {
		t.Fatalf("Fingerprint failed: %v", err)
	}
	hb, err := Fingerprint([]string{"b", "a"})
	if err != nil {
		t.Fatalf("Fingerprint failed: %v", err)
	}
	if ha == hb {
		t.Error("list order should change the fingerprint")
	}
}

func TestFingerprintSensitiveToValues(t *testing.T) {
	ha, err := Fingerprint(map[string]int{"count": 4})
	if err != nil {
		t.Fatalf("Fingerprint failed: %v", err)
	}
	hb, err := Fingerprint(map[string]int{"count": 5})
	if err != nil {
		t.Fatalf("Fingerprint failed: %v", err)
	}
	if ha == hb {
		t.Error("different configs should fingerprint differently")
	}
}
