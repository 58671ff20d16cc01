package botfeature

import (
	"reflect"
	"testing"
)

func TestMergeAndPruneStoredValueWins(t *testing.T) {
	def := map[string]interface{}{
		"enabled":          true,
		"interval_seconds": 120,
		"greeting":         "hello",
	}
	stored := map[string]interface{}{
		"enabled":          false,
		"interval_seconds": float64(300),
		"greeting":         "howdy",
	}

	merged := MergeAndPrune(def, stored)
	if merged["enabled"] != false {
		t.Errorf("expected stored enabled=false to win, got %v", merged["enabled"])
	}
	if merged["interval_seconds"] != float64(300) {
		t.Errorf("expected stored interval to win, got %v", merged["interval_seconds"])
	}
	if merged["greeting"] != "howdy" {
		t.Errorf("expected stored greeting to win, got %v", merged["greeting"])
	}
}

func TestMergeAndPrunePrunesUnknownKeys(t *testing.T) {
	def := map[string]interface{}{"enabled": true}
	stored := map[string]interface{}{
		"enabled":    true,
		"deprecated": "value",
	}

	merged := MergeAndPrune(def, stored)
	if _, exists := merged["deprecated"]; exists {
		t.Error("expected key absent from defaults to be pruned")
	}
	if len(merged) != 1 {
		t.Errorf("expected exactly the default key set, got %v", merged)
	}
}

func TestMergeAndPruneAddsNewDefaults(t *testing.T) {
	def := map[string]interface{}{
		"enabled":   true,
		"new_field": "default",
	}
	stored := map[string]interface{}{"enabled": false}

	merged := MergeAndPrune(def, stored)
	if merged["new_field"] != "default" {
		t.Errorf("expected new default to appear, got %v", merged["new_field"])
	}
}

func TestMergeAndPruneTypeMismatchFallsBackToDefault(t *testing.T) {
	def := map[string]interface{}{"limit": 10}
	stored := map[string]interface{}{"limit": "lots"}

	merged := MergeAndPrune(def, stored)
	if merged["limit"] != 10 {
		t.Errorf("expected default on type mismatch, got %v", merged["limit"])
	}
}

func TestMergeAndPruneNumericKindsAreCompatible(t *testing.T) {
	def := map[string]interface{}{"limit": 10}
	stored := map[string]interface{}{"limit": float64(25)}

	merged := MergeAndPrune(def, stored)
	if merged["limit"] != float64(25) {
		t.Errorf("expected stored float to replace default int, got %v", merged["limit"])
	}
}

func TestMergeAndPruneRecursesIntoObjects(t *testing.T) {
	def := map[string]interface{}{
		"nested": map[string]interface{}{
			"keep":  "default",
			"other": true,
		},
	}
	stored := map[string]interface{}{
		"nested": map[string]interface{}{
			"keep":       "stored",
			"deprecated": 1,
		},
	}

	merged := MergeAndPrune(def, stored)
	nested := merged["nested"].(map[string]interface{})
	if nested["keep"] != "stored" {
		t.Errorf("expected nested stored value to win, got %v", nested["keep"])
	}
	if nested["other"] != true {
		t.Errorf("expected nested default to appear, got %v", nested["other"])
	}
	if _, exists := nested["deprecated"]; exists {
		t.Error("expected nested unknown key to be pruned")
	}
}

func TestMergeAndPruneArraysAreAtomic(t *testing.T) {
	def := map[string]interface{}{
		"accounts": []interface{}{"a", "b"},
	}
	stored := map[string]interface{}{
		"accounts": []interface{}{"x"},
	}

	merged := MergeAndPrune(def, stored)
	if !reflect.DeepEqual(merged["accounts"], []interface{}{"x"}) {
		t.Errorf("expected stored array to replace default whole, got %v", merged["accounts"])
	}
}

func TestMergeAndPruneNilStored(t *testing.T) {
	def := map[string]interface{}{"enabled": true}

	merged := MergeAndPrune(def, nil)
	if !reflect.DeepEqual(merged, def) {
		t.Errorf("expected defaults back for nil stored config, got %v", merged)
	}
}

func TestMergeAndPruneIdempotent(t *testing.T) {
	def := map[string]interface{}{
		"enabled":          true,
		"interval_seconds": 120,
		"nested": map[string]interface{}{
			"limit": 5,
			"tags":  []interface{}{"one"},
		},
	}
	stored := map[string]interface{}{
		"enabled":    false,
		"deprecated": "x",
		"nested": map[string]interface{}{
			"limit": float64(9),
			"extra": true,
		},
	}

	once := MergeAndPrune(def, stored)
	twice := MergeAndPrune(def, once)
	if !reflect.DeepEqual(once, twice) {
		t.Errorf("expected merge to be a fixed point: %v != %v", once, twice)
	}
}

func TestMergeAndPruneDoesNotMutateInputs(t *testing.T) {
	def := map[string]interface{}{
		"nested": map[string]interface{}{"value": 1},
	}
	stored := map[string]interface{}{
		"nested": map[string]interface{}{"value": float64(2)},
	}

	merged := MergeAndPrune(def, stored)
	merged["nested"].(map[string]interface{})["value"] = float64(99)

	if def["nested"].(map[string]interface{})["value"] != 1 {
		t.Error("defaults were mutated through the merged result")
	}
	if stored["nested"].(map[string]interface{})["value"] != float64(2) {
		t.Error("stored config was mutated through the merged result")
	}
}
