// Copyright 2026 The GitChain Authors
// SPDX-License-Identifier: Apache-2.0

package value

import "testing"

func mustFromAny(t *testing.T, v any) Value {
	t.Helper()
	converted, err := FromAny(v)
	if err != nil {
		t.Fatalf("FromAny: %v", err)
	}
	return converted
}

func TestDiffIdenticalIsEmpty(t *testing.T) {
	payload := mustFromAny(t, map[string]any{
		"price": 10,
		"specs": map[string]any{"width": 120, "height": 80},
	})

	result := Diff(payload, payload)
	if !result.Empty() {
		t.Errorf("diff of identical payloads not empty: %+v", result)
	}
	if result.UnchangedCount != 3 {
		t.Errorf("UnchangedCount = %d, want 3", result.UnchangedCount)
	}
}

func TestDiffSingleModifiedField(t *testing.T) {
	// Price change scenario: one modification, nothing added or
	// removed.
	from := mustFromAny(t, map[string]any{"price": 10})
	to := mustFromAny(t, map[string]any{"price": 12})

	result := Diff(from, to)
	if len(result.Added) != 0 || len(result.Removed) != 0 {
		t.Errorf("unexpected additions/removals: %+v", result)
	}
	if len(result.Modified) != 1 {
		t.Fatalf("Modified = %+v, want exactly one entry", result.Modified)
	}

	change := result.Modified[0]
	if change.Path != "price" {
		t.Errorf("path = %q, want price", change.Path)
	}
	if change.Old.AsNumber() != 10 || change.New.AsNumber() != 12 {
		t.Errorf("change values = %v -> %v, want 10 -> 12", change.Old.AsNumber(), change.New.AsNumber())
	}
}

func TestDiffNestedPaths(t *testing.T) {
	from := mustFromAny(t, map[string]any{
		"name": "widget",
		"specs": map[string]any{
			"width":  120,
			"height": 80,
			"depth":  40,
		},
	})
	to := mustFromAny(t, map[string]any{
		"name": "widget",
		"specs": map[string]any{
			"width":  130,
			"height": 80,
			"weight": 9.5,
		},
	})

	result := Diff(from, to)

	if len(result.Modified) != 1 || result.Modified[0].Path != "specs.width" {
		t.Errorf("Modified = %+v, want specs.width only", result.Modified)
	}
	if len(result.Removed) != 1 || result.Removed[0].Path != "specs.depth" {
		t.Errorf("Removed = %+v, want specs.depth only", result.Removed)
	}
	if len(result.Added) != 1 || result.Added[0].Path != "specs.weight" {
		t.Errorf("Added = %+v, want specs.weight only", result.Added)
	}
	// name and specs.height unchanged.
	if result.UnchangedCount != 2 {
		t.Errorf("UnchangedCount = %d, want 2", result.UnchangedCount)
	}
}

func TestDiffKindChangeIsModification(t *testing.T) {
	from := mustFromAny(t, map[string]any{"features": map[string]any{"color": "red"}})
	to := mustFromAny(t, map[string]any{"features": []any{"red"}})

	result := Diff(from, to)
	if len(result.Modified) != 1 || result.Modified[0].Path != "features" {
		t.Errorf("object->array must be one modification at the field path: %+v", result)
	}
}

func TestDiffArraysComparedWholesale(t *testing.T) {
	from := mustFromAny(t, map[string]any{"tags": []any{"a", "b"}})
	to := mustFromAny(t, map[string]any{"tags": []any{"a", "c"}})

	result := Diff(from, to)
	if len(result.Modified) != 1 || result.Modified[0].Path != "tags" {
		t.Errorf("array change must surface at the array path: %+v", result)
	}
}

func TestDiffTopLevelNonObjects(t *testing.T) {
	result := Diff(String("a"), String("a"))
	if !result.Empty() || result.UnchangedCount != 1 {
		t.Errorf("equal scalars: %+v", result)
	}

	result = Diff(String("a"), String("b"))
	if len(result.Modified) != 1 || result.Modified[0].Path != "" {
		t.Errorf("scalar root change: %+v", result)
	}
}
