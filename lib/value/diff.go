// Copyright 2026 The GitChain Authors
// SPDX-License-Identifier: Apache-2.0

package value

import "sort"

// Change records one field-level difference between two values.
type Change struct {
	// Path is the dot-joined field path from the payload root, e.g.
	// "specs.dimensions.width". Array elements are not descended
	// into; an array field whose contents changed is one modified
	// change at the array's own path.
	Path string `json:"path"`

	// Old is the value on the "from" side. Null-kind and absent are
	// distinguished by which change list the entry is in.
	Old Value `json:"old,omitempty"`

	// New is the value on the "to" side.
	New Value `json:"new,omitempty"`
}

// DiffResult is a field-path-level structural comparison of two
// payloads.
type DiffResult struct {
	// Added lists paths present only on the "to" side.
	Added []Change `json:"added"`

	// Removed lists paths present only on the "from" side.
	Removed []Change `json:"removed"`

	// Modified lists paths present on both sides with differing
	// values.
	Modified []Change `json:"modified"`

	// UnchangedCount is the number of leaf fields equal on both
	// sides.
	UnchangedCount int `json:"unchangedCount"`
}

// Empty reports whether the two payloads were structurally identical.
func (r DiffResult) Empty() bool {
	return len(r.Added) == 0 && len(r.Removed) == 0 && len(r.Modified) == 0
}

// Diff compares two payloads field by field. Objects are descended
// recursively; fields missing on one side are reported added or
// removed; leaf fields (and arrays, compared wholesale) present on
// both sides are modified when unequal. Change lists are sorted by
// path so the result is deterministic.
func Diff(from, to Value) DiffResult {
	var result DiffResult
	diffInto(&result, "", from, to)
	sortChanges(result.Added)
	sortChanges(result.Removed)
	sortChanges(result.Modified)
	return result
}

func diffInto(result *DiffResult, path string, from, to Value) {
	// Two objects: recurse over the union of keys.
	if from.Kind() == KindObject && to.Kind() == KindObject {
		for _, key := range unionKeys(from, to) {
			childPath := key
			if path != "" {
				childPath = path + "." + key
			}
			fromField, inFrom := from.Field(key)
			toField, inTo := to.Field(key)
			switch {
			case inFrom && inTo:
				diffInto(result, childPath, fromField, toField)
			case inTo:
				result.Added = append(result.Added, Change{Path: childPath, New: toField})
			default:
				result.Removed = append(result.Removed, Change{Path: childPath, Old: fromField})
			}
		}
		return
	}

	// Leaf position (scalar, array, or kind mismatch): compare
	// wholesale.
	if from.Equal(to) {
		result.UnchangedCount++
		return
	}
	result.Modified = append(result.Modified, Change{Path: path, Old: from, New: to})
}

func unionKeys(from, to Value) []string {
	seen := make(map[string]struct{})
	var keys []string
	for key := range from.AsObject() {
		seen[key] = struct{}{}
		keys = append(keys, key)
	}
	for key := range to.AsObject() {
		if _, ok := seen[key]; !ok {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	return keys
}

func sortChanges(changes []Change) {
	sort.Slice(changes, func(i, j int) bool { return changes[i].Path < changes[j].Path })
}
