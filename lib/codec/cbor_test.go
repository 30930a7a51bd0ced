// Copyright 2026 The GitChain Authors
// SPDX-License-Identifier: Apache-2.0

package codec

import (
	"bytes"
	"testing"
)

// commitPayload is representative of the structures the store
// persists: string fields plus a nested any-typed payload.
type commitPayload struct {
	Author  string         `cbor:"author"`
	Message string         `cbor:"message,omitempty"`
	Version int            `cbor:"version"`
	Data    map[string]any `cbor:"data"`
}

func TestMarshalUnmarshalRoundtrip(t *testing.T) {
	original := commitPayload{
		Author:  "importer",
		Message: "initial import",
		Version: 3,
		Data:    map[string]any{"price": int64(10), "name": "widget"},
	}

	data, err := Marshal(original)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if len(data) == 0 {
		t.Fatal("Marshal produced empty output")
	}

	var decoded commitPayload
	if err := Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}

	if decoded.Author != original.Author || decoded.Version != original.Version {
		t.Errorf("roundtrip mismatch: got %+v, want %+v", decoded, original)
	}
	if decoded.Data["name"] != "widget" {
		t.Errorf("nested payload mismatch: %+v", decoded.Data)
	}
}

func TestMarshalKeyOrderIndependent(t *testing.T) {
	// Maps built in different insertion orders must encode
	// identically — this is the property fingerprinting depends on.
	first := map[string]any{"a": 1, "b": 2, "c": map[string]any{"x": true, "y": false}}
	second := map[string]any{"c": map[string]any{"y": false, "x": true}, "b": 2, "a": 1}

	firstBytes, err := Marshal(first)
	if err != nil {
		t.Fatalf("Marshal first: %v", err)
	}
	secondBytes, err := Marshal(second)
	if err != nil {
		t.Fatalf("Marshal second: %v", err)
	}

	if !bytes.Equal(firstBytes, secondBytes) {
		t.Errorf("canonical encoding violated: %x != %x", firstBytes, secondBytes)
	}
}

func TestUnmarshalAnyUsesStringKeyedMaps(t *testing.T) {
	data, err := Marshal(map[string]any{"outer": map[string]any{"inner": 1}})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	var decoded any
	if err := Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}

	outer, ok := decoded.(map[string]any)
	if !ok {
		t.Fatalf("decoded type %T, want map[string]any", decoded)
	}
	if _, ok := outer["outer"].(map[string]any); !ok {
		t.Fatalf("nested type %T, want map[string]any", outer["outer"])
	}
}
