// Copyright 2026 The GitChain Authors
// SPDX-License-Identifier: Apache-2.0

package ref

import "testing"

func TestParseValid(t *testing.T) {
	cases := []struct {
		id      string
		want    ContainerRef
		rebuilt string
	}{
		{
			id:      "0711:product:bosch-thermotechnik:7736606982:v3",
			want:    ContainerRef{Type: Product, Namespace: "bosch-thermotechnik", Identifier: "7736606982", Version: 3},
			rebuilt: "0711:product:bosch-thermotechnik:7736606982:v3",
		},
		{
			id:      "0711:campaign:acme:q1-launch:latest",
			want:    ContainerRef{Type: Campaign, Namespace: "acme", Identifier: "q1-launch", Version: Latest},
			rebuilt: "0711:campaign:acme:q1-launch:latest",
		},
		{
			id:      "0711:knowledge:0711:etim-classes:v1",
			want:    ContainerRef{Type: Knowledge, Namespace: "0711", Identifier: "etim-classes", Version: 1},
			rebuilt: "0711:knowledge:0711:etim-classes:v1",
		},
	}

	for _, testCase := range cases {
		parsed, err := Parse(testCase.id)
		if err != nil {
			t.Errorf("Parse(%q): %v", testCase.id, err)
			continue
		}
		if parsed != testCase.want {
			t.Errorf("Parse(%q) = %+v, want %+v", testCase.id, parsed, testCase.want)
		}
		if parsed.String() != testCase.rebuilt {
			t.Errorf("String() = %q, want %q", parsed.String(), testCase.rebuilt)
		}
	}
}

func TestParseInvalid(t *testing.T) {
	cases := []struct {
		name string
		id   string
	}{
		{"empty", ""},
		{"too few segments", "0711:product:acme:widget"},
		{"too many segments", "0711:product:acme:widget:v1:extra"},
		{"wrong prefix", "0712:product:acme:widget:v1"},
		{"unknown type", "0711:invoice:acme:widget:v1"},
		{"bad namespace", "0711:product:ac_me:widget:v1"},
		{"empty identifier", "0711:product:acme::v1"},
		{"version zero", "0711:product:acme:widget:v0"},
		{"negative version", "0711:product:acme:widget:v-1"},
		{"bare number version", "0711:product:acme:widget:3"},
		{"misspelled latest", "0711:product:acme:widget:Latest"},
	}

	for _, testCase := range cases {
		if _, err := Parse(testCase.id); err == nil {
			t.Errorf("%s: Parse(%q) succeeded, want error", testCase.name, testCase.id)
		}
	}
}

func TestKeyAndVersionHelpers(t *testing.T) {
	reference, err := New(Product, "acme", "widget-001", 2)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if reference.Key() != "product:acme:widget-001" {
		t.Errorf("Key() = %q", reference.Key())
	}
	if reference.IsLatest() {
		t.Error("v2 must not report IsLatest")
	}

	latest := reference.AsLatest()
	if !latest.IsLatest() {
		t.Error("AsLatest must report IsLatest")
	}
	if latest.Key() != reference.Key() {
		t.Error("AsLatest must preserve the identity key")
	}

	pinned := latest.WithVersion(7)
	if pinned.Version != 7 || pinned.String() != "0711:product:acme:widget-001:v7" {
		t.Errorf("WithVersion: %+v", pinned)
	}
}

func TestTextRoundtrip(t *testing.T) {
	original, err := New(Memory, "agent-7", "session-context", Latest)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	text, err := original.MarshalText()
	if err != nil {
		t.Fatalf("MarshalText: %v", err)
	}

	var decoded ContainerRef
	if err := decoded.UnmarshalText(text); err != nil {
		t.Fatalf("UnmarshalText: %v", err)
	}
	if decoded != original {
		t.Errorf("roundtrip mismatch: %+v != %+v", decoded, original)
	}
}
