// Copyright 2026 The GitChain Authors
// SPDX-License-Identifier: Apache-2.0

package fingerprint

import (
	"strings"
	"testing"
)

func TestFingerprintKeyOrderIndependent(t *testing.T) {
	first := map[string]any{
		"price": 10,
		"name":  "widget",
		"specs": map[string]any{"width": 120, "height": 80},
	}
	second := map[string]any{
		"specs": map[string]any{"height": 80, "width": 120},
		"name":  "widget",
		"price": 10,
	}

	firstDigest, err := Fingerprint(first)
	if err != nil {
		t.Fatalf("Fingerprint first: %v", err)
	}
	secondDigest, err := Fingerprint(second)
	if err != nil {
		t.Fatalf("Fingerprint second: %v", err)
	}

	if firstDigest != secondDigest {
		t.Errorf("structurally equal content fingerprints differ: %s != %s",
			firstDigest, secondDigest)
	}
}

func TestFingerprintDistinguishesContent(t *testing.T) {
	base := map[string]any{"price": 10}
	cases := []map[string]any{
		{"price": 12},
		{"price": "10"},
		{"Price": 10},
		{"price": 10, "currency": "EUR"},
		{},
	}

	baseDigest, err := Fingerprint(base)
	if err != nil {
		t.Fatalf("Fingerprint base: %v", err)
	}

	for i, other := range cases {
		otherDigest, err := Fingerprint(other)
		if err != nil {
			t.Fatalf("Fingerprint case %d: %v", i, err)
		}
		if otherDigest == baseDigest {
			t.Errorf("case %d: different content produced equal fingerprints (%v)", i, other)
		}
	}
}

func TestFingerprintArrayOrderSignificant(t *testing.T) {
	forward, err := Fingerprint([]any{"a", "b", "c"})
	if err != nil {
		t.Fatalf("Fingerprint forward: %v", err)
	}
	reversed, err := Fingerprint([]any{"c", "b", "a"})
	if err != nil {
		t.Fatalf("Fingerprint reversed: %v", err)
	}
	if forward == reversed {
		t.Error("array order must affect the fingerprint")
	}
}

func TestFormatParseRoundtrip(t *testing.T) {
	digest, err := Fingerprint(map[string]any{"k": "v"})
	if err != nil {
		t.Fatalf("Fingerprint: %v", err)
	}

	formatted := digest.String()
	if len(formatted) != 64 {
		t.Fatalf("hex digest length %d, want 64", len(formatted))
	}

	parsed, err := Parse(formatted)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if parsed != digest {
		t.Errorf("roundtrip mismatch: %s != %s", parsed, digest)
	}
}

func TestParseRejectsMalformed(t *testing.T) {
	cases := []string{
		"",
		"zz",
		strings.Repeat("ab", 16), // 16 bytes, too short
		strings.Repeat("ab", 33), // 33 bytes, too long
		strings.Repeat("g", 64),  // not hex
	}
	for _, input := range cases {
		if _, err := Parse(input); err == nil {
			t.Errorf("Parse(%q) succeeded, want error", input)
		}
	}
}

func TestZeroDigest(t *testing.T) {
	var zero Digest
	if !zero.IsZero() {
		t.Error("zero value must report IsZero")
	}

	digest, err := Fingerprint("anything")
	if err != nil {
		t.Fatalf("Fingerprint: %v", err)
	}
	if digest.IsZero() {
		t.Error("real fingerprint must not be the zero digest")
	}
}
