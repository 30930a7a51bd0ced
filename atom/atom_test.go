// Copyright 2026 The GitChain Authors
// SPDX-License-Identifier: Apache-2.0

package atom

import (
	"reflect"
	"testing"
	"time"
)

var testTime = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func TestTrustFor(t *testing.T) {
	tests := []struct {
		source SourceType
		want   TrustLevel
	}{
		{SourceManufacturerFeed, TrustHighest},
		{SourceDatasheetExtraction, TrustHigh},
		{SourceClassificationStandard, TrustCertified},
		{SourceHumanReview, TrustVerified},
		{SourceCustomerFeedback, TrustCustomer},
		{SourceAIGenerated, TrustGenerated},
		{SourceCommunity, TrustCommunity},
		{SourceType("unknown_feed"), TrustCommunity},
	}
	for _, tt := range tests {
		if got := TrustFor(tt.source); got != tt.want {
			t.Errorf("TrustFor(%s) = %s, want %s", tt.source, got, tt.want)
		}
	}
}

func TestTrustLadder(t *testing.T) {
	ladder := []TrustLevel{
		TrustHighest, TrustHigh, TrustCertified, TrustVerified,
		TrustMedium, TrustCustomer, TrustGenerated, TrustCommunity,
	}
	for i := 1; i < len(ladder); i++ {
		higher, lower := ladder[i-1], ladder[i]
		if !higher.AtLeast(lower) {
			t.Errorf("%s should be at least %s", higher, lower)
		}
		if lower.AtLeast(higher) {
			t.Errorf("%s should not be at least %s", lower, higher)
		}
		if got := MinTrust(higher, lower); got != lower {
			t.Errorf("MinTrust(%s, %s) = %s, want %s", higher, lower, got, lower)
		}
	}
	if !TrustHighest.AtLeast(TrustHighest) {
		t.Error("AtLeast should be reflexive")
	}
}

func TestParseTrustLevel(t *testing.T) {
	level, err := ParseTrustLevel("certified")
	if err != nil {
		t.Fatalf("ParseTrustLevel: %v", err)
	}
	if level != TrustCertified {
		t.Errorf("level = %s, want certified", level)
	}
	if _, err := ParseTrustLevel("platinum"); err == nil {
		t.Error("expected error for unknown level")
	}
}

func TestPromote(t *testing.T) {
	contributor := Contributor{ID: "enricher-1", Role: "ai"}
	generated := New("specs.torque", 60, SourceAIGenerated, contributor, testTime)
	if generated.Trust != TrustGenerated {
		t.Fatalf("initial trust = %s, want generated", generated.Trust)
	}
	if generated.Verified() {
		t.Fatal("unreviewed atom should not be verified")
	}

	promoted := Promote(generated, Verification{
		VerifiedBy: "reviewer-7",
		VerifiedAt: testTime.Add(time.Hour),
		Method:     "manual",
	})
	if promoted.Trust != TrustVerified {
		t.Errorf("promoted trust = %s, want verified", promoted.Trust)
	}
	if !promoted.Verified() {
		t.Error("promoted atom should be verified")
	}
	// The input atom is not mutated.
	if generated.Verified() {
		t.Error("Promote should copy, not mutate")
	}

	// Verification of a manufacturer value records the sign-off but
	// leaves the trust level alone.
	feed := New("specs.voltage", 18, SourceManufacturerFeed, contributor, testTime)
	signed := Promote(feed, Verification{VerifiedBy: "reviewer-7", VerifiedAt: testTime})
	if signed.Trust != TrustHighest {
		t.Errorf("trust = %s, want highest", signed.Trust)
	}
	if !signed.Verified() {
		t.Error("sign-off not recorded")
	}
}

func TestContainerTrust(t *testing.T) {
	contributor := Contributor{ID: "c1"}
	atoms := []Atom{
		New("name", "GSB 18V-55", SourceManufacturerFeed, contributor, testTime),
		New("etim.class", "EC000134", SourceClassificationStandard, contributor, testTime),
		New("summary", "compact drill", SourceAIGenerated, contributor, testTime),
	}
	if got := ContainerTrust(atoms); got != TrustGenerated {
		t.Errorf("ContainerTrust = %s, want generated", got)
	}

	atoms[2] = Promote(atoms[2], Verification{VerifiedBy: "reviewer-7", VerifiedAt: testTime})
	if got := ContainerTrust(atoms); got != TrustCertified {
		t.Errorf("after promotion = %s, want certified", got)
	}

	if got := ContainerTrust(nil); got != TrustCommunity {
		t.Errorf("empty set = %s, want community", got)
	}
}

func TestDecompose(t *testing.T) {
	data := map[string]any{
		"name": "GSB 18V-55",
		"specs": map[string]any{
			"voltage": 18,
			"chuck": map[string]any{
				"min_mm": 1.5,
				"max_mm": 13.0,
			},
		},
		"features": []any{"brushless", "kickback control"},
	}
	contributor := Contributor{ID: "bosch-feed"}
	atoms := Decompose(data, SourceManufacturerFeed, contributor, testTime)

	got := make(map[string]any, len(atoms))
	for _, a := range atoms {
		got[a.FieldPath] = a.Value
		if a.Trust != TrustHighest {
			t.Errorf("%s: trust = %s, want highest", a.FieldPath, a.Trust)
		}
		if a.Contributor.ID != "bosch-feed" {
			t.Errorf("%s: contributor = %q", a.FieldPath, a.Contributor.ID)
		}
	}
	want := map[string]any{
		"name":               "GSB 18V-55",
		"specs.voltage":      18,
		"specs.chuck.min_mm": 1.5,
		"specs.chuck.max_mm": 13.0,
		"features.0":         "brushless",
		"features.1":         "kickback control",
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Decompose = %v, want %v", got, want)
	}

	// Paths come back sorted.
	for i := 1; i < len(atoms); i++ {
		if atoms[i-1].FieldPath >= atoms[i].FieldPath {
			t.Errorf("paths not sorted: %q before %q", atoms[i-1].FieldPath, atoms[i].FieldPath)
		}
	}
}

func TestFilter(t *testing.T) {
	contributor := Contributor{ID: "c1"}
	atoms := []Atom{
		New("name", "drill", SourceManufacturerFeed, contributor, testTime),
		New("specs.voltage", 18, SourceDatasheetExtraction, contributor, testTime),
		Promote(
			New("summary", "text", SourceAIGenerated, contributor, testTime),
			Verification{VerifiedBy: "r1", VerifiedAt: testTime},
		),
		New("tags.0", "cordless", SourceCommunity, contributor, testTime),
	}

	byTrust := Filter(atoms, FilterOptions{TrustMin: TrustVerified})
	if len(byTrust) != 3 {
		t.Errorf("TrustMin verified kept %d atoms, want 3", len(byTrust))
	}

	verified := Filter(atoms, FilterOptions{VerifiedOnly: true})
	if len(verified) != 1 || verified[0].FieldPath != "summary" {
		t.Errorf("VerifiedOnly = %v", verified)
	}

	fields := Filter(atoms, FilterOptions{Fields: []string{"specs", "name"}})
	if len(fields) != 2 {
		t.Errorf("Fields filter kept %d atoms, want 2", len(fields))
	}

	all := Filter(atoms, FilterOptions{})
	if len(all) != len(atoms) {
		t.Errorf("empty options kept %d atoms, want %d", len(all), len(atoms))
	}
}

func TestWinning(t *testing.T) {
	contributor := Contributor{ID: "c1"}
	older := New("specs.voltage", 17, SourceAIGenerated, contributor, testTime)
	newer := New("specs.voltage", 18, SourceAIGenerated, contributor, testTime.Add(time.Hour))
	feed := New("specs.voltage", 18, SourceManufacturerFeed, contributor, testTime)

	winners := Winning([]Atom{older, newer, feed})
	if winners["specs.voltage"].Source != SourceManufacturerFeed {
		t.Error("manufacturer feed should win over generated values")
	}

	winners = Winning([]Atom{older, newer})
	if !winners["specs.voltage"].CreatedAt.Equal(newer.CreatedAt) {
		t.Error("newer atom should win a trust tie")
	}
}

func TestReassemble(t *testing.T) {
	data := map[string]any{
		"name": "GSB 18V-55",
		"specs": map[string]any{
			"voltage": 18,
			"weight":  1.2,
		},
	}
	atoms := Decompose(data, SourceManufacturerFeed, Contributor{ID: "c1"}, testTime)

	// A later, lower-trust contribution for an existing field loses.
	atoms = append(atoms, New("specs.voltage", 20, SourceCommunity, Contributor{ID: "c2"}, testTime.Add(time.Hour)))

	rebuilt, err := Reassemble(atoms)
	if err != nil {
		t.Fatalf("Reassemble: %v", err)
	}
	if !reflect.DeepEqual(rebuilt, data) {
		t.Errorf("Reassemble = %v, want %v", rebuilt, data)
	}
}

func TestReassemblePathConflict(t *testing.T) {
	atoms := []Atom{
		New("specs", "flat", SourceManufacturerFeed, Contributor{ID: "c1"}, testTime),
		New("specs.voltage", 18, SourceManufacturerFeed, Contributor{ID: "c1"}, testTime),
	}
	if _, err := Reassemble(atoms); err == nil {
		t.Error("expected conflict error for leaf shadowing a subtree")
	}
}
