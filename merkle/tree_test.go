// Copyright 2026 The GitChain Authors
// SPDX-License-Identifier: Apache-2.0

package merkle

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/gitchain-foundation/gitchain/lib/fingerprint"
)

func testLeaves(n int) []fingerprint.Digest {
	leaves := make([]fingerprint.Digest, n)
	for i := range leaves {
		leaves[i] = fingerprint.Sum([]byte(fmt.Sprintf("leaf-%d", i)))
	}
	SortLeaves(leaves)
	return leaves
}

func TestSingleLeaf(t *testing.T) {
	leaves := testLeaves(1)
	root := ComputeRoot(leaves)
	if root != Hash(leaves[0]) {
		t.Error("single-leaf root should be the leaf itself")
	}
	proof := BuildProof(leaves, 0)
	if len(proof.Siblings) != 0 {
		t.Errorf("single-leaf proof has %d siblings, want 0", len(proof.Siblings))
	}
	if !Verify(root, proof) {
		t.Error("single-leaf proof should verify")
	}
}

func TestRootIndependentOfInputOrder(t *testing.T) {
	leaves := testLeaves(7)

	shuffled := make([]fingerprint.Digest, len(leaves))
	copy(shuffled, leaves)
	random := rand.New(rand.NewSource(0x0711))
	random.Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})
	SortLeaves(shuffled)

	if ComputeRoot(leaves) != ComputeRoot(shuffled) {
		t.Error("sorted leaf lists should produce identical roots")
	}
}

func TestPairOrderIndependent(t *testing.T) {
	a := fingerprint.Sum([]byte("a"))
	b := fingerprint.Sum([]byte("b"))
	// Pairing is unordered, so even unsorted two-leaf lists agree.
	if ComputeRoot([]fingerprint.Digest{a, b}) != ComputeRoot([]fingerprint.Digest{b, a}) {
		t.Error("hashPair should be symmetric")
	}
}

func TestProofsVerifyForAllLeafCounts(t *testing.T) {
	for n := 1; n <= 9; n++ {
		t.Run(fmt.Sprintf("leaves=%d", n), func(t *testing.T) {
			leaves := testLeaves(n)
			root := ComputeRoot(leaves)
			for index := range leaves {
				proof := BuildProof(leaves, index)
				if proof.Leaf != leaves[index] {
					t.Fatalf("proof leaf mismatch at index %d", index)
				}
				if !Verify(root, proof) {
					t.Errorf("proof for index %d does not verify", index)
				}
			}
		})
	}
}

func TestVerifyRejectsForgery(t *testing.T) {
	leaves := testLeaves(5)
	root := ComputeRoot(leaves)
	proof := BuildProof(leaves, 2)

	tamperedLeaf := proof
	tamperedLeaf.Leaf = fingerprint.Sum([]byte("forged"))
	if Verify(root, tamperedLeaf) {
		t.Error("tampered leaf should not verify")
	}

	tamperedPath := BuildProof(leaves, 2)
	tamperedPath.Siblings = append([]Hash{}, proof.Siblings...)
	tamperedPath.Siblings[0][0] ^= 0xff
	if Verify(root, tamperedPath) {
		t.Error("tampered sibling should not verify")
	}

	wrongRoot := root
	wrongRoot[31] ^= 0x01
	if Verify(wrongRoot, proof) {
		t.Error("wrong root should not verify")
	}
}

func TestVerifyRejectsNonMemberWithOtherProof(t *testing.T) {
	leaves := testLeaves(4)
	root := ComputeRoot(leaves)
	proof := BuildProof(leaves, 1)
	proof.Leaf = fingerprint.Sum([]byte("outsider"))
	if Verify(root, proof) {
		t.Error("non-member leaf must not verify with a member's path")
	}
}

func TestDistinctLeafSetsDistinctRoots(t *testing.T) {
	if ComputeRoot(testLeaves(4)) == ComputeRoot(testLeaves(5)) {
		t.Error("different leaf sets should have different roots")
	}
}

func TestHashStringParse(t *testing.T) {
	root := ComputeRoot(testLeaves(3))
	text := root.String()
	if len(text) != 66 || text[:2] != "0x" {
		t.Fatalf("String() = %q, want 0x-prefixed 64 hex digits", text)
	}
	parsed, err := ParseHash(text)
	if err != nil {
		t.Fatalf("ParseHash: %v", err)
	}
	if parsed != root {
		t.Error("round trip mismatch")
	}
	// Bare hex also accepted.
	parsed, err = ParseHash(text[2:])
	if err != nil {
		t.Fatalf("ParseHash bare: %v", err)
	}
	if parsed != root {
		t.Error("bare hex round trip mismatch")
	}

	for _, bad := range []string{"", "0x12", "zz", text + "00"} {
		if _, err := ParseHash(bad); err == nil {
			t.Errorf("ParseHash(%q) should fail", bad)
		}
	}
}
