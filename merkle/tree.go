// Copyright 2026 The GitChain Authors
// SPDX-License-Identifier: Apache-2.0

// Package merkle implements the batch engine: pending content
// fingerprints are sealed into Merkle batches whose roots go to the
// ledger, and membership proofs are derived from the persisted leaf
// lists for as long as the batch exists.
//
// The tree shape follows the certification contract's verifier:
// leaves are sorted lexicographically, interior nodes are
// keccak256(min(a,b) || max(a,b)), and a node without a partner on an
// odd-width level is paired with itself. Sorted-pair hashing makes
// proofs direction-free, so a proof is just the sibling path.
package merkle

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"slices"

	"golang.org/x/crypto/sha3"

	"github.com/gitchain-foundation/gitchain/lib/fingerprint"
)

// Hash is a keccak256 tree node. Displayed 0x-prefixed to match
// ledger conventions.
type Hash [32]byte

// String returns the 0x-prefixed hex form.
func (h Hash) String() string {
	return "0x" + hex.EncodeToString(h[:])
}

// IsZero reports whether h is the zero hash.
func (h Hash) IsZero() bool {
	return h == Hash{}
}

// MarshalText implements encoding.TextMarshaler (0x-prefixed hex).
func (h Hash) MarshalText() ([]byte, error) {
	return []byte(h.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (h *Hash) UnmarshalText(text []byte) error {
	parsed, err := ParseHash(string(text))
	if err != nil {
		return err
	}
	*h = parsed
	return nil
}

// ParseHash parses a hex tree node, with or without the 0x prefix.
func ParseHash(s string) (Hash, error) {
	if len(s) >= 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') {
		s = s[2:]
	}
	raw, err := hex.DecodeString(s)
	if err != nil {
		return Hash{}, fmt.Errorf("merkle: invalid hash %q: %w", s, err)
	}
	if len(raw) != 32 {
		return Hash{}, fmt.Errorf("merkle: invalid hash %q: got %d bytes, want 32", s, len(raw))
	}
	var h Hash
	copy(h[:], raw)
	return h, nil
}

// Proof is a membership proof for one leaf of a sealed batch. With
// sorted-pair hashing the sibling path alone determines the root;
// Index records the leaf's position in the sorted list for display.
type Proof struct {
	Leaf     fingerprint.Digest `json:"leaf"`
	Index    int                `json:"index"`
	Siblings []Hash             `json:"siblings"`
}

// hashPair hashes an unordered node pair: keccak256(min || max).
func hashPair(a, b Hash) Hash {
	if bytes.Compare(b[:], a[:]) < 0 {
		a, b = b, a
	}
	state := sha3.NewLegacyKeccak256()
	state.Write(a[:])
	state.Write(b[:])
	var out Hash
	state.Sum(out[:0])
	return out
}

// SortLeaves sorts leaf digests lexicographically in place. Seal
// applies this before building the tree so the root is independent of
// enqueue order.
func SortLeaves(leaves []fingerprint.Digest) {
	slices.SortFunc(leaves, func(a, b fingerprint.Digest) int {
		return bytes.Compare(a[:], b[:])
	})
}

// ComputeRoot builds the tree over the given leaves (in the given
// order) and returns its root. The caller sorts first; panics on an
// empty leaf list.
func ComputeRoot(leaves []fingerprint.Digest) Hash {
	level := leafLevel(leaves)
	for len(level) > 1 {
		level = nextLevel(level)
	}
	return level[0]
}

// BuildProof returns the membership proof for the leaf at index in
// the given (sorted) leaf list. Panics on an out-of-range index.
func BuildProof(leaves []fingerprint.Digest, index int) Proof {
	if index < 0 || index >= len(leaves) {
		panic(fmt.Sprintf("merkle: proof index %d out of range for %d leaves", index, len(leaves)))
	}

	proof := Proof{
		Leaf:  leaves[index],
		Index: index,
	}

	level := leafLevel(leaves)
	position := index
	for len(level) > 1 {
		if len(level)%2 == 1 {
			level = append(level, level[len(level)-1])
		}
		sibling := position ^ 1
		proof.Siblings = append(proof.Siblings, level[sibling])
		level = nextLevel(level)
		position /= 2
	}
	return proof
}

// Verify recomputes the root from a proof. Pure: it consults no
// state beyond its arguments.
func Verify(root Hash, proof Proof) bool {
	current := Hash(proof.Leaf)
	for _, sibling := range proof.Siblings {
		current = hashPair(current, sibling)
	}
	return current == root
}

func leafLevel(leaves []fingerprint.Digest) []Hash {
	if len(leaves) == 0 {
		panic("merkle: empty leaf list")
	}
	level := make([]Hash, len(leaves))
	for i, leaf := range leaves {
		level[i] = Hash(leaf)
	}
	return level
}

// nextLevel pairs adjacent nodes, duplicating the last node of an
// odd-width level.
func nextLevel(level []Hash) []Hash {
	if len(level)%2 == 1 {
		level = append(level, level[len(level)-1])
	}
	next := make([]Hash, len(level)/2)
	for i := range next {
		next[i] = hashPair(level[2*i], level[2*i+1])
	}
	return next
}
