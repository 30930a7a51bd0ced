// Copyright 2026 The GitChain Authors
// SPDX-License-Identifier: Apache-2.0

package fingerprint

import (
	"encoding/hex"
	"fmt"

	"github.com/zeebo/blake3"

	"github.com/gitchain-foundation/gitchain/lib/codec"
)

// Digest is a 32-byte BLAKE3 keyed hash of canonically-encoded
// content. It is the identity of a container version, the leaf unit
// of Merkle batches, and the key proofs are stored under.
type Digest [32]byte

// contentDomainKey is the 32-byte key for BLAKE3 keyed hashing of
// container content. Domain separation prevents a content digest from
// colliding with hashes computed in other contexts. The byte values
// are the ASCII encoding of the domain name, zero-padded to 32 bytes:
// readable in hex dumps without sacrificing any cryptographic
// property. This is a fixed constant — changing it invalidates every
// fingerprint in an existing store.
var contentDomainKey = [32]byte{
	'g', 'i', 't', 'c', 'h', 'a', 'i', 'n', '.', 'c', 'o', 'n', 't', 'e', 'n', 't',
	0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
}

// Fingerprint computes the content digest of v. The value is first
// encoded with Core Deterministic CBOR (sorted map keys, fixed
// numeric forms), so two structurally equal values always fingerprint
// identically regardless of field insertion order. Array order is
// preserved and significant.
//
// The only failure mode is input that cannot be serialized (channels,
// functions, cyclic structures).
func Fingerprint(v any) (Digest, error) {
	encoded, err := codec.Marshal(v)
	if err != nil {
		return Digest{}, fmt.Errorf("fingerprint: canonical encoding: %w", err)
	}
	return Sum(encoded), nil
}

// Sum computes the content-domain keyed hash of already-canonical
// bytes. Callers that have the canonical encoding in hand (the store
// write path, which persists the same bytes it fingerprints) use this
// to avoid encoding twice.
func Sum(canonical []byte) Digest {
	hasher, err := blake3.NewKeyed(contentDomainKey[:])
	if err != nil {
		// NewKeyed fails only for a wrong key length, which the
		// fixed-size array rules out.
		panic("fingerprint: BLAKE3 keyed hash initialization failed: " + err.Error())
	}
	hasher.Write(canonical)
	var digest Digest
	copy(digest[:], hasher.Sum(nil))
	return digest
}

// String returns the hex encoding, satisfying fmt.Stringer. This is
// the canonical format used in the database, logs, and CLI output.
func (d Digest) String() string {
	return hex.EncodeToString(d[:])
}

// IsZero reports whether the digest is the all-zero value. The zero
// digest is never a valid fingerprint; it marks "no parent" in
// version-1 commit records.
func (d Digest) IsZero() bool {
	return d == Digest{}
}

// MarshalText implements encoding.TextMarshaler (hex encoding).
func (d Digest) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Digest) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Parse parses a 64-character hex string into a Digest.
func Parse(hexString string) (Digest, error) {
	var digest Digest
	decoded, err := hex.DecodeString(hexString)
	if err != nil {
		return digest, fmt.Errorf("parsing fingerprint: %w", err)
	}
	if len(decoded) != 32 {
		return digest, fmt.Errorf("fingerprint is %d bytes, want 32", len(decoded))
	}
	copy(digest[:], decoded)
	return digest, nil
}
