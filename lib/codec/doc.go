// Copyright 2026 The GitChain Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec provides the canonical CBOR encoding used throughout
// GitChain: on-disk container payloads, commit metadata, and the byte
// stream that content fingerprints are computed over.
//
// Encoding is RFC 8949 Core Deterministic Encoding. Two structurally
// equal values always encode to identical bytes regardless of map
// insertion order, which is what makes fingerprinting sound.
package codec
