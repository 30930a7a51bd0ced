// Copyright 2026 The GitChain Authors
// SPDX-License-Identifier: Apache-2.0

// Package value models container payloads as a tagged sum type
// (null/bool/number/string/array/object) and implements the
// field-path structural diff over it.
//
// Keeping the payload representation closed lets diff, equality, and
// canonical conversion be total functions — no reflection over
// arbitrary shapes at use sites.
package value
