// Copyright 2026 The GitChain Authors
// SPDX-License-Identifier: Apache-2.0

// Package ref provides typed, validated container identifiers.
//
// A container identifier names one versioned record:
//
//	0711:product:bosch-thermotechnik:7736606982:v3
//	0711:campaign:acme:q1-launch:latest
//
// The identifier format is a stable external interface — parsing and
// formatting live here so no other package hand-assembles identifier
// strings.
package ref
