// Copyright 2026 The GitChain Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock provides an injectable time source with a real
// implementation for production and a deterministic fake for tests.
//
// The batching scheduler, anchoring backoff, and the context cache
// TTL all read time exclusively through this interface, which is what
// makes their timing behavior unit-testable without real sleeps.
package clock
