// Copyright 2026 The GitChain Authors
// SPDX-License-Identifier: Apache-2.0

package merkle

import "errors"

// ErrEmptyBatch reports a seal attempt with nothing new pending. The
// scheduler treats this as "skip", not as a failure.
var ErrEmptyBatch = errors.New("empty batch")

// ErrNotFound reports an unknown batch or a fingerprint that is not a
// member of the referenced batch.
var ErrNotFound = errors.New("not found")

// ErrBadTransition reports a status update whose expected current
// status no longer holds. Batch transitions are monotonic; a stale
// caller must re-read the batch.
var ErrBadTransition = errors.New("invalid status transition")
