// Copyright 2026 The GitChain Authors
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"errors"
	"time"
)

// ErrNotFound reports that the referenced container, version, or
// fingerprint does not exist.
var ErrNotFound = errors.New("not found")

// ErrConflict reports a lost write race: the expected parent was no
// longer the head, or another writer claimed the version first.
// Re-read the container and retry with fresh content.
var ErrConflict = errors.New("version conflict")

func nanosToTime(nanos int64) time.Time {
	return time.Unix(0, nanos).UTC()
}
