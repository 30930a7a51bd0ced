// Copyright 2026 The GitChain Authors
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"time"

	"github.com/gitchain-foundation/gitchain/lib/fingerprint"
	"github.com/gitchain-foundation/gitchain/lib/ref"
	"github.com/gitchain-foundation/gitchain/lib/value"
)

// Meta carries the descriptive metadata written alongside container
// content. CreatedAt is fixed at version 1 and copied forward;
// UpdatedAt is the write time of the version it appears on.
type Meta struct {
	Name        string    `cbor:"name" json:"name"`
	Description string    `cbor:"description,omitempty" json:"description,omitempty"`
	Author      string    `cbor:"author" json:"author"`
	CreatedAt   time.Time `cbor:"created_at" json:"created_at"`
	UpdatedAt   time.Time `cbor:"updated_at" json:"updated_at"`
	Schema      string    `cbor:"schema,omitempty" json:"schema,omitempty"`
	Tags        []string  `cbor:"tags,omitempty" json:"tags,omitempty"`
}

// Citation attributes a piece of container content to a source
// document. Locator is a page or section reference within the source.
type Citation struct {
	SourceDocument  string  `cbor:"source_document" json:"source_document"`
	Locator         string  `cbor:"locator,omitempty" json:"locator,omitempty"`
	ConfidenceLevel float64 `cbor:"confidence_level,omitempty" json:"confidence_level,omitempty"`
}

// Container is one immutable version of a stored record, as returned
// by Read. Ref carries the concrete version, never the latest
// sentinel.
type Container struct {
	Ref         ref.ContainerRef
	Data        value.Value
	Meta        Meta
	Citations   []Citation
	Fingerprint fingerprint.Digest
	Parent      fingerprint.Digest // zero for version 1
	Message     string
}

// CommitRecord is one entry in a container's version history.
type CommitRecord struct {
	Version     int                `json:"version"`
	Fingerprint fingerprint.Digest `json:"fingerprint"`
	Parent      fingerprint.Digest `json:"parent,omitempty"`
	Author      string             `json:"author"`
	Message     string             `json:"message,omitempty"`
	CreatedAt   time.Time          `json:"created_at"`
}

// envelope is the persisted payload blob: everything about a version
// that is not a queryable column. Stored as canonical CBOR,
// zstd-compressed.
type envelope struct {
	Data      any        `cbor:"data"`
	Meta      Meta       `cbor:"meta"`
	Citations []Citation `cbor:"citations,omitempty"`
}
