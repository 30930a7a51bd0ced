// Copyright 2026 The GitChain Authors
// SPDX-License-Identifier: Apache-2.0

package ref

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Prefix is the fixed first segment of every container identifier.
const Prefix = "0711"

// Latest is the version sentinel that resolves to the highest
// existing version at read time. Stored as 0 in ContainerRef.Version.
const Latest = 0

// ContainerType is the first classification axis of a container
// identifier. Only the five listed types are valid.
type ContainerType string

const (
	Product   ContainerType = "product"
	Campaign  ContainerType = "campaign"
	Project   ContainerType = "project"
	Memory    ContainerType = "memory"
	Knowledge ContainerType = "knowledge"
)

// Valid reports whether t is one of the known container types.
func (t ContainerType) Valid() bool {
	switch t {
	case Product, Campaign, Project, Memory, Knowledge:
		return true
	}
	return false
}

// segmentPattern constrains namespace and identifier segments. Colons
// are structurally excluded (they delimit segments); everything else
// is restricted to keep identifiers shell- and URL-safe.
var segmentPattern = regexp.MustCompile(`^[a-zA-Z0-9-]+$`)

// ContainerRef is a parsed container identifier:
//
//	0711:{type}:{namespace}:{identifier}:{version|latest}
//
// Version 0 (the Latest constant) means "highest existing version at
// read time"; any positive value addresses one immutable version.
// The zero value is not a valid reference — construct via New or
// Parse.
type ContainerRef struct {
	Type       ContainerType
	Namespace  string
	Identifier string
	Version    int
}

// New constructs a validated ContainerRef. version may be Latest.
func New(containerType ContainerType, namespace, identifier string, version int) (ContainerRef, error) {
	reference := ContainerRef{
		Type:       containerType,
		Namespace:  namespace,
		Identifier: identifier,
		Version:    version,
	}
	if err := reference.Validate(); err != nil {
		return ContainerRef{}, err
	}
	return reference, nil
}

// Parse parses a container identifier string.
func Parse(id string) (ContainerRef, error) {
	parts := strings.Split(id, ":")
	if len(parts) != 5 {
		return ContainerRef{}, fmt.Errorf("invalid container id %q: expected 0711:type:namespace:identifier:version", id)
	}
	if parts[0] != Prefix {
		return ContainerRef{}, fmt.Errorf("invalid container id %q: prefix is %q, must be %q", id, parts[0], Prefix)
	}

	version := Latest
	if parts[4] != "latest" {
		numeric, ok := strings.CutPrefix(parts[4], "v")
		if !ok {
			return ContainerRef{}, fmt.Errorf("invalid container id %q: version must be v<n> or \"latest\"", id)
		}
		parsed, err := strconv.Atoi(numeric)
		if err != nil || parsed < 1 {
			return ContainerRef{}, fmt.Errorf("invalid container id %q: version must be a positive integer", id)
		}
		version = parsed
	}

	return New(ContainerType(parts[1]), parts[2], parts[3], version)
}

// Validate checks all segments. Called by New and Parse; exported for
// callers that build references field by field.
func (r ContainerRef) Validate() error {
	if !r.Type.Valid() {
		return fmt.Errorf("invalid container ref: unknown type %q", r.Type)
	}
	if !segmentPattern.MatchString(r.Namespace) {
		return fmt.Errorf("invalid container ref: namespace %q must match [a-zA-Z0-9-]+", r.Namespace)
	}
	if !segmentPattern.MatchString(r.Identifier) {
		return fmt.Errorf("invalid container ref: identifier %q must match [a-zA-Z0-9-]+", r.Identifier)
	}
	if r.Version < 0 {
		return fmt.Errorf("invalid container ref: version %d", r.Version)
	}
	return nil
}

// IsLatest reports whether the reference uses the latest sentinel.
func (r ContainerRef) IsLatest() bool { return r.Version == Latest }

// WithVersion returns a copy addressing a specific version. Used when
// resolving "latest" to the concrete version that was read.
func (r ContainerRef) WithVersion(version int) ContainerRef {
	r.Version = version
	return r
}

// AsLatest returns a copy with the latest sentinel.
func (r ContainerRef) AsLatest() ContainerRef {
	r.Version = Latest
	return r
}

// Key returns the version-free identity "type:namespace:identifier".
// This is the unit of history: all versions of one container share a
// Key. It is also the cache invalidation prefix — invalidating a Key
// covers every version and the latest sentinel.
func (r ContainerRef) Key() string {
	return string(r.Type) + ":" + r.Namespace + ":" + r.Identifier
}

// String returns the full identifier, satisfying fmt.Stringer.
func (r ContainerRef) String() string {
	version := "latest"
	if r.Version != Latest {
		version = "v" + strconv.Itoa(r.Version)
	}
	return Prefix + ":" + r.Key() + ":" + version
}

// IsZero reports whether this is an uninitialized zero-value ref.
func (r ContainerRef) IsZero() bool {
	return r.Type == "" && r.Namespace == "" && r.Identifier == ""
}

// MarshalText implements encoding.TextMarshaler. Serializes as the
// full identifier string, the canonical external representation.
func (r ContainerRef) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (r *ContainerRef) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}
