// Copyright 2026 The GitChain Authors
// SPDX-License-Identifier: Apache-2.0

// Package atom models per-field provenance. A container's data is an
// aggregate of atoms: each field value carries its source type, the
// contributor who supplied it, an optional citation into a source
// document, and a trust level derived from the source. The trust
// shown for a whole container is the minimum among its atoms, so a
// single unreviewed AI enrichment pulls the container down until a
// reviewer verifies it.
package atom

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"
)

// Contributor identifies who supplied a field value.
type Contributor struct {
	ID           string `json:"id"`
	Name         string `json:"name,omitempty"`
	Role         string `json:"role,omitempty"`
	Organization string `json:"organization,omitempty"`
}

// Citation points an atom back into the source document its value was
// taken from.
type Citation struct {
	Document   string  `json:"document"`
	Section    string  `json:"section,omitempty"`
	Excerpt    string  `json:"excerpt,omitempty"`
	Confidence float64 `json:"confidence,omitempty"`
	Method     string  `json:"method,omitempty"`
}

// Verification records a reviewer signing off on an atom's value.
type Verification struct {
	VerifiedBy string    `json:"verified_by"`
	VerifiedAt time.Time `json:"verified_at"`
	Method     string    `json:"method,omitempty"`
	Notes      string    `json:"notes,omitempty"`
}

// Atom is the smallest provenance-tracked unit: one field value with
// its full lineage.
type Atom struct {
	FieldPath    string        `json:"field_path"`
	Value        any           `json:"value"`
	Unit         string        `json:"unit,omitempty"`
	Source       SourceType    `json:"source_type"`
	Contributor  Contributor   `json:"contributor,omitempty"`
	Citation     *Citation     `json:"citation,omitempty"`
	Trust        TrustLevel    `json:"trust_level"`
	Verification *Verification `json:"verification,omitempty"`
	CreatedAt    time.Time     `json:"created_at"`
}

// Verified reports whether a reviewer has signed off on the atom.
func (a Atom) Verified() bool {
	return a.Verification != nil
}

// New builds an atom for a single field value, deriving its trust
// level from the source.
func New(fieldPath string, value any, source SourceType, contributor Contributor, createdAt time.Time) Atom {
	return Atom{
		FieldPath:   fieldPath,
		Value:       value,
		Source:      source,
		Contributor: contributor,
		Trust:       TrustFor(source),
		CreatedAt:   createdAt,
	}
}

// Promote records a reviewer verification on the atom. Verification
// lifts an AI-generated value to the verified rung; values from other
// sources keep their trust level and just gain the sign-off.
func Promote(a Atom, v Verification) Atom {
	a.Verification = &v
	if a.Source == SourceAIGenerated {
		a.Trust = TrustVerified
	}
	return a
}

// ContainerTrust returns the display trust for a set of atoms: the
// minimum among them. An empty set carries no provenance and reports
// the lowest rung.
func ContainerTrust(atoms []Atom) TrustLevel {
	if len(atoms) == 0 {
		return TrustCommunity
	}
	trust := atoms[0].Trust
	for _, a := range atoms[1:] {
		trust = MinTrust(trust, a.Trust)
	}
	return trust
}

// Decompose flattens container data into one atom per leaf field,
// all attributed to the same source and contributor. Nested maps
// produce dotted paths and slice elements are addressed by index, so
// {"specs": {"voltage": 18}} yields the path "specs.voltage".
func Decompose(data map[string]any, source SourceType, contributor Contributor, createdAt time.Time) []Atom {
	var atoms []Atom
	flatten("", data, func(path string, value any) {
		atoms = append(atoms, New(path, value, source, contributor, createdAt))
	})
	slices.SortFunc(atoms, func(a, b Atom) int {
		return strings.Compare(a.FieldPath, b.FieldPath)
	})
	return atoms
}

func flatten(prefix string, value any, emit func(path string, value any)) {
	switch v := value.(type) {
	case map[string]any:
		if len(v) == 0 {
			emit(prefix, v)
			return
		}
		for key, child := range v {
			flatten(joinPath(prefix, key), child, emit)
		}
	case []any:
		if len(v) == 0 {
			emit(prefix, v)
			return
		}
		for i, child := range v {
			flatten(joinPath(prefix, strconv.Itoa(i)), child, emit)
		}
	default:
		emit(prefix, v)
	}
}

func joinPath(prefix, key string) string {
	if prefix == "" {
		return key
	}
	return prefix + "." + key
}

// FilterOptions narrows a set of atoms before assembly or injection.
type FilterOptions struct {
	// TrustMin drops atoms below this trust level when set.
	TrustMin TrustLevel

	// VerifiedOnly keeps only atoms with a reviewer sign-off.
	VerifiedOnly bool

	// Fields keeps only atoms whose path equals, or is nested under,
	// one of the listed paths. Empty keeps everything.
	Fields []string
}

// Filter returns the atoms that pass the options, preserving order.
func Filter(atoms []Atom, opts FilterOptions) []Atom {
	var out []Atom
	for _, a := range atoms {
		if opts.TrustMin != "" && !a.Trust.AtLeast(opts.TrustMin) {
			continue
		}
		if opts.VerifiedOnly && !a.Verified() {
			continue
		}
		if len(opts.Fields) > 0 && !matchesField(a.FieldPath, opts.Fields) {
			continue
		}
		out = append(out, a)
	}
	return out
}

func matchesField(path string, fields []string) bool {
	for _, f := range fields {
		if path == f || strings.HasPrefix(path, f+".") {
			return true
		}
	}
	return false
}

// Winning selects the atom that should represent each field path: the
// most trusted contribution, with newer atoms breaking ties. The
// result maps field path to its winning atom.
func Winning(atoms []Atom) map[string]Atom {
	winners := make(map[string]Atom)
	for _, a := range atoms {
		current, ok := winners[a.FieldPath]
		if !ok || better(a, current) {
			winners[a.FieldPath] = a
		}
	}
	return winners
}

func better(candidate, current Atom) bool {
	cr, wr := candidate.Trust.Rank(), current.Trust.Rank()
	if cr != wr {
		return cr < wr
	}
	return candidate.CreatedAt.After(current.CreatedAt)
}

// Reassemble folds atoms back into nested container data, the inverse
// of Decompose. When several atoms share a field path the winning one
// supplies the value.
func Reassemble(atoms []Atom) (map[string]any, error) {
	root := make(map[string]any)
	winners := Winning(atoms)

	paths := make([]string, 0, len(winners))
	for path := range winners {
		paths = append(paths, path)
	}
	slices.Sort(paths)

	for _, path := range paths {
		if err := setPath(root, path, winners[path].Value); err != nil {
			return nil, err
		}
	}
	return root, nil
}

func setPath(root map[string]any, path string, value any) error {
	segments := strings.Split(path, ".")
	node := root
	for i, seg := range segments[:len(segments)-1] {
		child, ok := node[seg]
		if !ok {
			next := make(map[string]any)
			node[seg] = next
			node = next
			continue
		}
		next, ok := child.(map[string]any)
		if !ok {
			return fmt.Errorf("atom: path %q conflicts with leaf at %q", path, strings.Join(segments[:i+1], "."))
		}
		node = next
	}
	node[segments[len(segments)-1]] = value
	return nil
}
