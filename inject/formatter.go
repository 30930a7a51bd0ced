// Copyright 2026 The GitChain Authors
// SPDX-License-Identifier: Apache-2.0

package inject

import (
	"encoding/json"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// TruncationMarker is appended whenever formatted output is cut to
// fit a token budget. It is part of the output contract: consumers
// detect truncation by its presence, so it is never dropped.
const TruncationMarker = "[... truncated for context limit]"

// Format selects the rendering of a resolved bundle.
type Format string

const (
	FormatMarkdown Format = "markdown"
	FormatJSON     Format = "json"
	FormatYAML     Format = "yaml"
)

// ParseFormat validates a format name from a flag or request.
func ParseFormat(s string) (Format, error) {
	switch f := Format(s); f {
	case FormatMarkdown, FormatJSON, FormatYAML:
		return f, nil
	default:
		return "", fmt.Errorf("inject: unknown format %q", s)
	}
}

// FormatOptions controls bundle rendering.
type FormatOptions struct {
	// Format defaults to markdown.
	Format Format

	// IncludeCitations renders source citations alongside the data.
	IncludeCitations bool

	// MaxTokens caps the estimated token count of the output. Zero
	// means unbounded. Output exceeding the cap is truncated and
	// TruncationMarker appended.
	MaxTokens int
}

// EstimateTokens approximates the token count of a rendered string.
// The heuristic is four bytes per token, rounded up, which tracks
// typical tokenizer behavior on English prose and JSON closely enough
// for budgeting.
func EstimateTokens(s string) int {
	return (len(s) + 3) / 4
}

// FormatContext renders a resolved bundle for injection into a model
// context window. It returns the rendered string and its estimated
// token count. When MaxTokens is set and the rendering exceeds it,
// the output is truncated with TruncationMarker appended; the marker
// itself always fits inside the budget's byte allowance.
func FormatContext(bundle *Bundle, opts FormatOptions) (string, int, error) {
	if bundle == nil {
		return "", 0, fmt.Errorf("inject: nil bundle")
	}
	if opts.Format == "" {
		opts.Format = FormatMarkdown
	}

	var rendered string
	var err error
	switch opts.Format {
	case FormatMarkdown:
		rendered, err = renderMarkdown(bundle, opts.IncludeCitations)
	case FormatJSON:
		rendered, err = renderJSON(bundle, opts.IncludeCitations)
	case FormatYAML:
		rendered, err = renderYAML(bundle, opts.IncludeCitations)
	default:
		return "", 0, fmt.Errorf("inject: unknown format %q", opts.Format)
	}
	if err != nil {
		return "", 0, err
	}

	if opts.MaxTokens > 0 {
		rendered = truncate(rendered, opts.MaxTokens)
	}
	return rendered, EstimateTokens(rendered), nil
}

// truncate cuts the rendering to fit maxTokens and appends the
// marker. The budget is converted back to a byte allowance with the
// same four-bytes-per-token rule used by EstimateTokens.
func truncate(s string, maxTokens int) string {
	if EstimateTokens(s) <= maxTokens {
		return s
	}
	budget := maxTokens * 4
	keep := budget - len(TruncationMarker) - 1
	if keep < 0 {
		keep = 0
	}
	if keep > len(s) {
		keep = len(s)
	}
	// Back off to a rune boundary so the cut never splits a
	// multi-byte character.
	for keep > 0 && s[keep]&0xC0 == 0x80 {
		keep--
	}
	cut := strings.TrimRight(s[:keep], " \t\n")
	if cut == "" {
		return TruncationMarker
	}
	return cut + "\n" + TruncationMarker
}

// bundleView is the serialized shape for the JSON and YAML formats.
type bundleView struct {
	Containers []containerView `json:"containers" yaml:"containers"`
	Verified   bool            `json:"verified" yaml:"verified"`
	VerifiedAt string          `json:"verified_at,omitempty" yaml:"verified_at,omitempty"`
	Incomplete bool            `json:"incomplete,omitempty" yaml:"incomplete,omitempty"`
}

type containerView struct {
	ID        string         `json:"id" yaml:"id"`
	Name      string         `json:"name,omitempty" yaml:"name,omitempty"`
	Version   int            `json:"version,omitempty" yaml:"version,omitempty"`
	Verified  bool           `json:"verified" yaml:"verified"`
	Reason    string         `json:"reason,omitempty" yaml:"reason,omitempty"`
	Error     string         `json:"error,omitempty" yaml:"error,omitempty"`
	Data      any            `json:"data,omitempty" yaml:"data,omitempty"`
	Citations []citationView `json:"citations,omitempty" yaml:"citations,omitempty"`
	Proof     *ChainProof    `json:"chain_proof,omitempty" yaml:"chain_proof,omitempty"`
}

type citationView struct {
	Document   string  `json:"document" yaml:"document"`
	Locator    string  `json:"locator,omitempty" yaml:"locator,omitempty"`
	Confidence float64 `json:"confidence,omitempty" yaml:"confidence,omitempty"`
}

func viewOf(bundle *Bundle, includeCitations bool) bundleView {
	view := bundleView{
		Verified:   bundle.Verified,
		Incomplete: bundle.Incomplete,
	}
	if !bundle.VerifiedAt.IsZero() {
		view.VerifiedAt = bundle.VerifiedAt.UTC().Format("2006-01-02T15:04:05Z07:00")
	}
	for _, entry := range bundle.Containers {
		cv := containerView{
			ID:       entry.ID,
			Verified: entry.Verified,
			Reason:   entry.Reason,
			Error:    entry.Err,
			Proof:    entry.Proof,
		}
		if c := entry.Container; c != nil {
			cv.Name = c.Meta.Name
			cv.Version = c.Ref.Version
			cv.Data = c.Data.Interface()
			if includeCitations {
				for _, cite := range c.Citations {
					cv.Citations = append(cv.Citations, citationView{
						Document:   cite.SourceDocument,
						Locator:    cite.Locator,
						Confidence: cite.ConfidenceLevel,
					})
				}
			}
		}
		view.Containers = append(view.Containers, cv)
	}
	return view
}

func renderJSON(bundle *Bundle, includeCitations bool) (string, error) {
	out, err := json.MarshalIndent(viewOf(bundle, includeCitations), "", "  ")
	if err != nil {
		return "", fmt.Errorf("inject: encode json: %w", err)
	}
	return string(out), nil
}

func renderYAML(bundle *Bundle, includeCitations bool) (string, error) {
	out, err := yaml.Marshal(viewOf(bundle, includeCitations))
	if err != nil {
		return "", fmt.Errorf("inject: encode yaml: %w", err)
	}
	return string(out), nil
}

func renderMarkdown(bundle *Bundle, includeCitations bool) (string, error) {
	var b strings.Builder

	for _, entry := range bundle.Containers {
		fmt.Fprintf(&b, "## %s\n\n", entry.ID)

		if entry.Err != "" {
			fmt.Fprintf(&b, "> unresolved: %s\n\n", entry.Err)
			continue
		}
		c := entry.Container
		if c.Meta.Name != "" {
			fmt.Fprintf(&b, "**%s**\n", c.Meta.Name)
		}
		if c.Meta.Description != "" {
			fmt.Fprintf(&b, "%s\n", c.Meta.Description)
		}
		if c.Meta.Name != "" || c.Meta.Description != "" {
			b.WriteString("\n")
		}

		switch {
		case entry.Verified:
			fmt.Fprintf(&b, "Provenance: verified against ledger anchor (batch %d, tx %s)\n\n",
				entry.Proof.BatchID, entry.Proof.TxHash)
		case entry.Reason != "":
			fmt.Fprintf(&b, "Provenance: unverified (%s)\n\n", entry.Reason)
		}

		data, err := json.MarshalIndent(c.Data.Interface(), "", "  ")
		if err != nil {
			return "", fmt.Errorf("inject: encode container %s: %w", entry.ID, err)
		}
		fmt.Fprintf(&b, "```json\n%s\n```\n\n", data)

		if includeCitations && len(c.Citations) > 0 {
			b.WriteString("Sources:\n")
			for _, cite := range c.Citations {
				fmt.Fprintf(&b, "- %s", cite.SourceDocument)
				if cite.Locator != "" {
					fmt.Fprintf(&b, " (%s)", cite.Locator)
				}
				b.WriteString("\n")
			}
			b.WriteString("\n")
		}
	}

	if bundle.Incomplete {
		b.WriteString("> note: resolution incomplete, request deadline expired\n")
	}
	return strings.TrimRight(b.String(), "\n") + "\n", nil
}
