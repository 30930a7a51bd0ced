// Copyright 2026 The GitChain Authors
// SPDX-License-Identifier: Apache-2.0

package atom

import "fmt"

// SourceType identifies where a field value came from. The source
// determines the initial trust level of the atom carrying the value.
type SourceType string

const (
	// SourceManufacturerFeed is structured data delivered directly by
	// the manufacturer of the product.
	SourceManufacturerFeed SourceType = "manufacturer_feed"

	// SourceDatasheetExtraction is data extracted from an official
	// manufacturer datasheet.
	SourceDatasheetExtraction SourceType = "datasheet_extraction"

	// SourceClassificationStandard is data mapped from an industry
	// classification standard such as ETIM.
	SourceClassificationStandard SourceType = "classification_standard"

	// SourceHumanReview is data entered or corrected by a human
	// reviewer.
	SourceHumanReview SourceType = "human_review"

	// SourceCustomerFeedback is data reported back by customers.
	SourceCustomerFeedback SourceType = "customer_feedback"

	// SourceAIGenerated is data produced by AI enrichment without
	// human review.
	SourceAIGenerated SourceType = "ai_generated"

	// SourceCommunity is data contributed by the open community.
	SourceCommunity SourceType = "community_contribution"
)

// TrustLevel classifies how much confidence a consumer should place
// in a field value. Levels form a strict ladder from Highest down to
// Community.
type TrustLevel string

const (
	TrustHighest   TrustLevel = "highest"
	TrustHigh      TrustLevel = "high"
	TrustCertified TrustLevel = "certified"
	TrustVerified  TrustLevel = "verified"
	TrustMedium    TrustLevel = "medium"
	TrustCustomer  TrustLevel = "customer"
	TrustGenerated TrustLevel = "generated"
	TrustCommunity TrustLevel = "community"
)

// trustRank orders levels with 1 as the most trusted. Matches the
// ranking used when selecting the winning atom for a field.
var trustRank = map[TrustLevel]int{
	TrustHighest:   1,
	TrustHigh:      2,
	TrustCertified: 3,
	TrustVerified:  4,
	TrustMedium:    5,
	TrustCustomer:  6,
	TrustGenerated: 7,
	TrustCommunity: 8,
}

var sourceTrust = map[SourceType]TrustLevel{
	SourceManufacturerFeed:       TrustHighest,
	SourceDatasheetExtraction:    TrustHigh,
	SourceClassificationStandard: TrustCertified,
	SourceHumanReview:            TrustVerified,
	SourceCustomerFeedback:       TrustCustomer,
	SourceAIGenerated:            TrustGenerated,
	SourceCommunity:              TrustCommunity,
}

// TrustFor returns the trust level a value inherits from its source.
// Unknown sources map to TrustCommunity, the most conservative level.
func TrustFor(source SourceType) TrustLevel {
	if level, ok := sourceTrust[source]; ok {
		return level
	}
	return TrustCommunity
}

// Valid reports whether the level is one of the defined ladder rungs.
func (l TrustLevel) Valid() bool {
	_, ok := trustRank[l]
	return ok
}

// Rank returns the level's position on the ladder, 1 being the most
// trusted. Unknown levels rank below every defined level.
func (l TrustLevel) Rank() int {
	if r, ok := trustRank[l]; ok {
		return r
	}
	return len(trustRank) + 1
}

// AtLeast reports whether l carries at least as much trust as min.
func (l TrustLevel) AtLeast(min TrustLevel) bool {
	return l.Rank() <= min.Rank()
}

// MinTrust returns the lower (less trusted) of two levels.
func MinTrust(a, b TrustLevel) TrustLevel {
	if a.Rank() >= b.Rank() {
		return a
	}
	return b
}

// ParseTrustLevel validates a level name read from configuration or a
// request parameter.
func ParseTrustLevel(s string) (TrustLevel, error) {
	level := TrustLevel(s)
	if !level.Valid() {
		return "", fmt.Errorf("atom: unknown trust level %q", s)
	}
	return level, nil
}
