// Package classify implements the tiered cookie classification pipeline:
// deterministic local passes first, then optional escalation to an external
// text classifier for identifiers the local passes cannot place.
package classify

import "strings"

// Category is a cookie purpose category.
type Category string

const (
	CategoryEssential       Category = "essential"
	CategoryFunctional      Category = "functional"
	CategoryAnalytics       Category = "analytics"
	CategoryAdvertising     Category = "advertising"
	CategoryPersonalization Category = "personalization"
	CategorySocial          Category = "social"
	CategoryUnknown         Category = "unknown"
)

// escalationCategories is the canonical taxonomy the external classifier is
// asked for. Anything outside it is normalized in validateResult.
var escalationCategories = map[Category]bool{
	CategoryEssential:       true,
	CategoryAnalytics:       true,
	CategoryAdvertising:     true,
	CategoryPersonalization: true,
}

// normalizeCategory maps spelling variants onto the canonical taxonomy.
func normalizeCategory(raw string) Category {
	switch Category(strings.ToLower(strings.TrimSpace(raw))) {
	case CategoryEssential, "necessary", "strictly necessary":
		return CategoryEssential
	case CategoryAnalytics, "statistics", "analytical", "performance":
		return CategoryAnalytics
	case CategoryAdvertising, "advertisement", "ads", "marketing", "targeting":
		return CategoryAdvertising
	case CategoryPersonalization, "personalisation", "preferences":
		return CategoryPersonalization
	default:
		return ""
	}
}

// Source records which pass produced a classification.
type Source string

const (
	SourceManifest   Source = "manifest"
	SourcePrefix     Source = "prefix"
	SourceThirdParty Source = "third_party"
	SourceTokenShape Source = "token_shape"
	SourcePattern    Source = "pattern"
	SourceEscalation Source = "escalation"
	SourceFallback   Source = "fallback"
)

// Classification is the outcome of classifying one identifier.
type Classification struct {
	Category   Category
	Confidence float64
	Source     Source
	Reasoning  string
}

// NeedsReview reports whether the classification falls below the confidence
// needed to act automatically.
func (c Classification) NeedsReview() bool {
	return c.Confidence < ReviewThreshold
}

// ReviewThreshold is the minimum confidence for automatic action on an
// escalated classification.
const ReviewThreshold = 0.8

// Identifier is the subject of classification: a cookie observed in the
// browser, reduced to the fields the pipeline inspects.
type Identifier struct {
	Name       string
	Domain     string
	Value      string
	PageDomain string
}
