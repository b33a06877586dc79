package classify

import (
	"strings"

	"cookiesentinel/internal/logging"
)

// Local pass confidence tiers.
const (
	confidenceManifest = 1.0
	confidenceHigh     = 0.9
	confidenceMedium   = 0.7
	confidenceLow      = 0.3
)

// Pipeline runs the deterministic local classification passes in fixed
// priority order. It holds no mutable state and is safe for concurrent use
// once built.
type Pipeline struct {
	manifests *ManifestIndex
}

// NewPipeline builds a pipeline. manifests may be nil when no site
// declarations are available.
func NewPipeline(manifests *ManifestIndex) *Pipeline {
	return &Pipeline{manifests: manifests}
}

// Classify runs the local passes over id. It never escalates; callers that
// want escalation check for CategoryUnknown and go through the Escalator.
func (p *Pipeline) Classify(id Identifier) Classification {
	name := strings.ToLower(id.Name)
	domain := strings.ToLower(id.Domain)

	// Site manifest declarations outrank every heuristic.
	if p.manifests != nil {
		if cat, ok := p.manifests.Lookup(id.PageDomain, id.Name); ok {
			return Classification{
				Category:   cat,
				Confidence: confidenceManifest,
				Source:     SourceManifest,
				Reasoning:  "declared in site manifest",
			}
		}
	}

	// Naming convention prefixes.
	switch {
	case strings.HasPrefix(name, "analytics_") || strings.HasPrefix(name, "a_"):
		return result(CategoryAnalytics, confidenceHigh, SourcePrefix)
	case strings.HasPrefix(name, "ad_") || strings.HasPrefix(name, "advertising_"):
		return result(CategoryAdvertising, confidenceHigh, SourcePrefix)
	case strings.HasPrefix(name, "essential_") || strings.HasPrefix(name, "e_"):
		return result(CategoryEssential, confidenceHigh, SourcePrefix)
	case strings.HasPrefix(name, "personalization_") || strings.HasPrefix(name, "p_"):
		return result(CategoryPersonalization, confidenceHigh, SourcePrefix)
	}

	// Known tracker serving domains.
	for _, tp := range thirdPartyDomains {
		if domain != "" && strings.Contains(domain, tp) {
			return result(CategoryAdvertising, confidenceHigh, SourceThirdParty)
		}
	}

	// Bearer-token shaped values are auth state.
	if strings.HasPrefix(id.Value, "eyJ") {
		return result(CategoryEssential, confidenceHigh, SourceTokenShape)
	}

	// Pattern passes. Essential runs first so session/auth names are never
	// claimed by the broader analytics fragments.
	if matchesAny(name, essentialPatterns) {
		return result(CategoryEssential, confidenceHigh, SourcePattern)
	}
	if matchesAny(name, analyticsPatterns) {
		return result(CategoryAnalytics, confidenceHigh, SourcePattern)
	}
	if matchesAny(name, advertisingPatterns) {
		return result(CategoryAdvertising, confidenceHigh, SourcePattern)
	}
	// A/B testing identifiers count as analytics.
	if matchesAny(name, testingPatterns) {
		return result(CategoryAnalytics, confidenceMedium, SourcePattern)
	}
	if matchesAny(name, personalizationPatterns) {
		return result(CategoryPersonalization, confidenceMedium, SourcePattern)
	}
	if matchesAny(name, socialPatterns) {
		return result(CategorySocial, confidenceMedium, SourcePattern)
	}

	logging.ClassifyDebug("no local match for %q (%s)", id.Name, id.Domain)
	return result(CategoryUnknown, confidenceLow, SourceFallback)
}

func matchesAny(name string, patterns []string) bool {
	for _, p := range patterns {
		if strings.Contains(name, p) {
			return true
		}
	}
	return false
}

func result(cat Category, conf float64, src Source) Classification {
	return Classification{Category: cat, Confidence: conf, Source: src}
}
