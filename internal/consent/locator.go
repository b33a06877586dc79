package consent

import "strings"

// Scan priorities, in the order candidates are collected from the page.
const (
	PriorityPlatform = 1 // known platform container ids
	PriorityGeneric  = 2 // generic id/class/role selectors
	PriorityShadow   = 3 // shadow DOM matches of the generic selectors
	PriorityPosition = 4 // fixed/sticky/absolute containers
	PriorityZIndex   = 5 // z-index > 999 overlays
)

// ElementInfo is a candidate container snapshot collected from the page in
// a single scan pass. The plausibility test runs over these without
// touching the page again.
type ElementInfo struct {
	Ref           string       `json:"ref"`
	Priority      int          `json:"priority"`
	Selector      string       `json:"selector"`
	Visible       bool         `json:"visible"`
	Width         float64      `json:"width"`
	Height        float64      `json:"height"`
	ViewportWidth float64      `json:"viewportWidth"`
	Position      string       `json:"position"`
	ZIndex        int          `json:"zIndex"`
	Text          string       `json:"text"`
	HTML          string       `json:"html"`
	Buttons       []ButtonInfo `json:"buttons"`
}

// FindBanner picks the first acceptable candidate. Candidates arrive
// ordered by scan priority; platform-id matches only need visibility, all
// others must pass the plausibility test.
func FindBanner(candidates []ElementInfo) *ElementInfo {
	for i := range candidates {
		c := &candidates[i]
		if c.Priority == PriorityPlatform {
			if c.Visible {
				return c
			}
			continue
		}
		if IsPlausibleBanner(c) {
			return c
		}
	}
	return nil
}

// IsPlausibleBanner decides whether a candidate container is actually a
// consent prompt and not navigation, a share widget, or page chrome.
func IsPlausibleBanner(el *ElementInfo) bool {
	if !el.Visible {
		return false
	}

	if el.Width < 150 || el.Height < 40 {
		return false
	}

	// At least one positioning signal: overlay position, notable width, or
	// an elevated stacking context.
	isFixed := el.Position == "fixed" || el.Position == "sticky" || el.Position == "absolute"
	isLarge := el.ViewportWidth > 0 && el.Width > el.ViewportWidth*0.12
	if !isFixed && !isLarge && el.ZIndex <= 30 {
		return false
	}

	text := strings.ToLower(el.Text)
	html := strings.ToLower(el.HTML)

	hasKeyword := false
	for _, kw := range containerKeywords {
		if strings.Contains(text, kw) || strings.Contains(html, kw) {
			hasKeyword = true
			break
		}
	}
	if !hasKeyword {
		return false
	}

	if len(text) < 20 {
		return false
	}

	for _, kw := range excludeKeywords {
		if strings.Contains(text, kw) {
			return false
		}
	}

	if len(el.Buttons) == 0 {
		return false
	}

	// At least one descendant control must read like a consent action.
	for _, b := range el.Buttons {
		btnText := strings.ToLower(strings.TrimSpace(b.Text))
		if hasExcludedKeyword(btnText) {
			continue
		}
		if containsAny(btnText, acceptKeywords) ||
			containsAny(btnText, rejectKeywords) ||
			containsAny(btnText, manageKeywords) {
			return true
		}
	}

	return false
}

func containsAny(text string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(text, kw) {
			return true
		}
	}
	return false
}
