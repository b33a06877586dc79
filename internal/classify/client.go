package classify

import (
	"context"
	"fmt"
	"regexp"
	"strings"
)

// RateLimitError indicates the provider refused the request for pacing
// reasons; the escalator retries these once.
type RateLimitError struct {
	Provider string
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("%s: rate limited", e.Provider)
}

// rawResult is the unvalidated provider response.
type rawResult struct {
	Category   string  `json:"category"`
	Confidence float64 `json:"confidence"`
	Reasoning  string  `json:"reasoning"`
}

// Client is a provider that classifies one identifier.
type Client interface {
	Name() string
	Classify(ctx context.Context, id Identifier) (rawResult, error)
}

// classifyPrompt builds the provider prompt. Values are truncated so the
// request never carries full token contents.
func classifyPrompt(id Identifier) string {
	value := id.Value
	if value == "" {
		value = "N/A"
	} else if len(value) > 100 {
		value = value[:100]
	}

	return fmt.Sprintf(`You are a cookie classification expert. Analyze this cookie and provide ONLY a JSON response.

Cookie name: %q
Domain: %q
Value: %q

Classify into ONE of these categories:
- essential        (required for login, session, security, site operation)
- analytics        (site measurement, performance, behavior tracking)
- personalisation  (preferences, customisation, A/B testing, UX tailoring)
- advertisement    (ads, retargeting, cross-site tracking, campaign IDs)

Respond ONLY with valid JSON in this exact format:
{"category":"<category>","confidence":<0.0-1.0>,"reasoning":"<brief explanation>"}`,
		id.Name, id.Domain, value)
}

var codeFenceRe = regexp.MustCompile("```(?:json)?\\n?")

// stripCodeFences removes markdown fences models wrap JSON in despite the
// prompt asking for bare JSON.
func stripCodeFences(s string) string {
	return strings.TrimSpace(codeFenceRe.ReplaceAllString(s, ""))
}
