package consent

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func plausibleCandidate() ElementInfo {
	return ElementInfo{
		Ref:           "c1",
		Priority:      PriorityGeneric,
		Selector:      `[class*="cookie"]`,
		Visible:       true,
		Width:         600,
		Height:        120,
		ViewportWidth: 1280,
		Position:      "fixed",
		ZIndex:        100,
		Text:          "We use cookies to improve your experience. See our privacy policy for details.",
		HTML:          `<div class="cookie-banner">...</div>`,
		Buttons: []ButtonInfo{
			{Ref: "b1", Text: "Accept all", Visible: true},
			{Ref: "b2", Text: "Manage preferences", Visible: true},
		},
	}
}

func TestPlausibleBannerAccepted(t *testing.T) {
	c := plausibleCandidate()
	assert.True(t, IsPlausibleBanner(&c))
}

func TestPlausibilityRejectsInvisible(t *testing.T) {
	c := plausibleCandidate()
	c.Visible = false
	assert.False(t, IsPlausibleBanner(&c))
}

func TestPlausibilityRejectsSmallElements(t *testing.T) {
	c := plausibleCandidate()
	c.Width = 149
	assert.False(t, IsPlausibleBanner(&c))

	c = plausibleCandidate()
	c.Height = 39
	assert.False(t, IsPlausibleBanner(&c))
}

func TestPlausibilityNeedsPositioningSignal(t *testing.T) {
	c := plausibleCandidate()
	c.Position = "static"
	c.ZIndex = 10
	c.Width = 150 // below 12% of the 1280px viewport
	assert.False(t, IsPlausibleBanner(&c))

	// Any one signal is enough.
	c.ZIndex = 31
	assert.True(t, IsPlausibleBanner(&c))
}

func TestPlausibilityRejectsShortKeywordText(t *testing.T) {
	c := plausibleCandidate()
	c.Text = "Cookie notice?!" // keyword present but under 20 chars
	assert.False(t, IsPlausibleBanner(&c))
}

func TestPlausibilityRejectsMissingKeyword(t *testing.T) {
	c := plausibleCandidate()
	c.Text = "Subscribe to our newsletter for weekly updates"
	c.HTML = "<div>newsletter</div>"
	assert.False(t, IsPlausibleBanner(&c))
}

func TestPlausibilityRejectsExcludedContext(t *testing.T) {
	c := plausibleCandidate()
	c.Text = "Your checkout cart uses cookies to keep items saved between visits"
	assert.False(t, IsPlausibleBanner(&c))
}

func TestPlausibilityNeedsConsentButton(t *testing.T) {
	c := plausibleCandidate()
	c.Buttons = nil
	assert.False(t, IsPlausibleBanner(&c))

	c = plausibleCandidate()
	c.Buttons = []ButtonInfo{{Ref: "b", Text: "Subscribe", Visible: true}}
	assert.False(t, IsPlausibleBanner(&c))

	// A consent-looking control that carries an exclusion keyword does not
	// count.
	c.Buttons = []ButtonInfo{{Ref: "b", Text: "Accept and follow us", Visible: true}}
	assert.False(t, IsPlausibleBanner(&c))
}

func TestFindBannerPlatformNeedsOnlyVisibility(t *testing.T) {
	platform := ElementInfo{
		Ref:      "p1",
		Priority: PriorityPlatform,
		Selector: "#onetrust-banner-sdk",
		Visible:  true,
		// Fails every plausibility criterion on purpose.
		Width: 10, Height: 10, Text: "x",
	}
	got := FindBanner([]ElementInfo{platform})
	require.NotNil(t, got)
	assert.Equal(t, "p1", got.Ref)

	platform.Visible = false
	assert.Nil(t, FindBanner([]ElementInfo{platform}))
}

func TestFindBannerScanOrder(t *testing.T) {
	implausible := plausibleCandidate()
	implausible.Ref = "first"
	implausible.Text = "too short"

	good := plausibleCandidate()
	good.Ref = "second"
	good.Priority = PriorityZIndex

	got := FindBanner([]ElementInfo{implausible, good})
	require.NotNil(t, got)
	assert.Equal(t, "second", got.Ref)
}
