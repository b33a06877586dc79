package classify

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cookiesentinel/internal/config"
)

func TestClassifyPrefixesWinFirst(t *testing.T) {
	p := NewPipeline(nil)

	tests := []struct {
		name string
		want Category
	}{
		{"analytics_pageviews", CategoryAnalytics},
		{"a_visitor", CategoryAnalytics},
		{"ad_campaign", CategoryAdvertising},
		{"advertising_id", CategoryAdvertising},
		{"essential_session", CategoryEssential},
		{"e_token", CategoryEssential},
		{"personalization_theme", CategoryPersonalization},
		{"p_lang", CategoryPersonalization},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := p.Classify(Identifier{Name: tt.name})
			assert.Equal(t, tt.want, c.Category)
			assert.Equal(t, SourcePrefix, c.Source)
		})
	}
}

func TestClassifyThirdPartyDomain(t *testing.T) {
	p := NewPipeline(nil)

	c := p.Classify(Identifier{Name: "whatever", Domain: ".stats.doubleclick.net"})
	assert.Equal(t, CategoryAdvertising, c.Category)
	assert.Equal(t, SourceThirdParty, c.Source)
}

func TestClassifyBearerTokenShape(t *testing.T) {
	p := NewPipeline(nil)

	c := p.Classify(Identifier{Name: "opaque_blob", Value: "eyJhbGciOiJIUzI1NiJ9.payload.sig"})
	assert.Equal(t, CategoryEssential, c.Category)
	assert.Equal(t, SourceTokenShape, c.Source)
}

func TestClassifyPatternOrder(t *testing.T) {
	p := NewPipeline(nil)

	tests := []struct {
		name string
		want Category
	}{
		{"JSESSIONID", CategoryEssential},
		{"OptanonConsent", CategoryEssential},
		{"_hjSession_12", CategoryEssential}, // "session" fragment outranks the Hotjar entry
		{"_ga", CategoryAnalytics},
		{"__utma", CategoryAnalytics},
		{"_clck", CategoryAnalytics},
		{"_fbp", CategoryAdvertising},
		{"criteo_sync", CategoryAdvertising},
		{"_vwo_ds", CategoryAnalytics}, // testing bucket folds into analytics
		{"dark_mode", CategoryPersonalization},
		{"__atuvc", CategorySocial},
		{"zqx9_totally_novel", CategoryUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := p.Classify(Identifier{Name: tt.name})
			assert.Equal(t, tt.want, c.Category)
		})
	}
}

// Session names that also contain analytics fragments must land on
// essential because that pass runs first.
func TestClassifyEssentialBeatsAnalytics(t *testing.T) {
	p := NewPipeline(nil)

	c := p.Classify(Identifier{Name: "laravel_session"})
	assert.Equal(t, CategoryEssential, c.Category)
}

func TestClassifyManifestOutranksPatterns(t *testing.T) {
	idx := NewManifestIndex()
	idx.add(&Manifest{
		Domain: "example.com",
		Cookies: []ManifestCookie{
			{Name: "_ga", Category: "analytics"},
			{Name: "site_theme", Category: "functional"},
			{Name: "guard", Essential: true, Category: "advertising"},
		},
	})
	p := NewPipeline(idx)

	c := p.Classify(Identifier{Name: "_ga", PageDomain: "www.example.com"})
	require.Equal(t, SourceManifest, c.Source)
	assert.Equal(t, CategoryAnalytics, c.Category)
	assert.Equal(t, 1.0, c.Confidence)

	// The essential flag on a declaration beats its category string.
	c = p.Classify(Identifier{Name: "guard", PageDomain: "example.com"})
	assert.Equal(t, CategoryEssential, c.Category)

	// Undeclared names fall through to the pattern passes.
	c = p.Classify(Identifier{Name: "_fbp", PageDomain: "example.com"})
	assert.Equal(t, SourcePattern, c.Source)
	assert.Equal(t, CategoryAdvertising, c.Category)
}

func TestManifestDomainPrefixStripping(t *testing.T) {
	idx := NewManifestIndex()
	idx.add(&Manifest{Domain: "news.co", Cookies: []ManifestCookie{{Name: "x", Category: "analytics"}}})

	for _, host := range []string{"news.co", "www.news.co", "us.news.co", "uk.news.co"} {
		_, ok := idx.Lookup(host, "x")
		assert.True(t, ok, host)
	}
	_, ok := idx.Lookup("cdn.news.co", "x")
	assert.False(t, ok)
}

func TestShouldDeletePolicy(t *testing.T) {
	blockAll := config.Preferences{}
	allowAll := config.Preferences{AllowAnalytics: true, AllowAdvertising: true, AllowPersonalization: true}

	tests := []struct {
		cat            Category
		underBlockAll  bool
		underAllowAll  bool
	}{
		{CategoryEssential, false, false},
		{CategoryFunctional, false, false},
		{CategoryUnknown, false, false},
		{CategoryAnalytics, true, false},
		{CategoryAdvertising, true, false},
		{CategoryPersonalization, true, false},
		{CategorySocial, true, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.cat), func(t *testing.T) {
			assert.Equal(t, tt.underBlockAll, ShouldDelete(tt.cat, blockAll))
			assert.Equal(t, tt.underAllowAll, ShouldDelete(tt.cat, allowAll))
		})
	}
}

func TestNeedsReview(t *testing.T) {
	assert.True(t, Classification{Confidence: 0.79}.NeedsReview())
	assert.False(t, Classification{Confidence: 0.8}.NeedsReview())
}
