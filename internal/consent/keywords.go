// Package consent locates consent prompts on live pages and resolves them
// according to the user's preferences. The locator and button matcher are
// pure functions over snapshots collected from the page; the resolver owns
// the per-page lifecycle.
package consent

import "strings"

// Keyword tables driving banner recognition and button selection.
var (
	containerKeywords = []string{
		"cookie", "consent", "gdpr", "privacy", "banner", "notice",
		"policy", "tracking", "ccpa", "compliance", "preferences",
	}

	rejectKeywords = []string{
		"reject all", "reject", "deny all", "deny", "decline all", "decline",
		"refuse", "refuse all", "no thanks", "only necessary", "essential only",
		"necessary only", "no cookies", "opt out",
	}

	acceptKeywords = []string{
		// Primary exact matches
		"accept all", "accept all cookies", "allow all", "allow all cookies",
		"accept", "allow", "agree", "agree and continue", "agree and close",
		"ok", "got it", "i understand", "continue", "i agree", "i accept",
		"accept cookies", "allow cookies", "consent", "yes", "enable all",
		"accept and close", "accept & close", "allow & continue", "understood",
		// Compact variations
		"acceptall", "allowall", "acceptallcookies", "allowallcookies",
		// Additional common variations
		"accept all and close", "i agree to", "agree to all", "agree to cookies",
		"yes, i agree", "yes i agree", "accept everything", "allow everything",
	}

	manageKeywords = []string{
		"manage", "settings", "customize", "options",
		"cookie settings", "manage preferences", "more options",
		"set cookie preferences", "cookie preferences", "preferences",
		"confirm my choices", "save my choices", "confirm choices",
		"manage my preferences", "cookie options", "customize cookies",
	}

	saveKeywords = []string{
		"save", "confirm", "apply", "accept selection", "save preferences", "save choices",
	}

	dismissKeywords = []string{"ok", "got it", "continue"}

	// Containers and buttons carrying these are never consent controls.
	excludeKeywords = []string{
		"payment", "shipping", "checkout", "cart", "product", "search",
		"menu", "navigation", "login", "sign in", "register", "account",
		// Share widgets look like consent dialogs to the broad selectors.
		"facebook", "twitter", "linkedin", "instagram", "youtube",
		"pinterest", "whatsapp", "share", "follow", "tweet",
	}
)

// Platform describes a known consent management platform.
type Platform struct {
	Name            string
	Indicators      []string
	AcceptSelectors []string
	RejectSelectors []string
}

// Platforms lists the consent management platforms handled with dedicated
// selectors before generic detection runs.
var Platforms = []Platform{
	{
		Name: "onetrust",
		Indicators: []string{
			"#onetrust-banner-sdk",
			".onetrust-pc-dark-filter",
			"#onetrust-consent-sdk",
		},
		AcceptSelectors: []string{
			"#onetrust-accept-btn-handler",
			".onetrust-accept-btn-handler",
			`button[title*="Accept All"]`,
			".ot-pc-agree-button",
			".accept-all-button",
		},
		RejectSelectors: []string{
			".ot-pc-refuse-all-handler",
			"#onetrust-reject-all-handler",
			`button[title*="Reject"]`,
		},
	},
	{
		Name: "cookiebot",
		Indicators: []string{
			"#CybotCookiebotDialog",
			`[id^="Cookiebot"]`,
			".CybotCookiebotDialog",
		},
		AcceptSelectors: []string{
			"#CybotCookiebotDialogBodyLevelButtonLevelOptinAllowAll",
			"#CybotCookiebotDialogBodyButtonAccept",
			`[data-cookieconsent="accept"]`,
			`a[id*="Allow"]`,
		},
		RejectSelectors: []string{
			`[data-cookieconsent="deny"]`,
			"#CybotCookiebotDialogBodyButtonDecline",
		},
	},
	{
		Name: "quantcast",
		Indicators: []string{
			"#qc-cmp2-ui",
			".qc-cmp2-container",
			`[class*="qc-cmp"]`,
		},
		AcceptSelectors: []string{
			".qc-cmp2-summary-buttons > button:first-child",
			`button[mode="primary"]`,
			`button[aria-label*="Accept"]`,
		},
		RejectSelectors: []string{
			".qc-cmp2-summary-buttons > button:last-child",
			`button[mode="secondary"]`,
		},
	},
	{
		Name: "cookiepro",
		Indicators: []string{
			".cookiepro-banner",
			"#cookiepro-banner",
		},
		AcceptSelectors: []string{
			"#cookiepro-accept-all",
			".cookiepro-accept-button",
		},
		RejectSelectors: []string{
			"#cookiepro-reject-all",
		},
	},
	{
		Name: "trustarc",
		Indicators: []string{
			"#truste-consent-track",
			".truste-banner",
		},
		AcceptSelectors: []string{
			".truste-button1",
			`[aria-label*="Accept"]`,
			`button[title*="Accept"]`,
		},
		RejectSelectors: []string{
			".truste-button2",
			`[aria-label*="Reject"]`,
		},
	},
}

// platformBannerSelectors are the fast-path banner lookups tried before the
// generic scan.
var platformBannerSelectors = []string{
	"#onetrust-banner-sdk", "#onetrust-consent-sdk", "#onetrust-pc-sdk",
	"#CybotCookiebotDialog", "#CookiebotWidget",
	"#qc-cmp2-ui",
	"#truste-consent-track",
	".osano-cm-dialog",
	".onetrust-pc-dark-filter", ".ot-sdk-container", "[data-onetrust-banner]",
}

// genericBannerSelectors feed the generic, shadow DOM, and positioned
// element scans.
var genericBannerSelectors = []string{
	`[id*="cookie"]`, `[id*="consent"]`, `[id*="gdpr"]`, `[id*="privacy"]`, `[id*="banner"]`,
	`[class*="cookie"]`, `[class*="consent"]`, `[class*="gdpr"]`, `[class*="privacy"]`, `[class*="banner"]`,
	`[role="dialog"][aria-label*="cookie"]`, `[role="dialog"][aria-label*="consent"]`, `[role="dialog"][aria-label*="privacy"]`,
	`[role="dialog"]`, `[role="alertdialog"]`,
	`[data-testid*="cookie"]`, `[data-testid*="consent"]`, `[data-testid*="privacy"]`,
	`[class*="onetrust"]`, `[class*="ot-sdk"]`, `[class*="optanon"]`,
}

// PlatformBannerSelectors returns the fast-path banner selectors for the
// page scan.
func PlatformBannerSelectors() []string { return platformBannerSelectors }

// GenericBannerSelectors returns the generic container selectors for the
// page scan.
func GenericBannerSelectors() []string { return genericBannerSelectors }

// ToggleCategory maps a toggle's label text onto a preference category.
// Returns "" when the label names no recognizable category.
func ToggleCategory(label string) string {
	l := strings.ToLower(label)
	switch {
	case strings.Contains(l, "analytics") || strings.Contains(l, "statistics") || strings.Contains(l, "measurement"):
		return "analytics"
	case strings.Contains(l, "advertising") || strings.Contains(l, "marketing") || strings.Contains(l, "ad"):
		return "advertising"
	case strings.Contains(l, "personalization") || strings.Contains(l, "functional") || strings.Contains(l, "preference"):
		return "personalization"
	case strings.Contains(l, "necessary") || strings.Contains(l, "essential") || strings.Contains(l, "required"):
		return "essential"
	default:
		return ""
	}
}
