package classify

import "cookiesentinel/internal/config"

// ShouldDelete applies the user's category preferences to a classification.
// Essential, functional, and unknown identifiers are never deleted
// automatically; social follows the personalization preference.
func ShouldDelete(cat Category, prefs config.Preferences) bool {
	switch cat {
	case CategoryAnalytics:
		return !prefs.AllowAnalytics
	case CategoryAdvertising:
		return !prefs.AllowAdvertising
	case CategoryPersonalization, CategorySocial:
		return !prefs.AllowPersonalization
	default:
		return false
	}
}
