package consent

import (
	"regexp"
	"strings"
)

// ButtonInfo is an interactive element snapshot taken from the page.
// Ref is an opaque handle the driver can click later.
type ButtonInfo struct {
	Ref       string `json:"ref"`
	Text      string `json:"text"`
	AriaLabel string `json:"ariaLabel"`
	InnerText string `json:"innerText"`
	Visible   bool   `json:"visible"`
}

var nonWordRe = regexp.MustCompile(`[^\w\s]`)
var spaceRe = regexp.MustCompile(`\s+`)

// Normalize collapses whitespace, strips punctuation, and lowercases, so
// "Accept & Close " and "accept close" compare equal.
func Normalize(text string) string {
	t := strings.ToLower(text)
	t = spaceRe.ReplaceAllString(t, " ")
	t = nonWordRe.ReplaceAllString(t, "")
	return strings.TrimSpace(t)
}

func hasExcludedKeyword(texts ...string) bool {
	for _, text := range texts {
		for _, kw := range excludeKeywords {
			if strings.Contains(text, kw) {
				return true
			}
		}
	}
	return false
}

// FindButtonByKeywords picks the best button for a keyword set using four
// passes of decreasing strictness: exact match, prefix match, bounded
// substring match, then all-words match on short labels. Buttons carrying
// exclusion keywords never match. Returns nil when nothing qualifies.
func FindButtonByKeywords(buttons []ButtonInfo, keywords []string) *ButtonInfo {
	// Pass 1: exact match on text or aria-label.
	for i := range buttons {
		b := &buttons[i]
		if !b.Visible {
			continue
		}
		text := Normalize(b.Text)
		aria := Normalize(b.AriaLabel)
		if hasExcludedKeyword(text) {
			continue
		}
		for _, kw := range keywords {
			nkw := Normalize(kw)
			if text == nkw || aria == nkw {
				return b
			}
		}
	}

	// Pass 2: text starts with the keyword.
	for i := range buttons {
		b := &buttons[i]
		if !b.Visible {
			continue
		}
		text := Normalize(b.Text)
		if hasExcludedKeyword(text) {
			continue
		}
		for _, kw := range keywords {
			if strings.HasPrefix(text, Normalize(kw)) {
				return b
			}
		}
	}

	// Pass 3: contains the keyword, with a length bound so paragraphs that
	// mention "accept" somewhere do not qualify.
	for i := range buttons {
		b := &buttons[i]
		if !b.Visible {
			continue
		}
		text := Normalize(b.Text)
		aria := Normalize(b.AriaLabel)
		if hasExcludedKeyword(text, aria) {
			continue
		}
		for _, kw := range keywords {
			nkw := Normalize(kw)
			if strings.Contains(text, nkw) && len(text) < len(nkw)*4 {
				return b
			}
			if aria != "" && strings.Contains(aria, nkw) {
				return b
			}
		}
	}

	// Pass 4: short labels where every word of the keyword appears.
	for i := range buttons {
		b := &buttons[i]
		if !b.Visible {
			continue
		}
		text := Normalize(b.Text)
		inner := Normalize(b.InnerText)
		if len(text) == 0 || len(text) >= 25 {
			continue
		}
		for _, kw := range keywords {
			words := strings.Fields(Normalize(kw))
			if len(words) == 0 {
				continue
			}
			all := true
			for _, w := range words {
				if !strings.Contains(text, w) && !strings.Contains(inner, w) {
					all = false
					break
				}
			}
			if all {
				return b
			}
		}
	}

	return nil
}
