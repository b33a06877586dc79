// Package enforce deletes unwanted cookies across every browser cookie
// store, tracks deletion attempts, and suppresses recreation of cookies
// that were already removed.
package enforce

import (
	"context"
	"strings"

	"golang.org/x/net/publicsuffix"
)

// Cookie is one cookie instance as reported by the browser.
type Cookie struct {
	Name     string
	Domain   string
	Path     string
	Value    string
	Secure   bool
	HTTPOnly bool
	StoreID  string // browser context the cookie lives in
}

// DeleteURL builds the URL a removal call must target: scheme derived from
// the secure flag, the dot-stripped domain, and the cookie's own path.
func (c Cookie) DeleteURL() string {
	scheme := "http://"
	if c.Secure {
		scheme = "https://"
	}
	return scheme + NormalizeDomain(c.Domain) + c.Path
}

// CookieStore is the browser-side cookie surface. The browser package
// implements it over CDP for every open context.
type CookieStore interface {
	// CookiesNamed returns every cookie with the given name across all
	// stores.
	CookiesNamed(ctx context.Context, name string) ([]Cookie, error)

	// AllCookies returns every cookie across all stores.
	AllCookies(ctx context.Context) ([]Cookie, error)

	// Remove deletes one cookie instance. It reports false when the browser
	// refused or the cookie was already gone.
	Remove(ctx context.Context, c Cookie) (bool, error)
}

// NormalizeDomain lowercases and strips the leading dot that host-wide
// cookies carry.
func NormalizeDomain(domain string) string {
	return strings.TrimPrefix(strings.ToLower(domain), ".")
}

// BlockKey identifies a cookie for attempt tracking and the blocklist.
func BlockKey(domain, name string) string {
	return NormalizeDomain(domain) + ":" + name
}

// DomainsMatch reports whether a cookie scoped to cookieDomain belongs to
// target. Exact matches and super/subdomain relationships qualify, but
// never across a public suffix boundary: a.example.com matches example.com,
// example.com never matches notexample.com or example.org.
func DomainsMatch(target, cookieDomain string) bool {
	t := NormalizeDomain(target)
	c := NormalizeDomain(cookieDomain)
	if t == "" || c == "" {
		return false
	}
	if t == c {
		return true
	}
	if !strings.HasSuffix(t, "."+c) && !strings.HasSuffix(c, "."+t) {
		return false
	}

	et, err1 := publicsuffix.EffectiveTLDPlusOne(t)
	ec, err2 := publicsuffix.EffectiveTLDPlusOne(c)
	if err1 != nil || err2 != nil {
		// Unresolvable suffix (bare TLD, localhost); the dot-boundary check
		// above already held.
		return true
	}
	return et == ec
}
