package browser

import (
	"context"
	"fmt"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"

	"cookiesentinel/internal/enforce"
	"cookiesentinel/internal/logging"
)

// Cookies is the CDP-backed cookie surface across every browser context.
// The default context carries an empty store id; incognito contexts use
// their CDP context id.
type Cookies struct {
	mgr *Manager
}

func (c *Cookies) browser() (*rod.Browser, error) {
	c.mgr.mu.RLock()
	defer c.mgr.mu.RUnlock()
	if c.mgr.browser == nil {
		return nil, fmt.Errorf("browser not connected")
	}
	return c.mgr.browser, nil
}

// AllCookies returns every cookie across all contexts.
func (c *Cookies) AllCookies(ctx context.Context) ([]enforce.Cookie, error) {
	browser, err := c.browser()
	if err != nil {
		return nil, err
	}

	var out []enforce.Cookie
	for _, id := range c.mgr.contextIDs() {
		res, err := proto.StorageGetCookies{BrowserContextID: id}.Call(browser)
		if err != nil {
			logging.EnforceDebug("cookie read for context %q failed: %v", id, err)
			continue
		}
		for _, raw := range res.Cookies {
			out = append(out, enforce.Cookie{
				Name:     raw.Name,
				Domain:   raw.Domain,
				Path:     raw.Path,
				Value:    raw.Value,
				Secure:   raw.Secure,
				HTTPOnly: raw.HTTPOnly,
				StoreID:  string(id),
			})
		}
	}
	return out, nil
}

// CookiesNamed returns every cookie with the given name across all
// contexts.
func (c *Cookies) CookiesNamed(ctx context.Context, name string) ([]enforce.Cookie, error) {
	all, err := c.AllCookies(ctx)
	if err != nil {
		return nil, err
	}
	var out []enforce.Cookie
	for _, cookie := range all {
		if cookie.Name == name {
			out = append(out, cookie)
		}
	}
	return out, nil
}

// Remove deletes one cookie instance and confirms it is gone. Deletion is a
// page-scoped CDP call, so a live page in the cookie's context is required.
func (c *Cookies) Remove(ctx context.Context, cookie enforce.Cookie) (bool, error) {
	browser, err := c.browser()
	if err != nil {
		return false, err
	}

	page := c.mgr.pageInContext(proto.BrowserBrowserContextID(cookie.StoreID))
	if page == nil {
		logging.EnforceDebug("no live page in context %q, cannot delete %s", cookie.StoreID, cookie.Name)
		return false, nil
	}

	if err := (proto.NetworkDeleteCookies{
		Name:   cookie.Name,
		URL:    cookie.DeleteURL(),
		Domain: cookie.Domain,
		Path:   cookie.Path,
	}).Call(page.Context(ctx)); err != nil {
		return false, fmt.Errorf("delete cookie %s: %w", cookie.Name, err)
	}

	// The protocol call reports nothing; confirm against the store.
	res, err := proto.StorageGetCookies{
		BrowserContextID: proto.BrowserBrowserContextID(cookie.StoreID),
	}.Call(browser)
	if err != nil {
		return false, nil
	}
	for _, raw := range res.Cookies {
		if raw.Name == cookie.Name && raw.Domain == cookie.Domain && raw.Path == cookie.Path {
			return false, nil
		}
	}
	return true, nil
}
