package enforce

import (
	"context"
	"fmt"

	"cookiesentinel/internal/logging"
)

// Result summarizes one deletion request.
type Result struct {
	Attempted bool // false when pacing or the attempt ceiling refused it
	Matched   int  // cookie instances that matched the domain
	Deleted   int  // instances the browser confirmed removed
}

// Succeeded reports whether at least one instance was removed.
func (r Result) Succeeded() bool { return r.Deleted > 0 }

// Enforcer deletes cookies through a CookieStore under the tracker's
// pacing rules.
type Enforcer struct {
	store   CookieStore
	tracker *Tracker
}

// NewEnforcer builds an enforcer.
func NewEnforcer(store CookieStore, tracker *Tracker) *Enforcer {
	return &Enforcer{store: store, tracker: tracker}
}

// Tracker exposes the attempt tracker, mainly for the recreation watcher.
func (e *Enforcer) Tracker() *Tracker { return e.tracker }

// Cookies enumerates every cookie across all stores.
func (e *Enforcer) Cookies(ctx context.Context) ([]Cookie, error) {
	return e.store.AllCookies(ctx)
}

// Delete removes every instance of the named cookie that belongs to domain,
// across all stores. The attempt is recorded whatever the outcome; the
// blocklist gains the key only after at least one confirmed removal.
func (e *Enforcer) Delete(ctx context.Context, name, domain string) (Result, error) {
	key := BlockKey(domain, name)

	if !e.tracker.Allowed(key) {
		logging.EnforceDebug("skip %s: cooldown or attempt ceiling", key)
		return Result{}, nil
	}

	candidates, err := e.store.CookiesNamed(ctx, name)
	if err != nil {
		return Result{Attempted: true}, fmt.Errorf("enumerate cookies: %w", err)
	}

	var matched []Cookie
	for _, c := range candidates {
		if DomainsMatch(domain, c.Domain) {
			matched = append(matched, c)
		}
	}

	res := Result{Attempted: true, Matched: len(matched)}

	if len(matched) == 0 {
		e.tracker.RecordAttempt(key)
		logging.EnforceDebug("no instances of %q for %s", name, domain)
		return res, nil
	}

	for _, c := range matched {
		removed, err := e.store.Remove(ctx, c)
		if err != nil {
			logging.Enforce("remove %s from %s failed: %v", c.Name, c.Domain, err)
			continue
		}
		if removed {
			res.Deleted++
			logging.Enforce("deleted %s from %s%s (store %s)", c.Name, c.Domain, c.Path, c.StoreID)
		}
	}

	e.tracker.RecordAttempt(key)
	if res.Deleted > 0 {
		e.tracker.Block(key)
	}
	return res, nil
}
