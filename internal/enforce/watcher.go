package enforce

import (
	"context"
	"time"

	"cookiesentinel/internal/logging"
)

// Watcher polls the cookie stores for newly created cookies and re-deletes
// any whose key is on the blocklist. This stands in for a cookie-change
// subscription: creations show up within one poll interval.
type Watcher struct {
	store    CookieStore
	tracker  *Tracker
	interval time.Duration

	seen map[string]bool // key + path + store, to spot creations

	stop chan struct{}
	done chan struct{}
}

// NewWatcher builds a recreation watcher.
func NewWatcher(store CookieStore, tracker *Tracker, interval time.Duration) *Watcher {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	return &Watcher{
		store:    store,
		tracker:  tracker,
		interval: interval,
		seen:     make(map[string]bool),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

func instanceKey(c Cookie) string {
	return BlockKey(c.Domain, c.Name) + "|" + c.Path + "|" + c.StoreID
}

// Start begins polling. The first poll only seeds the seen set so cookies
// present before the watcher ran are not treated as creations.
func (w *Watcher) Start(ctx context.Context) {
	go func() {
		defer close(w.done)

		w.seed(ctx)

		ticker := time.NewTicker(w.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-w.stop:
				return
			case <-ticker.C:
				w.poll(ctx)
			}
		}
	}()
}

// Stop terminates the watcher and waits for it to exit.
func (w *Watcher) Stop() {
	select {
	case <-w.stop:
	default:
		close(w.stop)
	}
	<-w.done
}

func (w *Watcher) seed(ctx context.Context) {
	cookies, err := w.store.AllCookies(ctx)
	if err != nil {
		return
	}
	for _, c := range cookies {
		w.seen[instanceKey(c)] = true
	}
}

func (w *Watcher) poll(ctx context.Context) {
	cookies, err := w.store.AllCookies(ctx)
	if err != nil {
		logging.EnforceDebug("watcher poll failed: %v", err)
		return
	}

	current := make(map[string]bool, len(cookies))
	for _, c := range cookies {
		key := instanceKey(c)
		current[key] = true
		if w.seen[key] {
			continue
		}
		// Newly created instance.
		if w.tracker.IsBlocked(BlockKey(c.Domain, c.Name)) {
			logging.Enforce("intercepting recreated cookie %s on %s", c.Name, c.Domain)
			if removed, err := w.store.Remove(ctx, c); err == nil && removed {
				logging.Enforce("blocked recreation of %s", c.Name)
				// Removed again; keep it out of seen so another recreation
				// is caught too.
				delete(current, key)
			}
		}
	}
	w.seen = current
}
