package enforce

import (
	"context"
	"sync"
	"time"

	"cookiesentinel/internal/logging"
)

type attemptRecord struct {
	lastAttempt time.Time
	attempts    int
}

// Tracker owns deletion attempt pacing and the recreation blocklist.
// Entries untouched for the inactivity window are evicted by a periodic
// sweep so a site gets a fresh start eventually.
type Tracker struct {
	cooldown    time.Duration
	maxAttempts int
	window      time.Duration
	sweepEvery  time.Duration

	mu       sync.Mutex
	attempts map[string]attemptRecord
	blocked  map[string]bool

	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
	started  bool
}

// NewTracker builds a tracker. Zero values fall back to 30s cooldown,
// 3 attempts, and 5m window/sweep.
func NewTracker(cooldown time.Duration, maxAttempts int, window, sweepEvery time.Duration) *Tracker {
	if cooldown <= 0 {
		cooldown = 30 * time.Second
	}
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	if window <= 0 {
		window = 5 * time.Minute
	}
	if sweepEvery <= 0 {
		sweepEvery = 5 * time.Minute
	}
	return &Tracker{
		cooldown:    cooldown,
		maxAttempts: maxAttempts,
		window:      window,
		sweepEvery:  sweepEvery,
		attempts:    make(map[string]attemptRecord),
		blocked:     make(map[string]bool),
		stop:        make(chan struct{}),
		done:        make(chan struct{}),
	}
}

// Allowed reports whether a deletion attempt on key may proceed: not in
// cooldown and under the attempt ceiling.
func (t *Tracker) Allowed(key string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	rec, ok := t.attempts[key]
	if !ok {
		return true
	}
	if time.Since(rec.lastAttempt) < t.cooldown {
		return false
	}
	return rec.attempts < t.maxAttempts
}

// RecordAttempt bumps the attempt counter for key. Every attempt counts,
// successful or not.
func (t *Tracker) RecordAttempt(key string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	rec := t.attempts[key]
	rec.lastAttempt = time.Now()
	rec.attempts++
	t.attempts[key] = rec
}

// Block adds key to the recreation blocklist. Only call after a confirmed
// deletion.
func (t *Tracker) Block(key string) {
	t.mu.Lock()
	t.blocked[key] = true
	t.mu.Unlock()
	logging.Enforce("blocklisted %s", key)
}

// IsBlocked reports whether key is on the recreation blocklist.
func (t *Tracker) IsBlocked(key string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.blocked[key]
}

// Start runs the periodic sweep until Stop is called or ctx is done.
func (t *Tracker) Start(ctx context.Context) {
	t.mu.Lock()
	if t.started {
		t.mu.Unlock()
		return
	}
	t.started = true
	t.mu.Unlock()

	go func() {
		defer close(t.done)
		ticker := time.NewTicker(t.sweepEvery)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.stop:
				return
			case <-ticker.C:
				t.sweep()
			}
		}
	}()
}

// Stop terminates the sweeper and waits for it to exit.
func (t *Tracker) Stop() {
	t.stopOnce.Do(func() { close(t.stop) })
	t.mu.Lock()
	started := t.started
	t.mu.Unlock()
	if started {
		<-t.done
	}
}

// sweep evicts attempt records and blocklist entries whose last activity
// is older than the inactivity window.
func (t *Tracker) sweep() {
	t.mu.Lock()
	defer t.mu.Unlock()

	cleaned := 0
	for key, rec := range t.attempts {
		if time.Since(rec.lastAttempt) > t.window {
			delete(t.attempts, key)
			delete(t.blocked, key)
			cleaned++
		}
	}
	if cleaned > 0 {
		logging.EnforceDebug("sweep evicted %d stale entries", cleaned)
	}
}
