package consent

import (
	"context"
	"math"
	"strconv"
	"sync"
	"time"

	"cookiesentinel/internal/config"
	"cookiesentinel/internal/logging"
)

// State is the resolver lifecycle state for one page.
type State string

const (
	StateIdle             State = "idle"
	StateSearching        State = "searching"
	StatePlatformHandled  State = "platform_handled"
	StateMultistepHandled State = "multistep_handled"
	StateClicked          State = "clicked"
	StateSuppressed       State = "suppressed"
	StateDone             State = "done"
)

// Resolution describes how a banner was resolved.
type Resolution struct {
	Host   string
	Method string // platform_specific, multi_step, accept_all, dismiss, detected_only, css_hide
	Detail string
}

// Resolver runs banner detection and resolution for a single page. One
// resolver per page; Run blocks until the page is handled, attempts are
// exhausted, or the observation window closes.
type Resolver struct {
	driver    PageDriver
	prefs     func() config.Preferences
	cfg       config.ConsentConfig
	cooldowns *Cooldowns

	// OnResolved is called once when a banner reaches a terminal handled
	// state. Optional.
	OnResolved func(Resolution)

	mu       sync.Mutex
	state    State
	hasActed bool
	attempts int
}

// NewResolver builds a resolver for one page.
func NewResolver(driver PageDriver, prefs func() config.Preferences, cfg config.ConsentConfig, cooldowns *Cooldowns) *Resolver {
	return &Resolver{
		driver:    driver,
		prefs:     prefs,
		cfg:       cfg,
		cooldowns: cooldowns,
		state:     StateIdle,
	}
}

// State returns the current lifecycle state.
func (r *Resolver) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

func (r *Resolver) setState(s State) {
	r.mu.Lock()
	r.state = s
	r.mu.Unlock()
}

func (r *Resolver) acted() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.hasActed
}

// retryDelay is the capped geometric backoff between detection attempts.
func (r *Resolver) retryDelay() time.Duration {
	d := 500 * math.Pow(1.5, float64(r.attempts))
	if d > 5000 {
		d = 5000
	}
	return time.Duration(d) * time.Millisecond
}

// Run executes the detection loop: an initial delay, immediate first check,
// geometric retry, debounced rechecks on DOM mutation, and a hard
// observation timeout. It returns nil on every normal outcome.
func (r *Resolver) Run(ctx context.Context) error {
	host := r.driver.Host()

	if !r.prefs().Enabled {
		r.setState(StateDone)
		return nil
	}
	if r.cooldowns.Active(host) {
		logging.ConsentDebug("%s on cooldown, skipping", host)
		r.setState(StateDone)
		return nil
	}

	select {
	case <-time.After(r.cfg.InitialDelay()):
	case <-ctx.Done():
		r.setState(StateDone)
		return nil
	}

	r.setState(StateSearching)

	// Hard cap on how long this page is observed.
	ctx, cancel := context.WithTimeout(ctx, r.cfg.ObserverTimeoutDuration())
	defer cancel()

	mutations, stopObserver, err := r.driver.Mutations(ctx)
	if err != nil {
		logging.ConsentDebug("%s: mutation stream unavailable: %v", host, err)
		mutations = nil
	}
	if stopObserver != nil {
		defer stopObserver()
	}

	retry := time.NewTimer(0)
	defer retry.Stop()

	debounce := time.NewTimer(time.Hour)
	debounce.Stop()
	defer debounce.Stop()

	maxAttempts := r.cfg.MaxAttemptsOrDefault()

	for {
		select {
		case <-ctx.Done():
			r.setState(StateDone)
			return nil

		case <-retry.C:
			if r.check(ctx) {
				r.setState(StateDone)
				return nil
			}
			r.attempts++
			if r.attempts >= maxAttempts {
				logging.Consent("%s: max attempts reached, stopping detection", host)
				r.setState(StateDone)
				return nil
			}
			retry.Reset(r.retryDelay())

		case _, ok := <-mutations:
			if !ok {
				mutations = nil
				continue
			}
			if r.acted() {
				r.setState(StateDone)
				return nil
			}
			debounce.Reset(r.cfg.Debounce())

		case <-debounce.C:
			if r.check(ctx) {
				r.setState(StateDone)
				return nil
			}
		}
	}
}

// check runs one full detection pass. It reports true when the page has
// reached a terminal state.
func (r *Resolver) check(ctx context.Context) bool {
	if r.acted() {
		return true
	}

	host := r.driver.Host()
	prefs := r.prefs()

	candidates, err := r.driver.CollectCandidates(ctx)
	if err != nil {
		logging.ConsentDebug("%s: candidate scan failed: %v", host, err)
		return false
	}

	banner := FindBanner(candidates)
	if banner == nil {
		return false
	}
	logging.Consent("%s: banner detected (priority %d, %s)", host, banner.Priority, banner.Selector)

	if r.tryPlatform(ctx) {
		return true
	}

	if r.tryMultiStep(ctx, banner, prefs) {
		return true
	}

	// Every category allowed: the banner asks for nothing the user objects
	// to, so there is no click to make and nothing to suppress. Stop
	// observing and leave the page untouched.
	if prefs.AllowsEverything() {
		logging.ConsentDebug("%s: all categories allowed, leaving banner alone", host)
		return true
	}

	if r.tryClick(ctx, banner, prefs) {
		return true
	}

	// Last resort: the prompt resisted every interaction strategy. Hide it
	// unless safe mode forbids page modification.
	if !prefs.SafeMode && !r.acted() {
		if err := r.driver.HideBanner(ctx, banner.Ref); err == nil {
			r.terminal(StateSuppressed, Resolution{Host: host, Method: "css_hide"})
			return true
		}
	}

	return r.acted()
}

func (r *Resolver) tryPlatform(ctx context.Context) bool {
	platform, err := r.driver.DetectPlatform(ctx)
	if err != nil || platform == nil {
		return false
	}
	logging.ConsentDebug("%s: trying %s strategy", r.driver.Host(), platform.Name)

	// The acted flag goes up before the click lands.
	if !r.markActing() {
		return true
	}
	selector, ok, err := r.driver.ClickFirstVisible(ctx, platform.AcceptSelectors)
	if err != nil || !ok {
		r.unmarkActing()
		logging.ConsentDebug("%s: no %s accept control, falling back to generic detection", r.driver.Host(), platform.Name)
		return false
	}

	r.terminal(StatePlatformHandled, Resolution{
		Host:   r.driver.Host(),
		Method: "platform_specific",
		Detail: platform.Name + " " + selector,
	})
	return true
}

func (r *Resolver) tryMultiStep(ctx context.Context, banner *ElementInfo, prefs config.Preferences) bool {
	manage := FindButtonByKeywords(banner.Buttons, manageKeywords)
	if manage == nil {
		return false
	}
	logging.Consent("%s: multi-step dialog detected", r.driver.Host())

	if !r.markActing() {
		return true
	}
	if err := r.driver.Click(ctx, manage.Ref); err != nil {
		r.unmarkActing()
		return false
	}

	sleepCtx(ctx, r.cfg.SettleDelay())

	modified := r.applyToggles(ctx, prefs)
	if modified == 0 {
		r.unmarkActing()
		return false
	}

	sleepCtx(ctx, 500*time.Millisecond)

	buttons, err := r.driver.PageButtons(ctx)
	if err != nil {
		r.unmarkActing()
		return false
	}
	save := FindButtonByKeywords(buttons, saveKeywords)
	if save == nil {
		r.unmarkActing()
		return false
	}
	if err := r.driver.Click(ctx, save.Ref); err != nil {
		r.unmarkActing()
		return false
	}

	r.terminal(StateMultistepHandled, Resolution{
		Host:   r.driver.Host(),
		Method: "multi_step",
		Detail: "toggles modified: " + strconv.Itoa(modified),
	})
	return true
}

// applyToggles flips every categorized toggle whose state disagrees with
// the user's preferences.
func (r *Resolver) applyToggles(ctx context.Context, prefs config.Preferences) int {
	toggles, err := r.driver.Toggles(ctx)
	if err != nil {
		return 0
	}

	modified := 0
	for _, t := range toggles {
		category := ToggleCategory(t.Label)
		if category == "" {
			continue
		}
		shouldEnable := allowCategory(category, prefs)
		if t.Checked == shouldEnable {
			continue
		}
		if err := r.driver.Toggle(ctx, t.Ref); err != nil {
			continue
		}
		logging.ConsentDebug("%s: toggle %s -> %v", r.driver.Host(), category, shouldEnable)
		modified++
		sleepCtx(ctx, r.cfg.TogglePace())
	}
	return modified
}

func (r *Resolver) tryClick(ctx context.Context, banner *ElementInfo, prefs config.Preferences) bool {
	if r.acted() {
		return true
	}

	if prefs.SafeMode {
		// Detection only; the page is left untouched.
		r.terminal(StateClicked, Resolution{Host: r.driver.Host(), Method: "detected_only"})
		return true
	}

	accept := FindButtonByKeywords(banner.Buttons, acceptKeywords)
	if accept == nil {
		if buttons, err := r.driver.PageButtons(ctx); err == nil {
			accept = FindButtonByKeywords(buttons, acceptKeywords)
		}
	}
	if accept != nil && r.clickTerminal(ctx, accept, "accept_all") {
		return true
	}

	dismiss := FindButtonByKeywords(banner.Buttons, dismissKeywords)
	if dismiss != nil && r.clickTerminal(ctx, dismiss, "dismiss") {
		return true
	}

	return false
}

func (r *Resolver) clickTerminal(ctx context.Context, b *ButtonInfo, method string) bool {
	if !r.markActing() {
		return true
	}
	if err := r.driver.Click(ctx, b.Ref); err != nil {
		r.unmarkActing()
		return false
	}
	r.terminal(StateClicked, Resolution{
		Host:   r.driver.Host(),
		Method: method,
		Detail: b.Text,
	})
	return true
}

// markActing raises the acted flag, returning false if it was already up.
func (r *Resolver) markActing() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.hasActed {
		return false
	}
	r.hasActed = true
	return true
}

func (r *Resolver) unmarkActing() {
	r.mu.Lock()
	r.hasActed = false
	r.mu.Unlock()
}

// terminal records a handled state, starts the site cooldown, and fires the
// resolution callback.
func (r *Resolver) terminal(s State, res Resolution) {
	r.mu.Lock()
	r.hasActed = true
	r.state = s
	r.mu.Unlock()

	r.cooldowns.Set(res.Host)
	logging.Consent("%s: resolved via %s (%s)", res.Host, res.Method, res.Detail)

	if r.OnResolved != nil {
		r.OnResolved(res)
	}
}

func allowCategory(category string, prefs config.Preferences) bool {
	switch category {
	case "essential":
		return true
	case "analytics":
		return prefs.AllowAnalytics
	case "advertising":
		return prefs.AllowAdvertising
	case "personalization":
		return prefs.AllowPersonalization
	default:
		return false
	}
}

func sleepCtx(ctx context.Context, d time.Duration) {
	select {
	case <-time.After(d):
	case <-ctx.Done():
	}
}
