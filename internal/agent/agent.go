// Package agent coordinates Cookie Sentinel at runtime: it watches the
// browser for new pages, attaches a consent resolver to each, runs the
// delayed cleanup passes and tracker monitoring, and routes low-confidence
// verdicts into the review queue.
package agent

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"cookiesentinel/internal/activity"
	"cookiesentinel/internal/classify"
	"cookiesentinel/internal/config"
	"cookiesentinel/internal/consent"
	"cookiesentinel/internal/enforce"
	"cookiesentinel/internal/logging"
	"cookiesentinel/internal/review"
	"cookiesentinel/internal/store"
)

// TCFInfo is the result of probing a page for an IAB TCF consent API.
type TCFInfo struct {
	GDPRApplies    bool
	VendorConsents int
}

// PageSession is one attached page. The browser package implements it over
// CDP; tests use fakes.
type PageSession interface {
	consent.PageDriver

	// SessionID identifies the page for logging.
	SessionID() string

	// Incognito reports whether the page lives in a private context.
	Incognito() bool

	// Origin returns scheme://host for manifest discovery.
	Origin() string

	// TCF probes window.__tcfapi. ok is false when the page has no TCF
	// stack.
	TCF(ctx context.Context) (TCFInfo, bool)
}

// Browser surfaces newly attached pages.
type Browser interface {
	// Pages emits each page as it attaches, until ctx is done. The channel
	// closes when the browser goes away.
	Pages(ctx context.Context) (<-chan PageSession, error)
}

// Escalator classifies identifiers the local pipeline cannot place.
// classify.Escalator implements it; tests use fakes.
type Escalator interface {
	Classify(ctx context.Context, id classify.Identifier) classify.Classification
}

// Cleanup pass schedule after page attach, then tracker monitoring.
var (
	cleanupDelays   = []time.Duration{4 * time.Second, 8 * time.Second, 12 * time.Second}
	monitorInterval = 5 * time.Second
	monitorRounds   = 6
	verdictInterval = 30 * time.Second
)

// sensitiveFragments mark pages where cookie deletion could break an
// in-flight login or purchase; cleanup skips them.
var sensitiveFragments = []string{
	"login", "signin", "signup", "register", "auth",
	"account", "checkout", "cart", "payment", "billing",
}

// Agent owns the runtime coordination for one browser.
type Agent struct {
	browser   Browser
	prefs     *config.PreferenceStore
	cfg       *config.Config
	pipeline  *classify.Pipeline
	escalator Escalator
	manifests *classify.ManifestIndex
	enforcer  *enforce.Enforcer
	watcher   *enforce.Watcher
	queue     *review.Queue
	st        *store.Store
	cooldowns *consent.Cooldowns

	recNormal    *activity.Recorder
	recIncognito *activity.Recorder

	// test seams
	delays       []time.Duration
	interval     time.Duration
	rounds       int
	tcfDelay     time.Duration
	verdictEvery time.Duration
}

// Options collects the agent's collaborators.
type Options struct {
	Browser   Browser
	Prefs     *config.PreferenceStore
	Config    *config.Config
	Pipeline  *classify.Pipeline
	Escalator Escalator
	Manifests *classify.ManifestIndex
	Enforcer  *enforce.Enforcer
	Watcher   *enforce.Watcher
	Queue     *review.Queue
	Store     *store.Store
}

// New builds an agent.
func New(opts Options) *Agent {
	return &Agent{
		browser:      opts.Browser,
		prefs:        opts.Prefs,
		cfg:          opts.Config,
		pipeline:     opts.Pipeline,
		escalator:    opts.Escalator,
		manifests:    opts.Manifests,
		enforcer:     opts.Enforcer,
		watcher:      opts.Watcher,
		queue:        opts.Queue,
		st:           opts.Store,
		cooldowns:    consent.NewCooldowns(opts.Config.Consent.SiteCooldownDuration()),
		recNormal:    activity.NewRecorder(opts.Store, activity.ModeNormal),
		recIncognito: activity.NewRecorder(opts.Store, activity.ModeIncognito),
		delays:       cleanupDelays,
		interval:     monitorInterval,
		rounds:       monitorRounds,
		tcfDelay:     2 * time.Second,
		verdictEvery: verdictInterval,
	}
}

// Run drives the agent until ctx is done or the browser disappears. Page
// handlers fan out on an errgroup; a page failure is logged, never fatal.
func (a *Agent) Run(ctx context.Context) error {
	sweepCtx, stopSweep := context.WithCancel(ctx)
	var loops sync.WaitGroup
	defer loops.Wait()
	defer stopSweep()
	a.enforcer.Tracker().Start(sweepCtx)
	defer a.enforcer.Tracker().Stop()

	if a.watcher != nil {
		a.watcher.Start(sweepCtx)
		defer a.watcher.Stop()
	}

	loops.Add(1)
	go func() {
		defer loops.Done()
		a.applyVerdicts(sweepCtx)
	}()

	go func() {
		if err := a.prefs.Watch(ctx); err != nil {
			logging.BootWarn("preference watch stopped: %v", err)
		}
	}()

	pages, err := a.browser.Pages(ctx)
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	for {
		select {
		case <-gctx.Done():
			return g.Wait()
		case page, ok := <-pages:
			if !ok {
				return g.Wait()
			}
			p := page
			g.Go(func() error {
				a.handlePage(gctx, p)
				return nil
			})
		}
	}
}

// handlePage runs the full per-page lifecycle: manifest discovery, TCF
// probe, consent resolution, cleanup passes, tracker monitoring.
func (a *Agent) handlePage(ctx context.Context, p PageSession) {
	host := p.Host()
	rec := a.recorder(p)
	logging.Session("page %s attached (%s)", p.SessionID(), host)

	var wg sync.WaitGroup
	defer wg.Wait()

	if a.manifests != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			a.discoverManifest(ctx, p, rec)
		}()
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		a.probeTCF(ctx, p, rec)
	}()

	resolver := consent.NewResolver(p, a.prefs.Current, a.cfg.Consent, a.cooldowns)
	resolver.OnResolved = func(res consent.Resolution) {
		a.bannerResolved(res, rec)
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := resolver.Run(ctx); err != nil {
			logging.Consent("%s: resolver error: %v", host, err)
		}
	}()

	if a.sensitivePage(p.URL()) {
		logging.SessionDebug("%s: sensitive page, skipping cleanup", host)
		return
	}

	for _, delay := range a.delays {
		if !sleepCtx(ctx, delay) {
			return
		}
		a.cleanupPass(ctx, host, rec)
	}

	a.monitorTrackers(ctx, host)
}

func (a *Agent) recorder(p PageSession) *activity.Recorder {
	if p.Incognito() {
		return a.recIncognito
	}
	return a.recNormal
}

func (a *Agent) discoverManifest(ctx context.Context, p PageSession, rec *activity.Recorder) {
	host := p.Host()
	if _, ok := a.manifests.Get(host); ok {
		return
	}
	if m := a.manifests.Discover(ctx, p.Origin(), host); m != nil {
		rec.Record(activity.ActionManifestDetected, host, strconv.Itoa(len(m.Cookies))+" cookies declared")
	}
}

func (a *Agent) probeTCF(ctx context.Context, p PageSession, rec *activity.Recorder) {
	// Give the CMP script a moment to install its API.
	if !sleepCtx(ctx, a.tcfDelay) {
		return
	}
	info, ok := p.TCF(ctx)
	if !ok {
		return
	}
	detail := "gdprApplies=" + strconv.FormatBool(info.GDPRApplies) +
		" vendorConsents=" + strconv.Itoa(info.VendorConsents)
	rec.Record(activity.ActionTCFDetected, p.Host(), detail)
}

// bannerResolved is the terminal-resolution hook: counters and activity.
func (a *Agent) bannerResolved(res consent.Resolution, rec *activity.Recorder) {
	if _, err := a.st.IncrementBannerCount(); err != nil {
		logging.Consent("banner counter update failed: %v", err)
	}
	rec.Record(activity.ActionBannerHandled, res.Host, res.Method)
}

// sensitivePage reports whether the URL looks like a login or checkout
// flow.
func (a *Agent) sensitivePage(url string) bool {
	lower := strings.ToLower(url)
	for _, frag := range sensitiveFragments {
		if strings.Contains(lower, frag) {
			return true
		}
	}
	return false
}

// classifyOne runs the local pipeline and escalates unknowns when the user
// has enabled the external classifier.
func (a *Agent) classifyOne(ctx context.Context, id classify.Identifier) classify.Classification {
	c := a.pipeline.Classify(id)
	if c.Category == classify.CategoryUnknown && a.prefs.Current().AIEnabled {
		c = a.escalator.Classify(ctx, id)
	}
	return c
}

// cleanupPass classifies every cookie belonging to host and enforces the
// user's preferences: unwanted categories are deleted, low-confidence
// verdicts go to the review queue, everything else stays.
func (a *Agent) cleanupPass(ctx context.Context, host string, rec *activity.Recorder) {
	prefs := a.prefs.Current()
	if !prefs.Enabled {
		return
	}

	cookies, err := a.enforcer.Cookies(ctx)
	if err != nil {
		logging.EnforceDebug("%s: cookie enumeration failed: %v", host, err)
		return
	}

	seen := make(map[string]bool)
	deleted := 0
	for _, c := range cookies {
		if !enforce.DomainsMatch(host, c.Domain) {
			continue
		}
		if seen[c.Name] {
			continue
		}
		seen[c.Name] = true

		verdict := a.classifyOne(ctx, classify.Identifier{
			Name:       c.Name,
			Domain:     enforce.NormalizeDomain(c.Domain),
			Value:      c.Value,
			PageDomain: host,
		})

		// An escalated verdict below the confidence threshold goes to a
		// human before any enforcement, whatever its category.
		if verdict.Source == classify.SourceEscalation && verdict.NeedsReview() {
			if queued, err := a.queue.MaybeEnqueue(classify.Identifier{
				Name: c.Name, Domain: enforce.NormalizeDomain(c.Domain),
			}, verdict); err == nil && queued {
				rec.Record(activity.ActionReviewQueued, host, c.Name)
			}
			continue
		}

		if classify.ShouldDelete(verdict.Category, prefs) {
			res, err := a.enforcer.Delete(ctx, c.Name, c.Domain)
			if err != nil {
				logging.Enforce("%s: delete %s failed: %v", host, c.Name, err)
				continue
			}
			deleted += res.Deleted
		}
	}

	if deleted > 0 {
		rec.Record(activity.ActionCookiesDeleted, host, strconv.Itoa(deleted)+" removed")
	}
}

// monitorTrackers re-deletes well-known tracker cookies as scripts recreate
// them during the first seconds after consent.
func (a *Agent) monitorTrackers(ctx context.Context, host string) {
	for round := 0; round < a.rounds; round++ {
		if !sleepCtx(ctx, a.interval) {
			return
		}
		prefs := a.prefs.Current()
		if !prefs.Enabled {
			continue
		}
		for _, name := range classify.KnownTrackerNames {
			verdict := a.pipeline.Classify(classify.Identifier{Name: name, Domain: host})
			if !classify.ShouldDelete(verdict.Category, prefs) {
				continue
			}
			if _, err := a.enforcer.Delete(ctx, name, host); err != nil {
				logging.EnforceDebug("%s: tracker sweep %s: %v", host, name, err)
			}
		}
	}
}

// applyVerdicts periodically enforces delete verdicts recorded by the
// decide command or the review TUI, which run without a browser.
func (a *Agent) applyVerdicts(ctx context.Context) {
	for {
		if !sleepCtx(ctx, a.verdictEvery) {
			return
		}
		n, err := a.queue.ApplyDecisions(ctx)
		if err != nil {
			logging.Review("verdict pass failed: %v", err)
			continue
		}
		if n > 0 {
			logging.Review("applied %d delete verdicts", n)
		}
	}
}

// sleepCtx sleeps for d, reporting false when ctx ended first.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	select {
	case <-time.After(d):
		return true
	case <-ctx.Done():
		return false
	}
}
