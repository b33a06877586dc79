package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"

	"cookiesentinel/internal/agent"
	"cookiesentinel/internal/consent"
	"cookiesentinel/internal/logging"
)

// Page adapts one rod page to the consent engine's driver interface and
// the agent's session interface. Element handles collected by a scan are
// stashed on the page's window object and referenced by opaque ids.
type Page struct {
	id        string
	page      *rod.Page
	contextID proto.BrowserBrowserContextID
	incognito bool
}

// SessionID identifies the page in logs.
func (p *Page) SessionID() string { return p.id }

// Incognito reports whether the page lives in a private context.
func (p *Page) Incognito() bool { return p.incognito }

// URL returns the page's current URL, or "" when the page is gone.
func (p *Page) URL() string {
	info, err := p.page.Info()
	if err != nil {
		return ""
	}
	return info.URL
}

// Host returns the page hostname.
func (p *Page) Host() string {
	u, err := url.Parse(p.URL())
	if err != nil {
		return ""
	}
	return u.Hostname()
}

// Origin returns scheme://host for manifest discovery.
func (p *Page) Origin() string {
	u, err := url.Parse(p.URL())
	if err != nil || u.Scheme == "" || u.Host == "" {
		return ""
	}
	return u.Scheme + "://" + u.Host
}

// eval runs a JS function on the page and decodes the JSON result into out.
// A nil out discards the result.
func (p *Page) eval(ctx context.Context, js string, out any, args ...any) error {
	res, err := p.page.Context(ctx).Evaluate(&rod.EvalOptions{
		JS:           js,
		JSArgs:       args,
		ByValue:      true,
		AwaitPromise: true,
	})
	if err != nil {
		return err
	}
	if out == nil || res == nil || res.Value.Nil() {
		return nil
	}
	raw, err := res.Value.MarshalJSON()
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, out)
}

// invokeJS is the shared control-invocation routine: sites listen on
// different event types, so every one the original banner code could have
// bound is fired.
const invokeJS = `
	const invoke = (el) => {
		try { el.focus(); } catch (e) {}
		try { el.click(); } catch (e) {}
		const opts = { bubbles: true, cancelable: true, view: window };
		try { el.dispatchEvent(new MouseEvent('click', opts)); } catch (e) {}
		try {
			el.dispatchEvent(new PointerEvent('pointerdown', opts));
			el.dispatchEvent(new PointerEvent('pointerup', opts));
		} catch (e) {}
		try {
			el.dispatchEvent(new MouseEvent('mousedown', opts));
			el.dispatchEvent(new MouseEvent('mouseup', opts));
		} catch (e) {}
	};
`

// refsJS maintains the window-side handle table.
const refsJS = `
	const w = window;
	w.__sentinelRefs = w.__sentinelRefs || {};
	w.__sentinelSeq = w.__sentinelSeq || 0;
	const makeRef = (el) => {
		for (const [k, v] of Object.entries(w.__sentinelRefs)) {
			if (v === el) return k;
		}
		const ref = 'el_' + (w.__sentinelSeq++);
		w.__sentinelRefs[ref] = el;
		return ref;
	};
`

// snapshotJS captures element and button state for the Go-side locator.
const snapshotJS = `
	const isVisible = (el) => {
		if (!el || !el.isConnected) return false;
		const style = window.getComputedStyle(el);
		if (style.display === 'none' || style.visibility === 'hidden' || style.opacity === '0') return false;
		const rect = el.getBoundingClientRect();
		return rect.width > 0 && rect.height > 0;
	};
	const buttonInfo = (el) => ({
		ref: makeRef(el),
		text: (el.textContent || '').trim().slice(0, 200),
		ariaLabel: el.getAttribute('aria-label') || '',
		innerText: (el.innerText || '').trim().slice(0, 200),
		visible: isVisible(el)
	});
	const collectButtons = (root) => {
		const sel = 'button, a, [role="button"], input[type="button"], input[type="submit"]';
		return Array.from(root.querySelectorAll(sel)).slice(0, 50).map(buttonInfo);
	};
	const snapshot = (el, priority, selector) => {
		const rect = el.getBoundingClientRect();
		const style = window.getComputedStyle(el);
		return {
			ref: makeRef(el),
			priority: priority,
			selector: selector,
			visible: isVisible(el),
			width: rect.width,
			height: rect.height,
			viewportWidth: window.innerWidth,
			position: style.position,
			zIndex: parseInt(style.zIndex, 10) || 0,
			text: (el.innerText || '').slice(0, 600),
			html: (el.innerHTML || '').slice(0, 2000),
			buttons: collectButtons(el)
		};
	};
`

// CollectCandidates runs the five-priority container scan in one page pass.
func (p *Page) CollectCandidates(ctx context.Context) ([]consent.ElementInfo, error) {
	js := `(platformSelectors, genericSelectors) => {
		` + refsJS + snapshotJS + `
		const seen = new Set();
		const results = [];
		const push = (el, priority, selector) => {
			if (!el || seen.has(el)) return;
			seen.add(el);
			results.push(snapshot(el, priority, selector));
		};

		for (const sel of platformSelectors) {
			try {
				document.querySelectorAll(sel).forEach((el) => push(el, 1, sel));
			} catch (e) {}
		}

		for (const sel of genericSelectors) {
			try {
				document.querySelectorAll(sel).forEach((el) => push(el, 2, sel));
			} catch (e) {}
		}

		const hosts = Array.from(document.querySelectorAll('*')).filter((el) => el.shadowRoot);
		for (const host of hosts.slice(0, 50)) {
			for (const sel of genericSelectors) {
				try {
					host.shadowRoot.querySelectorAll(sel).forEach((el) => push(el, 3, 'shadow:' + sel));
				} catch (e) {}
			}
		}

		const containers = document.querySelectorAll('div, section, aside, dialog');
		for (const el of Array.from(containers).slice(0, 500)) {
			const style = window.getComputedStyle(el);
			if (style.position === 'fixed' || style.position === 'sticky' || style.position === 'absolute') {
				push(el, 4, 'positioned');
			}
		}
		for (const el of Array.from(containers).slice(0, 500)) {
			const z = parseInt(window.getComputedStyle(el).zIndex, 10) || 0;
			if (z > 999) push(el, 5, 'zindex');
		}

		results.sort((a, b) => a.priority - b.priority);
		return results;
	}`

	var candidates []consent.ElementInfo
	err := p.eval(ctx, js, &candidates,
		consent.PlatformBannerSelectors(), consent.GenericBannerSelectors())
	if err != nil {
		return nil, fmt.Errorf("candidate scan: %w", err)
	}
	return candidates, nil
}

// DetectPlatform checks the known consent platforms' indicator selectors.
func (p *Page) DetectPlatform(ctx context.Context) (*consent.Platform, error) {
	js := `(selectors) => {
		const isVisible = (el) => {
			if (!el) return false;
			const style = window.getComputedStyle(el);
			if (style.display === 'none' || style.visibility === 'hidden') return false;
			const rect = el.getBoundingClientRect();
			return rect.width > 0 && rect.height > 0;
		};
		for (const sel of selectors) {
			try {
				if (isVisible(document.querySelector(sel))) return true;
			} catch (e) {}
		}
		return false;
	}`

	for i := range consent.Platforms {
		platform := &consent.Platforms[i]
		var present bool
		if err := p.eval(ctx, js, &present, platform.Indicators); err != nil {
			return nil, err
		}
		if present {
			return platform, nil
		}
	}
	return nil, nil
}

// ClickFirstVisible clicks the first visible match among selectors.
func (p *Page) ClickFirstVisible(ctx context.Context, selectors []string) (string, bool, error) {
	js := `(selectors) => {
		` + invokeJS + `
		const isVisible = (el) => {
			if (!el) return false;
			const style = window.getComputedStyle(el);
			if (style.display === 'none' || style.visibility === 'hidden') return false;
			const rect = el.getBoundingClientRect();
			return rect.width > 0 && rect.height > 0;
		};
		for (const sel of selectors) {
			try {
				for (const el of document.querySelectorAll(sel)) {
					if (isVisible(el)) {
						invoke(el);
						return sel;
					}
				}
			} catch (e) {}
		}
		return null;
	}`

	var hit *string
	if err := p.eval(ctx, js, &hit, selectors); err != nil {
		return "", false, err
	}
	if hit == nil {
		return "", false, nil
	}
	return *hit, true, nil
}

// Click invokes a previously collected element by ref.
func (p *Page) Click(ctx context.Context, ref string) error {
	js := `(ref) => {
		` + invokeJS + `
		const el = (window.__sentinelRefs || {})[ref];
		if (!el || !el.isConnected) return false;
		invoke(el);
		return true;
	}`

	var ok bool
	if err := p.eval(ctx, js, &ok, ref); err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("element %s is gone", ref)
	}
	return nil
}

// PageButtons returns every interactive element on the page.
func (p *Page) PageButtons(ctx context.Context) ([]consent.ButtonInfo, error) {
	js := `() => {
		` + refsJS + snapshotJS + `
		return collectButtons(document);
	}`

	var buttons []consent.ButtonInfo
	if err := p.eval(ctx, js, &buttons); err != nil {
		return nil, err
	}
	return buttons, nil
}

// Toggles returns the consent toggles currently in the DOM, with the label
// text resolved from aria attributes or the surrounding markup.
func (p *Page) Toggles(ctx context.Context) ([]consent.ToggleInfo, error) {
	js := `() => {
		` + refsJS + `
		const labelFor = (el) => {
			const aria = el.getAttribute('aria-label');
			if (aria) return aria;
			if (el.labels && el.labels.length) return el.labels[0].textContent || '';
			const wrap = el.closest('label');
			if (wrap) return wrap.textContent || '';
			const parent = el.parentElement;
			return parent ? (parent.textContent || '') : '';
		};
		const els = document.querySelectorAll('input[type="checkbox"], [role="switch"]');
		return Array.from(els).slice(0, 50).map((el) => ({
			ref: makeRef(el),
			label: labelFor(el).trim().slice(0, 200),
			checked: el.checked === true || el.getAttribute('aria-checked') === 'true'
		}));
	}`

	var toggles []consent.ToggleInfo
	if err := p.eval(ctx, js, &toggles); err != nil {
		return nil, err
	}
	return toggles, nil
}

// Toggle flips one toggle through the full event sequence.
func (p *Page) Toggle(ctx context.Context, ref string) error {
	return p.Click(ctx, ref)
}

// HideBanner suppresses the container without removing it, so the page's
// own scripts keep a consistent DOM.
func (p *Page) HideBanner(ctx context.Context, ref string) error {
	js := `(ref) => {
		const el = (window.__sentinelRefs || {})[ref];
		if (!el || !el.isConnected) return false;
		el.style.setProperty('display', 'none', 'important');
		el.style.setProperty('visibility', 'hidden', 'important');
		el.style.setProperty('opacity', '0', 'important');
		return true;
	}`

	var ok bool
	if err := p.eval(ctx, js, &ok, ref); err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("element %s is gone", ref)
	}
	return nil
}

// Mutations installs a subtree observer and streams one signal per observed
// change batch until stop is called or ctx ends.
func (p *Page) Mutations(ctx context.Context) (<-chan struct{}, func(), error) {
	installJS := `() => {
		const w = window;
		if (!w.__sentinelMutObs) {
			w.__sentinelMutCount = 0;
			w.__sentinelMutObs = new MutationObserver(() => { w.__sentinelMutCount++; });
			w.__sentinelMutObs.observe(document.documentElement || document.body, {
				childList: true,
				subtree: true,
				attributes: true,
				attributeFilter: ['style', 'class']
			});
		}
		return w.__sentinelMutCount;
	}`

	var last int
	if err := p.eval(ctx, installJS, &last); err != nil {
		return nil, nil, fmt.Errorf("install observer: %w", err)
	}

	ch := make(chan struct{}, 1)
	pollCtx, cancel := context.WithCancel(ctx)

	go func() {
		defer close(ch)
		ticker := time.NewTicker(250 * time.Millisecond)
		defer ticker.Stop()

		readJS := `() => window.__sentinelMutCount || 0`
		for {
			select {
			case <-pollCtx.Done():
				return
			case <-ticker.C:
				var count int
				if err := p.eval(pollCtx, readJS, &count); err != nil {
					logging.ConsentDebug("%s: mutation poll failed: %v", p.id, err)
					return
				}
				if count != last {
					last = count
					select {
					case ch <- struct{}{}:
					default:
					}
				}
			}
		}
	}()

	return ch, cancel, nil
}

// TCF probes the page for an IAB Transparency and Consent Framework API.
func (p *Page) TCF(ctx context.Context) (agent.TCFInfo, bool) {
	js := `() => new Promise((resolve) => {
		if (typeof window.__tcfapi !== 'function') { resolve(null); return; }
		const timer = setTimeout(() => resolve(null), 2000);
		try {
			window.__tcfapi('getTCData', 2, (data, ok) => {
				clearTimeout(timer);
				if (!ok || !data) { resolve(null); return; }
				let consents = 0;
				if (data.vendor && data.vendor.consents) {
					consents = Object.values(data.vendor.consents).filter(Boolean).length;
				}
				resolve({ gdprApplies: !!data.gdprApplies, vendorConsents: consents });
			});
		} catch (e) {
			clearTimeout(timer);
			resolve(null);
		}
	})`

	var out *struct {
		GDPRApplies    bool `json:"gdprApplies"`
		VendorConsents int  `json:"vendorConsents"`
	}
	if err := p.eval(ctx, js, &out); err != nil || out == nil {
		return agent.TCFInfo{}, false
	}
	return agent.TCFInfo{GDPRApplies: out.GDPRApplies, VendorConsents: out.VendorConsents}, true
}
