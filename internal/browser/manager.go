// Package browser owns the Chrome connection: it attaches to (or launches)
// a browser over the DevTools Protocol, tracks pages as they appear, and
// exposes each page as a consent-engine driver plus a browser-wide cookie
// store.
package browser

import (
	"context"
	"fmt"
	"sync"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/google/uuid"

	"cookiesentinel/internal/agent"
	"cookiesentinel/internal/config"
	"cookiesentinel/internal/logging"
)

// Manager owns the browser connection and the set of tracked pages.
type Manager struct {
	cfg config.BrowserConfig

	mu         sync.RWMutex
	browser    *rod.Browser
	controlURL string
	pages      map[proto.TargetTargetID]*Page

	// Non-default browser contexts; pages in these are incognito.
	incognitoContexts map[proto.BrowserBrowserContextID]bool
}

// NewManager creates a manager; Start must be called before use.
func NewManager(cfg config.BrowserConfig) *Manager {
	return &Manager{
		cfg:               cfg,
		pages:             make(map[proto.TargetTargetID]*Page),
		incognitoContexts: make(map[proto.BrowserBrowserContextID]bool),
	}
}

// Start connects to an existing Chrome via the configured debugger URL or
// launches a new instance.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.browser != nil {
		if _, err := m.browser.Version(); err == nil {
			return nil
		}
		logging.BootWarn("stale browser connection, reconnecting")
		_ = m.browser.Close()
		m.browser = nil
		m.pages = make(map[proto.TargetTargetID]*Page)
	}

	controlURL := m.cfg.DebuggerURL
	if controlURL == "" {
		launch := launcher.New().Headless(m.cfg.Headless)
		if m.cfg.Bin != "" {
			launch = launch.Bin(m.cfg.Bin)
		}
		url, err := launch.Launch()
		if err != nil {
			return fmt.Errorf("launch chrome: %w", err)
		}
		controlURL = url
	}

	browser := rod.New().ControlURL(controlURL).Context(ctx)
	if err := browser.Connect(); err != nil {
		return fmt.Errorf("connect to chrome: %w", err)
	}

	m.browser = browser
	m.controlURL = controlURL
	m.refreshContextsLocked()
	logging.Boot("browser connected at %s", controlURL)
	return nil
}

// ControlURL returns the WebSocket debugger URL.
func (m *Manager) ControlURL() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.controlURL
}

// Shutdown detaches from the browser. Pages are left open; this agent
// observes a user's browser, it does not own their tabs.
func (m *Manager) Shutdown() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.pages = make(map[proto.TargetTargetID]*Page)
	var err error
	if m.browser != nil {
		err = m.browser.Close()
		m.browser = nil
	}
	m.controlURL = ""
	return err
}

// CookieStore returns the browser-wide cookie surface.
func (m *Manager) CookieStore() *Cookies {
	return &Cookies{mgr: m}
}

// refreshContextsLocked records which browser contexts are non-default.
func (m *Manager) refreshContextsLocked() {
	res, err := proto.TargetGetBrowserContexts{}.Call(m.browser)
	if err != nil {
		return
	}
	for _, id := range res.BrowserContextIDs {
		m.incognitoContexts[id] = true
	}
}

// Pages emits every page the browser knows about, existing ones first, then
// new targets as they are created. The channel closes when ctx ends.
func (m *Manager) Pages(ctx context.Context) (<-chan agent.PageSession, error) {
	m.mu.RLock()
	browser := m.browser
	m.mu.RUnlock()
	if browser == nil {
		return nil, fmt.Errorf("browser not connected")
	}

	out := make(chan agent.PageSession, 8)
	scoped := browser.Context(ctx)

	existing, err := scoped.Pages()
	if err != nil {
		return nil, fmt.Errorf("list pages: %w", err)
	}

	go func() {
		defer close(out)

		for _, p := range existing {
			if page := m.track(p); page != nil {
				select {
				case out <- page:
				case <-ctx.Done():
					return
				}
			}
		}

		wait := scoped.EachEvent(func(ev *proto.TargetTargetCreated) {
			if ev.TargetInfo.Type != proto.TargetTargetInfoTypePage {
				return
			}
			p, err := scoped.PageFromTarget(ev.TargetInfo.TargetID)
			if err != nil {
				logging.SessionDebug("attach to %s failed: %v", ev.TargetInfo.TargetID, err)
				return
			}
			if page := m.track(p); page != nil {
				select {
				case out <- page:
				case <-ctx.Done():
				}
			}
		})
		wait()
	}()

	return out, nil
}

// track registers a page, returning nil for duplicates and non-http pages.
func (m *Manager) track(p *rod.Page) *Page {
	info, err := p.Info()
	if err != nil {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.pages[info.TargetID]; ok {
		return nil
	}

	// Cookie calls address the default context with an empty id, so pages
	// outside a created (incognito) context normalize to that.
	contextID := info.BrowserContextID
	if !m.incognitoContexts[contextID] {
		contextID = ""
	}

	page := &Page{
		id:        uuid.NewString(),
		page:      p,
		contextID: contextID,
		incognito: contextID != "",
	}
	m.pages[info.TargetID] = page
	logging.Session("tracking page %s (%s)", page.id, info.URL)
	return page
}

// pageInContext returns any live page belonging to the given context.
// Cookie deletion is a page-scoped CDP call, so one is needed per context.
func (m *Manager) pageInContext(id proto.BrowserBrowserContextID) *rod.Page {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, p := range m.pages {
		if p.contextID == id {
			return p.page
		}
	}
	return nil
}

// contextIDs lists the default context plus every tracked incognito one.
func (m *Manager) contextIDs() []proto.BrowserBrowserContextID {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ids := []proto.BrowserBrowserContextID{""}
	for id := range m.incognitoContexts {
		ids = append(ids, id)
	}
	return ids
}
