package classify

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"cookiesentinel/internal/logging"
)

// Manifest is a site's cookie declaration, either bundled with the agent or
// published by the site itself at a well-known path.
type Manifest struct {
	Domain      string           `json:"domain"`
	LastUpdated string           `json:"last_updated"`
	Cookies     []ManifestCookie `json:"cookies"`
}

// ManifestCookie is one declared cookie.
type ManifestCookie struct {
	Name      string `json:"name"`
	Category  string `json:"category"`
	Vendor    string `json:"vendor"`
	Purpose   string `json:"purpose"`
	Essential bool   `json:"essential"`
	CrossSite bool   `json:"cross_site"`
}

// valid checks the minimum shape a manifest must have before it is trusted.
func (m *Manifest) valid() bool {
	return m != nil && m.Domain != "" && m.Cookies != nil
}

// ManifestIndex holds manifests keyed by normalized domain. Bundled
// manifests are loaded at startup; site-published ones are added as pages
// are visited.
type ManifestIndex struct {
	mu        sync.RWMutex
	manifests map[string]*Manifest
	client    *http.Client
}

// NewManifestIndex creates an empty index.
func NewManifestIndex() *ManifestIndex {
	return &ManifestIndex{
		manifests: make(map[string]*Manifest),
		client:    &http.Client{Timeout: 10 * time.Second},
	}
}

// normalizeManifestDomain strips the hostname prefixes the bundled
// manifests are keyed without.
func normalizeManifestDomain(domain string) string {
	d := strings.ToLower(domain)
	for _, prefix := range []string{"www.", "us.", "uk."} {
		d = strings.TrimPrefix(d, prefix)
	}
	return d
}

// LoadBundled reads every *.json manifest in dir. A missing directory is
// not an error.
func (idx *ManifestIndex) LoadBundled(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read manifest dir: %w", err)
	}

	loaded := 0
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			logging.ClassifyDebug("manifest %s unreadable: %v", entry.Name(), err)
			continue
		}
		var m Manifest
		if err := json.Unmarshal(data, &m); err != nil || !m.valid() {
			logging.ClassifyDebug("manifest %s rejected", entry.Name())
			continue
		}
		idx.add(&m)
		loaded++
	}

	if loaded > 0 {
		logging.Classify("loaded %d bundled manifests from %s", loaded, dir)
	}
	return nil
}

func (idx *ManifestIndex) add(m *Manifest) {
	idx.mu.Lock()
	idx.manifests[normalizeManifestDomain(m.Domain)] = m
	idx.mu.Unlock()
}

// Discover fetches a site-published manifest for origin (scheme://host),
// trying /.well-known/cookies.json then /cookies.json. The result is cached
// in the index. Returns the manifest, or nil when the site publishes none.
func (idx *ManifestIndex) Discover(ctx context.Context, origin, host string) *Manifest {
	key := normalizeManifestDomain(host)

	idx.mu.RLock()
	cached, ok := idx.manifests[key]
	idx.mu.RUnlock()
	if ok {
		return cached
	}

	for _, path := range []string{"/.well-known/cookies.json", "/cookies.json"} {
		m := idx.fetchOne(ctx, origin+path)
		if m != nil {
			logging.Classify("site manifest found at %s (%d cookies)", origin+path, len(m.Cookies))
			idx.add(m)
			return m
		}
	}
	return nil
}

func (idx *ManifestIndex) fetchOne(ctx context.Context, url string) *Manifest {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil
	}
	req.Header.Set("Accept", "application/json")

	resp, err := idx.client.Do(req)
	if err != nil {
		return nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil
	}

	var m Manifest
	if err := json.NewDecoder(resp.Body).Decode(&m); err != nil || !m.valid() {
		return nil
	}
	return &m
}

// Get returns the cached manifest for a host, if any.
func (idx *ManifestIndex) Get(host string) (*Manifest, bool) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	m, ok := idx.manifests[normalizeManifestDomain(host)]
	return m, ok
}

// Lookup resolves a declared cookie's category for the given page host.
// The essential flag on a declaration outranks its category string.
func (idx *ManifestIndex) Lookup(host, cookieName string) (Category, bool) {
	m, ok := idx.Get(host)
	if !ok {
		return "", false
	}
	for _, c := range m.Cookies {
		if c.Name != cookieName {
			continue
		}
		if c.Essential {
			return CategoryEssential, true
		}
		if cat := normalizeCategory(c.Category); cat != "" {
			return cat, true
		}
		switch Category(strings.ToLower(c.Category)) {
		case CategoryFunctional:
			return CategoryFunctional, true
		case CategorySocial:
			return CategorySocial, true
		}
		return CategoryUnknown, true
	}
	return "", false
}
