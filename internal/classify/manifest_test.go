package classify

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadBundledManifests(t *testing.T) {
	dir := t.TempDir()
	good := `{"domain":"shop.example","cookies":[{"name":"cart_id","category":"essential","essential":true}]}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "shop.example.json"), []byte(good), 0644))
	// Missing the required fields; must be skipped, not fatal.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.json"), []byte(`{"cookies":[]}`), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "junk.json"), []byte(`not json`), 0644))

	idx := NewManifestIndex()
	require.NoError(t, idx.LoadBundled(dir))

	cat, ok := idx.Lookup("www.shop.example", "cart_id")
	require.True(t, ok)
	assert.Equal(t, CategoryEssential, cat)

	_, ok = idx.Get("broken")
	assert.False(t, ok)
}

func TestLoadBundledMissingDirIsFine(t *testing.T) {
	idx := NewManifestIndex()
	assert.NoError(t, idx.LoadBundled(filepath.Join(t.TempDir(), "absent")))
}

func TestDiscoverWellKnownManifest(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/.well-known/cookies.json" {
			w.Write([]byte(`{"domain":"site.test","cookies":[{"name":"sess","essential":true}]}`))
			return
		}
		http.NotFound(w, r)
	}))
	defer srv.Close()

	idx := NewManifestIndex()
	m := idx.Discover(context.Background(), srv.URL, "site.test")
	require.NotNil(t, m)
	assert.Equal(t, "site.test", m.Domain)

	// Cached for subsequent lookups.
	_, ok := idx.Get("www.site.test")
	assert.True(t, ok)
}

func TestDiscoverFallsBackToRootPath(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/cookies.json" {
			w.Write([]byte(`{"domain":"site.test","cookies":[]}`))
			return
		}
		http.NotFound(w, r)
	}))
	defer srv.Close()

	idx := NewManifestIndex()
	assert.NotNil(t, idx.Discover(context.Background(), srv.URL, "site.test"))
}

func TestDiscoverRejectsInvalidShape(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"hello":"world"}`))
	}))
	defer srv.Close()

	idx := NewManifestIndex()
	assert.Nil(t, idx.Discover(context.Background(), srv.URL, "site.test"))
}
