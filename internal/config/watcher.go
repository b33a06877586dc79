package config

import (
	"context"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"

	"cookiesentinel/internal/logging"
)

// PreferenceStore holds the live preference set and notifies subscribers
// when the backing file changes. Writes go through Update so the file and
// the in-memory copy stay consistent.
type PreferenceStore struct {
	mu    sync.RWMutex
	prefs Preferences
	path  string
	subs  []chan Preferences
}

// NewPreferenceStore creates a store seeded from initial. If path names an
// existing YAML file its contents win over initial.
func NewPreferenceStore(path string, initial Preferences) (*PreferenceStore, error) {
	ps := &PreferenceStore{prefs: initial, path: path}
	if path != "" {
		if data, err := os.ReadFile(path); err == nil {
			var p Preferences
			if err := yaml.Unmarshal(data, &p); err == nil {
				ps.prefs = p
			} else {
				logging.BootWarn("preference file %s unreadable: %v", path, err)
			}
		}
	}
	return ps, nil
}

// Current returns a snapshot of the preferences.
func (ps *PreferenceStore) Current() Preferences {
	ps.mu.RLock()
	defer ps.mu.RUnlock()
	return ps.prefs
}

// Update replaces the preferences and persists them to the backing file.
func (ps *PreferenceStore) Update(p Preferences) error {
	ps.mu.Lock()
	ps.prefs = p
	path := ps.path
	ps.mu.Unlock()

	ps.notify(p)

	if path == "" {
		return nil
	}
	data, err := yaml.Marshal(p)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Subscribe returns a channel that receives each preference change.
// The channel is buffered; slow consumers drop intermediate updates.
func (ps *PreferenceStore) Subscribe() <-chan Preferences {
	ch := make(chan Preferences, 1)
	ps.mu.Lock()
	ps.subs = append(ps.subs, ch)
	ps.mu.Unlock()
	return ch
}

func (ps *PreferenceStore) notify(p Preferences) {
	ps.mu.RLock()
	defer ps.mu.RUnlock()
	for _, ch := range ps.subs {
		select {
		case ch <- p:
		default:
		}
	}
}

// Watch reloads the preference file whenever it changes on disk, until ctx
// is done. Editors that write via rename are handled by re-adding the watch.
func (ps *PreferenceStore) Watch(ctx context.Context) error {
	if ps.path == "" {
		<-ctx.Done()
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	dir := filepath.Dir(ps.path)
	if err := watcher.Add(dir); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != filepath.Clean(ps.path) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			ps.reload()
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logging.BootWarn("preference watcher: %v", err)
		}
	}
}

func (ps *PreferenceStore) reload() {
	data, err := os.ReadFile(ps.path)
	if err != nil {
		return
	}
	var p Preferences
	if err := yaml.Unmarshal(data, &p); err != nil {
		logging.BootWarn("preference reload failed: %v", err)
		return
	}

	ps.mu.Lock()
	changed := p != ps.prefs
	ps.prefs = p
	ps.mu.Unlock()

	if changed {
		logging.Boot("preferences reloaded from %s", ps.path)
		ps.notify(p)
	}
}
