// Package config loads and watches Cookie Sentinel configuration.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all Cookie Sentinel configuration.
type Config struct {
	// Core settings
	Name    string `yaml:"name"`
	Version string `yaml:"version"`

	// User preferences (owned by the options UI, read here)
	Preferences Preferences `yaml:"preferences"`

	// External classifier configuration
	Classifier ClassifierConfig `yaml:"classifier"`

	// Browser configuration
	Browser BrowserConfig `yaml:"browser"`

	// Enforcement timing knobs
	Enforcement EnforcementConfig `yaml:"enforcement"`

	// Consent engine timing knobs
	Consent ConsentConfig `yaml:"consent"`

	// Storage
	Storage StorageConfig `yaml:"storage"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`
}

// Preferences is the persisted preference set shared with the options UI.
type Preferences struct {
	Enabled              bool `yaml:"enabled" json:"enabled"`
	SafeMode             bool `yaml:"safe_mode" json:"safeMode"`
	AIEnabled            bool `yaml:"ai_enabled" json:"aiEnabled"`
	AllowAnalytics       bool `yaml:"allow_analytics" json:"allowAnalytics"`
	AllowAdvertising     bool `yaml:"allow_advertising" json:"allowAdvertising"`
	AllowPersonalization bool `yaml:"allow_personalization" json:"allowPersonalization"`
}

// AllowsEverything reports whether no category is blocked.
func (p Preferences) AllowsEverything() bool {
	return p.AllowAnalytics && p.AllowAdvertising && p.AllowPersonalization
}

// ClassifierConfig configures the external text classifier.
type ClassifierConfig struct {
	Provider string `yaml:"provider"` // groq, openai, gemini
	APIKey   string `yaml:"api_key"`
	Model    string `yaml:"model"`
	BaseURL  string `yaml:"base_url"`
	Timeout  string `yaml:"timeout"`

	// Requests per second allowed against the provider.
	RateLimit float64 `yaml:"rate_limit"`
}

// TimeoutDuration parses the configured timeout, defaulting to 30s.
func (c ClassifierConfig) TimeoutDuration() time.Duration {
	if d, err := time.ParseDuration(c.Timeout); err == nil && d > 0 {
		return d
	}
	return 30 * time.Second
}

// BrowserConfig configures the Chrome connection.
type BrowserConfig struct {
	DebuggerURL         string `yaml:"debugger_url"`
	Bin                 string `yaml:"bin"`
	Headless            bool   `yaml:"headless"`
	NavigationTimeoutMs int    `yaml:"navigation_timeout_ms"`
}

// NavigationTimeout returns the navigation timeout.
func (c BrowserConfig) NavigationTimeout() time.Duration {
	if c.NavigationTimeoutMs == 0 {
		return 30 * time.Second
	}
	return time.Duration(c.NavigationTimeoutMs) * time.Millisecond
}

// EnforcementConfig configures deletion pacing and sweeps.
type EnforcementConfig struct {
	AttemptCooldown  string `yaml:"attempt_cooldown"`   // min spacing between attempts per key
	MaxAttempts      int    `yaml:"max_attempts"`       // attempt ceiling per key
	SweepInterval    string `yaml:"sweep_interval"`     // blocklist/attempt eviction cadence
	InactivityWindow string `yaml:"inactivity_window"`  // entry age before eviction
	WatchInterval    string `yaml:"watch_interval"`     // cookie-creation poll cadence
}

// AttemptCooldownDuration returns the per-key attempt cooldown (default 30s).
func (c EnforcementConfig) AttemptCooldownDuration() time.Duration {
	if d, err := time.ParseDuration(c.AttemptCooldown); err == nil && d > 0 {
		return d
	}
	return 30 * time.Second
}

// MaxAttemptsOrDefault returns the attempt ceiling (default 3).
func (c EnforcementConfig) MaxAttemptsOrDefault() int {
	if c.MaxAttempts > 0 {
		return c.MaxAttempts
	}
	return 3
}

// SweepIntervalDuration returns the sweep cadence (default 5m).
func (c EnforcementConfig) SweepIntervalDuration() time.Duration {
	if d, err := time.ParseDuration(c.SweepInterval); err == nil && d > 0 {
		return d
	}
	return 5 * time.Minute
}

// InactivityWindowDuration returns the eviction age (default 5m).
func (c EnforcementConfig) InactivityWindowDuration() time.Duration {
	if d, err := time.ParseDuration(c.InactivityWindow); err == nil && d > 0 {
		return d
	}
	return 5 * time.Minute
}

// WatchIntervalDuration returns the cookie poll cadence (default 2s).
func (c EnforcementConfig) WatchIntervalDuration() time.Duration {
	if d, err := time.ParseDuration(c.WatchInterval); err == nil && d > 0 {
		return d
	}
	return 2 * time.Second
}

// ConsentConfig configures banner detection scheduling.
type ConsentConfig struct {
	InitialDelayMs   int    `yaml:"initial_delay_ms"`
	DebounceMs       int    `yaml:"debounce_ms"`
	MaxAttempts      int    `yaml:"max_attempts"`
	ObserverTimeout  string `yaml:"observer_timeout"`
	SiteCooldown     string `yaml:"site_cooldown"`
	SettleDelayMs    int    `yaml:"settle_delay_ms"`
	TogglePaceMs     int    `yaml:"toggle_pace_ms"`
}

// InitialDelay returns the delay before the first detection pass (default 1.5s).
func (c ConsentConfig) InitialDelay() time.Duration {
	if c.InitialDelayMs > 0 {
		return time.Duration(c.InitialDelayMs) * time.Millisecond
	}
	return 1500 * time.Millisecond
}

// Debounce returns the mutation recheck debounce (default 500ms).
func (c ConsentConfig) Debounce() time.Duration {
	if c.DebounceMs > 0 {
		return time.Duration(c.DebounceMs) * time.Millisecond
	}
	return 500 * time.Millisecond
}

// MaxAttemptsOrDefault returns the retry ceiling (default 10).
func (c ConsentConfig) MaxAttemptsOrDefault() int {
	if c.MaxAttempts > 0 {
		return c.MaxAttempts
	}
	return 10
}

// ObserverTimeoutDuration returns the hard observation timeout (default 25s).
func (c ConsentConfig) ObserverTimeoutDuration() time.Duration {
	if d, err := time.ParseDuration(c.ObserverTimeout); err == nil && d > 0 {
		return d
	}
	return 25 * time.Second
}

// SiteCooldownDuration returns the per-domain re-detection cooldown (default 1h).
func (c ConsentConfig) SiteCooldownDuration() time.Duration {
	if d, err := time.ParseDuration(c.SiteCooldown); err == nil && d > 0 {
		return d
	}
	return time.Hour
}

// SettleDelay returns the wait after opening a manage dialog (default 1s).
func (c ConsentConfig) SettleDelay() time.Duration {
	if c.SettleDelayMs > 0 {
		return time.Duration(c.SettleDelayMs) * time.Millisecond
	}
	return time.Second
}

// TogglePace returns the spacing between toggle flips (default 100ms).
func (c ConsentConfig) TogglePace() time.Duration {
	if c.TogglePaceMs > 0 {
		return time.Duration(c.TogglePaceMs) * time.Millisecond
	}
	return 100 * time.Millisecond
}

// StorageConfig configures persistence.
type StorageConfig struct {
	DatabasePath string `yaml:"database_path"`
	ManifestDir  string `yaml:"manifest_dir"` // bundled per-domain cookie manifests
}

// LoggingConfig configures logging.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, text
	File   string `yaml:"file"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Name:    "cookiesentinel",
		Version: "1.0.0",

		Preferences: Preferences{
			Enabled:              true,
			SafeMode:             false,
			AIEnabled:            true,
			AllowAnalytics:       false,
			AllowAdvertising:     false,
			AllowPersonalization: false,
		},

		Classifier: ClassifierConfig{
			Provider:  "groq",
			Model:     "llama-3.1-8b-instant",
			BaseURL:   "https://api.groq.com/openai/v1",
			Timeout:   "30s",
			RateLimit: 2,
		},

		Browser: BrowserConfig{
			Headless:            false,
			NavigationTimeoutMs: 30000,
		},

		Enforcement: EnforcementConfig{
			AttemptCooldown:  "30s",
			MaxAttempts:      3,
			SweepInterval:    "5m",
			InactivityWindow: "5m",
			WatchInterval:    "2s",
		},

		Consent: ConsentConfig{
			InitialDelayMs:  1500,
			DebounceMs:      500,
			MaxAttempts:     10,
			ObserverTimeout: "25s",
			SiteCooldown:    "1h",
			SettleDelayMs:   1000,
			TogglePaceMs:    100,
		},

		Storage: StorageConfig{
			DatabasePath: "data/sentinel.db",
			ManifestDir:  "manifests",
		},

		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads configuration from a YAML file, layering it over defaults.
// A missing file is not an error; defaults apply.
func Load(path string) (*Config, error) {
	// Pick up API keys from a .env file when present.
	_ = godotenv.Load()

	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("read config: %w", err)
			}
		} else if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// applyEnvOverrides applies environment variable overrides for secrets.
// Precedence: GEMINI > OPENAI > GROQ (later checks win).
func (c *Config) applyEnvOverrides() {
	if key := os.Getenv("GROQ_API_KEY"); key != "" {
		c.Classifier.APIKey = key
		if c.Classifier.Provider == "" {
			c.Classifier.Provider = "groq"
		}
	}
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		c.Classifier.APIKey = key
		c.Classifier.Provider = "openai"
	}
	if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		c.Classifier.APIKey = key
		c.Classifier.Provider = "gemini"
	}
	if url := os.Getenv("SENTINEL_DEBUGGER_URL"); url != "" {
		c.Browser.DebuggerURL = url
	}
}
