package consent

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"cookiesentinel/internal/config"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakeDriver struct {
	mu sync.Mutex

	host            string
	candidates      []ElementInfo
	platform        *Platform
	platformCanMiss bool
	pageButtons     []ButtonInfo
	toggles         []ToggleInfo

	scanCalls int
	clicks    []string
	toggled   []string
	hidden    []string
}

func (f *fakeDriver) Host() string { return f.host }
func (f *fakeDriver) URL() string  { return "https://" + f.host + "/" }

func (f *fakeDriver) CollectCandidates(ctx context.Context) ([]ElementInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.scanCalls++
	return f.candidates, nil
}

func (f *fakeDriver) DetectPlatform(ctx context.Context) (*Platform, error) {
	return f.platform, nil
}

func (f *fakeDriver) ClickFirstVisible(ctx context.Context, selectors []string) (string, bool, error) {
	if f.platformCanMiss {
		return "", false, nil
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.clicks = append(f.clicks, selectors[0])
	return selectors[0], true, nil
}

func (f *fakeDriver) Click(ctx context.Context, ref string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.clicks = append(f.clicks, ref)
	return nil
}

func (f *fakeDriver) PageButtons(ctx context.Context) ([]ButtonInfo, error) {
	return f.pageButtons, nil
}

func (f *fakeDriver) Toggles(ctx context.Context) ([]ToggleInfo, error) {
	return f.toggles, nil
}

func (f *fakeDriver) Toggle(ctx context.Context, ref string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.toggled = append(f.toggled, ref)
	return nil
}

func (f *fakeDriver) HideBanner(ctx context.Context, ref string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.hidden = append(f.hidden, ref)
	return nil
}

func (f *fakeDriver) Mutations(ctx context.Context) (<-chan struct{}, func(), error) {
	return nil, func() {}, nil
}

func (f *fakeDriver) clickCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.clicks)
}

func testConsentConfig() config.ConsentConfig {
	return config.ConsentConfig{
		InitialDelayMs:  1,
		DebounceMs:      1,
		MaxAttempts:     2,
		ObserverTimeout: "3s",
		SettleDelayMs:   1,
		TogglePaceMs:    1,
	}
}

func blockAllPrefs() config.Preferences {
	return config.Preferences{Enabled: true}
}

func runResolver(t *testing.T, d *fakeDriver, prefs config.Preferences) (*Resolver, []Resolution) {
	t.Helper()
	var resolutions []Resolution
	var mu sync.Mutex

	r := NewResolver(d, func() config.Preferences { return prefs }, testConsentConfig(), NewCooldowns(time.Hour))
	r.OnResolved = func(res Resolution) {
		mu.Lock()
		resolutions = append(resolutions, res)
		mu.Unlock()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, r.Run(ctx))
	return r, resolutions
}

func TestResolverPlatformStrategy(t *testing.T) {
	d := &fakeDriver{
		host:       "news.example",
		candidates: []ElementInfo{{Ref: "p", Priority: PriorityPlatform, Selector: "#onetrust-banner-sdk", Visible: true}},
		platform:   &Platforms[0],
	}

	r, resolutions := runResolver(t, d, blockAllPrefs())

	assert.Equal(t, StateDone, r.State())
	require.Len(t, resolutions, 1)
	assert.Equal(t, "platform_specific", resolutions[0].Method)
	assert.Equal(t, 1, d.clickCount())
}

func TestResolverGenericAcceptClick(t *testing.T) {
	c := plausibleCandidate()
	d := &fakeDriver{host: "blog.example", candidates: []ElementInfo{c}}

	// Leave the manage button out so the single-step path runs.
	d.candidates[0].Buttons = []ButtonInfo{{Ref: "b1", Text: "Accept all", Visible: true}}

	_, resolutions := runResolver(t, d, blockAllPrefs())

	require.Len(t, resolutions, 1)
	assert.Equal(t, "accept_all", resolutions[0].Method)
	assert.Equal(t, []string{"b1"}, d.clicks)
}

func TestResolverMultiStepFlow(t *testing.T) {
	c := plausibleCandidate()
	c.Buttons = []ButtonInfo{{Ref: "manage", Text: "Manage preferences", Visible: true}}
	d := &fakeDriver{
		host:       "shop.example",
		candidates: []ElementInfo{c},
		toggles: []ToggleInfo{
			{Ref: "t-ess", Label: "Strictly necessary", Checked: true},
			{Ref: "t-ana", Label: "Analytics cookies", Checked: true},
			{Ref: "t-adv", Label: "Advertising", Checked: false},
			{Ref: "t-unknown", Label: "Mystery", Checked: true},
		},
		pageButtons: []ButtonInfo{{Ref: "save", Text: "Save preferences", Visible: true}},
	}

	_, resolutions := runResolver(t, d, blockAllPrefs())

	require.Len(t, resolutions, 1)
	assert.Equal(t, "multi_step", resolutions[0].Method)
	// Analytics was on and must turn off; advertising already off; essential
	// stays on; the uncategorized toggle is untouched.
	assert.Equal(t, []string{"t-ana"}, d.toggled)
	assert.Equal(t, []string{"manage", "save"}, d.clicks)
}

func TestResolverSafeModeDetectsWithoutClicking(t *testing.T) {
	c := plausibleCandidate()
	c.Buttons = []ButtonInfo{{Ref: "b1", Text: "Accept all", Visible: true}}
	d := &fakeDriver{host: "bank.example", candidates: []ElementInfo{c}}

	prefs := blockAllPrefs()
	prefs.SafeMode = true
	_, resolutions := runResolver(t, d, prefs)

	require.Len(t, resolutions, 1)
	assert.Equal(t, "detected_only", resolutions[0].Method)
	assert.Equal(t, 0, d.clickCount())
	assert.Empty(t, d.hidden)
}

func TestResolverAllowEverythingLeavesBannerAlone(t *testing.T) {
	c := plausibleCandidate()
	c.Buttons = []ButtonInfo{{Ref: "b1", Text: "Accept all", Visible: true}}
	d := &fakeDriver{host: "docs.example", candidates: []ElementInfo{c}}

	prefs := blockAllPrefs()
	prefs.AllowAnalytics = true
	prefs.AllowAdvertising = true
	prefs.AllowPersonalization = true
	r, resolutions := runResolver(t, d, prefs)

	// Nothing the banner asks for is objectionable, so the resolver stops
	// observing without clicking, hiding, or reporting a resolution.
	assert.Equal(t, StateDone, r.State())
	assert.Empty(t, resolutions)
	assert.Equal(t, 0, d.clickCount())
	assert.Empty(t, d.hidden)
}

func TestResolverMultiStepNoSaveFallsBackToAccept(t *testing.T) {
	c := plausibleCandidate()
	c.Buttons = []ButtonInfo{{Ref: "manage", Text: "Manage preferences", Visible: true}}
	d := &fakeDriver{
		host:       "store.example",
		candidates: []ElementInfo{c},
		toggles: []ToggleInfo{
			{Ref: "t-ana", Label: "Analytics cookies", Checked: true},
		},
		// The preference dialog has an accept control but no save button.
		pageButtons: []ButtonInfo{{Ref: "acc", Text: "Accept all", Visible: true}},
	}

	_, resolutions := runResolver(t, d, blockAllPrefs())

	require.Len(t, resolutions, 1)
	assert.Equal(t, "accept_all", resolutions[0].Method)
	assert.Equal(t, []string{"t-ana"}, d.toggled)
	assert.Equal(t, []string{"manage", "acc"}, d.clicks)
}

func TestResolverMultiStepNoTogglesFallsBackToAccept(t *testing.T) {
	c := plausibleCandidate()
	c.Buttons = []ButtonInfo{{Ref: "manage", Text: "Manage preferences", Visible: true}}
	d := &fakeDriver{
		host:        "legal.example",
		candidates:  []ElementInfo{c},
		pageButtons: []ButtonInfo{{Ref: "acc", Text: "Accept all", Visible: true}},
	}

	_, resolutions := runResolver(t, d, blockAllPrefs())

	require.Len(t, resolutions, 1)
	assert.Equal(t, "accept_all", resolutions[0].Method)
	assert.Empty(t, d.toggled)
	assert.Equal(t, []string{"manage", "acc"}, d.clicks)
}

func TestResolverHonorsCooldown(t *testing.T) {
	d := &fakeDriver{host: "cool.example", candidates: []ElementInfo{plausibleCandidate()}}

	cooldowns := NewCooldowns(time.Hour)
	cooldowns.Set("cool.example")
	r := NewResolver(d, blockAllPrefs, testConsentConfig(), cooldowns)

	require.NoError(t, r.Run(context.Background()))
	assert.Equal(t, StateDone, r.State())
	assert.Equal(t, 0, d.scanCalls)
}

func TestResolverDisabledDoesNothing(t *testing.T) {
	d := &fakeDriver{host: "off.example"}
	r := NewResolver(d, func() config.Preferences { return config.Preferences{} }, testConsentConfig(), NewCooldowns(time.Hour))

	require.NoError(t, r.Run(context.Background()))
	assert.Equal(t, 0, d.scanCalls)
}

func TestResolverStopsAfterMaxAttempts(t *testing.T) {
	d := &fakeDriver{host: "empty.example"} // never yields a banner

	r, resolutions := runResolver(t, d, blockAllPrefs())

	assert.Equal(t, StateDone, r.State())
	assert.Empty(t, resolutions)
	assert.Equal(t, 2, d.scanCalls)
}

func TestResolverSetsCooldownOnResolution(t *testing.T) {
	c := plausibleCandidate()
	c.Buttons = []ButtonInfo{{Ref: "b1", Text: "Accept all", Visible: true}}
	d := &fakeDriver{host: "once.example", candidates: []ElementInfo{c}}

	cooldowns := NewCooldowns(time.Hour)
	r := NewResolver(d, blockAllPrefs, testConsentConfig(), cooldowns)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, r.Run(ctx))

	assert.True(t, cooldowns.Active("once.example"))
}

func TestCooldownExpiry(t *testing.T) {
	c := NewCooldowns(10 * time.Millisecond)
	c.Set("a.example")
	assert.True(t, c.Active("a.example"))
	time.Sleep(20 * time.Millisecond)
	assert.False(t, c.Active("a.example"))
}
