package consent

import "context"

// ToggleInfo is a consent toggle snapshot from a preference dialog.
type ToggleInfo struct {
	Ref     string `json:"ref"`
	Label   string `json:"label"`
	Checked bool   `json:"checked"`
}

// PageDriver is the resolver's view of one page. The browser package
// implements it over CDP; tests implement it with fakes.
type PageDriver interface {
	// Host returns the page hostname.
	Host() string
	// URL returns the full page URL.
	URL() string

	// CollectCandidates runs the five-priority container scan and returns
	// the candidates in scan order.
	CollectCandidates(ctx context.Context) ([]ElementInfo, error)

	// DetectPlatform reports which known consent platform is present, if any.
	DetectPlatform(ctx context.Context) (*Platform, error)

	// ClickFirstVisible clicks the first visible element matching any of the
	// selectors and reports which selector hit.
	ClickFirstVisible(ctx context.Context, selectors []string) (string, bool, error)

	// Click invokes a previously collected element through the full event
	// sequence (focus, click, synthetic mouse and pointer events).
	Click(ctx context.Context, ref string) error

	// PageButtons returns every interactive element on the page.
	PageButtons(ctx context.Context) ([]ButtonInfo, error)

	// Toggles returns the consent toggles currently in the DOM.
	Toggles(ctx context.Context) ([]ToggleInfo, error)

	// Toggle flips one toggle.
	Toggle(ctx context.Context, ref string) error

	// HideBanner injects a stylesheet that suppresses the container.
	HideBanner(ctx context.Context, ref string) error

	// Mutations streams a signal per DOM subtree change until stop is
	// called.
	Mutations(ctx context.Context) (<-chan struct{}, func(), error)
}
