package classify

import (
	"context"
	"errors"
	"math"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"cookiesentinel/internal/logging"
)

const escalateMaxRetries = 2

// Wait before retrying a rate-limited request. Variable so tests can
// shorten it.
var escalateRetryWait = 3 * time.Second

// Status describes the escalation backend for reporting.
type Status struct {
	Enabled  bool   `json:"enabled"`
	Ready    bool   `json:"ready"`
	Provider string `json:"provider"`
	Model    string `json:"model"`
}

// Escalator wraps a provider client with pacing, readiness probing, result
// validation, and the conservative fallbacks used when the provider is
// unreachable. A nil client means escalation is disabled.
type Escalator struct {
	client  Client
	model   string
	limiter *rate.Limiter

	mu        sync.Mutex
	ready     bool
	lastProbe time.Time
}

// NewEscalator builds an escalator. ratePerSec bounds outgoing requests;
// zero means 2 req/s.
func NewEscalator(client Client, model string, ratePerSec float64) *Escalator {
	if ratePerSec <= 0 {
		ratePerSec = 2
	}
	return &Escalator{
		client:  client,
		model:   model,
		limiter: rate.NewLimiter(rate.Limit(ratePerSec), 1),
	}
}

// Status reports whether the backend is configured and has answered a probe.
func (e *Escalator) Status() Status {
	s := Status{Model: e.model}
	if e.client == nil {
		return s
	}
	s.Enabled = true
	s.Provider = e.client.Name()
	e.mu.Lock()
	s.Ready = e.ready
	e.mu.Unlock()
	return s
}

// Classify asks the provider to classify id. It never returns an error:
// every failure path degrades to a low-confidence fallback so callers keep
// the cookie and move on.
func (e *Escalator) Classify(ctx context.Context, id Identifier) Classification {
	if e.client == nil {
		return fallback(CategoryFunctional, "classifier not configured")
	}

	if !e.ensureReady(ctx) {
		return fallback(CategoryFunctional, "classifier not available")
	}

	if err := e.limiter.Wait(ctx); err != nil {
		return fallback(CategoryFunctional, "cancelled before request")
	}

	var raw rawResult
	var err error
	for attempt := 0; attempt <= escalateMaxRetries; attempt++ {
		raw, err = e.client.Classify(ctx, id)
		if err == nil {
			break
		}
		var rl *RateLimitError
		if errors.As(err, &rl) && attempt < escalateMaxRetries {
			logging.API("rate limited, waiting %s before retry %d/%d", escalateRetryWait, attempt+1, escalateMaxRetries)
			select {
			case <-time.After(escalateRetryWait):
			case <-ctx.Done():
				return fallback(CategoryFunctional, "cancelled during retry")
			}
			continue
		}
		logging.APIError("classification failed for %q: %v", id.Name, err)
		return fallback(CategoryFunctional, "classifier error: "+err.Error())
	}
	if err != nil {
		return fallback(CategoryFunctional, "classifier error: "+err.Error())
	}

	return validateResult(raw)
}

// ensureReady probes the backend with a known identifier. A successful
// probe is sticky; a failed one is retried once escalateRetryWait has
// passed, so a transient outage at startup does not disable escalation for
// the process lifetime.
func (e *Escalator) ensureReady(ctx context.Context) bool {
	e.mu.Lock()
	if e.ready {
		e.mu.Unlock()
		return true
	}
	if !e.lastProbe.IsZero() && time.Since(e.lastProbe) < escalateRetryWait {
		e.mu.Unlock()
		return false
	}
	e.lastProbe = time.Now()
	e.mu.Unlock()

	_, err := e.client.Classify(ctx, Identifier{Name: "_ga", Domain: "example.com"})
	ok := err == nil
	if ok {
		logging.API("classifier %s ready (model %s)", e.client.Name(), e.model)
	} else {
		logging.APIError("classifier probe failed: %v", err)
	}

	e.mu.Lock()
	e.ready = ok
	e.mu.Unlock()
	return ok
}

// validateResult normalizes a provider verdict onto the canonical taxonomy.
// Unknown categories become personalization; out-of-range confidence
// becomes 0.5.
func validateResult(raw rawResult) Classification {
	cat := normalizeCategory(raw.Category)
	if cat == "" || !escalationCategories[cat] {
		logging.APIDebug("invalid category %q, defaulting to personalization", raw.Category)
		cat = CategoryPersonalization
	}

	conf := raw.Confidence
	if math.IsNaN(conf) || conf < 0 || conf > 1 {
		logging.APIDebug("invalid confidence %v, defaulting to 0.5", raw.Confidence)
		conf = 0.5
	}

	return Classification{
		Category:   cat,
		Confidence: conf,
		Source:     SourceEscalation,
		Reasoning:  raw.Reasoning,
	}
}

func fallback(cat Category, reason string) Classification {
	return Classification{
		Category:   cat,
		Confidence: 0.3,
		Source:     SourceFallback,
		Reasoning:  reason,
	}
}
