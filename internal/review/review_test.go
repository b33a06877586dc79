package review

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cookiesentinel/internal/classify"
	"cookiesentinel/internal/store"
)

func newTestQueue(t *testing.T, deleteFn DeleteFunc) *Queue {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "sentinel.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return New(st, deleteFn)
}

func TestMaybeEnqueueThreshold(t *testing.T) {
	q := newTestQueue(t, nil)
	id := classify.Identifier{Name: "_mystery", Domain: "example.com"}

	queued, err := q.MaybeEnqueue(id, classify.Classification{
		Category: classify.CategoryAnalytics, Confidence: 0.9, Source: classify.SourceEscalation,
	})
	require.NoError(t, err)
	assert.False(t, queued, "confident verdicts skip review")

	queued, err = q.MaybeEnqueue(id, classify.Classification{
		Category: classify.CategoryAdvertising, Confidence: 0.55,
		Source: classify.SourceEscalation, Reasoning: "looks like a campaign id",
	})
	require.NoError(t, err)
	assert.True(t, queued)

	pending, err := q.Pending()
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "_mystery", pending[0].Name)
	assert.Equal(t, "looks like a campaign id", pending[0].Reasoning)
}

func TestMaybeEnqueueIgnoresLocalVerdicts(t *testing.T) {
	q := newTestQueue(t, nil)
	id := classify.Identifier{Name: "_mystery", Domain: "example.com"}

	// Pattern and fallback verdicts never queue, however uncertain; only
	// the external classifier's judgments go to a human.
	for _, src := range []classify.Source{
		classify.SourcePattern, classify.SourceFallback, classify.SourceThirdParty,
	} {
		queued, err := q.MaybeEnqueue(id, classify.Classification{
			Category: classify.CategoryUnknown, Confidence: 0.3, Source: src,
		})
		require.NoError(t, err)
		assert.False(t, queued, string(src))
	}

	count, err := q.PendingCount()
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestEnqueueCountsOnlyInsertions(t *testing.T) {
	q := newTestQueue(t, nil)

	n, err := q.Enqueue([]store.ReviewItem{
		{Name: "a", Domain: "example.com", Category: "unknown", Confidence: 0.3},
		{Name: "b", Domain: "example.com", Category: "unknown", Confidence: 0.3},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	// Re-submitting a pending pair is a no-op.
	n, err = q.Enqueue([]store.ReviewItem{
		{Name: "a", Domain: "example.com", Category: "unknown", Confidence: 0.3},
	})
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	count, err := q.PendingCount()
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestDecideDeleteRunsEnforcement(t *testing.T) {
	var gotName, gotDomain string
	q := newTestQueue(t, func(ctx context.Context, name, domain string) (bool, error) {
		gotName, gotDomain = name, domain
		return true, nil
	})

	queued, err := q.MaybeEnqueue(
		classify.Identifier{Name: "_tr", Domain: "tracker.example"},
		classify.Classification{Category: classify.CategoryUnknown, Confidence: 0.3, Source: classify.SourceEscalation})
	require.NoError(t, err)
	require.True(t, queued)

	pending, err := q.Pending()
	require.NoError(t, err)
	require.Len(t, pending, 1)

	item, err := q.Decide(context.Background(), pending[0].ID, store.DecisionDelete)
	require.NoError(t, err)
	assert.Equal(t, store.ReviewDecided, item.Status)
	assert.Equal(t, "_tr", gotName)
	assert.Equal(t, "tracker.example", gotDomain)

	// The fan-out already enforced the verdict, so nothing is left to apply.
	n, err := q.ApplyDecisions(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestDecideKeepSkipsEnforcement(t *testing.T) {
	called := false
	q := newTestQueue(t, func(ctx context.Context, name, domain string) (bool, error) {
		called = true
		return true, nil
	})

	queued, err := q.MaybeEnqueue(
		classify.Identifier{Name: "_tr", Domain: "tracker.example"},
		classify.Classification{Category: classify.CategoryUnknown, Confidence: 0.3, Source: classify.SourceEscalation})
	require.NoError(t, err)
	require.True(t, queued)

	pending, err := q.Pending()
	require.NoError(t, err)

	_, err = q.Decide(context.Background(), pending[0].ID, store.DecisionKeep)
	require.NoError(t, err)
	assert.False(t, called)
}

func TestApplyDecisionsEnforcesOfflineVerdicts(t *testing.T) {
	st, err := store.Open(filepath.Join(t.TempDir(), "sentinel.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	// The verdict is recorded by a queue with no enforcement backend, the
	// way the decide command and the review TUI run.
	offline := New(st, nil)
	queued, err := offline.MaybeEnqueue(
		classify.Identifier{Name: "_tr", Domain: "tracker.example"},
		classify.Classification{Category: classify.CategoryAdvertising, Confidence: 0.55, Source: classify.SourceEscalation})
	require.NoError(t, err)
	require.True(t, queued)

	pending, err := offline.Pending()
	require.NoError(t, err)
	require.Len(t, pending, 1)
	_, err = offline.Decide(context.Background(), pending[0].ID, store.DecisionDelete)
	require.NoError(t, err)

	var deleted []string
	wired := New(st, func(ctx context.Context, name, domain string) (bool, error) {
		deleted = append(deleted, name+"@"+domain)
		return true, nil
	})

	n, err := wired.ApplyDecisions(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, []string{"_tr@tracker.example"}, deleted)

	item, err := st.GetReviewItem(pending[0].ID)
	require.NoError(t, err)
	assert.Equal(t, store.ReviewApplied, item.Status)

	// A second pass finds nothing.
	n, err = wired.ApplyDecisions(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestDecideUnknownItem(t *testing.T) {
	q := newTestQueue(t, nil)
	_, err := q.Decide(context.Background(), "no-such-id", store.DecisionDelete)
	assert.ErrorIs(t, err, store.ErrNotFound)
}
