package store

import (
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "sentinel.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestReviewQueueLifecycle(t *testing.T) {
	s := openTestStore(t)

	item, err := s.EnqueueReview(ReviewItem{
		Name:       "_tr_session",
		Domain:     ".example.com",
		Category:   "analytics",
		Confidence: 0.55,
		Reasoning:  "ambiguous naming",
	})
	require.NoError(t, err)
	require.NotEmpty(t, item.ID)
	assert.Equal(t, ReviewPending, item.Status)

	pending, err := s.PendingReviewItems()
	require.NoError(t, err)
	require.Len(t, pending, 1)

	decided, err := s.DecideReviewItem(item.ID, DecisionDelete)
	require.NoError(t, err)
	assert.Equal(t, ReviewDecided, decided.Status)
	assert.Equal(t, DecisionDelete, decided.Decision)
	assert.False(t, decided.DecidedAt.IsZero())

	n, err := s.PendingReviewCount()
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestEnqueueReviewPendingUnique(t *testing.T) {
	s := openTestStore(t)

	first, err := s.EnqueueReview(ReviewItem{Name: "dup", Domain: "example.com", Category: "analytics", Confidence: 0.4})
	require.NoError(t, err)

	second, err := s.EnqueueReview(ReviewItem{Name: "dup", Domain: "example.com", Category: "advertising", Confidence: 0.6})
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID, "pending duplicate should not create a second item")

	n, err := s.PendingReviewCount()
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	// Once decided, the same pair may be enqueued again.
	_, err = s.DecideReviewItem(first.ID, DecisionKeep)
	require.NoError(t, err)

	third, err := s.EnqueueReview(ReviewItem{Name: "dup", Domain: "example.com", Category: "analytics", Confidence: 0.4})
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, third.ID)
}

func TestDecideReviewItemErrors(t *testing.T) {
	s := openTestStore(t)

	_, err := s.DecideReviewItem("missing", DecisionKeep)
	assert.ErrorIs(t, err, ErrNotFound)

	item, err := s.EnqueueReview(ReviewItem{Name: "x", Domain: "a.com", Category: "analytics", Confidence: 0.1})
	require.NoError(t, err)

	_, err = s.DecideReviewItem(item.ID, Decision("maybe"))
	assert.Error(t, err)

	_, err = s.DecideReviewItem(item.ID, DecisionDelete)
	require.NoError(t, err)

	// Second decision on the same item fails.
	_, err = s.DecideReviewItem(item.ID, DecisionKeep)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUnappliedDeletionsLifecycle(t *testing.T) {
	s := openTestStore(t)

	del, err := s.EnqueueReview(ReviewItem{Name: "_tr", Domain: "a.com", Category: "advertising", Confidence: 0.5})
	require.NoError(t, err)
	keep, err := s.EnqueueReview(ReviewItem{Name: "_ok", Domain: "b.com", Category: "functional", Confidence: 0.5})
	require.NoError(t, err)

	// Nothing is unapplied while both are still pending.
	items, err := s.UnappliedDeletions()
	require.NoError(t, err)
	assert.Empty(t, items)

	_, err = s.DecideReviewItem(del.ID, DecisionDelete)
	require.NoError(t, err)
	_, err = s.DecideReviewItem(keep.ID, DecisionKeep)
	require.NoError(t, err)

	// Only the delete verdict shows up.
	items, err = s.UnappliedDeletions()
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, del.ID, items[0].ID)

	require.NoError(t, s.MarkReviewApplied(del.ID))
	items, err = s.UnappliedDeletions()
	require.NoError(t, err)
	assert.Empty(t, items)

	applied, err := s.GetReviewItem(del.ID)
	require.NoError(t, err)
	assert.Equal(t, ReviewApplied, applied.Status)

	// Marking twice, or marking a non-decided item, is refused.
	assert.ErrorIs(t, s.MarkReviewApplied(del.ID), ErrNotFound)
	assert.ErrorIs(t, s.MarkReviewApplied("missing"), ErrNotFound)
}

func TestActivityLogCapAndOrder(t *testing.T) {
	s := openTestStore(t)

	for i := 0; i < activityCap+25; i++ {
		require.NoError(t, s.AppendActivity(ActivityEntry{
			Mode:   "normal",
			Action: "cookies_deleted",
			Domain: fmt.Sprintf("site%d.com", i),
		}))
	}
	// A second mode keeps its own window.
	require.NoError(t, s.AppendActivity(ActivityEntry{Mode: "incognito", Action: "banner_handled", Domain: "x.com"}))

	entries, err := s.ListActivity("normal", 0)
	require.NoError(t, err)
	require.Len(t, entries, activityCap)
	assert.Equal(t, fmt.Sprintf("site%d.com", activityCap+24), entries[0].Domain, "newest first")

	incog, err := s.ListActivity("incognito", 0)
	require.NoError(t, err)
	require.Len(t, incog, 1)
	assert.Equal(t, "banner_handled", incog[0].Action)
}

func TestBannerCountRollover(t *testing.T) {
	s := openTestStore(t)

	yesterday := time.Now().AddDate(0, 0, -1)
	for i := 0; i < 3; i++ {
		_, err := s.incrementBannerCountAt(yesterday)
		require.NoError(t, err)
	}

	counts, err := s.GetBannerCounts()
	require.NoError(t, err)
	assert.Equal(t, 0, counts.Today, "stale day reads as zero today")
	assert.Equal(t, 3, counts.Lifetime)

	counts, err = s.IncrementBannerCount()
	require.NoError(t, err)
	assert.Equal(t, 1, counts.Today)
	assert.Equal(t, 4, counts.Lifetime)
}
