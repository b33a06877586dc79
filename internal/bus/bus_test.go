package bus

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cookiesentinel/internal/classify"
	"cookiesentinel/internal/review"
	"cookiesentinel/internal/store"
)

func newTestServices(t *testing.T) (Services, *store.Store) {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "sentinel.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	svc := Services{
		Classify: func(ctx context.Context, id classify.Identifier) classify.Classification {
			return classify.Classification{
				Category:   classify.CategoryAnalytics,
				Confidence: 0.7,
				Source:     classify.SourcePattern,
			}
		},
		Delete: func(ctx context.Context, name, domain string) (DeleteResponse, error) {
			return DeleteResponse{Attempted: true, Matched: 1, Deleted: 1}, nil
		},
		ClassifierStatus: func() classify.Status {
			return classify.Status{Enabled: true, Provider: "groq", Model: "llama"}
		},
		Review: review.New(st, nil),
		Store:  st,
	}
	return svc, st
}

func TestUnknownCommand(t *testing.T) {
	b := New(Services{})
	_, err := b.Dispatch(context.Background(), Kind("reticulate_splines"), nil)
	assert.ErrorIs(t, err, ErrUnknownCommand)
}

func TestUnavailableService(t *testing.T) {
	b := New(Services{})

	_, err := b.Classify(context.Background(), ClassifyRequest{Name: "_ga"})
	assert.ErrorIs(t, err, ErrUnavailable)

	_, err = b.Delete(context.Background(), DeleteRequest{Name: "_ga", Domain: "example.com"})
	assert.ErrorIs(t, err, ErrUnavailable)

	_, err = b.FetchPending(context.Background())
	assert.ErrorIs(t, err, ErrUnavailable)

	_, err = b.ClassifierStatus(context.Background())
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestBadInputType(t *testing.T) {
	svc, _ := newTestServices(t)
	b := New(svc)

	_, err := b.Dispatch(context.Background(), KindClassifyIdentifier, "not a struct")
	assert.ErrorIs(t, err, ErrBadInput)
}

func TestClassifyRoundTrip(t *testing.T) {
	svc, _ := newTestServices(t)
	b := New(svc)

	resp, err := b.Classify(context.Background(), ClassifyRequest{Name: "_ga", Domain: "example.com"})
	require.NoError(t, err)
	assert.Equal(t, classify.CategoryAnalytics, resp.Category)
	assert.InDelta(t, 0.7, resp.Confidence, 1e-9)
	assert.True(t, resp.NeedsReview, "0.7 sits below the review threshold")
}

func TestReviewLifecycleOverBus(t *testing.T) {
	svc, _ := newTestServices(t)
	b := New(svc)
	ctx := context.Background()

	enq, err := b.EnqueueReviewItems(ctx, EnqueueReviewRequest{Items: []store.ReviewItem{
		{Name: "_mystery", Domain: "example.com", Category: "unknown", Confidence: 0.3},
		{Name: "_mystery", Domain: "example.com", Category: "unknown", Confidence: 0.3},
	}})
	require.NoError(t, err)
	assert.Equal(t, 1, enq.Queued, "duplicate pending pair collapses")

	pending, err := b.FetchPending(ctx)
	require.NoError(t, err)
	require.Len(t, pending.Items, 1)

	decided, err := b.Decide(ctx, DecideRequest{ID: pending.Items[0].ID, Decision: store.DecisionKeep})
	require.NoError(t, err)
	assert.Equal(t, store.ReviewDecided, decided.Item.Status)

	_, err = b.Decide(ctx, DecideRequest{ID: pending.Items[0].ID, Decision: store.DecisionKeep})
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestActivityAndCountersOverBus(t *testing.T) {
	svc, st := newTestServices(t)
	b := New(svc)
	ctx := context.Background()

	require.NoError(t, b.RecordActivity(ctx, RecordActivityRequest{
		Action: "banner_handled", Domain: "example.com", Detail: "platform:onetrust",
	}))

	entries, err := st.ListActivity("normal", 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "banner_handled", entries[0].Action)

	counts, err := b.IncrementBannerCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, counts.Today)
	assert.Equal(t, 1, counts.Lifetime)

	status, err := b.ClassifierStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, "groq", status.Provider)
}
