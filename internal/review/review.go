// Package review routes low-confidence classifications to a human queue
// and applies the resulting verdicts.
package review

import (
	"context"

	"github.com/google/uuid"

	"cookiesentinel/internal/classify"
	"cookiesentinel/internal/logging"
	"cookiesentinel/internal/store"
)

// DeleteFunc executes a deletion on behalf of a human verdict and reports
// whether anything was removed. The agent wires the enforcer in here.
type DeleteFunc func(ctx context.Context, name, domain string) (bool, error)

// Queue is the human review queue service.
type Queue struct {
	store  *store.Store
	delete DeleteFunc
}

// New builds a review queue over the given store. deleteFn runs when a
// human decides an item should be deleted; nil disables enforcement
// fan-out (the verdict is still recorded).
func New(st *store.Store, deleteFn DeleteFunc) *Queue {
	return &Queue{store: st, delete: deleteFn}
}

// MaybeEnqueue queues the identifier when an escalated classification falls
// below the review threshold. Local pipeline verdicts never queue; only the
// external classifier produces judgments uncertain enough to need a human.
// It reports whether an item is now pending.
func (q *Queue) MaybeEnqueue(id classify.Identifier, c classify.Classification) (bool, error) {
	if c.Source != classify.SourceEscalation || !c.NeedsReview() {
		return false, nil
	}
	item, err := q.store.EnqueueReview(store.ReviewItem{
		Name:       id.Name,
		Domain:     id.Domain,
		Category:   string(c.Category),
		Confidence: c.Confidence,
		Reasoning:  c.Reasoning,
	})
	if err != nil {
		return false, err
	}
	logging.Review("queued %s@%s for review (%s, %.2f)", item.Name, item.Domain, item.Category, item.Confidence)
	return true, nil
}

// Enqueue queues items unconditionally, skipping pairs already pending.
// It reports how many items were actually inserted.
func (q *Queue) Enqueue(items []store.ReviewItem) (int, error) {
	queued := 0
	for _, item := range items {
		if item.ID == "" {
			item.ID = uuid.NewString()
		}
		existing, err := q.store.EnqueueReview(item)
		if err != nil {
			return queued, err
		}
		// The store keeps the older pending row on a duplicate, so a new
		// id coming back means this item was inserted.
		if existing.ID == item.ID {
			queued++
		}
	}
	return queued, nil
}

// Pending lists all pending items, oldest first.
func (q *Queue) Pending() ([]store.ReviewItem, error) {
	return q.store.PendingReviewItems()
}

// PendingCount returns the number of pending items.
func (q *Queue) PendingCount() (int, error) {
	return q.store.PendingReviewCount()
}

// Decide records a human verdict. A delete verdict also triggers an
// enforcement pass against the item's domain.
func (q *Queue) Decide(ctx context.Context, id string, decision store.Decision) (store.ReviewItem, error) {
	item, err := q.store.DecideReviewItem(id, decision)
	if err != nil {
		return store.ReviewItem{}, err
	}
	logging.Review("decided %s@%s: %s", item.Name, item.Domain, decision)

	if decision == store.DecisionDelete && q.delete != nil {
		removed, err := q.delete(ctx, item.Name, item.Domain)
		if err != nil {
			logging.Review("enforcement after verdict failed for %s@%s: %v", item.Name, item.Domain, err)
			return item, nil
		}
		if removed {
			logging.Review("deleted %s@%s per verdict", item.Name, item.Domain)
		}
		if err := q.store.MarkReviewApplied(item.ID); err != nil {
			logging.Review("mark applied failed for %s: %v", item.ID, err)
		}
	}
	return item, nil
}

// ApplyDecisions enforces every delete verdict recorded without an
// enforcement backend (the decide command and the review TUI run outside
// the browser-attached process). Items whose deletion attempt errors stay
// queued for the next pass. It returns how many verdicts were applied.
func (q *Queue) ApplyDecisions(ctx context.Context) (int, error) {
	if q.delete == nil {
		return 0, nil
	}
	items, err := q.store.UnappliedDeletions()
	if err != nil {
		return 0, err
	}

	applied := 0
	for _, item := range items {
		removed, err := q.delete(ctx, item.Name, item.Domain)
		if err != nil {
			logging.Review("apply verdict for %s@%s failed: %v", item.Name, item.Domain, err)
			continue
		}
		if err := q.store.MarkReviewApplied(item.ID); err != nil {
			return applied, err
		}
		if removed {
			logging.Review("deleted %s@%s per verdict", item.Name, item.Domain)
		}
		applied++
	}
	return applied, nil
}
