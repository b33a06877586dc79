// Package bus is the command surface between the runtime agent and its
// frontends (CLI commands, the review TUI). Every command has a declared
// input and output type and dispatch resolves through a fixed table, so an
// unknown or unwired command fails fast instead of hanging.
package bus

import (
	"context"
	"errors"
	"fmt"

	"cookiesentinel/internal/classify"
	"cookiesentinel/internal/logging"
	"cookiesentinel/internal/review"
	"cookiesentinel/internal/store"
)

// Kind names a command.
type Kind string

const (
	KindClassifyIdentifier Kind = "classify_identifier"
	KindDeleteIdentifier   Kind = "delete_identifier"
	KindEnqueueReviewItems Kind = "enqueue_review_items"
	KindFetchPendingItems  Kind = "fetch_pending_review_items"
	KindDecideReviewItem   Kind = "decide_review_item"
	KindRecordActivity     Kind = "record_activity"
	KindClassifierStatus   Kind = "get_classifier_status"
	KindIncrementBanner    Kind = "increment_banner_count"
)

var (
	// ErrUnknownCommand is returned for a kind missing from the table.
	ErrUnknownCommand = errors.New("bus: unknown command")

	// ErrUnavailable is returned when the command exists but its backing
	// service is not wired in this process.
	ErrUnavailable = errors.New("bus: service unavailable")

	// ErrBadInput is returned when the input does not match the command's
	// declared type.
	ErrBadInput = errors.New("bus: invalid input type")
)

// ClassifyRequest asks for a verdict on one identifier.
type ClassifyRequest struct {
	Name       string `json:"name"`
	Domain     string `json:"domain"`
	Value      string `json:"value,omitempty"`
	PageDomain string `json:"pageDomain,omitempty"`
}

// ClassifyResponse carries the verdict.
type ClassifyResponse struct {
	Category    classify.Category `json:"category"`
	Confidence  float64           `json:"confidence"`
	Source      classify.Source   `json:"source"`
	Reasoning   string            `json:"reasoning,omitempty"`
	NeedsReview bool              `json:"needsReview"`
}

// DeleteRequest asks for enforcement against one identifier.
type DeleteRequest struct {
	Name   string `json:"name"`
	Domain string `json:"domain"`
}

// DeleteResponse reports the enforcement outcome.
type DeleteResponse struct {
	Attempted bool `json:"attempted"`
	Matched   int  `json:"matched"`
	Deleted   int  `json:"deleted"`
}

// EnqueueReviewRequest submits items for human review.
type EnqueueReviewRequest struct {
	Items []store.ReviewItem `json:"items"`
}

// EnqueueReviewResponse reports how many items were newly queued.
type EnqueueReviewResponse struct {
	Queued int `json:"queued"`
}

// FetchPendingResponse lists the pending review queue, oldest first.
type FetchPendingResponse struct {
	Items []store.ReviewItem `json:"items"`
}

// DecideRequest records a human verdict on a review item.
type DecideRequest struct {
	ID       string         `json:"id"`
	Decision store.Decision `json:"decision"`
}

// DecideResponse carries the decided item.
type DecideResponse struct {
	Item store.ReviewItem `json:"item"`
}

// RecordActivityRequest appends one activity log entry.
type RecordActivityRequest struct {
	Mode   string `json:"mode,omitempty"`
	Action string `json:"action"`
	Domain string `json:"domain,omitempty"`
	Detail string `json:"detail,omitempty"`
}

// Services are the backends commands dispatch into. Nil fields leave the
// corresponding commands wired but unavailable.
type Services struct {
	// Classify produces a verdict for one identifier, escalation included.
	Classify func(ctx context.Context, id classify.Identifier) classify.Classification

	// Delete enforces a deletion and reports (attempted, matched, deleted).
	Delete func(ctx context.Context, name, domain string) (DeleteResponse, error)

	// ClassifierStatus reports the escalation backend state.
	ClassifierStatus func() classify.Status

	// Review is the human review queue; it owns verdict fan-out.
	Review *review.Queue

	// Store backs the activity log and banner counters.
	Store *store.Store
}

type handler func(ctx context.Context, input any) (any, error)

// Bus dispatches commands against a fixed table.
type Bus struct {
	table map[Kind]handler
}

// New builds the dispatch table over the given services.
func New(svc Services) *Bus {
	b := &Bus{table: make(map[Kind]handler)}

	b.table[KindClassifyIdentifier] = func(ctx context.Context, input any) (any, error) {
		req, ok := input.(ClassifyRequest)
		if !ok {
			return nil, fmt.Errorf("%w: %T for %s", ErrBadInput, input, KindClassifyIdentifier)
		}
		if svc.Classify == nil {
			return nil, ErrUnavailable
		}
		c := svc.Classify(ctx, classify.Identifier{
			Name: req.Name, Domain: req.Domain, Value: req.Value, PageDomain: req.PageDomain,
		})
		return ClassifyResponse{
			Category:    c.Category,
			Confidence:  c.Confidence,
			Source:      c.Source,
			Reasoning:   c.Reasoning,
			NeedsReview: c.NeedsReview(),
		}, nil
	}

	b.table[KindDeleteIdentifier] = func(ctx context.Context, input any) (any, error) {
		req, ok := input.(DeleteRequest)
		if !ok {
			return nil, fmt.Errorf("%w: %T for %s", ErrBadInput, input, KindDeleteIdentifier)
		}
		if svc.Delete == nil {
			return nil, ErrUnavailable
		}
		return svc.Delete(ctx, req.Name, req.Domain)
	}

	b.table[KindEnqueueReviewItems] = func(ctx context.Context, input any) (any, error) {
		req, ok := input.(EnqueueReviewRequest)
		if !ok {
			return nil, fmt.Errorf("%w: %T for %s", ErrBadInput, input, KindEnqueueReviewItems)
		}
		if svc.Review == nil {
			return nil, ErrUnavailable
		}
		queued, err := svc.Review.Enqueue(req.Items)
		if err != nil {
			return nil, err
		}
		return EnqueueReviewResponse{Queued: queued}, nil
	}

	b.table[KindFetchPendingItems] = func(ctx context.Context, input any) (any, error) {
		if svc.Review == nil {
			return nil, ErrUnavailable
		}
		items, err := svc.Review.Pending()
		if err != nil {
			return nil, err
		}
		return FetchPendingResponse{Items: items}, nil
	}

	b.table[KindDecideReviewItem] = func(ctx context.Context, input any) (any, error) {
		req, ok := input.(DecideRequest)
		if !ok {
			return nil, fmt.Errorf("%w: %T for %s", ErrBadInput, input, KindDecideReviewItem)
		}
		if svc.Review == nil {
			return nil, ErrUnavailable
		}
		item, err := svc.Review.Decide(ctx, req.ID, req.Decision)
		if err != nil {
			return nil, err
		}
		return DecideResponse{Item: item}, nil
	}

	b.table[KindRecordActivity] = func(ctx context.Context, input any) (any, error) {
		req, ok := input.(RecordActivityRequest)
		if !ok {
			return nil, fmt.Errorf("%w: %T for %s", ErrBadInput, input, KindRecordActivity)
		}
		if svc.Store == nil {
			return nil, ErrUnavailable
		}
		return nil, svc.Store.AppendActivity(store.ActivityEntry{
			Mode: req.Mode, Action: req.Action, Domain: req.Domain, Detail: req.Detail,
		})
	}

	b.table[KindClassifierStatus] = func(ctx context.Context, input any) (any, error) {
		if svc.ClassifierStatus == nil {
			return nil, ErrUnavailable
		}
		return svc.ClassifierStatus(), nil
	}

	b.table[KindIncrementBanner] = func(ctx context.Context, input any) (any, error) {
		if svc.Store == nil {
			return nil, ErrUnavailable
		}
		return svc.Store.IncrementBannerCount()
	}

	return b
}

// Dispatch runs one command. Output is the command's declared response
// type; callers use the typed helpers below when they know the kind.
func (b *Bus) Dispatch(ctx context.Context, kind Kind, input any) (any, error) {
	h, ok := b.table[kind]
	if !ok {
		logging.BusDebug("unknown command %q", kind)
		return nil, fmt.Errorf("%w: %q", ErrUnknownCommand, kind)
	}
	logging.BusDebug("dispatch %s", kind)
	return h(ctx, input)
}

// Classify runs classify_identifier.
func (b *Bus) Classify(ctx context.Context, req ClassifyRequest) (ClassifyResponse, error) {
	out, err := b.Dispatch(ctx, KindClassifyIdentifier, req)
	if err != nil {
		return ClassifyResponse{}, err
	}
	return out.(ClassifyResponse), nil
}

// Delete runs delete_identifier.
func (b *Bus) Delete(ctx context.Context, req DeleteRequest) (DeleteResponse, error) {
	out, err := b.Dispatch(ctx, KindDeleteIdentifier, req)
	if err != nil {
		return DeleteResponse{}, err
	}
	return out.(DeleteResponse), nil
}

// EnqueueReviewItems runs enqueue_review_items.
func (b *Bus) EnqueueReviewItems(ctx context.Context, req EnqueueReviewRequest) (EnqueueReviewResponse, error) {
	out, err := b.Dispatch(ctx, KindEnqueueReviewItems, req)
	if err != nil {
		return EnqueueReviewResponse{}, err
	}
	return out.(EnqueueReviewResponse), nil
}

// FetchPending runs fetch_pending_review_items.
func (b *Bus) FetchPending(ctx context.Context) (FetchPendingResponse, error) {
	out, err := b.Dispatch(ctx, KindFetchPendingItems, nil)
	if err != nil {
		return FetchPendingResponse{}, err
	}
	return out.(FetchPendingResponse), nil
}

// Decide runs decide_review_item.
func (b *Bus) Decide(ctx context.Context, req DecideRequest) (DecideResponse, error) {
	out, err := b.Dispatch(ctx, KindDecideReviewItem, req)
	if err != nil {
		return DecideResponse{}, err
	}
	return out.(DecideResponse), nil
}

// RecordActivity runs record_activity.
func (b *Bus) RecordActivity(ctx context.Context, req RecordActivityRequest) error {
	_, err := b.Dispatch(ctx, KindRecordActivity, req)
	return err
}

// ClassifierStatus runs get_classifier_status.
func (b *Bus) ClassifierStatus(ctx context.Context) (classify.Status, error) {
	out, err := b.Dispatch(ctx, KindClassifierStatus, nil)
	if err != nil {
		return classify.Status{}, err
	}
	return out.(classify.Status), nil
}

// IncrementBannerCount runs increment_banner_count.
func (b *Bus) IncrementBannerCount(ctx context.Context) (store.BannerCounts, error) {
	out, err := b.Dispatch(ctx, KindIncrementBanner, nil)
	if err != nil {
		return store.BannerCounts{}, err
	}
	return out.(store.BannerCounts), nil
}
