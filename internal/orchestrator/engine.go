package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/reva-dev/reva/internal/items"
	"github.com/reva-dev/reva/internal/log"
	"github.com/reva-dev/reva/internal/model"
	"github.com/reva-dev/reva/internal/poll"
	"github.com/reva-dev/reva/internal/review"
)

// ErrUnknownItem is returned when an operation names an item not in the
// working set.
var ErrUnknownItem = errors.New("unknown item")

// ErrReviewInProgress is returned when a review is started for an item that
// already has one running.
var ErrReviewInProgress = errors.New("a review is already in progress for this item")

// Engine is the composed review orchestration surface: item sync, review
// lifecycle, and the poll loop.
type Engine struct {
	items   *items.Store
	reviews *review.Store
	orch    *Orchestrator
	driver  *poll.Driver
}

// NewEngine wires the stores, orchestrator, and poll driver together.
// source may be nil when polling is not used.
func NewEngine(itemStore *items.Store, reviewStore *review.Store, orch *Orchestrator, source poll.Source) *Engine {
	e := &Engine{
		items:   itemStore,
		reviews: reviewStore,
		orch:    orch,
	}
	if source != nil {
		e.driver = poll.NewDriver(source, itemStore)
	}
	return e
}

// StartReview begins an asynchronous review for the item. The review store's
// TryStart claims the slot atomically, so concurrent starts for the same item
// cannot both spawn a run; the orchestrator itself trusts its caller not to
// re-enter.
func (e *Engine) StartReview(id string) error {
	st, ok := e.items.Get(id)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownItem, id)
	}

	if !e.reviews.TryStart(id) {
		return ErrReviewInProgress
	}

	e.items.UpdateStatus(id, model.StatusReviewing)

	go func() {
		item := st.Item
		_, err := e.orch.Run(context.Background(), &item)
		switch {
		case err == nil:
			e.items.UpdateStatus(id, model.StatusReviewed)
		case errors.Is(err, ErrCancelled):
			// Cancelled reviews leave the item's lifecycle alone.
			log.Info("review cancelled", "id", id)
		default:
			log.Warn("review failed", "id", id, "error", err)
		}
	}()

	return nil
}

// RunReview executes a review synchronously and returns its result. Used by
// the one-shot CLI path.
func (e *Engine) RunReview(ctx context.Context, item *model.Item) (*model.ReviewResult, error) {
	return e.orch.Run(ctx, item)
}

// GetReview returns the current review state for id.
func (e *Engine) GetReview(id string) (model.ReviewState, bool) {
	return e.reviews.Get(id)
}

// CancelReview cancels an in-flight review. Reports whether a review was
// actually cancelled; a terminal ReviewState is left untouched.
func (e *Engine) CancelReview(id string) bool {
	return e.orch.Cancel(id)
}

// SelectAnnotation toggles whether an annotation is selected for publication.
func (e *Engine) SelectAnnotation(id string, issueIndex int, selected bool) bool {
	return e.reviews.SelectAnnotation(id, issueIndex, selected)
}

// SyncItems reconciles the working set against a snapshot.
func (e *Engine) SyncItems(snapshot []model.Item, needsAttention map[string]bool) items.Delta {
	delta := e.items.Sync(snapshot, needsAttention)
	// Reviews for items that left the working set are dropped with them.
	for _, id := range delta.Removed {
		e.reviews.Delete(id)
	}
	return delta
}

// Items returns the current working set.
func (e *Engine) Items() []model.ItemState {
	return e.items.List()
}

// GetItem returns one item state.
func (e *Engine) GetItem(id string) (model.ItemState, bool) {
	return e.items.Get(id)
}

// MarkSeen transitions an item to seen.
func (e *Engine) MarkSeen(id string) bool {
	return e.items.UpdateStatus(id, model.StatusSeen)
}

// PollNow runs one poll cycle immediately.
func (e *Engine) PollNow(ctx context.Context) (items.Delta, error) {
	if e.driver == nil {
		return items.Delta{}, errors.New("no poll source configured")
	}
	return e.driver.PollNow(ctx)
}

// StartPolling launches the poll loop.
func (e *Engine) StartPolling(interval time.Duration, onNew func([]model.ItemState)) error {
	if e.driver == nil {
		return errors.New("no poll source configured")
	}
	e.driver.Start(interval, onNew)
	return nil
}

// StopPolling halts the poll loop.
func (e *Engine) StopPolling() {
	if e.driver != nil {
		e.driver.Stop()
	}
}
