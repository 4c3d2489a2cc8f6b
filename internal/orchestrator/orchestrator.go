// Package orchestrator runs AI reviews end-to-end: it fetches diff context,
// drives the analysis tool, extracts the structured review, and maps reported
// line numbers onto the diff to produce inline annotations.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/reva-dev/reva/internal/agent"
	"github.com/reva-dev/reva/internal/diffmap"
	"github.com/reva-dev/reva/internal/extract"
	"github.com/reva-dev/reva/internal/log"
	"github.com/reva-dev/reva/internal/model"
	"github.com/reva-dev/reva/internal/prompt"
	"github.com/reva-dev/reva/internal/review"
)

// ErrCancelled is returned by Run when the review was cancelled. It is a
// distinguished outcome, not a failure.
var ErrCancelled = errors.New("review cancelled")

// Fetcher supplies diff context for an item when the item does not already
// carry it. Implemented by the hosting-platform client.
type Fetcher interface {
	FetchDiff(ctx context.Context, owner, repo string, number int) (string, error)
	FetchFiles(ctx context.Context, owner, repo string, number int) ([]model.FileChange, error)
}

// Runner abstracts the process executor for testing.
type Runner interface {
	Execute(ctx context.Context, id, prompt string, cfg agent.Config) (*agent.Output, error)
	Abort(id string) bool
}

// Orchestrator composes the executor, extractor, and diff mapper to run one
// review per item. Cancellation is cooperative: checked between phases and
// forwarded to the OS process.
type Orchestrator struct {
	fetcher  Fetcher
	runner   Runner
	reviews  *review.Store
	prompts  *prompt.Builder
	agentCfg agent.Config

	mu      sync.Mutex
	cancels map[string]context.CancelFunc
}

// New creates an orchestrator. fetcher may be nil when callers always supply
// items with embedded diff context.
func New(fetcher Fetcher, runner Runner, reviews *review.Store, prompts *prompt.Builder, agentCfg agent.Config) *Orchestrator {
	return &Orchestrator{
		fetcher:  fetcher,
		runner:   runner,
		reviews:  reviews,
		prompts:  prompts,
		agentCfg: agentCfg,
		cancels:  make(map[string]context.CancelFunc),
	}
}

// Run executes one review for item and records the terminal ReviewState.
// Process and parse failures surface as a failed state plus an error return;
// they are not propagated as panics and never leave the store in_progress.
func (o *Orchestrator) Run(ctx context.Context, item *model.Item) (*model.ReviewResult, error) {
	id := item.ID()
	start := time.Now()

	ctx, cancel := context.WithCancel(ctx)
	o.registerCancel(id, cancel)
	defer o.unregisterCancel(id)

	o.reviews.SetInProgress(id, model.StageStarting)

	if err := o.checkCancelled(ctx, id); err != nil {
		return nil, err
	}

	o.reviews.UpdateStage(id, model.StageFetchingDiff)
	work := *item
	if err := o.ensureDiffContext(ctx, &work); err != nil {
		if errors.Is(err, context.Canceled) {
			o.reviews.SetCancelled(id)
			return nil, ErrCancelled
		}
		o.reviews.SetFailed(id, err.Error())
		return nil, err
	}

	if err := o.checkCancelled(ctx, id); err != nil {
		return nil, err
	}

	promptText, err := o.prompts.Build(&work)
	if err != nil {
		o.reviews.SetFailed(id, err.Error())
		return nil, err
	}

	o.reviews.UpdateStage(id, model.StageAnalyzing)
	out, execErr := o.runner.Execute(ctx, id, promptText, o.agentCfg)
	if execErr != nil {
		if agent.IsCancelled(execErr) {
			o.reviews.SetCancelled(id)
			return nil, ErrCancelled
		}
		o.reviews.SetFailed(id, execErr.Error())
		return nil, execErr
	}

	o.reviews.UpdateStage(id, model.StageGenerating)
	if err := o.checkCancelled(ctx, id); err != nil {
		return nil, err
	}

	o.reviews.UpdateStage(id, model.StageParsing)
	extracted := extract.Review(out.Stdout)
	annotations := BuildAnnotations(extracted, work.Files)

	o.reviews.SetCompleted(id, extracted)
	o.reviews.SetInlineAnnotations(id, annotations)

	log.Info("review completed",
		"id", id,
		"verdict", extracted.Verdict,
		"issues", len(extracted.Issues),
		"duration", time.Since(start).Round(time.Millisecond))

	return &model.ReviewResult{
		ItemID:      id,
		Review:      extracted,
		RawOutput:   out.Stdout,
		Annotations: annotations,
		Duration:    time.Since(start),
	}, nil
}

// Cancel aborts the in-flight review for id, signalling both the run context
// and the OS-level process. Reports whether a review was actually cancelled.
func (o *Orchestrator) Cancel(id string) bool {
	o.mu.Lock()
	cancel, ok := o.cancels[id]
	o.mu.Unlock()

	if ok {
		cancel()
	}
	aborted := o.runner.Abort(id)
	cancelled := o.reviews.SetCancelled(id)

	return ok || aborted || cancelled
}

// ensureDiffContext fetches the diff and per-file patches when the item does
// not already carry them. Both fetches run concurrently.
func (o *Orchestrator) ensureDiffContext(ctx context.Context, item *model.Item) error {
	if item.Diff != "" && len(item.Files) > 0 {
		return nil
	}
	if o.fetcher == nil {
		return fmt.Errorf("item %s has no diff and no fetcher is configured", item.ID())
	}

	g, gctx := errgroup.WithContext(ctx)

	if item.Diff == "" {
		g.Go(func() error {
			diff, err := o.fetcher.FetchDiff(gctx, item.Owner, item.Repo, item.Number)
			if err != nil {
				return fmt.Errorf("fetch diff: %w", err)
			}
			item.Diff = diff
			return nil
		})
	}
	if len(item.Files) == 0 {
		g.Go(func() error {
			files, err := o.fetcher.FetchFiles(gctx, item.Owner, item.Repo, item.Number)
			if err != nil {
				return fmt.Errorf("fetch files: %w", err)
			}
			item.Files = files
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}

	// Fall back to splitting the repo-level diff when the platform did not
	// return per-file patches.
	if len(item.Files) == 0 && item.Diff != "" {
		files, err := diffmap.SplitDiff(item.Diff)
		if err != nil {
			log.Debug("could not split diff into files", "id", item.ID(), "error", err)
			return nil
		}
		item.Files = files
	}
	return nil
}

// checkCancelled turns a cancelled context into the distinguished outcome.
func (o *Orchestrator) checkCancelled(ctx context.Context, id string) error {
	select {
	case <-ctx.Done():
		o.reviews.SetCancelled(id)
		return ErrCancelled
	default:
		return nil
	}
}

func (o *Orchestrator) registerCancel(id string, cancel context.CancelFunc) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.cancels[id] = cancel
}

func (o *Orchestrator) unregisterCancel(id string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.cancels, id)
}

// BuildAnnotations derives one inline annotation per issue that names a file,
// validating the reported line against that file's patch. Issues whose file
// has no patch in the change set are invalid annotations. Valid annotations
// are pre-selected for publication; invalid ones are not.
func BuildAnnotations(r *model.Review, files []model.FileChange) []model.InlineAnnotation {
	patches := make(map[string]string, len(files))
	for _, f := range files {
		patches[f.Filename] = f.Patch
	}

	var annotations []model.InlineAnnotation
	for i, issue := range r.Issues {
		if issue.File == "" {
			continue
		}

		ann := model.InlineAnnotation{
			Issue:         issue,
			File:          issue.File,
			RequestedLine: issue.Line,
			ActualLine:    issue.Line,
			IssueIndex:    i,
		}

		patch, ok := patches[issue.File]
		if !ok || patch == "" {
			ann.Warning = "file " + issue.File + " is not part of the change set"
		} else {
			v := diffmap.ValidateLine(issue.Line, patch)
			ann.IsValid = v.IsValid
			ann.ActualLine = v.ActualLine
			ann.Warning = v.Warning
		}
		ann.Selected = ann.IsValid

		annotations = append(annotations, ann)
	}
	return annotations
}
