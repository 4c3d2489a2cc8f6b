package github

import (
	"context"
	"fmt"

	gh "github.com/google/go-github/v57/github"

	"github.com/reva-dev/reva/internal/log"
	"github.com/reva-dev/reva/internal/model"
	"github.com/reva-dev/reva/internal/output"
)

// verdictEvents maps review verdicts to GitHub review events.
var verdictEvents = map[model.Verdict]string{
	model.VerdictApprove:        "APPROVE",
	model.VerdictRequestChanges: "REQUEST_CHANGES",
	model.VerdictComment:        "COMMENT",
}

// PublishReview posts a completed review to the pull request. Annotations
// that are valid and selected become inline comments anchored to their
// mapped lines; everything else is folded into the review body.
func (c *Client) PublishReview(ctx context.Context, owner, repo string, number int, review *model.Review, annotations []model.InlineAnnotation) error {
	event, ok := verdictEvents[review.Verdict]
	if !ok {
		event = "COMMENT"
	}

	var comments []*gh.DraftReviewComment
	for i := range annotations {
		ann := &annotations[i]
		if !ann.Selected || !ann.IsValid {
			continue
		}
		comments = append(comments, &gh.DraftReviewComment{
			Path: gh.String(ann.File),
			Line: gh.Int(ann.ActualLine),
			Side: gh.String("RIGHT"),
			Body: gh.String(output.IssueMarkdown(&ann.Issue)),
		})
	}

	req := &gh.PullRequestReviewRequest{
		Body:     gh.String(output.ReviewMarkdown(review, annotations)),
		Event:    gh.String(event),
		Comments: comments,
	}

	if _, _, err := c.client.PullRequests.CreateReview(ctx, owner, repo, number, req); err != nil {
		return fmt.Errorf("failed to publish review on %s/%s#%d: %w", owner, repo, number, err)
	}

	log.Debug("published review", "item", fmt.Sprintf("%s/%s#%d", owner, repo, number), "event", event, "inline", len(comments))
	return nil
}
