// Package output renders reviews for terminals and for publication as
// markdown review bodies.
package output

import (
	"fmt"
	"strings"

	"github.com/reva-dev/reva/internal/model"
)

// severityLabels maps severities to the markdown badge used in comments.
var severityLabels = map[model.Severity]string{
	model.SeverityCritical: "🔴 Critical",
	model.SeverityWarning:  "🟡 Warning",
	model.SeverityInfo:     "🔵 Info",
}

// IssueMarkdown renders a single issue as an inline comment body.
func IssueMarkdown(issue *model.Issue) string {
	var b strings.Builder
	fmt.Fprintf(&b, "**%s**: %s", severityLabel(issue.Severity), issue.Message)
	if issue.Suggestion != "" {
		fmt.Fprintf(&b, "\n\n**Suggestion:** %s", issue.Suggestion)
	}
	return b.String()
}

// ReviewMarkdown renders the review body posted alongside inline comments.
// Issues that could not be anchored to a diff line are listed here so
// nothing the tool reported is silently dropped.
func ReviewMarkdown(review *model.Review, annotations []model.InlineAnnotation) string {
	var b strings.Builder

	b.WriteString(review.Summary)
	b.WriteString("\n")

	if unanchored := unanchoredIssues(review, annotations); len(unanchored) > 0 {
		b.WriteString("\n### Additional findings\n\n")
		for _, issue := range unanchored {
			fmt.Fprintf(&b, "- **%s**", severityLabel(issue.Severity))
			if issue.File != "" {
				fmt.Fprintf(&b, " `%s`", issue.File)
				if issue.Line > 0 {
					fmt.Fprintf(&b, ":%d", issue.Line)
				}
			}
			fmt.Fprintf(&b, ": %s\n", issue.Message)
			if issue.Suggestion != "" {
				fmt.Fprintf(&b, "  - Suggestion: %s\n", issue.Suggestion)
			}
		}
	}

	if len(review.Suggestions) > 0 {
		b.WriteString("\n### Suggestions\n\n")
		for _, s := range review.Suggestions {
			fmt.Fprintf(&b, "- %s\n", s)
		}
	}

	if len(review.Positives) > 0 {
		b.WriteString("\n### What looks good\n\n")
		for _, p := range review.Positives {
			fmt.Fprintf(&b, "- %s\n", p)
		}
	}

	return b.String()
}

// unanchoredIssues returns the issues that will not appear as inline
// comments: file-less issues plus annotations that are invalid or deselected.
func unanchoredIssues(review *model.Review, annotations []model.InlineAnnotation) []model.Issue {
	inline := make(map[int]bool, len(annotations))
	for i := range annotations {
		if annotations[i].Selected && annotations[i].IsValid {
			inline[annotations[i].IssueIndex] = true
		}
	}

	var out []model.Issue
	for i, issue := range review.Issues {
		if !inline[i] {
			out = append(out, issue)
		}
	}
	return out
}

func severityLabel(s model.Severity) string {
	if label, ok := severityLabels[s]; ok {
		return label
	}
	return string(s)
}
