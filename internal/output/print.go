package output

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"github.com/reva-dev/reva/internal/model"
)

var (
	headerColor   = color.New(color.FgCyan, color.Bold)
	criticalColor = color.New(color.FgRed, color.Bold)
	warningColor  = color.New(color.FgYellow)
	infoColor     = color.New(color.FgBlue)
	goodColor     = color.New(color.FgGreen)
	dimColor      = color.New(color.Faint)
)

// verdictText maps verdicts to their terminal rendering.
func verdictText(v model.Verdict) string {
	switch v {
	case model.VerdictApprove:
		return goodColor.Sprint("✓ approve")
	case model.VerdictRequestChanges:
		return criticalColor.Sprint("✗ request changes")
	default:
		return infoColor.Sprint("◆ comment")
	}
}

func severityColor(s model.Severity) *color.Color {
	switch s {
	case model.SeverityCritical:
		return criticalColor
	case model.SeverityWarning:
		return warningColor
	default:
		return infoColor
	}
}

// PrintReview writes a completed review to w in a human-readable form.
func PrintReview(w io.Writer, item *model.Item, state *model.ReviewState) {
	headerColor.Fprintf(w, "%s: %s\n", item.ID(), item.Title)

	if state.Result == nil {
		dimColor.Fprintf(w, "  no review result (status=%s)\n", state.Status)
		if state.Error != "" {
			fmt.Fprintf(w, "  %s\n", state.Error)
		}
		return
	}

	review := state.Result
	fmt.Fprintf(w, "Verdict: %s\n\n", verdictText(review.Verdict))
	fmt.Fprintln(w, wrapIndent(review.Summary, ""))

	if len(review.Issues) > 0 {
		headerColor.Fprintf(w, "\nIssues (%d)\n", len(review.Issues))
		for i, issue := range review.Issues {
			c := severityColor(issue.Severity)
			loc := ""
			if issue.File != "" {
				loc = " " + issue.File
				if issue.Line > 0 {
					loc = fmt.Sprintf("%s:%d", loc, issue.Line)
				}
			}
			fmt.Fprintf(w, "  %d. %s%s\n", i+1, c.Sprintf("[%s]", issue.Severity), dimColor.Sprint(loc))
			fmt.Fprintf(w, "     %s\n", issue.Message)
			if issue.Suggestion != "" {
				dimColor.Fprintf(w, "     suggestion: %s\n", issue.Suggestion)
			}
			if warn := annotationWarning(state.InlineAnnotations, i); warn != "" {
				warningColor.Fprintf(w, "     ⚠ %s\n", warn)
			}
		}
	}

	if len(review.Suggestions) > 0 {
		headerColor.Fprintf(w, "\nSuggestions\n")
		for _, s := range review.Suggestions {
			fmt.Fprintf(w, "  - %s\n", s)
		}
	}

	if len(review.Positives) > 0 {
		goodColor.Fprintf(w, "\nLooks good\n")
		for _, p := range review.Positives {
			fmt.Fprintf(w, "  + %s\n", p)
		}
	}
}

// PrintItems writes the item list in a compact table-like form.
func PrintItems(w io.Writer, items []model.ItemState) {
	if len(items) == 0 {
		dimColor.Fprintln(w, "no open items")
		return
	}

	for i := range items {
		st := &items[i]
		marker := "  "
		if st.NeedsReviewerAttention {
			marker = warningColor.Sprint("! ")
		}
		fmt.Fprintf(w, "%s%s  %s %s\n",
			marker,
			headerColor.Sprint(st.Item.ID()),
			st.Item.Title,
			dimColor.Sprintf("(%s, @%s)", st.Status, st.Item.Author))
	}
}

// annotationWarning returns the mapping warning for the issue at index, if any.
func annotationWarning(annotations []model.InlineAnnotation, issueIndex int) string {
	for i := range annotations {
		if annotations[i].IssueIndex == issueIndex && !annotations[i].IsValid {
			return annotations[i].Warning
		}
	}
	return ""
}

// wrapIndent prefixes every line of s with indent.
func wrapIndent(s, indent string) string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	for i, line := range lines {
		lines[i] = indent + line
	}
	return strings.Join(lines, "\n")
}
