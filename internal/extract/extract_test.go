package extract

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/reva-dev/reva/internal/model"
)

func TestReviewFromTaggedFence(t *testing.T) {
	raw := "Here is my review:\n```json\n{\"summary\":\"looks fine\",\"verdict\":\"approve\",\"issues\":[]}\n```\nthanks"

	r := Review(raw)

	if r.Summary != "looks fine" {
		t.Errorf("Summary = %q", r.Summary)
	}
	if r.Verdict != model.VerdictApprove {
		t.Errorf("Verdict = %q, want approve", r.Verdict)
	}
}

func TestReviewFromUntaggedFence(t *testing.T) {
	raw := "```\n{\"summary\":\"ok\",\"verdict\":\"comment\"}\n```"

	r := Review(raw)
	if r.Summary != "ok" {
		t.Errorf("Summary = %q", r.Summary)
	}
}

func TestReviewWholeDocument(t *testing.T) {
	raw := `{"summary":"bare object","verdict":"REQUEST_CHANGES","issues":[{"severity":"CRITICAL","file":"a.go","line":3,"message":"bad"}]}`

	r := Review(raw)

	if r.Verdict != model.VerdictRequestChanges {
		t.Errorf("Verdict = %q", r.Verdict)
	}
	if len(r.Issues) != 1 {
		t.Fatalf("Issues = %d, want 1", len(r.Issues))
	}
	if r.Issues[0].Severity != model.SeverityCritical {
		t.Errorf("Severity = %q", r.Issues[0].Severity)
	}
	if r.Issues[0].Line != 3 || r.Issues[0].File != "a.go" {
		t.Errorf("issue = %+v", r.Issues[0])
	}
}

func TestReviewSummaryAnchor(t *testing.T) {
	raw := "The model said something first.\n{\"summary\":\"anchored\",\"verdict\":\"comment\",\"issues\":[]}"

	r := Review(raw)
	if r.Summary != "anchored" {
		t.Errorf("Summary = %q", r.Summary)
	}
}

func TestReviewBraceScan(t *testing.T) {
	raw := `prefix text {"verdict":"approve","summary":"scanned {with \"nested\" braces}","issues":[]} trailing`

	r := Review(raw)
	if r.Summary != `scanned {with "nested" braces}` {
		t.Errorf("Summary = %q", r.Summary)
	}
	if r.Verdict != model.VerdictApprove {
		t.Errorf("Verdict = %q", r.Verdict)
	}
}

func TestReviewFallbackOnGarbage(t *testing.T) {
	r := Review("not valid json")

	if r.Verdict != model.VerdictComment {
		t.Errorf("Verdict = %q, want comment", r.Verdict)
	}
	if len(r.Issues) != 0 {
		t.Errorf("Issues = %d, want 0", len(r.Issues))
	}
	if r.Summary != DefaultSummary {
		t.Errorf("Summary = %q", r.Summary)
	}
	if len(r.Suggestions) != 1 || !strings.Contains(r.Suggestions[0], "not valid json") {
		t.Errorf("Suggestions = %v", r.Suggestions)
	}
}

func TestReviewFallbackTruncatesPreview(t *testing.T) {
	raw := strings.Repeat("x", 2000)
	r := Review(raw)

	if len(r.Suggestions) != 1 {
		t.Fatalf("Suggestions = %v", r.Suggestions)
	}
	if got := len(r.Suggestions[0]); got > rawPreviewLimit+100 {
		t.Errorf("preview length = %d, want <= %d plus prefix", got, rawPreviewLimit)
	}
}

func TestReviewFallbackPreviewKeepsValidUTF8(t *testing.T) {
	// The 500th byte lands inside a two-byte rune so a naive byte cut would
	// leave invalid UTF-8 at the end of the preview.
	raw := strings.Repeat("a", rawPreviewLimit-1) + strings.Repeat("é", 20)
	r := Review(raw)

	if len(r.Suggestions) != 1 {
		t.Fatalf("Suggestions = %v", r.Suggestions)
	}
	if !utf8.ValidString(r.Suggestions[0]) {
		t.Errorf("preview contains invalid UTF-8: %q", r.Suggestions[0])
	}
}

func TestReviewVerdictCaseInsensitive(t *testing.T) {
	r := Review(`{"summary":"s","verdict":"APPROVE"}`)
	if r.Verdict != model.VerdictApprove {
		t.Errorf("Verdict = %q, want approve", r.Verdict)
	}
}

func TestReviewNormalizationCoercions(t *testing.T) {
	raw := `{"verdict":"nonsense","issues":"oops","suggestions":[{"k":1},"plain"]}`

	r := Review(raw)

	if r.Summary != DefaultSummary {
		t.Errorf("missing summary should default, got %q", r.Summary)
	}
	if r.Verdict != model.VerdictComment {
		t.Errorf("Verdict = %q, want comment", r.Verdict)
	}
	if len(r.Issues) != 0 {
		t.Errorf("non-array issues should coerce to empty, got %v", r.Issues)
	}
	if len(r.Suggestions) != 2 {
		t.Fatalf("Suggestions = %v", r.Suggestions)
	}
	if r.Suggestions[0] != `{"k":1}` {
		t.Errorf("coerced suggestion = %q", r.Suggestions[0])
	}
}

func TestReviewNonObjectIssueBecomesSuggestion(t *testing.T) {
	r := Review(`{"summary":"s","issues":["loose finding"]}`)

	if len(r.Issues) != 0 {
		t.Errorf("Issues = %v, want none", r.Issues)
	}
	if len(r.Suggestions) != 1 || r.Suggestions[0] != "loose finding" {
		t.Errorf("Suggestions = %v", r.Suggestions)
	}
}

func TestCollectEventText(t *testing.T) {
	raw := `{"type":"system","subtype":"init"}
{"type":"assistant","message":{"content":[{"type":"text","text":"part one "}]}}
{"type":"assistant","message":{"content":[{"type":"text","text":"part two"}]}}
`

	got := CollectEventText(raw)
	if got != "part one part two" {
		t.Errorf("CollectEventText = %q", got)
	}
}

func TestCollectEventTextResultField(t *testing.T) {
	raw := `{"type":"result","result":"{\"summary\":\"from result\",\"verdict\":\"approve\"}"}`

	r := Review(raw)
	if r.Summary != "from result" {
		t.Errorf("Summary = %q", r.Summary)
	}
}

func TestCollectEventTextPassThrough(t *testing.T) {
	raw := "plain prose, not events"
	if got := CollectEventText(raw); got != raw {
		t.Errorf("CollectEventText = %q, want input unchanged", got)
	}
}

func TestReviewFromEventStreamWithFence(t *testing.T) {
	raw := `{"type":"assistant","message":{"content":[{"type":"text","text":"Done.\n` + "```json\\n{\\\"summary\\\":\\\"event review\\\",\\\"verdict\\\":\\\"approve\\\"}\\n```" + `"}]}}`

	r := Review(raw)
	if r.Summary != "event review" {
		t.Errorf("Summary = %q", r.Summary)
	}
}
