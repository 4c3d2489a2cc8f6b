// Package extract turns raw analysis-tool output into a normalized review.
// The tool may emit prose, fenced code blocks, or newline-delimited event
// objects; extraction degrades gracefully and never fails outright.
package extract

import (
	"bufio"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/reva-dev/reva/internal/model"
)

// DefaultSummary is used when the tool reports no summary of its own.
const DefaultSummary = "Automated review completed."

// rawPreviewLimit bounds how much raw output the fallback review carries.
const rawPreviewLimit = 500

// strategy attempts to locate a JSON document in text. Strategies are tried
// in order; later ones are deliberately more permissive fallbacks, so the
// ordering is load-bearing.
type strategy func(text string) (string, bool)

var strategies = []strategy{
	taggedFence,
	anyFence,
	wholeDocument,
	summaryAnchor,
	braceScan,
}

// Review extracts a normalized review from raw tool output. Unparseable
// output yields a fallback review rather than an error.
func Review(raw string) *model.Review {
	doc := CollectEventText(raw)

	for _, s := range strategies {
		candidate, ok := s(doc)
		if !ok {
			continue
		}
		var parsed map[string]any
		if err := json.Unmarshal([]byte(candidate), &parsed); err != nil {
			continue
		}
		return normalize(parsed)
	}

	return fallback(doc)
}

// CollectEventText checks whether raw is a sequence of newline-delimited JSON
// events and, if so, concatenates their text payloads in order to form the
// effective document. Non-event input is returned unchanged.
func CollectEventText(raw string) string {
	var parts []string
	sawEvent := false

	scanner := bufio.NewScanner(strings.NewReader(raw))
	scanner.Buffer(make([]byte, 0, 64*1024), 10*1024*1024)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if !strings.HasPrefix(line, "{") {
			return raw
		}
		var event struct {
			Type    string `json:"type"`
			Text    string `json:"text"`
			Result  string `json:"result"`
			Message struct {
				Content json.RawMessage `json:"content"`
			} `json:"message"`
		}
		if err := json.Unmarshal([]byte(line), &event); err != nil {
			return raw
		}
		sawEvent = true

		if event.Text != "" {
			parts = append(parts, event.Text)
			continue
		}
		if event.Result != "" {
			parts = append(parts, event.Result)
			continue
		}
		parts = append(parts, contentText(event.Message.Content)...)
	}

	if !sawEvent || len(parts) == 0 {
		return raw
	}
	return strings.Join(parts, "")
}

// contentText pulls text fragments from a message content payload, which may
// be a plain string or an array of typed blocks.
func contentText(content json.RawMessage) []string {
	if len(content) == 0 {
		return nil
	}

	var s string
	if err := json.Unmarshal(content, &s); err == nil {
		if s == "" {
			return nil
		}
		return []string{s}
	}

	var blocks []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	}
	if err := json.Unmarshal(content, &blocks); err != nil {
		return nil
	}

	var parts []string
	for _, b := range blocks {
		if b.Type == "text" && b.Text != "" {
			parts = append(parts, b.Text)
		}
	}
	return parts
}

var (
	taggedFenceRe = regexp.MustCompile("(?s)```(?:json|JSON)\\s*\\n(.*?)```")
	anyFenceRe    = regexp.MustCompile("(?s)```[a-zA-Z]*\\s*\\n(.*?)```")
	summaryRe     = regexp.MustCompile(`(?s)\{\s*"summary".*?(?:\z|\n\x60\x60\x60)`)
)

func taggedFence(text string) (string, bool) {
	if m := taggedFenceRe.FindStringSubmatch(text); m != nil {
		return strings.TrimSpace(m[1]), true
	}
	return "", false
}

func anyFence(text string) (string, bool) {
	if m := anyFenceRe.FindStringSubmatch(text); m != nil {
		return strings.TrimSpace(m[1]), true
	}
	return "", false
}

func wholeDocument(text string) (string, bool) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return "", false
	}
	return trimmed, true
}

func summaryAnchor(text string) (string, bool) {
	if m := summaryRe.FindString(text); m != "" {
		return strings.TrimSuffix(strings.TrimSpace(m), "```"), true
	}
	return "", false
}

// braceScan returns the first top-level balanced JSON object in text,
// tracking nesting depth while respecting string literals and escapes.
func braceScan(text string) (string, bool) {
	start := strings.IndexByte(text, '{')
	if start < 0 {
		return "", false
	}

	depth := 0
	inString := false
	escaped := false

	for i := start; i < len(text); i++ {
		c := text[i]
		if escaped {
			escaped = false
			continue
		}
		switch c {
		case '\\':
			if inString {
				escaped = true
			}
		case '"':
			inString = !inString
		case '{':
			if !inString {
				depth++
			}
		case '}':
			if !inString {
				depth--
				if depth == 0 {
					return text[start : i+1], true
				}
			}
		}
	}

	return "", false
}

// fallback builds the degraded review for output no strategy could parse.
func fallback(doc string) *model.Review {
	preview := strings.TrimSpace(doc)
	if len(preview) > rawPreviewLimit {
		// Back up to a rune boundary so the cut never splits a multi-byte
		// character.
		cut := rawPreviewLimit
		for cut > 0 && !utf8.RuneStart(preview[cut]) {
			cut--
		}
		preview = preview[:cut]
	}
	suggestion := "Review output could not be parsed; raw output follows.\n\n" + preview

	return &model.Review{
		Summary:     DefaultSummary,
		Verdict:     model.VerdictComment,
		Issues:      []model.Issue{},
		Suggestions: []string{suggestion},
	}
}

// normalize coerces a parsed object into a well-formed review.
func normalize(obj map[string]any) *model.Review {
	r := &model.Review{
		Summary:     DefaultSummary,
		Verdict:     normalizeVerdict(stringField(obj, "verdict")),
		Issues:      []model.Issue{},
		Suggestions: []string{},
	}

	if s := stringField(obj, "summary"); s != "" {
		r.Summary = s
	}

	if items, ok := obj["issues"].([]any); ok {
		for _, it := range items {
			m, ok := it.(map[string]any)
			if !ok {
				// Non-object entries become plain suggestions.
				r.Suggestions = append(r.Suggestions, stringify(it))
				continue
			}
			issue := model.Issue{
				Severity:   normalizeSeverity(stringField(m, "severity")),
				File:       stringField(m, "file"),
				Line:       intField(m, "line"),
				EndLine:    intField(m, "endLine"),
				Message:    stringField(m, "message"),
				Suggestion: stringField(m, "suggestion"),
			}
			r.Issues = append(r.Issues, issue)
		}
	}

	if items, ok := obj["suggestions"].([]any); ok {
		for _, it := range items {
			if s, ok := it.(string); ok {
				r.Suggestions = append(r.Suggestions, s)
			} else {
				r.Suggestions = append(r.Suggestions, stringify(it))
			}
		}
	}

	if items, ok := obj["positives"].([]any); ok {
		for _, it := range items {
			if s, ok := it.(string); ok {
				r.Positives = append(r.Positives, s)
			}
		}
	}

	return r
}

// normalizeVerdict matches verdicts case-insensitively by substring.
func normalizeVerdict(v string) model.Verdict {
	lower := strings.ToLower(v)
	switch {
	case strings.Contains(lower, "approve"):
		return model.VerdictApprove
	case strings.Contains(lower, "request"), strings.Contains(lower, "change"):
		return model.VerdictRequestChanges
	default:
		return model.VerdictComment
	}
}

// normalizeSeverity matches severities case-insensitively by substring.
func normalizeSeverity(s string) model.Severity {
	lower := strings.ToLower(s)
	switch {
	case strings.Contains(lower, "critical"), strings.Contains(lower, "error"):
		return model.SeverityCritical
	case strings.Contains(lower, "warn"):
		return model.SeverityWarning
	default:
		return model.SeverityInfo
	}
}

func stringField(m map[string]any, key string) string {
	if s, ok := m[key].(string); ok {
		return s
	}
	return ""
}

func intField(m map[string]any, key string) int {
	switch v := m[key].(type) {
	case float64:
		return int(v)
	case string:
		var n int
		if _, err := fmt.Sscanf(v, "%d", &n); err == nil {
			return n
		}
	}
	return 0
}

func stringify(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(b)
}
