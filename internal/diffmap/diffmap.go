// Package diffmap classifies unified-diff lines against new-file numbering
// and validates requested comment positions against a file's patch.
package diffmap

import (
	"regexp"
	"strconv"
	"strings"
)

// LineKind classifies one line of a unified-diff patch.
type LineKind string

const (
	KindHunk    LineKind = "hunk"
	KindAdd     LineKind = "add"
	KindDelete  LineKind = "delete"
	KindContext LineKind = "context"
)

// Line is one classified patch line. Number uses new-file numbering: for
// hunk headers it is the +c start value, for delete lines it is the position
// the deletion sits at in the post-change file.
type Line struct {
	Number  int
	Kind    LineKind
	Content string
}

var hunkHeader = regexp.MustCompile(`^@@ -\d+(?:,\d+)? \+(\d+)(?:,\d+)? @@`)

// Parse walks a single-file patch and returns its lines in order with
// new-file line numbers. File headers (---, +++) and "\ No newline" markers
// are skipped. Add and context lines advance the counter; delete lines do not.
func Parse(patch string) []Line {
	var out []Line
	newLine := 0
	seenHunk := false

	for _, raw := range strings.Split(strings.TrimSuffix(patch, "\n"), "\n") {
		if m := hunkHeader.FindStringSubmatch(raw); m != nil {
			newLine, _ = strconv.Atoi(m[1])
			seenHunk = true
			out = append(out, Line{Number: newLine, Kind: KindHunk, Content: raw})
			continue
		}
		if strings.HasPrefix(raw, "---") || strings.HasPrefix(raw, "+++") || strings.HasPrefix(raw, "\\") {
			continue
		}
		if !seenHunk {
			// preamble before the first hunk (diff --git, index, mode lines)
			continue
		}
		switch {
		case strings.HasPrefix(raw, "+"):
			out = append(out, Line{Number: newLine, Kind: KindAdd, Content: raw[1:]})
			newLine++
		case strings.HasPrefix(raw, "-"):
			out = append(out, Line{Number: newLine, Kind: KindDelete, Content: raw[1:]})
		default:
			content := raw
			if strings.HasPrefix(raw, " ") {
				content = raw[1:]
			}
			out = append(out, Line{Number: newLine, Kind: KindContext, Content: content})
			newLine++
		}
	}

	return out
}

// ValidLineNumbers returns, in patch order, every new-file line number that
// exists in the post-change file and can therefore host an inline comment:
// lines of kind add or context.
func ValidLineNumbers(patch string) []int {
	var nums []int
	for _, l := range Parse(patch) {
		if l.Kind == KindAdd || l.Kind == KindContext {
			nums = append(nums, l.Number)
		}
	}
	return nums
}

// FindClosestLineBefore returns the largest candidate <= line, or false if
// no candidate qualifies.
func FindClosestLineBefore(line int, valid []int) (int, bool) {
	best := 0
	found := false
	for _, v := range valid {
		if v <= line && (!found || v > best) {
			best = v
			found = true
		}
	}
	return best, found
}

// Validation is the outcome of checking a requested line against a patch.
// When IsValid is false, ActualLine still carries the requested line; it is
// not diff-valid and callers must not post it as an inline comment.
type Validation struct {
	IsValid    bool
	ActualLine int
	Warning    string
}

// ValidateLine checks whether line can host an inline comment in patch.
// An exact match is valid as-is. Otherwise the closest earlier valid line is
// substituted with a warning: showing nearby context beats silently dropping
// a finding, at the cost of occasional misattribution. With no earlier
// candidate the result is invalid.
func ValidateLine(line int, patch string) Validation {
	valid := ValidLineNumbers(patch)
	for _, v := range valid {
		if v == line {
			return Validation{IsValid: true, ActualLine: line}
		}
	}
	if closest, ok := FindClosestLineBefore(line, valid); ok {
		return Validation{
			IsValid:    true,
			ActualLine: closest,
			Warning:    "line " + strconv.Itoa(line) + " is not part of the diff; commenting on nearest line " + strconv.Itoa(closest),
		}
	}
	return Validation{
		IsValid:    false,
		ActualLine: line,
		Warning:    "line " + strconv.Itoa(line) + " is not part of the diff and no earlier line qualifies",
	}
}
