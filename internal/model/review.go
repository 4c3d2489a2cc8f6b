package model

import "time"

// ReviewStatus is the lifecycle status of one AI review attempt.
type ReviewStatus string

const (
	ReviewPending    ReviewStatus = "pending"
	ReviewInProgress ReviewStatus = "in_progress"
	ReviewCompleted  ReviewStatus = "completed"
	ReviewFailed     ReviewStatus = "failed"
	ReviewCancelled  ReviewStatus = "cancelled"
)

// Stage is a named phase within an in-progress review. Stages form an
// ordered sequence; each maps to a monotonically increasing progress value.
type Stage string

const (
	StageStarting     Stage = "starting"
	StageFetchingDiff Stage = "fetching_diff"
	StageAnalyzing    Stage = "analyzing"
	StageGenerating   Stage = "generating"
	StageParsing      Stage = "parsing"
)

// StageProgress maps each stage to its progress percentage.
var StageProgress = map[Stage]int{
	StageStarting:     5,
	StageFetchingDiff: 15,
	StageAnalyzing:    40,
	StageGenerating:   75,
	StageParsing:      90,
}

// Verdict is the overall recommendation of a review.
type Verdict string

const (
	VerdictApprove        Verdict = "approve"
	VerdictRequestChanges Verdict = "request_changes"
	VerdictComment        Verdict = "comment"
)

// Severity classifies an individual issue.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityWarning  Severity = "warning"
	SeverityInfo     Severity = "info"
)

// Issue is a single finding reported by the analysis tool.
type Issue struct {
	Severity   Severity `json:"severity"`
	File       string   `json:"file,omitempty"`
	Line       int      `json:"line,omitempty"`
	EndLine    int      `json:"endLine,omitempty"`
	Message    string   `json:"message"`
	Suggestion string   `json:"suggestion,omitempty"`
}

// Review is the normalized structured output of one analysis run.
type Review struct {
	Summary     string   `json:"summary"`
	Verdict     Verdict  `json:"verdict"`
	Issues      []Issue  `json:"issues"`
	Suggestions []string `json:"suggestions"`
	Positives   []string `json:"positives,omitempty"`
}

// InlineAnnotation is an issue prepared for publication on a specific diff
// line. Derived from a completed review; only Selected is mutated afterwards.
type InlineAnnotation struct {
	Issue         Issue  `json:"issue"`
	File          string `json:"file"`
	RequestedLine int    `json:"requestedLine"`
	ActualLine    int    `json:"actualLine"`
	IsValid       bool   `json:"isValid"`
	Warning       string `json:"warning,omitempty"`
	Selected      bool   `json:"selected"`
	IssueIndex    int    `json:"issueIndex"`
}

// ReviewState is the engine's record of one review attempt for one item.
type ReviewState struct {
	ItemID            string             `json:"itemId"`
	Status            ReviewStatus       `json:"status"`
	Stage             Stage              `json:"stage,omitempty"`
	Progress          int                `json:"progress"`
	Result            *Review            `json:"result,omitempty"`
	Error             string             `json:"error,omitempty"`
	StartedAt         *time.Time         `json:"startedAt,omitempty"`
	CompletedAt       *time.Time         `json:"completedAt,omitempty"`
	InlineAnnotations []InlineAnnotation `json:"inlineAnnotations,omitempty"`
}

// ReviewResult is what the orchestrator hands back to its caller after a
// run: the normalized review plus the raw tool output and timing.
type ReviewResult struct {
	ItemID      string             `json:"itemId"`
	Review      *Review            `json:"review"`
	RawOutput   string             `json:"rawOutput"`
	Annotations []InlineAnnotation `json:"annotations"`
	Duration    time.Duration      `json:"duration"`
}
