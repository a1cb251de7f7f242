package models

import (
	"fmt"
	"hash/fnv"
	"strings"
)

// Severity classifies how serious a finding is. Ordering matters:
// low < medium < high, used by the threshold filter and report sorting.
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// severityRank maps severities to their ordinal for comparisons.
var severityRank = map[Severity]int{
	SeverityLow:    1,
	SeverityMedium: 2,
	SeverityHigh:   3,
}

// Rank returns the ordinal of the severity (low=1, medium=2, high=3).
// Unknown severities rank below low so they never survive a threshold.
func (s Severity) Rank() int {
	return severityRank[s]
}

// Valid reports whether the severity is one of low/medium/high.
func (s Severity) Valid() bool {
	_, ok := severityRank[s]
	return ok
}

// ParseSeverity normalizes a raw severity string from a model response.
// Unrecognized values map to medium so a sloppy response never silently
// drops a finding or inflates it to high.
func ParseSeverity(raw string) Severity {
	switch Severity(strings.ToLower(strings.TrimSpace(raw))) {
	case SeverityLow:
		return SeverityLow
	case SeverityHigh:
		return SeverityHigh
	default:
		return SeverityMedium
	}
}

// Category groups findings by the kind of problem they describe.
type Category string

const (
	CategorySecurity    Category = "security"
	CategoryPerformance Category = "performance"
	CategoryQuality     Category = "quality"
	CategoryLogic       Category = "logic"
	CategoryDocs        Category = "docs"
)

// ParseCategory normalizes a raw category string from a model response.
// Aliases the models tend to emit ("style", "documentation", "bug") are
// folded into the canonical set; anything else becomes quality.
func ParseCategory(raw string) Category {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "security":
		return CategorySecurity
	case "performance", "perf":
		return CategoryPerformance
	case "logic", "bug", "correctness":
		return CategoryLogic
	case "docs", "documentation", "doc":
		return CategoryDocs
	default:
		return CategoryQuality
	}
}

// ReviewRequest identifies one merge request to review. It is the input
// to a pipeline run, built either from a webhook payload or CLI flags.
type ReviewRequest struct {
	ProjectID string `json:"project_id"` // numeric ID or URL-encoded path
	MRIID     int    `json:"mr_iid"`     // project-scoped merge request IID
	HeadSHA   string `json:"head_sha"`
	Author    string `json:"author,omitempty"`
}

// Key returns the identity used for duplicate-run suppression.
func (r ReviewRequest) Key() string {
	return fmt.Sprintf("%s!%d", r.ProjectID, r.MRIID)
}

// CandidateFile is a changed file that passed selection and is ready for
// review. Content may be truncated; FetchErr marks files whose content
// could not be retrieved (they still count as failed, not fatal).
type CandidateFile struct {
	Path      string `json:"path"`
	Language  string `json:"language"`
	Diff      string `json:"diff,omitempty"`
	Content   string `json:"content,omitempty"`
	Size      int    `json:"size"`
	Truncated bool   `json:"truncated"`
	FetchErr  error  `json:"-"`
}

// Finding is a single review comment candidate produced by the AI
// backend or the secret scanner.
type Finding struct {
	File       string   `json:"file"`
	Line       int      `json:"line"` // 0 means file-level
	Severity   Severity `json:"severity"`
	Category   Category `json:"category"`
	Message    string   `json:"message"`
	Suggestion string   `json:"suggestion,omitempty"`
	// Partial marks findings produced from truncated file content, so
	// readers know line numbers past the cut may be unreliable.
	Partial bool `json:"partial,omitempty"`
}

// Fingerprint returns the stable identity of a finding: FNV-1a over
// (file, line, category, normalized message). Two findings with the
// same fingerprint are duplicates regardless of suggestion text.
func (f Finding) Fingerprint() string {
	h := fnv.New64a()
	fmt.Fprintf(h, "%s\x00%d\x00%s\x00%s", f.File, f.Line, f.Category, NormalizeMessage(f.Message))
	return fmt.Sprintf("%016x", h.Sum64())
}

// NormalizeMessage lowercases, trims, and collapses internal whitespace
// so cosmetic variations of the same message dedup together.
func NormalizeMessage(msg string) string {
	return strings.Join(strings.Fields(strings.ToLower(msg)), " ")
}

// RunStatus tracks a pipeline run through its lifecycle.
type RunStatus string

const (
	StatusReceived   RunStatus = "received"
	StatusSelecting  RunStatus = "selecting"
	StatusReviewing  RunStatus = "reviewing"
	StatusFiltering  RunStatus = "filtering"
	StatusPublishing RunStatus = "publishing"
	StatusReporting  RunStatus = "reporting"
	StatusDone       RunStatus = "done"
	StatusFailed     RunStatus = "failed"
)

// RunSummary is the terminal accounting for one pipeline run. It feeds
// the status endpoint, the report generator, and the CLI exit message.
type RunSummary struct {
	RunID           string        `json:"run_id"`
	Request         ReviewRequest `json:"request"`
	Status          RunStatus     `json:"status"`
	FilesSelected   int           `json:"files_selected"`
	FilesReviewed   int           `json:"files_reviewed"`
	FilesFailed     int           `json:"files_failed"`
	ParseFailures   int           `json:"parse_failures,omitempty"`
	FindingsTotal   int           `json:"findings_total"`
	FindingsKept    int           `json:"findings_kept"`
	CommentsPosted  int           `json:"comments_posted"`
	CommentsSkipped int           `json:"comments_skipped"`
	CommentsFailed  int           `json:"comments_failed"`
	Error           string        `json:"error,omitempty"`
	StartedAt       string        `json:"started_at,omitempty"`
	FinishedAt      string        `json:"finished_at,omitempty"`
}
