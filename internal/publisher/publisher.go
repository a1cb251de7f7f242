// Package publisher posts findings to the merge request. Every comment
// carries a stable marker derived from the finding's fingerprint, and a
// pre-publish scan of existing notes makes re-running a review a no-op
// for anything already posted.
package publisher

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/mergelens/internal/gitlab"
	"github.com/mergelens/internal/retry"
	"github.com/mergelens/pkg/models"
)

// Host is the slice of the GitLab client publishing needs.
type Host interface {
	ListMRNotes(ctx context.Context, projectID string, mrIID int) ([]gitlab.Note, error)
	CreateMRComment(ctx context.Context, projectID string, mrIID int, body string) error
	CreateLineComment(ctx context.Context, projectID string, mrIID int, filePath string, line int, body string) error
}

// Result is the per-run publishing tally. Failures are absorbed: a
// finding that cannot be posted is counted, logged, and left behind.
type Result struct {
	Posted  int
	Skipped int
	Failed  int
}

const (
	markerPrefix = "<!-- mergelens:finding:"
	markerSuffix = " -->"
)

// Marker returns the hidden tag embedded in every published comment.
func Marker(fingerprint string) string {
	return markerPrefix + fingerprint + markerSuffix
}

// Publisher posts findings with retries and duplicate suppression.
type Publisher struct {
	host   Host
	policy retry.Policy
}

func New(host Host, policy retry.Policy) *Publisher {
	return &Publisher{host: host, policy: policy}
}

// Publish posts every finding not already present on the MR. Findings
// are posted in the order given; one failed post never blocks the rest.
func (p *Publisher) Publish(ctx context.Context, logger zerolog.Logger, req models.ReviewRequest, findings []models.Finding) Result {
	existing := p.existingFingerprints(ctx, logger, req)

	var result Result
	for _, f := range findings {
		if ctx.Err() != nil {
			result.Failed++
			continue
		}

		fp := f.Fingerprint()
		if existing[fp] {
			result.Skipped++
			continue
		}

		if err := p.post(ctx, logger, req, f, fp); err != nil {
			result.Failed++
			logger.Error().Str("file", f.File).Int("line", f.Line).Err(err).Msg("could not publish finding")
			continue
		}
		existing[fp] = true
		result.Posted++
	}

	logger.Info().
		Int("posted", result.Posted).
		Int("skipped", result.Skipped).
		Int("failed", result.Failed).
		Msg("publishing finished")
	return result
}

// existingFingerprints scans the MR's notes for markers. A failed scan
// degrades to an empty set: publishing proceeds and the markers still
// protect the next run.
func (p *Publisher) existingFingerprints(ctx context.Context, logger zerolog.Logger, req models.ReviewRequest) map[string]bool {
	existing := make(map[string]bool)

	var notes []gitlab.Note
	err := p.policy.Do(ctx, logger, "list_notes", func() error {
		var err error
		notes, err = p.host.ListMRNotes(ctx, req.ProjectID, req.MRIID)
		return err
	})
	if err != nil {
		logger.Warn().Err(err).Msg("could not scan existing notes, duplicate comments are possible")
		return existing
	}

	for _, note := range notes {
		for _, fp := range extractMarkers(note.Body) {
			existing[fp] = true
		}
	}
	return existing
}

func (p *Publisher) post(ctx context.Context, logger zerolog.Logger, req models.ReviewRequest, f models.Finding, fingerprint string) error {
	body := Render(f) + "\n\n" + Marker(fingerprint)

	if f.Line > 0 {
		err := p.policy.Do(ctx, logger, "line_comment", func() error {
			return p.host.CreateLineComment(ctx, req.ProjectID, req.MRIID, f.File, f.Line, body)
		})
		if err == nil {
			return nil
		}
		// Position rejections happen when the line is outside the diff;
		// degrade to a general note rather than dropping the finding.
		logger.Debug().Str("file", f.File).Int("line", f.Line).Err(err).Msg("line comment rejected, posting general note")
	}

	return p.policy.Do(ctx, logger, "mr_comment", func() error {
		return p.host.CreateMRComment(ctx, req.ProjectID, req.MRIID, body)
	})
}

// Render formats a finding as a GitLab markdown comment.
func Render(f models.Finding) string {
	var b strings.Builder

	location := f.File
	if f.Line > 0 {
		location = fmt.Sprintf("%s:%d", f.File, f.Line)
	}
	fmt.Fprintf(&b, "**[%s] %s** `%s`\n\n%s", f.Severity, f.Category, location, f.Message)

	if f.Suggestion != "" {
		fmt.Fprintf(&b, "\n\n**Suggestion:** %s", f.Suggestion)
	}
	if f.Partial {
		b.WriteString("\n\n_This file was reviewed from truncated content; line references may be approximate._")
	}
	return b.String()
}

// extractMarkers returns every fingerprint tagged in a note body.
func extractMarkers(body string) []string {
	var markers []string
	for {
		start := strings.Index(body, markerPrefix)
		if start == -1 {
			return markers
		}
		rest := body[start+len(markerPrefix):]
		end := strings.Index(rest, markerSuffix)
		if end == -1 {
			return markers
		}
		markers = append(markers, rest[:end])
		body = rest[end+len(markerSuffix):]
	}
}
