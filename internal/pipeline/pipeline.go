// Package pipeline drives one review run through its stages:
// received, selecting, reviewing, filtering, publishing, reporting,
// done. Only selection failures kill a run; everything downstream is
// absorbed into per-file or per-comment accounting.
package pipeline

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/mergelens/internal/ai"
	"github.com/mergelens/internal/config"
	"github.com/mergelens/internal/findings"
	"github.com/mergelens/internal/logging"
	"github.com/mergelens/internal/publisher"
	"github.com/mergelens/internal/report"
	"github.com/mergelens/internal/selector"
	"github.com/mergelens/pkg/models"
)

// FileReviewer produces findings for one candidate file.
type FileReviewer interface {
	ReviewFile(ctx context.Context, logger zerolog.Logger, file models.CandidateFile) ([]models.Finding, error)
}

// SecretScanner runs the local secret pass; it never fails a run.
type SecretScanner interface {
	Scan(logger zerolog.Logger, files []models.CandidateFile) []models.Finding
}

// Publisher posts filtered findings to the merge request.
type Publisher interface {
	Publish(ctx context.Context, logger zerolog.Logger, req models.ReviewRequest, fs []models.Finding) publisher.Result
}

// Pipeline holds the per-process collaborators; each Run gets its own
// context, logger, and summary, so one Pipeline serves concurrent runs.
type Pipeline struct {
	host     selector.Host
	reviewer FileReviewer
	scanner  SecretScanner
	pub      Publisher
	settings *config.Settings
}

func New(host selector.Host, reviewer FileReviewer, scanner SecretScanner, pub Publisher, settings *config.Settings) *Pipeline {
	return &Pipeline{host: host, reviewer: reviewer, scanner: scanner, pub: pub, settings: settings}
}

// Run executes one review end to end and always returns a summary.
func (p *Pipeline) Run(ctx context.Context, req models.ReviewRequest) *models.RunSummary {
	return p.RunWithID(ctx, uuid.NewString(), req)
}

// RunWithID is Run with a caller-chosen run ID, for callers that hand
// the ID out before the run finishes.
func (p *Pipeline) RunWithID(ctx context.Context, runID string, req models.ReviewRequest) *models.RunSummary {
	logger := logging.ForRun(runID, req)

	summary := &models.RunSummary{
		RunID:     runID,
		Request:   req,
		Status:    models.StatusReceived,
		StartedAt: time.Now().UTC().Format(time.RFC3339),
	}

	ctx, cancel := context.WithTimeout(ctx, p.settings.Review.RunTimeout)
	defer cancel()

	logger.Info().Msg("review run started")

	summary.Status = models.StatusSelecting
	files, err := selector.Select(ctx, p.host, logger, req, p.settings)
	if err != nil {
		logger.Error().Err(err).Msg("run failed during selection")
		p.finish(logger, summary, models.StatusFailed, err.Error(), nil, nil)
		return summary
	}
	summary.FilesSelected = len(files)

	if len(files) == 0 {
		logger.Info().Msg("no reviewable files, short-circuiting")
		p.finish(logger, summary, models.StatusDone, "", nil, nil)
		return summary
	}

	summary.Status = models.StatusReviewing
	found, reviewedPaths, failed, unparsed := p.reviewAll(ctx, logger, files)
	summary.FilesReviewed = len(reviewedPaths)
	summary.FilesFailed = failed
	summary.ParseFailures = unparsed

	if p.scanner != nil && p.settings.Review.SecurityScan {
		found = append(found, p.scanner.Scan(logger, files)...)
	}
	summary.FindingsTotal = len(found)

	summary.Status = models.StatusFiltering
	kept := findings.Threshold(findings.Dedup(found), p.settings.Threshold())
	findings.SortForReport(kept)
	summary.FindingsKept = len(kept)
	logger.Info().
		Int("total", summary.FindingsTotal).
		Int("kept", summary.FindingsKept).
		Msg("findings filtered")

	if p.settings.Review.PostComments && len(kept) > 0 {
		summary.Status = models.StatusPublishing
		result := p.pub.Publish(ctx, logger, req, kept)
		summary.CommentsPosted = result.Posted
		summary.CommentsSkipped = result.Skipped
		summary.CommentsFailed = result.Failed
	}

	p.finish(logger, summary, models.StatusDone, "", reviewedPaths, kept)
	return summary
}

// finish stamps the terminal status and writes the report artifacts.
// Report failures are logged, never propagated: the run outcome stands.
func (p *Pipeline) finish(logger zerolog.Logger, summary *models.RunSummary, status models.RunStatus, errMsg string, reviewedPaths []string, kept []models.Finding) {
	summary.Status = models.StatusReporting
	summary.Error = errMsg
	summary.FinishedAt = time.Now().UTC().Format(time.RFC3339)

	final := *summary
	final.Status = status
	if p.settings.Report.Enabled {
		if err := report.Write(p.settings.Report.Dir, final, reviewedPaths, kept); err != nil {
			logger.Warn().Err(err).Msg("could not write report artifacts")
		}
	}

	summary.Status = status
	logger.Info().Str("status", string(status)).Msg("review run finished")
}

// reviewAll fans the files out to a bounded worker pool. Each file
// succeeds or fails on its own; a file with a fetch error or a dead
// context counts as failed without calling the model. An unparseable
// model response counts as reviewed with zero findings.
func (p *Pipeline) reviewAll(ctx context.Context, logger zerolog.Logger, files []models.CandidateFile) (found []models.Finding, reviewedPaths []string, failed, unparsed int) {
	type outcome struct {
		path     string
		findings []models.Finding
		err      error
	}

	fileCh := make(chan models.CandidateFile, len(files))
	resultCh := make(chan outcome, len(files))

	workers := p.settings.Review.Concurrency
	if workers > len(files) {
		workers = len(files)
	}

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for file := range fileCh {
				if file.FetchErr != nil {
					resultCh <- outcome{path: file.Path, err: file.FetchErr}
					continue
				}
				if ctx.Err() != nil {
					resultCh <- outcome{path: file.Path, err: ctx.Err()}
					continue
				}
				fs, err := p.reviewer.ReviewFile(ctx, logger, file)
				resultCh <- outcome{path: file.Path, findings: fs, err: err}
			}
		}()
	}

	for _, file := range files {
		fileCh <- file
	}
	close(fileCh)

	go func() {
		wg.Wait()
		close(resultCh)
	}()

	for out := range resultCh {
		if out.err != nil {
			var perr *ai.ParseError
			if errors.As(out.err, &perr) {
				unparsed++
				reviewedPaths = append(reviewedPaths, out.path)
				logger.Warn().Str("file", out.path).Msg("model response unparseable, keeping zero findings")
				continue
			}
			failed++
			logger.Warn().Str("file", out.path).Err(out.err).Msg("file review failed")
			continue
		}
		reviewedPaths = append(reviewedPaths, out.path)
		found = append(found, out.findings...)
	}
	sort.Strings(reviewedPaths)
	return found, reviewedPaths, failed, unparsed
}
