// Package scan runs a local secret detection pass over candidate files
// so leaked credentials surface as high-severity findings even when the
// model misses them.
package scan

import (
	"fmt"

	"github.com/rs/zerolog"
	"github.com/zricethezav/gitleaks/v8/detect"

	"github.com/mergelens/pkg/models"
)

// Scanner wraps a gitleaks detector with the default ruleset.
type Scanner struct {
	detector *detect.Detector
}

// New builds a scanner with the bundled gitleaks rules.
func New() (*Scanner, error) {
	detector, err := detect.NewDetectorDefaultConfig()
	if err != nil {
		return nil, fmt.Errorf("initializing secret detector: %w", err)
	}
	return &Scanner{detector: detector}, nil
}

// Scan checks every candidate file for secrets. Full file content is
// preferred; diff text is scanned otherwise, in which case findings are
// file-level because diff line offsets do not map to file lines.
// Scanning never fails a run: a file the detector chokes on is skipped.
func (s *Scanner) Scan(logger zerolog.Logger, files []models.CandidateFile) []models.Finding {
	var out []models.Finding
	for _, file := range files {
		text := file.Content
		fileLevel := false
		if text == "" {
			text = file.Diff
			fileLevel = true
		}
		if text == "" {
			continue
		}

		for _, leak := range s.detector.DetectString(text) {
			line := leak.StartLine
			if fileLevel || line < 1 {
				line = 0
			}
			out = append(out, models.Finding{
				File:     file.Path,
				Line:     line,
				Severity: models.SeverityHigh,
				Category: models.CategorySecurity,
				Message:  fmt.Sprintf("Possible secret detected: %s (rule %s)", leak.Description, leak.RuleID),
				Suggestion: "Remove the credential from the change and rotate it; " +
					"load secrets from the environment or a secret manager instead.",
				Partial: file.Truncated,
			})
		}
	}

	if len(out) > 0 {
		logger.Info().Int("secrets", len(out)).Msg("secret scan found potential leaks")
	}
	return out
}
