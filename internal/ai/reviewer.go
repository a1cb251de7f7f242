package ai

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/mergelens/internal/config"
	"github.com/mergelens/internal/retry"
	"github.com/mergelens/pkg/models"
)

// Reviewer reviews one file at a time through a model backend.
type Reviewer struct {
	backend  Backend
	policy   retry.Policy
	settings *config.Settings
}

// NewReviewer wires a backend and retry policy together.
func NewReviewer(backend Backend, policy retry.Policy, settings *config.Settings) *Reviewer {
	return &Reviewer{backend: backend, policy: policy, settings: settings}
}

// ReviewFile generates and parses the review for a single file. Model
// calls get a per-request timeout and transient failures are retried;
// an unparseable response after repair comes back as a *ParseError.
func (r *Reviewer) ReviewFile(ctx context.Context, logger zerolog.Logger, file models.CandidateFile) ([]models.Finding, error) {
	prompt := BuildPrompt(file, r.settings)

	var response string
	err := r.policy.Do(ctx, logger, "generate", func() error {
		callCtx, cancel := context.WithTimeout(ctx, r.settings.AI.RequestTimeout)
		defer cancel()

		out, err := r.backend.Generate(callCtx, prompt)
		if err != nil {
			// A per-request timeout is a transient backend failure; only
			// the run deadline (the parent context) ends the retries.
			if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
				return fmt.Errorf("model request timed out after %s", r.settings.AI.RequestTimeout)
			}
			return err
		}
		response = out
		return nil
	})
	if err != nil {
		return nil, err
	}

	result := Parse(file.Path, file.Truncated, response)
	if !result.OK {
		logger.Warn().Str("file", file.Path).Int("response_bytes", len(result.Raw)).Msg("model response unparseable after repair")
		return nil, &ParseError{File: file.Path, Raw: result.Raw}
	}

	logger.Debug().Str("file", file.Path).Int("findings", len(result.Findings)).Msg("file reviewed")
	return result.Findings, nil
}
