package cmd

import (
	"context"

	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"

	"github.com/mergelens/internal/ai"
	"github.com/mergelens/internal/config"
	"github.com/mergelens/internal/gitlab"
	"github.com/mergelens/internal/logging"
	"github.com/mergelens/internal/pipeline"
	"github.com/mergelens/internal/publisher"
	"github.com/mergelens/internal/retry"
	"github.com/mergelens/internal/scan"
)

// loadSettings resolves configuration and applies the global flags.
func loadSettings(c *cli.Context, console bool) (*config.Settings, error) {
	settings, err := config.Resolve(c.String("config"))
	if err != nil {
		return nil, err
	}
	if lvl := c.String("log-level"); lvl != "" {
		settings.Log.Level = lvl
	}
	logging.Setup(settings.Log.Level, console)
	return settings, nil
}

// buildPipeline wires the full review stack from settings.
func buildPipeline(ctx context.Context, settings *config.Settings) (*pipeline.Pipeline, *gitlab.Client, error) {
	if err := settings.RequireGitLab(); err != nil {
		return nil, nil, err
	}

	host, err := gitlab.NewClient(settings.GitLab.URL, settings.GitLab.Token)
	if err != nil {
		return nil, nil, err
	}

	backend, err := ai.NewBackend(ctx, settings)
	if err != nil {
		return nil, nil, err
	}
	reviewer := ai.NewReviewer(backend, retry.ModelPolicy(), settings)

	var scanner pipeline.SecretScanner
	if settings.Review.SecurityScan {
		s, err := scan.New()
		if err != nil {
			// A broken ruleset should not stop reviews; the model pass
			// still covers security findings.
			log.Warn().Err(err).Msg("secret scanner unavailable, continuing without it")
		} else {
			scanner = s
		}
	}

	pub := publisher.New(host, retry.DefaultPolicy())
	return pipeline.New(host, reviewer, scanner, pub, settings), host, nil
}
