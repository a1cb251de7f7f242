// Package ai sends candidate files to a model backend and turns the
// responses into findings.
package ai

import (
	"context"
	"fmt"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/googleai"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/mergelens/internal/config"
)

// Backend is the single operation the reviewer needs from a model.
type Backend interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

type langchainBackend struct {
	llm      llms.Model
	callOpts []llms.CallOption
}

// NewBackend builds a Backend for the configured provider.
func NewBackend(ctx context.Context, settings *config.Settings) (Backend, error) {
	cfg := settings.AI

	var (
		llm llms.Model
		err error
	)
	switch cfg.Provider {
	case "gemini":
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("ai.api_key is required for gemini")
		}
		llm, err = googleai.New(ctx,
			googleai.WithAPIKey(cfg.APIKey),
			googleai.WithDefaultModel(cfg.Model),
			googleai.WithDefaultMaxTokens(cfg.MaxTokens),
		)
	case "openai":
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("ai.api_key is required for openai")
		}
		opts := []openai.Option{
			openai.WithToken(cfg.APIKey),
			openai.WithModel(cfg.Model),
		}
		if cfg.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
		}
		llm, err = openai.New(opts...)
	case "ollama":
		opts := []ollama.Option{ollama.WithModel(cfg.Model)}
		if cfg.BaseURL != "" {
			opts = append(opts, ollama.WithServerURL(cfg.BaseURL))
		}
		llm, err = ollama.New(opts...)
	default:
		return nil, fmt.Errorf("unsupported ai.provider %q", cfg.Provider)
	}
	if err != nil {
		return nil, fmt.Errorf("initializing %s backend: %w", cfg.Provider, err)
	}

	return &langchainBackend{
		llm: llm,
		callOpts: []llms.CallOption{
			llms.WithTemperature(cfg.Temperature),
			llms.WithMaxTokens(cfg.MaxTokens),
		},
	}, nil
}

func (b *langchainBackend) Generate(ctx context.Context, prompt string) (string, error) {
	response, err := llms.GenerateFromSinglePrompt(ctx, b.llm, prompt, b.callOpts...)
	if err != nil {
		return "", fmt.Errorf("LLM call failed: %w", err)
	}
	return response, nil
}
