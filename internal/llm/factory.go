// Package llm provides the model-backed collaborators: one client per
// provider, each able to serve both the segment-and-tag task and the
// polyphone double-check task.
package llm

import (
	"context"
	"fmt"
	"strings"

	"hanpin/internal/escalate"
	"hanpin/internal/tagger"
)

// Client is a provider-agnostic collaborator handle.
type Client interface {
	tagger.Collaborator
	escalate.Verifier
}

type Options struct {
	Provider string
	APIKey   string
	Model    string
	BaseURL  string
}

// NewClient builds the collaborator for the configured provider.
func NewClient(ctx context.Context, opts Options) (Client, error) {
	provider := strings.ToLower(strings.TrimSpace(opts.Provider))
	if provider == "" {
		provider = "ollama"
	}

	switch provider {
	case "ollama":
		return NewOllamaClient(opts.Model, opts.BaseURL), nil
	case "openai":
		return NewOpenAIClient(opts.APIKey, opts.Model, opts.BaseURL), nil
	case "gemini":
		return NewGeminiClient(ctx, opts.APIKey, opts.Model)
	default:
		return nil, fmt.Errorf("unsupported llm provider: %s", opts.Provider)
	}
}
