// Package embed abstracts text-embedding backends behind a single Provider
// interface. The first configured provider wins; with none configured,
// memory operations fail loudly instead of storing un-embedded text.
package embed

import (
	"context"
	"errors"
)

// ErrNotConfigured is returned when no embedding backend is configured.
var ErrNotConfigured = errors.New("no embedding service configured")

// Provider turns text into a fixed-length float vector.
type Provider interface {
	// Embed returns the embedding vector for a single text.
	Embed(ctx context.Context, text string) ([]float32, error)
	// Name identifies the backend in logs.
	Name() string
}

// Options selects and parameterizes the available backends.
type Options struct {
	OllamaBaseURL    string
	OllamaEmbedModel string
	OpenAIAPIKey     string
	OpenAIEmbedModel string
}

// FromOptions returns the configured provider. An OpenAI API key wins over
// the Ollama base URL: the default config always points at a local Ollama,
// so the key is the stronger signal of intent. With neither set it returns
// ErrNotConfigured.
func FromOptions(opts Options) (Provider, error) {
	if opts.OpenAIAPIKey != "" {
		return NewOpenAIProvider(opts.OpenAIAPIKey, opts.OpenAIEmbedModel), nil
	}
	if opts.OllamaBaseURL != "" {
		return NewOllamaProvider(opts.OllamaBaseURL, opts.OllamaEmbedModel), nil
	}
	return nil, ErrNotConfigured
}
