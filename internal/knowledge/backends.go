package knowledge

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrMissingAPIKey is returned for a hosted embedding backend configured
// without credentials.
var ErrMissingAPIKey = errors.New("missing API key")

// EmbedderOptions selects the embedding backend used for retrieval.
// Provider defaults to a local Ollama server.
type EmbedderOptions struct {
	Provider  string
	APIKey    string
	Model     string
	Dimension int
	BaseURL   string
}

func (o EmbedderOptions) provider() string {
	if p := strings.ToLower(strings.TrimSpace(o.Provider)); p != "" {
		return p
	}
	return "ollama"
}

// NewEmbedder builds the configured embedding backend. Unlike NewGenerator,
// a hosted backend without an API key is an error: the caller runs without
// retrieval instead of failing every chunk.
func NewEmbedder(ctx context.Context, opts EmbedderOptions) (Embedder, error) {
	provider := opts.provider()
	hosted := provider == "openai" || provider == "gemini"
	if hosted && strings.TrimSpace(opts.APIKey) == "" {
		return nil, fmt.Errorf("%s embedder: %w", provider, ErrMissingAPIKey)
	}

	switch provider {
	case "ollama":
		return NewOllamaEmbedder(opts.Model, opts.Dimension, opts.BaseURL), nil
	case "openai":
		return NewOpenAIEmbedder(opts.APIKey, opts.Model, opts.Dimension, opts.BaseURL), nil
	case "gemini":
		return NewGeminiEmbedder(ctx, opts.APIKey, opts.Model, opts.Dimension)
	}
	return nil, fmt.Errorf("unsupported embedder provider: %s", opts.Provider)
}

type GeneratorOptions struct {
	Provider        string
	APIKey          string
	Model           string
	BaseURL         string
	Temperature     float64
	MaxOutputTokens int
}

func (o GeneratorOptions) temperature() float64 {
	if o.Temperature <= 0 {
		return defaultTemperature
	}
	return o.Temperature
}

func (o GeneratorOptions) maxTokens() int {
	if o.MaxOutputTokens <= 0 {
		return defaultMaxOutputTokens
	}
	return o.MaxOutputTokens
}

// NewGenerator builds the configured backend. A missing API key is not an
// error here: the returned generator fails every call with a
// GenerationError so that a pass still completes with placeholders.
func NewGenerator(ctx context.Context, opts GeneratorOptions) (Generator, error) {
	provider := strings.ToLower(strings.TrimSpace(opts.Provider))
	if provider == "" {
		provider = "openai"
	}

	switch provider {
	case "openai", "gemini":
	default:
		return nil, fmt.Errorf("unsupported generator provider: %s", opts.Provider)
	}
	if strings.TrimSpace(opts.APIKey) == "" {
		return UnavailableGenerator{Reason: fmt.Sprintf("%s API 키가 설정되지 않았습니다", provider)}, nil
	}

	if provider == "gemini" {
		return NewGeminiGenerator(ctx, opts)
	}
	return NewOpenAIGenerator(opts), nil
}
