package knowledge

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

const defaultGeminiModel = "gemini-2.0-flash"

// GeminiGenerator implements Generator using Gemini text generation.
type GeminiGenerator struct {
	client        *genai.Client
	model         string
	temperature   float32
	maxTokens     int32
	promptBuilder *PromptBuilder
}

func NewGeminiGenerator(ctx context.Context, opts GeneratorOptions) (*GeminiGenerator, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  opts.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}
	model := opts.Model
	if strings.TrimSpace(model) == "" {
		model = defaultGeminiModel
	}
	return &GeminiGenerator{
		client:        client,
		model:         model,
		temperature:   float32(opts.temperature()),
		maxTokens:     int32(opts.maxTokens()),
		promptBuilder: &PromptBuilder{},
	}, nil
}

func (g *GeminiGenerator) GenerateSection(ctx context.Context, req SectionRequest) (string, error) {
	system := g.promptBuilder.BuildSystemPrompt(req.Style, req.ProtectedTerms, req.Eligibility)
	user := g.promptBuilder.BuildUserPrompt(req)

	config := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(system, genai.RoleUser),
		Temperature:       genai.Ptr(g.temperature),
		MaxOutputTokens:   g.maxTokens,
	}
	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(user), config)
	if err != nil {
		return "", newGenerationError(req.Title, err)
	}
	return finalizeOutput(req.Title, resp.Text())
}
