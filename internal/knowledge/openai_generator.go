package knowledge

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

const (
	defaultOpenAIModel     = "gpt-4o"
	defaultTemperature     = 0.3
	defaultMaxOutputTokens = 4000
)

// OpenAIGenerator implements Generator with the chat completions API.
type OpenAIGenerator struct {
	client        openai.Client
	model         string
	temperature   float64
	maxTokens     int
	promptBuilder *PromptBuilder
}

func NewOpenAIGenerator(opts GeneratorOptions) *OpenAIGenerator {
	reqOpts := []option.RequestOption{
		option.WithAPIKey(opts.APIKey),
		option.WithHTTPClient(&http.Client{Timeout: 120 * time.Second}),
		option.WithMaxRetries(2),
	}
	if strings.TrimSpace(opts.BaseURL) != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(opts.BaseURL))
	}
	model := opts.Model
	if strings.TrimSpace(model) == "" {
		model = defaultOpenAIModel
	}
	return &OpenAIGenerator{
		client:        openai.NewClient(reqOpts...),
		model:         model,
		temperature:   opts.temperature(),
		maxTokens:     opts.maxTokens(),
		promptBuilder: &PromptBuilder{},
	}
}

func (g *OpenAIGenerator) GenerateSection(ctx context.Context, req SectionRequest) (string, error) {
	system := g.promptBuilder.BuildSystemPrompt(req.Style, req.ProtectedTerms, req.Eligibility)
	user := g.promptBuilder.BuildUserPrompt(req)

	resp, err := g.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(g.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(system),
			openai.UserMessage(user),
		},
		Temperature: openai.Float(g.temperature),
		MaxTokens:   openai.Int(int64(g.maxTokens)),
	})
	if err != nil {
		return "", newGenerationError(req.Title, mapOpenAIError(err))
	}
	if len(resp.Choices) == 0 {
		return "", &GenerationError{Section: req.Title, Reason: "model returned no choices"}
	}
	return finalizeOutput(req.Title, resp.Choices[0].Message.Content)
}

func mapOpenAIError(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		if apiErr.Message != "" {
			return fmt.Errorf("openai error (status %d): %s", apiErr.StatusCode, apiErr.Message)
		}
		return fmt.Errorf("openai error (status %d)", apiErr.StatusCode)
	}
	return err
}
