package knowledge

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"
)

const (
	ollamaEmbedBatchSize = 64
	ollamaEmbedAttempts  = 3
	ollamaRetryDelay     = time.Second
)

// OllamaEmbedder talks to a local Ollama server's /api/embed endpoint.
type OllamaEmbedder struct {
	client    *http.Client
	model     string
	dimension int
	endpoint  string
}

type ollamaEmbedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type ollamaEmbedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
}

// ollamaStatusError is a non-2xx reply; only 5xx replies are retried.
type ollamaStatusError struct {
	status int
	body   string
}

func (e *ollamaStatusError) Error() string {
	return fmt.Sprintf("ollama embed request failed (%d): %s", e.status, e.body)
}

func NewOllamaEmbedder(model string, dim int, baseURL string) *OllamaEmbedder {
	url := strings.TrimSpace(baseURL)
	if url == "" {
		url = "http://127.0.0.1:11434"
	}
	url = strings.TrimRight(url, "/")
	if !strings.HasSuffix(url, "/api/embed") {
		url += "/api/embed"
	}
	if strings.TrimSpace(model) == "" {
		model = "nomic-embed-text"
	}

	return &OllamaEmbedder{
		client:    &http.Client{Timeout: 90 * time.Second},
		model:     model,
		dimension: dim,
		endpoint:  url,
	}
}

func (o *OllamaEmbedder) Dimension() int {
	return o.dimension
}

func (o *OllamaEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	out := make([][]float32, 0, len(texts))
	for i := 0; i < len(texts); i += ollamaEmbedBatchSize {
		end := min(i+ollamaEmbedBatchSize, len(texts))
		batch := texts[i:end]
		vecs, err := retry.DoWithData(
			func() ([][]float32, error) { return o.embedBatch(ctx, batch) },
			retry.Context(ctx),
			retry.Attempts(ollamaEmbedAttempts),
			retry.Delay(ollamaRetryDelay),
			retry.RetryIf(func(err error) bool {
				se, ok := err.(*ollamaStatusError)
				return !ok || se.status >= 500
			}),
			retry.LastErrorOnly(true),
		)
		if err != nil {
			return nil, err
		}
		out = append(out, vecs...)
	}

	if o.dimension <= 0 && len(out) > 0 {
		o.dimension = len(out[0])
	}
	return out, nil
}

func (o *OllamaEmbedder) embedBatch(ctx context.Context, batch []string) ([][]float32, error) {
	body, err := json.Marshal(ollamaEmbedRequest{Model: o.model, Input: batch})
	if err != nil {
		return nil, retry.Unrecoverable(err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, retry.Unrecoverable(err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &ollamaStatusError{status: resp.StatusCode, body: strings.TrimSpace(string(raw))}
	}

	var parsed ollamaEmbedResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, retry.Unrecoverable(err)
	}
	if len(parsed.Embeddings) != len(batch) {
		return nil, retry.Unrecoverable(fmt.Errorf("ollama embedding count mismatch: got %d, expected %d", len(parsed.Embeddings), len(batch)))
	}
	return parsed.Embeddings, nil
}
