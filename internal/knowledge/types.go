package knowledge

import (
	"context"

	"reportgen/internal/yearfilter"
)

// Embedder defines the interface for converting text to vectors.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	Dimension() int
}

// Generator turns one section request into section text. Backend failures
// are reported as *GenerationError; other errors (context cancellation)
// are returned as is.
type Generator interface {
	GenerateSection(ctx context.Context, req SectionRequest) (string, error)
}

// Retriever answers similarity queries over the indexed source. It never
// fails: problems yield an empty result.
type Retriever interface {
	SearchSimilar(ctx context.Context, query string, n int) []SearchResult
}

// StyleProfile describes the writing style extracted from the reference
// document.
type StyleProfile struct {
	Itemized        bool     `json:"is_itemized_format"`
	ItemizedEndings []string `json:"itemized_endings,omitempty"`
	SentenceEndings []string `json:"sentence_endings,omitempty"`
	TechnicalTerms  []string `json:"technical_terms,omitempty"`
}

// SectionRequest is everything a Generator needs for one section.
type SectionRequest struct {
	Number         string
	Title          string
	Level          int
	SourceExcerpt  string
	Style          StyleProfile
	PriorSections  []string
	ProtectedTerms []string
	Eligibility    yearfilter.Context
}

// VectorItem is a stored chunk paired with its embedding.
type VectorItem struct {
	ID        string            `json:"id"`
	Text      string            `json:"text"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	Embedding []float32         `json:"-"`
}

// SearchResult is one retrieval hit. Lower distance is closer.
type SearchResult struct {
	ID       string            `json:"id"`
	Text     string            `json:"text"`
	Metadata map[string]string `json:"metadata,omitempty"`
	Distance float64           `json:"distance"`
}

// Indexer manages the storage and retrieval of VectorItems.
type Indexer interface {
	Add(ctx context.Context, items []VectorItem) error
	Search(ctx context.Context, queryVector []float32, topK int) ([]SearchResult, error)
	Clear(ctx context.Context) error
	Count(ctx context.Context) (int, error)
}
