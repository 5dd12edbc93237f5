package knowledge

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// keywordEmbedder maps text onto counts of a fixed vocabulary.
type keywordEmbedder struct {
	vocab []string
	err   error
	calls int
}

func (m *keywordEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		vec := make([]float32, len(m.vocab))
		for j, w := range m.vocab {
			vec[j] = float32(strings.Count(t, w))
		}
		out[i] = vec
	}
	return out, nil
}

func (m *keywordEmbedder) Dimension() int { return len(m.vocab) }

func newTestEngine(em Embedder) (*Engine, *MemoryIndex) {
	idx := NewMemoryIndex()
	return NewEngine(em, idx, 10, nil), idx
}

func TestEngine_AddAndSearch(t *testing.T) {
	ctx := context.Background()
	engine, _ := newTestEngine(&keywordEmbedder{vocab: []string{"해양", "예산", "인력"}})

	ok := engine.AddDocuments(ctx,
		[]string{"해양 해양 관측", "예산 집행 현황", "인력 운용 계획"},
		[]string{"a", "b", "c"},
		[]map[string]string{{"source": "x"}, {"source": "y"}, {"source": "z"}},
	)
	require.True(t, ok)
	assert.Equal(t, 3, engine.Size(ctx))

	results := engine.SearchSimilar(ctx, "예산", 2)
	require.Len(t, results, 2)
	assert.Equal(t, "b", results[0].ID)
	assert.Equal(t, "y", results[0].Metadata["source"])
	assert.InDelta(t, 0, results[0].Distance, 1e-9)

	require.True(t, engine.Clear(ctx))
	assert.Empty(t, engine.SearchSimilar(ctx, "예산", 2))
}

func TestEngine_FailsSoft(t *testing.T) {
	ctx := context.Background()

	broken, _ := newTestEngine(&keywordEmbedder{vocab: []string{"a"}, err: errors.New("backend down")})
	assert.False(t, broken.AddDocuments(ctx, []string{"a"}, []string{"1"}, nil))
	assert.Empty(t, broken.SearchSimilar(ctx, "a", 3))
	assert.Equal(t, 0, broken.IndexSource(ctx, "src", "abc"))

	engine, _ := newTestEngine(&keywordEmbedder{vocab: []string{"a"}})
	assert.False(t, engine.AddDocuments(ctx, []string{"a", "b"}, []string{"1"}, nil))

	empty := NewEngine(nil, nil, 0, nil)
	assert.Empty(t, empty.SearchSimilar(ctx, "a", 3))
	assert.False(t, empty.AddDocuments(ctx, []string{"a"}, []string{"1"}, nil))
	assert.False(t, empty.Clear(ctx))
	assert.Zero(t, empty.Size(ctx))
}

func TestChunkText(t *testing.T) {
	chunks := ChunkText("source", strings.Repeat("가", 25), 10)
	require.Len(t, chunks, 3)
	assert.Equal(t, "source_0_chunk_0", chunks[0].ID)
	assert.Equal(t, "source_1_chunk_10", chunks[1].ID)
	assert.Equal(t, "source_2_chunk_20", chunks[2].ID)
	assert.Equal(t, strings.Repeat("가", 5), chunks[2].Text)

	assert.Empty(t, ChunkText("source", "", 10))
}

func TestEngine_IndexSource(t *testing.T) {
	ctx := context.Background()
	engine, idx := newTestEngine(&keywordEmbedder{vocab: []string{"a"}})

	n := engine.IndexSource(ctx, "report.pdf", strings.Repeat("a", 35))
	assert.Equal(t, 4, n)
	stored, err := idx.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, stored)

	// re-indexing the same source replaces chunks by id
	engine.IndexSource(ctx, "report.pdf", strings.Repeat("a", 35))
	assert.Equal(t, 4, engine.Size(ctx))
}

func TestCosineDistance(t *testing.T) {
	assert.InDelta(t, 0, CosineDistance([]float32{1, 0}, []float32{2, 0}), 1e-9)
	assert.InDelta(t, 1, CosineDistance([]float32{1, 0}, []float32{0, 1}), 1e-9)
	assert.Equal(t, 1.0, CosineDistance([]float32{1}, []float32{1, 2}))
	assert.Equal(t, 1.0, CosineDistance([]float32{0, 0}, []float32{1, 2}))
}

func TestApproxTokens(t *testing.T) {
	assert.Equal(t, 0, ApproxTokens(""))
	assert.Equal(t, 2, ApproxTokens("12345678"))
	assert.Equal(t, 1, ApproxTokens("가나다라마"))
	assert.Equal(t, 3, ApproxCounter{}.CountTokens("abcdefghijkl"))
}
