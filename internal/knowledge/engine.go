package knowledge

import (
	"context"
	"fmt"
	"strconv"

	"go.uber.org/zap"
)

const DefaultChunkSize = 1000

// Engine is the retrieval store used during generation. Every operation
// fails soft: errors are logged and reported as false or an empty result.
type Engine struct {
	embedder  Embedder
	index     Indexer
	chunkSize int
	log       *zap.Logger
}

// NewEngine creates a retrieval engine. A nil embedder or index makes every
// search return nothing.
func NewEngine(em Embedder, idx Indexer, chunkSize int, log *zap.Logger) *Engine {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{
		embedder:  em,
		index:     idx,
		chunkSize: chunkSize,
		log:       log,
	}
}

// AddDocuments embeds and stores texts under the given ids. metadatas may be
// nil or must match texts in length.
func (e *Engine) AddDocuments(ctx context.Context, texts, ids []string, metadatas []map[string]string) bool {
	if e.embedder == nil || e.index == nil {
		e.log.Warn("retrieval store not initialized")
		return false
	}
	if len(texts) == 0 {
		return true
	}
	if len(ids) != len(texts) || (metadatas != nil && len(metadatas) != len(texts)) {
		e.log.Warn("document batch has mismatched lengths",
			zap.Int("texts", len(texts)), zap.Int("ids", len(ids)), zap.Int("metadatas", len(metadatas)))
		return false
	}

	vectors, err := e.embedder.Embed(ctx, texts)
	if err != nil {
		e.log.Warn("failed to embed documents", zap.Error(err))
		return false
	}
	if len(vectors) != len(texts) {
		e.log.Warn("embedding count mismatch", zap.Int("want", len(texts)), zap.Int("got", len(vectors)))
		return false
	}

	items := make([]VectorItem, len(texts))
	for i := range texts {
		items[i] = VectorItem{ID: ids[i], Text: texts[i], Embedding: vectors[i]}
		if metadatas != nil {
			items[i].Metadata = metadatas[i]
		}
	}
	if err := e.index.Add(ctx, items); err != nil {
		e.log.Warn("failed to store documents", zap.Error(err))
		return false
	}
	return true
}

// SearchSimilar returns up to n chunks closest to query.
func (e *Engine) SearchSimilar(ctx context.Context, query string, n int) []SearchResult {
	if e.embedder == nil || e.index == nil || n <= 0 {
		return nil
	}
	vectors, err := e.embedder.Embed(ctx, []string{query})
	if err != nil || len(vectors) == 0 {
		e.log.Warn("failed to embed query", zap.String("query", query), zap.Error(err))
		return nil
	}
	results, err := e.index.Search(ctx, vectors[0], n)
	if err != nil {
		e.log.Warn("similarity search failed", zap.String("query", query), zap.Error(err))
		return nil
	}
	return results
}

// Clear drops every stored document.
func (e *Engine) Clear(ctx context.Context) bool {
	if e.index == nil {
		return false
	}
	if err := e.index.Clear(ctx); err != nil {
		e.log.Warn("failed to clear retrieval store", zap.Error(err))
		return false
	}
	return true
}

// Size reports how many chunks are stored, or 0 when the store is
// unavailable.
func (e *Engine) Size(ctx context.Context) int {
	if e.index == nil {
		return 0
	}
	n, err := e.index.Count(ctx)
	if err != nil {
		e.log.Warn("failed to count stored documents", zap.Error(err))
		return 0
	}
	return n
}

// IndexSource chunks a source document and stores the chunks. It returns
// the number of chunks written, or 0 when indexing failed.
func (e *Engine) IndexSource(ctx context.Context, label, text string) int {
	chunks := ChunkText(label, text, e.chunkSize)
	if len(chunks) == 0 {
		return 0
	}
	texts := make([]string, len(chunks))
	ids := make([]string, len(chunks))
	metas := make([]map[string]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
		ids[i] = c.ID
		metas[i] = map[string]string{
			"source":      label,
			"chunk_index": strconv.Itoa(c.Index),
			"offset":      strconv.Itoa(c.Offset),
		}
	}
	if !e.AddDocuments(ctx, texts, ids, metas) {
		return 0
	}
	e.log.Info("indexed source", zap.String("source", label), zap.Int("chunks", len(chunks)))
	return len(chunks)
}

// Chunk is a fixed-size slice of a source document.
type Chunk struct {
	ID     string
	Index  int
	Offset int
	Text   string
}

// ChunkText splits text into pieces of at most size characters. Chunk ids
// follow "<label>_<index>_chunk_<offset>" with offset counted in characters.
func ChunkText(label, text string, size int) []Chunk {
	if size <= 0 {
		size = DefaultChunkSize
	}
	runes := []rune(text)
	var out []Chunk
	for offset, idx := 0, 0; offset < len(runes); offset, idx = offset+size, idx+1 {
		end := min(offset+size, len(runes))
		out = append(out, Chunk{
			ID:     fmt.Sprintf("%s_%d_chunk_%d", label, idx, offset),
			Index:  idx,
			Offset: offset,
			Text:   string(runes[offset:end]),
		})
	}
	return out
}
