package knowledge

import (
	"context"
	"math"
	"sort"
	"sync"
)

// MemoryIndex is a simple in-memory vector storage.
type MemoryIndex struct {
	mu    sync.RWMutex
	items []VectorItem
}

func NewMemoryIndex() *MemoryIndex {
	return &MemoryIndex{}
}

func (m *MemoryIndex) Add(ctx context.Context, items []VectorItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, it := range items {
		replaced := false
		for i := range m.items {
			if m.items[i].ID == it.ID {
				m.items[i] = it
				replaced = true
				break
			}
		}
		if !replaced {
			m.items = append(m.items, it)
		}
	}
	return nil
}

func (m *MemoryIndex) Search(ctx context.Context, queryVector []float32, topK int) ([]SearchResult, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	results := make([]SearchResult, 0, len(m.items))
	for _, it := range m.items {
		results = append(results, SearchResult{
			ID:       it.ID,
			Text:     it.Text,
			Metadata: it.Metadata,
			Distance: CosineDistance(queryVector, it.Embedding),
		})
	}
	return TopK(results, topK), nil
}

func (m *MemoryIndex) Clear(ctx context.Context) error {
	m.mu.Lock()
	m.items = nil
	m.mu.Unlock()
	return nil
}

// Count reports the number of stored items.
func (m *MemoryIndex) Count(ctx context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.items), nil
}

// CosineDistance returns 1 - cosine similarity. Vectors of different
// length or zero magnitude are treated as unrelated (distance 1).
func CosineDistance(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 1
	}
	var dot, magA, magB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		magA += float64(a[i]) * float64(a[i])
		magB += float64(b[i]) * float64(b[i])
	}
	if magA == 0 || magB == 0 {
		return 1
	}
	return 1 - dot/(math.Sqrt(magA)*math.Sqrt(magB))
}

// TopK sorts results by ascending distance and keeps the first k.
func TopK(results []SearchResult, k int) []SearchResult {
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Distance < results[j].Distance
	})
	if k >= 0 && len(results) > k {
		results = results[:k]
	}
	return results
}
