package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"reportgen/internal/knowledge"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestCollection_AddSearchClear(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	docs := store.Collection("documents")
	require.NoError(t, docs.Add(ctx, []knowledge.VectorItem{
		{ID: "a", Text: "해양 관측", Metadata: map[string]string{"source": "src.pdf"}, Embedding: []float32{1, 0}},
		{ID: "b", Text: "예산 집행", Embedding: []float32{0, 1}},
		{ID: "c", Text: "혼합", Embedding: []float32{1, 1}},
	}))

	results, err := docs.Search(ctx, []float32{1, 0}, 2)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "a", results[0].ID)
	assert.Equal(t, "해양 관측", results[0].Text)
	assert.Equal(t, "src.pdf", results[0].Metadata["source"])
	assert.InDelta(t, 0, results[0].Distance, 1e-6)
	assert.Equal(t, "c", results[1].ID)

	// upsert by id
	require.NoError(t, docs.Add(ctx, []knowledge.VectorItem{{ID: "a", Text: "갱신", Embedding: []float32{1, 0}}}))
	n, err := docs.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	require.NoError(t, docs.Clear(ctx))
	results, err = docs.Search(ctx, []float32{1, 0}, 2)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestCollection_Isolation(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	first := store.Collection("first")
	second := store.Collection("second")
	require.NoError(t, first.Add(ctx, []knowledge.VectorItem{{ID: "x", Text: "one", Embedding: []float32{1}}}))
	require.NoError(t, second.Add(ctx, []knowledge.VectorItem{{ID: "x", Text: "two", Embedding: []float32{1}}}))

	require.NoError(t, first.Clear(ctx))

	results, err := second.Search(ctx, []float32{1}, 5)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "two", results[0].Text)
}

func TestEngineOverCollection(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	engine := knowledge.NewEngine(lengthEmbedder{}, store.Collection("documents"), 4, nil)
	assert.Equal(t, 3, engine.IndexSource(ctx, "src", "aaaabbbbcc"))

	hits := engine.SearchSimilar(ctx, "query", 10)
	assert.Len(t, hits, 3)
}

// lengthEmbedder embeds every text as a two-dimensional vector derived from
// its length.
type lengthEmbedder struct{}

func (lengthEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = []float32{float32(len(t)), 1}
	}
	return out, nil
}

func (lengthEmbedder) Dimension() int { return 2 }

func TestSessions(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.LoadSession(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, store.SaveSession(ctx, "s1", []byte(`{"id":"s1"}`)))
	time.Sleep(time.Millisecond)
	require.NoError(t, store.SaveSession(ctx, "s2", []byte(`{"id":"s2"}`)))
	time.Sleep(time.Millisecond)
	require.NoError(t, store.SaveSession(ctx, "s1", []byte(`{"id":"s1","v":2}`)))

	payload, err := store.LoadSession(ctx, "s1")
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"s1","v":2}`, string(payload))

	list, err := store.ListSessions(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "s1", list[0].ID)

	require.NoError(t, store.DeleteSession(ctx, "s1"))
	require.NoError(t, store.DeleteSession(ctx, "s1"))
	_, err = store.LoadSession(ctx, "s1")
	assert.ErrorIs(t, err, ErrNotFound)
}
