package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/ansa/internal/core/domain"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestStore_MigrationsAreIdempotent(t *testing.T) {
	dir := t.TempDir()

	store, err := NewStore(dir)
	require.NoError(t, err)
	require.NoError(t, store.Close())

	// Reopening must not re-run applied migrations.
	store, err = NewStore(dir)
	require.NoError(t, err)
	require.NoError(t, store.Close())
}

func TestAnswerCache_RoundTrip(t *testing.T) {
	store := newTestStore(t)
	cache := store.AnswerCache()
	ctx := context.Background()

	answer := &domain.Answer{
		Text:         "Guido van Rossum created Python.",
		Sources:      []domain.SourceRef{{ChunkID: "d:0000", DocumentID: "d", Locator: "notes.txt#0", Score: 0.92}},
		InputTokens:  200,
		OutputTokens: 12,
		Cost:         0.00037,
		ProviderID:   "openai",
		CreatedAt:    time.Now().UTC().Truncate(time.Second),
	}

	require.NoError(t, cache.Put(ctx, "Who created Python?", "openai", answer, time.Minute))

	got, err := cache.Get(ctx, "who created python?", "openai")
	require.NoError(t, err)
	assert.Equal(t, answer.Text, got.Text)
	assert.Equal(t, answer.Sources, got.Sources)
	assert.Equal(t, answer.Cost, got.Cost)
}

func TestAnswerCache_MissAndExpiry(t *testing.T) {
	store := newTestStore(t)
	cache := store.AnswerCache()
	ctx := context.Background()

	_, err := cache.Get(ctx, "never asked", "openai")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	answer := &domain.Answer{Text: "stale", ProviderID: "openai"}
	require.NoError(t, cache.Put(ctx, "q", "openai", answer, -time.Second))

	_, err = cache.Get(ctx, "q", "openai")
	assert.ErrorIs(t, err, domain.ErrNotFound, "expired entry must read as a miss")
}

func TestCostLedger_RecordAndTotals(t *testing.T) {
	store := newTestStore(t)
	ledger := store.CostLedger()
	ctx := context.Background()

	events := []domain.CostEvent{
		{ProviderID: "openai", InputTokens: 100, OutputTokens: 20, Cost: 0.001, CreatedAt: time.Now()},
		{ProviderID: "openai", InputTokens: 50, OutputTokens: 10, Cost: 0.0005, CreatedAt: time.Now()},
		{ProviderID: "ollama", InputTokens: 400, OutputTokens: 80, Cost: 0, CreatedAt: time.Now()},
	}
	for _, e := range events {
		require.NoError(t, ledger.Record(ctx, e))
	}

	totals, err := ledger.Totals(ctx)
	require.NoError(t, err)
	require.Len(t, totals, 2)

	assert.Equal(t, int64(2), totals["openai"].Requests)
	assert.Equal(t, int64(150), totals["openai"].InputTokens)
	assert.Equal(t, int64(30), totals["openai"].OutputTokens)
	assert.InDelta(t, 0.0015, totals["openai"].Cost, 1e-9)
	assert.Equal(t, int64(1), totals["ollama"].Requests)
}

func TestChunkStore_SaveLoadDelete(t *testing.T) {
	store := newTestStore(t)
	chunkStore := store.ChunkStore()
	ctx := context.Background()

	doc := &domain.Document{
		ID:       "doc-1",
		URI:      "notes.txt",
		Title:    "notes",
		Metadata: map[string]any{"path": "notes.txt"},
	}
	require.NoError(t, chunkStore.SaveDocument(ctx, doc))

	chunks := []domain.Chunk{
		{ID: "doc-1:0000", DocumentID: "doc-1", Content: "first", Position: 0,
			Embedding: []float32{0.1, 0.2, 0.3}, Metadata: map[string]any{"uri": "notes.txt"}},
		{ID: "doc-1:0001", DocumentID: "doc-1", Content: "second", Position: 1,
			Embedding: []float32{0.4, 0.5, 0.6}, Metadata: map[string]any{"uri": "notes.txt"}},
	}
	require.NoError(t, chunkStore.SaveChunks(ctx, "doc-1", chunks))

	loaded, err := chunkStore.LoadChunks(ctx)
	require.NoError(t, err)
	require.Len(t, loaded, 2)
	assert.Equal(t, "doc-1:0000", loaded[0].ID)
	assert.Equal(t, []float32{0.1, 0.2, 0.3}, loaded[0].Embedding)
	assert.Equal(t, "notes.txt", loaded[0].Metadata["uri"])

	// Re-saving replaces the chunk set.
	require.NoError(t, chunkStore.SaveChunks(ctx, "doc-1", chunks[:1]))
	loaded, err = chunkStore.LoadChunks(ctx)
	require.NoError(t, err)
	assert.Len(t, loaded, 1)

	require.NoError(t, chunkStore.DeleteDocument(ctx, "doc-1"))
	loaded, err = chunkStore.LoadChunks(ctx)
	require.NoError(t, err)
	assert.Empty(t, loaded, "chunk rows cascade with the document")
}

func TestEmbeddingCodec(t *testing.T) {
	in := []float32{1.5, -2.25, 0, 3.14159}
	assert.Equal(t, in, decodeEmbedding(encodeEmbedding(in)))
	assert.Nil(t, encodeEmbedding(nil))
	assert.Nil(t, decodeEmbedding(nil))
}
