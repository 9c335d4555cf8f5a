package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/ansa/internal/core/domain"
)

func chunk(id, docID string, embedding []float32) domain.Chunk {
	return domain.Chunk{ID: id, DocumentID: docID, Content: "content " + id, Embedding: embedding}
}

func TestIndex_QueryRanksBySimilarity(t *testing.T) {
	idx := NewIndex()
	ctx := context.Background()

	require.NoError(t, idx.Upsert(ctx, []domain.Chunk{
		chunk("a:0000", "a", []float32{1, 0, 0}),
		chunk("a:0001", "a", []float32{0, 1, 0}),
		chunk("b:0000", "b", []float32{0.9, 0.1, 0}),
	}))

	hits, err := idx.Query(ctx, []float32{1, 0, 0}, 3)
	require.NoError(t, err)
	require.Len(t, hits, 3)

	assert.Equal(t, "a:0000", hits[0].Chunk.ID)
	assert.Equal(t, "b:0000", hits[1].Chunk.ID)
	for i := 1; i < len(hits); i++ {
		assert.GreaterOrEqual(t, hits[i-1].Score, hits[i].Score, "scores must be non-increasing")
	}
}

func TestIndex_QueryRespectsTopK(t *testing.T) {
	idx := NewIndex()
	ctx := context.Background()

	require.NoError(t, idx.Upsert(ctx, []domain.Chunk{
		chunk("a:0000", "a", []float32{1, 0}),
		chunk("a:0001", "a", []float32{0.5, 0.5}),
		chunk("a:0002", "a", []float32{0, 1}),
	}))

	hits, err := idx.Query(ctx, []float32{1, 0}, 2)
	require.NoError(t, err)
	assert.Len(t, hits, 2)

	hits, err = idx.Query(ctx, []float32{1, 0}, 0)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestIndex_UpsertIsIdempotentPerChunkID(t *testing.T) {
	idx := NewIndex()
	ctx := context.Background()

	first := chunk("a:0000", "a", []float32{1, 0})
	require.NoError(t, idx.Upsert(ctx, []domain.Chunk{first}))
	require.NoError(t, idx.Upsert(ctx, []domain.Chunk{first}))
	assert.Equal(t, 1, idx.Len())

	updated := first
	updated.Content = "updated"
	require.NoError(t, idx.Upsert(ctx, []domain.Chunk{updated}))

	hits, err := idx.Query(ctx, []float32{1, 0}, 1)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "updated", hits[0].Chunk.Content)
}

func TestIndex_UpsertRejectsEmptyID(t *testing.T) {
	idx := NewIndex()
	err := idx.Upsert(context.Background(), []domain.Chunk{{DocumentID: "a"}})
	assert.Error(t, err)
}

func TestIndex_DeleteDocument(t *testing.T) {
	idx := NewIndex()
	ctx := context.Background()

	require.NoError(t, idx.Upsert(ctx, []domain.Chunk{
		chunk("a:0000", "a", []float32{1, 0}),
		chunk("a:0001", "a", []float32{0, 1}),
		chunk("b:0000", "b", []float32{1, 1}),
	}))

	require.NoError(t, idx.DeleteDocument(ctx, "a"))
	assert.Equal(t, 1, idx.Len())

	hits, err := idx.Query(ctx, []float32{1, 0}, 10)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "b:0000", hits[0].Chunk.ID)
}

func TestIndex_QueryEmptyIndex(t *testing.T) {
	idx := NewIndex()
	hits, err := idx.Query(context.Background(), []float32{1, 0}, 5)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestCosineSimilarity(t *testing.T) {
	assert.InDelta(t, 1.0, cosineSimilarity([]float32{1, 0}, []float32{2, 0}), 1e-9)
	assert.InDelta(t, 0.0, cosineSimilarity([]float32{1, 0}, []float32{0, 1}), 1e-9)
	assert.InDelta(t, -1.0, cosineSimilarity([]float32{1, 0}, []float32{-1, 0}), 1e-9)
	assert.Equal(t, 0.0, cosineSimilarity([]float32{1, 0}, []float32{1, 0, 0}), "dimension mismatch")
	assert.Equal(t, 0.0, cosineSimilarity([]float32{0, 0}, []float32{1, 0}), "zero vector")
}
