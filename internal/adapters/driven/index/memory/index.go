// Package memory provides an in-memory corpus index using brute-force
// cosine similarity. Suitable for local corpora and tests; a remote ANN
// store can replace it behind the same port.
package memory

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/custodia-labs/ansa/internal/core/domain"
	"github.com/custodia-labs/ansa/internal/core/ports/driven"
)

// Ensure Index implements the interface.
var _ driven.CorpusIndex = (*Index)(nil)

// Index is an in-memory implementation of driven.CorpusIndex.
type Index struct {
	mu     sync.RWMutex
	chunks map[string]domain.Chunk
	byDoc  map[string][]string
}

// NewIndex creates an empty in-memory corpus index.
func NewIndex() *Index {
	return &Index{
		chunks: make(map[string]domain.Chunk),
		byDoc:  make(map[string][]string),
	}
}

// Upsert inserts or replaces chunks. Idempotent per chunk ID.
func (idx *Index) Upsert(_ context.Context, chunks []domain.Chunk) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	for _, chunk := range chunks {
		if chunk.ID == "" {
			return fmt.Errorf("upsert: chunk with empty ID (document %s)", chunk.DocumentID)
		}
		if _, exists := idx.chunks[chunk.ID]; !exists {
			idx.byDoc[chunk.DocumentID] = append(idx.byDoc[chunk.DocumentID], chunk.ID)
		}
		idx.chunks[chunk.ID] = chunk
	}
	return nil
}

// Query finds the topK most similar chunks by cosine similarity.
func (idx *Index) Query(_ context.Context, embedding []float32, topK int) ([]domain.ScoredChunk, error) {
	if topK <= 0 {
		return nil, nil
	}

	idx.mu.RLock()
	defer idx.mu.RUnlock()

	scored := make([]domain.ScoredChunk, 0, len(idx.chunks))
	for _, chunk := range idx.chunks {
		if len(chunk.Embedding) == 0 {
			continue
		}
		score := cosineSimilarity(embedding, chunk.Embedding)
		scored = append(scored, domain.ScoredChunk{Chunk: chunk, Score: score})
	}

	sort.Slice(scored, func(i, j int) bool {
		if scored[i].Score != scored[j].Score {
			return scored[i].Score > scored[j].Score
		}
		// Stable order for equal scores keeps queries deterministic.
		return scored[i].Chunk.ID < scored[j].Chunk.ID
	})

	if len(scored) > topK {
		scored = scored[:topK]
	}
	return scored, nil
}

// DeleteDocument removes every chunk belonging to a document.
func (idx *Index) DeleteDocument(_ context.Context, documentID string) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	for _, id := range idx.byDoc[documentID] {
		delete(idx.chunks, id)
	}
	delete(idx.byDoc, documentID)
	return nil
}

// Len returns the number of indexed chunks.
func (idx *Index) Len() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.chunks)
}

// Close releases resources.
func (idx *Index) Close() error {
	return nil
}

// cosineSimilarity computes the cosine of the angle between two vectors.
// Mismatched dimensions or zero vectors score 0.
func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
