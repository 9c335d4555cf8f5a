package driven

import (
	"context"

	"github.com/custodia-labs/ansa/internal/core/domain"
)

// CorpusIndex provides vector similarity operations over indexed chunks.
// The engine consumes this capability set and never the index internals;
// implementations may be in-memory, embedded or remote. Implementations
// must be safe for concurrent use.
type CorpusIndex interface {
	// Upsert inserts or replaces chunks. Idempotent per chunk ID.
	Upsert(ctx context.Context, chunks []domain.Chunk) error

	// Query finds the topK nearest chunks to the query embedding,
	// ordered by descending score. Returns at most topK results.
	Query(ctx context.Context, embedding []float32, topK int) ([]domain.ScoredChunk, error)

	// DeleteDocument removes every chunk belonging to a document.
	// Used when a document is re-ingested.
	DeleteDocument(ctx context.Context, documentID string) error

	// Close releases resources.
	Close() error
}
