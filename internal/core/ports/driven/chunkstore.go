package driven

import (
	"context"

	"github.com/custodia-labs/ansa/internal/core/domain"
)

// ChunkStore persists chunks and their embeddings so that an in-memory
// corpus index can be rebuilt across process restarts. Optional: when nil,
// ingestion is index-only and the corpus lives for the process lifetime.
type ChunkStore interface {
	// SaveDocument stores or updates document metadata.
	SaveDocument(ctx context.Context, doc *domain.Document) error

	// SaveChunks stores the chunk set for a document, replacing any
	// previous set for the same document ID.
	SaveChunks(ctx context.Context, documentID string, chunks []domain.Chunk) error

	// LoadChunks returns every persisted chunk with its embedding.
	LoadChunks(ctx context.Context) ([]domain.Chunk, error)

	// DeleteDocument removes a document and its chunks.
	DeleteDocument(ctx context.Context, documentID string) error

	// Close releases resources.
	Close() error
}
