package driving

import (
	"context"

	"github.com/custodia-labs/ansa/internal/core/domain"
)

// IngestService adds documents to the corpus: chunking, embedding and
// index insertion. Re-ingesting a document under the same ID replaces its
// previous chunk set.
type IngestService interface {
	// IngestDocument chunks, embeds and indexes a document.
	// Returns the number of chunks produced.
	IngestDocument(ctx context.Context, doc *domain.Document) (int, error)

	// IngestFile reads a plain-text file and ingests it. The document ID
	// is derived from the path, so repeated ingestion of the same file
	// replaces its chunks.
	IngestFile(ctx context.Context, path string) (*domain.Document, int, error)
}
