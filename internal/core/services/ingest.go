package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/custodia-labs/ansa/internal/chunker"
	"github.com/custodia-labs/ansa/internal/core/domain"
	"github.com/custodia-labs/ansa/internal/core/ports/driven"
	"github.com/custodia-labs/ansa/internal/core/ports/driving"
	"github.com/custodia-labs/ansa/internal/logger"
)

// Ensure Ingestor implements the interface.
var _ driving.IngestService = (*Ingestor)(nil)

// embedBatchSize bounds how many chunks are embedded per backend call.
const embedBatchSize = 32

// Ingestor adds documents to the corpus: split into overlapping chunks,
// embed, then upsert into the corpus index. Re-ingestion under the same
// document ID replaces the previous chunk set. The chunk store is optional
// and, when present, persists chunks so an in-memory index can be rebuilt.
type Ingestor struct {
	chunker  *chunker.Chunker
	embedder driven.EmbeddingService
	index    driven.CorpusIndex
	store    driven.ChunkStore
}

// NewIngestor creates an ingestion service. store may be nil.
func NewIngestor(
	c *chunker.Chunker,
	embedder driven.EmbeddingService,
	index driven.CorpusIndex,
	store driven.ChunkStore,
) *Ingestor {
	return &Ingestor{
		chunker:  c,
		embedder: embedder,
		index:    index,
		store:    store,
	}
}

// IngestDocument chunks, embeds and indexes a document.
func (s *Ingestor) IngestDocument(ctx context.Context, doc *domain.Document) (int, error) {
	logger.Section("Ingest " + doc.ID)

	chunks := s.chunker.Split(doc)
	if len(chunks) == 0 {
		logger.Warn("Document %s produced no chunks", doc.ID)
		return 0, nil
	}
	logger.Debug("Document %s: %d chunks", doc.ID, len(chunks))

	for start := 0; start < len(chunks); start += embedBatchSize {
		end := start + embedBatchSize
		if end > len(chunks) {
			end = len(chunks)
		}

		texts := make([]string, end-start)
		for i := start; i < end; i++ {
			texts[i-start] = chunks[i].Content
		}

		embeddings, err := s.embedder.EmbedBatch(ctx, texts)
		if err != nil {
			return 0, fmt.Errorf("embed chunks [%d:%d]: %w", start, end, err)
		}
		if len(embeddings) != end-start {
			return 0, fmt.Errorf("embed chunks [%d:%d]: got %d embeddings", start, end, len(embeddings))
		}
		for i := start; i < end; i++ {
			chunks[i].Embedding = embeddings[i-start]
		}
	}

	// Replace the previous chunk set before inserting the new one, so a
	// shrunk document leaves no stale chunks behind.
	if err := s.index.DeleteDocument(ctx, doc.ID); err != nil {
		return 0, fmt.Errorf("delete previous chunks for %s: %w", doc.ID, err)
	}
	if err := s.index.Upsert(ctx, chunks); err != nil {
		return 0, fmt.Errorf("index chunks for %s: %w", doc.ID, err)
	}

	if s.store != nil {
		if err := s.store.SaveDocument(ctx, doc); err != nil {
			return 0, fmt.Errorf("persist document %s: %w", doc.ID, err)
		}
		if err := s.store.SaveChunks(ctx, doc.ID, chunks); err != nil {
			return 0, fmt.Errorf("persist chunks for %s: %w", doc.ID, err)
		}
	}

	logger.Info("Ingested %s: %d chunks", doc.ID, len(chunks))
	return len(chunks), nil
}

// IngestFile reads a plain-text file and ingests it. The document ID is
// derived from the cleaned path, so repeated ingestion replaces chunks.
func (s *Ingestor) IngestFile(ctx context.Context, path string) (*domain.Document, int, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, 0, fmt.Errorf("read %s: %w", path, err)
	}

	now := time.Now()
	doc := &domain.Document{
		ID:      DocumentIDForPath(path),
		URI:     filepath.Clean(path),
		Title:   filepath.Base(path),
		Content: string(content),
		Metadata: map[string]any{
			"path": filepath.Clean(path),
		},
		CreatedAt: now,
		UpdatedAt: now,
	}

	count, err := s.IngestDocument(ctx, doc)
	if err != nil {
		return nil, 0, err
	}
	return doc, count, nil
}

// RebuildIndex reloads persisted chunks into the corpus index.
// No-op without a chunk store.
func (s *Ingestor) RebuildIndex(ctx context.Context) (int, error) {
	if s.store == nil {
		return 0, nil
	}

	chunks, err := s.store.LoadChunks(ctx)
	if err != nil {
		return 0, fmt.Errorf("load persisted chunks: %w", err)
	}
	if len(chunks) == 0 {
		return 0, nil
	}
	if err := s.index.Upsert(ctx, chunks); err != nil {
		return 0, fmt.Errorf("rebuild index: %w", err)
	}

	logger.Info("Rebuilt index with %d persisted chunks", len(chunks))
	return len(chunks), nil
}

// DocumentIDForPath derives the stable document ID for a file path.
func DocumentIDForPath(path string) string {
	sum := sha256.Sum256([]byte(filepath.Clean(path)))
	return hex.EncodeToString(sum[:8])
}
