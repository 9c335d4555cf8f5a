package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/custodia-labs/ansa/internal/core/domain"
	"github.com/custodia-labs/ansa/internal/core/ports/driven"
	"github.com/custodia-labs/ansa/internal/logger"
)

// ContextRetriever finds the chunks relevant to a question.
// *Retriever is the default implementation; a re-ranking decorator can wrap
// it without the orchestrator noticing.
type ContextRetriever interface {
	// Retrieve returns up to topK chunks ranked best match first.
	// On failure or timeout it returns an empty context together with the
	// error; the caller decides whether empty context is acceptable.
	Retrieve(ctx context.Context, question string, topK int) (domain.RetrievedContext, error)
}

// Ensure Retriever implements the interface.
var _ ContextRetriever = (*Retriever)(nil)

// DefaultRetrievalTimeout bounds a single retrieval (embedding + index query).
const DefaultRetrievalTimeout = 5 * time.Second

// Retriever embeds the question and queries the corpus index, returning the
// ranked result verbatim. No re-scoring happens here.
type Retriever struct {
	embedder driven.EmbeddingService
	index    driven.CorpusIndex
	timeout  time.Duration
}

// NewRetriever creates a retriever. A non-positive timeout selects the default.
func NewRetriever(embedder driven.EmbeddingService, index driven.CorpusIndex, timeout time.Duration) *Retriever {
	if timeout <= 0 {
		timeout = DefaultRetrievalTimeout
	}
	return &Retriever{
		embedder: embedder,
		index:    index,
		timeout:  timeout,
	}
}

// Retrieve converts the question into an embedding and queries the index.
func (r *Retriever) Retrieve(ctx context.Context, question string, topK int) (domain.RetrievedContext, error) {
	if r.embedder == nil || r.index == nil {
		return domain.RetrievedContext{}, fmt.Errorf("%w: retriever not configured", domain.ErrRetrievalFailed)
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	embedding, err := r.embedder.Embed(ctx, question)
	if err != nil {
		return domain.RetrievedContext{}, r.wrap("embed question", err)
	}
	logger.Debug("Query embedding: %d dimensions", len(embedding))

	hits, err := r.index.Query(ctx, embedding, topK)
	if err != nil {
		return domain.RetrievedContext{}, r.wrap("query index", err)
	}
	logger.Debug("Retrieved %d chunks (top_k=%d)", len(hits), topK)

	// The index contract orders by descending score and bounds length,
	// but a misbehaving adapter must not leak past top-K.
	if topK > 0 && len(hits) > topK {
		hits = hits[:topK]
	}

	return domain.RetrievedContext{Chunks: hits}, nil
}

// wrap maps a retrieval failure to the domain taxonomy: deadline expiry
// becomes RetrievalTimeout, everything else RetrievalFailed.
func (r *Retriever) wrap(stage string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		logger.Warn("Retrieval timed out during %s: %v", stage, err)
		return fmt.Errorf("%w: %s: %v", domain.ErrRetrievalTimeout, stage, err)
	}
	logger.Warn("Retrieval failed during %s: %v", stage, err)
	return fmt.Errorf("%w: %s: %v", domain.ErrRetrievalFailed, stage, err)
}
