package driven

import (
	"context"
	"time"

	"github.com/custodia-labs/ansa/internal/core/domain"
)

// AnswerCache stores computed answers keyed by (question, provider).
// Keys are derived via domain.CacheKey, so trivially different phrasings of
// the same question share an entry. Implementations must be safe for
// concurrent use and must never block longer than a short fixed timeout;
// the orchestrator treats a slow or failing cache as a miss.
//
// Invariant: a Get immediately following a successful Put with the same
// (question, provider) and within the TTL returns the stored answer
// (read-your-write within the process).
type AnswerCache interface {
	// Get returns the cached answer for a (question, provider) pair.
	// Returns domain.ErrNotFound on a miss or once the TTL has elapsed;
	// expired entries are evicted on read.
	Get(ctx context.Context, question, providerID string) (*domain.Answer, error)

	// Put stores an answer with the given TTL, replacing any previous entry.
	// Best effort: a write failure never fails the overall request.
	Put(ctx context.Context, question, providerID string, answer *domain.Answer, ttl time.Duration) error

	// Close releases resources.
	Close() error
}
