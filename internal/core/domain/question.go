package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"
)

// AskOptions configures a single answer request.
type AskOptions struct {
	// ProviderHint selects a preferred provider by ID. When set, that
	// provider is tried first; the remaining chain is kept as fallback.
	ProviderHint string

	// UseCache enables the answer cache fast path.
	UseCache bool

	// TopK is the maximum number of chunks to retrieve (0 = configured default).
	TopK int

	// Deadline bounds the whole request (0 = configured default).
	Deadline time.Duration
}

// ScoredChunk pairs a retrieved chunk with its relevance score.
type ScoredChunk struct {
	// Chunk is the retrieved chunk.
	Chunk Chunk

	// Score is the relevance score (higher is better).
	Score float64
}

// RetrievedContext is an ordered sequence of scored chunks, best match first.
// Scores are non-increasing by position; length is bounded by top-K.
type RetrievedContext struct {
	// Chunks holds the ranked results.
	Chunks []ScoredChunk
}

// IsEmpty reports whether no context was retrieved.
func (rc RetrievedContext) IsEmpty() bool {
	return len(rc.Chunks) == 0
}

// Sources condenses the retrieved chunks into answer provenance.
func (rc RetrievedContext) Sources() []SourceRef {
	if len(rc.Chunks) == 0 {
		return nil
	}
	refs := make([]SourceRef, len(rc.Chunks))
	for i, sc := range rc.Chunks {
		refs[i] = SourceRef{
			ChunkID:    sc.Chunk.ID,
			DocumentID: sc.Chunk.DocumentID,
			Locator:    sc.Chunk.Provenance(),
			Position:   sc.Chunk.Position,
			Score:      sc.Score,
		}
	}
	return refs
}

// NormalizeQuestion canonicalises a question for cache key derivation:
// trimmed, lowercased, internal whitespace collapsed to single spaces.
// Trivially different phrasings of the same question share a cache entry;
// this is deliberate cache policy, not an implementation detail.
func NormalizeQuestion(question string) string {
	return strings.ToLower(strings.Join(strings.Fields(question), " "))
}

// CacheKey derives the stable answer cache key for a (question, provider) pair.
func CacheKey(question, providerID string) string {
	sum := sha256.Sum256([]byte(NormalizeQuestion(question) + "\x00" + providerID))
	return hex.EncodeToString(sum[:])
}
