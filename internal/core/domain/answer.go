package domain

import "time"

// SourceRef is the condensed provenance of a chunk used to ground an answer.
type SourceRef struct {
	// ChunkID identifies the chunk.
	ChunkID string

	// DocumentID identifies the parent document.
	DocumentID string

	// Locator is a short human-readable source locator (e.g. "notes.txt#3").
	Locator string

	// Position is the chunk's ordinal position within its document.
	Position int

	// Score is the relevance score the chunk was retrieved with.
	Score float64
}

// Answer is the result of one answer request. It is immutable once
// constructed: written once to the answer cache, read many times until
// TTL expiry.
type Answer struct {
	// Text is the generated answer text.
	Text string

	// Sources lists the provenance of the chunks used for grounding.
	Sources []SourceRef

	// InputTokens is the number of prompt tokens consumed.
	InputTokens int

	// OutputTokens is the number of completion tokens produced.
	OutputTokens int

	// Cost is the monetary cost of the generation, in the provider's
	// billing currency. Provider-specific estimate, not comparable
	// across providers.
	Cost float64

	// ProviderID identifies the provider that produced the answer.
	ProviderID string

	// Cached reports whether the answer was served from the cache.
	Cached bool

	// CreatedAt is when the answer was generated.
	CreatedAt time.Time
}

// CostEvent is emitted to the cost ledger after every successful generation.
type CostEvent struct {
	// ProviderID identifies the billed provider.
	ProviderID string

	// InputTokens is the number of prompt tokens consumed.
	InputTokens int

	// OutputTokens is the number of completion tokens produced.
	OutputTokens int

	// Cost is the computed monetary cost.
	Cost float64

	// CreatedAt is when the generation completed.
	CreatedAt time.Time
}
