package domain

import (
	"fmt"
	"time"
)

// Document represents an immutable unit of source text.
// It is created at ingestion time and never mutated; re-ingesting under the
// same ID replaces the document's chunk set in the corpus index.
type Document struct {
	// ID is the unique identifier for the document.
	ID string

	// URI is the original location (file path, URL, etc).
	URI string

	// Title is the human-readable title.
	Title string

	// Content is the full text content.
	Content string

	// Metadata contains arbitrary key-value pairs (e.g., origin path).
	Metadata map[string]any

	// CreatedAt is when the document was first ingested.
	CreatedAt time.Time

	// UpdatedAt is when the document was last re-ingested.
	UpdatedAt time.Time
}

// Chunk represents a retrieval unit within a document.
// Documents are split into overlapping chunks for granular retrieval.
type Chunk struct {
	// ID is the unique identifier for the chunk.
	// Chunk IDs are deterministic per (document, position) so that
	// re-indexing a document is idempotent.
	ID string

	// DocumentID links to the parent Document.
	DocumentID string

	// Content is the text content of this chunk.
	Content string

	// Position is the ordinal position within the document.
	Position int

	// Embedding is the vector representation for similarity search.
	Embedding []float32

	// Metadata contains chunk-specific key-value pairs.
	Metadata map[string]any
}

// ChunkID derives the deterministic chunk identifier for a document position.
func ChunkID(documentID string, position int) string {
	return fmt.Sprintf("%s:%04d", documentID, position)
}

// Provenance returns a short source locator for the chunk, used when
// labelling context blocks in prompts and reporting answer sources.
func (c Chunk) Provenance() string {
	uri, _ := c.Metadata["uri"].(string)
	if uri == "" {
		uri = c.DocumentID
	}
	return fmt.Sprintf("%s#%d", uri, c.Position)
}
