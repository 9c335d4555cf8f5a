// Package chunker splits normalized document text into overlapping
// segments suitable for embedding and retrieval.
package chunker

import (
	"fmt"
	"unicode"

	"github.com/custodia-labs/ansa/internal/core/domain"
)

// DefaultChunkSize is the default maximum number of characters per chunk.
const DefaultChunkSize = 1000

// DefaultChunkOverlap is the default number of characters shared between
// consecutive chunks.
const DefaultChunkOverlap = 200

// Chunker splits document content into overlapping chunks. Splits prefer
// the largest available semantic boundary inside the window: paragraph
// break, then line break, then whitespace, then a raw character cut.
// Sizes are measured in runes so a chunk never splits a multi-byte code
// point. Output is deterministic for a given document and configuration.
type Chunker struct {
	size    int
	overlap int
}

// New creates a chunker.
// Fails with domain.ErrInvalidConfiguration unless 0 <= overlap < size.
func New(size, overlap int) (*Chunker, error) {
	if size <= 0 {
		return nil, fmt.Errorf("%w: chunk size must be positive, got %d", domain.ErrInvalidConfiguration, size)
	}
	if overlap < 0 || overlap >= size {
		return nil, fmt.Errorf("%w: chunk overlap must satisfy 0 <= overlap < size, got overlap=%d size=%d",
			domain.ErrInvalidConfiguration, overlap, size)
	}
	return &Chunker{size: size, overlap: overlap}, nil
}

// Split produces the ordered chunk sequence for a document.
// Every chunk after the first overlaps the tail of its predecessor by
// exactly the configured overlap, best effort when a boundary cut left
// the window narrower than the overlap.
func (c *Chunker) Split(doc *domain.Document) []domain.Chunk {
	if doc.Content == "" {
		return nil
	}

	runes := []rune(doc.Content)
	estimated := len(runes)/(c.size-c.overlap) + 1
	chunks := make([]domain.Chunk, 0, estimated)

	start := 0
	position := 0

	for start < len(runes) {
		end := start + c.size
		if end >= len(runes) {
			end = len(runes)
		} else {
			end = cutPoint(runes, start, end)
		}

		chunks = append(chunks, domain.Chunk{
			ID:         domain.ChunkID(doc.ID, position),
			DocumentID: doc.ID,
			Content:    string(runes[start:end]),
			Position:   position,
			Metadata: map[string]any{
				"uri": doc.URI,
			},
		})
		position++

		if end == len(runes) {
			break
		}

		next := end - c.overlap
		if next <= start {
			// Boundary cut left a window narrower than the overlap;
			// advance by one rune to guarantee progress.
			next = start + 1
		}
		start = next
	}

	return chunks
}

// cutPoint finds where to end the chunk within runes[start:limit], preferring
// a paragraph break, then a line break, then whitespace. The cut lands just
// after the boundary. Falls back to the raw limit when no boundary exists.
func cutPoint(runes []rune, start, limit int) int {
	// Paragraph break: two consecutive newlines.
	for i := limit - 2; i > start; i-- {
		if runes[i] == '\n' && runes[i+1] == '\n' {
			return i + 2
		}
	}

	// Line break.
	for i := limit - 1; i > start; i-- {
		if runes[i] == '\n' {
			return i + 1
		}
	}

	// Any whitespace.
	for i := limit - 1; i > start; i-- {
		if unicode.IsSpace(runes[i]) {
			return i + 1
		}
	}

	return limit
}
