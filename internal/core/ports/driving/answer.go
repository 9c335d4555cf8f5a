package driving

import (
	"context"

	"github.com/custodia-labs/ansa/internal/core/domain"
)

// AnswerService turns a natural-language question into a grounded answer.
// Failures cross this boundary as *domain.StructuredError, never as
// unstructured errors.
type AnswerService interface {
	// Ask answers a question, returning the answer with provenance,
	// token counts and cost.
	Ask(ctx context.Context, question string, opts domain.AskOptions) (*domain.Answer, error)

	// AskStream answers a question incrementally, calling onDelta for
	// each text increment before the next is requested. Returning an
	// error from onDelta cancels the stream; the request then fails with
	// Cancelled and no partial answer is cached.
	AskStream(ctx context.Context, question string, opts domain.AskOptions, onDelta func(text string) error) (*domain.Answer, error)
}
