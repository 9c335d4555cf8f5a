package driven

import "context"

// GenerationProvider is a uniform interface over a generative backend.
// Each implementation knows how to count tokens for its model, produce a
// complete answer, produce an incremental answer, and compute monetary
// cost from its static price table.
//
// Implementations may include:
//   - OpenAI (chat completions)
//   - Anthropic (messages)
//   - Ollama (local models)
type GenerationProvider interface {
	// ID returns the stable provider identifier used for cache keys,
	// cost events and fallback ordering.
	ID() string

	// CountTokens counts tokens in text using the provider's tokenizer
	// or a documented approximation. Pure; no I/O.
	CountTokens(text string) int

	// Generate produces a complete answer for the prompt.
	// Failures are classified: transient ones (timeout, rate limit,
	// 5xx-equivalent) wrap domain.ErrProviderTransient or
	// domain.ErrRateLimited so the caller can retry; everything else is
	// permanent and skips straight to the next provider.
	Generate(ctx context.Context, prompt string, maxTokens int) (*Generation, error)

	// Stream produces the answer incrementally. The returned channel is
	// closed when the provider signals completion or the context is
	// cancelled; a terminal error, if any, is carried by the final delta.
	// Cancelling the context releases the provider connection.
	Stream(ctx context.Context, prompt string, maxTokens int) (<-chan StreamDelta, error)

	// Cost computes the monetary cost of a token usage pair from the
	// provider's price table. Pure; no I/O.
	Cost(inputTokens, outputTokens int) float64

	// Ping validates the backend is reachable without running inference.
	Ping(ctx context.Context) error

	// Close releases resources.
	Close() error
}

// Generation is the result of a single complete generation call.
type Generation struct {
	// Text is the generated text.
	Text string

	// InputTokens is the number of prompt tokens consumed, as reported
	// by the backend or counted locally when the backend omits usage.
	InputTokens int

	// OutputTokens is the number of completion tokens produced.
	OutputTokens int
}

// StreamDelta is one increment of a streaming generation.
type StreamDelta struct {
	// Text is the text increment (may be empty on the terminal delta).
	Text string

	// Done marks the final delta of the stream.
	Done bool

	// InputTokens and OutputTokens carry usage on the terminal delta.
	InputTokens  int
	OutputTokens int

	// Err carries a terminal stream error, if any.
	Err error
}
