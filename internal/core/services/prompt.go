package services

import (
	"fmt"
	"strings"

	"github.com/custodia-labs/ansa/internal/core/domain"
	"github.com/custodia-labs/ansa/internal/core/ports/driven"
)

// defaultAnswerSystemPrompt is the fallback when no PromptStore is configured.
const defaultAnswerSystemPrompt = `You are a careful assistant that answers questions using only the provided context.
Cite the bracketed source labels you relied on. If the context does not contain
the answer, say that you don't know instead of guessing.`

// defaultAnswerUserPrompt is the fallback when no PromptStore is configured.
const defaultAnswerUserPrompt = `Context:
%s

Question: %s

Answer:`

// emptyContextPlaceholder is rendered when no chunks were retrieved.
const emptyContextPlaceholder = "(no relevant context was found)"

// PromptBuilder deterministically renders the system instructions, the
// formatted context and the question into a single prompt. Pure and
// side-effect free; it can only fail on template misconfiguration.
type PromptBuilder struct {
	store driven.PromptStore
}

// NewPromptBuilder creates a prompt builder. The store is optional; when nil
// the builder uses hardcoded default templates.
func NewPromptBuilder(store driven.PromptStore) *PromptBuilder {
	return &PromptBuilder{store: store}
}

// Build renders the final prompt for a question and its retrieved context.
func (b *PromptBuilder) Build(question string, rc domain.RetrievedContext) (string, error) {
	system := b.loadPrompt(driven.PromptAnswerSystem, defaultAnswerSystemPrompt)
	user := b.loadPrompt(driven.PromptAnswerUser, defaultAnswerUserPrompt)

	if strings.Count(user, "%s") != 2 {
		return "", fmt.Errorf("%w: answer prompt template needs exactly two %%s placeholders (context, question)",
			domain.ErrInvalidConfiguration)
	}

	rendered := fmt.Sprintf(user, FormatContext(rc), question)
	return system + "\n\n" + rendered, nil
}

// FormatContext renders retrieved chunks into labelled context blocks.
// Each chunk carries its provenance so answers can cite sources.
func FormatContext(rc domain.RetrievedContext) string {
	if rc.IsEmpty() {
		return emptyContextPlaceholder
	}

	var sb strings.Builder
	for i, sc := range rc.Chunks {
		if i > 0 {
			sb.WriteString("\n\n")
		}
		fmt.Fprintf(&sb, "[%d] %s\n%s", i+1, sc.Chunk.Provenance(), strings.TrimSpace(sc.Chunk.Content))
	}
	return sb.String()
}

// loadPrompt loads a prompt from the store, falling back to the default if unavailable.
func (b *PromptBuilder) loadPrompt(name, fallback string) string {
	if b.store == nil {
		return fallback
	}
	prompt, err := b.store.Load(name)
	if err != nil || prompt == "" {
		return fallback
	}
	return prompt
}
