package services

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/custodia-labs/ansa/internal/core/domain"
	"github.com/custodia-labs/ansa/internal/core/ports/driven"
)

// mockProvider is a scriptable generation provider. Calls consume errs in
// order; a nil entry (or running past the end) succeeds with text.
type mockProvider struct {
	id    string
	text  string
	usage driven.Generation
	cost  float64
	errs  []error
	delay time.Duration

	streamDeltas []driven.StreamDelta

	mu          sync.Mutex
	calls       int
	lastPrompt  string
	streamCalls int
}

var _ driven.GenerationProvider = (*mockProvider)(nil)

func (m *mockProvider) ID() string { return m.id }

func (m *mockProvider) CountTokens(text string) int {
	if text == "" {
		return 0
	}
	return (len(text) + 3) / 4
}

func (m *mockProvider) Cost(_, _ int) float64 { return m.cost }

func (m *mockProvider) Generate(ctx context.Context, prompt string, _ int) (*driven.Generation, error) {
	m.mu.Lock()
	call := m.calls
	m.calls++
	m.lastPrompt = prompt
	m.mu.Unlock()

	if m.delay > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(m.delay):
		}
	}

	if call < len(m.errs) && m.errs[call] != nil {
		return nil, m.errs[call]
	}

	gen := m.usage
	if gen.Text == "" {
		gen.Text = m.text
	}
	return &gen, nil
}

func (m *mockProvider) Stream(ctx context.Context, prompt string, _ int) (<-chan driven.StreamDelta, error) {
	m.mu.Lock()
	call := m.streamCalls
	m.streamCalls++
	m.calls++
	m.lastPrompt = prompt
	m.mu.Unlock()

	if call < len(m.errs) && m.errs[call] != nil {
		return nil, m.errs[call]
	}

	deltas := make(chan driven.StreamDelta)
	go func() {
		defer close(deltas)
		for _, d := range m.streamDeltas {
			select {
			case deltas <- d:
			case <-ctx.Done():
				return
			}
		}
	}()
	return deltas, nil
}

func (m *mockProvider) Ping(context.Context) error { return nil }
func (m *mockProvider) Close() error               { return nil }

func (m *mockProvider) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func (m *mockProvider) prompt() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastPrompt
}

// stubRetriever returns a fixed context or error.
type stubRetriever struct {
	rc    domain.RetrievedContext
	err   error
	calls int
}

var _ ContextRetriever = (*stubRetriever)(nil)

func (s *stubRetriever) Retrieve(context.Context, string, int) (domain.RetrievedContext, error) {
	s.calls++
	if s.err != nil {
		return domain.RetrievedContext{}, s.err
	}
	return s.rc, nil
}

// letterEmbedder is a deterministic toy embedding service: 26 dimensions of
// letter frequency. Texts sharing vocabulary land close under cosine
// similarity, which is enough to exercise ranking end to end.
type letterEmbedder struct {
	err error
}

var _ driven.EmbeddingService = (*letterEmbedder)(nil)

func (e *letterEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	if e.err != nil {
		return nil, e.err
	}
	var vec [26]float32
	for _, r := range strings.ToLower(text) {
		if unicode.IsLetter(r) && r >= 'a' && r <= 'z' {
			vec[r-'a']++
		}
	}
	return vec[:], nil
}

func (e *letterEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		vec, err := e.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = vec
	}
	return out, nil
}

func (e *letterEmbedder) Dimensions() int           { return 26 }
func (e *letterEmbedder) ModelName() string         { return "letter-frequency" }
func (e *letterEmbedder) Ping(context.Context) error { return nil }
func (e *letterEmbedder) Close() error              { return nil }

// failingIndex always errors.
type failingIndex struct{}

var _ driven.CorpusIndex = (*failingIndex)(nil)

func (failingIndex) Upsert(context.Context, []domain.Chunk) error { return fmt.Errorf("index down") }
func (failingIndex) Query(context.Context, []float32, int) ([]domain.ScoredChunk, error) {
	return nil, fmt.Errorf("index down")
}
func (failingIndex) DeleteDocument(context.Context, string) error { return fmt.Errorf("index down") }
func (failingIndex) Close() error                                 { return nil }

// recordingLedger captures cost events in memory.
type recordingLedger struct {
	mu     sync.Mutex
	events []domain.CostEvent
}

var _ driven.CostLedger = (*recordingLedger)(nil)

func (l *recordingLedger) Record(_ context.Context, event domain.CostEvent) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, event)
	return nil
}

func (l *recordingLedger) Totals(context.Context) (map[string]driven.CostTotals, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	totals := make(map[string]driven.CostTotals)
	for _, e := range l.events {
		t := totals[e.ProviderID]
		t.Requests++
		t.InputTokens += int64(e.InputTokens)
		t.OutputTokens += int64(e.OutputTokens)
		t.Cost += e.Cost
		totals[e.ProviderID] = t
	}
	return totals, nil
}

func (l *recordingLedger) Close() error { return nil }

func (l *recordingLedger) recorded() []domain.CostEvent {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]domain.CostEvent, len(l.events))
	copy(out, l.events)
	return out
}

// mapPromptStore serves prompts from a map.
type mapPromptStore struct {
	prompts map[string]string
}

var _ driven.PromptStore = (*mapPromptStore)(nil)

func (s *mapPromptStore) Load(name string) (string, error) {
	if p, ok := s.prompts[name]; ok {
		return p, nil
	}
	return "", fmt.Errorf("prompt %q not found", name)
}

func (s *mapPromptStore) Reload() {}

// sampleContext builds a small ranked context for prompt and answer tests.
func sampleContext() domain.RetrievedContext {
	return domain.RetrievedContext{Chunks: []domain.ScoredChunk{
		{
			Chunk: domain.Chunk{
				ID: "doc-py:0000", DocumentID: "doc-py", Position: 0,
				Content:  "Python was created by Guido van Rossum and first released in 1991.",
				Metadata: map[string]any{"uri": "python.txt"},
			},
			Score: 0.94,
		},
		{
			Chunk: domain.Chunk{
				ID: "doc-go:0000", DocumentID: "doc-go", Position: 0,
				Content:  "Go was designed at Google by Griesemer, Pike and Thompson.",
				Metadata: map[string]any{"uri": "go.txt"},
			},
			Score: 0.41,
		},
	}}
}
