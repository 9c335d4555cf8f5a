// Package ollama provides a generation provider adapter using a local
// Ollama server. Generation is free of charge, so the price table is
// typically all zeros.
package ollama

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/custodia-labs/ansa/internal/core/domain"
	"github.com/custodia-labs/ansa/internal/core/ports/driven"
)

// Ensure Provider implements the interface.
var _ driven.GenerationProvider = (*Provider)(nil)

// Default configuration values.
const (
	DefaultBaseURL = "http://localhost:11434"
	DefaultModel   = "llama3.2"
	DefaultTimeout = 300 * time.Second
)

// Config holds configuration for the Ollama generation provider.
type Config struct {
	// BaseURL is the Ollama server URL (default: http://localhost:11434).
	BaseURL string

	// Timeout is the request timeout (default: 300s, local models are slow).
	Timeout time.Duration

	// Provider is the static identity and price table.
	Provider domain.ProviderConfig
}

// Provider generates answers using a local Ollama server.
type Provider struct {
	client  *http.Client
	baseURL string
	cfg     domain.ProviderConfig
}

// generateRequest is the Ollama /api/generate request format.
type generateRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`

	Options map[string]any `json:"options,omitempty"`
}

// generateResponse is one Ollama /api/generate response object. In
// streaming mode the server emits one JSON object per line with the
// final object carrying done=true and the eval counts.
type generateResponse struct {
	Response        string `json:"response"`
	Done            bool   `json:"done"`
	PromptEvalCount int    `json:"prompt_eval_count"`
	EvalCount       int    `json:"eval_count"`
	Error           string `json:"error,omitempty"`
}

// New creates a new Ollama generation provider.
func New(cfg Config) (*Provider, error) {
	if cfg.Provider.ID == "" {
		cfg.Provider.ID = "ollama"
	}
	if err := cfg.Provider.Validate(); err != nil {
		return nil, err
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Provider.Model == "" {
		cfg.Provider.Model = DefaultModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}

	return &Provider{
		client: &http.Client{
			Timeout: cfg.Timeout,
		},
		baseURL: cfg.BaseURL,
		cfg:     cfg.Provider,
	}, nil
}

// ID returns the stable provider identifier.
func (p *Provider) ID() string {
	return p.cfg.ID
}

// CountTokens approximates the token count at four characters per token.
// Ollama reports exact eval counts with each response.
func (p *Provider) CountTokens(text string) int {
	if text == "" {
		return 0
	}
	return (len(text) + 3) / 4
}

// Cost computes the monetary cost from the configured price table.
func (p *Provider) Cost(inputTokens, outputTokens int) float64 {
	return p.cfg.Cost(inputTokens, outputTokens)
}

// Generate produces a complete answer for the prompt.
func (p *Provider) Generate(ctx context.Context, prompt string, maxTokens int) (*driven.Generation, error) {
	body, err := p.send(ctx, generateRequest{
		Model:   p.cfg.Model,
		Prompt:  prompt,
		Stream:  false,
		Options: predictOptions(maxTokens),
	})
	if err != nil {
		return nil, err
	}
	defer body.Close()

	raw, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("%w: ollama: read response: %v", domain.ErrProviderTransient, err)
	}

	var resp generateResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("ollama: decode response: %w", err)
	}
	if resp.Error != "" {
		return nil, fmt.Errorf("ollama error: %s", resp.Error)
	}

	return &driven.Generation{
		Text:         resp.Response,
		InputTokens:  resp.PromptEvalCount,
		OutputTokens: resp.EvalCount,
	}, nil
}

// Stream produces the answer incrementally. Ollama streams newline
// delimited JSON objects rather than server-sent events.
func (p *Provider) Stream(ctx context.Context, prompt string, maxTokens int) (<-chan driven.StreamDelta, error) {
	body, err := p.send(ctx, generateRequest{
		Model:   p.cfg.Model,
		Prompt:  prompt,
		Stream:  true,
		Options: predictOptions(maxTokens),
	})
	if err != nil {
		return nil, err
	}

	deltas := make(chan driven.StreamDelta)
	go func() {
		defer close(deltas)
		defer body.Close()

		var inputTokens, outputTokens int
		scanner := bufio.NewScanner(body)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

		for scanner.Scan() {
			var chunk generateResponse
			if err := json.Unmarshal(scanner.Bytes(), &chunk); err != nil {
				continue
			}
			if chunk.Error != "" {
				deltas <- driven.StreamDelta{Err: fmt.Errorf("ollama error: %s", chunk.Error), Done: true}
				return
			}
			if chunk.Done {
				inputTokens = chunk.PromptEvalCount
				outputTokens = chunk.EvalCount
				break
			}
			if chunk.Response == "" {
				continue
			}

			select {
			case deltas <- driven.StreamDelta{Text: chunk.Response}:
			case <-ctx.Done():
				return
			}
		}

		if err := scanner.Err(); err != nil && ctx.Err() == nil {
			deltas <- driven.StreamDelta{Err: fmt.Errorf("%w: ollama: stream read: %v", domain.ErrProviderTransient, err), Done: true}
			return
		}

		select {
		case deltas <- driven.StreamDelta{
			Done:         true,
			InputTokens:  inputTokens,
			OutputTokens: outputTokens,
		}:
		case <-ctx.Done():
		}
	}()

	return deltas, nil
}

// send posts a generate request and returns the response body on HTTP 200.
func (p *Provider) send(ctx context.Context, reqBody generateRequest) (io.ReadCloser, error) {
	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(
		ctx,
		http.MethodPost,
		p.baseURL+"/api/generate",
		bytes.NewReader(jsonBody),
	)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		// A local server that is down is transient: it may come back.
		return nil, fmt.Errorf("%w: ollama: send request: %v", domain.ErrProviderTransient, err)
	}

	if resp.StatusCode != http.StatusOK {
		body, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()
		if readErr != nil {
			body = []byte("(unreadable body)")
		}
		return nil, classifyStatus(resp.StatusCode, string(body))
	}

	return resp.Body, nil
}

// classifyStatus maps an HTTP failure to the retry taxonomy.
func classifyStatus(status int, body string) error {
	switch {
	case status == http.StatusTooManyRequests:
		return fmt.Errorf("%w: ollama: status %d: %s", domain.ErrRateLimited, status, body)
	case status == http.StatusRequestTimeout || status >= 500:
		return fmt.Errorf("%w: ollama: status %d: %s", domain.ErrProviderTransient, status, body)
	default:
		return fmt.Errorf("ollama error (status %d): %s", status, body)
	}
}

// predictOptions limits the number of generated tokens when positive.
func predictOptions(maxTokens int) map[string]any {
	if maxTokens <= 0 {
		return nil
	}
	return map[string]any{"num_predict": maxTokens}
}

// Ping validates the service is reachable. This is a lightweight check that
// doesn't require a model to be loaded.
func (p *Provider) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/api/tags", http.NoBody)
	if err != nil {
		return fmt.Errorf("ollama: failed to create ping request: %w", err)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("ollama: ping failed (is the server running?): %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("ollama: API returned status %d", resp.StatusCode)
	}
	return nil
}

// Close releases resources.
func (p *Provider) Close() error {
	// HTTP client doesn't need explicit cleanup
	return nil
}
