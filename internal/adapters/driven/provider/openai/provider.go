// Package openai provides a generation provider adapter using OpenAI API.
package openai

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/pkoukk/tiktoken-go"
	"golang.org/x/time/rate"

	"github.com/custodia-labs/ansa/internal/core/domain"
	"github.com/custodia-labs/ansa/internal/core/ports/driven"
)

// Ensure Provider implements the interface.
var _ driven.GenerationProvider = (*Provider)(nil)

// Default configuration values.
const (
	DefaultBaseURL = "https://api.openai.com/v1"
	DefaultModel   = "gpt-4o-mini"
	DefaultTimeout = 120 * time.Second
)

// Config holds configuration for the OpenAI generation provider.
type Config struct {
	// APIKey is the OpenAI API key (required).
	APIKey string

	// BaseURL is the API base URL (default: https://api.openai.com/v1).
	// Can be changed for Azure OpenAI or compatible APIs.
	BaseURL string

	// Timeout is the request timeout (default: 120s).
	Timeout time.Duration

	// RequestsPerSecond enables client-side rate limiting when positive.
	RequestsPerSecond float64

	// Provider is the static identity and price table.
	Provider domain.ProviderConfig
}

// Provider generates answers using the OpenAI chat completions API.
type Provider struct {
	client  *http.Client
	baseURL string
	apiKey  string
	cfg     domain.ProviderConfig
	limiter *rate.Limiter
	encoder *tiktoken.Tiktoken
}

// chatCompletionRequest is the OpenAI /chat/completions request format.
type chatCompletionRequest struct {
	Model         string              `json:"model"`
	Messages      []chatCompletionMsg `json:"messages"`
	MaxTokens     int                 `json:"max_tokens,omitempty"`
	Stream        bool                `json:"stream,omitempty"`
	StreamOptions *streamOptions      `json:"stream_options,omitempty"`
}

// chatCompletionMsg is the OpenAI chat message format.
type chatCompletionMsg struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// streamOptions requests usage reporting on the final stream chunk.
type streamOptions struct {
	IncludeUsage bool `json:"include_usage"`
}

// usage is the OpenAI token usage block.
type usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
}

// chatCompletionResponse is the OpenAI /chat/completions response format.
type chatCompletionResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage usage `json:"usage"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

// chatCompletionChunk is one SSE chunk of a streaming response.
type chatCompletionChunk struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
	} `json:"choices"`
	Usage *usage `json:"usage"`
}

// New creates a new OpenAI generation provider.
func New(cfg Config) (*Provider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai: %w: API key is required", domain.ErrInvalidConfiguration)
	}
	if cfg.Provider.ID == "" {
		cfg.Provider.ID = "openai"
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

	var limiter *rate.Limiter
	if cfg.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	}

	// Exact token counts when the model's encoding is available, a
	// character heuristic otherwise.
	encoder, err := tiktoken.EncodingForModel(cfg.Provider.Model)
	if err != nil {
		encoder = nil
	}

	return &Provider{
		client: &http.Client{
			Timeout: cfg.Timeout,
		},
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		cfg:     cfg.Provider,
		limiter: limiter,
		encoder: encoder,
	}, nil
}

// ID returns the stable provider identifier.
func (p *Provider) ID() string {
	return p.cfg.ID
}

// CountTokens counts tokens using the model's tokenizer when available,
// falling back to an approximation of four characters per token.
func (p *Provider) CountTokens(text string) int {
	if text == "" {
		return 0
	}
	if p.encoder != nil {
		return len(p.encoder.Encode(text, nil, nil))
	}
	return (len(text) + 3) / 4
}

// Cost computes the monetary cost from the configured price table.
func (p *Provider) Cost(inputTokens, outputTokens int) float64 {
	return p.cfg.Cost(inputTokens, outputTokens)
}

// Generate produces a complete answer for the prompt.
func (p *Provider) Generate(ctx context.Context, prompt string, maxTokens int) (*driven.Generation, error) {
	body, err := p.send(ctx, chatCompletionRequest{
		Model:     p.cfg.Model,
		Messages:  []chatCompletionMsg{{Role: "user", Content: prompt}},
		MaxTokens: maxTokens,
	})
	if err != nil {
		return nil, err
	}
	defer body.Close()

	raw, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("%w: openai: read response: %v", domain.ErrProviderTransient, err)
	}

	var resp chatCompletionResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("openai: decode response: %w", err)
	}
	if resp.Error != nil {
		return nil, fmt.Errorf("openai error: %s", resp.Error.Message)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("openai: no response choices returned")
	}

	gen := &driven.Generation{
		Text:         resp.Choices[0].Message.Content,
		InputTokens:  resp.Usage.PromptTokens,
		OutputTokens: resp.Usage.CompletionTokens,
	}
	if gen.InputTokens == 0 {
		gen.InputTokens = p.CountTokens(prompt)
	}
	if gen.OutputTokens == 0 {
		gen.OutputTokens = p.CountTokens(gen.Text)
	}
	return gen, nil
}

// Stream produces the answer incrementally over server-sent events.
func (p *Provider) Stream(ctx context.Context, prompt string, maxTokens int) (<-chan driven.StreamDelta, error) {
	body, err := p.send(ctx, chatCompletionRequest{
		Model:         p.cfg.Model,
		Messages:      []chatCompletionMsg{{Role: "user", Content: prompt}},
		MaxTokens:     maxTokens,
		Stream:        true,
		StreamOptions: &streamOptions{IncludeUsage: true},
	})
	if err != nil {
		return nil, err
	}

	deltas := make(chan driven.StreamDelta)
	go func() {
		defer close(deltas)
		defer body.Close()

		var finalUsage usage
		scanner := bufio.NewScanner(body)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if !strings.HasPrefix(line, "data:") {
				continue
			}
			data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
			if data == "[DONE]" {
				break
			}

			var chunk chatCompletionChunk
			if err := json.Unmarshal([]byte(data), &chunk); err != nil {
				continue
			}
			if chunk.Usage != nil {
				finalUsage = *chunk.Usage
			}
			if len(chunk.Choices) == 0 || chunk.Choices[0].Delta.Content == "" {
				continue
			}

			select {
			case deltas <- driven.StreamDelta{Text: chunk.Choices[0].Delta.Content}:
			case <-ctx.Done():
				return
			}
		}

		if err := scanner.Err(); err != nil && ctx.Err() == nil {
			deltas <- driven.StreamDelta{Err: fmt.Errorf("%w: openai: stream read: %v", domain.ErrProviderTransient, err), Done: true}
			return
		}

		select {
		case deltas <- driven.StreamDelta{
			Done:         true,
			InputTokens:  finalUsage.PromptTokens,
			OutputTokens: finalUsage.CompletionTokens,
		}:
		case <-ctx.Done():
		}
	}()

	return deltas, nil
}

// send posts a chat completion request and returns the response body on
// HTTP 200. Non-200 statuses are classified into the retry taxonomy.
func (p *Provider) send(ctx context.Context, reqBody chatCompletionRequest) (io.ReadCloser, error) {
	if p.limiter != nil {
		if err := p.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("openai: rate limiter: %w", err)
		}
	}

	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(
		ctx,
		http.MethodPost,
		p.baseURL+"/chat/completions",
		bytes.NewReader(jsonBody),
	)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: openai: send request: %v", domain.ErrProviderTransient, err)
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

// classifyStatus maps an HTTP failure to the retry taxonomy: 429 is rate
// limited, 408 and 5xx are transient, everything else is permanent.
func classifyStatus(status int, body string) error {
	switch {
	case status == http.StatusTooManyRequests:
		return fmt.Errorf("%w: openai: status %d: %s", domain.ErrRateLimited, status, body)
	case status == http.StatusRequestTimeout || status >= 500:
		return fmt.Errorf("%w: openai: status %d: %s", domain.ErrProviderTransient, status, body)
	default:
		return fmt.Errorf("openai error (status %d): %s", status, body)
	}
}

// Ping validates the service is reachable by checking the /models endpoint.
// This is a lightweight check that validates the API key without running inference.
func (p *Provider) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/models", http.NoBody)
	if err != nil {
		return fmt.Errorf("openai: failed to create ping request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("openai: ping failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("openai: API returned status %d (failed to read body: %w)", resp.StatusCode, err)
		}
		return fmt.Errorf("openai: API returned status %d: %s", resp.StatusCode, string(body))
	}
	return nil
}

// Close releases resources.
func (p *Provider) Close() error {
	// HTTP client doesn't need explicit cleanup
	return nil
}
