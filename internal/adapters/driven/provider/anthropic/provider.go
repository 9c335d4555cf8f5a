// Package anthropic provides a generation provider adapter using the
// Anthropic Messages API.
package anthropic

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

	"golang.org/x/time/rate"

	"github.com/custodia-labs/ansa/internal/core/domain"
	"github.com/custodia-labs/ansa/internal/core/ports/driven"
)

// Ensure Provider implements the interface.
var _ driven.GenerationProvider = (*Provider)(nil)

// Default configuration values.
const (
	DefaultBaseURL = "https://api.anthropic.com/v1"
	DefaultModel   = "claude-3-5-haiku-latest"
	DefaultTimeout = 120 * time.Second

	apiVersion = "2023-06-01"
)

// Config holds configuration for the Anthropic generation provider.
type Config struct {
	// APIKey is the Anthropic API key (required).
	APIKey string

	// BaseURL is the API base URL (default: https://api.anthropic.com/v1).
	BaseURL string

	// Timeout is the request timeout (default: 120s).
	Timeout time.Duration

	// RequestsPerSecond enables client-side rate limiting when positive.
	RequestsPerSecond float64

	// Provider is the static identity and price table.
	Provider domain.ProviderConfig
}

// Provider generates answers using the Anthropic Messages API.
type Provider struct {
	client  *http.Client
	baseURL string
	apiKey  string
	cfg     domain.ProviderConfig
	limiter *rate.Limiter
}

// messagesRequest is the Anthropic /messages request format.
type messagesRequest struct {
	Model     string       `json:"model"`
	MaxTokens int          `json:"max_tokens"`
	Messages  []messageMsg `json:"messages"`
	Stream    bool         `json:"stream,omitempty"`
}

// messageMsg is the Anthropic message format.
type messageMsg struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// messagesUsage is the Anthropic token usage block.
type messagesUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// messagesResponse is the Anthropic /messages response format.
type messagesResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	StopReason string        `json:"stop_reason"`
	Usage      messagesUsage `json:"usage"`
}

// streamEvent is one SSE event of a streaming response. The Anthropic
// stream multiplexes several event types over a single data payload.
type streamEvent struct {
	Type  string `json:"type"`
	Delta struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"delta"`
	Message struct {
		Usage messagesUsage `json:"usage"`
	} `json:"message"`
	Usage messagesUsage `json:"usage"`
}

// New creates a new Anthropic generation provider.
func New(cfg Config) (*Provider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("anthropic: %w: API key is required", domain.ErrInvalidConfiguration)
	}
	if cfg.Provider.ID == "" {
		cfg.Provider.ID = "anthropic"
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

	return &Provider{
		client: &http.Client{
			Timeout: cfg.Timeout,
		},
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		cfg:     cfg.Provider,
		limiter: limiter,
	}, nil
}

// ID returns the stable provider identifier.
func (p *Provider) ID() string {
	return p.cfg.ID
}

// CountTokens approximates the token count at four characters per token.
// The exact count comes back in the API usage block after each call.
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
	body, err := p.send(ctx, messagesRequest{
		Model:     p.cfg.Model,
		MaxTokens: maxTokens,
		Messages:  []messageMsg{{Role: "user", Content: prompt}},
	})
	if err != nil {
		return nil, err
	}
	defer body.Close()

	raw, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("%w: anthropic: read response: %v", domain.ErrProviderTransient, err)
	}

	var resp messagesResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("anthropic: decode response: %w", err)
	}

	var text strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	if text.Len() == 0 {
		return nil, fmt.Errorf("anthropic: no text content returned")
	}

	return &driven.Generation{
		Text:         text.String(),
		InputTokens:  resp.Usage.InputTokens,
		OutputTokens: resp.Usage.OutputTokens,
	}, nil
}

// Stream produces the answer incrementally over server-sent events.
func (p *Provider) Stream(ctx context.Context, prompt string, maxTokens int) (<-chan driven.StreamDelta, error) {
	body, err := p.send(ctx, messagesRequest{
		Model:     p.cfg.Model,
		MaxTokens: maxTokens,
		Messages:  []messageMsg{{Role: "user", Content: prompt}},
		Stream:    true,
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
			line := strings.TrimSpace(scanner.Text())
			if !strings.HasPrefix(line, "data:") {
				continue
			}
			data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))

			var event streamEvent
			if err := json.Unmarshal([]byte(data), &event); err != nil {
				continue
			}

			switch event.Type {
			case "message_start":
				inputTokens = event.Message.Usage.InputTokens
			case "content_block_delta":
				if event.Delta.Text == "" {
					continue
				}
				select {
				case deltas <- driven.StreamDelta{Text: event.Delta.Text}:
				case <-ctx.Done():
					return
				}
			case "message_delta":
				if event.Usage.OutputTokens > 0 {
					outputTokens = event.Usage.OutputTokens
				}
			case "message_stop":
				// Terminal event; usage already collected.
			}
		}

		if err := scanner.Err(); err != nil && ctx.Err() == nil {
			deltas <- driven.StreamDelta{Err: fmt.Errorf("%w: anthropic: stream read: %v", domain.ErrProviderTransient, err), Done: true}
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

// send posts a messages request and returns the response body on HTTP 200.
func (p *Provider) send(ctx context.Context, reqBody messagesRequest) (io.ReadCloser, error) {
	if p.limiter != nil {
		if err := p.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("anthropic: rate limiter: %w", err)
		}
	}

	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(
		ctx,
		http.MethodPost,
		p.baseURL+"/messages",
		bytes.NewReader(jsonBody),
	)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", p.apiKey)
	req.Header.Set("anthropic-version", apiVersion)

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: anthropic: send request: %v", domain.ErrProviderTransient, err)
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

// classifyStatus maps an HTTP failure to the retry taxonomy. Anthropic
// additionally signals overload with 529, which is transient.
func classifyStatus(status int, body string) error {
	switch {
	case status == http.StatusTooManyRequests:
		return fmt.Errorf("%w: anthropic: status %d: %s", domain.ErrRateLimited, status, body)
	case status == http.StatusRequestTimeout || status >= 500:
		return fmt.Errorf("%w: anthropic: status %d: %s", domain.ErrProviderTransient, status, body)
	default:
		return fmt.Errorf("anthropic error (status %d): %s", status, body)
	}
}

// Ping validates the API key with a minimal single-token request.
func (p *Provider) Ping(ctx context.Context) error {
	body, err := p.send(ctx, messagesRequest{
		Model:     p.cfg.Model,
		MaxTokens: 1,
		Messages:  []messageMsg{{Role: "user", Content: "ping"}},
	})
	if err != nil {
		return fmt.Errorf("anthropic: ping failed: %w", err)
	}
	body.Close()
	return nil
}

// Close releases resources.
func (p *Provider) Close() error {
	// HTTP client doesn't need explicit cleanup
	return nil
}
