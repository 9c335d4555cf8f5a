package domain

import (
	"fmt"
	"time"
)

// ProviderConfig is the static description of a generation backend.
// Loaded at process start; immutable for the process lifetime.
type ProviderConfig struct {
	// ID uniquely identifies the provider (e.g. "openai", "ollama").
	ID string

	// Model is the backend model name.
	Model string

	// InputPricePer1K is the price per 1000 input tokens.
	InputPricePer1K float64

	// OutputPricePer1K is the price per 1000 output tokens.
	OutputPricePer1K float64

	// Priority orders providers for fallback (lower is tried first).
	Priority int
}

// Validate checks the configuration for fatal misconfiguration.
func (c ProviderConfig) Validate() error {
	if c.ID == "" {
		return fmt.Errorf("%w: provider ID is required", ErrInvalidConfiguration)
	}
	if c.InputPricePer1K < 0 || c.OutputPricePer1K < 0 {
		return fmt.Errorf("%w: provider %q has negative token prices", ErrInvalidConfiguration, c.ID)
	}
	return nil
}

// Cost computes the monetary cost for a token usage pair.
// Pure function of the price table; no I/O.
func (c ProviderConfig) Cost(inputTokens, outputTokens int) float64 {
	return float64(inputTokens)/1000*c.InputPricePer1K +
		float64(outputTokens)/1000*c.OutputPricePer1K
}

// BackoffPolicy controls retries against a single provider.
// The delay for attempt n is BaseDelay * 2^n, capped at MaxDelay.
type BackoffPolicy struct {
	// MaxAttempts is the total number of attempts per provider,
	// including the first one.
	MaxAttempts int

	// BaseDelay is the delay before the first retry.
	BaseDelay time.Duration

	// MaxDelay caps the exponential growth.
	MaxDelay time.Duration
}

// DefaultBackoffPolicy returns the policy used when none is configured.
func DefaultBackoffPolicy() BackoffPolicy {
	return BackoffPolicy{
		MaxAttempts: 3,
		BaseDelay:   250 * time.Millisecond,
		MaxDelay:    4 * time.Second,
	}
}

// Validate checks the policy for fatal misconfiguration.
func (p BackoffPolicy) Validate() error {
	if p.MaxAttempts < 1 {
		return fmt.Errorf("%w: backoff max attempts must be >= 1", ErrInvalidConfiguration)
	}
	if p.BaseDelay < 0 || p.MaxDelay < 0 {
		return fmt.Errorf("%w: backoff delays must be non-negative", ErrInvalidConfiguration)
	}
	return nil
}

// Delay returns the backoff delay preceding the given retry.
// Attempt 0 is the first retry (after the initial attempt failed).
func (p BackoffPolicy) Delay(attempt int) time.Duration {
	if p.BaseDelay <= 0 {
		return 0
	}
	d := p.BaseDelay
	for i := 0; i < attempt; i++ {
		d *= 2
		if p.MaxDelay > 0 && d >= p.MaxDelay {
			return p.MaxDelay
		}
	}
	if p.MaxDelay > 0 && d > p.MaxDelay {
		return p.MaxDelay
	}
	return d
}
