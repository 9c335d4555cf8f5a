package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/custodia-labs/ansa/internal/core/domain"
	"github.com/custodia-labs/ansa/internal/core/ports/driven"
	"github.com/custodia-labs/ansa/internal/logger"
)

// generate runs the provider fallback policy: each provider in priority
// order gets up to MaxAttempts tries for transient failures, with
// exponential backoff between tries; permanent failures advance to the
// next provider after a single attempt. When every provider is exhausted
// the request fails with GenerationUnavailable.
//
// The returned attempt count is the total across all providers.
func (o *Orchestrator) generate(
	ctx context.Context,
	prompt string,
	hint string,
	onDelta func(string) error,
) (*driven.Generation, driven.GenerationProvider, int, error) {
	providers := o.orderProviders(hint)

	attempts := 0
	var lastProvider driven.GenerationProvider
	var lastErr error

	for _, p := range providers {
		lastProvider = p

		for try := 0; try < o.opts.Backoff.MaxAttempts; try++ {
			if try > 0 {
				delay := o.opts.Backoff.Delay(try - 1)
				logger.Debug("Provider %s: retry %d after %v", p.ID(), try, delay)
				select {
				case <-ctx.Done():
					return nil, p, attempts, mapContextErr(ctx.Err())
				case <-time.After(delay):
				}
			}

			attempts++
			gen, err := o.invoke(ctx, p, prompt, onDelta)
			if err == nil {
				logger.Info("Provider %s answered after %d attempt(s)", p.ID(), attempts)
				return gen, p, attempts, nil
			}
			lastErr = err

			// The overall deadline and caller cancellation win over any
			// per-provider policy.
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, p, attempts, mapContextErr(ctxErr)
			}
			if errors.Is(err, domain.ErrCancelled) {
				return nil, p, attempts, err
			}

			if !domain.IsRetryableProviderError(err) {
				logger.Warn("Provider %s failed permanently, advancing: %v", p.ID(), err)
				break
			}
			logger.Warn("Provider %s transient failure (attempt %d): %v", p.ID(), try+1, err)
		}
	}

	err := fmt.Errorf("%w: %d attempt(s) across %d provider(s), last error: %v",
		domain.ErrGenerationUnavailable, attempts, len(providers), lastErr)
	return nil, lastProvider, attempts, err
}

// invoke runs a single generation attempt, streaming when a delta consumer
// is supplied.
func (o *Orchestrator) invoke(
	ctx context.Context,
	p driven.GenerationProvider,
	prompt string,
	onDelta func(string) error,
) (*driven.Generation, error) {
	if onDelta == nil {
		return p.Generate(ctx, prompt, o.opts.MaxAnswerTokens)
	}

	streamCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	deltas, err := p.Stream(streamCtx, prompt, o.opts.MaxAnswerTokens)
	if err != nil {
		return nil, err
	}

	var sb strings.Builder
	var inputTokens, outputTokens int

	for delta := range deltas {
		if delta.Err != nil {
			return nil, delta.Err
		}
		if delta.Text != "" {
			if err := onDelta(delta.Text); err != nil {
				// Release the provider connection and drain the channel
				// so the adapter goroutine can exit.
				cancel()
				for range deltas {
				}
				return nil, fmt.Errorf("%w: stream consumer aborted: %v", domain.ErrCancelled, err)
			}
			sb.WriteString(delta.Text)
		}
		if delta.Done {
			inputTokens = delta.InputTokens
			outputTokens = delta.OutputTokens
		}
	}

	if streamCtx.Err() != nil {
		return nil, mapContextErr(streamCtx.Err())
	}

	// Backends that omit streaming usage get local token counts.
	if inputTokens == 0 {
		inputTokens = p.CountTokens(prompt)
	}
	if outputTokens == 0 {
		outputTokens = p.CountTokens(sb.String())
	}

	return &driven.Generation{
		Text:         sb.String(),
		InputTokens:  inputTokens,
		OutputTokens: outputTokens,
	}, nil
}

// orderProviders returns the fallback chain, moving the hinted provider to
// the front when it exists. An unknown hint leaves the order untouched.
func (o *Orchestrator) orderProviders(hint string) []driven.GenerationProvider {
	if hint == "" {
		return o.providers
	}
	for i, p := range o.providers {
		if p.ID() == hint {
			ordered := make([]driven.GenerationProvider, 0, len(o.providers))
			ordered = append(ordered, p)
			ordered = append(ordered, o.providers[:i]...)
			ordered = append(ordered, o.providers[i+1:]...)
			return ordered
		}
	}
	logger.Warn("Unknown provider hint %q, keeping configured order", hint)
	return o.providers
}

// mapContextErr converts context termination into the domain taxonomy.
func mapContextErr(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", domain.ErrDeadlineExceeded, err)
	}
	return fmt.Errorf("%w: %v", domain.ErrCancelled, err)
}
