// Package ai provides factory functions for creating AI service adapters.
package ai

import (
	"context"
	"fmt"
	"sort"
	"time"

	ollamaembed "github.com/custodia-labs/ansa/internal/adapters/driven/embedding/ollama"
	openaiembed "github.com/custodia-labs/ansa/internal/adapters/driven/embedding/openai"
	anthropicgen "github.com/custodia-labs/ansa/internal/adapters/driven/provider/anthropic"
	ollamagen "github.com/custodia-labs/ansa/internal/adapters/driven/provider/ollama"
	openaigen "github.com/custodia-labs/ansa/internal/adapters/driven/provider/openai"
	"github.com/custodia-labs/ansa/internal/core/domain"
	"github.com/custodia-labs/ansa/internal/core/ports/driven"
)

// pingTimeout is the maximum time to wait for service connectivity validation.
const pingTimeout = 5 * time.Second

// CreateGenerationProviders creates one provider per configured entry,
// ordered by ascending priority (lower number tries first). Entries that
// are not configured are skipped.
func CreateGenerationProviders(settings []domain.GenerationSettings) ([]driven.GenerationProvider, error) {
	ordered := make([]domain.GenerationSettings, 0, len(settings))
	for _, s := range settings {
		if s.IsConfigured() {
			ordered = append(ordered, s)
		}
	}
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Provider.Priority < ordered[j].Provider.Priority
	})

	providers := make([]driven.GenerationProvider, 0, len(ordered))
	for _, s := range ordered {
		provider, err := CreateGenerationProvider(s)
		if err != nil {
			for _, p := range providers {
				p.Close()
			}
			return nil, err
		}
		providers = append(providers, provider)
	}
	return providers, nil
}

// CreateGenerationProvider creates the appropriate provider for the settings.
func CreateGenerationProvider(settings domain.GenerationSettings) (driven.GenerationProvider, error) {
	switch settings.Kind {
	case domain.ProviderKindOpenAI:
		return openaigen.New(openaigen.Config{
			APIKey:            settings.APIKey,
			BaseURL:           settings.BaseURL,
			RequestsPerSecond: settings.RequestsPerSecond,
			Provider:          settings.Provider,
		})

	case domain.ProviderKindAnthropic:
		return anthropicgen.New(anthropicgen.Config{
			APIKey:            settings.APIKey,
			BaseURL:           settings.BaseURL,
			RequestsPerSecond: settings.RequestsPerSecond,
			Provider:          settings.Provider,
		})

	case domain.ProviderKindOllama:
		return ollamagen.New(ollamagen.Config{
			BaseURL:  settings.BaseURL,
			Provider: settings.Provider,
		})

	default:
		return nil, fmt.Errorf("%w: unsupported generation provider: %s",
			domain.ErrInvalidConfiguration, settings.Kind)
	}
}

// CreateEmbeddingService creates the appropriate embedding service.
// Returns nil if the provider is not configured.
func CreateEmbeddingService(settings *domain.EmbeddingSettings) (driven.EmbeddingService, error) {
	if settings == nil || !settings.IsConfigured() {
		return nil, nil
	}

	switch settings.Kind {
	case domain.ProviderKindOllama:
		return ollamaembed.NewEmbeddingService(ollamaembed.Config{
			BaseURL:    settings.BaseURL,
			Model:      settings.Model,
			Dimensions: settings.Dimensions,
		}), nil

	case domain.ProviderKindOpenAI:
		return openaiembed.NewEmbeddingService(openaiembed.Config{
			APIKey:     settings.APIKey,
			BaseURL:    settings.BaseURL,
			Model:      settings.Model,
			Dimensions: settings.Dimensions,
		})

	case domain.ProviderKindAnthropic:
		// Anthropic does not support embeddings.
		return nil, fmt.Errorf("%w: anthropic does not support embeddings, use ollama or openai",
			domain.ErrInvalidConfiguration)

	default:
		return nil, fmt.Errorf("%w: unsupported embedding provider: %s",
			domain.ErrInvalidConfiguration, settings.Kind)
	}
}

// CreateAndValidateEmbeddingService creates an embedding service and
// validates connectivity. Returns nil, nil when not configured.
func CreateAndValidateEmbeddingService(settings *domain.EmbeddingSettings) (driven.EmbeddingService, error) {
	svc, err := CreateEmbeddingService(settings)
	if err != nil || svc == nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()

	if err := svc.Ping(ctx); err != nil {
		svc.Close()
		return nil, fmt.Errorf("embedding service unreachable: %w", err)
	}
	return svc, nil
}

// ValidateGenerationConfig validates provider settings by creating a
// provider and pinging it. Intended for configuration checks.
func ValidateGenerationConfig(settings domain.GenerationSettings) error {
	if !settings.IsConfigured() {
		return nil
	}

	provider, err := CreateGenerationProvider(settings)
	if err != nil {
		return err
	}
	defer provider.Close()

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()
	return provider.Ping(ctx)
}
