package domain

// ProviderKind identifies which adapter implementation backs a provider.
type ProviderKind string

// Supported provider kinds.
const (
	ProviderKindOpenAI    ProviderKind = "openai"
	ProviderKindAnthropic ProviderKind = "anthropic"
	ProviderKindOllama    ProviderKind = "ollama"
)

// GenerationSettings describes one configured generation provider.
type GenerationSettings struct {
	// Kind selects the adapter implementation.
	Kind ProviderKind

	// APIKey authenticates hosted providers. Unused for ollama.
	APIKey string

	// BaseURL overrides the provider's default endpoint.
	BaseURL string

	// RequestsPerSecond enables client-side rate limiting when positive.
	RequestsPerSecond float64

	// Provider is the identity, model, price table and fallback priority.
	Provider ProviderConfig
}

// IsConfigured reports whether the settings are complete enough to
// create a provider. Ollama runs locally and needs no API key.
func (s *GenerationSettings) IsConfigured() bool {
	if s == nil || s.Kind == "" {
		return false
	}
	if s.Kind == ProviderKindOllama {
		return true
	}
	return s.APIKey != ""
}

// EmbeddingSettings describes the configured embedding service.
type EmbeddingSettings struct {
	// Kind selects the adapter implementation.
	Kind ProviderKind

	// APIKey authenticates hosted providers. Unused for ollama.
	APIKey string

	// BaseURL overrides the provider's default endpoint.
	BaseURL string

	// Model is the embedding model name.
	Model string

	// Dimensions overrides the model's default vector size.
	Dimensions int
}

// IsConfigured reports whether the settings are complete enough to
// create an embedding service.
func (s *EmbeddingSettings) IsConfigured() bool {
	if s == nil || s.Kind == "" {
		return false
	}
	if s.Kind == ProviderKindOllama {
		return true
	}
	return s.APIKey != ""
}
