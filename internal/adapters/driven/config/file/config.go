package file

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/custodia-labs/ansa/internal/core/domain"
	"github.com/custodia-labs/ansa/internal/core/services"
)

// Config is the full TOML configuration.
type Config struct {
	Engine    EngineConfig     `toml:"engine"`
	Chunking  ChunkingConfig   `toml:"chunking"`
	Cache     CacheConfig      `toml:"cache"`
	Retry     RetryConfig      `toml:"retry"`
	Storage   StorageConfig    `toml:"storage"`
	Embedding EmbeddingConfig  `toml:"embedding"`
	Providers []ProviderConfig `toml:"providers"`
}

// EngineConfig controls answer orchestration.
type EngineConfig struct {
	TopK             int  `toml:"top_k"`
	DeadlineSeconds  int  `toml:"deadline_seconds"`
	MaxAnswerTokens  int  `toml:"max_answer_tokens"`
	RequireGrounding bool `toml:"require_grounding"`
}

// ChunkingConfig controls document splitting.
type ChunkingConfig struct {
	Size    int `toml:"size"`
	Overlap int `toml:"overlap"`
}

// CacheConfig controls the answer cache.
type CacheConfig struct {
	Enabled    bool   `toml:"enabled"`
	Backend    string `toml:"backend"` // "sqlite" or "memory"
	TTLMinutes int    `toml:"ttl_minutes"`
	TimeoutMS  int    `toml:"timeout_ms"`
}

// RetryConfig controls per-provider retry behaviour.
type RetryConfig struct {
	MaxAttempts int `toml:"max_attempts"`
	BaseDelayMS int `toml:"base_delay_ms"`
	MaxDelayMS  int `toml:"max_delay_ms"`
}

// StorageConfig controls on-disk persistence.
type StorageConfig struct {
	DataDir string `toml:"data_dir"`
}

// EmbeddingConfig configures the embedding service.
type EmbeddingConfig struct {
	Kind       string `toml:"kind"`
	APIKey     string `toml:"api_key"`
	APIKeyEnv  string `toml:"api_key_env"`
	BaseURL    string `toml:"base_url"`
	Model      string `toml:"model"`
	Dimensions int    `toml:"dimensions"`
}

// ProviderConfig configures one generation provider.
type ProviderConfig struct {
	ID                string  `toml:"id"`
	Kind              string  `toml:"kind"`
	APIKey            string  `toml:"api_key"`
	APIKeyEnv         string  `toml:"api_key_env"`
	BaseURL           string  `toml:"base_url"`
	Model             string  `toml:"model"`
	InputPricePer1K   float64 `toml:"input_price_per_1k"`
	OutputPricePer1K  float64 `toml:"output_price_per_1k"`
	Priority          int     `toml:"priority"`
	RequestsPerSecond float64 `toml:"requests_per_second"`
}

// DefaultPath returns the default config file location, ~/.ansa/config.toml.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get home directory: %w", err)
	}
	return filepath.Join(home, ".ansa", "config.toml"), nil
}

// Default returns a configuration with sensible defaults and a local
// Ollama provider, so the engine works without any hosted API keys.
func Default() *Config {
	return &Config{
		Engine: EngineConfig{
			TopK:            5,
			DeadlineSeconds: 60,
			MaxAnswerTokens: 1024,
		},
		Chunking: ChunkingConfig{
			Size:    800,
			Overlap: 120,
		},
		Cache: CacheConfig{
			Enabled:    true,
			Backend:    "sqlite",
			TTLMinutes: 60,
			TimeoutMS:  250,
		},
		Retry: RetryConfig{
			MaxAttempts: 3,
			BaseDelayMS: 250,
			MaxDelayMS:  4000,
		},
		Embedding: EmbeddingConfig{
			Kind: "ollama",
		},
		Providers: []ProviderConfig{
			{ID: "ollama", Kind: "ollama", Priority: 1},
		},
	}
}

// Load reads configuration from path. A missing file yields defaults.
// If path is empty the default location is used.
func Load(path string) (*Config, error) {
	if path == "" {
		var err error
		path, err = DefaultPath()
		if err != nil {
			return nil, err
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg := Default()
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("%w: parse %s: %v", domain.ErrInvalidConfiguration, path, err)
	}
	return cfg, nil
}

// Save writes the configuration to path with restricted permissions.
// If path is empty the default location is used.
func Save(cfg *Config, path string) error {
	if path == "" {
		var err error
		path, err = DefaultPath()
		if err != nil {
			return err
		}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}

	data, err := toml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	return os.WriteFile(path, data, 0600)
}

// GenerationSettings converts the provider entries into domain settings,
// resolving API keys from the environment where api_key_env is set.
func (c *Config) GenerationSettings() []domain.GenerationSettings {
	settings := make([]domain.GenerationSettings, 0, len(c.Providers))
	for _, p := range c.Providers {
		id := p.ID
		if id == "" {
			id = p.Kind
		}
		settings = append(settings, domain.GenerationSettings{
			Kind:              domain.ProviderKind(p.Kind),
			APIKey:            resolveKey(p.APIKey, p.APIKeyEnv),
			BaseURL:           p.BaseURL,
			RequestsPerSecond: p.RequestsPerSecond,
			Provider: domain.ProviderConfig{
				ID:               id,
				Model:            p.Model,
				InputPricePer1K:  p.InputPricePer1K,
				OutputPricePer1K: p.OutputPricePer1K,
				Priority:         p.Priority,
			},
		})
	}
	return settings
}

// EmbeddingSettings converts the embedding section into domain settings.
func (c *Config) EmbeddingSettings() *domain.EmbeddingSettings {
	if c.Embedding.Kind == "" {
		return nil
	}
	return &domain.EmbeddingSettings{
		Kind:       domain.ProviderKind(c.Embedding.Kind),
		APIKey:     resolveKey(c.Embedding.APIKey, c.Embedding.APIKeyEnv),
		BaseURL:    c.Embedding.BaseURL,
		Model:      c.Embedding.Model,
		Dimensions: c.Embedding.Dimensions,
	}
}

// OrchestratorOptions converts engine, cache and retry sections into
// orchestrator options.
func (c *Config) OrchestratorOptions() services.Options {
	opts := services.Options{
		TopK:             c.Engine.TopK,
		Deadline:         time.Duration(c.Engine.DeadlineSeconds) * time.Second,
		MaxAnswerTokens:  c.Engine.MaxAnswerTokens,
		RequireGrounding: c.Engine.RequireGrounding,
		CacheTTL:         time.Duration(c.Cache.TTLMinutes) * time.Minute,
		CacheTimeout:     time.Duration(c.Cache.TimeoutMS) * time.Millisecond,
		Backoff: domain.BackoffPolicy{
			MaxAttempts: c.Retry.MaxAttempts,
			BaseDelay:   time.Duration(c.Retry.BaseDelayMS) * time.Millisecond,
			MaxDelay:    time.Duration(c.Retry.MaxDelayMS) * time.Millisecond,
		},
	}
	return opts
}

// resolveKey prefers the literal key, then the named environment variable.
func resolveKey(key, env string) string {
	if key != "" {
		return key
	}
	if env != "" {
		return os.Getenv(env)
	}
	return ""
}
