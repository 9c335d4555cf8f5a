package file

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/ansa/internal/core/domain"
)

func TestLoad_MissingFileYieldsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "config.toml"))
	require.NoError(t, err)

	assert.Equal(t, 5, cfg.Engine.TopK)
	assert.Equal(t, 60, cfg.Engine.DeadlineSeconds)
	assert.Equal(t, "sqlite", cfg.Cache.Backend)
	assert.Equal(t, 3, cfg.Retry.MaxAttempts)
	require.Len(t, cfg.Providers, 1)
	assert.Equal(t, "ollama", cfg.Providers[0].Kind)
}

func TestLoad_InvalidTOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("engine = [broken"), 0600))

	_, err := Load(path)
	assert.ErrorIs(t, err, domain.ErrInvalidConfiguration)
}

func TestSaveLoad_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")

	cfg := Default()
	cfg.Engine.TopK = 8
	cfg.Cache.TTLMinutes = 120
	cfg.Providers = []ProviderConfig{
		{ID: "primary", Kind: "openai", APIKeyEnv: "OPENAI_API_KEY", Model: "gpt-4o-mini",
			InputPricePer1K: 0.00015, OutputPricePer1K: 0.0006, Priority: 1},
		{ID: "fallback", Kind: "ollama", Model: "llama3.2", Priority: 2},
	}
	require.NoError(t, Save(cfg, path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 8, loaded.Engine.TopK)
	assert.Equal(t, 120, loaded.Cache.TTLMinutes)
	require.Len(t, loaded.Providers, 2)
	assert.Equal(t, "primary", loaded.Providers[0].ID)
}

func TestGenerationSettings_ResolvesEnvKeys(t *testing.T) {
	t.Setenv("ANSA_TEST_OPENAI_KEY", "sk-from-env")

	cfg := Default()
	cfg.Providers = []ProviderConfig{
		{Kind: "openai", APIKeyEnv: "ANSA_TEST_OPENAI_KEY", Model: "gpt-4o-mini", Priority: 1},
		{ID: "claude", Kind: "anthropic", APIKey: "sk-literal", Model: "claude-3-5-haiku-latest", Priority: 2},
	}

	settings := cfg.GenerationSettings()
	require.Len(t, settings, 2)

	assert.Equal(t, "sk-from-env", settings[0].APIKey)
	assert.Equal(t, "openai", settings[0].Provider.ID, "ID defaults to kind")
	assert.Equal(t, "sk-literal", settings[1].APIKey, "literal key wins over env")
	assert.Equal(t, "claude", settings[1].Provider.ID)
}

func TestEmbeddingSettings(t *testing.T) {
	cfg := Default()
	cfg.Embedding = EmbeddingConfig{Kind: "openai", APIKey: "sk-test", Model: "text-embedding-3-small"}

	settings := cfg.EmbeddingSettings()
	require.NotNil(t, settings)
	assert.Equal(t, domain.ProviderKindOpenAI, settings.Kind)
	assert.Equal(t, "text-embedding-3-small", settings.Model)

	cfg.Embedding.Kind = ""
	assert.Nil(t, cfg.EmbeddingSettings())
}

func TestOrchestratorOptions(t *testing.T) {
	cfg := Default()
	cfg.Engine.DeadlineSeconds = 30
	cfg.Cache.TimeoutMS = 500
	cfg.Retry.BaseDelayMS = 100

	opts := cfg.OrchestratorOptions()
	assert.Equal(t, 30*time.Second, opts.Deadline)
	assert.Equal(t, 500*time.Millisecond, opts.CacheTimeout)
	assert.Equal(t, 100*time.Millisecond, opts.Backoff.BaseDelay)
	assert.Equal(t, time.Hour, opts.CacheTTL)
}
