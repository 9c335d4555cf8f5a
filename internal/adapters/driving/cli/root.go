// Package cli implements the ansa command line interface.
package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/ansa/internal/adapters/driven/ai"
	"github.com/custodia-labs/ansa/internal/adapters/driven/config/file"
	indexmem "github.com/custodia-labs/ansa/internal/adapters/driven/index/memory"
	cachemem "github.com/custodia-labs/ansa/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/ansa/internal/adapters/driven/storage/sqlite"
	"github.com/custodia-labs/ansa/internal/chunker"
	"github.com/custodia-labs/ansa/internal/core/domain"
	"github.com/custodia-labs/ansa/internal/core/ports/driven"
	"github.com/custodia-labs/ansa/internal/core/services"
	"github.com/custodia-labs/ansa/internal/logger"
)

// version is set at build time via -ldflags.
var version = "dev"

var (
	cfgPath string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "ansa",
	Short: "Answer questions from your own documents",
	Long: `Ansa is a retrieval-augmented answering engine.

Index plain-text documents, then ask questions: ansa retrieves the most
relevant chunks, builds a grounded prompt and generates an answer through
a configured provider chain with retry, fallback and cost accounting.`,
	SilenceUsage:  true,
	SilenceErrors: false,
	PersistentPreRun: func(_ *cobra.Command, _ []string) {
		logger.SetVerbose(verbose)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "config file (default ~/.ansa/config.toml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose logging")
}

// Execute runs the root command. v is the build version.
func Execute(v string) error {
	if v != "" {
		version = v
	}
	return rootCmd.Execute()
}

// app bundles the wired services for one command invocation.
type app struct {
	cfg      *file.Config
	store    *sqlite.Store
	cache    driven.AnswerCache
	embedder driven.EmbeddingService
	index    *indexmem.Index
	ingestor *services.Ingestor

	providers []driven.GenerationProvider
	answers   *services.Orchestrator
}

// newApp loads configuration and wires the service graph. When
// withProviders is false no generation providers are created, so indexing
// works without any generation credentials.
func newApp(withProviders bool) (*app, error) {
	cfg, err := file.Load(cfgPath)
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg}

	a.store, err = sqlite.NewStore(cfg.Storage.DataDir)
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}

	if cfg.Cache.Enabled {
		switch cfg.Cache.Backend {
		case "", "sqlite":
			a.cache = a.store.AnswerCache()
		case "memory":
			a.cache = cachemem.NewAnswerCache()
		default:
			a.Close()
			return nil, fmt.Errorf("%w: unknown cache backend %q", domain.ErrInvalidConfiguration, cfg.Cache.Backend)
		}
	}

	a.embedder, err = ai.CreateEmbeddingService(cfg.EmbeddingSettings())
	if err != nil {
		a.Close()
		return nil, err
	}
	if a.embedder == nil {
		a.Close()
		return nil, fmt.Errorf("%w: no embedding service configured", domain.ErrInvalidConfiguration)
	}

	c, err := chunker.New(cfg.Chunking.Size, cfg.Chunking.Overlap)
	if err != nil {
		a.Close()
		return nil, err
	}

	a.index = indexmem.NewIndex()
	a.ingestor = services.NewIngestor(c, a.embedder, a.index, a.store.ChunkStore())

	if !withProviders {
		return a, nil
	}

	a.providers, err = ai.CreateGenerationProviders(cfg.GenerationSettings())
	if err != nil {
		a.Close()
		return nil, err
	}

	retriever := services.NewRetriever(a.embedder, a.index, 0)

	prompts, err := file.NewPromptStore("")
	if err != nil {
		a.Close()
		return nil, err
	}

	a.answers, err = services.NewOrchestrator(
		retriever,
		a.providers,
		a.cache,
		a.store.CostLedger(),
		services.NewPromptBuilder(prompts),
		cfg.OrchestratorOptions(),
	)
	if err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

// Close releases every resource the app holds.
func (a *app) Close() {
	for _, p := range a.providers {
		p.Close()
	}
	if a.embedder != nil {
		a.embedder.Close()
	}
	if a.cache != nil {
		a.cache.Close()
	}
	if a.index != nil {
		a.index.Close()
	}
	if a.store != nil {
		a.store.Close()
	}
}
