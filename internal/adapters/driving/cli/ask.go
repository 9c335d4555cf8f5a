package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/ansa/internal/core/domain"
)

var (
	askProvider string
	askTopK     int
	askTimeout  time.Duration
	askNoCache  bool
	askStream   bool
	askJSON     bool
)

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Ask a question against the indexed corpus",
	Long: `Retrieves the most relevant chunks for the question, builds a grounded
prompt and generates an answer with provenance, token counts and cost.`,
	Args: cobra.ExactArgs(1),
	RunE: runAsk,
}

func init() {
	askCmd.Flags().StringVar(&askProvider, "provider", "", "preferred provider ID (tried first)")
	askCmd.Flags().IntVarP(&askTopK, "top-k", "k", 0, "number of chunks to retrieve (0 = configured default)")
	askCmd.Flags().DurationVar(&askTimeout, "timeout", 0, "overall request deadline (0 = configured default)")
	askCmd.Flags().BoolVar(&askNoCache, "no-cache", false, "bypass the answer cache")
	askCmd.Flags().BoolVar(&askStream, "stream", false, "print the answer incrementally")
	askCmd.Flags().BoolVar(&askJSON, "json", false, "output the answer as JSON")
	rootCmd.AddCommand(askCmd)
}

func runAsk(cmd *cobra.Command, args []string) error {
	question := args[0]

	a, err := newApp(true)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := context.Background()
	if _, err := a.ingestor.RebuildIndex(ctx); err != nil {
		return fmt.Errorf("rebuild index: %w", err)
	}

	opts := domain.AskOptions{
		ProviderHint: askProvider,
		UseCache:     !askNoCache,
		TopK:         askTopK,
		Deadline:     askTimeout,
	}

	var answer *domain.Answer
	if askStream && !askJSON {
		answer, err = a.answers.AskStream(ctx, question, opts, func(delta string) error {
			cmd.Print(delta)
			return nil
		})
		if answer != nil {
			cmd.Println()
		}
	} else {
		answer, err = a.answers.Ask(ctx, question, opts)
	}
	if err != nil {
		return describeFailure(err)
	}

	if askJSON {
		data, err := json.MarshalIndent(answer, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal answer: %w", err)
		}
		cmd.Println(string(data))
		return nil
	}

	if !askStream {
		cmd.Println(answer.Text)
	}

	if len(answer.Sources) > 0 {
		cmd.Println()
		cmd.Println("Sources:")
		for i, src := range answer.Sources {
			cmd.Printf("  [%d] %s (%.2f)\n", i+1, src.Locator, src.Score)
		}
	}

	cmd.Println()
	cached := ""
	if answer.Cached {
		cached = ", cached"
	}
	cmd.Printf("provider=%s tokens=%d/%d cost=$%.6f%s\n",
		answer.ProviderID, answer.InputTokens, answer.OutputTokens, answer.Cost, cached)
	return nil
}

// describeFailure adds caller guidance to structured failures.
func describeFailure(err error) error {
	var se *domain.StructuredError
	if !errors.As(err, &se) {
		return err
	}
	if se.Retryable() {
		return fmt.Errorf("%w (retrying may succeed)", err)
	}
	return err
}
