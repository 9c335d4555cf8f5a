package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/spf13/cobra"
)

var costsJSON bool

var costsCmd = &cobra.Command{
	Use:   "costs",
	Short: "Show accumulated token usage and cost per provider",
	Args:  cobra.NoArgs,
	RunE:  runCosts,
}

func init() {
	costsCmd.Flags().BoolVar(&costsJSON, "json", false, "output totals as JSON")
	rootCmd.AddCommand(costsCmd)
}

func runCosts(cmd *cobra.Command, _ []string) error {
	a, err := newApp(false)
	if err != nil {
		return err
	}
	defer a.Close()

	totals, err := a.store.CostLedger().Totals(context.Background())
	if err != nil {
		return fmt.Errorf("read cost ledger: %w", err)
	}

	if costsJSON {
		data, err := json.MarshalIndent(totals, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal totals: %w", err)
		}
		cmd.Println(string(data))
		return nil
	}

	if len(totals) == 0 {
		cmd.Println("No cost events recorded.")
		return nil
	}

	ids := make([]string, 0, len(totals))
	for id := range totals {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	cmd.Printf("%-16s %10s %14s %14s %12s\n", "PROVIDER", "REQUESTS", "INPUT TOKENS", "OUTPUT TOKENS", "COST")
	for _, id := range ids {
		t := totals[id]
		cmd.Printf("%-16s %10d %14d %14d %11.6f\n", id, t.Requests, t.InputTokens, t.OutputTokens, t.Cost)
	}
	return nil
}
