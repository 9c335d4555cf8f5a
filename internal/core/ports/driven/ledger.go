package driven

import (
	"context"

	"github.com/custodia-labs/ansa/internal/core/domain"
)

// CostLedger receives token usage and cost events after every successful
// generation. The engine holds no durable cost storage of its own; events
// are emitted to this sink and recording failures are logged, not
// propagated.
type CostLedger interface {
	// Record persists a single cost event.
	Record(ctx context.Context, event domain.CostEvent) error

	// Totals aggregates recorded events per provider.
	Totals(ctx context.Context) (map[string]CostTotals, error)

	// Close releases resources.
	Close() error
}

// CostTotals aggregates the ledger for one provider.
type CostTotals struct {
	// Requests is the number of recorded generations.
	Requests int64

	// InputTokens is the total prompt tokens consumed.
	InputTokens int64

	// OutputTokens is the total completion tokens produced.
	OutputTokens int64

	// Cost is the total monetary cost.
	Cost float64
}
