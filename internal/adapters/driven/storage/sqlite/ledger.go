package sqlite

import (
	"context"
	"fmt"

	"github.com/custodia-labs/ansa/internal/core/domain"
	"github.com/custodia-labs/ansa/internal/core/ports/driven"
)

// costLedger implements driven.CostLedger on the shared store.
type costLedger struct {
	store *Store
}

var _ driven.CostLedger = (*costLedger)(nil)

// Record persists a single cost event.
func (l *costLedger) Record(ctx context.Context, event domain.CostEvent) error {
	_, err := l.store.db.ExecContext(ctx, `
		INSERT INTO cost_events (provider_id, input_tokens, output_tokens, cost, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, event.ProviderID, event.InputTokens, event.OutputTokens, event.Cost, event.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("recording cost event: %w", err)
	}
	return nil
}

// Totals aggregates recorded events per provider.
func (l *costLedger) Totals(ctx context.Context) (map[string]driven.CostTotals, error) {
	rows, err := l.store.db.QueryContext(ctx, `
		SELECT provider_id, COUNT(*), SUM(input_tokens), SUM(output_tokens), SUM(cost)
		FROM cost_events
		GROUP BY provider_id
	`)
	if err != nil {
		return nil, fmt.Errorf("querying cost totals: %w", err)
	}
	defer rows.Close()

	totals := make(map[string]driven.CostTotals)
	for rows.Next() {
		var providerID string
		var t driven.CostTotals
		if err := rows.Scan(&providerID, &t.Requests, &t.InputTokens, &t.OutputTokens, &t.Cost); err != nil {
			return nil, fmt.Errorf("scanning cost totals: %w", err)
		}
		totals[providerID] = t
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating cost totals: %w", err)
	}
	return totals, nil
}

// Close is a no-op; the shared store owns the connection.
func (l *costLedger) Close() error {
	return nil
}
