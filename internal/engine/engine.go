// Package engine exposes the decision engines behind one interface. The LLM
// engine drives the multi-agent pipeline; the rule engine evaluates a named
// deterministic strategy. Both produce the same DecisionResult shape.
package engine

import (
	"context"
	"fmt"

	"llm-trader/internal/models"
)

// Engine produces one trade decision per invocation.
type Engine interface {
	// Analyze runs one decision pass over the given snapshots. A valid
	// input always yields a result; engine-internal faults surface as a
	// failed DecisionResult, not an error.
	Analyze(ctx context.Context, symbol string, market *models.MarketSnapshot, portfolio *models.PortfolioSnapshot, runID string) (*models.DecisionResult, error)

	// Type returns the engine type name recorded in result metadata.
	Type() string
}

func validateInput(symbol string, market *models.MarketSnapshot, portfolio *models.PortfolioSnapshot) error {
	if symbol == "" {
		return fmt.Errorf("symbol is required")
	}
	if market == nil {
		return fmt.Errorf("market snapshot is required")
	}
	if portfolio == nil {
		return fmt.Errorf("portfolio snapshot is required")
	}
	return nil
}
