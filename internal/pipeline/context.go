// Package pipeline orchestrates the multi-stage decision flow:
// analysts, confidence gate, synthesis, proposal, validation.
package pipeline

import (
	"github.com/google/uuid"

	"llm-trader/internal/models"
)

// Context is the input of one pipeline run. It is owned by exactly one
// execution and never shared across concurrent runs.
type Context struct {
	RunID     string
	Symbol    string
	Market    *models.MarketSnapshot
	Portfolio *models.PortfolioSnapshot
}

// NewContext creates a run context, minting a run ID when none is given.
func NewContext(runID, symbol string, market *models.MarketSnapshot, portfolio *models.PortfolioSnapshot) *Context {
	if runID == "" {
		runID = uuid.NewString()
	}
	return &Context{
		RunID:     runID,
		Symbol:    symbol,
		Market:    market,
		Portfolio: portfolio,
	}
}
