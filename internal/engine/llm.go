package engine

import (
	"context"

	"llm-trader/internal/models"
	"llm-trader/internal/pipeline"
)

// LLMEngine drives the multi-agent pipeline. The pipeline already converts
// stage faults and budget exhaustion into a failed result, so Analyze only
// errors on invalid input.
type LLMEngine struct {
	pipe *pipeline.Pipeline
}

// NewLLMEngine creates an engine over a configured pipeline.
func NewLLMEngine(pipe *pipeline.Pipeline) *LLMEngine {
	return &LLMEngine{pipe: pipe}
}

func (e *LLMEngine) Type() string { return "llm" }

// Analyze runs one full pipeline pass.
func (e *LLMEngine) Analyze(ctx context.Context, symbol string, market *models.MarketSnapshot, portfolio *models.PortfolioSnapshot, runID string) (*models.DecisionResult, error) {
	if err := validateInput(symbol, market, portfolio); err != nil {
		return nil, err
	}

	pctx := pipeline.NewContext(runID, symbol, market, portfolio)
	result := e.pipe.Run(ctx, pctx)
	result.Metadata.EngineType = e.Type()
	return result, nil
}
