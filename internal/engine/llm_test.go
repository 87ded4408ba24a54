package engine

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"llm-trader/internal/agents"
	"llm-trader/internal/errors"
	"llm-trader/internal/models"
	"llm-trader/internal/pipeline"
)

type fixedOutput struct {
	analysis models.Analysis
	err      error
}

func (f *fixedOutput) Execute(_ context.Context, _, _, _, _ string) (*models.Analysis, models.StageMetadata, error) {
	if f.err != nil {
		return nil, models.StageMetadata{}, f.err
	}
	a := f.analysis
	return &a, models.StageMetadata{Tokens: 10, Cost: 0.01}, nil
}

func fixedAgent(name string, role agents.Role, out agents.OutputStrategy) *agents.Agent {
	return &agents.Agent{
		Name: name, Role: role, Model: "m",
		BuildPrompt: func(_ agents.PromptInput) (string, string) { return "sys", "user" },
		Output:      out,
	}
}

func testPipeline(analystErr error) *pipeline.Pipeline {
	analyst := &fixedOutput{
		analysis: models.Analysis{Recommendation: "buy", Confidence: 70, Reasoning: "r"},
		err:      analystErr,
	}
	return pipeline.New(
		[]*agents.Agent{fixedAgent("analyst", agents.RoleAnalyst, analyst)},
		fixedAgent("synthesis", agents.RoleSynthesis, &fixedOutput{
			analysis: models.Analysis{Recommendation: "buy", Confidence: 70, Reasoning: "thesis"},
		}),
		fixedAgent("proposal", agents.RoleProposal, &fixedOutput{
			analysis: models.Analysis{Action: "buy", Quantity: 3, Confidence: 75, Reasoning: "p"},
		}),
		fixedAgent("validation", agents.RoleValidation, &fixedOutput{
			analysis: models.Analysis{Verdict: "approve", Confidence: 80, Reasoning: "v"},
		}),
		pipeline.Config{GateThreshold: 40},
		zerolog.Nop(),
	)
}

func TestLLMEngineAnalyze(t *testing.T) {
	eng := NewLLMEngine(testPipeline(nil))

	result, err := eng.Analyze(context.Background(), "ACME",
		&models.MarketSnapshot{Symbol: "ACME"}, &models.PortfolioSnapshot{}, "run-7")
	require.NoError(t, err)

	assert.Equal(t, "llm", result.Metadata.EngineType)
	assert.Equal(t, models.StatusCompleted, result.Status)
	assert.Equal(t, models.Buy, result.Decision.Action)
	assert.Equal(t, "run-7", result.RunID)
}

func TestLLMEngineStageFaultYieldsFailedResultNotError(t *testing.T) {
	eng := NewLLMEngine(testPipeline(errors.NewBudgetError(1000, 499500, 500000)))

	result, err := eng.Analyze(context.Background(), "ACME",
		&models.MarketSnapshot{Symbol: "ACME"}, &models.PortfolioSnapshot{}, "")
	require.NoError(t, err, "engine faults become a failed result")
	assert.Equal(t, models.StatusFailed, result.Status)
	assert.Equal(t, models.Hold, result.Decision.Action)
	require.NotEmpty(t, result.Errors)
	assert.Equal(t, "budget_exceeded", result.Errors[0].Kind)
}

func TestLLMEngineRejectsInvalidInput(t *testing.T) {
	eng := NewLLMEngine(testPipeline(nil))

	_, err := eng.Analyze(context.Background(), "ACME", nil, &models.PortfolioSnapshot{}, "")
	assert.Error(t, err)
}
