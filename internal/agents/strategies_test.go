package agents

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"llm-trader/internal/audit"
	"llm-trader/internal/errors"
	"llm-trader/internal/gateway"
	"llm-trader/internal/models"
	"llm-trader/internal/react"
)

// cannedClient returns scripted responses in order.
type cannedClient struct {
	calls     int
	responses []string
}

func (c *cannedClient) Complete(_ context.Context, _ string, _ []gateway.Message, _ float32, _ int) (*gateway.ChatResponse, error) {
	idx := c.calls
	c.calls++
	if idx >= len(c.responses) {
		idx = len(c.responses) - 1
	}
	return &gateway.ChatResponse{
		Content:          c.responses[idx],
		PromptTokens:     20,
		CompletionTokens: 10,
		FinishReason:     "stop",
	}, nil
}

func newAgentGateway(client gateway.ChatClient) *gateway.Gateway {
	return gateway.New(client, audit.NewMemorySink(),
		gateway.NewCostTable(map[string]float64{"m": 0.01}, 0.03), gateway.Config{
			DailyTokenBudget: 100000,
			MaxRetries:       0,
			BackoffBase:      time.Millisecond,
			BackoffMax:       time.Millisecond,
			DefaultMaxTokens: 100,
		}, zerolog.Nop())
}

func promptFor(in PromptInput) (string, string) { return "sys", "user " + in.Symbol }

func TestSingleShotTolerantParse(t *testing.T) {
	gw := newAgentGateway(&cannedClient{responses: []string{
		`{"recommendation": "buy", "confidence": 70, "reasoning": "looks strong"}`,
	}})
	agent := &Agent{
		Name: "a", Role: RoleAnalyst, Model: "m",
		BuildPrompt: promptFor,
		Output:      &SingleShot{GW: gw},
	}

	res, err := agent.Run(context.Background(), PromptInput{Symbol: "ACME"})
	require.NoError(t, err)
	assert.Equal(t, "buy", res.Analysis.Recommendation)
	assert.Equal(t, 70.0, res.Analysis.Confidence)
	assert.Equal(t, 30, res.Metadata.Tokens)
	assert.InDelta(t, 0.01*30/1000, res.Metadata.Cost, 1e-9)
}

func TestSingleShotGarbageStillSucceeds(t *testing.T) {
	gw := newAgentGateway(&cannedClient{responses: []string{"no json here at all"}})
	agent := &Agent{
		Name: "a", Role: RoleAnalyst, Model: "m",
		BuildPrompt: promptFor,
		Output:      &SingleShot{GW: gw},
	}

	res, err := agent.Run(context.Background(), PromptInput{Symbol: "ACME"})
	require.NoError(t, err, "tolerant parse never raises")
	assert.True(t, res.Analysis.ParseError)
	assert.Equal(t, "hold", res.Analysis.Recommendation)
}

func TestRunClampsConfidence(t *testing.T) {
	gw := newAgentGateway(&cannedClient{responses: []string{
		`{"recommendation": "buy", "confidence": 180, "reasoning": "over-eager"}`,
	}})
	agent := &Agent{
		Name: "a", Role: RoleAnalyst, Model: "m",
		BuildPrompt: promptFor,
		Output:      &SingleShot{GW: gw},
	}

	res, err := agent.Run(context.Background(), PromptInput{})
	require.NoError(t, err)
	assert.Equal(t, 100.0, res.Analysis.Confidence)
}

func TestRunAsyncMatchesRun(t *testing.T) {
	response := `{"recommendation": "sell", "confidence": 55, "reasoning": "fading"}`

	gw := newAgentGateway(&cannedClient{responses: []string{response}})
	agent := &Agent{
		Name: "a", Role: RoleAnalyst, Model: "m",
		BuildPrompt: promptFor,
		Output:      &SingleShot{GW: gw},
	}
	sync, err := agent.Run(context.Background(), PromptInput{Symbol: "ACME"})
	require.NoError(t, err)

	gw2 := newAgentGateway(&cannedClient{responses: []string{response}})
	agent.Output = &SingleShot{GW: gw2}
	outcome := <-agent.RunAsync(context.Background(), PromptInput{Symbol: "ACME"})
	require.NoError(t, outcome.Err)

	assert.Equal(t, sync.Analysis.Recommendation, outcome.Result.Analysis.Recommendation)
	assert.Equal(t, sync.Analysis.Confidence, outcome.Result.Analysis.Confidence)
	assert.Equal(t, sync.Metadata.Tokens, outcome.Result.Metadata.Tokens)
}

func TestSchemaEnforcedAcceptsConformingResponse(t *testing.T) {
	schema, err := CompileSchema("proposal.json", ProposalSchema)
	require.NoError(t, err)

	gw := newAgentGateway(&cannedClient{responses: []string{
		`{"action": "buy", "quantity": 10, "confidence": 80, "reasoning": "breakout"}`,
	}})
	strategy := &SchemaEnforced{GW: gw, Schema: schema}

	analysis, meta, err := strategy.Execute(context.Background(), "proposal", "m", "sys", "user")
	require.NoError(t, err)
	assert.Equal(t, "buy", analysis.Action)
	assert.Equal(t, 10.0, analysis.Quantity)
	assert.False(t, analysis.ParseError)
	assert.Equal(t, 30, meta.Tokens)
}

func TestSchemaEnforcedRejectsViolation(t *testing.T) {
	schema, err := CompileSchema("proposal.json", ProposalSchema)
	require.NoError(t, err)

	gw := newAgentGateway(&cannedClient{responses: []string{
		`{"action": "liquidate-everything", "confidence": 80, "reasoning": "r"}`,
	}})
	strategy := &SchemaEnforced{GW: gw, Schema: schema}

	_, meta, err := strategy.Execute(context.Background(), "proposal", "m", "sys", "user")
	require.Error(t, err)
	var serr *errors.SchemaError
	assert.True(t, errors.As(err, &serr))
	assert.Equal(t, 30, meta.Tokens, "the failed call still cost tokens")
}

func TestSchemaEnforcedRejectsNonJSON(t *testing.T) {
	schema, err := CompileSchema("proposal.json", ProposalSchema)
	require.NoError(t, err)

	gw := newAgentGateway(&cannedClient{responses: []string{"not json"}})
	strategy := &SchemaEnforced{GW: gw, Schema: schema}

	_, _, err = strategy.Execute(context.Background(), "proposal", "m", "sys", "user")
	require.Error(t, err)
	var serr *errors.SchemaError
	assert.True(t, errors.As(err, &serr))
}

func TestReActLoopFinalAnswer(t *testing.T) {
	gw := newAgentGateway(&cannedClient{responses: []string{
		"Thought: check the RSI\nAction: get_indicator(name=rsi_14)",
		`Final Answer: {"recommendation": "buy", "confidence": 65, "reasoning": "oversold bounce"}`,
	}})

	market := &models.MarketSnapshot{
		Symbol:     "ACME",
		Indicators: map[string]float64{"rsi_14": 27},
	}
	strategy := &ReActLoop{
		GW:            gw,
		Registry:      NewAnalystRegistry(market, &models.PortfolioSnapshot{}),
		MaxIterations: 5,
	}

	analysis, meta, err := strategy.Execute(context.Background(), "a", "m", "sys", "user")
	require.NoError(t, err)
	assert.Equal(t, "buy", analysis.Recommendation)
	assert.Equal(t, string(react.OutcomeFinal), meta.FinishReason)
	assert.Equal(t, 60, meta.Tokens, "both iterations counted")
}

func TestReActLoopIterationCapFallsBackToInsufficientData(t *testing.T) {
	gw := newAgentGateway(&cannedClient{responses: []string{
		"Action: get_indicator(name=rsi_14)",
	}})

	market := &models.MarketSnapshot{Indicators: map[string]float64{"rsi_14": 50}}
	strategy := &ReActLoop{
		GW:            gw,
		Registry:      NewAnalystRegistry(market, &models.PortfolioSnapshot{}),
		MaxIterations: 2,
	}

	analysis, meta, err := strategy.Execute(context.Background(), "a", "m", "sys", "user")
	require.NoError(t, err, "cap termination is a value, not an error")
	assert.True(t, analysis.InsufficientData)
	assert.Equal(t, "hold", analysis.Recommendation)
	assert.Equal(t, 20.0, analysis.Confidence)
	assert.NotEmpty(t, analysis.Observations, "history tail kept for diagnosis")
	assert.Equal(t, string(react.OutcomeMaxIterations), meta.FinishReason)
}
