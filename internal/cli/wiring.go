package cli

import (
	"fmt"
	"path/filepath"

	"llm-trader/internal/agents"
	"llm-trader/internal/audit"
	"llm-trader/internal/config"
	"llm-trader/internal/engine"
	"llm-trader/internal/gateway"
	"llm-trader/internal/models"
	"llm-trader/internal/pipeline"
)

// openSink opens the configured audit sink. The SQLite ledger is the default;
// an explicit ":memory:" path selects the in-memory sink.
func openSink(app *App) (audit.Sink, func() error, error) {
	dbPath := app.Config.Audit.DBPath
	if dbPath == ":memory:" {
		return audit.NewMemorySink(), func() error { return nil }, nil
	}
	if dbPath == "" {
		dbPath = filepath.Join(config.DefaultConfigDir(), "trader.db")
	}

	sink, err := audit.NewSQLiteSink(dbPath)
	if err != nil {
		return nil, nil, fmt.Errorf("opening audit ledger: %w", err)
	}
	return sink, sink.Close, nil
}

// buildEngine assembles the configured engine. The LLM engine wires the
// gateway, agents, and pipeline; the rule engine only needs the sizing cap.
// The snapshots are needed up front because the ReAct analyst's tools close
// over them.
func buildEngine(app *App, sink audit.Sink, market *models.MarketSnapshot, portfolio *models.PortfolioSnapshot, concurrent bool) (engine.Engine, error) {
	cfg := app.Config

	switch cfg.Engine.Type {
	case "rule":
		return engine.NewRuleEngine(cfg.Engine.Strategy, cfg.Sizing.MaxEquityFraction, app.Logger)

	case "llm":
		if cfg.Credentials.OpenAI.APIKey == "" {
			return nil, fmt.Errorf("no OpenAI API key configured (set OPENAI_API_KEY or credentials.toml)")
		}

		client := gateway.NewOpenAIClient(cfg.Credentials.OpenAI.APIKey, cfg.Credentials.OpenAI.BaseURL)
		costs := gateway.NewCostTable(cfg.Gateway.CostPer1K, cfg.Gateway.DefaultCostPer1K)
		gw := gateway.New(client, sink, costs, gateway.Config{
			DailyTokenBudget: cfg.Gateway.DailyTokenBudget,
			MaxRetries:       cfg.Gateway.MaxRetries,
			BackoffBase:      cfg.Gateway.BackoffBase,
			BackoffMax:       cfg.Gateway.BackoffMax,
			DefaultMaxTokens: cfg.Gateway.DefaultMaxTokens,
		}, app.Logger)

		pipe, err := buildPipeline(app, gw, market, portfolio, concurrent)
		if err != nil {
			return nil, err
		}
		return engine.NewLLMEngine(pipe), nil

	default:
		return nil, fmt.Errorf("unknown engine type: %s", cfg.Engine.Type)
	}
}

func buildPipeline(app *App, gw *gateway.Gateway, market *models.MarketSnapshot, portfolio *models.PortfolioSnapshot, concurrent bool) (*pipeline.Pipeline, error) {
	cfg := app.Config.Pipeline

	singleShot := &agents.SingleShot{GW: gw, Temperature: 0.3}

	// The technical analyst reasons over the snapshot through tools; the
	// other analysts answer in one shot.
	marketAnalyst := &agents.Agent{
		Name:        "market-analyst",
		Role:        agents.RoleAnalyst,
		Model:       cfg.AnalystModel,
		BuildPrompt: agents.MarketAnalystPrompt,
		Output: &agents.ReActLoop{
			GW:            gw,
			Registry:      agents.NewAnalystRegistry(market, portfolio),
			Temperature:   0.3,
			MaxIterations: cfg.MaxIterations,
		},
	}
	sentimentAnalyst := &agents.Agent{
		Name:        "sentiment-analyst",
		Role:        agents.RoleAnalyst,
		Model:       cfg.AnalystModel,
		BuildPrompt: agents.SentimentAnalystPrompt,
		Output:      singleShot,
	}
	fundamentalAnalyst := &agents.Agent{
		Name:        "fundamental-analyst",
		Role:        agents.RoleAnalyst,
		Model:       cfg.AnalystModel,
		BuildPrompt: agents.FundamentalAnalystPrompt,
		Output:      singleShot,
	}

	synthesis := &agents.Agent{
		Name:        "synthesis",
		Role:        agents.RoleSynthesis,
		Model:       cfg.SynthesisModel,
		BuildPrompt: agents.SynthesisPrompt,
		Output:      singleShot,
	}

	schema, err := agents.CompileSchema("proposal.json", agents.ProposalSchema)
	if err != nil {
		return nil, fmt.Errorf("compiling proposal schema: %w", err)
	}
	proposal := &agents.Agent{
		Name:        "proposal",
		Role:        agents.RoleProposal,
		Model:       cfg.DecisionModel,
		BuildPrompt: agents.ProposalPrompt,
		Output:      &agents.SchemaEnforced{GW: gw, Schema: schema, Temperature: 0.2},
	}

	validation := &agents.Agent{
		Name:        "validation",
		Role:        agents.RoleValidation,
		Model:       cfg.DecisionModel,
		BuildPrompt: agents.ValidationPrompt,
		Output:      singleShot,
	}

	return pipeline.New(
		[]*agents.Agent{marketAnalyst, sentimentAnalyst, fundamentalAnalyst},
		synthesis, proposal, validation,
		pipeline.Config{
			GateThreshold:    cfg.GateThreshold,
			Concurrent:       concurrent,
			ReasoningSnippet: cfg.ReasoningSnippet,
			TopObservations:  cfg.TopObservations,
		},
		app.Logger,
	), nil
}
