package cli

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"llm-trader/internal/audit"
	"llm-trader/internal/logging"
	"llm-trader/internal/models"
)

func newAnalyzeCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "analyze <snapshot.json>",
		Short: "Run one decision pass over a market snapshot",
		Long: `Run the configured decision engine over a snapshot file.

The snapshot file carries the symbol, market data (price, candles,
indicators, sentiment, fundamentals), and the portfolio state. The engine
produces one auditable decision; with the LLM engine every model call is
budget-checked and written to the audit ledger.`,
		Example: `  llm-trader analyze snapshot.json
  llm-trader analyze snapshot.json --engine rule --strategy rsi-reversion
  llm-trader analyze snapshot.json --sequential --json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
			defer cancel()

			engineType, _ := cmd.Flags().GetString("engine")
			strategy, _ := cmd.Flags().GetString("strategy")
			sequential, _ := cmd.Flags().GetBool("sequential")
			runID, _ := cmd.Flags().GetString("run-id")

			if engineType != "" {
				app.Config.Engine.Type = engineType
			}
			if strategy != "" {
				app.Config.Engine.Strategy = strategy
			}
			concurrent := app.Config.Pipeline.Concurrent && !sequential

			symbol, market, portfolio, err := loadSnapshot(args[0])
			if err != nil {
				output.Error("%v", err)
				return err
			}

			sink, closeSink, err := openSink(app)
			if err != nil {
				output.Error("%v", err)
				return err
			}
			defer closeSink()

			eng, err := buildEngine(app, sink, market, portfolio, concurrent)
			if err != nil {
				output.Error("%v", err)
				return err
			}

			if !output.IsJSON() {
				output.Info("Analyzing %s with %s engine...", symbol, eng.Type())
			}

			result, err := eng.Analyze(ctx, symbol, market, portfolio, runID)
			if err != nil {
				output.Error("Analysis failed: %v", err)
				return err
			}

			logging.LogDecision(app.Logger, result.RunID, result.Symbol,
				string(result.Decision.Action), result.Decision.Confidence, string(result.Status))

			if log, ok := sink.(audit.DecisionLog); ok {
				if err := log.SaveDecision(ctx, decisionEntry(result)); err != nil {
					app.Logger.Warn().Err(err).Msg("failed to persist decision")
				}
			}

			if output.IsJSON() {
				return output.JSON(result)
			}
			return displayResult(output, result)
		},
	}

	cmd.Flags().String("engine", "", "engine type override (llm, rule)")
	cmd.Flags().String("strategy", "", "rule strategy override (sma-cross, rsi-reversion, momentum)")
	cmd.Flags().Bool("sequential", false, "run analysts sequentially")
	cmd.Flags().String("run-id", "", "externally supplied run id")

	return cmd
}

func displayResult(output *Output, r *models.DecisionResult) error {
	output.Println()
	output.Bold("%s Decision", r.Symbol)
	output.Dim("Run: %s", r.RunID)
	output.Println()

	actionColor := output.ActionColor(string(r.Decision.Action))
	output.Printf("  Action:     %s\n", output.ColoredString(actionColor, string(r.Decision.Action)))
	if r.Decision.Quantity > 0 {
		output.Printf("  Quantity:   %.4f\n", r.Decision.Quantity)
	}
	output.Printf("  Confidence: %.0f\n", r.Decision.Confidence)
	output.Printf("  Reasoning:  %s\n", r.Decision.Reasoning)
	if r.Decision.StopLoss > 0 {
		output.Printf("  Stop Loss:  %.2f\n", r.Decision.StopLoss)
	}
	if r.Decision.TakeProfit > 0 {
		output.Printf("  Take Profit: %.2f\n", r.Decision.TakeProfit)
	}
	output.Println()

	statusLine := fmt.Sprintf("  Status: %s", r.Status)
	switch r.Status {
	case models.StatusFailed:
		output.Error(statusLine)
		for _, e := range r.Errors {
			output.Printf("    [%s] %s: %s\n", e.Kind, e.Stage, e.Message)
		}
	case models.StatusCompletedHold:
		output.Warning(statusLine)
	default:
		output.Success(statusLine)
	}
	output.Println()

	if len(r.Stages) > 0 {
		output.Bold("Stages")
		names := make([]string, 0, len(r.Stages))
		for name := range r.Stages {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			s := r.Stages[name]
			output.Printf("  %-24s confidence=%.0f tokens=%d cost=$%.4f\n",
				name, s.Confidence, s.Metadata.Tokens, s.Metadata.Cost)
		}
		output.Println()
	}

	output.Dim("Engine: %s%s  Tokens: %d  Cost: $%.4f  Time: %s",
		r.Metadata.EngineType, strategySuffix(r), r.Metadata.TokensUsed,
		r.Metadata.Cost, r.Metadata.ExecutionTime.Round(time.Millisecond))

	return nil
}

func decisionEntry(r *models.DecisionResult) audit.DecisionEntry {
	return audit.DecisionEntry{
		RunID:      r.RunID,
		Symbol:     r.Symbol,
		Action:     string(r.Decision.Action),
		Quantity:   r.Decision.Quantity,
		Confidence: r.Decision.Confidence,
		Reasoning:  r.Decision.Reasoning,
		Engine:     r.Metadata.EngineType,
		Strategy:   r.Metadata.StrategyName,
		Status:     string(r.Status),
		Tokens:     r.Metadata.TokensUsed,
		Cost:       r.Metadata.Cost,
		Timestamp:  r.Timestamp,
	}
}

func strategySuffix(r *models.DecisionResult) string {
	if r.Metadata.StrategyName == "" {
		return ""
	}
	return "/" + r.Metadata.StrategyName
}
