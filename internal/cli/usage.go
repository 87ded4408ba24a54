package cli

import (
	"context"
	"time"

	"github.com/spf13/cobra"
)

func newUsageCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "usage",
		Short: "Show daily token and cost usage from the audit ledger",
		Long: `Sum the audit ledger for one UTC day.

This is the same rollup the gateway consults before every model call, so
the numbers here are exactly what the budget check sees.`,
		Example: `  llm-trader usage
  llm-trader usage --day 2026-08-25`,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()

			dayFlag, _ := cmd.Flags().GetString("day")
			day := time.Now().UTC()
			if dayFlag != "" {
				parsed, err := time.Parse("2006-01-02", dayFlag)
				if err != nil {
					output.Error("Invalid --day (want YYYY-MM-DD): %v", err)
					return err
				}
				day = parsed
			}

			sink, closeSink, err := openSink(app)
			if err != nil {
				output.Error("%v", err)
				return err
			}
			defer closeSink()

			usage, err := sink.DailyUsage(ctx, day)
			if err != nil {
				output.Error("Reading ledger: %v", err)
				return err
			}

			if output.IsJSON() {
				return output.JSON(map[string]any{
					"day":    day.Format("2006-01-02"),
					"tokens": usage.Tokens,
					"cost":   usage.Cost,
					"calls":  usage.Calls,
				})
			}

			budget := app.Config.Gateway.DailyTokenBudget
			output.Bold("Usage for %s (UTC)", day.Format("2006-01-02"))
			output.Printf("  Calls:  %d\n", usage.Calls)
			output.Printf("  Tokens: %d / %d budget\n", usage.Tokens, budget)
			output.Printf("  Cost:   $%.4f\n", usage.Cost)
			if budget > 0 && usage.Tokens >= budget {
				output.Warning("  Daily budget exhausted; model calls will be refused")
			}
			return nil
		},
	}

	cmd.Flags().String("day", "", "UTC day to sum (YYYY-MM-DD, default today)")

	return cmd
}
