package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"llm-trader/internal/audit"
)

func newHistoryCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent decisions from the audit database",
		Example: `  llm-trader history
  llm-trader history --symbol ACME --limit 5`,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()

			symbol, _ := cmd.Flags().GetString("symbol")
			limit, _ := cmd.Flags().GetInt("limit")

			sink, closeSink, err := openSink(app)
			if err != nil {
				output.Error("%v", err)
				return err
			}
			defer closeSink()

			log, ok := sink.(audit.DecisionLog)
			if !ok {
				err := fmt.Errorf("audit sink does not keep a decision log")
				output.Error("%v", err)
				return err
			}

			entries, err := log.RecentDecisions(ctx, symbol, limit)
			if err != nil {
				output.Error("Reading decisions: %v", err)
				return err
			}

			if output.IsJSON() {
				return output.JSON(entries)
			}

			if len(entries) == 0 {
				output.Info("No decisions recorded")
				return nil
			}

			output.Bold("Recent decisions")
			for _, e := range entries {
				actionColor := output.ActionColor(e.Action)
				output.Printf("  %s  %-8s %s qty=%.4f conf=%.0f [%s] %s\n",
					e.Timestamp.Format("2006-01-02 15:04"),
					e.Symbol,
					output.ColoredString(actionColor, fmt.Sprintf("%-4s", e.Action)),
					e.Quantity, e.Confidence, e.Status, e.RunID)
			}
			return nil
		},
	}

	cmd.Flags().String("symbol", "", "filter by symbol")
	cmd.Flags().Int("limit", 20, "maximum entries to show")

	return cmd
}
