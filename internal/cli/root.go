package cli

import (
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"llm-trader/internal/config"
	"llm-trader/internal/logging"
)

// Version information
const (
	Version = "0.1.0"
)

// App holds the application dependencies.
type App struct {
	Config *config.Config
	Logger zerolog.Logger
}

// NewRootCmd creates the root command for the CLI.
func NewRootCmd(cfg *config.Config, logger zerolog.Logger) *cobra.Command {
	app := &App{
		Config: cfg,
		Logger: logger,
	}

	rootCmd := &cobra.Command{
		Use:   "llm-trader",
		Short: "LLM Trader - multi-agent trading decision engine",
		Long: `LLM Trader produces auditable trading decisions from market snapshots.

Decisions come from either a multi-agent LLM pipeline (analysts, synthesis,
proposal, validation) or a deterministic rule strategy. Every model call is
budget-checked and written to an append-only audit ledger.

Use 'llm-trader help <command>' for more information about a command.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			debug, _ := cmd.Flags().GetBool("debug")
			if debug {
				logging.SetDebugLevel()
				app.Logger = app.Logger.Level(zerolog.DebugLevel)
			}
			return nil
		},
	}

	// Global flags
	rootCmd.PersistentFlags().String("config", "", "config directory (default: ~/.config/llm-trader)")
	rootCmd.PersistentFlags().Bool("json", false, "output in JSON format")
	rootCmd.PersistentFlags().Bool("debug", false, "enable debug logging")

	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newConfigCmd(app))
	rootCmd.AddCommand(newAnalyzeCmd(app))
	rootCmd.AddCommand(newUsageCmd(app))
	rootCmd.AddCommand(newHistoryCmd(app))

	return rootCmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			output := NewOutput(cmd)
			if output.IsJSON() {
				output.JSON(map[string]string{"version": Version})
			} else {
				output.Printf("LLM Trader v%s\n", Version)
			}
		},
	}
}

func newConfigCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration management",
		Long:  "View and manage application configuration.",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show current configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if output.IsJSON() {
				return output.JSON(app.Config)
			}
			return showConfig(output, app.Config)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Show configuration directory path",
		Run: func(cmd *cobra.Command, args []string) {
			output := NewOutput(cmd)
			if output.IsJSON() {
				output.JSON(map[string]string{"path": config.DefaultConfigDir()})
			} else {
				output.Println(config.DefaultConfigDir())
			}
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "validate",
		Short: "Validate configuration files",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if err := app.Config.Validate(); err != nil {
				output.Error("Configuration validation failed: %v", err)
				return err
			}
			if output.IsJSON() {
				output.JSON(map[string]bool{"valid": true})
			} else {
				output.Success("Configuration is valid")
			}
			return nil
		},
	})

	return cmd
}

func showConfig(output *Output, cfg *config.Config) error {
	output.Bold("Engine")
	output.Printf("  Type:             %s\n", cfg.Engine.Type)
	output.Printf("  Strategy:         %s\n", cfg.Engine.Strategy)
	output.Println()

	output.Bold("Gateway")
	output.Printf("  Daily Budget:     %d tokens\n", cfg.Gateway.DailyTokenBudget)
	output.Printf("  Max Retries:      %d\n", cfg.Gateway.MaxRetries)
	output.Printf("  Backoff:          %s base, %s cap\n", cfg.Gateway.BackoffBase, cfg.Gateway.BackoffMax)
	output.Printf("  Default Rate:     $%.4f/1K tokens\n", cfg.Gateway.DefaultCostPer1K)
	output.Println()

	output.Bold("Pipeline")
	output.Printf("  Analyst Model:    %s\n", cfg.Pipeline.AnalystModel)
	output.Printf("  Synthesis Model:  %s\n", cfg.Pipeline.SynthesisModel)
	output.Printf("  Decision Model:   %s\n", cfg.Pipeline.DecisionModel)
	output.Printf("  Gate Threshold:   %.0f\n", cfg.Pipeline.GateThreshold)
	output.Printf("  Concurrent:       %v\n", cfg.Pipeline.Concurrent)
	output.Printf("  Max Iterations:   %d\n", cfg.Pipeline.MaxIterations)
	output.Println()

	output.Bold("Sizing")
	output.Printf("  Max Equity %%:     %.1f%%\n", cfg.Sizing.MaxEquityFraction*100)

	return nil
}
