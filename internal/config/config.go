// Package config provides configuration management for the decision engine.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Engine      EngineConfig   `mapstructure:"engine"`
	Gateway     GatewayConfig  `mapstructure:"gateway"`
	Pipeline    PipelineConfig `mapstructure:"pipeline"`
	Sizing      SizingConfig   `mapstructure:"sizing"`
	Audit       AuditConfig    `mapstructure:"audit"`
	Credentials Credentials    `mapstructure:"-"` // Loaded separately
}

// EngineConfig selects and parameterizes the decision engine.
type EngineConfig struct {
	Type     string `mapstructure:"type"`     // "llm", "rule"
	Strategy string `mapstructure:"strategy"` // rule engine only: "sma-cross", "rsi-reversion", "momentum"
}

// GatewayConfig holds model gateway configuration.
type GatewayConfig struct {
	DailyTokenBudget int                `mapstructure:"daily_token_budget"`
	MaxRetries       int                `mapstructure:"max_retries"`
	BackoffBase      time.Duration      `mapstructure:"backoff_base"`
	BackoffMax       time.Duration      `mapstructure:"backoff_max"`
	DefaultMaxTokens int                `mapstructure:"default_max_tokens"`
	CostPer1K        map[string]float64 `mapstructure:"cost_per_1k"` // model -> $/1K tokens
	DefaultCostPer1K float64            `mapstructure:"default_cost_per_1k"`
}

// PipelineConfig holds pipeline orchestration configuration.
type PipelineConfig struct {
	AnalystModel      string  `mapstructure:"analyst_model"`
	SynthesisModel    string  `mapstructure:"synthesis_model"`
	DecisionModel     string  `mapstructure:"decision_model"`
	GateThreshold     float64 `mapstructure:"gate_threshold"` // mean analyst confidence, 0-100
	Concurrent        bool    `mapstructure:"concurrent"`
	MaxIterations     int     `mapstructure:"max_iterations"` // ReAct loop cap
	ReasoningSnippet  int     `mapstructure:"reasoning_snippet"`  // chars of analyst reasoning passed to synthesis
	TopObservations   int     `mapstructure:"top_observations"`   // observations per analyst passed to synthesis
}

// SizingConfig caps position sizing for both engines.
type SizingConfig struct {
	MaxEquityFraction float64 `mapstructure:"max_equity_fraction"`
}

// AuditConfig holds audit ledger configuration.
type AuditConfig struct {
	DBPath string `mapstructure:"db_path"` // empty: in-memory sink
}

// Credentials holds API credentials.
type Credentials struct {
	OpenAI OpenAICredentials `mapstructure:"openai"`
}

// OpenAICredentials holds OpenAI-compatible API credentials.
type OpenAICredentials struct {
	APIKey  string `mapstructure:"api_key"`
	BaseURL string `mapstructure:"base_url"`
}

// DefaultConfigDir returns the default configuration directory.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".config/llm-trader"
	}
	return filepath.Join(home, ".config", "llm-trader")
}

// Default returns the built-in configuration, usable without any config file.
func Default() *Config {
	return &Config{
		Engine: EngineConfig{
			Type:     "llm",
			Strategy: "sma-cross",
		},
		Gateway: GatewayConfig{
			DailyTokenBudget: 500000,
			MaxRetries:       3,
			BackoffBase:      time.Second,
			BackoffMax:       30 * time.Second,
			DefaultMaxTokens: 2000,
			CostPer1K: map[string]float64{
				"gpt-4o":      0.00625,
				"gpt-4o-mini": 0.000375,
			},
			DefaultCostPer1K: 0.03,
		},
		Pipeline: PipelineConfig{
			AnalystModel:     "gpt-4o-mini",
			SynthesisModel:   "gpt-4o",
			DecisionModel:    "gpt-4o",
			GateThreshold:    40,
			Concurrent:       true,
			MaxIterations:    5,
			ReasoningSnippet: 300,
			TopObservations:  3,
		},
		Sizing: SizingConfig{
			MaxEquityFraction: 0.1,
		},
	}
}

// Load loads configuration from the specified directory.
// If configDir is empty, uses the default config directory.
func Load(configDir string) (*Config, error) {
	if configDir == "" {
		configDir = DefaultConfigDir()
	}

	cfg := Default()

	if err := loadConfigFile(configDir, "config", cfg); err != nil {
		return nil, fmt.Errorf("loading config.toml: %w", err)
	}

	if err := loadCredentials(configDir, &cfg.Credentials); err != nil {
		return nil, fmt.Errorf("loading credentials.toml: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

func loadConfigFile(configDir, name string, target interface{}) error {
	v := viper.New()
	v.SetConfigName(name)
	v.SetConfigType("toml")
	v.AddConfigPath(configDir)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			// Built-in defaults apply when no config file exists.
			return nil
		}
		return err
	}

	return v.Unmarshal(target)
}

func loadCredentials(configDir string, creds *Credentials) error {
	v := viper.New()
	v.SetConfigName("credentials")
	v.SetConfigType("toml")
	v.AddConfigPath(configDir)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		return err
	}

	return v.Unmarshal(creds)
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		cfg.Credentials.OpenAI.APIKey = v
	}
	if v := os.Getenv("OPENAI_BASE_URL"); v != "" {
		cfg.Credentials.OpenAI.BaseURL = v
	}
	if v := os.Getenv("ENGINE_TYPE"); v != "" {
		cfg.Engine.Type = v
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Engine.Type != "llm" && c.Engine.Type != "rule" {
		return fmt.Errorf("invalid engine type: %s (must be 'llm' or 'rule')", c.Engine.Type)
	}

	if c.Gateway.DailyTokenBudget <= 0 {
		return fmt.Errorf("daily_token_budget must be positive")
	}
	if c.Gateway.MaxRetries < 0 {
		return fmt.Errorf("max_retries must be non-negative")
	}

	if c.Pipeline.GateThreshold < 0 || c.Pipeline.GateThreshold > 100 {
		return fmt.Errorf("gate_threshold must be between 0 and 100")
	}
	if c.Pipeline.MaxIterations <= 0 {
		return fmt.Errorf("max_iterations must be positive")
	}

	if c.Sizing.MaxEquityFraction <= 0 || c.Sizing.MaxEquityFraction > 1 {
		return fmt.Errorf("max_equity_fraction must be in (0, 1]")
	}

	return nil
}
