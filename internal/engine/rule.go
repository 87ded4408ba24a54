package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/markcheno/go-talib"
	"github.com/rs/zerolog"

	"llm-trader/internal/errors"
	"llm-trader/internal/models"
	"llm-trader/internal/pipeline"
)

// Signal is the output of one deterministic strategy evaluation.
type Signal struct {
	Action     models.Action
	Confidence float64 // 0-100
	Reasoning  string
	Signals    map[string]float64
}

// Strategy is a pure decision function over the run's snapshots. It never
// performs I/O and never errors; insufficient data yields a hold signal.
type Strategy func(market *models.MarketSnapshot, portfolio *models.PortfolioSnapshot) Signal

// Built-in strategies by name.
var strategies = map[string]Strategy{
	"sma-cross":     smaCross,
	"rsi-reversion": rsiReversion,
	"momentum":      momentum,
}

// StrategyNames returns the registered strategy names.
func StrategyNames() []string {
	names := make([]string, 0, len(strategies))
	for name := range strategies {
		names = append(names, name)
	}
	return names
}

// RuleEngine evaluates a single named strategy. It costs nothing, uses no
// tokens, and completes in microseconds.
type RuleEngine struct {
	name              string
	strategy          Strategy
	maxEquityFraction float64
	logger            zerolog.Logger
}

// NewRuleEngine creates a rule engine for the named strategy.
func NewRuleEngine(name string, maxEquityFraction float64, logger zerolog.Logger) (*RuleEngine, error) {
	strategy, ok := strategies[name]
	if !ok {
		return nil, errors.Wrapf(errors.ErrUnknownStrategy, "strategy %q", name)
	}
	if maxEquityFraction <= 0 || maxEquityFraction > 1 {
		return nil, errors.Wrapf(errors.ErrConfigInvalid, "max_equity_fraction %v", maxEquityFraction)
	}
	return &RuleEngine{
		name:              name,
		strategy:          strategy,
		maxEquityFraction: maxEquityFraction,
		logger:            logger,
	}, nil
}

func (e *RuleEngine) Type() string { return "rule" }

// Analyze evaluates the strategy and sizes the resulting position.
func (e *RuleEngine) Analyze(ctx context.Context, symbol string, market *models.MarketSnapshot, portfolio *models.PortfolioSnapshot, runID string) (*models.DecisionResult, error) {
	if err := validateInput(symbol, market, portfolio); err != nil {
		return nil, err
	}

	pctx := pipeline.NewContext(runID, symbol, market, portfolio)
	start := time.Now()

	signal := e.strategy(market, portfolio)
	quantity := e.size(signal, market, portfolio)

	result := &models.DecisionResult{
		RunID:     pctx.RunID,
		Symbol:    symbol,
		Timestamp: start,
		Decision: models.TradeDecision{
			Action:     signal.Action,
			Quantity:   quantity,
			Confidence: signal.Confidence,
			Reasoning:  signal.Reasoning,
		},
		Metadata: models.ResultMetadata{
			EngineType:    e.Type(),
			StrategyName:  e.name,
			ExecutionTime: time.Since(start),
		},
		Stages: map[string]*models.StageResult{},
		Status: models.StatusCompleted,
	}
	result.AddStage(&models.StageResult{
		Stage: "strategy:" + e.name,
		Analysis: &models.Analysis{
			Recommendation: string(signal.Action),
			Confidence:     signal.Confidence,
			Reasoning:      signal.Reasoning,
			Action:         string(signal.Action),
			Quantity:       quantity,
		},
		Confidence: signal.Confidence,
		Signals:    signal.Signals,
	})

	e.logger.Info().
		Str("run_id", pctx.RunID).
		Str("symbol", symbol).
		Str("strategy", e.name).
		Str("action", string(signal.Action)).
		Float64("quantity", quantity).
		Float64("confidence", signal.Confidence).
		Msg("Rule engine decision")

	return result, nil
}

// size converts a signal into an executable quantity. Buys are capped by the
// equity fraction and available cash; sells scale the held quantity by the
// signal's confidence.
func (e *RuleEngine) size(signal Signal, market *models.MarketSnapshot, portfolio *models.PortfolioSnapshot) float64 {
	switch signal.Action {
	case models.Buy:
		if market.CurrentPrice <= 0 {
			return 0
		}
		budget := portfolio.TotalEquity * e.maxEquityFraction
		if budget > portfolio.CashBalance {
			budget = portfolio.CashBalance
		}
		return budget / market.CurrentPrice

	case models.Sell:
		held := portfolio.HeldQuantity(market.Symbol)
		return held * signal.Confidence / 100

	default:
		return 0
	}
}

// indicator returns the named value from the snapshot, computing it from the
// candles when absent. ok is false when neither source can provide it.
func indicator(market *models.MarketSnapshot, name string, period int, compute func(closes []float64, period int) []float64) (float64, bool) {
	if v, ok := market.Indicators[name]; ok {
		return v, true
	}
	if len(market.Candles) < period+1 {
		return 0, false
	}
	closes := make([]float64, len(market.Candles))
	for i, c := range market.Candles {
		closes[i] = c.Close
	}
	series := compute(closes, period)
	if len(series) == 0 {
		return 0, false
	}
	return series[len(series)-1], true
}

func holdSignal(reason string) Signal {
	return Signal{
		Action:     models.Hold,
		Confidence: 20,
		Reasoning:  reason,
		Signals:    map[string]float64{},
	}
}

// smaCross goes long when the fast moving average is above the slow one and
// exits when it drops below.
func smaCross(market *models.MarketSnapshot, portfolio *models.PortfolioSnapshot) Signal {
	fast, okFast := indicator(market, "sma_20", 20, talib.Sma)
	slow, okSlow := indicator(market, "sma_50", 50, talib.Sma)
	if !okFast || !okSlow {
		return holdSignal("insufficient data for sma-cross (need sma_20 and sma_50)")
	}
	if slow == 0 {
		return holdSignal("degenerate price series for sma-cross (slow SMA is zero)")
	}

	signals := map[string]float64{"sma_20": fast, "sma_50": slow}
	spread := (fast - slow) / slow * 100
	held := portfolio.HeldQuantity(market.Symbol)

	switch {
	case fast > slow && held == 0:
		return Signal{
			Action:     models.Buy,
			Confidence: clamp(50+spread*10, 50, 90),
			Reasoning:  fmt.Sprintf("fast SMA %.2f above slow SMA %.2f (spread %.2f%%)", fast, slow, spread),
			Signals:    signals,
		}
	case fast < slow && held > 0:
		return Signal{
			Action:     models.Sell,
			Confidence: clamp(50-spread*10, 50, 90),
			Reasoning:  fmt.Sprintf("fast SMA %.2f below slow SMA %.2f (spread %.2f%%)", fast, slow, spread),
			Signals:    signals,
		}
	default:
		return Signal{
			Action:     models.Hold,
			Confidence: 55,
			Reasoning:  fmt.Sprintf("no crossover edge (fast %.2f, slow %.2f, held %.2f)", fast, slow, held),
			Signals:    signals,
		}
	}
}

// rsiReversion buys oversold and sells overbought readings.
func rsiReversion(market *models.MarketSnapshot, portfolio *models.PortfolioSnapshot) Signal {
	rsi, ok := indicator(market, "rsi_14", 14, talib.Rsi)
	if !ok {
		return holdSignal("insufficient data for rsi-reversion (need rsi_14)")
	}

	signals := map[string]float64{"rsi_14": rsi}
	held := portfolio.HeldQuantity(market.Symbol)

	switch {
	case rsi < 30:
		return Signal{
			Action:     models.Buy,
			Confidence: clamp(50+(30-rsi)*2, 50, 90),
			Reasoning:  fmt.Sprintf("RSI %.1f oversold, expecting reversion", rsi),
			Signals:    signals,
		}
	case rsi > 70 && held > 0:
		return Signal{
			Action:     models.Sell,
			Confidence: clamp(50+(rsi-70)*2, 50, 90),
			Reasoning:  fmt.Sprintf("RSI %.1f overbought, taking profit", rsi),
			Signals:    signals,
		}
	default:
		return Signal{
			Action:     models.Hold,
			Confidence: 55,
			Reasoning:  fmt.Sprintf("RSI %.1f in neutral band", rsi),
			Signals:    signals,
		}
	}
}

// momentum follows the 10-period rate of change.
func momentum(market *models.MarketSnapshot, portfolio *models.PortfolioSnapshot) Signal {
	roc, ok := indicator(market, "roc_10", 10, talib.Roc)
	if !ok {
		return holdSignal("insufficient data for momentum (need roc_10)")
	}

	signals := map[string]float64{"roc_10": roc}
	held := portfolio.HeldQuantity(market.Symbol)

	switch {
	case roc > 2:
		return Signal{
			Action:     models.Buy,
			Confidence: clamp(50+roc*3, 50, 90),
			Reasoning:  fmt.Sprintf("10-period momentum %.2f%% positive", roc),
			Signals:    signals,
		}
	case roc < -2 && held > 0:
		return Signal{
			Action:     models.Sell,
			Confidence: clamp(50-roc*3, 50, 90),
			Reasoning:  fmt.Sprintf("10-period momentum %.2f%% negative", roc),
			Signals:    signals,
		}
	default:
		return Signal{
			Action:     models.Hold,
			Confidence: 55,
			Reasoning:  fmt.Sprintf("10-period momentum %.2f%% too weak to act on", roc),
			Signals:    signals,
		}
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
