package agents

import (
	"context"
	"fmt"

	"llm-trader/internal/models"
	"llm-trader/internal/react"
)

// NewAnalystRegistry builds the tool registry available to ReAct-driven
// analysts. All tools read the run's own snapshots; nothing reaches out to
// live market data.
func NewAnalystRegistry(market *models.MarketSnapshot, portfolio *models.PortfolioSnapshot) *react.Registry {
	reg := react.NewRegistry(string(RoleAnalyst))

	reg.Register("get_indicator", func(_ context.Context, args map[string]any) (any, error) {
		name, _ := args["name"].(string)
		if name == "" {
			return nil, fmt.Errorf("missing required arg: name")
		}
		if market == nil {
			return nil, fmt.Errorf("no market snapshot")
		}
		value, ok := market.Indicators[name]
		if !ok {
			return nil, fmt.Errorf("indicator %q not in snapshot", name)
		}
		return map[string]any{"name": name, "value": value}, nil
	})

	reg.Register("recent_candles", func(_ context.Context, args map[string]any) (any, error) {
		if market == nil {
			return nil, fmt.Errorf("no market snapshot")
		}
		count := 10
		if n, ok := args["count"].(float64); ok && n > 0 {
			count = int(n)
		}
		if count > len(market.Candles) {
			count = len(market.Candles)
		}
		candles := market.Candles[len(market.Candles)-count:]
		out := make([]map[string]any, 0, len(candles))
		for _, c := range candles {
			out = append(out, map[string]any{
				"t": c.Timestamp.Unix(),
				"o": c.Open, "h": c.High, "l": c.Low, "c": c.Close, "v": c.Volume,
			})
		}
		return out, nil
	})

	reg.Register("position_summary", func(_ context.Context, _ map[string]any) (any, error) {
		if portfolio == nil {
			return nil, fmt.Errorf("no portfolio snapshot")
		}
		positions := make([]map[string]any, 0, len(portfolio.Positions))
		for _, pos := range portfolio.Positions {
			positions = append(positions, map[string]any{
				"symbol":    pos.Symbol,
				"quantity":  pos.Quantity,
				"avg_price": pos.AveragePrice,
			})
		}
		return map[string]any{
			"cash_balance": portfolio.CashBalance,
			"total_equity": portfolio.TotalEquity,
			"positions":    positions,
		}, nil
	})

	return reg
}
