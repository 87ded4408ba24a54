// Package models defines the core data types shared across the decision engine.
package models

import "time"

// Candle represents a single OHLCV candle.
type Candle struct {
	Timestamp time.Time
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    float64
}

// MarketSnapshot contains all market data available for one decision run.
// It is assembled by the caller; the engine never fetches data itself.
type MarketSnapshot struct {
	Symbol          string
	CurrentPrice    float64
	Candles         []Candle
	Indicators      map[string]float64
	SentimentData   map[string]any
	FundamentalData map[string]any
}

// Position represents a currently held position.
type Position struct {
	Symbol       string
	Quantity     float64
	AveragePrice float64
	CurrentPrice float64
}

// PortfolioSnapshot represents the portfolio state at decision time.
type PortfolioSnapshot struct {
	CashBalance float64
	TotalEquity float64
	Positions   []Position
}

// HeldQuantity returns the quantity currently held for a symbol, zero if none.
func (p *PortfolioSnapshot) HeldQuantity(symbol string) float64 {
	for _, pos := range p.Positions {
		if pos.Symbol == symbol {
			return pos.Quantity
		}
	}
	return 0
}
