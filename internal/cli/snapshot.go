package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"llm-trader/internal/models"
)

// snapshotFile is the on-disk input format for one analyze run. The engine
// never fetches market data; the caller assembles it.
type snapshotFile struct {
	Symbol    string            `json:"symbol"`
	Market    marketSnapshot    `json:"market"`
	Portfolio portfolioSnapshot `json:"portfolio"`
}

type marketSnapshot struct {
	CurrentPrice    float64            `json:"current_price"`
	Candles         []candle           `json:"candles"`
	Indicators      map[string]float64 `json:"indicators"`
	SentimentData   map[string]any     `json:"sentiment_data"`
	FundamentalData map[string]any     `json:"fundamental_data"`
}

type candle struct {
	Timestamp int64   `json:"t"`
	Open      float64 `json:"o"`
	High      float64 `json:"h"`
	Low       float64 `json:"l"`
	Close     float64 `json:"c"`
	Volume    float64 `json:"v"`
}

type portfolioSnapshot struct {
	CashBalance float64    `json:"cash_balance"`
	TotalEquity float64    `json:"total_equity"`
	Positions   []position `json:"positions"`
}

type position struct {
	Symbol       string  `json:"symbol"`
	Quantity     float64 `json:"quantity"`
	AveragePrice float64 `json:"average_price"`
}

// loadSnapshot reads a snapshot file into the model types.
func loadSnapshot(path string) (string, *models.MarketSnapshot, *models.PortfolioSnapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", nil, nil, fmt.Errorf("reading snapshot file: %w", err)
	}

	var sf snapshotFile
	if err := json.Unmarshal(data, &sf); err != nil {
		return "", nil, nil, fmt.Errorf("parsing snapshot file: %w", err)
	}
	if sf.Symbol == "" {
		return "", nil, nil, fmt.Errorf("snapshot file missing symbol")
	}

	market := &models.MarketSnapshot{
		Symbol:          sf.Symbol,
		CurrentPrice:    sf.Market.CurrentPrice,
		Indicators:      sf.Market.Indicators,
		SentimentData:   sf.Market.SentimentData,
		FundamentalData: sf.Market.FundamentalData,
	}
	for _, c := range sf.Market.Candles {
		market.Candles = append(market.Candles, models.Candle{
			Timestamp: time.Unix(c.Timestamp, 0).UTC(),
			Open:      c.Open,
			High:      c.High,
			Low:       c.Low,
			Close:     c.Close,
			Volume:    c.Volume,
		})
	}

	portfolio := &models.PortfolioSnapshot{
		CashBalance: sf.Portfolio.CashBalance,
		TotalEquity: sf.Portfolio.TotalEquity,
	}
	for _, p := range sf.Portfolio.Positions {
		portfolio.Positions = append(portfolio.Positions, models.Position{
			Symbol:       p.Symbol,
			Quantity:     p.Quantity,
			AveragePrice: p.AveragePrice,
		})
	}

	return sf.Symbol, market, portfolio, nil
}
