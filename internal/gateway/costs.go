package gateway

import "github.com/shopspring/decimal"

// CostTable maps model ids to $/1K-token rates. Rates are held as decimals
// so that summing many small calls stays exact; results are exported as
// float64 in result metadata.
type CostTable struct {
	rates       map[string]decimal.Decimal
	defaultRate decimal.Decimal
}

// NewCostTable builds a cost table from $/1K-token rates. Models missing
// from the table are charged the default rate, which should be conservative.
func NewCostTable(per1K map[string]float64, defaultPer1K float64) *CostTable {
	rates := make(map[string]decimal.Decimal, len(per1K))
	for model, rate := range per1K {
		rates[model] = decimal.NewFromFloat(rate)
	}
	return &CostTable{
		rates:       rates,
		defaultRate: decimal.NewFromFloat(defaultPer1K),
	}
}

// Cost returns the dollar cost of the given token count for a model.
func (t *CostTable) Cost(model string, tokens int) float64 {
	rate, ok := t.rates[model]
	if !ok {
		rate = t.defaultRate
	}
	cost := rate.Mul(decimal.NewFromInt(int64(tokens))).Div(decimal.NewFromInt(1000))
	f, _ := cost.Float64()
	return f
}
