package models

// Analysis is the structured payload every reasoning stage produces.
// The tolerant parser guarantees all required fields are populated
// (defaulted where necessary); ParseError marks a defaulted payload.
type Analysis struct {
	Recommendation string   `json:"recommendation"` // "buy", "sell", "hold"
	Confidence     float64  `json:"confidence"`     // 0-100, clamped at the parse boundary
	Reasoning      string   `json:"reasoning"`
	Observations   []string `json:"observations"`

	// Decision-stage fields; zero for analysts.
	Action     string  `json:"action,omitempty"`
	Quantity   float64 `json:"quantity,omitempty"`
	StopLoss   float64 `json:"stop_loss,omitempty"`
	TakeProfit float64 `json:"take_profit,omitempty"`

	// Validation-stage verdict: "approve", "reject", "modify".
	Verdict string `json:"verdict,omitempty"`

	ParseError       bool `json:"parse_error,omitempty"`
	InsufficientData bool `json:"insufficient_data,omitempty"`
}
