package models

import "time"

// Action is a final trading action.
type Action string

const (
	Buy  Action = "buy"
	Sell Action = "sell"
	Hold Action = "hold"
)

// Status is the terminal status of one decision run. Every run ends in
// exactly one of these.
type Status string

const (
	// StatusCompleted means the full pipeline ran and produced a decision.
	StatusCompleted Status = "completed"
	// StatusCompletedHold means an early exit (confidence gate or hold
	// proposal) short-circuited the pipeline to a hold.
	StatusCompletedHold Status = "completed_hold"
	// StatusFailed means a stage error aborted the run.
	StatusFailed Status = "failed"
)

// TradeDecision is the actionable output of a run.
type TradeDecision struct {
	Action     Action
	Quantity   float64
	Confidence float64 // 0-100
	Reasoning  string
	StopLoss   float64 // 0 when not set
	TakeProfit float64 // 0 when not set
}

// StageMetadata carries per-stage accounting.
type StageMetadata struct {
	Tokens       int
	Cost         float64
	Latency      time.Duration
	FinishReason string
}

// StageResult is the output of one pipeline stage. Confidence is clamped
// into [0, 100] before the result is stored, whatever the model produced.
// Signals carries the indicator values a rule strategy decided on; it is
// nil for LLM stages.
type StageResult struct {
	Stage      string
	Analysis   *Analysis
	Confidence float64
	Metadata   StageMetadata
	Signals    map[string]float64
}

// StageError is a typed error entry recorded on a failed run.
type StageError struct {
	Stage   string
	Kind    string // "budget_exceeded", "provider", "stage"
	Message string
}

// ResultMetadata aggregates accounting over the stages that executed.
type ResultMetadata struct {
	EngineType    string
	StrategyName  string
	ExecutionTime time.Duration
	Cost          float64
	TokensUsed    int
}

// DecisionResult is the single auditable output of one run. Both the
// LLM pipeline engine and the rule engine return this shape.
type DecisionResult struct {
	RunID     string
	Symbol    string
	Timestamp time.Time
	Decision  TradeDecision
	Metadata  ResultMetadata
	Stages    map[string]*StageResult
	Status    Status
	Errors    []StageError
}

// AddStage records a stage result and folds its accounting into the totals.
func (r *DecisionResult) AddStage(sr *StageResult) {
	if sr == nil {
		return
	}
	if r.Stages == nil {
		r.Stages = make(map[string]*StageResult)
	}
	r.Stages[sr.Stage] = sr
	r.Metadata.Cost += sr.Metadata.Cost
	r.Metadata.TokensUsed += sr.Metadata.Tokens
}
