// Package agents provides the reasoning agents the pipeline runs.
//
// An agent is identity plus a prompt builder plus one output strategy;
// behavior is composed, not inherited. Every agent produces the same result
// shape whichever strategy drives it.
package agents

import (
	"context"
	"time"

	"llm-trader/internal/models"
)

// Role identifies the slot an agent fills in the pipeline.
type Role string

const (
	RoleAnalyst    Role = "analyst"
	RoleSynthesis  Role = "synthesis"
	RoleProposal   Role = "proposal"
	RoleValidation Role = "validation"
)

// PromptInput is everything a prompt builder may draw on. Fields beyond
// the snapshots are stage-specific and left zero elsewhere.
type PromptInput struct {
	Symbol    string
	Market    *models.MarketSnapshot
	Portfolio *models.PortfolioSnapshot

	// Synthesis stage: compressed analyst digest.
	AnalystDigest string
	// Proposal stage: synthesis summary.
	SynthesisSummary string
	// Validation stage: the proposal under review.
	Proposal *models.Analysis
}

// PromptBuilder renders the system and user prompts for one run.
type PromptBuilder func(in PromptInput) (system, user string)

// Result is the uniform agent output shape.
type Result struct {
	Agent    string
	Model    string
	Analysis *models.Analysis
	Metadata models.StageMetadata
}

// RunOutcome pairs a result with its error for the non-blocking variant.
type RunOutcome struct {
	Result *Result
	Err    error
}

// OutputStrategy turns prompts into a structured analysis.
type OutputStrategy interface {
	Execute(ctx context.Context, agentName, model, system, user string) (*models.Analysis, models.StageMetadata, error)
}

// Agent is one reasoning unit: identity, prompt builder, output strategy.
type Agent struct {
	Name        string
	Role        Role
	Model       string
	BuildPrompt PromptBuilder
	Output      OutputStrategy
}

// Run executes the agent, blocking until the result is available.
// Confidence is clamped before the result is returned.
func (a *Agent) Run(ctx context.Context, in PromptInput) (*Result, error) {
	system, user := a.BuildPrompt(in)

	start := time.Now()
	analysis, meta, err := a.Output.Execute(ctx, a.Name, a.Model, system, user)
	if err != nil {
		return nil, err
	}
	if meta.Latency == 0 {
		meta.Latency = time.Since(start)
	}

	analysis.Confidence = ClampConfidence(analysis.Confidence)
	return &Result{
		Agent:    a.Name,
		Model:    a.Model,
		Analysis: analysis,
		Metadata: meta,
	}, nil
}

// RunAsync executes the agent in its own goroutine. The returned channel
// delivers exactly one outcome, identical in shape to Run's.
func (a *Agent) RunAsync(ctx context.Context, in PromptInput) <-chan RunOutcome {
	ch := make(chan RunOutcome, 1)
	go func() {
		res, err := a.Run(ctx, in)
		ch <- RunOutcome{Result: res, Err: err}
	}()
	return ch
}

// ClampConfidence ensures confidence is within valid range [0, 100].
func ClampConfidence(confidence float64) float64 {
	if confidence < 0 {
		return 0
	}
	if confidence > 100 {
		return 100
	}
	return confidence
}
