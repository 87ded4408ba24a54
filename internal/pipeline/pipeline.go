package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"llm-trader/internal/agents"
	"llm-trader/internal/errors"
	"llm-trader/internal/logging"
	"llm-trader/internal/models"
)

// Stage names used in results and error entries.
const (
	StageAnalyst    = "analyst"
	StageSynthesis  = "synthesis"
	StageProposal   = "proposal"
	StageValidation = "validation"
)

// Config parameterizes one pipeline.
type Config struct {
	GateThreshold    float64
	Concurrent       bool
	ReasoningSnippet int
	TopObservations  int
}

// Pipeline runs the fixed stage graph. Run always returns a DecisionResult;
// stage failures are converted into a failed result with partial stage
// output preserved, never a panic or a raw error.
type Pipeline struct {
	analysts   []*agents.Agent
	synthesis  *agents.Agent
	proposal   *agents.Agent
	validation *agents.Agent
	cfg        Config
	logger     zerolog.Logger
}

// New creates a pipeline over the given agents.
func New(analysts []*agents.Agent, synthesis, proposal, validation *agents.Agent, cfg Config, logger zerolog.Logger) *Pipeline {
	return &Pipeline{
		analysts:   analysts,
		synthesis:  synthesis,
		proposal:   proposal,
		validation: validation,
		cfg:        cfg,
		logger:     logger,
	}
}

// Run executes one decision run over the given context.
func (p *Pipeline) Run(ctx context.Context, pctx *Context) *models.DecisionResult {
	logger := logging.WithRun(p.logger, pctx.RunID, pctx.Symbol)
	ctx = logging.WithLogger(ctx, logger)

	start := time.Now()
	result := &models.DecisionResult{
		RunID:     pctx.RunID,
		Symbol:    pctx.Symbol,
		Timestamp: start,
		Stages:    make(map[string]*models.StageResult),
	}
	defer func() {
		result.Metadata.ExecutionTime = time.Since(start)
	}()

	input := agents.PromptInput{
		Symbol:    pctx.Symbol,
		Market:    pctx.Market,
		Portfolio: pctx.Portfolio,
	}

	// Analyst stage: all analysts, sequentially or with a wait-all join.
	// Aggregate accounting is a plain sum over the result slice, so the
	// two modes are numerically identical.
	analystResults, err := p.runAnalysts(ctx, input)
	for _, res := range analystResults {
		result.AddStage(stageResult(StageAnalyst+":"+res.Agent, res))
		logging.LogStage(logger, StageAnalyst+":"+res.Agent, res.Analysis.Confidence,
			res.Metadata.Tokens, res.Metadata.Cost)
	}
	if err != nil {
		return p.fail(result, StageAnalyst, err, logger)
	}

	// Gate A: mean analyst confidence against the threshold.
	confidences := make([]float64, 0, len(analystResults))
	for _, res := range analystResults {
		confidences = append(confidences, res.Analysis.Confidence)
	}
	mean := MeanConfidence(confidences)
	if !PassesGate(mean, p.cfg.GateThreshold) {
		logger.Info().
			Float64("mean_confidence", mean).
			Float64("threshold", p.cfg.GateThreshold).
			Msg("Confidence gate closed, holding")
		return p.completeHold(result, fmt.Sprintf(
			"analyst confidence %.1f below gate threshold %.1f", mean, p.cfg.GateThreshold))
	}

	// Synthesis stage: consumes the compressed analyst digest only.
	input.AnalystDigest = CompressResults(analystResults, p.cfg.ReasoningSnippet, p.cfg.TopObservations)
	synthesisRes, err := p.runStage(ctx, p.synthesis, input)
	if err != nil {
		return p.fail(result, StageSynthesis, err, logger)
	}
	result.AddStage(stageResult(StageSynthesis, synthesisRes))
	logging.LogStage(logger, StageSynthesis, synthesisRes.Analysis.Confidence,
		synthesisRes.Metadata.Tokens, synthesisRes.Metadata.Cost)

	// Proposal stage.
	input.SynthesisSummary = synthesisDigest(synthesisRes.Analysis)
	proposalRes, err := p.runStage(ctx, p.proposal, input)
	if err != nil {
		return p.fail(result, StageProposal, err, logger)
	}
	result.AddStage(stageResult(StageProposal, proposalRes))
	logging.LogStage(logger, StageProposal, proposalRes.Analysis.Confidence,
		proposalRes.Metadata.Tokens, proposalRes.Metadata.Cost)

	proposal := proposalRes.Analysis
	if proposal.Action == "" {
		proposal.Action = proposal.Recommendation
	}
	if proposal.Action == string(models.Hold) || proposal.Action == "" {
		// A hold proposal terminates here: validation is never invoked and
		// contributes no cost.
		result.Decision = decisionFromAnalysis(proposal, models.Hold)
		result.Status = models.StatusCompletedHold
		return result
	}

	// Validation stage.
	input.Proposal = proposal
	validationRes, err := p.runStage(ctx, p.validation, input)
	if err != nil {
		return p.fail(result, StageValidation, err, logger)
	}
	result.AddStage(stageResult(StageValidation, validationRes))
	logging.LogStage(logger, StageValidation, validationRes.Analysis.Confidence,
		validationRes.Metadata.Tokens, validationRes.Metadata.Cost)

	result.Decision = p.applyVerdict(proposal, validationRes.Analysis)
	result.Status = models.StatusCompleted
	return result
}

// runAnalysts executes all analysts. Partial analyst output collected
// before a failure is still returned so the caller can preserve it.
func (p *Pipeline) runAnalysts(ctx context.Context, input agents.PromptInput) ([]*agents.Result, error) {
	if !p.cfg.Concurrent {
		var results []*agents.Result
		for _, a := range p.analysts {
			res, err := p.runStage(ctx, a, input)
			if err != nil {
				return results, err
			}
			results = append(results, res)
		}
		return results, nil
	}

	slots := make([]*agents.Result, len(p.analysts))
	eg, egCtx := errgroup.WithContext(ctx)
	for i, a := range p.analysts {
		i, a := i, a
		eg.Go(func() error {
			res, err := p.runStage(egCtx, a, input)
			if err != nil {
				return err
			}
			slots[i] = res
			return nil
		})
	}
	err := eg.Wait()

	// Keep completed analysts in declaration order whether or not one
	// failed; a failed slot is simply absent.
	results := make([]*agents.Result, 0, len(slots))
	for _, res := range slots {
		if res != nil {
			results = append(results, res)
		}
	}
	return results, err
}

// runStage executes one agent, converting a panic into a stage error so the
// orchestrator can always return a result.
func (p *Pipeline) runStage(ctx context.Context, a *agents.Agent, input agents.PromptInput) (res *agents.Result, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			res = nil
			err = fmt.Errorf("panic in agent %s: %v", a.Name, rec)
		}
	}()
	return a.Run(ctx, input)
}

// applyVerdict folds the validation verdict into the final decision.
func (p *Pipeline) applyVerdict(proposal, verdict *models.Analysis) models.TradeDecision {
	switch verdict.Verdict {
	case "approve":
		return decisionFromAnalysis(proposal, models.Action(proposal.Action))

	case "modify":
		modified := *proposal
		if verdict.Action != "" {
			modified.Action = verdict.Action
		}
		if verdict.Quantity > 0 {
			modified.Quantity = verdict.Quantity
		}
		if verdict.StopLoss > 0 {
			modified.StopLoss = verdict.StopLoss
		}
		if verdict.TakeProfit > 0 {
			modified.TakeProfit = verdict.TakeProfit
		}
		modified.Reasoning = proposal.Reasoning + " | adjusted by validation: " + verdict.Reasoning
		return decisionFromAnalysis(&modified, models.Action(modified.Action))

	default:
		// Reject, and any unclear verdict, maps to a safe hold carrying
		// the rejection reason and zero executed size.
		reason := verdict.Reasoning
		if reason == "" {
			reason = "validation verdict unclear"
		}
		return models.TradeDecision{
			Action:     models.Hold,
			Quantity:   0,
			Confidence: agents.ClampConfidence(verdict.Confidence),
			Reasoning:  "proposal rejected: " + reason,
		}
	}
}

// completeHold finalizes an early-exit hold. Only the cost of stages that
// actually ran is in the totals.
func (p *Pipeline) completeHold(result *models.DecisionResult, reason string) *models.DecisionResult {
	result.Decision = models.TradeDecision{
		Action:    models.Hold,
		Reasoning: reason,
	}
	result.Status = models.StatusCompletedHold
	return result
}

// fail finalizes an aborted run, preserving the stage results already
// produced.
func (p *Pipeline) fail(result *models.DecisionResult, stage string, err error, logger zerolog.Logger) *models.DecisionResult {
	kind := "stage"
	if errors.Is(err, errors.ErrBudgetExceeded) {
		kind = "budget_exceeded"
	} else {
		var perr *errors.ProviderError
		if errors.As(err, &perr) {
			kind = "provider"
		}
	}

	stageLogger := logging.WithStage(logger, stage)
	stageLogger.Error().Err(err).Str("kind", kind).Msg("Pipeline stage failed")

	result.Errors = append(result.Errors, models.StageError{
		Stage:   stage,
		Kind:    kind,
		Message: err.Error(),
	})
	result.Status = models.StatusFailed
	result.Decision = models.TradeDecision{
		Action:    models.Hold,
		Reasoning: fmt.Sprintf("run aborted at %s stage: %v", stage, err),
	}
	return result
}

func stageResult(stage string, res *agents.Result) *models.StageResult {
	return &models.StageResult{
		Stage:      stage,
		Analysis:   res.Analysis,
		Confidence: res.Analysis.Confidence,
		Metadata:   res.Metadata,
	}
}

func decisionFromAnalysis(a *models.Analysis, action models.Action) models.TradeDecision {
	quantity := a.Quantity
	if action == models.Hold {
		quantity = 0
	}
	return models.TradeDecision{
		Action:     action,
		Quantity:   quantity,
		Confidence: agents.ClampConfidence(a.Confidence),
		Reasoning:  a.Reasoning,
		StopLoss:   a.StopLoss,
		TakeProfit: a.TakeProfit,
	}
}

func synthesisDigest(a *models.Analysis) string {
	digest := fmt.Sprintf("%s (confidence %.0f): %s", a.Recommendation, a.Confidence, a.Reasoning)
	for _, obs := range a.Observations {
		digest += "\n* " + obs
	}
	return digest
}
