package gateway

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"llm-trader/internal/audit"
	"llm-trader/internal/errors"
	"llm-trader/internal/logging"
	"llm-trader/pkg/utils"
)

// CallRequest describes one model call.
type CallRequest struct {
	Messages    []Message
	Model       string
	Caller      string // agent name, recorded in the ledger
	Temperature float32
	MaxTokens   int // assumed output size for the budget projection; 0 uses the gateway default
	MaxRetries  int // additional attempts after the first; <0 uses the gateway default
}

// CallResult is the outcome of a successful gateway call.
type CallResult struct {
	Content      string
	InputTokens  int
	OutputTokens int
	Cost         float64
	Latency      time.Duration
	FinishReason string
}

// TotalTokens returns input plus output tokens.
func (r *CallResult) TotalTokens() int {
	return r.InputTokens + r.OutputTokens
}

// Config parameterizes a Gateway.
type Config struct {
	DailyTokenBudget int
	MaxRetries       int
	BackoffBase      time.Duration
	BackoffMax       time.Duration
	DefaultMaxTokens int
}

// Gateway is the single path to the model provider. It checks the daily
// budget before any network call, retries transient failures with bounded
// exponential backoff, and writes one audit record per terminal outcome.
type Gateway struct {
	client ChatClient
	sink   audit.Sink
	costs  *CostTable
	cfg    Config
	logger zerolog.Logger
	now    func() time.Time
}

// New creates a Gateway.
func New(client ChatClient, sink audit.Sink, costs *CostTable, cfg Config, logger zerolog.Logger) *Gateway {
	if cfg.BackoffBase <= 0 {
		cfg.BackoffBase = time.Second
	}
	if cfg.BackoffMax <= 0 {
		cfg.BackoffMax = 30 * time.Second
	}
	if cfg.DefaultMaxTokens <= 0 {
		cfg.DefaultMaxTokens = 2000
	}
	return &Gateway{
		client: client,
		sink:   sink,
		costs:  costs,
		cfg:    cfg,
		logger: logger,
		now:    time.Now,
	}
}

// Call performs one budget-checked, retried model call.
//
// The budget projection is measured input plus the declared max output,
// added to today's already-audited usage. A projected overrun fails with a
// BudgetError before any network attempt and writes nothing to the ledger.
func (g *Gateway) Call(ctx context.Context, req CallRequest) (*CallResult, error) {
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = g.cfg.DefaultMaxTokens
	}
	maxRetries := req.MaxRetries
	if maxRetries < 0 {
		maxRetries = g.cfg.MaxRetries
	}
	// A negative gateway default must still leave one attempt, or the loop
	// below would never run and there would be no error to report.
	if maxRetries < 0 {
		maxRetries = 0
	}

	input := renderMessages(req.Messages)
	projected := estimateTokens(input) + maxTokens

	usage, err := g.sink.DailyUsage(ctx, g.now())
	if err != nil {
		return nil, errors.Wrap(err, "reading daily usage")
	}
	if usage.Tokens+projected > g.cfg.DailyTokenBudget {
		return nil, errors.NewBudgetError(projected, usage.Tokens, g.cfg.DailyTokenBudget)
	}

	var lastErr error
	attempts := maxRetries + 1
retry:
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			// Exponential backoff before each retry. The sleep blocks only
			// this goroutine; concurrent stages keep running.
			wait := utils.CalculateBackoff(attempt-1, g.cfg.BackoffBase, g.cfg.BackoffMax, 2.0)
			select {
			case <-time.After(wait):
			case <-ctx.Done():
				lastErr = ctx.Err()
				break retry
			}
		}

		start := g.now()
		resp, err := g.client.Complete(ctx, req.Model, req.Messages, req.Temperature, maxTokens)
		latency := g.now().Sub(start)
		if err != nil {
			lastErr = err
			attemptLogger := g.logger.With().Int("attempt", attempt+1).Logger()
			logging.LogModelCall(attemptLogger, req.Caller, req.Model, 0, 0, latency, err)
			continue
		}

		cost := g.costs.Cost(req.Model, resp.PromptTokens+resp.CompletionTokens)
		rec := audit.CallRecord{
			Agent:        req.Caller,
			Model:        req.Model,
			Input:        input,
			Output:       resp.Content,
			InputTokens:  resp.PromptTokens,
			OutputTokens: resp.CompletionTokens,
			Cost:         cost,
			Latency:      latency,
			Timestamp:    g.now(),
		}
		if err := g.sink.Record(ctx, rec); err != nil {
			g.logger.Warn().Err(err).Msg("Failed to record call")
		}

		logging.LogModelCall(g.logger, req.Caller, req.Model,
			resp.PromptTokens+resp.CompletionTokens, cost, latency, nil)

		return &CallResult{
			Content:      resp.Content,
			InputTokens:  resp.PromptTokens,
			OutputTokens: resp.CompletionTokens,
			Cost:         cost,
			Latency:      latency,
			FinishReason: resp.FinishReason,
		}, nil
	}

	// Retries exhausted: the failure still becomes a ledger entry, with the
	// full input and zero tokens/cost.
	failRec := audit.CallRecord{
		Agent:     req.Caller,
		Model:     req.Model,
		Input:     input,
		Output:    "ERROR: " + lastErr.Error(),
		Timestamp: g.now(),
	}
	if err := g.sink.Record(ctx, failRec); err != nil {
		g.logger.Warn().Err(err).Msg("Failed to record failed call")
	}

	return nil, errors.NewProviderError(req.Model, req.Caller, attempts, lastErr)
}

// estimateTokens approximates the token count of a text. A four-characters
// per-token heuristic overestimates for dense prose, which errs on the safe
// side for budget projection.
func estimateTokens(text string) int {
	return len(text)/4 + 1
}

func renderMessages(messages []Message) string {
	out := ""
	for _, m := range messages {
		out += m.Role + ": " + m.Content + "\n"
	}
	return out
}
