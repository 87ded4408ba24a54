package react

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"llm-trader/internal/gateway"
	"llm-trader/internal/logging"
)

// OutcomeKind is the terminal state of one loop invocation.
type OutcomeKind string

const (
	// OutcomeFinal means the model produced an explicit final answer.
	OutcomeFinal OutcomeKind = "final_answer"
	// OutcomeMaxIterations means the iteration cap was reached first.
	OutcomeMaxIterations OutcomeKind = "max_iterations"
	// OutcomeUnparseable means a response was neither an action nor a
	// final answer.
	OutcomeUnparseable OutcomeKind = "unparseable"
)

// Outcome is the always-well-shaped result of a loop run.
type Outcome struct {
	Kind       OutcomeKind
	Final      string // raw final-answer payload, empty unless Kind is OutcomeFinal
	History    History
	Iterations int
	Tokens     int
	Cost       float64
	Latency    time.Duration
}

// Config parameterizes one loop.
type Config struct {
	Agent         string
	Model         string
	Temperature   float32
	MaxTokens     int
	MaxIterations int
}

// Loop runs the bounded Thought/Action/Observation protocol against the
// gateway, dispatching actions through a per-role tool registry.
type Loop struct {
	gw       *gateway.Gateway
	registry *Registry
	cfg      Config
	logger   zerolog.Logger
}

// NewLoop creates a loop.
func NewLoop(gw *gateway.Gateway, registry *Registry, cfg Config, logger zerolog.Logger) *Loop {
	if cfg.MaxIterations <= 0 {
		cfg.MaxIterations = 5
	}
	return &Loop{
		gw:       gw,
		registry: registry,
		cfg:      cfg,
		logger:   logging.WithAgent(logger, cfg.Agent),
	}
}

// Run executes the loop. The only error paths are gateway failures (budget
// exceeded, retries exhausted); every protocol-level irregularity is
// absorbed into the outcome instead.
func (l *Loop) Run(ctx context.Context, system, task string) (*Outcome, error) {
	out := &Outcome{History: History{}}

	for i := 0; i < l.cfg.MaxIterations; i++ {
		out.Iterations = i + 1

		user := task
		if len(out.History) > 0 {
			user = task + "\n\n" + out.History.Render()
		}

		res, err := l.gw.Call(ctx, gateway.CallRequest{
			Messages: []gateway.Message{
				{Role: "system", Content: system},
				{Role: "user", Content: user},
			},
			Model:       l.cfg.Model,
			Caller:      l.cfg.Agent,
			Temperature: l.cfg.Temperature,
			MaxTokens:   l.cfg.MaxTokens,
			MaxRetries:  -1,
		})
		if err != nil {
			return nil, err
		}
		out.Tokens += res.TotalTokens()
		out.Cost += res.Cost
		out.Latency += res.Latency

		parsed := Parse(res.Content)
		switch parsed.Kind {
		case ParsedFinal:
			out.History = append(out.History, Step{Kind: StepFinalAnswer, Text: parsed.Final})
			out.Kind = OutcomeFinal
			out.Final = parsed.Final
			logging.LogIteration(l.logger, out.Iterations, string(StepFinalAnswer), "")
			return out, nil

		case ParsedAction:
			if parsed.Thought != "" {
				out.History = append(out.History, Step{Kind: StepThought, Text: parsed.Thought})
			}
			out.History = append(out.History, Step{Kind: StepAction, Tool: parsed.Tool, Args: parsed.Args})

			result, errMsg := l.registry.Invoke(ctx, parsed.Tool, parsed.Args)
			out.History = append(out.History, Step{Kind: StepObservation, Result: result, Err: errMsg})

			logging.LogIteration(l.logger, out.Iterations, string(StepAction), parsed.Tool)

		default:
			// Not an action, not a final answer: abort early, the caller
			// builds the safe fallback from the history.
			out.Kind = OutcomeUnparseable
			return out, nil
		}
	}

	out.Kind = OutcomeMaxIterations
	return out, nil
}
