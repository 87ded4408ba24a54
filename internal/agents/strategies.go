package agents

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"llm-trader/internal/errors"
	"llm-trader/internal/gateway"
	"llm-trader/internal/logging"
	"llm-trader/internal/models"
	"llm-trader/internal/react"
)

// SingleShot is a one-call strategy with tolerant parsing: the raw response
// always becomes a well-shaped Analysis, never an error past the gateway.
type SingleShot struct {
	GW          *gateway.Gateway
	Temperature float32
	MaxTokens   int
}

// Execute runs one gateway call and tolerantly parses the response.
func (s *SingleShot) Execute(ctx context.Context, agentName, model, system, user string) (*models.Analysis, models.StageMetadata, error) {
	res, err := s.GW.Call(ctx, gateway.CallRequest{
		Messages: []gateway.Message{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		Model:       model,
		Caller:      agentName,
		Temperature: s.Temperature,
		MaxTokens:   s.MaxTokens,
		MaxRetries:  -1,
	})
	if err != nil {
		return nil, models.StageMetadata{}, err
	}

	analysis := ParseAnalysis(res.Content)
	meta := models.StageMetadata{
		Tokens:       res.TotalTokens(),
		Cost:         res.Cost,
		Latency:      res.Latency,
		FinishReason: res.FinishReason,
	}
	return analysis, meta, nil
}

// SchemaEnforced is a one-call strategy that validates the response against
// a JSON Schema. Violations surface as a typed SchemaError, not a crash.
type SchemaEnforced struct {
	GW          *gateway.Gateway
	Schema      *jsonschema.Schema
	Temperature float32
	MaxTokens   int
}

// CompileSchema compiles an inline JSON Schema document.
func CompileSchema(name, doc string) (*jsonschema.Schema, error) {
	c := jsonschema.NewCompiler()
	if err := c.AddResource(name, strings.NewReader(doc)); err != nil {
		return nil, fmt.Errorf("adding schema resource: %w", err)
	}
	return c.Compile(name)
}

// Execute runs one gateway call and validates the parsed response.
func (s *SchemaEnforced) Execute(ctx context.Context, agentName, model, system, user string) (*models.Analysis, models.StageMetadata, error) {
	res, err := s.GW.Call(ctx, gateway.CallRequest{
		Messages: []gateway.Message{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		Model:       model,
		Caller:      agentName,
		Temperature: s.Temperature,
		MaxTokens:   s.MaxTokens,
		MaxRetries:  -1,
	})
	if err != nil {
		return nil, models.StageMetadata{}, err
	}

	meta := models.StageMetadata{
		Tokens:       res.TotalTokens(),
		Cost:         res.Cost,
		Latency:      res.Latency,
		FinishReason: res.FinishReason,
	}

	text := react.StripCodeFences(res.Content)
	var payload any
	if err := json.Unmarshal([]byte(text), &payload); err != nil {
		return nil, meta, errors.NewSchemaError(agentName, "response is not valid JSON", err)
	}
	if err := s.Schema.Validate(payload); err != nil {
		return nil, meta, errors.NewSchemaError(agentName, "response violates output schema", err)
	}

	// The payload is known-good; reuse the tolerant parser for the mapping.
	analysis := ParseAnalysis(text)
	analysis.ParseError = false
	return analysis, meta, nil
}

// ReActLoop drives the bounded Thought/Action/Observation protocol and
// converts its terminal outcome into the uniform analysis shape.
type ReActLoop struct {
	GW            *gateway.Gateway
	Registry      *react.Registry
	Temperature   float32
	MaxTokens     int
	MaxIterations int
}

// Execute runs the loop. Iteration-cap and unparseable terminations yield a
// safe hold-biased analysis carrying the history tail; only gateway
// failures return an error.
func (s *ReActLoop) Execute(ctx context.Context, agentName, model, system, user string) (*models.Analysis, models.StageMetadata, error) {
	loop := react.NewLoop(s.GW, s.Registry, react.Config{
		Agent:         agentName,
		Model:         model,
		Temperature:   s.Temperature,
		MaxTokens:     s.MaxTokens,
		MaxIterations: s.MaxIterations,
	}, logging.FromContext(ctx))

	out, err := loop.Run(ctx, system, user)
	if err != nil {
		return nil, models.StageMetadata{}, err
	}

	meta := models.StageMetadata{
		Tokens:       out.Tokens,
		Cost:         out.Cost,
		Latency:      out.Latency,
		FinishReason: string(out.Kind),
	}

	if out.Kind == react.OutcomeFinal {
		return ParseAnalysis(out.Final), meta, nil
	}

	reason := fmt.Sprintf("insufficient data: reasoning loop ended after %d iterations (%s)",
		out.Iterations, out.Kind)
	return &models.Analysis{
		Recommendation:   "hold",
		Confidence:       20,
		Reasoning:        reason,
		Observations:     out.History.Tail(4),
		InsufficientData: true,
	}, meta, nil
}
