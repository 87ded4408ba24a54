// Package react implements the bounded Thought/Action/Observation reasoning
// protocol. The loop is total: it always returns a well-shaped outcome
// within maxIterations gateway calls.
package react

import (
	"encoding/json"
	"fmt"
	"strings"
)

// StepKind tags one entry in the loop history.
type StepKind string

const (
	StepThought     StepKind = "thought"
	StepAction      StepKind = "action"
	StepObservation StepKind = "observation"
	StepFinalAnswer StepKind = "final_answer"
)

// Step is one tagged entry in the loop history.
type Step struct {
	Kind StepKind

	// Thought / FinalAnswer
	Text string

	// Action
	Tool string
	Args map[string]any

	// Observation; exactly one of Result or Err is meaningful.
	Result any
	Err    string
}

// History is the append-only step sequence of one loop invocation.
type History []Step

// Render serializes the history into the transcript format the model is
// prompted to continue.
func (h History) Render() string {
	var sb strings.Builder
	for _, s := range h {
		switch s.Kind {
		case StepThought:
			sb.WriteString("Thought: " + s.Text + "\n")
		case StepAction:
			sb.WriteString(fmt.Sprintf("Action: %s(%s)\n", s.Tool, renderArgs(s.Args)))
		case StepObservation:
			sb.WriteString("Observation: " + s.renderObservation() + "\n")
		case StepFinalAnswer:
			sb.WriteString("Final Answer: " + s.Text + "\n")
		}
	}
	return sb.String()
}

// Tail returns the last n rendered steps, for fallback diagnostics.
func (h History) Tail(n int) []string {
	start := len(h) - n
	if start < 0 {
		start = 0
	}
	out := make([]string, 0, len(h)-start)
	for _, s := range h[start:] {
		switch s.Kind {
		case StepThought:
			out = append(out, "Thought: "+s.Text)
		case StepAction:
			out = append(out, fmt.Sprintf("Action: %s(%s)", s.Tool, renderArgs(s.Args)))
		case StepObservation:
			out = append(out, "Observation: "+s.renderObservation())
		case StepFinalAnswer:
			out = append(out, "Final Answer: "+s.Text)
		}
	}
	return out
}

func (s Step) renderObservation() string {
	if s.Err != "" {
		b, _ := json.Marshal(map[string]any{"error": s.Err})
		return string(b)
	}
	b, err := json.Marshal(s.Result)
	if err != nil {
		return fmt.Sprintf("%v", s.Result)
	}
	return string(b)
}

func renderArgs(args map[string]any) string {
	if len(args) == 0 {
		return ""
	}
	parts := make([]string, 0, len(args))
	for k, v := range args {
		b, err := json.Marshal(v)
		if err != nil {
			parts = append(parts, fmt.Sprintf("%s=%v", k, v))
			continue
		}
		parts = append(parts, fmt.Sprintf("%s=%s", k, string(b)))
	}
	return strings.Join(parts, ", ")
}
