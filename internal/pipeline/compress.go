package pipeline

import (
	"fmt"
	"strings"

	"llm-trader/internal/agents"
	"llm-trader/pkg/utils"
)

// CompressResults renders the analyst results into the bounded digest the
// synthesis stage consumes: recommendation, confidence, a truncated
// reasoning snippet, and the top observations. Raw payloads never reach
// the synthesis prompt.
func CompressResults(results []*agents.Result, snippetLen, topObservations int) string {
	if snippetLen <= 0 {
		snippetLen = 300
	}
	if topObservations <= 0 {
		topObservations = 3
	}

	var sb strings.Builder
	for _, res := range results {
		a := res.Analysis
		sb.WriteString(fmt.Sprintf("- %s: %s (confidence %.0f)\n",
			res.Agent, a.Recommendation, a.Confidence))
		if a.Reasoning != "" {
			sb.WriteString("  " + utils.Truncate(a.Reasoning, snippetLen) + "\n")
		}
		n := len(a.Observations)
		if n > topObservations {
			n = topObservations
		}
		for _, obs := range a.Observations[:n] {
			sb.WriteString("  * " + obs + "\n")
		}
	}
	return sb.String()
}
