package agents

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAnalysisCleanJSON(t *testing.T) {
	a := ParseAnalysis(`{
		"recommendation": "buy",
		"confidence": 72,
		"reasoning": "momentum and volume agree",
		"observations": ["RSI rising", "volume 2x average"]
	}`)

	assert.False(t, a.ParseError)
	assert.Equal(t, "buy", a.Recommendation)
	assert.Equal(t, 72.0, a.Confidence)
	assert.Equal(t, "momentum and volume agree", a.Reasoning)
	assert.Equal(t, []string{"RSI rising", "volume 2x average"}, a.Observations)
}

func TestParseAnalysisFencedAndProseWrapped(t *testing.T) {
	raw := "Here is my analysis:\n```json\n{\"recommendation\": \"sell\", \"confidence\": 65, \"reasoning\": \"trend broke\"}\n```\nLet me know if you need more."
	a := ParseAnalysis(raw)

	assert.False(t, a.ParseError)
	assert.Equal(t, "sell", a.Recommendation)
	assert.Equal(t, 65.0, a.Confidence)
}

func TestParseAnalysisQualitativeConfidence(t *testing.T) {
	cases := map[string]float64{
		"very high": 90,
		"high":      80,
		"Medium":    60,
		"low":       35,
		"very low":  20,
	}
	for label, want := range cases {
		a := ParseAnalysis(`{"recommendation": "hold", "confidence": "` + label + `", "reasoning": "r"}`)
		assert.Equal(t, want, a.Confidence, "label %q", label)
		assert.False(t, a.ParseError, "label %q", label)
	}
}

func TestParseAnalysisPercentStringConfidence(t *testing.T) {
	a := ParseAnalysis(`{"recommendation": "buy", "confidence": "85%", "reasoning": "r"}`)
	assert.Equal(t, 85.0, a.Confidence)
}

func TestParseAnalysisMissingFieldsDefaultWithMarker(t *testing.T) {
	a := ParseAnalysis(`{"confidence": 50}`)

	assert.True(t, a.ParseError)
	assert.Equal(t, "hold", a.Recommendation)
	assert.Equal(t, 50.0, a.Confidence)
	assert.Empty(t, a.Reasoning)
	assert.NotNil(t, a.Observations)
}

func TestParseAnalysisNoJSONAtAll(t *testing.T) {
	a := ParseAnalysis("I cannot produce a recommendation right now.")

	assert.True(t, a.ParseError)
	assert.Equal(t, "hold", a.Recommendation)
	assert.Equal(t, 10.0, a.Confidence)
	assert.Contains(t, a.Reasoning, "cannot produce")
}

func TestParseAnalysisEmptyInput(t *testing.T) {
	a := ParseAnalysis("")
	assert.True(t, a.ParseError)
	assert.Equal(t, "hold", a.Recommendation)
}

func TestParseAnalysisAlternateKeys(t *testing.T) {
	a := ParseAnalysis(`{"action": "long", "confidence": 60, "rationale": "breakout"}`)
	assert.Equal(t, "buy", a.Recommendation)
	assert.Equal(t, "breakout", a.Reasoning)
	assert.False(t, a.ParseError)
}

func TestParseAnalysisNormalizesRecommendation(t *testing.T) {
	cases := map[string]string{
		"BUY":     "buy",
		"Short":   "sell",
		"wait":    "hold",
		"neutral": "hold",
		"banana":  "hold",
	}
	for in, want := range cases {
		a := ParseAnalysis(`{"recommendation": "` + in + `", "confidence": 50, "reasoning": "r"}`)
		assert.Equal(t, want, a.Recommendation, "input %q", in)
	}
}

func TestParseAnalysisProposalFields(t *testing.T) {
	a := ParseAnalysis(`{
		"action": "buy", "quantity": 12.5, "confidence": 80,
		"reasoning": "thesis holds", "stop_loss": 95.5, "take_profit": 120
	}`)

	assert.Equal(t, "buy", a.Action)
	assert.Equal(t, 12.5, a.Quantity)
	assert.Equal(t, 95.5, a.StopLoss)
	assert.Equal(t, 120.0, a.TakeProfit)
}

func TestParseAnalysisVerdict(t *testing.T) {
	a := ParseAnalysis(`{"verdict": "Approve", "confidence": 75, "reasoning": "sized sensibly", "recommendation": "buy"}`)
	assert.Equal(t, "approve", a.Verdict)
}

func TestParseAnalysisClampsOutOfRangeConfidence(t *testing.T) {
	a := ParseAnalysis(`{"recommendation": "buy", "confidence": 150, "reasoning": "r"}`)
	assert.Equal(t, 100.0, a.Confidence)

	a = ParseAnalysis(`{"recommendation": "buy", "confidence": -5, "reasoning": "r"}`)
	assert.Equal(t, 0.0, a.Confidence)
}

// ParseAnalysis is total: whatever bytes arrive, the result is well shaped
// and the confidence is already clamped.
func TestPropertyParseAnalysisNeverFails(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("any input yields a well-shaped analysis", prop.ForAll(
		func(raw string) bool {
			a := ParseAnalysis(raw)
			if a == nil || a.Observations == nil {
				return false
			}
			if a.Recommendation != "buy" && a.Recommendation != "sell" && a.Recommendation != "hold" {
				return false
			}
			return a.Confidence >= 0 && a.Confidence <= 100
		},
		gen.AnyString(),
	))

	properties.TestingRun(t)
}

func TestClampConfidence(t *testing.T) {
	assert.Equal(t, 0.0, ClampConfidence(-10))
	assert.Equal(t, 100.0, ClampConfidence(250))
	assert.Equal(t, 42.0, ClampConfidence(42))
}

func TestExtractObjectIgnoresBracesInStrings(t *testing.T) {
	obj := extractObject(`prefix {"reasoning": "uses } inside", "confidence": 1} suffix`)
	require.NotEmpty(t, obj)
	assert.Equal(t, `{"reasoning": "uses } inside", "confidence": 1}`, obj)
}
