package agents

import (
	"strconv"
	"strings"

	"github.com/tidwall/gjson"

	"llm-trader/internal/models"
	"llm-trader/internal/react"
	"llm-trader/pkg/utils"
)

// Qualitative confidence labels are converted to the numeric 0-100 scale
// here and nowhere else.
var qualitativeConfidence = map[string]float64{
	"very high": 90,
	"high":      80,
	"medium":    60,
	"moderate":  60,
	"low":       35,
	"very low":  20,
}

// ParseAnalysis converts raw model text into an Analysis, best effort.
// It never fails: surrounding prose and code fences are stripped, each
// missing required field gets its documented default (hold / zero / empty),
// and a payload that defaulted any required field carries ParseError=true.
func ParseAnalysis(raw string) *models.Analysis {
	text := react.StripCodeFences(raw)
	obj := extractObject(text)

	if obj == "" || !gjson.Valid(obj) {
		// No JSON at all: hold-biased low-confidence sentinel carrying the
		// raw text for diagnosis.
		return &models.Analysis{
			Recommendation: "hold",
			Confidence:     10,
			Reasoning:      utils.Truncate(strings.TrimSpace(raw), 500),
			Observations:   []string{},
			ParseError:     true,
		}
	}

	doc := gjson.Parse(obj)
	a := &models.Analysis{Observations: []string{}}
	missing := false

	a.Recommendation = normalizeRecommendation(firstString(doc, "recommendation", "action", "decision"))
	if a.Recommendation == "" {
		a.Recommendation = "hold"
		missing = true
	}

	if conf, ok := parseConfidence(doc.Get("confidence")); ok {
		a.Confidence = ClampConfidence(conf)
	} else {
		a.Confidence = 0
		missing = true
	}

	a.Reasoning = strings.TrimSpace(firstString(doc, "reasoning", "rationale", "analysis"))
	if a.Reasoning == "" {
		missing = true
	}

	for _, obs := range doc.Get("observations").Array() {
		if s := strings.TrimSpace(obs.String()); s != "" {
			a.Observations = append(a.Observations, s)
		}
	}

	a.Action = normalizeRecommendation(doc.Get("action").String())
	a.Quantity = doc.Get("quantity").Float()
	a.StopLoss = doc.Get("stop_loss").Float()
	a.TakeProfit = doc.Get("take_profit").Float()
	a.Verdict = strings.ToLower(strings.TrimSpace(doc.Get("verdict").String()))

	a.ParseError = missing
	return a
}

// extractObject returns the first balanced {...} block, or "" when none.
func extractObject(text string) string {
	start := strings.IndexByte(text, '{')
	if start < 0 {
		return ""
	}
	depth := 0
	inString := false
	for i := start; i < len(text); i++ {
		c := text[i]
		switch {
		case inString:
			if c == '"' && text[i-1] != '\\' {
				inString = false
			}
		case c == '"':
			inString = true
		case c == '{':
			depth++
		case c == '}':
			depth--
			if depth == 0 {
				return text[start : i+1]
			}
		}
	}
	return ""
}

func firstString(doc gjson.Result, keys ...string) string {
	for _, key := range keys {
		if v := doc.Get(key); v.Exists() && v.String() != "" {
			return v.String()
		}
	}
	return ""
}

func normalizeRecommendation(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	switch s {
	case "buy", "long", "strong_buy":
		return "buy"
	case "sell", "short", "strong_sell":
		return "sell"
	case "hold", "wait", "neutral":
		return "hold"
	case "":
		return ""
	default:
		return "hold"
	}
}

func parseConfidence(v gjson.Result) (float64, bool) {
	if !v.Exists() {
		return 0, false
	}
	switch v.Type {
	case gjson.Number:
		return v.Float(), true
	case gjson.String:
		s := strings.ToLower(strings.TrimSpace(v.String()))
		if f, err := strconv.ParseFloat(strings.TrimSuffix(s, "%"), 64); err == nil {
			return f, true
		}
		if f, ok := qualitativeConfidence[s]; ok {
			return f, true
		}
	}
	return 0, false
}
