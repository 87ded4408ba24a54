package agents

import (
	"fmt"
	"strings"
)

// Shared response format instruction for single-shot analyst stages.
const analysisFormat = `Respond with a single JSON object:
{
  "recommendation": "buy|sell|hold",
  "confidence": <number 0-100>,
  "reasoning": "<one paragraph>",
  "observations": ["<key observation>", ...]
}`

// ProposalSchema is the declared output shape for the proposal stage.
const ProposalSchema = `{
  "type": "object",
  "required": ["action", "confidence", "reasoning"],
  "properties": {
    "action": {"type": "string", "enum": ["buy", "sell", "hold"]},
    "quantity": {"type": "number", "minimum": 0},
    "confidence": {"type": "number", "minimum": 0, "maximum": 100},
    "reasoning": {"type": "string"},
    "stop_loss": {"type": "number", "minimum": 0},
    "take_profit": {"type": "number", "minimum": 0}
  }
}`

// MarketAnalystPrompt builds prompts for the technical analyst.
func MarketAnalystPrompt(in PromptInput) (string, string) {
	system := "You are a technical market analyst. Analyze price action and indicators for a single symbol.\n" + analysisFormat

	var sb strings.Builder
	writeHeader(&sb, in)
	if in.Market != nil {
		if len(in.Market.Indicators) > 0 {
			sb.WriteString("Indicators:\n")
			for name, value := range in.Market.Indicators {
				sb.WriteString(fmt.Sprintf("  - %s: %.4f\n", name, value))
			}
		}
		if n := len(in.Market.Candles); n > 0 {
			sb.WriteString(fmt.Sprintf("Candles available: %d (latest close %.2f)\n",
				n, in.Market.Candles[n-1].Close))
		}
	}
	return system, sb.String()
}

// SentimentAnalystPrompt builds prompts for the sentiment analyst.
func SentimentAnalystPrompt(in PromptInput) (string, string) {
	system := "You are a market sentiment analyst. Judge crowd positioning and news tone for a single symbol.\n" + analysisFormat

	var sb strings.Builder
	writeHeader(&sb, in)
	if in.Market != nil && len(in.Market.SentimentData) > 0 {
		sb.WriteString("Sentiment data:\n")
		writeKV(&sb, in.Market.SentimentData)
	} else {
		sb.WriteString("No sentiment data supplied.\n")
	}
	return system, sb.String()
}

// FundamentalAnalystPrompt builds prompts for the fundamental analyst.
func FundamentalAnalystPrompt(in PromptInput) (string, string) {
	system := "You are a fundamental analyst. Weigh valuation and financial health for a single symbol.\n" + analysisFormat

	var sb strings.Builder
	writeHeader(&sb, in)
	if in.Market != nil && len(in.Market.FundamentalData) > 0 {
		sb.WriteString("Fundamental data:\n")
		writeKV(&sb, in.Market.FundamentalData)
	} else {
		sb.WriteString("No fundamental data supplied.\n")
	}
	return system, sb.String()
}

// SynthesisPrompt builds prompts for the synthesis stage. It consumes only
// the compressed analyst digest, never the raw analyst payloads.
func SynthesisPrompt(in PromptInput) (string, string) {
	system := "You are a research lead. Reconcile the analyst views into one coherent market thesis.\n" + analysisFormat

	var sb strings.Builder
	writeHeader(&sb, in)
	sb.WriteString("Analyst views:\n")
	sb.WriteString(in.AnalystDigest)
	return system, sb.String()
}

// ProposalPrompt builds prompts for the proposal stage.
func ProposalPrompt(in PromptInput) (string, string) {
	system := `You are a trader. Turn the thesis into one concrete trade proposal.
Respond with a single JSON object:
{
  "action": "buy|sell|hold",
  "quantity": <number of units, 0 for hold>,
  "confidence": <number 0-100>,
  "reasoning": "<one paragraph>",
  "stop_loss": <price or 0>,
  "take_profit": <price or 0>
}`

	var sb strings.Builder
	writeHeader(&sb, in)
	if in.Portfolio != nil {
		sb.WriteString(fmt.Sprintf("Cash balance: %.2f\nTotal equity: %.2f\n",
			in.Portfolio.CashBalance, in.Portfolio.TotalEquity))
		for _, pos := range in.Portfolio.Positions {
			sb.WriteString(fmt.Sprintf("Position: %s qty=%.4f avg=%.2f\n",
				pos.Symbol, pos.Quantity, pos.AveragePrice))
		}
	}
	sb.WriteString("\nThesis:\n")
	sb.WriteString(in.SynthesisSummary)
	return system, sb.String()
}

// ValidationPrompt builds prompts for the validation stage.
func ValidationPrompt(in PromptInput) (string, string) {
	system := `You are a risk manager reviewing a trade proposal.
Respond with a single JSON object:
{
  "verdict": "approve|reject|modify",
  "confidence": <number 0-100>,
  "reasoning": "<one paragraph>",
  "action": "buy|sell|hold",
  "quantity": <adjusted quantity, only for modify>,
  "stop_loss": <price or 0>,
  "take_profit": <price or 0>
}`

	var sb strings.Builder
	writeHeader(&sb, in)
	if in.Proposal != nil {
		sb.WriteString(fmt.Sprintf("Proposal: %s qty=%.4f confidence=%.0f\n",
			in.Proposal.Action, in.Proposal.Quantity, in.Proposal.Confidence))
		sb.WriteString("Proposal reasoning: " + in.Proposal.Reasoning + "\n")
		if in.Proposal.StopLoss > 0 {
			sb.WriteString(fmt.Sprintf("Stop loss: %.2f\n", in.Proposal.StopLoss))
		}
		if in.Proposal.TakeProfit > 0 {
			sb.WriteString(fmt.Sprintf("Take profit: %.2f\n", in.Proposal.TakeProfit))
		}
	}
	if in.Portfolio != nil {
		sb.WriteString(fmt.Sprintf("Cash balance: %.2f\nTotal equity: %.2f\n",
			in.Portfolio.CashBalance, in.Portfolio.TotalEquity))
	}
	return system, sb.String()
}

func writeHeader(sb *strings.Builder, in PromptInput) {
	sb.WriteString(fmt.Sprintf("Symbol: %s\n", in.Symbol))
	if in.Market != nil {
		sb.WriteString(fmt.Sprintf("Current Price: %.2f\n", in.Market.CurrentPrice))
	}
	sb.WriteString("\n")
}

func writeKV(sb *strings.Builder, data map[string]any) {
	for key, value := range data {
		sb.WriteString(fmt.Sprintf("  - %s: %v\n", key, value))
	}
}
