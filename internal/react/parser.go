package react

import (
	"encoding/json"
	"regexp"
	"strings"
)

// ParsedKind tags the parser result.
type ParsedKind string

const (
	ParsedFinal       ParsedKind = "final_answer"
	ParsedAction      ParsedKind = "action"
	ParsedUnparseable ParsedKind = "unparseable"
)

// Parsed is the tagged union a raw model response parses into.
type Parsed struct {
	Kind    ParsedKind
	Thought string // optional, may accompany an action
	Final   string // raw payload after the Final Answer marker
	Tool    string
	Args    map[string]any
}

var (
	finalRe   = regexp.MustCompile(`(?is)final\s+answer\s*:\s*(.*)`)
	actionRe  = regexp.MustCompile(`(?m)^\s*Action\s*:\s*([A-Za-z0-9_\-]+)\s*\((.*)\)\s*$`)
	thoughtRe = regexp.MustCompile(`(?s)Thought\s*:\s*(.*?)\s*(?:\n\s*(?:Action\s*:|Final\s+Answer\s*:)|$)`)
	fenceRe   = regexp.MustCompile("(?s)```[a-zA-Z]*\\n?(.*?)```")
)

// Parse classifies a raw model response. It never fails: anything that is
// neither a final answer nor an action call comes back as Unparseable.
func Parse(response string) Parsed {
	text := StripCodeFences(response)

	if m := finalRe.FindStringSubmatch(text); m != nil {
		return Parsed{
			Kind:  ParsedFinal,
			Final: strings.TrimSpace(m[1]),
		}
	}

	thought := ""
	if m := thoughtRe.FindStringSubmatch(text); m != nil {
		thought = strings.TrimSpace(m[1])
	}

	if m := actionRe.FindStringSubmatch(text); m != nil {
		return Parsed{
			Kind:    ParsedAction,
			Thought: thought,
			Tool:    m[1],
			Args:    parseArgs(m[2]),
		}
	}

	return Parsed{Kind: ParsedUnparseable, Thought: thought}
}

// StripCodeFences unwraps fenced blocks so that a payload wrapped in
// ```json ... ``` parses like bare text.
func StripCodeFences(s string) string {
	return strings.TrimSpace(fenceRe.ReplaceAllString(s, "$1"))
}

// parseArgs parses a permissive `key=value, key=value` list. Values are
// opportunistically re-parsed as JSON (numbers, booleans, objects, arrays)
// and otherwise kept as strings.
func parseArgs(raw string) map[string]any {
	args := make(map[string]any)
	for _, part := range splitArgs(raw) {
		kv := strings.SplitN(part, "=", 2)
		if len(kv) != 2 {
			continue
		}
		key := strings.TrimSpace(kv[0])
		if key == "" {
			continue
		}
		args[key] = coerceValue(strings.TrimSpace(kv[1]))
	}
	return args
}

// splitArgs splits on commas that are not nested inside brackets or quotes.
func splitArgs(raw string) []string {
	var parts []string
	depth := 0
	inString := false
	start := 0
	for i, r := range raw {
		switch {
		case inString:
			if r == '"' && (i == 0 || raw[i-1] != '\\') {
				inString = false
			}
		case r == '"':
			inString = true
		case r == '{' || r == '[' || r == '(':
			depth++
		case r == '}' || r == ']' || r == ')':
			depth--
		case r == ',' && depth == 0:
			parts = append(parts, raw[start:i])
			start = i + 1
		}
	}
	if strings.TrimSpace(raw[start:]) != "" {
		parts = append(parts, raw[start:])
	}
	return parts
}

func coerceValue(raw string) any {
	var v any
	if err := json.Unmarshal([]byte(raw), &v); err == nil {
		return v
	}
	// Bare strings arrive unquoted more often than not.
	return strings.Trim(raw, `"'`)
}
